// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Reads configurations from all specified files using read(),
// and then merges them into a single viper.Viper instance.
func readMerged(files ...string) (View, error) {
	if len(files) == 0 {
		return nil, errors.New("no input files specified")
	}

	w := new(wrapperView)
	layers := make([]*viper.Viper, len(files))

	queue := make(chan fsnotify.Event, 1)
	onFileChange := func(e fsnotify.Event) {
		select {
		case queue <- e:
		default:
		}
	}

	// read files into layers and watch for changes
	for i, f := range files {
		l, err := read(f, onFileChange)
		if err != nil {
			return nil, err
		}
		layers[i] = l
	}

	w.set(merge(layers...))

	// re-merge layers upon changes in files
	go func() {
		for range queue {
			w.set(merge(layers...))
		}
	}()

	return w, nil
}

func merge(layers ...*viper.Viper) *viper.Viper {
	cfg := viper.New()
	for _, l := range layers {
		m := l.AllSettings()
		if err := cfg.MergeConfigMap(m); err != nil {
			logger.WithError(err).Warning("cannot merge config layer")
		}
	}
	return cfg
}

// Wrapper struct that implements View interface
// and delegates to other viper.Viper instance
type wrapperView struct {
	m   sync.RWMutex
	cfg *viper.Viper
}

func (w *wrapperView) set(cfg *viper.Viper) {
	w.m.Lock()
	defer w.m.Unlock()
	w.cfg = cfg
}

func (w *wrapperView) get() *viper.Viper {
	w.m.RLock()
	defer w.m.RUnlock()
	return w.cfg
}

func (w *wrapperView) IsSet(key string) bool {
	return w.get().IsSet(key)
}

func (w *wrapperView) GetString(key string) string {
	return w.get().GetString(key)
}

func (w *wrapperView) GetInt(key string) int {
	return w.get().GetInt(key)
}

func (w *wrapperView) GetInt64(key string) int64 {
	return w.get().GetInt64(key)
}

func (w *wrapperView) GetFloat64(key string) float64 {
	return w.get().GetFloat64(key)
}

func (w *wrapperView) GetStringSlice(key string) []string {
	return w.get().GetStringSlice(key)
}

func (w *wrapperView) GetBool(key string) bool {
	return w.get().GetBool(key)
}

func (w *wrapperView) GetDuration(key string) time.Duration {
	return w.get().GetDuration(key)
}

func (w *wrapperView) AllSettings() map[string]interface{} {
	return w.get().AllSettings()
}
