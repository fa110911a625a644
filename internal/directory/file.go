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

package directory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"judgeassign.dev/judgeassign/pkg/model"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "judgeassign",
		"component": "directory",
	})
)

// roster is the YAML layout of a roster file:
//
//	contexts:
//	  spring-finals:
//	    judges:
//	      - id: j1
//	        displayName: Ada Lovelace
//	        email: ada@example.com
//	        eligibility: Eligible
//	        maxCapacity: 5
//	    teams:
//	      - id: t1
//	        name: Analytical Engines
//	        affiliations: [acme]
type roster struct {
	Contexts map[string]rosterContext `yaml:"contexts"`
}

type rosterContext struct {
	Judges []*model.Judge `yaml:"judges"`
	Teams  []*model.Team  `yaml:"teams"`
}

// File is a Provider backed by a YAML roster file. The file is parsed on
// first use and again after Reload, which Watch triggers on every change.
type File struct {
	path string

	m      sync.RWMutex
	loaded *roster
}

// NewFile creates a Provider reading the roster at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Reload re-reads the roster file.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return errors.Wrapf(err, "cannot read roster file %s", f.path)
	}
	// A file being rewritten is briefly empty.
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.Errorf("roster file %s is empty", f.path)
	}
	r := &roster{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return errors.Wrapf(err, "cannot parse roster file %s", f.path)
	}

	f.m.Lock()
	f.loaded = r
	f.m.Unlock()

	logger.WithFields(logrus.Fields{
		"path":     f.path,
		"contexts": len(r.Contexts),
	}).Info("roster loaded")
	return nil
}

func (f *File) context(contextID string) (rosterContext, error) {
	f.m.RLock()
	r := f.loaded
	f.m.RUnlock()
	if r == nil {
		if err := f.Reload(); err != nil {
			return rosterContext{}, err
		}
		f.m.RLock()
		r = f.loaded
		f.m.RUnlock()
	}
	return r.Contexts[contextID], nil
}

// FetchJudges returns the judges listed for the context.
func (f *File) FetchJudges(ctx context.Context, contextID string) ([]*model.Judge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := f.context(contextID)
	if err != nil {
		return nil, err
	}
	judges := make([]*model.Judge, 0, len(rc.Judges))
	for _, rj := range rc.Judges {
		j := *rj
		if j.MaxCapacity != nil {
			if *j.MaxCapacity < 0 {
				return nil, errors.Errorf("judge %s has negative maxCapacity %d", j.ID, *j.MaxCapacity)
			}
			j.MaxCapacity = model.Limit(*j.MaxCapacity)
		}
		judges = append(judges, &j)
	}
	return judges, nil
}

// FetchTeams returns the teams listed for the context.
func (f *File) FetchTeams(ctx context.Context, contextID string) ([]*model.Team, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := f.context(contextID)
	if err != nil {
		return nil, err
	}
	teams := make([]*model.Team, 0, len(rc.Teams))
	for _, t := range rc.Teams {
		tc := *t
		teams = append(teams, &tc)
	}
	return teams, nil
}

// Watch reloads the roster whenever the file changes until the returned stop
// function is called. A change that fails to parse is logged and the previous
// roster stays in use.
func (f *File) Watch() (stop func() error, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create roster watcher")
	}
	// Watch the directory so that editors replacing the file are noticed.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "cannot watch roster file %s", f.path)
	}

	target := filepath.Clean(f.path)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := f.Reload(); err != nil {
					logger.WithFields(logrus.Fields{
						"error":     err.Error(),
						"operation": event.Op.String(),
					}).Warning("roster changed but could not be reloaded, keeping the previous one")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warning("roster watcher error")
			}
		}
	}()

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			err = w.Close()
			<-done
		})
		return err
	}, nil
}
