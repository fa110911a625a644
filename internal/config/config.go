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

// Package config contains convenience functions for reading and managing viper configs.
package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// configDirEnv overrides the directory the service configuration is read from.
	configDirEnv       = "JUDGEASSIGN_CONFIG_DIR"
	defaultConfigDir   = "/app/config"
	defaultConfigFile  = "default/assignments_config.yaml"
	overrideConfigFile = "override/assignments_config.yaml"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "judgeassign",
		"component": "config",
	})
)

// Read reads the default configuration layer and, when present, the override
// layer on top of it. Both files are watched for changes.
func Read() (View, error) {
	dir := os.Getenv(configDirEnv)
	if dir == "" {
		dir = defaultConfigDir
	}

	files := []string{filepath.Join(dir, defaultConfigFile)}
	override := filepath.Join(dir, overrideConfigFile)
	if _, err := os.Stat(override); err == nil {
		files = append(files, override)
	}
	return readMerged(files...)
}

func read(file string, onChange func(fsnotify.Event)) (*viper.Viper, error) {
	cfg := viper.New()
	cfg.SetConfigFile(file)
	if err := cfg.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %s", file)
	}

	// Watch and re-read config file.
	cfg.WatchConfig()
	cfg.OnConfigChange(func(event fsnotify.Event) {
		logger.WithFields(logrus.Fields{
			"filename":  event.Name,
			"operation": event.Op,
		}).Info("Server configuration changed.")
		if onChange != nil {
			onChange(event)
		}
	})
	return cfg, nil
}
