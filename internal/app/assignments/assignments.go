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

// Package assignments serves the judge assignment engine over HTTP.
package assignments

import (
	"github.com/pkg/errors"
	"judgeassign.dev/judgeassign/internal/appmain"
	"judgeassign.dev/judgeassign/internal/assignment"
	"judgeassign.dev/judgeassign/internal/consts"
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/internal/lock"
	"judgeassign.dev/judgeassign/internal/statestore"
)

// BindService creates the assignments service, reading the directory from the
// configured roster file, and binds it to the serving harness.
func BindService(p *appmain.Params, b *appmain.Bindings) error {
	path := p.Config().GetString(consts.DirectoryRosterPath)
	if path == "" {
		return errors.Errorf("%s is required", consts.DirectoryRosterPath)
	}
	roster := directory.NewFile(path)
	stop, err := roster.Watch()
	if err != nil {
		return err
	}
	b.AddCloserErr(stop)
	return BindServiceWithDirectory(roster)(p, b)
}

// BindServiceWithDirectory binds the assignments service on top of dir.
func BindServiceWithDirectory(dir directory.Provider) appmain.Bind {
	return func(p *appmain.Params, b *appmain.Bindings) error {
		cfg := p.Config()

		store := statestore.New(cfg)
		b.AddCloserErr(store.Close)
		b.AddHealthCheckFunc(store.HealthCheck)

		pool := statestore.NewPool(cfg)
		b.AddCloserErr(pool.Close)
		locker, err := lock.New(cfg, pool)
		if err != nil {
			return err
		}

		maxBytes := cfg.GetInt(consts.ImportMaxBytes)
		if maxBytes <= 0 {
			maxBytes = assignment.DefaultImportMaxBytes
		}
		service := &assignmentsService{
			svc:            assignment.NewService(assignment.NewStore(store, dir, locker), maxBytes),
			importMaxBytes: maxBytes,
		}
		return service.bind(b)
	}
}
