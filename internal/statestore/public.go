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

// Package statestore persists the judge/team assignment set of each context.
package statestore

import (
	"context"

	"judgeassign.dev/judgeassign/internal/config"
	"judgeassign.dev/judgeassign/internal/telemetry"
	"judgeassign.dev/judgeassign/pkg/model"
)

// Service is a generic interface for talking to a storage backend.
type Service interface {
	// HealthCheck indicates if the database is reachable.
	HealthCheck(ctx context.Context) error

	// LoadAssignments returns the assignments of the context in insertion order.
	// A context without assignments yields an empty slice.
	LoadAssignments(ctx context.Context, contextID string) ([]*model.Assignment, error)

	// SaveAssignments atomically replaces the assignments of the context. Readers
	// observe either the previous or the new set, never a mix.
	SaveAssignments(ctx context.Context, contextID string, assignments []*model.Assignment) error

	// Closes the connection to the underlying storage.
	Close() error
}

// New creates a Service based on the configuration.
func New(cfg config.View) Service {
	s := newRedis(cfg)
	if cfg.GetBool(telemetry.ConfigNameEnableMetrics) {
		return &instrumentedService{
			s: s,
		}
	}
	return s
}
