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

// Package directory reads the judge and team directory that the assignment
// engine validates against. The directory is owned by external services;
// judgeassign only ever reads snapshots of it.
package directory

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"judgeassign.dev/judgeassign/pkg/model"
)

// Provider supplies read-only judge and team snapshots per context.
type Provider interface {
	FetchJudges(ctx context.Context, contextID string) ([]*model.Judge, error)
	FetchTeams(ctx context.Context, contextID string) ([]*model.Team, error)
}

// Snapshot is a consistent read of the directory for one context, indexed by id.
type Snapshot struct {
	ContextID string
	Judges    []*model.Judge
	Teams     []*model.Team

	judges map[string]*model.Judge
	teams  map[string]*model.Team
}

// NewSnapshot indexes the given judges and teams.
func NewSnapshot(contextID string, judges []*model.Judge, teams []*model.Team) *Snapshot {
	s := &Snapshot{
		ContextID: contextID,
		Judges:    judges,
		Teams:     teams,
		judges:    make(map[string]*model.Judge, len(judges)),
		teams:     make(map[string]*model.Team, len(teams)),
	}
	for _, j := range judges {
		s.judges[j.ID] = j
	}
	for _, t := range teams {
		s.teams[t.ID] = t
	}
	return s
}

// Fetch reads judges and teams for the context concurrently.
func Fetch(ctx context.Context, p Provider, contextID string) (*Snapshot, error) {
	var judges []*model.Judge
	var teams []*model.Team

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		judges, err = p.FetchJudges(gctx, contextID)
		return errors.Wrapf(err, "failed to fetch judges for context %s", contextID)
	})
	g.Go(func() error {
		var err error
		teams, err = p.FetchTeams(gctx, contextID)
		return errors.Wrapf(err, "failed to fetch teams for context %s", contextID)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewSnapshot(contextID, judges, teams), nil
}

// Judge returns the judge with the given id.
func (s *Snapshot) Judge(id string) (*model.Judge, bool) {
	j, ok := s.judges[id]
	return j, ok
}

// Team returns the team with the given id.
func (s *Snapshot) Team(id string) (*model.Team, bool) {
	t, ok := s.teams[id]
	return t, ok
}
