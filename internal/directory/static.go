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
	"context"
	"sync"

	"judgeassign.dev/judgeassign/pkg/model"
)

// Static is an in-memory Provider. It is used by tests and by deployments
// that push the directory through the API instead of a roster file.
type Static struct {
	m      sync.RWMutex
	judges map[string][]*model.Judge
	teams  map[string][]*model.Team
}

// NewStatic creates an empty in-memory directory.
func NewStatic() *Static {
	return &Static{
		judges: map[string][]*model.Judge{},
		teams:  map[string][]*model.Team{},
	}
}

// Put replaces the directory entries of a context.
func (s *Static) Put(contextID string, judges []*model.Judge, teams []*model.Team) {
	s.m.Lock()
	defer s.m.Unlock()
	s.judges[contextID] = append([]*model.Judge(nil), judges...)
	s.teams[contextID] = append([]*model.Team(nil), teams...)
}

// FetchJudges returns a copy of the context's judges.
func (s *Static) FetchJudges(ctx context.Context, contextID string) ([]*model.Judge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.RLock()
	defer s.m.RUnlock()
	return append([]*model.Judge(nil), s.judges[contextID]...), nil
}

// FetchTeams returns a copy of the context's teams.
func (s *Static) FetchTeams(ctx context.Context, contextID string) ([]*model.Team, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.RLock()
	defer s.m.RUnlock()
	return append([]*model.Team(nil), s.teams[contextID]...), nil
}
