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

package assignment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/internal/lock"
	"judgeassign.dev/judgeassign/internal/statestore"
	statestoreTesting "judgeassign.dev/judgeassign/internal/statestore/testing"
	"judgeassign.dev/judgeassign/pkg/model"
)

const testContext = "hack-2024"

func testJudge(id, display, given, family, email, org string, max int) *model.Judge {
	var capacity *int
	if max != model.Unbounded {
		capacity = model.Limit(max)
	}
	return &model.Judge{
		ID:           id,
		DisplayName:  display,
		GivenName:    given,
		FamilyName:   family,
		Email:        email,
		Eligibility:  model.Eligible,
		MaxCapacity:  capacity,
		Organization: org,
	}
}

func testJudges() []*model.Judge {
	return []*model.Judge{
		testJudge("j1", "Ada Lovelace", "Ada", "Lovelace", "ada@example.org", "Analytical", model.Unbounded),
		testJudge("j2", "Grace Hopper", "Grace", "Hopper", "grace@example.org", "Navy", model.Unbounded),
		testJudge("j3", "Prof. Turing", "Alan", "Turing", "alan@example.org", "", 2),
	}
}

func testTeams() []*model.Team {
	var teams []*model.Team
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		teams = append(teams, &model.Team{ID: id, Name: "Team " + strings.ToUpper(id), Verification: model.Verified})
	}
	teams[4].Affiliations = []string{"NAVY", "mentor:jo"}
	return teams
}

type fixture struct {
	svc   *Service
	store *Store
	dir   *directory.Static
	state *failingState
}

func newFixture(t *testing.T) *fixture {
	cfg := viper.New()
	state := &failingState{Service: statestoreTesting.NewStoreServiceForTesting(t, cfg)}

	dir := directory.NewStatic()
	dir.Put(testContext, testJudges(), testTeams())

	store := NewStore(state, dir, lock.NewLocal(0))
	store.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{
		svc:   NewService(store, 0),
		store: store,
		dir:   dir,
		state: state,
	}
}

func (f *fixture) pairs(t *testing.T, ctx context.Context) []model.Pair {
	t.Helper()
	assignments, err := f.state.LoadAssignments(ctx, testContext)
	if err != nil {
		t.Fatal(err)
	}
	out := []model.Pair{}
	for _, a := range assignments {
		out = append(out, a.Pair())
	}
	return out
}

// failingState counts successful saves and fails them on demand.
type failingState struct {
	statestore.Service
	failSave bool
	saves    int
}

func (f *failingState) SaveAssignments(ctx context.Context, contextID string, assignments []*model.Assignment) error {
	if f.failSave {
		return status.Error(codes.Unavailable, "redis is down")
	}
	if err := f.Service.SaveAssignments(ctx, contextID, assignments); err != nil {
		return err
	}
	f.saves++
	return nil
}

func pair(judgeID, teamID string) model.Pair {
	return model.Pair{JudgeID: judgeID, TeamID: teamID}
}
