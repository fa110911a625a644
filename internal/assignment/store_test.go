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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"judgeassign.dev/judgeassign/internal/lock"
	utilTesting "judgeassign.dev/judgeassign/internal/util/testing"
	"judgeassign.dev/judgeassign/pkg/model"
)

func TestCreateAssignment(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	require.Nil(f.store.CreateAssignment(ctx, testContext, "j1", "a"))
	require.Equal([]model.Pair{pair("j1", "a")}, f.pairs(t, ctx))

	err := f.store.CreateAssignment(ctx, testContext, "j1", "a")
	require.Equal(model.DuplicateAssignment, KindOf(err))
	require.Equal(codes.AlreadyExists, status.Code(err))

	err = f.store.CreateAssignment(ctx, testContext, "nobody", "a")
	require.Equal(model.UnknownEntity, KindOf(err))
	require.Equal(codes.NotFound, status.Code(err))

	err = f.store.CreateAssignment(ctx, testContext, "j1", "zzz")
	require.Equal(model.UnknownEntity, KindOf(err))

	err = f.store.CreateAssignment(ctx, "", "j1", "a")
	require.Equal(model.InvalidArgument, KindOf(err))

	require.Equal([]model.Pair{pair("j1", "a")}, f.pairs(t, ctx))
}

func TestRemoveAssignmentIsIdempotent(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	require.Nil(f.store.CreateAssignment(ctx, testContext, "j1", "a"))
	require.Nil(f.store.CreateAssignment(ctx, testContext, "j1", "b"))
	require.Nil(f.store.RemoveAssignment(ctx, testContext, "j1", "a"))
	require.Nil(f.store.RemoveAssignment(ctx, testContext, "j1", "a"))
	require.Nil(f.store.RemoveAssignment(ctx, testContext, "nobody", "a"))
	require.Equal([]model.Pair{pair("j1", "b")}, f.pairs(t, ctx))
}

func TestBulkCreatePartialSuccess(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	require.Nil(f.store.CreateAssignment(ctx, testContext, "j1", "a"))

	result, err := f.store.BulkCreate(ctx, testContext, []model.Pair{
		pair("j1", "a"),
		pair("j1", "b"),
		pair("j2", "b"),
		pair("j1", "b"),
		pair("ghost", "c"),
		pair("j3", "ghost"),
	})
	require.Nil(err)
	require.Equal([]model.Pair{pair("j1", "b"), pair("j2", "b")}, result.Applied)

	var reasons []string
	for _, s := range result.Skipped {
		reasons = append(reasons, fmt.Sprintf("%s:%s", s.Pair, s.Reason))
	}
	require.Equal([]string{
		"j1/a:DuplicateAssignment",
		"j1/b:DuplicateAssignment",
		"ghost/c:UnknownEntity",
		"j3/ghost:UnknownEntity",
	}, reasons)

	require.Equal([]model.Pair{pair("j1", "a"), pair("j1", "b"), pair("j2", "b")}, f.pairs(t, ctx))
}

func TestGetMatrixLoadConsistency(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	_, err := f.store.BulkCreate(ctx, testContext, []model.Pair{
		pair("j1", "a"), pair("j1", "b"), pair("j3", "c"),
	})
	require.Nil(err)

	rows, err := f.store.GetMatrix(ctx, testContext)
	require.Nil(err)
	require.Len(rows, 3)
	for _, r := range rows {
		require.Equal(len(r.AssignedTeamIDs), r.CurrentLoad)
	}
	require.Equal([]string{"a", "b"}, rows[0].AssignedTeamIDs)
	require.Equal([]string{}, rows[1].AssignedTeamIDs)
	require.Equal([]string{"c"}, rows[2].AssignedTeamIDs)
	require.Equal(2, rows[2].MaxCapacity)
}

func TestAutoBalance(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	var pairs []model.Pair
	for _, team := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		pairs = append(pairs, pair("j1", team))
	}
	_, err := f.store.BulkCreate(ctx, testContext, pairs)
	require.Nil(err)
	before, err := f.state.LoadAssignments(ctx, testContext)
	require.Nil(err)

	f.store.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	rows, err := f.store.AutoBalance(ctx, testContext)
	require.Nil(err)

	var loads []int
	for _, r := range rows {
		loads = append(loads, r.CurrentLoad)
	}
	require.Equal([]int{3, 2, 2}, loads)
	require.Equal([]string{"a", "d", "g"}, rows[0].AssignedTeamIDs)
	require.Equal([]string{"b", "e"}, rows[1].AssignedTeamIDs)
	require.Equal([]string{"c", "f"}, rows[2].AssignedTeamIDs)

	stored, err := f.store.GetMatrix(ctx, testContext)
	require.Nil(err)
	if diff := cmp.Diff(rows, stored); diff != "" {
		t.Errorf("persisted matrix mismatch (-balanced +stored):\n%s", diff)
	}

	// Kept pairs keep their creation time, moved ones get a new one.
	after, err := f.state.LoadAssignments(ctx, testContext)
	require.Nil(err)
	for _, a := range after {
		if a.JudgeID == "j1" {
			require.True(a.CreatedAt.Equal(before[0].CreatedAt), a.Pair().String())
		} else {
			require.True(a.CreatedAt.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)), a.Pair().String())
		}
	}

	again, err := f.store.AutoBalance(ctx, testContext)
	require.Nil(err)
	if diff := cmp.Diff(rows, again); diff != "" {
		t.Errorf("second balance changed the matrix (-first +second):\n%s", diff)
	}
}

func TestReassign(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	_, err := f.store.BulkCreate(ctx, testContext, []model.Pair{pair("j1", "a"), pair("j2", "b")})
	require.Nil(err)

	require.Nil(f.store.Reassign(ctx, testContext, "a", "j1", "j3"))
	require.Equal([]model.Pair{pair("j2", "b"), pair("j3", "a")}, f.pairs(t, ctx))

	testCases := []struct {
		description string
		team        string
		from        string
		to          string
		kind        model.Kind
		code        codes.Code
	}{
		{"source does not hold the team", "a", "j1", "j2", model.SourceMismatch, codes.FailedPrecondition},
		{"target already holds the team", "b", "j2", "j2", model.DuplicateAssignment, codes.AlreadyExists},
		{"target is unknown", "b", "j2", "ghost", model.UnknownEntity, codes.NotFound},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.description, func(t *testing.T) {
			err := f.store.Reassign(ctx, testContext, tc.team, tc.from, tc.to)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, tc.code, status.Code(err))
			assert.Equal(t, []model.Pair{pair("j2", "b"), pair("j3", "a")}, f.pairs(t, ctx))
		})
	}
}

func TestReassignTeamLeftDirectory(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	require.Nil(f.store.CreateAssignment(ctx, testContext, "j1", "a"))

	var remaining []*model.Team
	for _, team := range testTeams() {
		if team.ID != "a" {
			remaining = append(remaining, team)
		}
	}
	f.dir.Put(testContext, testJudges(), remaining)

	err := f.store.Reassign(ctx, testContext, "a", "j1", "j2")
	require.Equal(model.UnknownEntity, KindOf(err))
	require.Equal(codes.NotFound, status.Code(err))
	require.Equal([]model.Pair{pair("j1", "a")}, f.pairs(t, ctx))
}

func TestPersistenceFailureLeavesStateIntact(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	require.Nil(f.store.CreateAssignment(ctx, testContext, "j1", "a"))
	require.Nil(f.store.CreateAssignment(ctx, testContext, "j1", "b"))
	f.state.failSave = true

	err := f.store.Reassign(ctx, testContext, "a", "j1", "j2")
	require.Equal(model.PersistenceFailure, KindOf(err))
	require.Equal(codes.Unavailable, status.Code(err))

	_, err = f.store.AutoBalance(ctx, testContext)
	require.Equal(model.PersistenceFailure, KindOf(err))

	f.state.failSave = false
	require.Equal([]model.Pair{pair("j1", "a"), pair("j1", "b")}, f.pairs(t, ctx))
}

func TestUnchangedMutationsSkipTheSave(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	_, err := f.store.BulkCreate(ctx, testContext, []model.Pair{pair("j1", "a"), pair("j2", "b")})
	require.Nil(err)
	require.Equal(1, f.state.saves)

	require.Nil(f.store.RemoveAssignment(ctx, testContext, "j3", "a"))
	_, err = f.store.AutoBalance(ctx, testContext)
	require.Nil(err)
	require.Equal(1, f.state.saves)
}

func TestCanceledContextCommitsNothing(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err := f.store.CreateAssignment(canceled, testContext, "j1", "a")
	require.Equal(model.Timeout, KindOf(err))
	require.Empty(f.pairs(t, ctx))
}

func TestLockContention(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	locker := lock.NewLocal(20 * time.Millisecond)
	f.store.locker = locker
	release, err := locker.Acquire(ctx, testContext)
	require.Nil(err)

	err = f.store.CreateAssignment(ctx, testContext, "j1", "a")
	require.Equal(model.LockContention, KindOf(err))
	require.Equal(codes.Aborted, status.Code(err))

	// Reads do not wait for the exclusive section.
	_, err = f.store.GetMatrix(ctx, testContext)
	require.Nil(err)

	// Other contexts are independent.
	f.dir.Put("other", testJudges(), testTeams())
	require.Nil(f.store.CreateAssignment(ctx, "other", "j1", "a"))

	release()
	require.Nil(f.store.CreateAssignment(ctx, testContext, "j1", "a"))
}

func TestLockDeadline(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	release, err := f.store.locker.Acquire(ctx, testContext)
	require.Nil(err)
	defer release()

	dctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = f.store.CreateAssignment(dctx, testContext, "j1", "a")
	require.Equal(model.Timeout, KindOf(err))
	require.Equal(codes.DeadlineExceeded, status.Code(err))
}

func TestConcurrentMutationsKeepPairsUnique(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	ctx := utilTesting.NewContext(t)

	teams := []string{"a", "b", "c", "d", "e", "f", "g"}
	judges := []string{"j1", "j2", "j3"}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			var pairs []model.Pair
			for k := 0; k < 5; k++ {
				pairs = append(pairs, pair(judges[(i+k)%len(judges)], teams[(i*3+k)%len(teams)]))
			}
			if _, err := f.store.BulkCreate(ctx, testContext, pairs); err != nil {
				t.Error(err)
			}
		}()
		if i%3 == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.store.AutoBalance(ctx, testContext); err != nil {
					t.Error(err)
				}
			}()
		}
	}
	wg.Wait()

	seen := map[model.Pair]bool{}
	for _, p := range f.pairs(t, ctx) {
		require.False(seen[p], "duplicate pair %s", p)
		seen[p] = true
	}

	rows, err := f.store.GetMatrix(ctx, testContext)
	require.Nil(err)
	total := 0
	for _, r := range rows {
		require.Equal(len(r.AssignedTeamIDs), r.CurrentLoad)
		total += r.CurrentLoad
	}
	require.Equal(len(seen), total)
}
