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
	"time"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/internal/lock"
	"judgeassign.dev/judgeassign/internal/statestore"
	"judgeassign.dev/judgeassign/internal/telemetry"
	"judgeassign.dev/judgeassign/pkg/model"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "judgeassign",
		"component": "assignment",
	})

	mAssignmentsCreated = telemetry.Counter("assignment/createdcount", "number of assignments created")
	mAssignmentsRemoved = telemetry.Counter("assignment/removedcount", "number of assignments removed")
	mReassignments      = telemetry.Counter("assignment/reassignedcount", "number of teams moved between judges")
	mBalances           = telemetry.Counter("assignment/balancecount", "number of balance runs committed")
	mPairsSkipped       = telemetry.Counter("assignment/skippedcount", "number of batch pairs that were not applied")
)

// Store owns the persisted judge/team pairs of every context. Mutations of a
// context are serialized through its exclusive section and committed with a
// single atomic save; reads never take the section.
type Store struct {
	state  statestore.Service
	dir    directory.Provider
	locker lock.Locker
	now    func() time.Time
}

// NewStore creates a Store.
func NewStore(state statestore.Service, dir directory.Provider, locker lock.Locker) *Store {
	return &Store{
		state:  state,
		dir:    dir,
		locker: locker,
		now:    time.Now,
	}
}

// working is the state a mutation edits inside the exclusive section.
type working struct {
	snapshot    *directory.Snapshot
	assignments []*model.Assignment
	index       map[model.Pair]int
	changed     bool
	now         time.Time
	contextID   string
}

func newWorking(contextID string, snapshot *directory.Snapshot, assignments []*model.Assignment, now time.Time) *working {
	w := &working{
		snapshot:  snapshot,
		contextID: contextID,
		now:       now,
	}
	w.reset(assignments)
	w.changed = false
	return w
}

func (w *working) reset(assignments []*model.Assignment) {
	w.assignments = make([]*model.Assignment, 0, len(assignments))
	w.index = make(map[model.Pair]int, len(assignments))
	for _, a := range assignments {
		if _, ok := w.index[a.Pair()]; ok {
			continue
		}
		w.index[a.Pair()] = len(w.assignments)
		w.assignments = append(w.assignments, a)
	}
	w.changed = true
}

func (w *working) has(p model.Pair) bool {
	_, ok := w.index[p]
	return ok
}

func (w *working) add(p model.Pair) {
	w.index[p] = len(w.assignments)
	w.assignments = append(w.assignments, &model.Assignment{
		JudgeID:   p.JudgeID,
		TeamID:    p.TeamID,
		ContextID: w.contextID,
		CreatedAt: w.now,
	})
	w.changed = true
}

func (w *working) remove(p model.Pair) bool {
	i, ok := w.index[p]
	if !ok {
		return false
	}
	w.assignments = append(w.assignments[:i:i], w.assignments[i+1:]...)
	delete(w.index, p)
	for j := i; j < len(w.assignments); j++ {
		w.index[w.assignments[j].Pair()] = j
	}
	w.changed = true
	return true
}

// validate checks that both ends of the pair exist in the directory snapshot.
func (w *working) validate(p model.Pair) *Error {
	if _, ok := w.snapshot.Judge(p.JudgeID); !ok {
		return newError(model.UnknownEntity, "judge %s is not part of context %s", p.JudgeID, w.contextID)
	}
	if _, ok := w.snapshot.Team(p.TeamID); !ok {
		return newError(model.UnknownEntity, "team %s is not part of context %s", p.TeamID, w.contextID)
	}
	return nil
}

// mutate runs fn inside the context's exclusive section on freshly loaded
// state, then commits the result if fn changed anything. A ctx that is done
// before the commit aborts without any visible change.
func (s *Store) mutate(ctx context.Context, contextID string, fn func(w *working) error) error {
	if contextID == "" {
		return newError(model.InvalidArgument, "context id is required")
	}

	release, err := s.locker.Acquire(ctx, contextID)
	if err != nil {
		return fromLock(err, contextID)
	}
	defer release()

	current, err := s.state.LoadAssignments(ctx, contextID)
	if err != nil {
		return fromDependency(ctx, err, "failed to load assignments of context %s", contextID)
	}
	snapshot, err := directory.Fetch(ctx, s.dir, contextID)
	if err != nil {
		return fromDependency(ctx, err, "failed to read directory of context %s", contextID)
	}

	w := newWorking(contextID, snapshot, current, s.now())
	if err := fn(w); err != nil {
		return err
	}
	if !w.changed {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return wrapError(err, model.Timeout, "aborted before committing context %s", contextID)
	}
	if err := s.state.SaveAssignments(ctx, contextID, w.assignments); err != nil {
		logger.WithFields(logrus.Fields{
			"error":   err.Error(),
			"context": contextID,
		}).Error("failed to commit assignments")
		return fromDependency(ctx, err, "failed to save assignments of context %s", contextID)
	}
	return nil
}

// read loads the persisted pairs and the directory without locking.
func (s *Store) read(ctx context.Context, contextID string) ([]*model.Assignment, *directory.Snapshot, error) {
	if contextID == "" {
		return nil, nil, newError(model.InvalidArgument, "context id is required")
	}
	current, err := s.state.LoadAssignments(ctx, contextID)
	if err != nil {
		return nil, nil, fromDependency(ctx, err, "failed to load assignments of context %s", contextID)
	}
	snapshot, err := directory.Fetch(ctx, s.dir, contextID)
	if err != nil {
		return nil, nil, fromDependency(ctx, err, "failed to read directory of context %s", contextID)
	}
	return current, snapshot, nil
}

// GetMatrix returns the matrix view of the context.
func (s *Store) GetMatrix(ctx context.Context, contextID string) ([]model.MatrixRow, error) {
	ctx, span := trace.StartSpan(ctx, "assignment.Store.GetMatrix")
	defer span.End()

	rows, _, err := s.matrix(ctx, contextID)
	return rows, err
}

func (s *Store) matrix(ctx context.Context, contextID string) ([]model.MatrixRow, *directory.Snapshot, error) {
	current, snapshot, err := s.read(ctx, contextID)
	if err != nil {
		return nil, nil, err
	}
	return BuildMatrix(current, snapshot), snapshot, nil
}

// CreateAssignment adds one pair. It fails with UnknownEntity when either id
// is missing from the directory and with DuplicateAssignment when the pair
// already exists.
func (s *Store) CreateAssignment(ctx context.Context, contextID, judgeID, teamID string) error {
	ctx, span := trace.StartSpan(ctx, "assignment.Store.CreateAssignment")
	defer span.End()

	p := model.Pair{JudgeID: judgeID, TeamID: teamID}
	err := s.mutate(ctx, contextID, func(w *working) error {
		if err := w.validate(p); err != nil {
			return err
		}
		if w.has(p) {
			return newError(model.DuplicateAssignment, "judge %s already holds team %s", judgeID, teamID)
		}
		w.add(p)
		return nil
	})
	if err != nil {
		return err
	}
	telemetry.RecordUnitMeasurement(ctx, mAssignmentsCreated)
	return nil
}

// RemoveAssignment deletes one pair. Removing an absent pair is not an error.
func (s *Store) RemoveAssignment(ctx context.Context, contextID, judgeID, teamID string) error {
	ctx, span := trace.StartSpan(ctx, "assignment.Store.RemoveAssignment")
	defer span.End()

	removed := false
	err := s.mutate(ctx, contextID, func(w *working) error {
		removed = w.remove(model.Pair{JudgeID: judgeID, TeamID: teamID})
		return nil
	})
	if err != nil {
		return err
	}
	if removed {
		telemetry.RecordUnitMeasurement(ctx, mAssignmentsRemoved)
	}
	return nil
}

// BulkCreate adds every valid, new pair and reports the others as skipped.
// Pairs repeated within the batch are skipped as DuplicateAssignment.
func (s *Store) BulkCreate(ctx context.Context, contextID string, pairs []model.Pair) (*model.BulkResult, error) {
	ctx, span := trace.StartSpan(ctx, "assignment.Store.BulkCreate")
	defer span.End()

	outcomes, err := s.bulkCreate(ctx, contextID, pairs)
	if err != nil {
		return nil, err
	}

	result := &model.BulkResult{Applied: []model.Pair{}, Skipped: []model.SkippedPair{}}
	for i, o := range outcomes {
		if o == nil {
			result.Applied = append(result.Applied, pairs[i])
			continue
		}
		result.Skipped = append(result.Skipped, *o)
	}

	logger.WithFields(logrus.Fields{
		"context": contextID,
		"applied": len(result.Applied),
		"skipped": len(result.Skipped),
	}).Debug("bulk create committed")
	return result, nil
}

// bulkCreate returns one outcome per input pair: nil when the pair was
// applied, the reason otherwise.
func (s *Store) bulkCreate(ctx context.Context, contextID string, pairs []model.Pair) ([]*model.SkippedPair, error) {
	var outcomes []*model.SkippedPair
	applied := 0
	err := s.mutate(ctx, contextID, func(w *working) error {
		outcomes = make([]*model.SkippedPair, len(pairs))
		applied = 0
		for i, p := range pairs {
			if err := w.validate(p); err != nil {
				outcomes[i] = &model.SkippedPair{Pair: p, Reason: err.Kind, Message: err.Message}
				continue
			}
			if w.has(p) {
				outcomes[i] = &model.SkippedPair{
					Pair:    p,
					Reason:  model.DuplicateAssignment,
					Message: fmt.Sprintf("judge %s already holds team %s", p.JudgeID, p.TeamID),
				}
				continue
			}
			w.add(p)
			applied++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.RecordNUnitMeasurement(ctx, mAssignmentsCreated, int64(applied))
	telemetry.RecordNUnitMeasurement(ctx, mPairsSkipped, int64(len(pairs)-applied))
	return outcomes, nil
}

// AutoBalance redistributes the teams of the context across its Eligible
// judges and commits the result. Pairs that survive keep their createdAt.
func (s *Store) AutoBalance(ctx context.Context, contextID string) ([]model.MatrixRow, error) {
	ctx, span := trace.StartSpan(ctx, "assignment.Store.AutoBalance")
	defer span.End()

	var balanced []model.MatrixRow
	err := s.mutate(ctx, contextID, func(w *working) error {
		balanced = Balance(BuildMatrix(w.assignments, w.snapshot))

		previous := make(map[model.Pair]*model.Assignment, len(w.assignments))
		for _, a := range w.assignments {
			previous[a.Pair()] = a
		}

		next := make([]*model.Assignment, 0, len(w.assignments))
		for _, row := range balanced {
			for _, teamID := range row.AssignedTeamIDs {
				p := model.Pair{JudgeID: row.JudgeID, TeamID: teamID}
				if a, ok := previous[p]; ok {
					next = append(next, a)
					continue
				}
				next = append(next, &model.Assignment{
					JudgeID:   p.JudgeID,
					TeamID:    p.TeamID,
					ContextID: contextID,
					CreatedAt: w.now,
				})
			}
		}
		if !samePairs(w.assignments, next) {
			w.reset(next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.RecordUnitMeasurement(ctx, mBalances)
	return balanced, nil
}

func samePairs(a, b []*model.Assignment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Pair() != b[i].Pair() {
			return false
		}
	}
	return true
}
