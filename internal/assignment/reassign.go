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

	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
	"judgeassign.dev/judgeassign/internal/telemetry"
	"judgeassign.dev/judgeassign/pkg/model"
)

// Reassign moves teamID from one judge to another in a single commit. If the
// commit fails, the source keeps the team.
func (s *Store) Reassign(ctx context.Context, contextID, teamID, fromJudgeID, toJudgeID string) error {
	ctx, span := trace.StartSpan(ctx, "assignment.Store.Reassign")
	defer span.End()

	from := model.Pair{JudgeID: fromJudgeID, TeamID: teamID}
	to := model.Pair{JudgeID: toJudgeID, TeamID: teamID}

	err := s.mutate(ctx, contextID, func(w *working) error {
		if !w.has(from) {
			return newError(model.SourceMismatch, "judge %s does not hold team %s", fromJudgeID, teamID)
		}
		if w.has(to) {
			return newError(model.DuplicateAssignment, "judge %s already holds team %s", toJudgeID, teamID)
		}
		if err := w.validate(to); err != nil {
			return err
		}
		w.remove(from)
		w.add(to)
		return nil
	})
	if err != nil {
		return err
	}

	telemetry.RecordUnitMeasurement(ctx, mReassignments)
	logger.WithFields(logrus.Fields{
		"context": contextID,
		"team":    teamID,
		"from":    fromJudgeID,
		"to":      toJudgeID,
	}).Info("team reassigned")
	return nil
}
