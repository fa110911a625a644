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

// Package assignment is the judge assignment engine: it owns the judge/team
// pairs of each context and provides matrix views, balancing, conflict
// detection, batch import and reassignment on top of them.
package assignment

import (
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/pkg/model"
)

// BuildMatrix derives one row per directory judge, in directory order. Judges
// that still hold assignments but left the directory are appended as Inactive
// rows so no pair is ever hidden.
func BuildMatrix(assignments []*model.Assignment, snapshot *directory.Snapshot) []model.MatrixRow {
	rows := make([]model.MatrixRow, 0, len(snapshot.Judges))
	byJudge := make(map[string]int, len(snapshot.Judges))

	for _, j := range snapshot.Judges {
		if _, ok := byJudge[j.ID]; ok {
			continue
		}
		byJudge[j.ID] = len(rows)
		rows = append(rows, model.MatrixRow{
			JudgeID:         j.ID,
			JudgeName:       j.DisplayName,
			Eligibility:     j.Eligibility,
			MaxCapacity:     j.Capacity(),
			AssignedTeamIDs: []string{},
		})
	}

	for _, a := range assignments {
		i, ok := byJudge[a.JudgeID]
		if !ok {
			i = len(rows)
			byJudge[a.JudgeID] = i
			rows = append(rows, model.MatrixRow{
				JudgeID:         a.JudgeID,
				JudgeName:       a.JudgeID,
				Eligibility:     model.Inactive,
				MaxCapacity:     model.Unbounded,
				AssignedTeamIDs: []string{},
			})
		}
		if rows[i].Holds(a.TeamID) {
			continue
		}
		rows[i].AssignedTeamIDs = append(rows[i].AssignedTeamIDs, a.TeamID)
	}

	for i := range rows {
		rows[i].CurrentLoad = len(rows[i].AssignedTeamIDs)
	}
	return rows
}

func cloneRows(rows []model.MatrixRow) []model.MatrixRow {
	out := make([]model.MatrixRow, len(rows))
	for i, r := range rows {
		out[i] = r
		out[i].AssignedTeamIDs = append([]string{}, r.AssignedTeamIDs...)
	}
	return out
}
