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
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/internal/set"
	"judgeassign.dev/judgeassign/pkg/model"
)

// Detect reports Overload and ConflictOfInterest conflicts in rows. Output is
// ordered by judge id, then type (Overload first), then team id.
func Detect(rows []model.MatrixRow, snapshot *directory.Snapshot) []model.Conflict {
	fold := cases.Fold()
	conflicts := []model.Conflict{}

	for _, row := range rows {
		if row.MaxCapacity != model.Unbounded && row.CurrentLoad > row.MaxCapacity {
			conflicts = append(conflicts, model.Conflict{
				JudgeID: row.JudgeID,
				Type:    model.Overload,
				Message: fmt.Sprintf("judge %s holds %d teams, above the maximum of %d", row.JudgeID, row.CurrentLoad, row.MaxCapacity),
			})
		}

		judge, ok := snapshot.Judge(row.JudgeID)
		if !ok {
			continue
		}
		org := foldTags(fold, []string{judge.Organization})
		if len(org) == 0 {
			continue
		}
		for _, teamID := range row.AssignedTeamIDs {
			team, ok := snapshot.Team(teamID)
			if !ok {
				continue
			}
			shared := set.Intersection(org, foldTags(fold, team.Affiliations))
			if len(shared) == 0 {
				continue
			}
			conflicts = append(conflicts, model.Conflict{
				JudgeID: row.JudgeID,
				Type:    model.ConflictOfInterest,
				TeamID:  teamID,
				Message: fmt.Sprintf("judge %s and team %s share affiliation %q", row.JudgeID, teamID, judge.Organization),
			})
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.JudgeID != b.JudgeID {
			return a.JudgeID < b.JudgeID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.TeamID < b.TeamID
	})
	return conflicts
}

func foldTags(fold cases.Caser, tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, fold.String(t))
	}
	return out
}
