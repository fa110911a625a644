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
	"judgeassign.dev/judgeassign/pkg/model"
)

// Balance redistributes every team held by an Eligible judge evenly across the
// Eligible judges. Rows of other judges are returned untouched, and so is the
// whole matrix when no judge is Eligible.
//
// The pool is read column by column (the first team of each active row, then
// the second, ...) and dealt round-robin from the first active judge, so a
// balanced matrix is a fixed point. A judge that already received a team in
// the new distribution is skipped for it; a team every active judge already
// holds is dropped as a duplicate.
//
// The pool is deliberately not read row by row. With J1=[A,B,C], J2=[D,E]
// and J3=[F,G] the matrix is already even and comes back unchanged, where a
// row-by-row pool would deal {A,D,G}, {B,E}, {C,F} and reshuffle a balanced
// matrix on every run.
func Balance(rows []model.MatrixRow) []model.MatrixRow {
	out := cloneRows(rows)

	var active []int
	for i := range out {
		if out[i].Eligibility == model.Eligible {
			active = append(active, i)
		}
	}
	if len(active) == 0 {
		return out
	}

	var pool []string
	for depth := 0; ; depth++ {
		more := false
		for _, i := range active {
			if depth < len(out[i].AssignedTeamIDs) {
				pool = append(pool, out[i].AssignedTeamIDs[depth])
				more = true
			}
		}
		if !more {
			break
		}
	}

	for _, i := range active {
		out[i].AssignedTeamIDs = []string{}
	}

	next := 0
	for _, teamID := range pool {
		for k := 0; k < len(active); k++ {
			slot := (next + k) % len(active)
			row := &out[active[slot]]
			if row.Holds(teamID) {
				continue
			}
			row.AssignedTeamIDs = append(row.AssignedTeamIDs, teamID)
			next = (slot + 1) % len(active)
			break
		}
	}

	for _, i := range active {
		out[i].CurrentLoad = len(out[i].AssignedTeamIDs)
	}
	return out
}
