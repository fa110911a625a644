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
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/pkg/model"
)

var exportHeader = []string{"Judge ID", "Judge Name", "Status", "Load", "Max Load", "Assigned Teams"}

// ExportMatrix renders rows as CSV. Teams are listed by name, falling back to
// the id of teams that left the directory.
func ExportMatrix(rows []model.MatrixRow, snapshot *directory.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, errors.Wrap(err, "failed to write export header")
	}

	for _, row := range rows {
		maxLoad := "unbounded"
		if row.MaxCapacity != model.Unbounded {
			maxLoad = strconv.Itoa(row.MaxCapacity)
		}
		teams := make([]string, 0, len(row.AssignedTeamIDs))
		for _, id := range row.AssignedTeamIDs {
			if t, ok := snapshot.Team(id); ok && t.Name != "" {
				teams = append(teams, t.Name)
				continue
			}
			teams = append(teams, id)
		}
		record := []string{
			row.JudgeID,
			row.JudgeName,
			row.Eligibility.String(),
			strconv.Itoa(row.CurrentLoad),
			maxLoad,
			strings.Join(teams, ";"),
		}
		if err := w.Write(record); err != nil {
			return nil, errors.Wrapf(err, "failed to write export row for judge %s", row.JudgeID)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to flush export")
	}
	return buf.Bytes(), nil
}
