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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/pkg/model"
)

func TestDetectOverload(t *testing.T) {
	assert := assert.New(t)
	snapshot := directory.NewSnapshot(testContext, nil, nil)

	atLimit := row("j1", model.Eligible, "a", "b")
	atLimit.MaxCapacity = 2
	over := row("j2", model.Eligible, "a", "b", "c")
	over.MaxCapacity = 2
	unbounded := row("j3", model.Eligible, "a", "b", "c", "d")
	zero := row("j4", model.Eligible)
	zero.MaxCapacity = 0

	got := Detect([]model.MatrixRow{atLimit, over, unbounded, zero}, snapshot)
	assert.Len(got, 1)
	assert.Equal("j2", got[0].JudgeID)
	assert.Equal(model.Overload, got[0].Type)
	assert.Contains(got[0].Message, "3")
	assert.Contains(got[0].Message, "2")
}

func TestJudgeWithoutCapacityIsUnbounded(t *testing.T) {
	assert := assert.New(t)

	decoded := []*model.Judge{}
	err := json.Unmarshal([]byte(`[{"id":"z","eligibility":"Eligible"},{"id":"y","eligibility":"Eligible","maxCapacity":0}]`), &decoded)
	assert.Nil(err)
	judges := append(decoded, &model.Judge{ID: "x", Eligibility: model.Eligible})
	snapshot := directory.NewSnapshot(testContext, judges, testTeams())

	rows := BuildMatrix([]*model.Assignment{
		{JudgeID: "z", TeamID: "a", ContextID: testContext},
		{JudgeID: "y", TeamID: "b", ContextID: testContext},
		{JudgeID: "x", TeamID: "c", ContextID: testContext},
	}, snapshot)
	assert.Equal(model.Unbounded, rows[0].MaxCapacity)
	assert.Equal(0, rows[1].MaxCapacity)
	assert.Equal(model.Unbounded, rows[2].MaxCapacity)

	got := Detect(rows, snapshot)
	assert.Len(got, 1)
	assert.Equal("y", got[0].JudgeID)
	assert.Equal(model.Overload, got[0].Type)
}

func TestDetectConflictOfInterest(t *testing.T) {
	assert := assert.New(t)
	snapshot := directory.NewSnapshot(testContext, testJudges(), testTeams())

	rows := []model.MatrixRow{
		row("j2", model.Eligible, "e", "a"),
		row("j1", model.Eligible, "e"),
		// j3 has no organization.
		row("j3", model.Eligible, "e"),
	}
	got := Detect(rows, snapshot)
	assert.Equal([]model.Conflict{
		{
			JudgeID: "j2",
			Type:    model.ConflictOfInterest,
			TeamID:  "e",
			Message: `judge j2 and team e share affiliation "Navy"`,
		},
	}, got)
}

func TestDetectOrdering(t *testing.T) {
	assert := assert.New(t)
	judges := testJudges()
	judges[1].MaxCapacity = model.Limit(1)
	teams := testTeams()
	teams[0].Affiliations = []string{"navy"}
	snapshot := directory.NewSnapshot(testContext, judges, teams)

	j2 := row("j2", model.Eligible, "e", "a")
	j2.MaxCapacity = 1
	j1 := row("j1", model.Eligible)
	j1.MaxCapacity = 0

	got := Detect([]model.MatrixRow{j2, j1}, snapshot)
	var summary []string
	for _, c := range got {
		summary = append(summary, c.JudgeID+"/"+c.Type.String()+"/"+c.TeamID)
	}
	assert.Equal([]string{
		"j2/Overload/",
		"j2/ConflictOfInterest/a",
		"j2/ConflictOfInterest/e",
	}, summary)
}

func TestDetectEmpty(t *testing.T) {
	assert := assert.New(t)
	got := Detect(nil, directory.NewSnapshot(testContext, nil, nil))
	assert.NotNil(got)
	assert.Empty(got)
}

func TestBuildMatrix(t *testing.T) {
	assert := assert.New(t)
	judges := testJudges()
	judges[2].Eligibility = model.Inactive
	snapshot := directory.NewSnapshot(testContext, judges, testTeams())

	assignments := []*model.Assignment{
		{JudgeID: "j2", TeamID: "b"},
		{JudgeID: "gone", TeamID: "c"},
		{JudgeID: "j2", TeamID: "a"},
		{JudgeID: "j2", TeamID: "b"},
	}
	rows := BuildMatrix(assignments, snapshot)
	assert.Len(rows, 4)

	assert.Equal("j1", rows[0].JudgeID)
	assert.Equal("Ada Lovelace", rows[0].JudgeName)
	assert.Equal(0, rows[0].CurrentLoad)
	assert.Equal([]string{}, rows[0].AssignedTeamIDs)

	assert.Equal([]string{"b", "a"}, rows[1].AssignedTeamIDs)
	assert.Equal(2, rows[1].CurrentLoad)

	assert.Equal(model.Inactive, rows[2].Eligibility)
	assert.Equal(2, rows[2].MaxCapacity)

	assert.Equal("gone", rows[3].JudgeID)
	assert.Equal(model.Inactive, rows[3].Eligibility)
	assert.Equal(model.Unbounded, rows[3].MaxCapacity)
	assert.Equal([]string{"c"}, rows[3].AssignedTeamIDs)
}
