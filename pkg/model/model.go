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

// Package model defines the judge assignment data model shared by the
// judgeassign engine, its storage and its API.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Unbounded is the MaxCapacity sentinel of a judge without a workload limit.
const Unbounded = -1

// Eligibility is the single eligibility state of a judge.
type Eligibility int

const (
	// Eligible judges take part in balancing.
	Eligible Eligibility = iota
	// Inactive judges keep their assignments but are skipped by the balancer.
	Inactive
	// PendingInvitation judges have not accepted their invitation yet.
	PendingInvitation
)

var eligibilityNames = map[Eligibility]string{
	Eligible:          "Eligible",
	Inactive:          "Inactive",
	PendingInvitation: "PendingInvitation",
}

func (e Eligibility) String() string {
	if n, ok := eligibilityNames[e]; ok {
		return n
	}
	return fmt.Sprintf("Eligibility(%d)", int(e))
}

// MarshalJSON encodes the eligibility by name.
func (e Eligibility) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON decodes an eligibility name.
func (e *Eligibility) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return e.UnmarshalText([]byte(s))
}

// UnmarshalText decodes an eligibility name, used by YAML rosters.
func (e *Eligibility) UnmarshalText(b []byte) error {
	for k, v := range eligibilityNames {
		if v == string(b) {
			*e = k
			return nil
		}
	}
	return fmt.Errorf("unknown eligibility %q", string(b))
}

// Verification is the verification state of a team.
type Verification int

const (
	Pending Verification = iota
	Verified
	Rejected
)

var verificationNames = map[Verification]string{
	Pending:  "Pending",
	Verified: "Verified",
	Rejected: "Rejected",
}

func (v Verification) String() string {
	if n, ok := verificationNames[v]; ok {
		return n
	}
	return fmt.Sprintf("Verification(%d)", int(v))
}

// MarshalJSON encodes the verification state by name.
func (v Verification) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a verification state name.
func (v *Verification) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return v.UnmarshalText([]byte(s))
}

// UnmarshalText decodes a verification state name.
func (v *Verification) UnmarshalText(b []byte) error {
	for k, n := range verificationNames {
		if n == string(b) {
			*v = k
			return nil
		}
	}
	return fmt.Errorf("unknown verification state %q", string(b))
}

// Judge is a read-only directory entry for an evaluator.
type Judge struct {
	ID           string      `json:"id" yaml:"id"`
	DisplayName  string      `json:"displayName" yaml:"displayName"`
	GivenName    string      `json:"givenName,omitempty" yaml:"givenName"`
	FamilyName   string      `json:"familyName,omitempty" yaml:"familyName"`
	Email        string      `json:"email" yaml:"email"`
	Eligibility  Eligibility `json:"eligibility" yaml:"eligibility"`
	// MaxCapacity is nil for a judge without a workload limit.
	MaxCapacity  *int        `json:"maxCapacity,omitempty" yaml:"maxCapacity"`
	Organization string      `json:"organization,omitempty" yaml:"organization"`
}

// Capacity returns the workload limit of the judge, or Unbounded when
// MaxCapacity is unset or negative.
func (j *Judge) Capacity() int {
	if j.MaxCapacity == nil || *j.MaxCapacity < 0 {
		return Unbounded
	}
	return *j.MaxCapacity
}

// Bounded reports whether the judge has a workload limit.
func (j *Judge) Bounded() bool {
	return j.Capacity() != Unbounded
}

// Limit returns a MaxCapacity of n teams.
func Limit(n int) *int {
	return &n
}

// Team is a read-only directory entry for a competing team.
type Team struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Verification Verification `json:"verification" yaml:"verification"`
	Affiliations []string     `json:"affiliations,omitempty" yaml:"affiliations"`
}

// Pair is one (judge, team) tuple.
type Pair struct {
	JudgeID string `json:"judgeId"`
	TeamID  string `json:"teamId"`
}

func (p Pair) String() string {
	return p.JudgeID + "/" + p.TeamID
}

// Assignment is a persisted pair within a context.
type Assignment struct {
	JudgeID   string    `json:"judgeId"`
	TeamID    string    `json:"teamId"`
	ContextID string    `json:"contextId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pair returns the (judge, team) tuple of the assignment.
func (a *Assignment) Pair() Pair {
	return Pair{JudgeID: a.JudgeID, TeamID: a.TeamID}
}

// MatrixRow is the derived view of one judge's assignments.
type MatrixRow struct {
	JudgeID         string      `json:"judgeId"`
	JudgeName       string      `json:"judgeName"`
	Eligibility     Eligibility `json:"eligibility"`
	CurrentLoad     int         `json:"currentLoad"`
	MaxCapacity     int         `json:"maxCapacity"`
	AssignedTeamIDs []string    `json:"assignedTeamIds"`
}

// Holds reports whether the row contains the team.
func (r *MatrixRow) Holds(teamID string) bool {
	for _, id := range r.AssignedTeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

// ConflictType classifies a Conflict.
type ConflictType int

const (
	Overload ConflictType = iota
	ConflictOfInterest
)

func (c ConflictType) String() string {
	switch c {
	case Overload:
		return "Overload"
	case ConflictOfInterest:
		return "ConflictOfInterest"
	}
	return fmt.Sprintf("ConflictType(%d)", int(c))
}

// MarshalJSON encodes the conflict type by name.
func (c ConflictType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a conflict type name.
func (c *ConflictType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, t := range []ConflictType{Overload, ConflictOfInterest} {
		if t.String() == s {
			*c = t
			return nil
		}
	}
	return fmt.Errorf("unknown conflict type %q", s)
}

// Conflict is a workload or ethics issue found in a matrix.
type Conflict struct {
	JudgeID string       `json:"judgeId"`
	Type    ConflictType `json:"type"`
	TeamID  string       `json:"teamId,omitempty"`
	Message string       `json:"message"`
}

// SkippedPair reports a pair that a batch operation did not apply.
type SkippedPair struct {
	Pair    Pair   `json:"pair"`
	Reason  Kind   `json:"reason"`
	Message string `json:"message,omitempty"`
}

// BulkResult is the partial success outcome of a batch create.
type BulkResult struct {
	Applied []Pair        `json:"applied"`
	Skipped []SkippedPair `json:"skipped"`
}

// SkippedRow reports an import row that was not applied. Row is the 1-based
// line number in the imported file, the header being line 1.
type SkippedRow struct {
	Row     int    `json:"row"`
	Judge   string `json:"judge"`
	Team    string `json:"team"`
	Reason  Kind   `json:"reason"`
	Message string `json:"message,omitempty"`
}

// ImportReport is the outcome of a batch import.
type ImportReport struct {
	BatchID       string       `json:"batchId"`
	TotalRows     int          `json:"totalRows"`
	ResolvedCount int          `json:"resolvedCount"`
	Applied       []Pair       `json:"applied"`
	Skipped       []SkippedRow `json:"skipped"`
}

// MatrixReport is a matrix together with the conflicts found in it.
type MatrixReport struct {
	Matrix    []MatrixRow `json:"matrix"`
	Conflicts []Conflict  `json:"conflicts"`
}
