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

package model

import (
	"encoding/json"
	"fmt"
)

// Kind classifies engine failures.
type Kind int

const (
	// KindUnknown is the zero value, used for unclassified failures.
	KindUnknown Kind = iota
	// UnknownEntity means an id or identifier is absent from the directory snapshot.
	UnknownEntity
	// DuplicateAssignment means the pair already exists.
	DuplicateAssignment
	// SourceMismatch means a reassignment source does not hold the team.
	SourceMismatch
	// LockContention means the context's exclusive section could not be acquired.
	LockContention
	// Timeout means the caller's deadline expired.
	Timeout
	// PersistenceFailure means the storage layer failed; no change was committed.
	PersistenceFailure
	// InvalidRow means an import row could not be parsed.
	InvalidRow
	// InvalidArgument means a malformed request payload.
	InvalidArgument
)

var kindNames = map[Kind]string{
	KindUnknown:         "Unknown",
	UnknownEntity:       "UnknownEntity",
	DuplicateAssignment: "DuplicateAssignment",
	SourceMismatch:      "SourceMismatch",
	LockContention:      "LockContention",
	Timeout:             "Timeout",
	PersistenceFailure:  "PersistenceFailure",
	InvalidRow:          "InvalidRow",
	InvalidArgument:     "InvalidArgument",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for kk, n := range kindNames {
		if n == s {
			*k = kk
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", s)
}
