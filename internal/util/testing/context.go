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

// Package testing provides utility methods for testing.
package testing

import (
	"context"
	"testing"
	"time"
)

// DefaultTimeout bounds a test context when the test binary has no deadline.
const DefaultTimeout = 30 * time.Second

// NewContext returns a context for calling judgeassign services from unit
// tests. It expires shortly before the test binary deadline, or after
// DefaultTimeout, and is canceled when the test finishes.
func NewContext(t *testing.T) context.Context {
	deadline, ok := t.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	} else {
		deadline = deadline.Add(-time.Second)
	}
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	t.Cleanup(cancel)
	return ctx
}
