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

package signal

import (
	"testing"
	"time"
)

const defaultTimeout = time.Second

func TestOneSignal(t *testing.T) {
	wait, terminate := New()
	if completes(wait, 50*time.Millisecond) {
		t.Fatal("wait should block until terminate() is called")
	}
	terminate()
	if !completes(wait, defaultTimeout) {
		t.Fatal("wait should have completed because terminate() was called")
	}
	// Repeated calls are harmless.
	terminate()
	if !completes(wait, defaultTimeout) {
		t.Fatal("wait should keep returning after termination")
	}
}

func TestTwoSignals(t *testing.T) {
	wait, terminate := New()
	wait2, terminate2 := New()
	terminate()

	if !completes(wait, defaultTimeout) {
		t.Error("wait should have completed because terminate() was called")
	}
	if completes(wait2, 50*time.Millisecond) {
		t.Error("wait2 should block because terminate2() was not called")
	}
	terminate2()
	if !completes(wait2, defaultTimeout) {
		t.Error("wait2 should have completed because terminate2() was called")
	}
}

func completes(wait func(), timeout time.Duration) bool {
	waiter := make(chan struct{})
	go func() {
		wait()
		close(waiter)
	}()

	select {
	case <-waiter:
		return true
	case <-time.After(timeout):
		return false
	}
}
