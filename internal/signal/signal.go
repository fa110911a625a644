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

// Package signal waits for the process to be asked to terminate.
package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// New waits for SIGINT or SIGTERM, the latter being what orchestrators send
// when they want a server to stop.
// waitForFunc() blocks until a signal arrives or terminateFunc() is called.
// terminateFunc() may be called any number of times.
func New() (waitForFunc func(), terminateFunc func()) {
	notified := make(chan os.Signal, 1)
	signal.Notify(notified, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once
	terminateFunc = func() {
		once.Do(func() {
			signal.Stop(notified)
			close(done)
		})
	}
	go func() {
		select {
		case <-notified:
			terminateFunc()
		case <-done:
		}
	}()

	waitForFunc = func() {
		<-done
	}
	return waitForFunc, terminateFunc
}
