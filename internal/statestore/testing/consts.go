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

package testing

import "time"

// Settings applied by New to every in-memory store. They keep pools small and
// retries short so tests that exercise contention finish quickly.
const (
	PoolMaxIdle            = 5
	PoolMaxActive          = 5
	PoolIdleTimeout        = 10 * time.Second
	PoolHealthCheckTimeout = 100 * time.Millisecond
	LockExpiry             = 2 * time.Second
	LockBackoff            = "[0.005 0.05] *1.5 ~0.2 <1"
	KeyPrefix              = "test:"
)
