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

package lock

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/redigo"
	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix      = "lock:context:"
	releaseTimeout = 5 * time.Second
)

// Redis is a Locker backed by a redsync mutex per context. Retries between
// attempts follow the configured exponential backoff rather than redsync's
// own retry loop.
type Redis struct {
	rs         *redsync.Redsync
	expiry     time.Duration
	newBackoff func() backoff.BackOff
}

// NewRedis creates a Redis locker on top of pool. The section expires after
// expiry if the holder disappears without releasing it.
func NewRedis(pool *redis.Pool, expiry time.Duration, newBackoff func() backoff.BackOff) *Redis {
	return &Redis{
		rs:         redsync.New(redigo.NewPool(pool)),
		expiry:     expiry,
		newBackoff: newBackoff,
	}
}

// Acquire enters the exclusive section of the context.
func (r *Redis) Acquire(ctx context.Context, contextID string) (Release, error) {
	start := time.Now()
	mutex := r.rs.NewMutex(keyPrefix+contextID, redsync.WithExpiry(r.expiry), redsync.WithTries(1))

	operation := func() error {
		err := mutex.LockContext(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return ErrContention
		}
		return backoff.Permanent(errors.Wrapf(err, "failed to acquire exclusive section of context %s", contextID))
	}

	err := backoff.Retry(operation, backoff.WithContext(r.newBackoff(), ctx))
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	observeWait(ctx, start, err)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			uctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if ok, err := mutex.UnlockContext(uctx); !ok || err != nil {
				lockLogger.WithFields(logrus.Fields{
					"error":   err,
					"context": contextID,
				}).Warning("failed to release exclusive section, it will expire on its own")
			}
		})
	}, nil
}
