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

// Package lock provides the per-context exclusive sections that serialize
// assignment mutations. Different contexts never contend with each other.
package lock

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"judgeassign.dev/judgeassign/internal/config"
	"judgeassign.dev/judgeassign/internal/consts"
	"judgeassign.dev/judgeassign/internal/expbo"
	"judgeassign.dev/judgeassign/internal/telemetry"
)

const (
	// ModeLocal serializes callers inside a single process.
	ModeLocal = "local"
	// ModeRedis serializes callers across replicas sharing one Redis.
	ModeRedis = "redis"

	defaultBackoff = "[0.010 0.250] *2 ~0.2 <5"
	defaultExpiry  = 30 * time.Second
)

var (
	// ErrContention is returned when the retry budget is exhausted while another
	// caller holds the exclusive section.
	ErrContention = errors.New("exclusive section is held by another caller")

	lockLogger = logrus.WithFields(logrus.Fields{
		"app":       "judgeassign",
		"component": "lock",
	})

	mLockWaitMs      = telemetry.HistogramWithBounds("lock/waitlatency", "time spent waiting for an exclusive section", "ms", telemetry.HistogramBounds)
	mLockContentions = telemetry.Counter("lock/contentioncount", "number of exclusive section acquisitions that gave up")
)

// Release leaves an exclusive section. It is safe to call more than once.
type Release func()

// Locker hands out exclusive sections keyed by context id.
type Locker interface {
	// Acquire blocks until the caller owns the context's exclusive section, the
	// retry budget runs out (ErrContention) or ctx is done (ctx.Err()).
	Acquire(ctx context.Context, contextID string) (Release, error)
}

// New creates the Locker selected by lock.mode. Redis mode shares the given
// pool with the state store.
func New(cfg config.View, pool *redis.Pool) (Locker, error) {
	bo, err := expbo.FromConfig(cfg, consts.LockBackoff, defaultBackoff)
	if err != nil {
		return nil, err
	}

	mode := ModeLocal
	if cfg.IsSet(consts.LockMode) {
		mode = cfg.GetString(consts.LockMode)
	}

	switch mode {
	case ModeLocal:
		return NewLocal(bo.MaxElapsedTime), nil
	case ModeRedis:
		if pool == nil {
			return nil, errors.New("lock mode redis requires a redis pool")
		}
		expiry := defaultExpiry
		if cfg.IsSet(consts.LockExpiry) {
			expiry = cfg.GetDuration(consts.LockExpiry)
		}
		return NewRedis(pool, expiry, func() backoff.BackOff {
			b := *bo
			b.Reset()
			return &b
		}), nil
	}
	return nil, errors.Errorf("unknown lock mode %q, expected %q or %q", mode, ModeLocal, ModeRedis)
}

func observeWait(ctx context.Context, start time.Time, err error) {
	telemetry.RecordNUnitMeasurement(ctx, mLockWaitMs, time.Since(start).Milliseconds())
	if errors.Is(err, ErrContention) {
		telemetry.RecordUnitMeasurement(ctx, mLockContentions)
	}
}
