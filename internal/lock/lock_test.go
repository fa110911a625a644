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
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"judgeassign.dev/judgeassign/internal/expbo"
	"judgeassign.dev/judgeassign/internal/statestore"
	statestoreTesting "judgeassign.dev/judgeassign/internal/statestore/testing"
	utilTesting "judgeassign.dev/judgeassign/internal/util/testing"
)

func TestLocalSerializes(t *testing.T) {
	require := require.New(t)
	l := NewLocal(0)
	ctx := utilTesting.NewContext(t)

	var wg sync.WaitGroup
	var m sync.Mutex
	inside, maxInside := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "c1")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			m.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			m.Unlock()
			time.Sleep(time.Millisecond)
			m.Lock()
			inside--
			m.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(1, maxInside)
}

func TestLocalContention(t *testing.T) {
	assert := assert.New(t)
	l := NewLocal(20 * time.Millisecond)
	ctx := utilTesting.NewContext(t)

	release, err := l.Acquire(ctx, "c1")
	assert.Nil(err)

	_, err = l.Acquire(ctx, "c1")
	assert.Equal(ErrContention, err)

	// Other contexts are independent.
	other, err := l.Acquire(ctx, "c2")
	assert.Nil(err)
	other()

	release()
	release()
	again, err := l.Acquire(ctx, "c1")
	assert.Nil(err)
	again()
}

func TestLocalDeadline(t *testing.T) {
	assert := assert.New(t)
	l := NewLocal(0)
	ctx := utilTesting.NewContext(t)

	release, err := l.Acquire(ctx, "c1")
	assert.Nil(err)
	defer release()

	dctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(dctx, "c1")
	assert.Equal(context.DeadlineExceeded, err)
}

func TestRedisLocker(t *testing.T) {
	require := require.New(t)
	cfg := viper.New()
	statestoreTesting.New(t, cfg)
	cfg.Set("lock.mode", ModeRedis)
	pool := statestore.NewPool(cfg)
	defer pool.Close()

	locker, err := New(cfg, pool)
	require.Nil(err)
	require.IsType(&Redis{}, locker)
	ctx := utilTesting.NewContext(t)

	release, err := locker.Acquire(ctx, "c1")
	require.Nil(err)

	_, err = locker.Acquire(ctx, "c1")
	require.Equal(ErrContention, err)

	other, err := locker.Acquire(ctx, "c2")
	require.Nil(err)
	other()

	release()
	again, err := locker.Acquire(ctx, "c1")
	require.Nil(err)
	again()
}

func TestRedisLockerDeadline(t *testing.T) {
	require := require.New(t)
	cfg := viper.New()
	statestoreTesting.New(t, cfg)
	cfg.Set("lock.backoff", "[0.005 0.05] *1.5 ~0.2 <30")
	pool := statestore.NewPool(cfg)
	defer pool.Close()

	locker := NewRedis(pool, time.Minute, func() backoff.BackOff {
		b, err := expbo.FromConfig(cfg, "lock.backoff", defaultBackoff)
		require.Nil(err)
		return b
	})
	ctx := utilTesting.NewContext(t)

	release, err := locker.Acquire(ctx, "c1")
	require.Nil(err)
	defer release()

	dctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(dctx, "c1")
	require.Equal(context.DeadlineExceeded, err)
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	cfg := viper.New()
	l, err := New(cfg, nil)
	assert.Nil(err)
	assert.IsType(&Local{}, l)

	cfg.Set("lock.mode", ModeRedis)
	_, err = New(cfg, nil)
	assert.NotNil(err)

	cfg.Set("lock.mode", "zookeeper")
	_, err = New(cfg, nil)
	assert.NotNil(err)

	cfg.Set("lock.mode", ModeLocal)
	cfg.Set("lock.backoff", "[bad")
	_, err = New(cfg, nil)
	assert.NotNil(err)
}

func (l *Local) slotCount() int {
	l.m.Lock()
	defer l.m.Unlock()
	return len(l.slots)
}

func TestLocalDropsIdleSlots(t *testing.T) {
	require := require.New(t)
	l := NewLocal(20 * time.Millisecond)
	ctx := utilTesting.NewContext(t)

	for _, id := range []string{"c1", "c2", "c3"} {
		release, err := l.Acquire(ctx, id)
		require.Nil(err)
		require.Equal(1, l.slotCount())
		release()
		release()
		require.Equal(0, l.slotCount())
	}

	release, err := l.Acquire(ctx, "c1")
	require.Nil(err)
	_, err = l.Acquire(ctx, "c1")
	require.Equal(ErrContention, err)
	// The holder keeps the slot after a waiter gives up.
	require.Equal(1, l.slotCount())

	release()
	require.Equal(0, l.slotCount())

	// A waiter keeps the slot alive across the hand-over.
	w := NewLocal(0)
	held, err := w.Acquire(ctx, "c1")
	require.Nil(err)
	acquired := make(chan Release)
	go func() {
		next, err := w.Acquire(ctx, "c1")
		if err != nil {
			t.Error(err)
			close(acquired)
			return
		}
		acquired <- next
	}()
	held()
	next, ok := <-acquired
	require.True(ok)
	require.Equal(1, w.slotCount())
	next()
	require.Equal(0, w.slotCount())
}
