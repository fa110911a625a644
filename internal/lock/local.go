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
)

// Local is an in-process Locker. Each context owns a one-slot channel; a
// caller holds the section while its token sits in the channel. A slot lives
// only while someone holds or waits for it.
type Local struct {
	budget time.Duration

	m     sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates a Local locker. A caller gives up with ErrContention after
// waiting for budget; a zero budget waits until ctx is done.
func NewLocal(budget time.Duration) *Local {
	return &Local{
		budget: budget,
		slots:  make(map[string]*slot),
	}
}

func (l *Local) join(contextID string) *slot {
	l.m.Lock()
	defer l.m.Unlock()
	s, ok := l.slots[contextID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[contextID] = s
	}
	s.refs++
	return s
}

func (l *Local) leave(contextID string, s *slot) {
	l.m.Lock()
	defer l.m.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, contextID)
	}
}

// Acquire enters the exclusive section of the context.
func (l *Local) Acquire(ctx context.Context, contextID string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	s := l.join(contextID)

	var expired <-chan time.Time
	if l.budget > 0 {
		t := time.NewTimer(l.budget)
		defer t.Stop()
		expired = t.C
	}

	var err error
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		err = ctx.Err()
	case <-expired:
		err = ErrContention
	}
	observeWait(ctx, start, err)
	if err != nil {
		l.leave(contextID, s)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.leave(contextID, s)
		})
	}, nil
}
