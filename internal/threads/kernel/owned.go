// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"sync/atomic"

	"github.com/kolkov/threadkit/internal/threads/goid"
)

// ownedLock is the recursion-counting core shared by CriticalSection and
// Mutant. Both native objects grant reentry to their owner unconditionally,
// which is exactly the behavior the emulated non-recursive mutex has to
// work around.
//
// The one-slot channel is the actual exclusion; owner and depth record who
// holds it. depth is only touched by the goroutine that currently owns sem.
type ownedLock struct {
	sem   chan struct{}
	owner atomic.Int64
	depth int32
}

func newOwnedLock() ownedLock {
	return ownedLock{sem: make(chan struct{}, 1)}
}

// acquire takes the lock for the calling goroutine, waiting at most ms
// milliseconds (0 polls, Infinite waits forever).
func (l *ownedLock) acquire(ms uint32) bool {
	self := goid.Get()
	if l.owner.Load() == self {
		l.depth++
		return true
	}

	if ms == 0 {
		select {
		case l.sem <- struct{}{}:
		default:
			return false
		}
	} else {
		tc, stop := timer(ms)
		defer stop()
		select {
		case l.sem <- struct{}{}:
		case <-tc:
			return false
		}
	}

	l.owner.Store(self)
	l.depth = 1
	return true
}

// release drops one level of ownership held by the calling goroutine.
func (l *ownedLock) release() error {
	if l.owner.Load() != goid.Get() {
		return ErrNotOwner
	}
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		<-l.sem
	}
	return nil
}

// ownedBy reports whether the calling goroutine holds the lock.
func (l *ownedLock) ownedBy(id int64) bool {
	return l.owner.Load() == id
}
