// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package posix

import (
	"sync/atomic"
	"time"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/deadline"
	"github.com/kolkov/threadkit/internal/threads/goid"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// mutex is a one-slot channel semaphore. owner and depth are written only
// by the goroutine holding the slot.
type mutex struct {
	kind      backend.Kind
	sem       chan struct{}
	owner     atomic.Int64
	depth     int
	destroyed atomic.Bool
}

// NewMutex returns a mutex of the given kind.
func (b *Backend) NewMutex(kind backend.Kind) (backend.Mutex, error) {
	if !kind.Valid() {
		return nil, status.Errorf(status.ErrError, "mutex: invalid kind %d", kind)
	}
	return &mutex{kind: kind, sem: make(chan struct{}, 1)}, nil
}

func (m *mutex) recursive() bool {
	return m.kind&backend.Recursive != 0
}

// reenter grants another level to a recursive owner.
func (m *mutex) reenter(self int64) bool {
	if m.recursive() && m.owner.Load() == self {
		m.depth++
		return true
	}
	return false
}

func (m *mutex) own(self int64) {
	m.owner.Store(self)
	m.depth = 1
}

// Lock blocks until the mutex is held. Relocking a non-recursive mutex
// from its owner blocks forever.
func (m *mutex) Lock() error {
	if m.destroyed.Load() {
		return status.Errorf(status.ErrError, "mutex: lock after destroy")
	}
	self := goid.Get()
	if m.reenter(self) {
		return nil
	}
	m.sem <- struct{}{}
	m.own(self)
	return nil
}

func (m *mutex) TryLock() error {
	if m.destroyed.Load() {
		return status.Errorf(status.ErrError, "mutex: trylock after destroy")
	}
	self := goid.Get()
	if m.reenter(self) {
		return nil
	}
	select {
	case m.sem <- struct{}{}:
		m.own(self)
		return nil
	default:
		return status.ErrBusy
	}
}

func (m *mutex) TimedLock(d time.Time) error {
	if m.destroyed.Load() {
		return status.Errorf(status.ErrError, "mutex: timedlock after destroy")
	}
	self := goid.Get()
	if m.reenter(self) {
		return nil
	}

	// An expired deadline still takes a free mutex.
	select {
	case m.sem <- struct{}{}:
		m.own(self)
		return nil
	default:
	}
	if deadline.Expired(d) {
		return status.ErrTimeout
	}

	t := time.NewTimer(time.Until(d))
	defer t.Stop()
	select {
	case m.sem <- struct{}{}:
		m.own(self)
		return nil
	case <-t.C:
		return status.ErrTimeout
	}
}

func (m *mutex) Held() bool {
	return m.owner.Load() == goid.Get()
}

func (m *mutex) Unlock() error {
	if !m.Held() {
		return status.Errorf(status.ErrError, "mutex: unlock by thread %d which does not hold it", goid.Get())
	}
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		<-m.sem
	}
	return nil
}

func (m *mutex) Destroy() error {
	if m.owner.Load() != 0 {
		return status.Errorf(status.ErrError, "mutex: destroy while locked")
	}
	if !m.destroyed.CompareAndSwap(false, true) {
		return status.Errorf(status.ErrError, "mutex: destroyed twice")
	}
	return nil
}
