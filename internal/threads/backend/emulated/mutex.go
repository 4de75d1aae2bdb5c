// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulated

import (
	"sync/atomic"
	"time"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/deadline"
	"github.com/kolkov/threadkit/internal/threads/kernel"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// mutex is backed by a critical section, or by a kernel mutant for the
// Timed kind so TimedLock can wait natively. Both grant reentry to their
// owner; for non-recursive kinds alreadyLocked turns that reentry into the
// expected deadlock.
type mutex struct {
	b    *Backend
	kind backend.Kind

	cs *kernel.CriticalSection
	mt *kernel.Mutant

	alreadyLocked atomic.Bool
	destroyed     atomic.Bool
}

// NewMutex returns a mutex of the given kind.
func (b *Backend) NewMutex(kind backend.Kind) (backend.Mutex, error) {
	if !kind.Valid() {
		return nil, status.Errorf(status.ErrError, "mutex: invalid kind %d", kind)
	}

	m := &mutex{b: b, kind: kind}
	if kind&backend.Timed != 0 {
		mt, err := kernel.CreateMutex()
		if err != nil {
			return nil, status.Errorf(status.ErrNoMemory, "mutex: CreateMutex: %v", err)
		}
		m.mt = mt
	} else {
		m.cs = kernel.InitializeCriticalSection()
	}
	return m, nil
}

func (m *mutex) recursive() bool {
	return m.kind&backend.Recursive != 0
}

func (m *mutex) enter() {
	if m.mt != nil {
		m.mt.Wait(kernel.Infinite)
		return
	}
	m.cs.Enter()
}

func (m *mutex) tryEnter() bool {
	if m.mt != nil {
		return m.mt.Wait(0) == kernel.WaitObject0
	}
	return m.cs.TryEnter()
}

func (m *mutex) leave() error {
	if m.mt != nil {
		return m.mt.Release()
	}
	return m.cs.Leave()
}

func (m *mutex) ownedBySelf() bool {
	self := kernel.GetCurrentThreadId()
	if m.mt != nil {
		return m.mt.OwnedBy(self)
	}
	return m.cs.OwnedBy(self)
}

func (m *mutex) checkLive(op string) error {
	if m.destroyed.Load() {
		return status.Errorf(status.ErrError, "mutex: %s after destroy", op)
	}
	return nil
}

// Lock enters the native object. For a non-recursive mutex the caller may
// have got in only because it already owns the object; it then waits in
// 1ms naps for a release that cannot come from anyone else.
func (m *mutex) Lock() error {
	if err := m.checkLive("lock"); err != nil {
		return err
	}
	m.enter()
	if m.recursive() {
		return nil
	}

	if m.alreadyLocked.Load() {
		start := time.Now()
		warned := false
		for m.alreadyLocked.Load() {
			kernel.Sleep(1)
			if !warned && m.b.warnAfter > 0 && time.Since(start) >= m.b.warnAfter {
				m.b.log.Warn("thread is blocked relocking a non-recursive mutex it holds",
					"thread", kernel.GetCurrentThreadId(), "waited", time.Since(start))
				warned = true
			}
		}
	}
	m.alreadyLocked.Store(true)
	return nil
}

func (m *mutex) TryLock() error {
	if err := m.checkLive("trylock"); err != nil {
		return err
	}
	if !m.tryEnter() {
		return status.ErrBusy
	}
	if m.recursive() {
		return nil
	}
	if m.alreadyLocked.Load() {
		// Self-relock: undo the reentry the native object granted.
		_ = m.leave()
		return status.ErrBusy
	}
	m.alreadyLocked.Store(true)
	return nil
}

// TimedLock waits on the mutant for the Timed kind and polls TryLock for
// every other kind.
func (m *mutex) TimedLock(d time.Time) error {
	if err := m.checkLive("timedlock"); err != nil {
		return err
	}
	if m.mt == nil {
		return deadline.Poll(d, m.TryLock)
	}

	switch r := m.mt.Wait(deadline.Millis(d)); r {
	case kernel.WaitObject0:
	case kernel.WaitTimeout:
		return status.ErrTimeout
	default:
		return status.Errorf(status.ErrError, "mutex: wait failed: %#x", uint32(r))
	}

	if m.recursive() {
		return nil
	}
	if m.alreadyLocked.Load() {
		// Self-relock of a timed mutex: the holder is the caller, so the
		// only possible outcome is a timeout at d.
		_ = m.leave()
		time.Sleep(deadline.Remaining(d))
		return status.ErrTimeout
	}
	m.alreadyLocked.Store(true)
	return nil
}

func (m *mutex) Held() bool {
	return m.ownedBySelf()
}

func (m *mutex) Unlock() error {
	if !m.ownedBySelf() {
		return status.Errorf(status.ErrError, "mutex: unlock by thread %d which does not hold it",
			kernel.GetCurrentThreadId())
	}
	if !m.recursive() {
		m.alreadyLocked.Store(false)
	}
	if err := m.leave(); err != nil {
		return status.Errorf(status.ErrError, "mutex: unlock: %v", err)
	}
	return nil
}

func (m *mutex) Destroy() error {
	if !m.destroyed.CompareAndSwap(false, true) {
		return status.Errorf(status.ErrError, "mutex: destroyed twice")
	}

	var err error
	if m.mt != nil {
		err = m.mt.Close()
	} else {
		err = m.cs.Delete()
	}
	if err != nil {
		return status.Errorf(status.ErrError, "mutex: destroy: %v", err)
	}
	return nil
}
