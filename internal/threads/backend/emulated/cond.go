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

const (
	evOne = 0 // auto-reset, released by Signal
	evAll = 1 // manual-reset, released by Broadcast
)

// cond is a condition variable made of two events and a waiter count.
//
// A waiter registers in waiters before it releases the caller's mutex, so
// a Signal or Broadcast issued after that release always sees it. Signal
// only fires for waiters not already covered by an undelivered signal
// (pending), and a waiter woken through evOne passes any surplus on. The
// thread that takes waiters to zero resets both events, so nothing stays
// armed for a thread that starts waiting later.
type cond struct {
	events    [2]*kernel.Event
	lock      *kernel.CriticalSection
	waiters   int
	pending   int
	destroyed atomic.Bool
}

// NewCond returns a condition variable.
func (b *Backend) NewCond() (backend.Cond, error) {
	one, err := kernel.CreateEvent(false, false)
	if err != nil {
		return nil, status.Errorf(status.ErrNoMemory, "cond: CreateEvent: %v", err)
	}
	all, err := kernel.CreateEvent(true, false)
	if err != nil {
		_ = one.Close()
		return nil, status.Errorf(status.ErrNoMemory, "cond: CreateEvent: %v", err)
	}

	return &cond{
		events: [2]*kernel.Event{one, all},
		lock:   kernel.InitializeCriticalSection(),
	}, nil
}

func (c *cond) Wait(m backend.Mutex) error {
	return c.wait(m, kernel.Infinite)
}

func (c *cond) TimedWait(m backend.Mutex, d time.Time) error {
	return c.wait(m, deadline.Millis(d))
}

func (c *cond) wait(m backend.Mutex, ms uint32) error {
	if c.destroyed.Load() {
		return status.Errorf(status.ErrError, "cond: wait after destroy")
	}

	c.lock.Enter()
	c.waiters++
	_ = c.lock.Leave()

	if err := m.Unlock(); err != nil {
		c.lock.Enter()
		c.waiters--
		c.settle()
		_ = c.lock.Leave()
		return err
	}

	idx, r := kernel.WaitForMultipleObjects(c.events[:], ms)

	c.lock.Enter()
	c.waiters--
	if r == kernel.WaitObject0 && idx == evOne && c.pending > 0 {
		c.pending--
		if c.pending > 0 {
			_ = c.events[evOne].Set()
		}
	}
	c.settle()
	_ = c.lock.Leave()

	// The mutex is re-acquired on every path, timeout included.
	if err := m.Lock(); err != nil {
		return err
	}

	switch r {
	case kernel.WaitObject0:
		return nil
	case kernel.WaitTimeout:
		return status.ErrTimeout
	default:
		return status.Errorf(status.ErrError, "cond: wait failed: %#x", uint32(r))
	}
}

// settle keeps pending within waiters and disarms both events once nobody
// waits. Called with lock held.
func (c *cond) settle() {
	c.pending = min(c.pending, c.waiters)
	if c.waiters == 0 {
		_ = c.events[evOne].Reset()
		_ = c.events[evAll].Reset()
	}
}

// Signal wakes one waiter if any thread is blocked. The wakeup is an
// armed auto-reset event until a waiter consumes it, so a thread that
// starts waiting after Signal returns but before the woken waiter runs can
// take it instead; the waiter that lost it stays blocked until the next
// Signal or Broadcast. Callers re-check their predicate in a loop.
func (c *cond) Signal() error {
	if c.destroyed.Load() {
		return status.Errorf(status.ErrError, "cond: signal after destroy")
	}

	c.lock.Enter()
	defer func() { _ = c.lock.Leave() }()

	if c.waiters > c.pending {
		c.pending++
		if err := c.events[evOne].Set(); err != nil {
			return status.Errorf(status.ErrError, "cond: signal: %v", err)
		}
	}
	return nil
}

func (c *cond) Broadcast() error {
	if c.destroyed.Load() {
		return status.Errorf(status.ErrError, "cond: broadcast after destroy")
	}

	c.lock.Enter()
	defer func() { _ = c.lock.Leave() }()

	if c.waiters > 0 {
		if err := c.events[evAll].Set(); err != nil {
			return status.Errorf(status.ErrError, "cond: broadcast: %v", err)
		}
	}
	return nil
}

func (c *cond) Destroy() error {
	if !c.destroyed.CompareAndSwap(false, true) {
		return status.Errorf(status.ErrError, "cond: destroyed twice")
	}
	_ = c.events[evOne].Close()
	_ = c.events[evAll].Close()
	_ = c.lock.Delete()
	return nil
}
