// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"time"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/once"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// acquire and release record happens-before edges through obj when
// tracking is enabled.
func (r *runtime) acquire(obj any) {
	if !r.cfg.TrackHappensBefore {
		return
	}
	r.hb.Acquire(obj, r.Context().Clock)
}

func (r *runtime) release(obj any) {
	if !r.cfg.TrackHappensBefore {
		return
	}
	ctx := r.Context()
	r.hb.Release(obj, ctx.ID, ctx.Clock)
}

// Mutex is a mutual exclusion lock of a fixed Kind.
type Mutex struct {
	r    *runtime
	m    backend.Mutex
	kind backend.Kind
}

// NewMutex creates a mutex. Nothing is allocated on failure.
func NewMutex(kind backend.Kind) (*Mutex, error) {
	r := get()
	m, err := r.be.NewMutex(kind)
	if err != nil {
		return nil, err
	}
	return &Mutex{r: r, m: m, kind: kind}, nil
}

// Kind returns the kind the mutex was created with.
func (m *Mutex) Kind() backend.Kind { return m.kind }

// Lock blocks until the calling thread holds m. A second Lock by the
// holder of a non-recursive mutex never returns.
func (m *Mutex) Lock() error {
	if err := m.m.Lock(); err != nil {
		return err
	}
	m.r.acquire(m)
	return nil
}

// TryLock takes m without blocking, or returns ErrBusy.
func (m *Mutex) TryLock() error {
	if err := m.m.TryLock(); err != nil {
		return err
	}
	m.r.acquire(m)
	return nil
}

// TimedLock blocks until m is held or deadline passes (ErrTimeout). A
// deadline in the past never blocks.
func (m *Mutex) TimedLock(deadline time.Time) error {
	if err := m.m.TimedLock(deadline); err != nil {
		return err
	}
	m.r.acquire(m)
	return nil
}

// Unlock releases one level of m. Unlocking a mutex the caller does not
// hold returns ErrError.
func (m *Mutex) Unlock() error {
	// The edge is published while m is still held, so no acquirer can
	// miss it; a caller that does not hold m publishes nothing.
	if !m.m.Held() {
		return m.m.Unlock()
	}
	m.r.release(m)
	return m.m.Unlock()
}

// Destroy releases the mutex. It must not be locked or waited on.
func (m *Mutex) Destroy() error {
	if err := m.m.Destroy(); err != nil {
		return err
	}
	m.r.hb.Forget(m)
	return nil
}

// Cond is a condition variable.
type Cond struct {
	r *runtime
	c backend.Cond
}

// NewCond creates a condition variable.
func NewCond() (*Cond, error) {
	r := get()
	c, err := r.be.NewCond()
	if err != nil {
		return nil, err
	}
	return &Cond{r: r, c: c}, nil
}

// Wait atomically releases m and blocks until signaled, then re-acquires
// m. m must be held by the caller.
func (c *Cond) Wait(m *Mutex) error {
	m.r.release(m)
	err := c.c.Wait(m.m)
	m.r.acquire(m)
	return err
}

// TimedWait is Wait with a deadline. m is re-acquired on every path,
// including ErrTimeout.
func (c *Cond) TimedWait(m *Mutex, deadline time.Time) error {
	m.r.release(m)
	err := c.c.TimedWait(m.m, deadline)
	m.r.acquire(m)
	return err
}

// Signal wakes one thread currently waiting on c, if there is one. A
// Signal with no waiters is lost. On the emulated backend a thread that
// starts waiting after Signal returns, before the signaled waiter has
// woken, may take the wakeup in its place.
func (c *Cond) Signal() error { return c.c.Signal() }

// Broadcast wakes every thread currently waiting on c.
func (c *Cond) Broadcast() error { return c.c.Broadcast() }

// Destroy releases the condition variable. Nobody may be waiting on it.
func (c *Cond) Destroy() error { return c.c.Destroy() }

// OnceFlag guards a function that must run exactly once. The zero value
// is ready to use.
type OnceFlag struct {
	f once.Flag
}

// Done reports whether the guarded function has completed.
func (o *OnceFlag) Done() bool {
	return o.f.State() == once.Done
}

// CallOnce runs fn if no call of CallOnce on flag has run it yet. Every
// call returns only after fn has completed, and sees its effects.
func CallOnce(flag *OnceFlag, fn func()) {
	r := get()
	flag.f.Do(func() {
		fn()
		r.release(flag)
	})
	r.acquire(flag)
}

// CodeOf maps err to its result code.
func CodeOf(err error) status.Code {
	return status.Of(err)
}
