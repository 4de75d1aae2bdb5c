// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package posix

import (
	"slices"
	"sync"
	"time"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// cond keeps one wake channel per waiter in arrival order. A waiter
// enqueues its channel before releasing the mutex, so a Signal issued
// after the caller unlocked can never miss it, and a Signal issued before
// a waiter arrived can never wake it.
type cond struct {
	mu        sync.Mutex
	waiters   []chan struct{}
	destroyed bool
}

// NewCond returns a condition variable.
func (b *Backend) NewCond() (backend.Cond, error) {
	return &cond{}, nil
}

func (c *cond) Wait(m backend.Mutex) error {
	return c.wait(m, time.Time{})
}

func (c *cond) TimedWait(m backend.Mutex, d time.Time) error {
	if d.IsZero() {
		return status.Errorf(status.ErrError, "cond: zero deadline")
	}
	return c.wait(m, d)
}

// wait blocks until signaled or, for a non-zero d, until d passes.
func (c *cond) wait(m backend.Mutex, d time.Time) error {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return status.Errorf(status.ErrError, "cond: wait after destroy")
	}
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	if err := m.Unlock(); err != nil {
		c.remove(ch)
		return err
	}

	var res error
	if d.IsZero() {
		<-ch
	} else {
		t := time.NewTimer(time.Until(d))
		select {
		case <-ch:
		case <-t.C:
			// A signal that popped us concurrently with the timeout counts
			// as delivered; otherwise take ourselves off the list.
			if c.remove(ch) {
				res = status.ErrTimeout
			}
		}
		t.Stop()
	}

	if err := m.Lock(); err != nil {
		return err
	}
	return res
}

// remove drops ch from the waiter list and reports whether it was there.
func (c *cond) remove(ch chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.Index(c.waiters, ch)
	if i < 0 {
		return false
	}
	c.waiters = slices.Delete(c.waiters, i, i+1)
	return true
}

func (c *cond) Signal() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return status.Errorf(status.ErrError, "cond: signal after destroy")
	}
	if len(c.waiters) > 0 {
		c.waiters[0] <- struct{}{}
		c.waiters = c.waiters[1:]
	}
	return nil
}

func (c *cond) Broadcast() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return status.Errorf(status.ErrError, "cond: broadcast after destroy")
	}
	for _, ch := range c.waiters {
		ch <- struct{}{}
	}
	c.waiters = nil
	return nil
}

func (c *cond) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return status.Errorf(status.ErrError, "cond: destroyed twice")
	}
	if len(c.waiters) > 0 {
		return status.Errorf(status.ErrError, "cond: destroy with %d waiters", len(c.waiters))
	}
	c.destroyed = true
	return nil
}
