// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package goroutine holds the per-thread execution context.
//
// A Context is created the first time a goroutine touches state that is
// owned per thread: its thread-specific values and, when happens-before
// tracking is on, its vector clock. Threads started through the library
// get theirs at start; any other goroutine ("adopted") gets one lazily.
//
// A Context is owned by its goroutine. Nothing else reads or writes it
// until the goroutine has ended, at which point the thread trampoline, the
// reaper or teardown takes it over to run destructors.
package goroutine

import (
	"github.com/kolkov/threadkit/internal/threads/hbclock"
	"github.com/kolkov/threadkit/internal/threads/tss"
)

// Context is the per-thread state of one goroutine.
type Context struct {
	// ID is the goroutine ID of the owner.
	ID int64

	// Spawned is true for threads started by Create. Their cleanup runs on
	// the thread itself; adopted goroutines are cleaned by the reaper.
	Spawned bool

	// TSS holds the thread-specific values.
	TSS *tss.Store

	// Clock is the happens-before clock, nil when tracking is disabled.
	Clock *hbclock.VectorClock
}

// Alloc returns a fresh context for goroutine id. A tracked context starts
// at time 1 in its own component, so its first events are distinguishable
// from a clock that has never heard of it.
func Alloc(id int64, spawned, track bool) *Context {
	ctx := &Context{
		ID:      id,
		Spawned: spawned,
		TSS:     tss.NewStore(),
	}
	if track {
		ctx.Clock = hbclock.New()
		ctx.Clock.Increment(id)
	}
	return ctx
}

// Tracking reports whether the context carries a clock.
func (c *Context) Tracking() bool {
	return c.Clock != nil
}

// Snapshot returns a copy of the clock and advances the owner's component,
// for handing the current time to another thread. Nil when not tracking.
func (c *Context) Snapshot() *hbclock.VectorClock {
	if c.Clock == nil {
		return nil
	}
	snap := c.Clock.Clone()
	c.Clock.Increment(c.ID)
	return snap
}

// Observe joins a snapshot taken by another thread into the clock.
func (c *Context) Observe(snap *hbclock.VectorClock) {
	if c.Clock == nil || snap == nil {
		return
	}
	c.Clock.Join(snap)
}
