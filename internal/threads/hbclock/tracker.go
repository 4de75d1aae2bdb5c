// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hbclock

import "sync"

// SyncVar holds the release clock of one synchronization object.
type SyncVar struct {
	mu      sync.Mutex
	release *VectorClock // nil until the first release
}

// Tracker maps synchronization objects to their SyncVar. Objects are keyed
// by identity (a pointer or a thread ID), created lazily on first use.
type Tracker struct {
	vars sync.Map // any -> *SyncVar
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) get(obj any) *SyncVar {
	if v, ok := t.vars.Load(obj); ok {
		return v.(*SyncVar)
	}
	v, _ := t.vars.LoadOrStore(obj, &SyncVar{})
	return v.(*SyncVar)
}

// Release merges clock into obj's release clock, then advances the
// releasing thread's own component so later events of that thread are not
// ordered before the next acquirer.
func (t *Tracker) Release(obj any, self int64, clock *VectorClock) {
	if clock == nil {
		return
	}
	sv := t.get(obj)
	sv.mu.Lock()
	if sv.release == nil {
		sv.release = clock.Clone()
	} else {
		sv.release.Join(clock)
	}
	sv.mu.Unlock()

	clock.Increment(self)
}

// Acquire joins obj's release clock into clock.
func (t *Tracker) Acquire(obj any, clock *VectorClock) {
	if clock == nil {
		return
	}
	v, ok := t.vars.Load(obj)
	if !ok {
		return
	}
	sv := v.(*SyncVar)
	sv.mu.Lock()
	clock.Join(sv.release)
	sv.mu.Unlock()
}

// Forget drops obj's state, typically when the object is destroyed.
func (t *Tracker) Forget(obj any) {
	t.vars.Delete(obj)
}

// Reset drops all state.
func (t *Tracker) Reset() {
	t.vars.Clear()
}
