// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry maps thread IDs to native thread handles for backends
// whose handles cannot be looked up by ID.
//
// An entry exists from thread creation until the thread is joined or
// detached. The registry is guarded by a shared/exclusive lock that is
// itself created on first use through kernel.InitOnce. It deliberately
// does not use the general once flag, which depends on thread state this
// registry provides.
package registry

import (
	"maps"
	"slices"

	"github.com/kolkov/threadkit/internal/threads/kernel"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// Registry is a thread ID → handle map. The zero value is ready to use.
type Registry[H any] struct {
	once    kernel.InitOnce
	lock    *kernel.SRWLock
	entries map[int64]H
}

func (r *Registry[H]) guard() *kernel.SRWLock {
	r.once.ExecuteOnce(func() bool {
		r.lock = &kernel.SRWLock{}
		r.entries = make(map[int64]H)
		return true
	})
	return r.lock
}

// Insert adds the entry for thread id. A duplicate ID is rejected with
// status.ErrError.
func (r *Registry[H]) Insert(id int64, h H) error {
	l := r.guard()
	l.AcquireExclusive()
	defer l.ReleaseExclusive()

	if _, dup := r.entries[id]; dup {
		return status.Errorf(status.ErrError, "registry: thread %d already registered", id)
	}
	r.entries[id] = h
	return nil
}

// Lookup returns the handle of thread id.
func (r *Registry[H]) Lookup(id int64) (H, bool) {
	l := r.guard()
	l.AcquireShared()
	defer l.ReleaseShared()

	h, ok := r.entries[id]
	return h, ok
}

// Remove deletes and returns the entry of thread id. Exactly one of any
// number of concurrent Remove calls for the same id gets ok == true.
func (r *Registry[H]) Remove(id int64) (H, bool) {
	l := r.guard()
	l.AcquireExclusive()
	defer l.ReleaseExclusive()

	h, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return h, ok
}

// Len returns the number of registered threads.
func (r *Registry[H]) Len() int {
	l := r.guard()
	l.AcquireShared()
	defer l.ReleaseShared()
	return len(r.entries)
}

// IDs returns the registered thread IDs in ascending order.
func (r *Registry[H]) IDs() []int64 {
	l := r.guard()
	l.AcquireShared()
	defer l.ReleaseShared()
	return slices.Sorted(maps.Keys(r.entries))
}

// Reset removes every entry and returns the handles that were registered.
func (r *Registry[H]) Reset() map[int64]H {
	l := r.guard()
	l.AcquireExclusive()
	defer l.ReleaseExclusive()

	old := r.entries
	r.entries = make(map[int64]H)
	return old
}
