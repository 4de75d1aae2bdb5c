// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "sync/atomic"

// CriticalSection is a process-local, always-reentrant lock without a timed
// wait. The owning thread may enter it any number of times and must leave
// it as many times.
type CriticalSection struct {
	lock    ownedLock
	deleted atomic.Bool
}

// InitializeCriticalSection returns a ready critical section.
func InitializeCriticalSection() *CriticalSection {
	return &CriticalSection{lock: newOwnedLock()}
}

// Enter blocks until the calling thread owns cs. Reentry by the owner
// returns immediately.
func (cs *CriticalSection) Enter() {
	cs.lock.acquire(Infinite)
}

// TryEnter takes cs without blocking.
func (cs *CriticalSection) TryEnter() bool {
	return cs.lock.acquire(0)
}

// Leave releases one level of ownership. Leaving a section the caller does
// not own returns ErrNotOwner.
func (cs *CriticalSection) Leave() error {
	return cs.lock.release()
}

// OwnedBy reports whether thread id currently owns cs.
func (cs *CriticalSection) OwnedBy(id int64) bool {
	return cs.lock.ownedBy(id)
}

// Delete releases the section. Deleting twice returns ErrInvalidHandle.
func (cs *CriticalSection) Delete() error {
	if !cs.deleted.CompareAndSwap(false, true) {
		return ErrInvalidHandle
	}
	return nil
}
