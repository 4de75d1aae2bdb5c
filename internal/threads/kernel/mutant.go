// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "sync/atomic"

// Mutant is a kernel mutex object (CreateMutex). Unlike CriticalSection it
// can be waited on with a timeout, and like CriticalSection it is reentrant
// for its owner.
type Mutant struct {
	lock   ownedLock
	closed atomic.Bool
}

// CreateMutex returns an unowned mutant.
func CreateMutex() (*Mutant, error) {
	return &Mutant{lock: newOwnedLock()}, nil
}

// Wait acquires m, waiting at most ms milliseconds
// (WaitForSingleObject on a mutex handle).
func (m *Mutant) Wait(ms uint32) WaitResult {
	if m.closed.Load() {
		return WaitFailed
	}
	if !m.lock.acquire(ms) {
		return WaitTimeout
	}
	return WaitObject0
}

// Release drops one level of ownership (ReleaseMutex).
func (m *Mutant) Release() error {
	if m.closed.Load() {
		return ErrInvalidHandle
	}
	return m.lock.release()
}

// OwnedBy reports whether thread id currently owns m.
func (m *Mutant) OwnedBy(id int64) bool {
	return m.lock.ownedBy(id)
}

// Close releases the handle (CloseHandle).
func (m *Mutant) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrInvalidHandle
	}
	return nil
}
