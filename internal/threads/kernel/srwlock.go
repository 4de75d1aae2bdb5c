// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// SRWLock is a slim reader/writer lock. The zero value is ready to use
// (SRWLOCK_INIT). It is not reentrant in either mode.
type SRWLock struct {
	rw rwMutex
}

func (l *SRWLock) AcquireShared()    { l.rw.RLock() }
func (l *SRWLock) ReleaseShared()    { l.rw.RUnlock() }
func (l *SRWLock) AcquireExclusive() { l.rw.Lock() }
func (l *SRWLock) ReleaseExclusive() { l.rw.Unlock() }

