// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/kolkov/threadkit/internal/threads/goid"
)

// StillActive is the exit code reported for a thread that has not
// terminated yet (STILL_ACTIVE).
const StillActive uint32 = 259

// ErrInvalidParameter is returned for a nil start routine.
var ErrInvalidParameter = errors.New("kernel: invalid parameter")

// Thread is a handle to a thread created by CreateThread. Closing the
// handle does not affect the thread itself.
type Thread struct {
	id     int64
	done   chan struct{}
	code   atomic.Uint32
	closed atomic.Bool
}

// running maps thread ID to handle for every live CreateThread thread, so
// ExitThread can find the handle of its caller.
var running sync.Map

// CreateThread starts start on a new goroutine and returns once the
// thread's ID is known.
func CreateThread(start func() uint32) (*Thread, error) {
	if start == nil {
		return nil, ErrInvalidParameter
	}

	t := &Thread{done: make(chan struct{})}
	t.code.Store(StillActive)

	ready := make(chan struct{})
	go func() {
		t.id = goid.Get()
		running.Store(t.id, t)
		apcQueueOf(t.id)
		close(ready)

		// Runs on return and on ExitThread (runtime.Goexit) alike.
		defer func() {
			ForgetThread(t.id)
			running.Delete(t.id)
			close(t.done)
		}()

		t.code.Store(start())
	}()
	<-ready

	return t, nil
}

// ID returns the thread ID (GetThreadId).
func (t *Thread) ID() int64 {
	return t.id
}

// Wait blocks until the thread terminates or ms elapses.
func (t *Thread) Wait(ms uint32) WaitResult {
	if t.closed.Load() {
		return WaitFailed
	}
	if ms == 0 {
		select {
		case <-t.done:
			return WaitObject0
		default:
			return WaitTimeout
		}
	}

	tc, stop := timer(ms)
	defer stop()
	select {
	case <-t.done:
		return WaitObject0
	case <-tc:
		return WaitTimeout
	}
}

// ExitCode returns the thread's exit code, or StillActive while it runs
// (GetExitCodeThread).
func (t *Thread) ExitCode() (uint32, error) {
	if t.closed.Load() {
		return 0, ErrInvalidHandle
	}
	return t.code.Load(), nil
}

// Close releases the handle (CloseHandle).
func (t *Thread) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrInvalidHandle
	}
	return nil
}

// ExitThread terminates the calling thread with code. Deferred calls of the
// thread run as with runtime.Goexit. On a thread not started by
// CreateThread the code is discarded.
func ExitThread(code uint32) {
	if v, ok := running.Load(goid.Get()); ok {
		v.(*Thread).code.Store(code)
	}
	runtime.Goexit()
}

// GetCurrentThreadId returns the ID of the calling thread.
func GetCurrentThreadId() int64 {
	return goid.Get()
}

// ForgetThread drops the per-thread kernel state (the APC queue) of id. It
// runs automatically for CreateThread threads; adopted threads call it on
// their way out.
func ForgetThread(id int64) {
	apcQueues.Delete(id)
}

// AttachThread gives a thread that was not started by CreateThread the
// per-thread kernel state, so APCs can be queued to it before its first
// alertable wait.
func AttachThread(id int64) {
	apcQueueOf(id)
}
