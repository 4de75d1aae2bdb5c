// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"strconv"
	"time"

	"github.com/kolkov/threadkit/internal/threads/hbclock"
	"github.com/kolkov/threadkit/internal/threads/stackdepot"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// ThreadID identifies a thread. It is the goroutine ID and is never
// reused during the life of the process.
type ThreadID int64

func (id ThreadID) String() string {
	return "thread " + strconv.FormatInt(int64(id), 10)
}

// bootstrap carries what a new thread needs. The thread takes ownership
// and drops it before calling entry.
type bootstrap struct {
	entry  func(arg any) int
	arg    any
	parent *hbclock.VectorClock
}

// Create starts entry(arg) on a new thread. The value entry returns is
// the thread's exit code, collected by Join.
func Create(entry func(arg any) int, arg any) (ThreadID, error) {
	return CreateSkip(1, entry, arg)
}

// CreateSkip is Create for wrappers: the recorded creation site skips
// skip frames above the caller of CreateSkip.
func CreateSkip(skip int, entry func(arg any) int, arg any) (ThreadID, error) {
	if entry == nil {
		return 0, status.Errorf(status.ErrError, "create: nil entry")
	}

	r := get()
	boot := &bootstrap{entry: entry, arg: arg}
	if r.cfg.TrackHappensBefore {
		boot.parent = r.Context().Snapshot()
	}
	site := stackdepot.Capture(skip + 1)

	id, err := r.be.Spawn(func() int {
		b := boot
		boot = nil
		r.Context().Observe(b.parent)
		return b.entry(b.arg)
	})
	if err != nil {
		return 0, err
	}

	r.spawned.Store(id, site)
	r.log.Debug("thread created", "thread", id, "site", stackdepot.Get(site).Origin())
	return ThreadID(id), nil
}

// Join waits for thread id to end and returns its exit code. Joining an
// unknown, detached or already joined thread returns ErrNotFound.
func Join(id ThreadID) (int, error) {
	r := get()
	code, err := r.be.Join(int64(id))
	if err != nil {
		return 0, err
	}

	r.spawned.Delete(int64(id))
	r.acquire(threadKey(id))
	r.hb.Forget(threadKey(id))
	r.log.Debug("thread joined", "thread", int64(id), "code", code)
	return code, nil
}

// Detach lets thread id run on unobserved. It reclaims itself when it
// ends, and can no longer be joined.
func Detach(id ThreadID) error {
	r := get()
	if err := r.be.Detach(int64(id)); err != nil {
		return err
	}
	r.spawned.Delete(int64(id))
	r.log.Debug("thread detached", "thread", int64(id))
	return nil
}

// Current returns the ID of the calling thread.
func Current() ThreadID {
	return ThreadID(get().be.Current())
}

// Equal reports whether a and b name the same thread.
func Equal(a, b ThreadID) bool {
	return a == b
}

// Exit ends the calling thread with code after running its destructors.
// It does not return.
func Exit(code int) {
	get().be.Exit(code)
}

// Yield hints that another thread may run.
func Yield() {
	get().be.Yield()
}

// Sleep blocks the calling thread for at least d. If the sleep is
// interrupted it returns ErrInterrupted and the time that was left.
func Sleep(d time.Duration) (time.Duration, error) {
	return get().be.Sleep(d)
}

// Alert queues fn to run on thread id; an interruptible Sleep of that
// thread runs it and returns ErrInterrupted. Backends that cannot
// interrupt a sleep return ErrError wrapping ErrUnsupported.
func Alert(id ThreadID, fn func()) error {
	return get().be.Alert(int64(id), fn)
}
