// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backend defines the contract between the portable threads API
// and its two native implementations.
//
// posix maps almost directly onto Go runtime primitives. emulated builds
// the same semantics out of the raw objects of package kernel. Only one of
// them is compiled into the API (see internal/threads/api), but both are
// always built and tested.
//
// A backend never touches thread-specific storage or happens-before
// clocks itself. It calls back into the Host at thread start and end, and
// the host owns all per-thread context.
package backend

import (
	"log/slog"
	"time"

	"github.com/kolkov/threadkit/internal/threads/goroutine"
)

// Kind selects mutex behavior. Kinds are flags: Timed|Recursive is valid.
type Kind int

const (
	Plain     Kind = 0
	Timed     Kind = 1
	Recursive Kind = 2
)

// Valid reports whether k only uses known flags.
func (k Kind) Valid() bool {
	return k&^(Timed|Recursive) == 0
}

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Timed:
		return "timed"
	case Recursive:
		return "recursive"
	case Timed | Recursive:
		return "timed|recursive"
	}
	return "invalid"
}

// Mutex is a backend mutex. All methods report status sentinels.
type Mutex interface {
	Lock() error
	TryLock() error
	TimedLock(deadline time.Time) error
	Unlock() error
	Destroy() error

	// Held reports whether the calling thread holds the mutex.
	Held() bool
}

// Cond is a backend condition variable. Wait and TimedWait re-acquire m
// before returning on every path.
type Cond interface {
	Wait(m Mutex) error
	TimedWait(m Mutex, deadline time.Time) error
	Signal() error
	Broadcast() error
	Destroy() error
}

// Host is the side of the API a backend calls into.
type Host interface {
	// ThreadStart creates the context of a thread the backend just
	// started, on that thread.
	ThreadStart(id int64) *goroutine.Context

	// Context returns the calling thread's context, creating one for an
	// adopted goroutine.
	Context() *goroutine.Context

	// CleanupThread runs the destructors of ctx. It is idempotent.
	CleanupThread(ctx *goroutine.Context)

	// ThreadEnd is the last call a started thread makes.
	ThreadEnd(ctx *goroutine.Context)
}

// Backend is one native implementation.
type Backend interface {
	// Name is "posix" or "emulated".
	Name() string

	NewMutex(kind Kind) (Mutex, error)
	NewCond() (Cond, error)

	// Spawn starts start on a new thread and returns its ID once the
	// thread is running. The exit code of start becomes the join status.
	Spawn(start func() int) (int64, error)
	Join(id int64) (int, error)
	Detach(id int64) error

	// Exit ends the calling thread with code. It does not return.
	Exit(code int)
	Current() int64
	Yield()

	// Sleep blocks for at least d. On interruption it returns
	// status.ErrInterrupted and the unslept remainder.
	Sleep(d time.Duration) (time.Duration, error)

	// Alert queues fn to run on thread id during its next interruptible
	// sleep.
	Alert(id int64, fn func()) error

	// Adopt and Release bracket the life of a goroutine the backend did
	// not start but that uses per-thread state.
	Adopt(id int64)
	Release(id int64)

	// KeyCapacity is the maximum number of live TSS keys.
	KeyCapacity() int
}

// Options configure a backend.
type Options struct {
	Host   Host
	Logger *slog.Logger

	// DeadlockWarnAfter is how long a simulated self-deadlock spins before
	// a warning is logged. Zero disables the warning.
	DeadlockWarnAfter time.Duration
}
