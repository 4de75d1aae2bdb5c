// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threads

import (
	"log/slog"
	"time"

	"github.com/kolkov/threadkit/internal/threads/api"
	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/config"
	"github.com/kolkov/threadkit/internal/threads/status"
	"github.com/kolkov/threadkit/internal/threads/tss"
)

type (
	// Mutex is a mutual exclusion lock created by NewMutex.
	Mutex = api.Mutex

	// Cond is a condition variable created by NewCond.
	Cond = api.Cond

	// OnceFlag guards a function run by CallOnce. The zero value is ready.
	OnceFlag = api.OnceFlag

	// Key is a thread-specific storage key.
	Key = api.Key

	// ThreadID identifies a thread.
	ThreadID = api.ThreadID

	// Snapshot is a point in a thread's logical time, returned by Clock.
	Snapshot = api.Snapshot

	// Stats is a point-in-time view of the runtime.
	Stats = api.Stats

	// Kind selects mutex behavior.
	Kind = backend.Kind

	// Code is the status-code form of an error.
	Code = status.Code

	// Option overrides one configuration value in Init.
	Option = config.Option
)

// Mutex kinds. Timed and Recursive combine: Timed|Recursive.
const (
	Plain     = backend.Plain
	Timed     = backend.Timed
	Recursive = backend.Recursive
)

// Result codes.
const (
	Success     = status.Success
	Timeout     = status.Timeout
	Busy        = status.Busy
	Error       = status.Error
	NoMemory    = status.NoMemory
	NotFound    = status.NotFound
	Interrupted = status.Interrupted
)

// DestructorIterations bounds the destructor passes run when a thread ends.
const DestructorIterations = tss.DestructorIterations

var (
	ErrTimeout     = status.ErrTimeout
	ErrBusy        = status.ErrBusy
	ErrError       = status.ErrError
	ErrNoMemory    = status.ErrNoMemory
	ErrNotFound    = status.ErrNotFound
	ErrInterrupted = status.ErrInterrupted

	// ErrUnsupported accompanies ErrError when the compiled backend lacks
	// an operation.
	ErrUnsupported = status.ErrUnsupported
)

// Init configures the runtime from the THREADS_* environment and opts.
//
// Calling Init is optional; the first use of the package initializes it
// with the environment alone. Init is idempotent: once the runtime exists
// it does nothing until Teardown.
func Init(opts ...Option) error {
	return api.Init(opts...)
}

// InitWithLogger is Init with the logger the runtime writes to. The
// environment is ignored.
func InitWithLogger(log *slog.Logger, opts ...Option) error {
	return api.InitWithLogger(log, opts...)
}

// WithLogLevel sets the log level: debug, info, warn or error.
func WithLogLevel(level string) Option { return config.WithLogLevel(level) }

// WithLogFormat sets the log format: auto, text or json.
func WithLogFormat(format string) Option { return config.WithLogFormat(format) }

// WithHappensBefore turns happens-before tracking on or off.
func WithHappensBefore(on bool) Option { return config.WithHappensBefore(on) }

// WithDeadlockWarnAfter sets how long a self-deadlocked Lock spins before
// it logs a warning.
func WithDeadlockWarnAfter(d time.Duration) Option { return config.WithDeadlockWarnAfter(d) }

// WithReapInterval sets how many goroutine adoptions pass between two
// scans for exited goroutines.
func WithReapInterval(n int) Option { return config.WithReapInterval(n) }

// Teardown ends the runtime.
//
// It runs the destructors of every adopted goroutine and of every thread
// that has ended, resets the key table, and reports each thread that was
// created but neither joined nor detached, with the stack that created it.
// Keys, mutexes and snapshots from before a Teardown must not be mixed
// with the next runtime.
//
//	func main() {
//		defer func() {
//			if err := threads.Teardown(); err != nil {
//				log.Print(err)
//			}
//		}()
//		// ...
//	}
func Teardown() error {
	return api.Teardown()
}

// Backend returns the name of the compiled backend, "posix" or "emulated".
func Backend() string {
	return api.Backend()
}

// ReadStats returns the current runtime statistics.
func ReadStats() Stats {
	return api.ReadStats()
}

// Reap destructs the thread-specific values of adopted goroutines that
// have exited and returns how many it reclaimed. The runtime also does
// this on its own, every ReapInterval adoptions.
func Reap() int {
	return api.Reap()
}

// CodeOf maps err to its Code. Errors from outside this package map to
// Error, and nil maps to Success.
func CodeOf(err error) Code {
	return api.CodeOf(err)
}

// NewMutex creates a mutex of the given kind.
//
// A Plain or Timed mutex locked twice by the same thread deadlocks; a
// Recursive one counts the depth and needs as many Unlock calls. Only a
// Timed mutex is guaranteed a native TimedLock; the others fall back to
// polling, and still honor the deadline.
func NewMutex(kind Kind) (*Mutex, error) {
	return api.NewMutex(kind)
}

// NewCond creates a condition variable.
//
// Waits may wake spuriously, and on the emulated backend a thread that
// starts waiting right after a Signal can take that wakeup from the
// thread it was meant for. Wait in a loop on the predicate:
//
//	m.Lock()
//	for !ready {
//		c.Wait(m)
//	}
//	m.Unlock()
func NewCond() (*Cond, error) {
	return api.NewCond()
}

// CallOnce runs fn exactly once across all calls sharing flag. Every call
// returns after fn has completed. A call of CallOnce on the same flag from
// inside fn returns at once.
func CallOnce(flag *OnceFlag, fn func()) {
	api.CallOnce(flag, fn)
}

// Create starts entry(arg) on a new thread and returns its ID.
//
// The value entry returns becomes the exit code collected by Join. Every
// created thread must be joined or detached; Teardown reports those that
// are not.
func Create(entry func(arg any) int, arg any) (ThreadID, error) {
	return api.CreateSkip(1, entry, arg)
}

// Join waits for thread id to end and returns its exit code.
//
// Joining a thread twice, a detached thread or an ID Create never
// returned gives ErrNotFound. A thread joining itself gets ErrError.
func Join(id ThreadID) (int, error) {
	return api.Join(id)
}

// Detach releases thread id, which cleans up after itself when it ends.
func Detach(id ThreadID) error {
	return api.Detach(id)
}

// Current returns the ID of the calling thread.
func Current() ThreadID {
	return api.Current()
}

// Equal reports whether a and b are the same thread.
func Equal(a, b ThreadID) bool {
	return api.Equal(a, b)
}

// Exit runs the calling thread's destructors and ends it. For a thread
// started by Create, code becomes the Join result. Exit does not return.
//
// Deferred calls run as the goroutine unwinds, as with runtime.Goexit.
func Exit(code int) {
	api.Exit(code)
}

// Yield hints that other threads may run.
func Yield() {
	api.Yield()
}

// Sleep suspends the calling thread for at least d.
//
// An interrupted sleep returns ErrInterrupted with the time that was left.
// On the emulated backend an Alert interrupts it; on posix only a signal
// does.
func Sleep(d time.Duration) (remaining time.Duration, err error) {
	return api.Sleep(d)
}

// Alert queues fn to run on thread id and interrupts its Sleep, which
// runs fn and returns ErrInterrupted. On the posix backend it returns
// ErrError wrapping ErrUnsupported.
func Alert(id ThreadID, fn func()) error {
	return api.Alert(id, fn)
}

// CreateKey allocates a thread-specific storage key with an optional
// destructor. It returns ErrNoMemory when the backend is out of keys.
func CreateKey(dtor func(value any)) (Key, error) {
	return api.CreateKey(dtor)
}

// DeleteKey frees k without running any destructor.
func DeleteKey(k Key) error {
	return api.DeleteKey(k)
}

// Get returns the calling thread's value for k, or nil.
func Get(k Key) any {
	return api.Get(k)
}

// Set stores v as the calling thread's value for k.
func Set(k Key, v any) error {
	return api.Set(k, v)
}

// Clock returns the calling thread's logical time. It is only meaningful
// with happens-before tracking on; otherwise the Snapshot is not Valid.
func Clock() Snapshot {
	return api.Clock()
}
