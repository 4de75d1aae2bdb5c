// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package threads provides C11-style threading primitives for Go: mutexes,
// condition variables, explicit thread lifecycle, thread-specific storage
// with destructors and once-flags.
//
// The primitives keep the contracts of the C11 <threads.h> family, which
// makes the package a direct target for code ported from C and a test bed
// for algorithms written against those contracts. A thread is a goroutine;
// its ID is the goroutine ID.
//
// # Quick Start
//
//	func main() {
//		defer threads.Teardown()
//
//		m, _ := threads.NewMutex(threads.Plain)
//		id, _ := threads.Create(func(arg any) int {
//			m.Lock()
//			defer m.Unlock()
//			return arg.(int) + 1
//		}, 41)
//
//		code, _ := threads.Join(id)
//		fmt.Println(code) // 42
//	}
//
// # Results
//
// Every operation that can fail returns an error that matches exactly one of
// [ErrTimeout], [ErrBusy], [ErrError], [ErrNoMemory], [ErrNotFound] or
// [ErrInterrupted] under errors.Is. [CodeOf] maps an error back to its
// [Code] for callers that prefer a status switch.
//
// # Backends
//
// Two interchangeable backends implement the primitives and are selected
// at build time:
//
//	go build ./...                          # posix (default)
//	go build -tags threads_emulated ./...   # emulated kernel objects
//
// The posix backend maps onto native Go primitives. The emulated backend
// rebuilds POSIX semantics on top of kernel-style objects (events,
// critical sections, mutants, SRW locks, alertable sleep). Observable
// behavior is the same, except:
//   - [Alert] is only supported by the emulated backend.
//   - The number of thread-specific storage keys differs (1024 vs 1088).
//
// [Backend] reports the compiled backend.
//
// # Thread-specific storage
//
// A [Key] names one value per thread. When a thread ends (by returning from
// its entry function or through [Exit]) every non-nil value it holds is
// passed to the key's destructor, for up to [DestructorIterations] passes
// while destructors keep storing new values. Goroutines not started by
// [Create] are adopted on first use; their destructors run when the
// runtime notices they have exited, or at [Teardown].
//
// # Configuration
//
// The runtime is configured by the THREADS_* environment variables and by
// options passed to [Init]:
//
//	THREADS_LOG_LEVEL       debug | info | warn | error (default warn)
//	THREADS_LOG_FORMAT      auto | text | json (default auto)
//	THREADS_TRACK_HB        record happens-before edges (default false)
//	THREADS_DEADLOCK_WARN   self-deadlock warning threshold (default 5s)
//	THREADS_REAP_INTERVAL   adoptions between dead-goroutine scans (default 1000)
//
// # Happens-before tracking
//
// With tracking on, every thread carries a vector clock. Create, Join,
// mutex handoff and CallOnce completion are recorded as edges, and [Clock]
// returns a [Snapshot] that can be compared against another thread's:
//
//	a := threads.Clock() // in thread A, before Unlock
//	b := threads.Clock() // in thread B, after Lock
//	a.HappensBefore(b)   // true
//
// # Debugging lock order
//
// Building with -tags deadlock swaps the internal locks of the runtime for
// github.com/sasha-s/go-deadlock, which reports lock-order inversions and
// locks held for longer than 30 seconds.
package threads
