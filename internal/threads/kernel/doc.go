// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel models the raw synchronization objects of a Win32-style
// kernel on top of the Go runtime.
//
// The emulated backend must build POSIX semantics out of exactly these
// objects and nothing richer, so the package deliberately reproduces their
// native shape and quirks:
//
//   - CriticalSection: owner-tracked, always reentrant, no timed wait.
//   - Mutant (CreateMutex): owner-tracked, reentrant, waitable with a
//     millisecond timeout.
//   - Event: auto-reset or manual-reset, waited on singly or as a set with
//     WaitForMultipleObjects (lowest signaled index wins).
//   - SRWLock: slim shared/exclusive lock, not reentrant.
//   - InitOnce: one-time initialization primitive (InitOnceExecuteOnce).
//   - Thread: opaque handle with an ID, an exit code and a waitable
//     termination state; CloseHandle releases the handle, not the thread.
//   - SleepEx / QueueUserAPC: alertable sleep interrupted by asynchronous
//     procedure calls queued to the sleeping thread.
//
// Timeouts are uint32 milliseconds with Infinite meaning no timeout.
// Thread identity is the goroutine ID (see package goid).
package kernel
