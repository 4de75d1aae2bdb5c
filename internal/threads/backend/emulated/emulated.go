// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emulated provides POSIX thread semantics on top of the raw
// objects of package kernel: events, critical sections, mutants, SRW locks
// and thread handles.
//
// The interesting parts are the ones the kernel does not offer:
//
//   - Non-recursive mutexes over inherently reentrant critical sections.
//     A held flag makes a self-relock spin in 1ms sleeps, which reproduces
//     the deadlock a POSIX mutex would have.
//   - Condition variables from an auto-reset and a manual-reset event plus
//     a waiter count (see cond.go).
//   - ID-based join and detach through a registry of thread handles.
//   - Thread-specific destructors, run by the thread wrapper and by a
//     detach hook standing in for the TLS callback.
package emulated

import (
	"log/slog"
	"math"
	"time"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/goroutine"
	"github.com/kolkov/threadkit/internal/threads/kernel"
	"github.com/kolkov/threadkit/internal/threads/registry"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// Name is the backend name.
const Name = "emulated"

// KeyCapacity is the number of TLS slots: 64 inline plus 1024 expansion.
const KeyCapacity = 64 + 1024

// Backend is the emulated backend.
type Backend struct {
	host      backend.Host
	log       *slog.Logger
	warnAfter time.Duration
	threads   registry.Registry[*kernel.Thread]
}

var _ backend.Backend = (*Backend)(nil)

// New returns an emulated backend.
func New(opts backend.Options) *Backend {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		host:      opts.Host,
		log:       log.With("backend", Name),
		warnAfter: opts.DeadlockWarnAfter,
	}
}

func (b *Backend) Name() string     { return Name }
func (b *Backend) KeyCapacity() int { return KeyCapacity }
func (b *Backend) Current() int64   { return kernel.GetCurrentThreadId() }
func (b *Backend) Yield()           { kernel.SwitchToThread() }

// Spawn creates a kernel thread running start and registers its handle.
func (b *Backend) Spawn(start func() int) (int64, error) {
	if start == nil {
		return 0, status.Errorf(status.ErrError, "spawn: nil start routine")
	}

	th, err := kernel.CreateThread(func() uint32 {
		ctx := b.host.ThreadStart(kernel.GetCurrentThreadId())
		defer b.threadDetach(ctx)

		code := start()
		b.host.CleanupThread(ctx)
		return uint32(int32(code)) //nolint:gosec // exit codes round-trip through int32
	})
	if err != nil {
		return 0, status.Errorf(status.ErrNoMemory, "spawn: %v", err)
	}

	if err := b.threads.Insert(th.ID(), th); err != nil {
		_ = th.Close()
		return 0, err
	}
	return th.ID(), nil
}

// threadDetach is the per-thread detach hook. It catches every way out of
// a thread, including ExitThread, and runs whatever destructors are left.
func (b *Backend) threadDetach(ctx *goroutine.Context) {
	b.host.CleanupThread(ctx)
	b.host.ThreadEnd(ctx)
}

// Join waits for thread id, collects its exit code and frees its handle.
func (b *Backend) Join(id int64) (int, error) {
	if id == kernel.GetCurrentThreadId() {
		return 0, status.Errorf(status.ErrError, "join: thread %d cannot join itself", id)
	}
	th, ok := b.threads.Remove(id)
	if !ok {
		return 0, status.Errorf(status.ErrNotFound, "join: thread %d", id)
	}
	defer func() { _ = th.Close() }()

	if r := th.Wait(kernel.Infinite); r != kernel.WaitObject0 {
		return 0, status.Errorf(status.ErrError, "join: wait on thread %d: %#x", id, uint32(r))
	}
	code, err := th.ExitCode()
	if err != nil {
		return 0, status.Errorf(status.ErrError, "join: exit code of thread %d: %v", id, err)
	}
	return int(int32(code)), nil //nolint:gosec // see Spawn
}

// Detach frees the handle of thread id without waiting for it.
func (b *Backend) Detach(id int64) error {
	th, ok := b.threads.Remove(id)
	if !ok {
		return status.Errorf(status.ErrNotFound, "detach: thread %d", id)
	}
	return th.Close()
}

// Exit runs the caller's destructors and ends the thread. Kernel thread
// exit does not run them, so this has to happen first.
func (b *Backend) Exit(code int) {
	ctx := b.host.Context()
	b.host.CleanupThread(ctx)
	if !ctx.Spawned {
		b.host.ThreadEnd(ctx)
	}
	kernel.ExitThread(uint32(int32(code))) //nolint:gosec // see Spawn
}

// Sleep is an alertable sleep. Queued APCs end it early with
// ErrInterrupted.
func (b *Backend) Sleep(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, nil
	}

	start := time.Now()
	if kernel.SleepEx(millis(d), true) == kernel.WaitIOCompletion {
		return max(d-time.Since(start), 0), status.ErrInterrupted
	}
	return 0, nil
}

// millis rounds d up to whole milliseconds, below Infinite.
func millis(d time.Duration) uint32 {
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms >= math.MaxUint32 {
		return kernel.Infinite - 1
	}
	return uint32(ms)
}

// Alert queues fn to thread id (QueueUserAPC).
func (b *Backend) Alert(id int64, fn func()) error {
	if fn == nil {
		return status.Errorf(status.ErrError, "alert: nil function")
	}
	if err := kernel.QueueUserAPC(fn, id); err != nil {
		return status.Errorf(status.ErrNotFound, "alert: thread %d: %v", id, err)
	}
	return nil
}

func (b *Backend) Adopt(id int64)   { kernel.AttachThread(id) }
func (b *Backend) Release(id int64) { kernel.ForgetThread(id) }
