// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package posix is the direct backend: every operation maps onto a Go
// runtime primitive with the semantics of its pthreads counterpart.
//
// Mutexes are channel semaphores and support timed acquisition for every
// kind. Condition variables keep a FIFO list of per-waiter channels.
// Threads are goroutines tracked in a runtime-owned table, and thread
// destructors run automatically from the thread trampoline, as pthread key
// destructors do. Sleep uses nanosleep(2) where available.
package posix

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/goid"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// Name is the backend name.
const Name = "posix"

// KeyCapacity is PTHREAD_KEYS_MAX on Linux.
const KeyCapacity = 1024

// Backend is the posix backend.
type Backend struct {
	host backend.Host
	log  *slog.Logger

	// running holds every live thread started by Spawn, for Exit.
	running sync.Map // int64 -> *thread
	// joinable holds the threads that were neither joined nor detached.
	joinable sync.Map // int64 -> *thread
}

var _ backend.Backend = (*Backend)(nil)

type thread struct {
	done chan struct{}
	code int
}

// New returns a posix backend.
func New(opts backend.Options) *Backend {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Backend{host: opts.Host, log: log.With("backend", Name)}
}

func (b *Backend) Name() string     { return Name }
func (b *Backend) KeyCapacity() int { return KeyCapacity }
func (b *Backend) Current() int64   { return goid.Get() }
func (b *Backend) Yield()           { runtime.Gosched() }

// Spawn starts start on a new goroutine. The thread's context exists and
// the thread is joinable when Spawn returns.
func (b *Backend) Spawn(start func() int) (int64, error) {
	if start == nil {
		return 0, status.Errorf(status.ErrError, "spawn: nil start routine")
	}

	t := &thread{done: make(chan struct{})}
	started := make(chan int64)
	go b.trampoline(t, start, started)
	return <-started, nil
}

func (b *Backend) trampoline(t *thread, start func() int, started chan<- int64) {
	id := goid.Get()
	b.running.Store(id, t)
	b.joinable.Store(id, t)
	ctx := b.host.ThreadStart(id)
	started <- id

	// Also runs on Exit, which unwinds through runtime.Goexit.
	defer func() {
		b.host.CleanupThread(ctx)
		b.host.ThreadEnd(ctx)
		b.running.Delete(id)
		close(t.done)
	}()

	t.code = start()
}

// Join waits for thread id and returns its exit code.
func (b *Backend) Join(id int64) (int, error) {
	if id == goid.Get() {
		return 0, status.Errorf(status.ErrError, "join: thread %d cannot join itself", id)
	}
	v, ok := b.joinable.LoadAndDelete(id)
	if !ok {
		return 0, status.Errorf(status.ErrNotFound, "join: thread %d", id)
	}

	t := v.(*thread)
	<-t.done
	return t.code, nil
}

// Detach releases thread id. It keeps running and reclaims itself.
func (b *Backend) Detach(id int64) error {
	if _, ok := b.joinable.LoadAndDelete(id); !ok {
		return status.Errorf(status.ErrNotFound, "detach: thread %d", id)
	}
	return nil
}

// Exit ends the calling thread. A thread started by Spawn unwinds through
// its trampoline, which runs the destructors. Any other goroutine runs
// them here first.
func (b *Backend) Exit(code int) {
	if v, ok := b.running.Load(goid.Get()); ok {
		v.(*thread).code = code
		runtime.Goexit()
	}

	ctx := b.host.Context()
	b.host.CleanupThread(ctx)
	b.host.ThreadEnd(ctx)
	runtime.Goexit()
}

// Alert is not available: there is no portable way to interrupt another
// thread's nanosleep short of a signal.
func (b *Backend) Alert(int64, func()) error {
	return status.Unsupported(Name, "alert")
}

func (b *Backend) Adopt(int64)   {}
func (b *Backend) Release(int64) {}
