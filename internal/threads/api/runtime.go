// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package api is the portable threads runtime behind package threads.
//
// It owns all process-wide state: the compiled backend, the TSS key table,
// the per-goroutine contexts and the happens-before tracker. That state
// lives in one runtime value, created by Init (or implicitly on first use)
// and torn down by Teardown. Objects created from a runtime keep using it
// after a Teardown, so a late Unlock never touches its successor.
//
// Per-goroutine contexts are cached in a sync.Map keyed by goroutine ID.
// Threads started by Create get theirs at start and clean it up on exit.
// Any other goroutine that uses thread-specific state is adopted: it gets a
// context on first use, and since nothing tells us when it ends, a reaper
// scans for dead owners every ReapInterval allocations.
package api

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/config"
	"github.com/kolkov/threadkit/internal/threads/goid"
	"github.com/kolkov/threadkit/internal/threads/goroutine"
	"github.com/kolkov/threadkit/internal/threads/hbclock"
	"github.com/kolkov/threadkit/internal/threads/kernel"
	"github.com/kolkov/threadkit/internal/threads/stackdepot"
	"github.com/kolkov/threadkit/internal/threads/status"
	"github.com/kolkov/threadkit/internal/threads/tss"
)

type runtime struct {
	cfg  config.Config
	log  *slog.Logger
	be   backend.Backend
	keys *tss.Table
	hb   *hbclock.Tracker

	// contexts maps goroutine ID to *goroutine.Context.
	contexts sync.Map

	// spawned maps the ID of every thread that was created and neither
	// joined nor detached to the stack depot hash of its creation site.
	spawned sync.Map

	// allocs counts context allocations of adopted goroutines; every
	// cfg.ReapInterval of them triggers a reap.
	allocs atomic.Uint64
	reaps  atomic.Uint64
}

var (
	current atomic.Pointer[runtime]
	initMu  sync.Mutex
)

// threadKey is the tracker identity of a thread's termination.
type threadKey int64

// Init configures the runtime from the environment and opts. It is
// idempotent: once a runtime exists, later calls return nil and change
// nothing until Teardown.
func Init(opts ...config.Option) error {
	initMu.Lock()
	defer initMu.Unlock()

	if current.Load() != nil {
		return nil
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("threads: configuration: %w", err)
	}
	cfg = cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("threads: configuration: %w", err)
	}

	current.Store(newRuntime(cfg, config.NewLogger(cfg, os.Stderr)))
	return nil
}

// InitWithLogger is Init with an explicit logger, which wins over the
// configured log format.
func InitWithLogger(log *slog.Logger, opts ...config.Option) error {
	initMu.Lock()
	defer initMu.Unlock()

	if current.Load() != nil {
		return nil
	}

	cfg := config.Default().Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("threads: configuration: %w", err)
	}
	current.Store(newRuntime(cfg, log))
	return nil
}

func newRuntime(cfg config.Config, log *slog.Logger) *runtime {
	r := &runtime{
		cfg: cfg,
		log: log,
		hb:  hbclock.NewTracker(),
	}
	r.be = newBackend(backend.Options{
		Host:              r,
		Logger:            log,
		DeadlockWarnAfter: cfg.DeadlockWarnAfter,
	})
	r.keys = tss.NewTable(r.be.KeyCapacity())

	log.Debug("threads runtime initialized",
		"backend", r.be.Name(),
		"key_capacity", r.keys.Cap(),
		"track_hb", cfg.TrackHappensBefore,
		"deadlock_detection", kernel.DeadlockDetection)
	return r
}

// get returns the current runtime, initializing it on first use. A broken
// environment does not make the library unusable: the defaults are used
// and the problem is logged.
func get() *runtime {
	if r := current.Load(); r != nil {
		return r
	}
	if err := Init(); err != nil {
		initMu.Lock()
		if current.Load() == nil {
			cfg := config.Default()
			log := config.NewLogger(cfg, os.Stderr)
			log.Warn("falling back to default configuration", "error", err)
			current.Store(newRuntime(cfg, log))
		}
		initMu.Unlock()
	}
	return current.Load()
}

// Backend returns the name of the compiled backend.
func Backend() string {
	return get().be.Name()
}

// Logger returns the runtime logger.
func Logger() *slog.Logger {
	return get().log
}

// ThreadStart implements backend.Host.
func (r *runtime) ThreadStart(id int64) *goroutine.Context {
	ctx := goroutine.Alloc(id, true, r.cfg.TrackHappensBefore)
	r.contexts.Store(id, ctx)
	return ctx
}

// Context implements backend.Host. It returns the calling goroutine's
// context, adopting the goroutine if it has none.
func (r *runtime) Context() *goroutine.Context {
	id := goid.Get()
	if v, ok := r.contexts.Load(id); ok {
		return v.(*goroutine.Context)
	}

	ctx := goroutine.Alloc(id, false, r.cfg.TrackHappensBefore)
	r.contexts.Store(id, ctx)
	r.be.Adopt(id)
	r.maybeReap()
	return ctx
}

// CleanupThread implements backend.Host.
func (r *runtime) CleanupThread(ctx *goroutine.Context) {
	res := ctx.TSS.Cleanup(r.keys)
	if res.Destructed > 0 {
		r.log.Debug("thread destructors ran",
			"thread", ctx.ID, "calls", res.Destructed, "passes", res.Passes)
	}
	if !res.Converged() {
		r.log.Warn("thread-specific values discarded without destructor call",
			"thread", ctx.ID, "pending", res.Pending, "passes", res.Passes)
	}
}

// ThreadEnd implements backend.Host.
func (r *runtime) ThreadEnd(ctx *goroutine.Context) {
	if ctx.Tracking() {
		r.hb.Release(threadKey(ctx.ID), ctx.ID, ctx.Clock)
	}
	r.contexts.CompareAndDelete(ctx.ID, ctx)
	if !ctx.Spawned {
		r.be.Release(ctx.ID)
	}
}

func (r *runtime) maybeReap() {
	n := r.allocs.Add(1)
	if n%uint64(r.cfg.ReapInterval) == 0 { //nolint:gosec // validated positive
		go r.reap()
	}
}

// reap cleans up the contexts of adopted goroutines that have exited. The
// destructors run on the reaping goroutine. It returns the number of
// contexts reclaimed.
//
// Candidates are collected before the live set is read: a goroutine
// adopted after that read is not a candidate, and a candidate missing from
// the later live set has exited, since goroutine IDs are never reused.
func (r *runtime) reap() int {
	var candidates []*goroutine.Context
	r.contexts.Range(func(_, v any) bool {
		if ctx := v.(*goroutine.Context); !ctx.Spawned {
			candidates = append(candidates, ctx)
		}
		return true
	})
	if len(candidates) == 0 {
		r.reaps.Add(1)
		return 0
	}

	live := make(map[int64]bool)
	for _, id := range goid.Live() {
		live[id] = true
	}

	reclaimed := 0
	for _, ctx := range candidates {
		if live[ctx.ID] {
			continue
		}
		if r.contexts.CompareAndDelete(ctx.ID, ctx) {
			r.CleanupThread(ctx)
			r.be.Release(ctx.ID)
			reclaimed++
		}
	}

	r.reaps.Add(1)
	if reclaimed > 0 {
		r.log.Debug("reaped contexts of exited goroutines", "count", reclaimed)
	}
	return reclaimed
}

// Reap runs the reaper synchronously and returns how many contexts it
// reclaimed.
func Reap() int {
	return get().reap()
}

// Teardown ends the current runtime. It runs the destructors of every
// adopted goroutine and of every finished thread whose context is still
// around, and reports each thread that was created but never joined or
// detached, with its creation site. The next use of the library starts a
// fresh runtime.
func Teardown() error {
	initMu.Lock()
	defer initMu.Unlock()

	r := current.Swap(nil)
	if r == nil {
		return nil
	}

	var result *multierror.Error
	leaked := 0
	r.spawned.Range(func(k, v any) bool {
		leaked++
		id := k.(int64)
		site := stackdepot.Get(v.(uint64))
		r.log.Warn("thread was never joined or detached", "thread", id, "created_at", site.Origin())
		result = multierror.Append(result, status.Errorf(status.ErrError,
			"thread %d was never joined or detached; created at\n%s", id, site.Format()))
		return true
	})

	live := make(map[int64]bool)
	for _, id := range goid.Live() {
		live[id] = true
	}
	r.contexts.Range(func(k, v any) bool {
		ctx := v.(*goroutine.Context)
		// A running thread still owns its values; destructing them here
		// would race with it.
		if ctx.Spawned && live[ctx.ID] {
			return true
		}
		if r.contexts.CompareAndDelete(k, v) {
			r.CleanupThread(ctx)
			if !ctx.Spawned {
				r.be.Release(ctx.ID)
			}
		}
		return true
	})

	r.keys.Reset()
	r.hb.Reset()
	stackdepot.Reset()
	r.log.Debug("threads runtime torn down", "leaked_threads", leaked)

	return result.ErrorOrNil()
}
