// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backendtest checks that a backend.Backend implementation
// behaves like a POSIX threads layer.
package backendtest

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/goid"
	"github.com/kolkov/threadkit/internal/threads/goroutine"
	"github.com/kolkov/threadkit/internal/threads/tss"
)

// Host is a minimal backend.Host that records the lifecycle calls it gets.
type Host struct {
	Keys *tss.Table

	contexts sync.Map // int64 -> *goroutine.Context

	Started  atomic.Int32
	Ended    atomic.Int32
	Cleanups atomic.Int32
}

var _ backend.Host = (*Host)(nil)

// NewHost returns a host with a key table of the given capacity.
func NewHost(keyCapacity int) *Host {
	return &Host{Keys: tss.NewTable(keyCapacity)}
}

func (h *Host) ThreadStart(id int64) *goroutine.Context {
	h.Started.Add(1)
	ctx := goroutine.Alloc(id, true, false)
	h.contexts.Store(id, ctx)
	return ctx
}

func (h *Host) Context() *goroutine.Context {
	id := goid.Get()
	if v, ok := h.contexts.Load(id); ok {
		return v.(*goroutine.Context)
	}
	v, _ := h.contexts.LoadOrStore(id, goroutine.Alloc(id, false, false))
	return v.(*goroutine.Context)
}

func (h *Host) CleanupThread(ctx *goroutine.Context) {
	h.Cleanups.Add(1)
	ctx.TSS.Cleanup(h.Keys)
}

func (h *Host) ThreadEnd(ctx *goroutine.Context) {
	h.Ended.Add(1)
	h.contexts.Delete(ctx.ID)
}
