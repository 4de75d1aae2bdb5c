// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tss implements thread-specific storage: a process-wide table of
// keys with optional destructors, and the per-thread value store that is
// cleaned up when its thread ends.
//
// The table has a hard capacity fixed at construction. Slots of deleted
// keys are recycled, and every key carries the generation of its slot so a
// stale key never reads, writes or destructs the value of a newer key that
// reuses the slot.
package tss

import (
	"fmt"

	"github.com/kolkov/threadkit/internal/threads/kernel"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// DestructorIterations bounds the number of cleanup passes over a thread's
// values (TSS_DTOR_ITERATIONS).
const DestructorIterations = 4

// Destructor is called with the last non-nil value a thread stored under a
// key when that thread ends.
type Destructor func(value any)

// Key identifies a TSS key. The zero Key is never valid.
type Key struct {
	Slot uint32
	Gen  uint32
}

func (k Key) String() string {
	return fmt.Sprintf("key(%d#%d)", k.Slot, k.Gen)
}

type slot struct {
	gen  uint32
	live bool
	dtor Destructor
}

// Table is the key→destructor table shared by every thread.
type Table struct {
	lock  kernel.SRWLock
	slots []slot
	free  []uint32
}

// NewTable returns a table that holds at most capacity live keys.
func NewTable(capacity int) *Table {
	t := &Table{}
	t.init(capacity)
	return t
}

func (t *Table) init(capacity int) {
	t.slots = make([]slot, capacity)
	t.free = make([]uint32, capacity)
	for i := range t.free {
		t.free[i] = uint32(i) //nolint:gosec // capacity is a small positive int
	}
}

// Create allocates a key. When every slot is in use it fails with
// status.ErrNoMemory; the table never grows.
func (t *Table) Create(dtor Destructor) (Key, error) {
	t.lock.AcquireExclusive()
	defer t.lock.ReleaseExclusive()

	if len(t.free) == 0 {
		return Key{}, status.Errorf(status.ErrNoMemory, "tss: all %d keys in use", len(t.slots))
	}

	// FIFO reuse: the slot freed longest ago is handed out first.
	i := t.free[0]
	t.free = t.free[1:]

	s := &t.slots[i]
	s.gen++
	s.live = true
	s.dtor = dtor

	return Key{Slot: i, Gen: s.gen}, nil
}

// Delete frees k's slot. Values threads stored under k are not destructed.
func (t *Table) Delete(k Key) error {
	t.lock.AcquireExclusive()
	defer t.lock.ReleaseExclusive()

	if !t.validLocked(k) {
		return status.Errorf(status.ErrError, "tss: delete of invalid %s", k)
	}
	s := &t.slots[k.Slot]
	s.live = false
	s.dtor = nil
	t.free = append(t.free, k.Slot)
	return nil
}

// Valid reports whether k names a live key.
func (t *Table) Valid(k Key) bool {
	t.lock.AcquireShared()
	defer t.lock.ReleaseShared()
	return t.validLocked(k)
}

// Destructor returns k's destructor. ok is false for a key that is no
// longer live.
func (t *Table) Destructor(k Key) (dtor Destructor, ok bool) {
	t.lock.AcquireShared()
	defer t.lock.ReleaseShared()

	if !t.validLocked(k) {
		return nil, false
	}
	return t.slots[k.Slot].dtor, true
}

func (t *Table) validLocked(k Key) bool {
	if int(k.Slot) >= len(t.slots) {
		return false
	}
	s := t.slots[k.Slot]
	return s.live && s.gen == k.Gen && k.Gen != 0
}

// Len returns the number of live keys.
func (t *Table) Len() int {
	t.lock.AcquireShared()
	defer t.lock.ReleaseShared()
	return len(t.slots) - len(t.free)
}

// Cap returns the capacity the table was created with.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Reset deletes every key. Generations restart, so keys obtained before
// Reset must not be used afterwards.
func (t *Table) Reset() {
	t.lock.AcquireExclusive()
	defer t.lock.ReleaseExclusive()
	t.init(len(t.slots))
}
