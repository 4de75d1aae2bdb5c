// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hbclock tracks happens-before relations between threads with
// vector clocks.
//
// Every thread context owns a VectorClock. Synchronization objects
// (mutexes, once flags, finished threads) hold a release clock in a
// Tracker: releasing merges the thread's clock into it, acquiring joins it
// back into the acquiring thread's clock.
//
// Key operations:
//   - Join: point-wise maximum, used on acquire
//   - LessOrEqual / HappensBefore: partial-order checks
//
// Tracking is optional. With it disabled, contexts carry no clock and
// every hook is a no-op.
package hbclock

import (
	"maps"
	"slices"
	"strconv"
	"strings"
)

// VectorClock maps thread IDs to logical time. Absent entries are zero.
//
// Thread IDs are goroutine IDs and are never reused, so the clock is
// sparse: a fixed array indexed by a recycled TID would alias unrelated
// threads.
type VectorClock struct {
	c map[int64]uint64
}

// New returns a zero clock.
func New() *VectorClock {
	return &VectorClock{c: make(map[int64]uint64)}
}

// Clone returns a deep copy of vc.
func (vc *VectorClock) Clone() *VectorClock {
	return &VectorClock{c: maps.Clone(vc.c)}
}

// Join sets vc to the point-wise maximum of vc and other.
//
// Example:
//
//	vc    = {1:5, 2:3}
//	other = {1:4, 3:7}
//	vc.Join(other)
//	vc    = {1:5, 2:3, 3:7}
func (vc *VectorClock) Join(other *VectorClock) {
	if other == nil {
		return
	}
	for id, t := range other.c {
		if t > vc.c[id] {
			vc.c[id] = t
		}
	}
}

// LessOrEqual reports whether vc[i] <= other[i] for every thread i.
func (vc *VectorClock) LessOrEqual(other *VectorClock) bool {
	for id, t := range vc.c {
		if t > other.Get(id) {
			return false
		}
	}
	return true
}

// HappensBefore reports whether vc is ordered strictly before other.
func (vc *VectorClock) HappensBefore(other *VectorClock) bool {
	return vc.LessOrEqual(other) && !other.LessOrEqual(vc)
}

// Increment advances thread id's component by one.
func (vc *VectorClock) Increment(id int64) {
	vc.c[id]++
}

// Get returns thread id's component.
func (vc *VectorClock) Get(id int64) uint64 {
	if vc == nil {
		return 0
	}
	return vc.c[id]
}

// Set overwrites thread id's component.
func (vc *VectorClock) Set(id int64, t uint64) {
	vc.c[id] = t
}

// Len returns the number of non-zero components.
func (vc *VectorClock) Len() int {
	return len(vc.c)
}

// String formats vc as "{id:time, ...}" in ascending id order.
func (vc *VectorClock) String() string {
	ids := slices.Sorted(maps.Keys(vc.c))

	var b strings.Builder
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(vc.c[id], 10))
	}
	b.WriteByte('}')
	return b.String()
}
