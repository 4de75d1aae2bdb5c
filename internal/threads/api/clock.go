// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"github.com/kolkov/threadkit/internal/threads/hbclock"
)

// Snapshot is a point in the logical time of one thread.
type Snapshot struct {
	vc *hbclock.VectorClock
}

// Clock returns the calling thread's logical time and advances it, so
// two snapshots taken in a row by one thread are ordered. Without
// happens-before tracking it returns the zero Snapshot.
func Clock() Snapshot {
	r := get()
	if !r.cfg.TrackHappensBefore {
		return Snapshot{}
	}
	return Snapshot{vc: r.Context().Snapshot()}
}

// Valid reports whether s was taken with tracking enabled.
func (s Snapshot) Valid() bool {
	return s.vc != nil
}

// HappensBefore reports whether s is ordered before o.
func (s Snapshot) HappensBefore(o Snapshot) bool {
	if !s.Valid() || !o.Valid() {
		return false
	}
	return s.vc.HappensBefore(o.vc)
}

// Concurrent reports whether neither of s and o happened before the other.
func (s Snapshot) Concurrent(o Snapshot) bool {
	return s.Valid() && o.Valid() && !s.HappensBefore(o) && !o.HappensBefore(s)
}

func (s Snapshot) String() string {
	if !s.Valid() {
		return "{untracked}"
	}
	return s.vc.String()
}

// Stats is a point-in-time view of the runtime.
type Stats struct {
	Backend       string
	KeyCapacity   int
	Keys          int
	Contexts      int
	LiveThreads   int
	Reaps         uint64
	TrackingClock bool
}

// ReadStats returns the current runtime statistics.
func ReadStats() Stats {
	r := get()
	s := Stats{
		Backend:       r.be.Name(),
		KeyCapacity:   r.keys.Cap(),
		Keys:          r.keys.Len(),
		Reaps:         r.reaps.Load(),
		TrackingClock: r.cfg.TrackHappensBefore,
	}
	r.contexts.Range(func(_, _ any) bool {
		s.Contexts++
		return true
	})
	r.spawned.Range(func(_, _ any) bool {
		s.LiveThreads++
		return true
	})
	return s
}
