// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package deadline converts absolute deadlines into the relative waits the
// backends need, and implements the bounded polling fallback for timed
// acquisition on objects that have no native timed wait.
//
// Every timed operation in this module takes an absolute time.Time. Retrying
// against a fixed deadline never drifts, whereas re-basing a relative
// duration on each retry would.
package deadline

import (
	"errors"
	"math"
	"time"

	"github.com/kolkov/threadkit/internal/threads/status"
)

// PollInterval is the longest nap between two acquisition attempts of Poll.
const PollInterval = 5 * time.Millisecond

// Infinite is the millisecond timeout meaning "wait forever" (INFINITE).
const Infinite = math.MaxUint32

// Expired reports whether d is at or before now.
func Expired(d time.Time) bool {
	return !time.Now().Before(d)
}

// Remaining returns the time left until d, clamped to zero.
func Remaining(d time.Time) time.Duration {
	if r := time.Until(d); r > 0 {
		return r
	}
	return 0
}

// Millis converts d into a kernel-style millisecond timeout.
//
// An expired deadline yields 0 (poll once). A future deadline is rounded up
// and padded by one millisecond so the wait never returns before d.
// Timeouts too large for a uint32 are clamped just below Infinite.
func Millis(d time.Time) uint32 {
	r := time.Until(d)
	if r <= 0 {
		return 0
	}
	ms := (r + time.Millisecond - 1) / time.Millisecond
	ms++
	if ms >= Infinite {
		return Infinite - 1
	}
	return uint32(ms)
}

// Poll retries try until it stops reporting status.ErrBusy or d passes.
//
// The wall clock is re-read on every iteration and each nap is at most
// PollInterval, so the overshoot past d is bounded by one interval. A
// deadline that has already passed still gets exactly one attempt.
//
// Returns nil on acquisition, status.ErrTimeout when d passes, or whatever
// non-busy error try produced.
func Poll(d time.Time, try func() error) error {
	for {
		err := try()
		if !errors.Is(err, status.ErrBusy) {
			return err
		}

		r := time.Until(d)
		if r <= 0 {
			return status.ErrTimeout
		}
		time.Sleep(min(r, PollInterval))
	}
}
