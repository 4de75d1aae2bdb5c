// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hbclock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clock(kv ...uint64) *VectorClock {
	vc := New()
	for i := 0; i+1 < len(kv); i += 2 {
		vc.Set(int64(kv[i]), kv[i+1])
	}
	return vc
}

func TestJoin(t *testing.T) {
	vc := clock(1, 5, 2, 3)
	vc.Join(clock(1, 4, 3, 7))
	assert.Equal(t, "{1:5, 2:3, 3:7}", vc.String())

	vc.Join(nil)
	assert.Equal(t, 3, vc.Len())
}

func TestOrdering(t *testing.T) {
	tests := []struct {
		name   string
		a, b   *VectorClock
		le, hb bool
	}{
		{"equal", clock(1, 1), clock(1, 1), true, false},
		{"strictly before", clock(1, 1), clock(1, 2), true, true},
		{"missing component is zero", New(), clock(7, 1), true, true},
		{"concurrent", clock(1, 2, 2, 0), clock(1, 1, 2, 1), false, false},
		{"after", clock(1, 3), clock(1, 2), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.le, tt.a.LessOrEqual(tt.b))
			assert.Equal(t, tt.hb, tt.a.HappensBefore(tt.b))
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	vc := clock(1, 1)
	cp := vc.Clone()
	cp.Increment(1)

	assert.Equal(t, uint64(1), vc.Get(1))
	assert.Equal(t, uint64(2), cp.Get(1))

	var nilClock *VectorClock
	assert.Zero(t, nilClock.Get(1))
}

func TestTrackerReleaseAcquire(t *testing.T) {
	tr := NewTracker()
	obj := new(int)

	a := clock(1, 1)
	tr.Release(obj, 1, a)
	assert.Equal(t, uint64(2), a.Get(1), "release advances the releaser")

	b := clock(2, 1)
	tr.Acquire(obj, b)
	assert.Equal(t, uint64(1), b.Get(1))
	assert.True(t, clock(1, 1).HappensBefore(b))

	// Second release merges rather than overwrites.
	c := clock(3, 4)
	tr.Release(obj, 3, c)
	d := New()
	tr.Acquire(obj, d)
	assert.Equal(t, "{1:1, 3:4}", d.String())
}

func TestTrackerUnknownObjectAndNilClock(t *testing.T) {
	tr := NewTracker()
	vc := clock(1, 1)

	tr.Acquire("never released", vc)
	assert.Equal(t, "{1:1}", vc.String())

	tr.Release("x", 1, nil)
	tr.Acquire("x", nil)

	tr.Release("x", 1, vc)
	tr.Forget("x")
	fresh := New()
	tr.Acquire("x", fresh)
	assert.Zero(t, fresh.Len())
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker()
	obj := new(int)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vc := New()
			for range 100 {
				mu.Lock()
				tr.Acquire(obj, vc)
				vc.Increment(int64(i))
				tr.Release(obj, int64(i), vc)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	final := New()
	tr.Acquire(obj, final)
	assert.Equal(t, 8, final.Len())
}
