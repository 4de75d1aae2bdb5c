// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package once

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoRunsOnce(t *testing.T) {
	t.Parallel()

	var f Flag
	assert.Equal(t, Uninitialized, f.State())

	calls := 0
	for range 3 {
		f.Do(func() { calls++ })
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, Done, f.State())
}

func TestConcurrentCallersWaitForCompletion(t *testing.T) {
	t.Parallel()

	var f Flag
	var calls atomic.Int32
	var finished atomic.Bool

	const n = 32
	observed := make([]bool, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Do(func() {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				finished.Store(true)
			})
			observed[i] = finished.Load()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i, ok := range observed {
		assert.True(t, ok, "caller %d returned before fn finished", i)
	}
}

func TestPanicStillMarksDone(t *testing.T) {
	t.Parallel()

	var f Flag
	assert.Panics(t, func() {
		f.Do(func() { panic("boom") })
	})
	assert.Equal(t, Done, f.State())

	ran := false
	f.Do(func() { ran = true })
	assert.False(t, ran)
}

func TestReentrantDoReturns(t *testing.T) {
	t.Parallel()

	var f Flag
	inner := false
	f.Do(func() {
		f.Do(func() { inner = true })
	})

	assert.False(t, inner)
	assert.Equal(t, Done, f.State())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "invalid", State(9).String())
}

func BenchmarkDoDone(b *testing.B) {
	var f Flag
	f.Do(func() {})

	b.ReportAllocs()
	for b.Loop() {
		f.Do(func() {})
	}
}
