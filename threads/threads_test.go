// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threads_test

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/threadkit/threads"
)

func setup(t *testing.T, opts ...threads.Option) {
	t.Helper()
	_ = threads.Teardown()
	require.NoError(t, threads.InitWithLogger(slog.New(slog.DiscardHandler), opts...))
	t.Cleanup(func() {
		assert.NoError(t, threads.Teardown(), "test leaked threads")
	})
}

func TestMutualExclusion(t *testing.T) {
	kinds := []threads.Kind{threads.Plain, threads.Timed, threads.Recursive, threads.Timed | threads.Recursive}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			setup(t)

			m, err := threads.NewMutex(kind)
			require.NoError(t, err)

			const workers, rounds = 8, 200
			var inside atomic.Int32
			var violations atomic.Int32
			counter := 0

			ids := make([]threads.ThreadID, workers)
			for i := range ids {
				ids[i], err = threads.Create(func(any) int {
					for range rounds {
						if err := m.Lock(); err != nil {
							return 1
						}
						if inside.Add(1) != 1 {
							violations.Add(1)
						}
						counter++
						inside.Add(-1)
						if err := m.Unlock(); err != nil {
							return 2
						}
					}
					return 0
				}, nil)
				require.NoError(t, err)
			}

			for _, id := range ids {
				code, err := threads.Join(id)
				require.NoError(t, err)
				assert.Zero(t, code)
			}
			assert.Zero(t, violations.Load())
			assert.Equal(t, workers*rounds, counter)
			require.NoError(t, m.Destroy())
		})
	}
}

func TestRecursiveNeedsMatchingUnlocks(t *testing.T) {
	setup(t)

	m, err := threads.NewMutex(threads.Recursive)
	require.NoError(t, err)

	require.NoError(t, m.Lock())
	require.NoError(t, m.Lock())
	require.NoError(t, m.Unlock())

	id, err := threads.Create(func(any) int {
		return int(threads.CodeOf(m.TryLock()))
	}, nil)
	require.NoError(t, err)
	code, err := threads.Join(id)
	require.NoError(t, err)
	assert.Equal(t, int(threads.Busy), code, "one level is still held")

	require.NoError(t, m.Unlock())
	assert.ErrorIs(t, m.Unlock(), threads.ErrError)
}

func TestSelfRelockNeverSucceeds(t *testing.T) {
	setup(t)

	m, err := threads.NewMutex(threads.Plain)
	require.NoError(t, err)
	require.NoError(t, m.Lock())

	assert.ErrorIs(t, m.TryLock(), threads.ErrBusy)

	start := time.Now()
	assert.ErrorIs(t, m.TimedLock(time.Now().Add(30*time.Millisecond)), threads.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	require.NoError(t, m.Unlock())
}

func TestTimedLockPastDeadlineNeverBlocks(t *testing.T) {
	setup(t)

	m, err := threads.NewMutex(threads.Timed)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, m.TimedLock(time.Now().Add(-time.Second)))
	assert.Less(t, time.Since(start), 5*time.Millisecond)

	id, err := threads.Create(func(any) int {
		start := time.Now()
		err := m.TimedLock(time.Now().Add(-time.Second))
		if time.Since(start) > 5*time.Millisecond {
			return -1
		}
		return int(threads.CodeOf(err))
	}, nil)
	require.NoError(t, err)

	code, err := threads.Join(id)
	require.NoError(t, err)
	assert.Equal(t, int(threads.Timeout), code)
	require.NoError(t, m.Unlock())
}

// A holds the mutex for 50ms; B times out at 10ms and succeeds within 100ms.
func TestTimedLockScenario(t *testing.T) {
	for _, kind := range []threads.Kind{threads.Plain, threads.Timed} {
		t.Run(kind.String(), func(t *testing.T) {
			setup(t)

			m, err := threads.NewMutex(kind)
			require.NoError(t, err)

			locked := make(chan struct{})
			a, err := threads.Create(func(any) int {
				if err := m.Lock(); err != nil {
					return 1
				}
				close(locked)
				if _, err := threads.Sleep(50 * time.Millisecond); err != nil {
					return 2
				}
				if err := m.Unlock(); err != nil {
					return 3
				}
				return 0
			}, nil)
			require.NoError(t, err)
			<-locked

			type result struct{ first, second error }
			res := make(chan result, 1)
			b, err := threads.Create(func(any) int {
				var r result
				r.first = m.TimedLock(time.Now().Add(10 * time.Millisecond))
				r.second = m.TimedLock(time.Now().Add(100 * time.Millisecond))
				if r.second == nil {
					_ = m.Unlock()
				}
				res <- r
				return 0
			}, nil)
			require.NoError(t, err)

			r := <-res
			assert.ErrorIs(t, r.first, threads.ErrTimeout)
			assert.NoError(t, r.second)

			for _, id := range []threads.ThreadID{a, b} {
				code, err := threads.Join(id)
				require.NoError(t, err)
				assert.Zero(t, code)
			}
		})
	}
}

func TestBroadcastWakesAll(t *testing.T) {
	setup(t)

	m, err := threads.NewMutex(threads.Plain)
	require.NoError(t, err)
	c, err := threads.NewCond()
	require.NoError(t, err)

	const n = 6
	var waiting atomic.Int32
	release := false

	ids := make([]threads.ThreadID, n)
	for i := range ids {
		ids[i], err = threads.Create(func(any) int {
			_ = m.Lock()
			waiting.Add(1)
			for !release {
				_ = c.Wait(m)
			}
			_ = m.Unlock()
			return 0
		}, nil)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return waiting.Load() == n }, time.Second, time.Millisecond)
	require.NoError(t, m.Lock())
	release = true
	require.NoError(t, c.Broadcast())
	require.NoError(t, m.Unlock())

	for _, id := range ids {
		_, err := threads.Join(id)
		require.NoError(t, err)
	}
}

func TestSignalWithoutWaitersIsNotRemembered(t *testing.T) {
	setup(t)

	m, err := threads.NewMutex(threads.Plain)
	require.NoError(t, err)
	c, err := threads.NewCond()
	require.NoError(t, err)

	require.NoError(t, c.Signal())

	require.NoError(t, m.Lock())
	err = c.TimedWait(m, time.Now().Add(30*time.Millisecond))
	assert.ErrorIs(t, err, threads.ErrTimeout)
	require.NoError(t, m.Unlock())
}

func TestDetachThenJoin(t *testing.T) {
	setup(t)

	id, err := threads.Create(func(any) int { return 0 }, nil)
	require.NoError(t, err)
	require.NoError(t, threads.Detach(id))

	_, err = threads.Join(id)
	assert.ErrorIs(t, err, threads.ErrNotFound)
	assert.Equal(t, threads.NotFound, threads.CodeOf(err))
}

func TestExitCodeReachesJoin(t *testing.T) {
	setup(t)

	var deferred atomic.Bool
	id, err := threads.Create(func(any) int {
		defer deferred.Store(true)
		threads.Exit(-7)
		return 0
	}, nil)
	require.NoError(t, err)

	code, err := threads.Join(id)
	require.NoError(t, err)
	assert.Equal(t, -7, code)
	assert.True(t, deferred.Load())
}

func TestDestructorRunsOncePerThread(t *testing.T) {
	setup(t)

	var mu sync.Mutex
	seen := map[any]int{}
	k, err := threads.CreateKey(func(v any) {
		mu.Lock()
		seen[v]++
		mu.Unlock()
	})
	require.NoError(t, err)

	const n = 5
	ids := make([]threads.ThreadID, n)
	for i := range ids {
		ids[i], err = threads.Create(func(arg any) int {
			if threads.Get(k) != nil {
				return 1
			}
			_ = threads.Set(k, arg)
			if threads.Get(k) != arg {
				return 2
			}
			return 0
		}, i)
		require.NoError(t, err)
	}
	for _, id := range ids {
		code, err := threads.Join(id)
		require.NoError(t, err)
		assert.Zero(t, code)
	}

	assert.Len(t, seen, n)
	for v, count := range seen {
		assert.Equal(t, 1, count, "value %v", v)
	}
}

func TestDestructorConvergenceIsBounded(t *testing.T) {
	setup(t)

	var k threads.Key
	var calls atomic.Int32
	k, err := threads.CreateKey(func(v any) {
		calls.Add(1)
		_ = threads.Set(k, v)
	})
	require.NoError(t, err)

	id, err := threads.Create(func(any) int {
		_ = threads.Set(k, 1)
		return 0
	}, nil)
	require.NoError(t, err)
	_, err = threads.Join(id)
	require.NoError(t, err)

	assert.Equal(t, int32(threads.DestructorIterations), calls.Load())
}

func TestKeysExhaust(t *testing.T) {
	setup(t)

	capacity := threads.ReadStats().KeyCapacity
	keys := make([]threads.Key, 0, capacity)
	for range capacity {
		k, err := threads.CreateKey(nil)
		require.NoError(t, err)
		keys = append(keys, k)
	}

	_, err := threads.CreateKey(nil)
	assert.ErrorIs(t, err, threads.ErrNoMemory)

	require.NoError(t, threads.DeleteKey(keys[0]))
	_, err = threads.CreateKey(nil)
	assert.NoError(t, err)
}

func TestCallOnceConcurrent(t *testing.T) {
	setup(t, threads.WithHappensBefore(true))

	var flag threads.OnceFlag
	var calls atomic.Int32
	var inside threads.Snapshot

	const n = 12
	after := make([]threads.Snapshot, n)
	ids := make([]threads.ThreadID, n)
	for i := range ids {
		var err error
		ids[i], err = threads.Create(func(any) int {
			threads.CallOnce(&flag, func() {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				inside = threads.Clock()
			})
			after[i] = threads.Clock()
			return 0
		}, nil)
		require.NoError(t, err)
	}
	for _, id := range ids {
		_, err := threads.Join(id)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), calls.Load())
	for i, s := range after {
		assert.True(t, inside.HappensBefore(s), "caller %d returned before the callback completed", i)
	}
}

func TestJoinHappensBefore(t *testing.T) {
	setup(t, threads.WithHappensBefore(true))

	var last threads.Snapshot
	id, err := threads.Create(func(any) int {
		last = threads.Clock()
		return 0
	}, nil)
	require.NoError(t, err)

	_, err = threads.Join(id)
	require.NoError(t, err)
	assert.True(t, last.HappensBefore(threads.Clock()))
}

func TestTeardownLogsLeakedThread(t *testing.T) {
	_ = threads.Teardown()
	var buf bytes.Buffer
	require.NoError(t, threads.InitWithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	done := make(chan struct{})
	_, err := threads.Create(func(any) int {
		<-done
		return 0
	}, nil)
	require.NoError(t, err)

	err = threads.Teardown()
	close(done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TestTeardownLogsLeakedThread")
	assert.Contains(t, buf.String(), "thread was never joined or detached")
}

func TestGetInfo(t *testing.T) {
	info := threads.GetInfo()
	assert.Equal(t, threads.Version, info.Version)
	assert.Contains(t, []string{"posix", "emulated"}, info.Backend)
}
