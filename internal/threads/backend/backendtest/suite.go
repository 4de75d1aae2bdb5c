// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backendtest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/status"
)

// Factory builds a fresh backend bound to host.
type Factory func(host backend.Host) backend.Backend

// Run runs the conformance suite against the backend built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	fresh := func(t *testing.T) (backend.Backend, *Host) {
		t.Helper()
		h := NewHost(16)
		return newBackend(h), h
	}

	t.Run("MutualExclusion", func(t *testing.T) {
		for _, kind := range []backend.Kind{backend.Plain, backend.Timed, backend.Recursive, backend.Timed | backend.Recursive} {
			t.Run(kind.String(), func(t *testing.T) {
				b, _ := fresh(t)
				testMutualExclusion(t, b, kind)
			})
		}
	})
	t.Run("InvalidKind", func(t *testing.T) {
		b, _ := fresh(t)
		_, err := b.NewMutex(backend.Kind(4))
		assert.ErrorIs(t, err, status.ErrError)
	})
	t.Run("RecursiveNeedsMatchingUnlocks", func(t *testing.T) {
		b, _ := fresh(t)
		testRecursive(t, b)
	})
	t.Run("TryLockSelfRelockIsBusy", func(t *testing.T) {
		for _, kind := range []backend.Kind{backend.Plain, backend.Timed} {
			t.Run(kind.String(), func(t *testing.T) {
				b, _ := fresh(t)
				testTryLockBusy(t, b, kind)
			})
		}
	})
	t.Run("PlainSelfRelockBlocks", func(t *testing.T) {
		b, _ := fresh(t)
		testSelfRelockBlocks(t, b)
	})
	t.Run("TimedLockPastDeadline", func(t *testing.T) {
		for _, kind := range []backend.Kind{backend.Plain, backend.Timed} {
			t.Run(kind.String(), func(t *testing.T) {
				b, _ := fresh(t)
				testTimedLockPastDeadline(t, b, kind)
			})
		}
	})
	t.Run("TimedLockScenario", func(t *testing.T) {
		for _, kind := range []backend.Kind{backend.Plain, backend.Timed} {
			t.Run(kind.String(), func(t *testing.T) {
				b, _ := fresh(t)
				testTimedLockScenario(t, b, kind)
			})
		}
	})
	t.Run("Held", func(t *testing.T) {
		for _, kind := range []backend.Kind{backend.Plain, backend.Timed, backend.Recursive, backend.Timed | backend.Recursive} {
			t.Run(kind.String(), func(t *testing.T) {
				b, _ := fresh(t)
				testHeld(t, b, kind)
			})
		}
	})
	t.Run("UnlockUnheld", func(t *testing.T) {
		b, _ := fresh(t)
		m, err := b.NewMutex(backend.Plain)
		require.NoError(t, err)
		assert.ErrorIs(t, m.Unlock(), status.ErrError)
	})
	t.Run("UseAfterDestroy", func(t *testing.T) {
		b, _ := fresh(t)
		m, err := b.NewMutex(backend.Plain)
		require.NoError(t, err)
		require.NoError(t, m.Destroy())
		assert.ErrorIs(t, m.Lock(), status.ErrError)
		assert.ErrorIs(t, m.Destroy(), status.ErrError)
	})
	t.Run("CondBroadcastWakesAll", func(t *testing.T) {
		b, _ := fresh(t)
		testBroadcast(t, b)
	})
	t.Run("CondSignalWakesOne", func(t *testing.T) {
		b, _ := fresh(t)
		testSignalOne(t, b)
	})
	t.Run("CondSignalWithoutWaitersIsLost", func(t *testing.T) {
		b, _ := fresh(t)
		testSignalNoWaiters(t, b)
	})
	t.Run("CondTimedWaitRelocks", func(t *testing.T) {
		b, _ := fresh(t)
		testTimedWait(t, b)
	})
	t.Run("CondProducerConsumer", func(t *testing.T) {
		b, _ := fresh(t)
		testProducerConsumer(t, b)
	})
	t.Run("JoinReturnsExitCode", func(t *testing.T) {
		b, h := fresh(t)
		testJoin(t, b, h)
	})
	t.Run("DetachThenJoinIsNotFound", func(t *testing.T) {
		b, _ := fresh(t)
		testDetach(t, b)
	})
	t.Run("ExitRunsDestructors", func(t *testing.T) {
		b, h := fresh(t)
		testExit(t, b, h)
	})
	t.Run("ThreadDestructors", func(t *testing.T) {
		b, h := fresh(t)
		testThreadDestructors(t, b, h)
	})
	t.Run("Sleep", func(t *testing.T) {
		b, _ := fresh(t)
		start := time.Now()
		rem, err := b.Sleep(20 * time.Millisecond)
		require.NoError(t, err)
		assert.Zero(t, rem)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
	t.Run("CurrentIsStable", func(t *testing.T) {
		b, _ := fresh(t)
		assert.Equal(t, b.Current(), b.Current())
		b.Yield()
	})
}

func testMutualExclusion(t *testing.T, b backend.Backend, kind backend.Kind) {
	m, err := b.NewMutex(kind)
	require.NoError(t, err)
	defer func() { assert.NoError(t, m.Destroy()) }()

	const workers, rounds = 8, 200
	var inside atomic.Int32
	var violations atomic.Int32
	counter := 0

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rounds {
				var err error
				switch (w + i) % 3 {
				case 0:
					err = m.Lock()
				case 1:
					for err = m.TryLock(); err != nil; err = m.TryLock() {
						b.Yield()
					}
				case 2:
					err = m.TimedLock(time.Now().Add(10 * time.Second))
				}
				if !assert.NoError(t, err) {
					return
				}

				if inside.Add(1) != 1 {
					violations.Add(1)
				}
				counter++
				inside.Add(-1)

				assert.NoError(t, m.Unlock())
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, violations.Load())
	assert.Equal(t, workers*rounds, counter)
}

func testRecursive(t *testing.T, b backend.Backend) {
	m, err := b.NewMutex(backend.Recursive)
	require.NoError(t, err)

	require.NoError(t, m.Lock())
	require.NoError(t, m.Lock())
	require.NoError(t, m.TryLock())

	busy := make(chan error)
	go func() { busy <- m.TryLock() }()
	assert.ErrorIs(t, <-busy, status.ErrBusy)

	require.NoError(t, m.Unlock())
	require.NoError(t, m.Unlock())
	go func() { busy <- m.TryLock() }()
	assert.ErrorIs(t, <-busy, status.ErrBusy, "one level is still held")

	require.NoError(t, m.Unlock())
	assert.ErrorIs(t, m.Unlock(), status.ErrError)

	go func() {
		err := m.TryLock()
		if err == nil {
			err = m.Unlock()
		}
		busy <- err
	}()
	assert.NoError(t, <-busy)
}

func testHeld(t *testing.T, b backend.Backend, kind backend.Kind) {
	m, err := b.NewMutex(kind)
	require.NoError(t, err)
	assert.False(t, m.Held())

	require.NoError(t, m.Lock())
	assert.True(t, m.Held())

	other := make(chan bool)
	go func() { other <- m.Held() }()
	assert.False(t, <-other, "held by another thread")

	require.NoError(t, m.Unlock())
	assert.False(t, m.Held())
}

func testTryLockBusy(t *testing.T, b backend.Backend, kind backend.Kind) {
	m, err := b.NewMutex(kind)
	require.NoError(t, err)

	require.NoError(t, m.Lock())
	start := time.Now()
	assert.ErrorIs(t, m.TryLock(), status.ErrBusy, "self relock")
	assert.Less(t, time.Since(start), 50*time.Millisecond, "trylock never blocks")

	other := make(chan error)
	go func() { other <- m.TryLock() }()
	assert.ErrorIs(t, <-other, status.ErrBusy)

	require.NoError(t, m.Unlock())
	require.NoError(t, m.TryLock())
	require.NoError(t, m.Unlock())
}

func testSelfRelockBlocks(t *testing.T, b backend.Backend) {
	m, err := b.NewMutex(backend.Plain)
	require.NoError(t, err)

	second := make(chan struct{})
	go func() {
		_ = m.Lock()
		_ = m.Lock() // never returns
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second Lock on a plain mutex by its owner succeeded")
	case <-time.After(100 * time.Millisecond):
	}
}

func testTimedLockPastDeadline(t *testing.T, b backend.Backend, kind backend.Kind) {
	m, err := b.NewMutex(kind)
	require.NoError(t, err)
	past := time.Now().Add(-time.Second)

	start := time.Now()
	require.NoError(t, m.TimedLock(past), "free mutex is taken even with a past deadline")
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	other := make(chan error)
	go func() {
		start := time.Now()
		err := m.TimedLock(past)
		if time.Since(start) > 50*time.Millisecond {
			err = assert.AnError
		}
		other <- err
	}()
	assert.ErrorIs(t, <-other, status.ErrTimeout)

	require.NoError(t, m.Unlock())
}

// A holds the mutex for 50ms. B times out at +10ms and succeeds with a
// +100ms deadline once A lets go.
func testTimedLockScenario(t *testing.T, b backend.Backend, kind backend.Kind) {
	m, err := b.NewMutex(kind)
	require.NoError(t, err)

	locked := make(chan struct{})
	go func() {
		_ = m.Lock()
		close(locked)
		time.Sleep(50 * time.Millisecond)
		_ = m.Unlock()
	}()
	<-locked

	assert.ErrorIs(t, m.TimedLock(time.Now().Add(10*time.Millisecond)), status.ErrTimeout)
	require.NoError(t, m.TimedLock(time.Now().Add(100*time.Millisecond)))
	require.NoError(t, m.Unlock())
}

func testBroadcast(t *testing.T, b backend.Backend) {
	m, _ := b.NewMutex(backend.Plain)
	c, err := b.NewCond()
	require.NoError(t, err)

	const n = 6
	ready := 0
	released := false
	var woke atomic.Int32

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Lock()
			ready++
			for !released {
				if !assert.NoError(t, c.Wait(m)) {
					break
				}
			}
			woke.Add(1)
			_ = m.Unlock()
		}()
	}

	waitFor(t, m, func() bool { return ready == n })
	time.Sleep(10 * time.Millisecond)

	_ = m.Lock()
	released = true
	require.NoError(t, c.Broadcast())
	_ = m.Unlock()

	wg.Wait()
	assert.Equal(t, int32(n), woke.Load())
	assert.NoError(t, c.Destroy())
}

func testSignalOne(t *testing.T, b backend.Backend) {
	m, _ := b.NewMutex(backend.Plain)
	c, _ := b.NewCond()

	const n = 3
	waiting := 0
	tokens := 0
	var woke atomic.Int32

	for range n {
		go func() {
			_ = m.Lock()
			waiting++
			for tokens == 0 {
				_ = c.Wait(m)
			}
			tokens--
			woke.Add(1)
			_ = m.Unlock()
		}()
	}
	waitFor(t, m, func() bool { return waiting == n })
	time.Sleep(10 * time.Millisecond)

	_ = m.Lock()
	tokens = 1
	require.NoError(t, c.Signal())
	_ = m.Unlock()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), woke.Load())

	_ = m.Lock()
	tokens = n - 1
	require.NoError(t, c.Broadcast())
	_ = m.Unlock()

	assert.Eventually(t, func() bool { return woke.Load() == n }, time.Second, time.Millisecond)
}

func testSignalNoWaiters(t *testing.T, b backend.Backend) {
	m, _ := b.NewMutex(backend.Plain)
	c, _ := b.NewCond()

	require.NoError(t, c.Signal())
	require.NoError(t, c.Broadcast())

	require.NoError(t, m.Lock())
	err := c.TimedWait(m, time.Now().Add(30*time.Millisecond))
	assert.ErrorIs(t, err, status.ErrTimeout, "an earlier signal must not wake a later waiter")
	require.NoError(t, m.Unlock())
}

func testTimedWait(t *testing.T, b backend.Backend) {
	m, _ := b.NewMutex(backend.Plain)
	c, _ := b.NewCond()

	require.NoError(t, m.Lock())
	start := time.Now()
	err := c.TimedWait(m, time.Now().Add(20*time.Millisecond))
	assert.ErrorIs(t, err, status.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// Still held after the timeout.
	other := make(chan error)
	go func() { other <- m.TryLock() }()
	assert.ErrorIs(t, <-other, status.ErrBusy)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = m.Lock()
		_ = c.Signal()
		_ = m.Unlock()
	}()
	require.NoError(t, c.TimedWait(m, time.Now().Add(5*time.Second)))
	require.NoError(t, m.Unlock())
}

func testProducerConsumer(t *testing.T, b backend.Backend) {
	m, _ := b.NewMutex(backend.Plain)
	notEmpty, _ := b.NewCond()
	notFull, _ := b.NewCond()

	const capacity, items, consumers = 4, 400, 4
	var queue []int
	sum := 0
	done := 0

	var wg sync.WaitGroup
	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_ = m.Lock()
				for len(queue) == 0 && done < items {
					_ = notEmpty.Wait(m)
				}
				if done == items {
					_ = m.Unlock()
					return
				}
				sum += queue[0]
				queue = queue[1:]
				done++
				if done == items {
					_ = notEmpty.Broadcast()
				}
				_ = notFull.Signal()
				_ = m.Unlock()
			}
		}()
	}

	for i := 1; i <= items; i++ {
		_ = m.Lock()
		for len(queue) == capacity {
			_ = notFull.Wait(m)
		}
		queue = append(queue, i)
		_ = notEmpty.Signal()
		_ = m.Unlock()
	}
	wg.Wait()

	assert.Equal(t, items*(items+1)/2, sum)
}

func testJoin(t *testing.T, b backend.Backend, h *Host) {
	release := make(chan struct{})
	id, err := b.Spawn(func() int {
		<-release
		return 42
	})
	require.NoError(t, err)
	assert.NotEqual(t, b.Current(), id)

	close(release)
	code, err := b.Join(id)
	require.NoError(t, err)
	assert.Equal(t, 42, code)

	_, err = b.Join(id)
	assert.ErrorIs(t, err, status.ErrNotFound, "second join")
	_, err = b.Join(-1)
	assert.ErrorIs(t, err, status.ErrNotFound)
	_, err = b.Join(b.Current())
	assert.ErrorIs(t, err, status.ErrError, "self join")

	neg, _ := b.Spawn(func() int { return -3 })
	code, err = b.Join(neg)
	require.NoError(t, err)
	assert.Equal(t, -3, code)

	assert.Equal(t, int32(2), h.Started.Load())
	assert.Equal(t, int32(2), h.Ended.Load())
}

func testDetach(t *testing.T, b backend.Backend) {
	finished := make(chan struct{})
	id, err := b.Spawn(func() int {
		defer close(finished)
		time.Sleep(10 * time.Millisecond)
		return 0
	})
	require.NoError(t, err)

	require.NoError(t, b.Detach(id))
	_, err = b.Join(id)
	assert.ErrorIs(t, err, status.ErrNotFound)
	assert.ErrorIs(t, b.Detach(id), status.ErrNotFound)

	<-finished
}

func testExit(t *testing.T, b backend.Backend, h *Host) {
	var got []any
	var mu sync.Mutex
	k, err := h.Keys.Create(func(v any) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	require.NoError(t, err)

	after := false
	id, err := b.Spawn(func() int {
		h.Context().TSS.Set(k, "exit-value")
		b.Exit(7)
		after = true
		return 1
	})
	require.NoError(t, err)

	code, err := b.Join(id)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
	assert.False(t, after)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"exit-value"}, got, "destructor ran exactly once")
}

func testThreadDestructors(t *testing.T, b backend.Backend, h *Host) {
	var calls atomic.Int32
	var lastThread atomic.Int64
	k, err := h.Keys.Create(func(v any) {
		calls.Add(1)
		lastThread.Store(v.(int64))
	})
	require.NoError(t, err)

	var childSaw any
	id, err := b.Spawn(func() int {
		ctx := h.Context()
		childSaw = ctx.TSS.Get(k)
		ctx.TSS.Set(k, b.Current())
		return 0
	})
	require.NoError(t, err)
	_, err = b.Join(id)
	require.NoError(t, err)

	assert.Nil(t, childSaw, "fresh thread sees no value")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, id, lastThread.Load(), "destructor got the thread's own value")
}

// waitFor polls cond under m until it holds.
func waitFor(t *testing.T, m backend.Mutex, cond func() bool) {
	t.Helper()
	assert.Eventually(t, func() bool {
		_ = m.Lock()
		defer func() { _ = m.Unlock() }()
		return cond()
	}, 5*time.Second, time.Millisecond)
}
