// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulated

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/backend/backendtest"
	"github.com/kolkov/threadkit/internal/threads/status"
)

func factory(host backend.Host) backend.Backend {
	return New(backend.Options{Host: host})
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, factory)
}

func TestAlertInterruptsSleep(t *testing.T) {
	b := New(backend.Options{Host: backendtest.NewHost(1)})

	type result struct {
		rem time.Duration
		err error
	}
	res := make(chan result, 1)
	id, err := b.Spawn(func() int {
		rem, err := b.Sleep(5 * time.Second)
		res <- result{rem, err}
		return 0
	})
	require.NoError(t, err)

	ran := make(chan struct{})
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Alert(id, func() { close(ran) }))

	r := <-res
	assert.ErrorIs(t, r.err, status.ErrInterrupted)
	assert.Greater(t, r.rem, time.Second)
	assert.LessOrEqual(t, r.rem, 5*time.Second)
	<-ran

	_, err = b.Join(id)
	require.NoError(t, err)
	assert.ErrorIs(t, b.Alert(id, func() {}), status.ErrNotFound, "thread is gone")
}

func TestAlertAdoptedThread(t *testing.T) {
	b := New(backend.Options{})
	self := b.Current()
	b.Adopt(self)
	defer b.Release(self)

	ran := false
	require.NoError(t, b.Alert(self, func() { ran = true }))
	_, err := b.Sleep(time.Second)
	assert.ErrorIs(t, err, status.ErrInterrupted)
	assert.True(t, ran)

	assert.ErrorIs(t, b.Alert(self, nil), status.ErrError)
}

func TestRegistryTracksJoinableThreads(t *testing.T) {
	b := New(backend.Options{Host: backendtest.NewHost(1)})

	release := make(chan struct{})
	a, _ := b.Spawn(func() int { <-release; return 0 })
	c, _ := b.Spawn(func() int { <-release; return 0 })
	assert.Equal(t, 2, b.threads.Len())

	require.NoError(t, b.Detach(a))
	assert.Equal(t, []int64{c}, b.threads.IDs())

	close(release)
	_, err := b.Join(c)
	require.NoError(t, err)
	assert.Zero(t, b.threads.Len())
}

func TestKeyCapacity(t *testing.T) {
	b := New(backend.Options{})
	assert.Equal(t, 1088, b.KeyCapacity())
	assert.Equal(t, "emulated", b.Name())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestSelfRelockWarns(t *testing.T) {
	var out syncBuffer
	b := New(backend.Options{
		Logger:            slog.New(slog.NewTextHandler(&out, nil)),
		DeadlockWarnAfter: 20 * time.Millisecond,
	})
	m, err := b.NewMutex(backend.Plain)
	require.NoError(t, err)

	go func() {
		_ = m.Lock()
		_ = m.Lock()
	}()

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("relocking a non-recursive mutex"))
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTimedSelfRelockTimesOut(t *testing.T) {
	b := New(backend.Options{})
	m, _ := b.NewMutex(backend.Timed)

	require.NoError(t, m.Lock())
	d := time.Now().Add(20 * time.Millisecond)
	assert.ErrorIs(t, m.TimedLock(d), status.ErrTimeout)
	assert.False(t, time.Now().Before(d))

	// The failed attempt must not have left an extra ownership level.
	require.NoError(t, m.Unlock())
	other := make(chan error)
	go func() {
		err := m.TryLock()
		if err == nil {
			err = m.Unlock()
		}
		other <- err
	}()
	assert.NoError(t, <-other)
}

func TestCondTimeoutClearsPendingSignal(t *testing.T) {
	b := New(backend.Options{})
	m, _ := b.NewMutex(backend.Plain)
	cv, _ := b.NewCond()
	c := cv.(*cond)

	require.NoError(t, m.Lock())
	require.ErrorIs(t, cv.TimedWait(m, time.Now().Add(5*time.Millisecond)), status.ErrTimeout)

	c.lock.Enter()
	assert.Zero(t, c.waiters)
	assert.Zero(t, c.pending)
	_ = c.lock.Leave()
	require.NoError(t, m.Unlock())
}
