// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package posix

import (
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

func TestAlertIsUnsupported(t *testing.T) {
	b := New(backend.Options{Host: backendtest.NewHost(1)})

	err := b.Alert(b.Current(), func() {})
	assert.ErrorIs(t, err, status.ErrError)
	assert.ErrorIs(t, err, status.ErrUnsupported)
}

func TestKeyCapacity(t *testing.T) {
	b := New(backend.Options{})
	assert.Equal(t, 1024, b.KeyCapacity())
	assert.Equal(t, "posix", b.Name())
}

func TestSleepNonPositive(t *testing.T) {
	b := New(backend.Options{})
	rem, err := b.Sleep(-time.Second)
	require.NoError(t, err)
	assert.Zero(t, rem)
}

func TestCondDestroyWithWaiters(t *testing.T) {
	b := New(backend.Options{})
	m, _ := b.NewMutex(backend.Plain)
	c, _ := b.NewCond()

	waiting := make(chan struct{})
	go func() {
		_ = m.Lock()
		close(waiting)
		_ = c.Wait(m)
		_ = m.Unlock()
	}()
	<-waiting

	require.NoError(t, m.Lock())
	assert.ErrorIs(t, c.Destroy(), status.ErrError)
	require.NoError(t, c.Signal())
	require.NoError(t, m.Unlock())

	assert.Eventually(t, func() bool { return c.Destroy() == nil }, time.Second, time.Millisecond)
}

func TestDestroyLockedMutex(t *testing.T) {
	b := New(backend.Options{})
	m, _ := b.NewMutex(backend.Plain)

	require.NoError(t, m.Lock())
	assert.ErrorIs(t, m.Destroy(), status.ErrError)
	require.NoError(t, m.Unlock())
	assert.NoError(t, m.Destroy())
}
