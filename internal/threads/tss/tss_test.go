// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tss

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/threadkit/internal/threads/status"
)

func TestTableCapacityIsHard(t *testing.T) {
	t.Parallel()

	tab := NewTable(3)
	keys := make([]Key, 0, 3)
	for range 3 {
		k, err := tab.Create(nil)
		require.NoError(t, err)
		keys = append(keys, k)
	}

	_, err := tab.Create(nil)
	require.ErrorIs(t, err, status.ErrNoMemory)
	assert.Equal(t, 3, tab.Len())
	assert.Equal(t, 3, tab.Cap())

	require.NoError(t, tab.Delete(keys[1]))
	k, err := tab.Create(nil)
	require.NoError(t, err)
	assert.Equal(t, keys[1].Slot, k.Slot, "freed slot is recycled")
	assert.NotEqual(t, keys[1].Gen, k.Gen, "recycled slot gets a new generation")
}

func TestTableRejectsStaleKeys(t *testing.T) {
	t.Parallel()

	tab := NewTable(1)
	old, err := tab.Create(func(any) {})
	require.NoError(t, err)
	require.NoError(t, tab.Delete(old))

	assert.False(t, tab.Valid(old))
	assert.ErrorIs(t, tab.Delete(old), status.ErrError)
	_, ok := tab.Destructor(old)
	assert.False(t, ok)

	assert.False(t, tab.Valid(Key{}), "zero key is never valid")
	assert.False(t, tab.Valid(Key{Slot: 99, Gen: 1}))
}

func TestTableReset(t *testing.T) {
	t.Parallel()

	tab := NewTable(2)
	_, _ = tab.Create(nil)
	_, _ = tab.Create(nil)
	tab.Reset()

	assert.Zero(t, tab.Len())
	_, err := tab.Create(nil)
	assert.NoError(t, err)
}

func TestStoreGetSet(t *testing.T) {
	t.Parallel()

	tab := NewTable(4)
	k, _ := tab.Create(nil)
	s := NewStore()

	assert.Nil(t, s.Get(k))
	s.Set(k, "a")
	assert.Equal(t, "a", s.Get(k))
	s.Set(k, "b")
	assert.Equal(t, "b", s.Get(k))
	assert.Equal(t, 1, s.Len())

	s.Forget(k)
	assert.Nil(t, s.Get(k))
}

func TestStoreHidesValueOfDeletedKey(t *testing.T) {
	t.Parallel()

	tab := NewTable(1)
	s := NewStore()

	old, _ := tab.Create(nil)
	s.Set(old, "stale")
	require.NoError(t, tab.Delete(old))

	reused, _ := tab.Create(nil)
	require.Equal(t, old.Slot, reused.Slot)
	assert.Nil(t, s.Get(reused), "new key must not see the old generation's value")
}

func TestCleanupRunsEachDestructorOnce(t *testing.T) {
	t.Parallel()

	tab := NewTable(8)
	var got []any
	dtor := func(v any) { got = append(got, v) }

	k1, _ := tab.Create(dtor)
	k2, _ := tab.Create(dtor)
	k3, _ := tab.Create(nil)

	s := NewStore()
	s.Set(k1, 1)
	s.Set(k2, 2)
	s.Set(k3, 3)

	res := s.Cleanup(tab)
	assert.Equal(t, []any{1, 2}, got, "first-use order, no call for keys without destructor")
	assert.Equal(t, 2, res.Destructed)
	assert.Equal(t, 2, res.Passes, "one productive pass plus one confirming pass")
	assert.True(t, res.Converged())
	assert.Zero(t, s.Len())
}

func TestCleanupSkipsNilAndDeletedKeys(t *testing.T) {
	t.Parallel()

	tab := NewTable(4)
	calls := 0
	dtor := func(any) { calls++ }

	live, _ := tab.Create(dtor)
	gone, _ := tab.Create(dtor)

	s := NewStore()
	s.Set(live, nil)
	s.Set(gone, "x")
	require.NoError(t, tab.Delete(gone))

	res := s.Cleanup(tab)
	assert.Zero(t, calls)
	assert.Equal(t, 1, res.Passes)
	assert.True(t, res.Converged())
}

func TestCleanupClearsBeforeCalling(t *testing.T) {
	t.Parallel()

	tab := NewTable(2)
	s := NewStore()

	var k Key
	var seen any = "unset"
	k, _ = tab.Create(func(any) { seen = s.Get(k) })
	s.Set(k, "v")

	s.Cleanup(tab)
	assert.Nil(t, seen)
}

func TestCleanupConvergesWhenDestructorsChain(t *testing.T) {
	t.Parallel()

	tab := NewTable(4)
	s := NewStore()
	var order []string

	var a, b Key
	b, _ = tab.Create(func(any) { order = append(order, "b") })
	a, _ = tab.Create(func(any) {
		order = append(order, "a")
		s.Set(b, "from a")
	})
	s.Set(a, "x")

	res := s.Cleanup(tab)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.True(t, res.Converged())
}

func TestCleanupGivesUpAfterBound(t *testing.T) {
	t.Parallel()

	tab := NewTable(1)
	s := NewStore()
	calls := 0

	var k Key
	k, _ = tab.Create(func(any) {
		calls++
		s.Set(k, calls) // always re-arms itself
	})
	s.Set(k, 0)

	res := s.Cleanup(tab)
	assert.Equal(t, DestructorIterations, calls)
	assert.Equal(t, DestructorIterations, res.Passes)
	assert.Equal(t, 1, res.Pending)
	assert.False(t, res.Converged())
	assert.Zero(t, s.Len(), "leftovers are discarded")
}

func TestTableConcurrentCreateDelete(t *testing.T) {
	t.Parallel()

	tab := NewTable(64)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				k, err := tab.Create(nil)
				if err != nil {
					continue
				}
				_ = tab.Delete(k)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, tab.Len())
}

func BenchmarkStoreSetGet(b *testing.B) {
	tab := NewTable(16)
	k, _ := tab.Create(nil)
	s := NewStore()

	b.ReportAllocs()
	for b.Loop() {
		s.Set(k, 1)
		_ = s.Get(k)
	}
}
