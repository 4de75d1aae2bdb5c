// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package goroutine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocUntracked(t *testing.T) {
	ctx := Alloc(7, true, false)

	assert.Equal(t, int64(7), ctx.ID)
	assert.True(t, ctx.Spawned)
	require.NotNil(t, ctx.TSS)
	assert.False(t, ctx.Tracking())
	assert.Nil(t, ctx.Snapshot())

	ctx.Observe(nil) // no-op
}

func TestSnapshotOrdersParentBeforeChild(t *testing.T) {
	parent := Alloc(1, false, true)
	require.True(t, parent.Tracking())
	assert.Equal(t, uint64(1), parent.Clock.Get(1))

	snap := parent.Snapshot()
	assert.Equal(t, uint64(2), parent.Clock.Get(1), "snapshot advances the owner")

	child := Alloc(2, true, true)
	child.Observe(snap)

	assert.True(t, snap.HappensBefore(child.Clock))
	assert.False(t, parent.Clock.LessOrEqual(child.Clock),
		"parent events after the snapshot are not ordered before the child")
}
