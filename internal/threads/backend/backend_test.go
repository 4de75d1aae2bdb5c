// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	t.Parallel()

	assert.True(t, Plain.Valid())
	assert.True(t, (Timed | Recursive).Valid())
	assert.False(t, Kind(4).Valid())

	assert.Equal(t, "timed|recursive", (Timed | Recursive).String())
	assert.Equal(t, "invalid", Kind(8).String())
}
