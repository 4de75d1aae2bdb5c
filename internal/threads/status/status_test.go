// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  error
		want Code
	}{
		"nil is success":        {nil, Success},
		"timeout":               {ErrTimeout, Timeout},
		"wrapped busy":          {fmt.Errorf("trylock: %w", ErrBusy), Busy},
		"nomem":                 {Errorf(ErrNoMemory, "key table full"), NoMemory},
		"notfound":              {Errorf(ErrNotFound, "thread %d", 7), NotFound},
		"interrupted":           {ErrInterrupted, Interrupted},
		"foreign error":         {errors.New("boom"), Error},
		"unsupported is error":  {Unsupported("posix", "alert"), Error},
		"explicit generic fail": {ErrError, Error},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Of(tc.err))
		})
	}
}

func TestCodeErrRoundTrip(t *testing.T) {
	t.Parallel()

	for c := Success; c <= Interrupted; c++ {
		assert.Equal(t, c, Of(c.Err()), "code %s", c)
	}
}

func TestUnsupportedWrapsBoth(t *testing.T) {
	t.Parallel()

	err := Unsupported("posix", "alert")
	assert.ErrorIs(t, err, ErrError)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "alert on posix backend")
}

func TestCodeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "busy", Busy.String())
	assert.Equal(t, "code(99)", Code(99).String())
}
