// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"time"

	"github.com/kolkov/threadkit/internal/threads/deadline"
)

// WaitResult is the outcome of a wait on a kernel object.
type WaitResult uint32

const (
	WaitObject0      WaitResult = 0x00000000
	WaitAbandoned    WaitResult = 0x00000080
	WaitIOCompletion WaitResult = 0x000000C0
	WaitTimeout      WaitResult = 0x00000102
	WaitFailed       WaitResult = 0xFFFFFFFF
)

// Infinite disables the timeout of a wait.
const Infinite uint32 = deadline.Infinite

// Errors reported by object operations. They correspond to a FALSE return
// plus GetLastError in the native API.
var (
	ErrInvalidHandle = errors.New("kernel: invalid handle")
	ErrNotOwner      = errors.New("kernel: not owner")
)

// timer returns a channel firing after ms milliseconds, nil for Infinite
// (a nil channel blocks forever in a select), and a stop function.
func timer(ms uint32) (<-chan time.Time, func()) {
	if ms == Infinite {
		return nil, func() {}
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	return t.C, func() { t.Stop() }
}
