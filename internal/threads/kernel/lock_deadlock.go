// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build deadlock

package kernel

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockDetection is true when built with -tags deadlock.
const DeadlockDetection = true

func init() {
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
}

// The internal locks guarding kernel objects go through go-deadlock so a
// lock-order inversion inside the emulation is reported with both stacks.
type mutex struct {
	deadlock.Mutex
}

type rwMutex struct {
	deadlock.RWMutex
}
