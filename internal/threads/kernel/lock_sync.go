// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !deadlock

package kernel

import "sync"

// DeadlockDetection is true when built with -tags deadlock.
const DeadlockDetection = false

type mutex struct {
	sync.Mutex
}

type rwMutex struct {
	sync.RWMutex
}
