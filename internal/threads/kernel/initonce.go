// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "sync/atomic"

// InitOnce is a one-time initialization object. The zero value is ready to
// use (INIT_ONCE_STATIC_INIT).
type InitOnce struct {
	mu   mutex
	done atomic.Bool
}

// ExecuteOnce runs fn unless a previous call already succeeded. Concurrent
// callers block until the running fn returns. A fn reporting false leaves
// the object uninitialized so the next caller retries.
func (o *InitOnce) ExecuteOnce(fn func() bool) bool {
	if o.done.Load() {
		return true
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done.Load() {
		return true
	}
	if !fn() {
		return false
	}
	o.done.Store(true)
	return true
}
