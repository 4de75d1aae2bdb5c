// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package posix

import "time"

// Sleep cannot be interrupted on this platform.
func (b *Backend) Sleep(d time.Duration) (time.Duration, error) {
	if d > 0 {
		time.Sleep(d)
	}
	return 0, nil
}
