// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package posix

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kolkov/threadkit/internal/threads/status"
)

// Sleep calls nanosleep(2) once. EINTR is reported as ErrInterrupted with
// the time the kernel says was left.
func (b *Backend) Sleep(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, nil
	}

	req := unix.NsecToTimespec(d.Nanoseconds())
	var rem unix.Timespec
	err := unix.Nanosleep(&req, &rem)
	switch {
	case err == nil:
		return 0, nil
	case errors.Is(err, unix.EINTR):
		return time.Duration(rem.Nano()), status.ErrInterrupted
	default:
		return 0, status.Errorf(status.ErrError, "nanosleep: %v", err)
	}
}
