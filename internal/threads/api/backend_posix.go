// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !threads_emulated

package api

import (
	"github.com/kolkov/threadkit/internal/threads/backend"
	"github.com/kolkov/threadkit/internal/threads/backend/posix"
)

func newBackend(opts backend.Options) backend.Backend {
	return posix.New(opts)
}
