// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package goid extracts goroutine identity from the Go runtime.
//
// A goroutine ID is the thread identity of this library: it is what
// threads.Current returns, what the thread registry is keyed by and what
// owns a thread-specific storage context. IDs are positive, unique for the
// lifetime of the process and never reused by the runtime.
//
// Get reads the ID straight from the runtime's g struct through
// github.com/petermattis/goid, which is cheap enough for every lock and
// unlock. Live has no such shortcut: it parses the header lines of a full
// runtime.Stack dump ("goroutine 123 [running]:").
package goid

import (
	"bytes"
	"runtime"

	pgoid "github.com/petermattis/goid"
)

const prefix = "goroutine "

// Get returns the ID of the calling goroutine.
func Get() int64 {
	return pgoid.Get()
}

// Live returns the IDs of every goroutine that currently exists.
//
// It walks runtime.Stack(all=true), which stops the world, so it is only
// used off the hot path (the context reaper and teardown).
func Live() []int64 {
	size := 64 << 10
	for {
		buf := make([]byte, size)
		n := runtime.Stack(buf, true)
		if n < size {
			return parseAll(buf[:n])
		}
		// Truncated dump: grow and retry so no live goroutine is missed.
		size *= 2
	}
}

// parse extracts the ID from "goroutine 123 [running]:...".
func parse(buf []byte) int64 {
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}

	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}

// parseAll extracts the ID of every "goroutine N [state]:" header line of a
// full stack dump.
func parseAll(buf []byte) []int64 {
	var ids []int64
	for len(buf) > 0 {
		line := buf
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			line, buf = buf[:i], buf[i+1:]
		} else {
			buf = nil
		}
		if id := parse(line); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
