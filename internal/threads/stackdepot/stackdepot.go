// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stackdepot stores deduplicated call stacks.
//
// Thread creation records the stack of its caller here so a thread that is
// never joined or detached can be reported together with the place that
// started it. Each unique stack is stored once and referenced by the
// FNV-1a hash of its program counters.
package stackdepot

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
)

// MaxFrames is the number of frames kept per stack.
const MaxFrames = 8

// Stack is a captured call stack.
type Stack struct {
	PC [MaxFrames]uintptr
}

var depot sync.Map // uint64 -> *Stack

// Capture records the stack starting at its caller, minus skip further
// frames, and returns its hash. 0 means no stack was available.
func Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	h := hash(pcs[:n])
	if _, ok := depot.Load(h); !ok {
		depot.Store(h, &Stack{PC: pcs})
	}
	return h
}

// Get returns the stack recorded under h, or nil.
func Get(h uint64) *Stack {
	if h == 0 {
		return nil
	}
	v, ok := depot.Load(h)
	if !ok {
		return nil
	}
	return v.(*Stack)
}

func hash(pcs []uintptr) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, pc := range pcs {
		binary.LittleEndian.PutUint64(buf[:], uint64(pc))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// Format renders st one frame per line pair, skipping runtime frames:
//
//	main.worker()
//	    /path/to/file.go:45
func (st *Stack) Format() string {
	if st == nil {
		return "  <unknown>\n"
	}

	var b strings.Builder
	frames := runtime.CallersFrames(st.PC[:])
	for {
		f, more := frames.Next()
		if f.PC == 0 {
			break
		}
		if !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&b, "  %s()\n      %s:%d\n", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}

	if b.Len() == 0 {
		return "  <runtime internal>\n"
	}
	return b.String()
}

// Origin returns the innermost non-runtime frame of st as "func file:line",
// for one-line log attributes.
func (st *Stack) Origin() string {
	if st == nil {
		return "<unknown>"
	}
	frames := runtime.CallersFrames(st.PC[:])
	for {
		f, more := frames.Next()
		if f.PC == 0 {
			break
		}
		if !strings.HasPrefix(f.Function, "runtime.") {
			return fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return "<runtime internal>"
}

// Len returns the number of unique stacks stored.
func Len() int {
	n := 0
	depot.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reset drops every stored stack.
func Reset() {
	depot.Clear()
}
