// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package once implements the one-time initialization flag.
package once

import (
	"runtime"
	"sync/atomic"

	"github.com/kolkov/threadkit/internal/threads/goid"
	"github.com/kolkov/threadkit/internal/threads/kernel"
)

// State is the progress of a Flag. It only ever increases.
type State int32

const (
	Uninitialized State = iota // nobody has called Do yet
	Claiming                   // a winner exists but has not created its lock
	Running                    // the winner holds the lock and is running fn
	Done                       // fn has returned
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Claiming:
		return "claiming"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	return "invalid"
}

// Flag runs a function exactly once. The zero value is ready to use.
// A Flag must not be copied after first use.
type Flag struct {
	state atomic.Int32
	lock  atomic.Pointer[kernel.CriticalSection]
}

// State returns the current state of f.
func (f *Flag) State() State {
	return State(f.state.Load())
}

// Do calls fn if and only if Do is being called for the first time on f.
// Every call returns only after that single call of fn has finished.
//
// If fn panics, f is still marked Done and the panic propagates to the
// caller that ran fn. A call of Do on f from inside fn returns immediately.
func (f *Flag) Do(fn func()) {
	for {
		switch State(f.state.Load()) {
		case Done:
			return

		case Uninitialized:
			if f.state.CompareAndSwap(int32(Uninitialized), int32(Claiming)) {
				f.run(fn)
				return
			}

		case Claiming:
			// The winner is between its CAS and publishing the lock.
			runtime.Gosched()

		case Running:
			cs := f.lock.Load()
			if cs.OwnedBy(goid.Get()) {
				return
			}
			// Blocks until the winner leaves, after which the state is Done.
			cs.Enter()
			_ = cs.Leave()
		}
	}
}

func (f *Flag) run(fn func()) {
	cs := kernel.InitializeCriticalSection()
	cs.Enter()
	f.lock.Store(cs)
	f.state.Store(int32(Running))

	defer func() {
		f.state.Store(int32(Done))
		_ = cs.Leave()
	}()
	fn()
}
