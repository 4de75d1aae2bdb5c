// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package status defines the closed result set shared by every threads operation.
//
// Success is reported as a nil error. Every failure wraps exactly one of the
// sentinel errors below, so callers can branch with errors.Is or collapse an
// error back to its Code with Of.
//
// Mapping to the classic C11 <threads.h> results:
//
//	thrd_success  -> nil           (Success)
//	thrd_timedout -> ErrTimeout    (Timeout)
//	thrd_busy     -> ErrBusy       (Busy)
//	thrd_error    -> ErrError      (Error)
//	thrd_nomem    -> ErrNoMemory   (NoMemory)
//	(lookup miss) -> ErrNotFound   (NotFound)
//	sleep -1      -> ErrInterrupted (Interrupted)
package status

import (
	"errors"
	"fmt"
)

// Sentinel errors. Timeout is reserved for deadline-bearing operations and
// Busy for non-blocking trylock contention.
var (
	ErrTimeout     = errors.New("threads: timed out")
	ErrBusy        = errors.New("threads: resource busy")
	ErrError       = errors.New("threads: operation failed")
	ErrNoMemory    = errors.New("threads: out of memory")
	ErrNotFound    = errors.New("threads: not found")
	ErrInterrupted = errors.New("threads: interrupted")

	// ErrUnsupported marks an operation the compiled backend cannot perform.
	// It is always reported together with ErrError.
	ErrUnsupported = errors.New("threads: unsupported by backend")
)

// Code is the closed result set of the threads API.
type Code int

const (
	Success Code = iota
	Timeout
	Busy
	Error
	NoMemory
	NotFound
	Interrupted
)

var codeNames = [...]string{
	Success:     "success",
	Timeout:     "timeout",
	Busy:        "busy",
	Error:       "error",
	NoMemory:    "nomem",
	NotFound:    "notfound",
	Interrupted: "interrupted",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("code(%d)", int(c))
	}
	return codeNames[c]
}

// Err returns the sentinel for c, or nil for Success.
func (c Code) Err() error {
	switch c {
	case Success:
		return nil
	case Timeout:
		return ErrTimeout
	case Busy:
		return ErrBusy
	case NoMemory:
		return ErrNoMemory
	case NotFound:
		return ErrNotFound
	case Interrupted:
		return ErrInterrupted
	default:
		return ErrError
	}
}

// Of collapses err to its Code. Errors that wrap none of the sentinels are
// reported as Error, never as Success.
func Of(err error) Code {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrTimeout):
		return Timeout
	case errors.Is(err, ErrBusy):
		return Busy
	case errors.Is(err, ErrNoMemory):
		return NoMemory
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrInterrupted):
		return Interrupted
	default:
		return Error
	}
}

// Errorf wraps sentinel with a formatted context message.
//
// Example:
//
//	return status.Errorf(status.ErrNotFound, "join thread %d", id)
//	// threads: not found: join thread 42
func Errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// Unsupported reports op as unsupported by the named backend.
func Unsupported(backend, op string) error {
	return fmt.Errorf("%w: %w: %s on %s backend", ErrError, ErrUnsupported, op, backend)
}
