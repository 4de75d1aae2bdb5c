// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// Event is a kernel event object.
//
// A manual-reset event stays signaled until Reset and releases every
// waiter. An auto-reset event releases exactly one waiter and clears
// itself as part of that wait.
type Event struct {
	mu       mutex
	manual   bool
	signaled bool
	closed   bool
	waiters  map[chan struct{}]struct{}
}

// CreateEvent returns a new event in the given initial state.
func CreateEvent(manualReset, initialState bool) (*Event, error) {
	return &Event{
		manual:   manualReset,
		signaled: initialState,
		waiters:  make(map[chan struct{}]struct{}),
	}, nil
}

// Set signals e (SetEvent).
func (e *Event) Set() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrInvalidHandle
	}
	e.signaled = true
	for ch := range e.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Reset clears e (ResetEvent).
func (e *Event) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrInvalidHandle
	}
	e.signaled = false
	return nil
}

// Wait blocks until e is signaled or ms elapses (WaitForSingleObject).
func (e *Event) Wait(ms uint32) WaitResult {
	_, r := WaitForMultipleObjects([]*Event{e}, ms)
	return r
}

// Close releases the handle. Waiters blocked on e stay blocked until their
// timeout.
func (e *Event) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrInvalidHandle
	}
	e.closed = true
	return nil
}

// consume reports whether e is signaled, clearing it if auto-reset.
func (e *Event) consume() (ok, closed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, true
	}
	if !e.signaled {
		return false, false
	}
	if !e.manual {
		e.signaled = false
	}
	return true, false
}

func (e *Event) watch(ch chan struct{}) {
	e.mu.Lock()
	e.waiters[ch] = struct{}{}
	e.mu.Unlock()
}

func (e *Event) unwatch(ch chan struct{}) {
	e.mu.Lock()
	delete(e.waiters, ch)
	e.mu.Unlock()
}

// WaitForMultipleObjects waits until any of events is signaled and returns
// its index. When several are signaled the lowest index wins, and only that
// event is consumed.
//
// On timeout it returns (-1, WaitTimeout); if any handle is closed it
// returns (-1, WaitFailed).
func WaitForMultipleObjects(events []*Event, ms uint32) (int, WaitResult) {
	// Register before the first check so a Set racing with the check still
	// leaves a token in wake.
	wake := make(chan struct{}, 1)
	for _, e := range events {
		e.watch(wake)
	}
	defer func() {
		for _, e := range events {
			e.unwatch(wake)
		}
	}()

	tc, stop := timer(ms)
	defer stop()

	for {
		for i, e := range events {
			ok, closed := e.consume()
			if closed {
				return -1, WaitFailed
			}
			if ok {
				return i, WaitObject0
			}
		}
		if ms == 0 {
			return -1, WaitTimeout
		}

		select {
		case <-wake:
		case <-tc:
			return -1, WaitTimeout
		}
	}
}
