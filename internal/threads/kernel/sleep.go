// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"runtime"
	"sync"
	"time"

	"github.com/kolkov/threadkit/internal/threads/goid"
)

// apcQueue holds the asynchronous procedure calls pending for one thread.
type apcQueue struct {
	mu   mutex
	fns  []func()
	wake chan struct{}
}

var apcQueues sync.Map // thread ID -> *apcQueue

func apcQueueOf(id int64) *apcQueue {
	if v, ok := apcQueues.Load(id); ok {
		return v.(*apcQueue)
	}
	v, _ := apcQueues.LoadOrStore(id, &apcQueue{wake: make(chan struct{}, 1)})
	return v.(*apcQueue)
}

// drain runs every queued call in FIFO order and reports whether any ran.
func (q *apcQueue) drain() bool {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns) > 0
}

// QueueUserAPC queues fn to thread id. It runs the next time that thread
// enters an alertable wait. Unknown threads yield ErrInvalidHandle.
func QueueUserAPC(fn func(), id int64) error {
	if fn == nil {
		return ErrInvalidParameter
	}
	v, ok := apcQueues.Load(id)
	if !ok {
		return ErrInvalidHandle
	}

	q := v.(*apcQueue)
	q.mu.Lock()
	q.fns = append(q.fns, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Sleep suspends the calling thread for ms milliseconds.
func Sleep(ms uint32) {
	if ms == Infinite {
		select {}
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// SleepEx is Sleep with an optional alertable state. An alertable sleep
// returns WaitIOCompletion as soon as it has run one or more queued APCs,
// and 0 when the full interval elapsed.
func SleepEx(ms uint32, alertable bool) WaitResult {
	if !alertable {
		Sleep(ms)
		return WaitObject0
	}

	q := apcQueueOf(goid.Get())
	if q.drain() {
		return WaitIOCompletion
	}
	if ms == 0 {
		return WaitObject0
	}

	tc, stop := timer(ms)
	defer stop()
	for {
		select {
		case <-q.wake:
			if q.drain() {
				return WaitIOCompletion
			}
		case <-tc:
			return WaitObject0
		}
	}
}

// SwitchToThread yields the processor to another ready thread.
func SwitchToThread() bool {
	runtime.Gosched()
	return true
}
