// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stress

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kolkov/threadkit/threads"
)

var scenarios = []Scenario{
	{"mutex", "contended counter under plain and timed mutexes", runMutex},
	{"recursive", "nested locking of a recursive mutex", runRecursive},
	{"timedlock", "timed lock against a holder: expire at 10ms, acquire within 100ms", runTimedLock},
	{"cond", "bounded buffer with producers and consumers", runCond},
	{"once", "concurrent CallOnce runs the function once", runOnce},
	{"tss", "thread-specific values and destructors at exit", runTSS},
	{"sleep", "sleep duration and alert interruption", runSleep},
	{"registry", "join, detach and lookup of thread IDs", runRegistry},
}

func runMutex(ctx context.Context, p Params) error {
	for _, kind := range []threads.Kind{threads.Plain, threads.Timed} {
		if err := ctx.Err(); err != nil {
			return err
		}

		m, err := threads.NewMutex(kind)
		if err != nil {
			return err
		}

		var inside atomic.Int32
		counter := 0
		err = spawn(p.Threads, func(int) int {
			for range p.Iterations {
				if m.Lock() != nil {
					return 1
				}
				if inside.Add(1) != 1 {
					return 2
				}
				counter++
				inside.Add(-1)
				if m.Unlock() != nil {
					return 3
				}
			}
			return 0
		})
		if err != nil {
			return fmt.Errorf("%s mutex: %w", kind, err)
		}
		if want := p.Threads * p.Iterations; counter != want {
			return fmt.Errorf("%s mutex: counter = %d, want %d", kind, counter, want)
		}
		if err := m.Destroy(); err != nil {
			return err
		}
	}
	return nil
}

func runRecursive(_ context.Context, p Params) error {
	const depth = 3

	m, err := threads.NewMutex(threads.Recursive)
	if err != nil {
		return err
	}
	defer m.Destroy() //nolint:errcheck // unlocked on every path

	counter := 0
	err = spawn(p.Threads, func(int) int {
		for range p.Iterations {
			for range depth {
				if m.Lock() != nil {
					return 1
				}
			}
			counter++
			for range depth {
				if m.Unlock() != nil {
					return 2
				}
			}
		}
		if !errors.Is(m.Unlock(), threads.ErrError) {
			return 3
		}
		return 0
	})
	if err != nil {
		return err
	}
	if want := p.Threads * p.Iterations; counter != want {
		return fmt.Errorf("counter = %d, want %d", counter, want)
	}
	return nil
}

func runTimedLock(_ context.Context, _ Params) error {
	m, err := threads.NewMutex(threads.Plain)
	if err != nil {
		return err
	}

	locked := make(chan struct{})
	holder, err := threads.Create(func(any) int {
		if m.Lock() != nil {
			return 1
		}
		close(locked)
		_, _ = threads.Sleep(50 * time.Millisecond)
		if m.Unlock() != nil {
			return 2
		}
		return 0
	}, nil)
	if err != nil {
		return err
	}
	<-locked

	var result *multierror.Error
	if err := m.TimedLock(time.Now().Add(10 * time.Millisecond)); !errors.Is(err, threads.ErrTimeout) {
		result = multierror.Append(result, fmt.Errorf("short deadline: got %v, want timeout", err))
	}
	if err := m.TimedLock(time.Now().Add(100 * time.Millisecond)); err != nil {
		result = multierror.Append(result, fmt.Errorf("long deadline: %w", err))
	} else if err := m.Unlock(); err != nil {
		result = multierror.Append(result, err)
	}

	if code, err := threads.Join(holder); err != nil || code != 0 {
		result = multierror.Append(result, fmt.Errorf("holder: code %d, err %v", code, err))
	}
	return result.ErrorOrNil()
}

func runCond(_ context.Context, p Params) error {
	const capacity = 4

	m, err := threads.NewMutex(threads.Plain)
	if err != nil {
		return err
	}
	notFull, err := threads.NewCond()
	if err != nil {
		return err
	}
	notEmpty, err := threads.NewCond()
	if err != nil {
		return err
	}

	var (
		buf      []int
		produced int64
		consumed int64
	)
	total := p.Threads * p.Iterations

	err = spawn(2*p.Threads, func(i int) int {
		if i < p.Threads {
			for n := range p.Iterations {
				_ = m.Lock()
				for len(buf) == capacity {
					_ = notFull.Wait(m)
				}
				buf = append(buf, n+1)
				produced += int64(n + 1)
				_ = notEmpty.Signal()
				_ = m.Unlock()
			}
			return 0
		}
		for range p.Iterations {
			_ = m.Lock()
			for len(buf) == 0 {
				_ = notEmpty.Wait(m)
			}
			consumed += int64(buf[0])
			buf = buf[1:]
			_ = notFull.Signal()
			_ = m.Unlock()
		}
		return 0
	})
	if err != nil {
		return err
	}
	if produced != consumed || len(buf) != 0 {
		return fmt.Errorf("produced %d, consumed %d of %d items, %d left", produced, consumed, total, len(buf))
	}

	var result *multierror.Error
	for _, destroy := range []func() error{notFull.Destroy, notEmpty.Destroy, m.Destroy} {
		if err := destroy(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func runOnce(_ context.Context, p Params) error {
	var flag threads.OnceFlag
	var calls atomic.Int32
	value := 0

	err := spawn(p.Threads, func(int) int {
		threads.CallOnce(&flag, func() {
			calls.Add(1)
			time.Sleep(time.Millisecond)
			value = 42
		})
		if value != 42 {
			return 1
		}
		return 0
	})
	if err != nil {
		return err
	}
	if n := calls.Load(); n != 1 {
		return fmt.Errorf("function ran %d times", n)
	}
	return nil
}

func runTSS(_ context.Context, p Params) error {
	var destructed atomic.Int64
	k, err := threads.CreateKey(func(v any) {
		destructed.Add(int64(v.(int)))
	})
	if err != nil {
		return err
	}
	defer threads.DeleteKey(k) //nolint:errcheck // valid until here

	err = spawn(p.Threads, func(i int) int {
		if threads.Get(k) != nil {
			return 1
		}
		for n := range p.Iterations {
			if threads.Set(k, i+n) != nil {
				return 2
			}
		}
		if threads.Get(k) != i+p.Iterations-1 {
			return 3
		}
		return 0
	})
	if err != nil {
		return err
	}

	var want int64
	for i := range p.Threads {
		want += int64(i + p.Iterations - 1)
	}
	if got := destructed.Load(); got != want {
		return fmt.Errorf("destructors saw %d, want %d", got, want)
	}
	return nil
}

func runSleep(_ context.Context, p Params) error {
	const nap = 2 * time.Millisecond

	g := &guard{}
	err := spawn(p.Threads, func(i int) int {
		start := time.Now()
		if _, err := threads.Sleep(nap); err != nil {
			g.add(fmt.Errorf("thread %d: %w", i, err))
			return 1
		}
		if d := time.Since(start); d < nap {
			g.add(fmt.Errorf("thread %d slept %s, want at least %s", i, d, nap))
			return 1
		}
		return 0
	})
	if err != nil {
		return multierror.Append(err, g.result())
	}

	// Alert only exists on the emulated backend.
	done := make(chan error, 1)
	id, err := threads.Create(func(any) int {
		_, err := threads.Sleep(200 * time.Millisecond)
		done <- err
		return 0
	}, nil)
	if err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)

	var ran atomic.Bool
	switch err := threads.Alert(id, func() { ran.Store(true) }); {
	case errors.Is(err, threads.ErrUnsupported):
		// Let the sleeper finish on its own.
		<-done
	case err != nil:
		return err
	default:
		if err := <-done; !errors.Is(err, threads.ErrInterrupted) {
			return fmt.Errorf("alerted sleep returned %v", err)
		}
		if !ran.Load() {
			return errors.New("alert function did not run")
		}
	}
	_, err = threads.Join(id)
	return err
}

func runRegistry(_ context.Context, p Params) error {
	ids := make([]threads.ThreadID, 0, p.Threads)
	for i := range p.Threads {
		id, err := threads.Create(func(arg any) int { return arg.(int) }, i)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	var result *multierror.Error
	for i, id := range ids {
		if i%2 == 1 {
			if err := threads.Detach(id); err != nil {
				result = multierror.Append(result, fmt.Errorf("detach %s: %w", id, err))
			}
			if _, err := threads.Join(id); !errors.Is(err, threads.ErrNotFound) {
				result = multierror.Append(result, fmt.Errorf("join after detach %s: got %v", id, err))
			}
			continue
		}

		code, err := threads.Join(id)
		if err != nil || code != i {
			result = multierror.Append(result, fmt.Errorf("join %s: code %d, err %v", id, code, err))
		}
		if _, err := threads.Join(id); !errors.Is(err, threads.ErrNotFound) {
			result = multierror.Append(result, fmt.Errorf("second join %s: got %v", id, err))
		}
	}

	if _, err := threads.Join(threads.Current()); err == nil {
		result = multierror.Append(result, errors.New("joining the calling thread succeeded"))
	}
	return result.ErrorOrNil()
}
