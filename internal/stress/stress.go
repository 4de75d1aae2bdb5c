// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stress holds end-to-end scenarios that exercise the threads
// package under contention. They back the threadstress command.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/threadkit/threads"
)

var ErrUnknownScenario = errors.New("unknown scenario")

// Params sizes a scenario run.
type Params struct {
	// Threads is the number of threads a scenario starts per role.
	Threads int

	// Iterations is the number of operations each thread performs.
	Iterations int
}

// DefaultParams are the sizes used when none are given.
var DefaultParams = Params{Threads: 8, Iterations: 1000}

// Validate rejects non-positive sizes.
func (p Params) Validate() error {
	if p.Threads < 1 {
		return fmt.Errorf("threads must be positive, got %d", p.Threads)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("iterations must be positive, got %d", p.Iterations)
	}
	return nil
}

// Scenario is one named check.
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, p Params) error
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario string
	Duration time.Duration
	Err      error
}

// All returns every scenario, sorted by name.
func All() []Scenario {
	s := slices.Clone(scenarios)
	slices.SortFunc(s, func(a, b Scenario) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return s
}

// Lookup finds scenarios by name. An empty list selects all of them.
func Lookup(names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}

	var out []Scenario
	var result *multierror.Error
	for _, name := range names {
		i := slices.IndexFunc(scenarios, func(s Scenario) bool { return s.Name == name })
		if i < 0 {
			result = multierror.Append(result, fmt.Errorf("%w: %q", ErrUnknownScenario, name))
			continue
		}
		out = append(out, scenarios[i])
	}
	return out, result.ErrorOrNil()
}

// Run executes scenarios with at most parallel of them at a time. It
// returns one Result per scenario in input order, and the failures
// aggregated into one error.
func Run(ctx context.Context, log *slog.Logger, list []Scenario, p Params, parallel int) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	results := make([]Result, len(list))
	g, gCtx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}

	for i, s := range list {
		g.Go(func() error {
			log.Debug("scenario started", "scenario", s.Name)
			start := time.Now()
			err := s.Run(gCtx, p)
			results[i] = Result{Scenario: s.Name, Duration: time.Since(start), Err: err}
			if err != nil {
				log.Error("scenario failed", "scenario", s.Name, "err", err)
			} else {
				log.Info("scenario passed", "scenario", s.Name, "duration", results[i].Duration)
			}
			// Failures are collected, not propagated, so the other
			// scenarios still run to completion.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var result *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", r.Scenario, r.Err))
		}
	}
	return results, result.ErrorOrNil()
}

// spawn starts n threads running fn(i) and joins them all. Non-zero exit
// codes and thread API failures are aggregated.
func spawn(n int, fn func(i int) int) error {
	var result *multierror.Error

	ids := make([]threads.ThreadID, 0, n)
	for i := range n {
		id, err := threads.Create(func(any) int { return fn(i) }, nil)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("create thread %d: %w", i, err))
			break
		}
		ids = append(ids, id)
	}

	for i, id := range ids {
		code, err := threads.Join(id)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("join thread %d: %w", i, err))
		case code != 0:
			result = multierror.Append(result, fmt.Errorf("thread %d exited with code %d", i, code))
		}
	}
	return result.ErrorOrNil()
}

// guard serializes error recording from several threads.
type guard struct {
	mu  sync.Mutex
	err *multierror.Error
}

func (g *guard) add(err error) {
	g.mu.Lock()
	g.err = multierror.Append(g.err, err)
	g.mu.Unlock()
}

func (g *guard) result() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err.ErrorOrNil()
}
