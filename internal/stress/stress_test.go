// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stress

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/threadkit/threads"
)

func TestAllSorted(t *testing.T) {
	var names []string
	for _, s := range All() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"cond", "mutex", "once", "recursive", "registry", "sleep", "timedlock", "tss"}, names)
}

func TestLookup(t *testing.T) {
	all, err := Lookup()
	require.NoError(t, err)
	assert.Len(t, all, len(scenarios))

	got, err := Lookup("once", "mutex")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "once", got[0].Name)

	_, err = Lookup("mutex", "bogus", "nope")
	require.ErrorIs(t, err, ErrUnknownScenario)
	assert.Contains(t, err.Error(), `"bogus"`)
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams.Validate())
	assert.Error(t, Params{Threads: 0, Iterations: 1}.Validate())
	assert.Error(t, Params{Threads: 1, Iterations: -1}.Validate())
}

func TestScenariosPass(t *testing.T) {
	_ = threads.Teardown()
	t.Cleanup(func() { assert.NoError(t, threads.Teardown()) })

	p := Params{Threads: 4, Iterations: 50}
	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			assert.NoError(t, s.Run(context.Background(), p))
		})
	}
}

func TestRunAggregatesFailures(t *testing.T) {
	boom := errors.New("boom")
	list := []Scenario{
		{Name: "ok", Run: func(context.Context, Params) error { return nil }},
		{Name: "bad", Run: func(context.Context, Params) error { return boom }},
	}

	results, err := Run(context.Background(), slog.New(slog.DiscardHandler), list, DefaultParams, 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad: boom")
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "bad", results[1].Scenario)
}

func TestRunRejectsBadParams(t *testing.T) {
	_, err := Run(context.Background(), slog.New(slog.DiscardHandler), All(), Params{}, 2)
	assert.Error(t, err)
}
