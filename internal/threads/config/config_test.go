// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvTrackHB, "1")
	t.Setenv(EnvDeadlockWarn, "250ms")
	t.Setenv(EnvReapInterval, "50")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Config{
		LogLevel:           "debug",
		LogFormat:          "json",
		TrackHappensBefore: true,
		DeadlockWarnAfter:  250 * time.Millisecond,
		ReapInterval:       50,
	}, c)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := map[string]struct {
		key, value string
	}{
		"bool":     {EnvTrackHB, "maybe"},
		"duration": {EnvDeadlockWarn, "soon"},
		"int":      {EnvReapInterval, "many"},
		"zero":     {EnvReapInterval, "0"},
		"format":   {EnvLogFormat, "xml"},
		"level":    {EnvLogLevel, "loud"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	c := Default().Apply(
		WithLogLevel("error"),
		WithLogFormat("text"),
		WithHappensBefore(true),
		WithDeadlockWarnAfter(time.Second),
		WithReapInterval(7),
	)

	assert.Equal(t, "error", c.LogLevel)
	assert.Equal(t, "text", c.LogFormat)
	assert.True(t, c.TrackHappensBefore)
	assert.Equal(t, time.Second, c.DeadlockWarnAfter)
	assert.Equal(t, 7, c.ReapInterval)
}

func TestGetLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"TRACE":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"fatal":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, GetLevel(in), in)
	}
}

func TestAutoFormatIsJSONOffTerminal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger(Config{LogLevel: "info", LogFormat: FormatAuto}, &buf)
	log.Info("hello", "thread", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.InDelta(t, 3, rec["thread"], 0)
}

func TestTextFormatFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger(Config{LogLevel: "warn", LogFormat: FormatText}, &buf)
	log.Info("quiet")
	log.Warn("loud", "key", 1)

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "key=1")
}
