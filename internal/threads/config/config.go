// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the runtime configuration of the threads library
// and builds its logger.
//
// Values come from Default, are overridden by the THREADS_* environment
// variables (FromEnv) and finally by options passed to Init or flags of
// the threadstress command.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by FromEnv.
const (
	EnvLogLevel     = "THREADS_LOG_LEVEL"
	EnvLogFormat    = "THREADS_LOG_FORMAT"
	EnvTrackHB      = "THREADS_TRACK_HB"
	EnvDeadlockWarn = "THREADS_DEADLOCK_WARN"
	EnvReapInterval = "THREADS_REAP_INTERVAL"
)

// Log formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the runtime configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is auto, text or json.
	LogFormat string

	// TrackHappensBefore enables vector-clock tracking.
	TrackHappensBefore bool

	// DeadlockWarnAfter is how long a simulated self-deadlock on a
	// non-recursive mutex spins before a warning is logged. Zero disables
	// the warning.
	DeadlockWarnAfter time.Duration

	// ReapInterval is the number of context allocations between two scans
	// for dead adopted goroutines.
	ReapInterval int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:          "warn",
		LogFormat:         FormatAuto,
		DeadlockWarnAfter: 5 * time.Second,
		ReapInterval:      1000,
	}
}

// FromEnv returns Default overridden by the environment.
func FromEnv() (Config, error) {
	c := Default()

	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		c.LogFormat = v
	}
	if v, ok := os.LookupEnv(EnvTrackHB); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvTrackHB, err)
		}
		c.TrackHappensBefore = b
	}
	if v, ok := os.LookupEnv(EnvDeadlockWarn); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvDeadlockWarn, err)
		}
		c.DeadlockWarnAfter = d
	}
	if v, ok := os.LookupEnv(EnvReapInterval); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w", EnvReapInterval, err)
		}
		c.ReapInterval = n
	}

	return c, c.Validate()
}

// Validate checks c for values the runtime cannot use.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "trace", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case FormatAuto, FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.DeadlockWarnAfter < 0 {
		return fmt.Errorf("deadlock warn threshold must not be negative, got %s", c.DeadlockWarnAfter)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("reap interval must be positive, got %d", c.ReapInterval)
	}
	return nil
}

// Option modifies a Config.
type Option func(*Config)

// Apply returns c with opts applied in order.
func (c Config) Apply(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

func WithLogFormat(format string) Option {
	return func(c *Config) { c.LogFormat = format }
}

func WithHappensBefore(on bool) Option {
	return func(c *Config) { c.TrackHappensBefore = on }
}

func WithDeadlockWarnAfter(d time.Duration) Option {
	return func(c *Config) { c.DeadlockWarnAfter = d }
}

func WithReapInterval(n int) Option {
	return func(c *Config) { c.ReapInterval = n }
}
