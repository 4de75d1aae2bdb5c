// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

// NewLogger returns the logger described by c, writing to w.
func NewLogger(c Config, w io.Writer) *slog.Logger {
	return slog.New(CreateHandler(c.LogLevel, c.LogFormat, w))
}

// CreateHandler creates a [slog.Handler] from level and format strings.
// The auto format picks text when w is a terminal and JSON otherwise.
func CreateHandler(logLevel, logFormat string, w io.Writer) slog.Handler {
	level := GetLevel(logLevel)

	format := strings.ToLower(logFormat)
	if format == FormatAuto || format == "" {
		format = FormatJSON
		if isTerminal(w) {
			format = FormatText
		}
	}

	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
			Prefix:          "threads",
		})
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// GetLevel parses a level name. Unknown names yield info.
func GetLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug", "trace":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
