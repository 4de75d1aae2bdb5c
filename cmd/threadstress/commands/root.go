// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package commands implements the threadstress command tree.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kolkov/threadkit/internal/threads/config"
	"github.com/kolkov/threadkit/threads"
)

var ErrInitFailed = errors.New("threads init failed")

// envAnnotation names the environment variable a flag falls back to.
const envAnnotation = "threadstress_env"

// NewRootCmd returns the root command with every subcommand attached.
func NewRootCmd(name, shortDesc, longDesc string) *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:           name,
		Short:         shortDesc,
		Long:          longDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       threads.Version,
	}

	defaults := config.Default()
	flags := cmd.PersistentFlags()
	flags.StringVar(args.logLevel, "log-level", defaults.LogLevel, "Set the log level (debug, info, warn, error)")
	flags.StringVar(args.logFormat, "log-format", defaults.LogFormat, "Set the log format (auto, text, json)")
	flags.BoolVar(args.trackHB, "track-hb", defaults.TrackHappensBefore, "Record happens-before edges while running")
	flags.DurationVar(args.deadlockWarn, "deadlock-warn", defaults.DeadlockWarnAfter,
		"Warn when a thread spins this long relocking a mutex it holds (0 disables)")
	flags.IntVar(args.reapInterval, "reap-interval", defaults.ReapInterval,
		"Adopted goroutines between scans for exited ones")

	bindEnv(flags, map[string]string{
		"log-level":     config.EnvLogLevel,
		"log-format":    config.EnvLogFormat,
		"track-hb":      config.EnvTrackHB,
		"deadlock-warn": config.EnvDeadlockWarn,
		"reap-interval": config.EnvReapInterval,
	})

	cmd.PersistentPreRunE = func(cc *cobra.Command, _ []string) error {
		if err := applyEnv(cc.Flags()); err != nil {
			return fmt.Errorf("%w: %w", ErrInitFailed, err)
		}

		cfg := defaults.Apply(
			config.WithLogLevel(args.GetLogLevel()),
			config.WithLogFormat(args.GetLogFormat()),
			config.WithHappensBefore(args.GetTrackHB()),
			config.WithDeadlockWarnAfter(args.GetDeadlockWarn()),
			config.WithReapInterval(args.GetReapInterval()),
		)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInitFailed, err)
		}

		log := config.NewLogger(cfg, cc.ErrOrStderr()).With("run", uuid.NewString())
		slog.SetDefault(log)

		// A runtime left from an earlier command in the same process
		// would ignore the new settings.
		if err := threads.Teardown(); err != nil {
			log.Warn("previous runtime leaked threads", "err", err)
		}
		opts := []threads.Option{
			threads.WithLogLevel(cfg.LogLevel),
			threads.WithLogFormat(cfg.LogFormat),
			threads.WithHappensBefore(cfg.TrackHappensBefore),
			threads.WithDeadlockWarnAfter(cfg.DeadlockWarnAfter),
			threads.WithReapInterval(cfg.ReapInterval),
		}
		if err := threads.InitWithLogger(log, opts...); err != nil {
			return fmt.Errorf("%w: %w", ErrInitFailed, err)
		}

		log.Debug("ready to go", "backend", threads.Backend())
		return nil
	}

	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		slog.Debug("shutting down")
		return threads.Teardown()
	}

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// bindEnv records the environment variable behind each named flag.
func bindEnv(flags *pflag.FlagSet, env map[string]string) {
	for name, key := range env {
		if err := flags.SetAnnotation(name, envAnnotation, []string{key}); err != nil {
			panic(err)
		}
	}
}

// applyEnv sets every flag that was not given on the command line from its
// environment variable, when that is set. Flags win over the environment.
func applyEnv(flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[envAnnotation]
		if err != nil || f.Changed || len(keys) == 0 {
			return
		}
		v, ok := os.LookupEnv(keys[0])
		if !ok {
			return
		}
		if setErr := f.Value.Set(v); setErr != nil {
			err = fmt.Errorf("%s=%q: %w", keys[0], v, setErr)
		}
	})
	return err
}
