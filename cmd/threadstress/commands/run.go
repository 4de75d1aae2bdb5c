// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package commands

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/kolkov/threadkit/internal/stress"
)

// NewRunCmd returns the run command.
func NewRunCmd() *cobra.Command {
	p := stress.DefaultParams
	parallel := runtime.GOMAXPROCS(0)

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run stress scenarios (all when none are named)",
		Example: `  threadstress run
  threadstress run mutex timedlock --threads 32 --iterations 10000`,
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			var names []string
			for _, s := range stress.All() {
				names = append(names, s.Name)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cc *cobra.Command, args []string) error {
			list, err := stress.Lookup(args...)
			if err != nil {
				return err
			}

			results, err := stress.Run(cc.Context(), slog.Default(), list, p, parallel)
			for _, r := range results {
				verdict := "PASS"
				if r.Err != nil {
					verdict = "FAIL"
				}
				cc.Printf("%s  %-10s %s\n", verdict, r.Scenario, r.Duration.Round(10*time.Microsecond))
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&p.Threads, "threads", "t", p.Threads, "Threads per scenario role")
	cmd.Flags().IntVarP(&p.Iterations, "iterations", "n", p.Iterations, "Operations per thread")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", parallel, "Scenarios run at the same time")

	return cmd
}
