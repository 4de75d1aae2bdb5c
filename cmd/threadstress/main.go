// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command threadstress runs contention scenarios against the threads
// package and reports which of them hold up.
//
// Usage:
//
//	threadstress run                     # every scenario
//	threadstress run mutex cond -t 16    # selected scenarios, 16 threads each
//	threadstress list                    # available scenarios
//	threadstress version
//
// Build with -tags threads_emulated to exercise the emulated backend.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kolkov/threadkit/cmd/threadstress/commands"
)

const (
	cmdName   = "threadstress"
	shortDesc = "Stress the threadkit primitives."
	longDesc  = `Stress the threadkit primitives.

threadstress runs end-to-end scenarios (mutual exclusion, condition
variables, timed locking, once-flags, thread-specific storage, sleep and
the thread registry) against the compiled backend and exits non-zero if
any of them fails.
`
)

func main() {
	cmd := commands.NewRootCmd(cmdName, shortDesc, longDesc)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimLeft(err.Error(), "\n"))
		os.Exit(1)
	}
}
