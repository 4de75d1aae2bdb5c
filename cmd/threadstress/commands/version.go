// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package commands

import (
	"github.com/spf13/cobra"

	"github.com/kolkov/threadkit/threads"
)

// NewVersionCmd returns the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version of the threadstress CLI",
		Run: func(cc *cobra.Command, _ []string) {
			info := threads.GetInfo()
			cc.Printf("threadstress %s (backend %s, deadlock detection %t)\n",
				info.Version, info.Backend, info.DeadlockDetection)
		},
	}
}
