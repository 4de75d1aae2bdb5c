// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package commands

import (
	"github.com/spf13/cobra"

	"github.com/kolkov/threadkit/internal/stress"
)

// NewListCmd returns the list command.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available scenarios",
		Args:  cobra.NoArgs,
		Run: func(cc *cobra.Command, _ []string) {
			for _, s := range stress.All() {
				cc.Printf("%-10s %s\n", s.Name, s.Description)
			}
		},
	}
}
