// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package commands

import "time"

type RootArgs struct {
	logLevel     *string
	logFormat    *string
	trackHB      *bool
	deadlockWarn *time.Duration
	reapInterval *int
}

func NewRootArgs() *RootArgs {
	return &RootArgs{
		logLevel:     new(string),
		logFormat:    new(string),
		trackHB:      new(bool),
		deadlockWarn: new(time.Duration),
		reapInterval: new(int),
	}
}

func (a *RootArgs) GetLogLevel() string {
	return *a.logLevel
}

func (a *RootArgs) GetLogFormat() string {
	return *a.logFormat
}

func (a *RootArgs) GetTrackHB() bool {
	return *a.trackHB
}

func (a *RootArgs) GetDeadlockWarn() time.Duration {
	return *a.deadlockWarn
}

func (a *RootArgs) GetReapInterval() int {
	return *a.reapInterval
}
