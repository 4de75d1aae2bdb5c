// Copyright 2025 The threadkit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threads

import (
	"golang.org/x/mod/semver"

	"github.com/kolkov/threadkit/internal/threads/kernel"
)

// Version information for threadkit.
const (
	// Version is the current version of the library.
	Version = "v0.3.0"

	VersionMajor = 0
	VersionMinor = 3
	VersionPatch = 0
)

// Compatible reports whether code written against version want runs on
// this library: same major version (same minor while in v0) and not newer
// than Version. Invalid versions are never compatible.
func Compatible(want string) bool {
	if !semver.IsValid(want) {
		return false
	}
	if semver.Major(want) != semver.Major(Version) {
		return false
	}
	if semver.Major(Version) == "v0" && semver.MajorMinor(want) != semver.MajorMinor(Version) {
		return false
	}
	return semver.Compare(want, Version) <= 0
}

// Info describes the compiled library.
type Info struct {
	// Version is the library version.
	Version string

	// Backend is the compiled backend.
	Backend string

	// DeadlockDetection is true in builds with -tags deadlock.
	DeadlockDetection bool
}

// GetInfo returns information about the compiled library.
//
//	info := threads.GetInfo()
//	fmt.Printf("threadkit %s (%s)\n", info.Version, info.Backend)
func GetInfo() Info {
	return Info{
		Version:           Version,
		Backend:           Backend(),
		DeadlockDetection: kernel.DeadlockDetection,
	}
}
