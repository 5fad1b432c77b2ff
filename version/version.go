// Copyright (c) 2020-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package version contains the semantic version of the votepanel binaries.
package version

import "fmt"

const (
	Major uint = 1
	Minor uint = 0
	Patch uint = 0

	// PreRelease is the pre-release identifier. It is empty for releases.
	PreRelease = "pre"
)

// BuildMetadata is set at link time using the -ldflags flag:
//
//	-ldflags "-X github.com/decred/votepanel/version.BuildMetadata=foo"
var BuildMetadata = ""

// String returns the semantic version. The pre-release identifier and the
// build metadata are only included when they are set.
func String() string {
	v := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if PreRelease != "" {
		v += "-" + PreRelease
	}
	if BuildMetadata != "" {
		v += "+" + BuildMetadata
	}
	return v
}
