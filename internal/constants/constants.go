// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package constants

// Build-time variables set via ldflags
var (
	Version   = "v0.1.0-dev" // Set via -X flag during build
	CommitSHA = "unknown"    // Set via -X flag during build
	BuildTime = "unknown"    // Set via -X flag during build
)

const (
	// config
	ConfigFileName     = "moored.yml"
	UserSharesFileName = "shares.yml"
	PIDFileName        = "moored.pid"

	// DefaultMountRoot is the parent directory under which share mount
	// points are created when no override is configured. Expanded
	// relative to the user's home directory at startup.
	DefaultMountRoot = "~/Network Shares"

	// SystemMountRoot is the OS-managed mount root. Nothing under this
	// path is ever created or removed by moored.
	SystemMountRoot = "/Volumes"

	// routes
	APIVersion = "v1"
	APIBase    = "/api/" + APIVersion + "/moored"
	APIShares  = APIBase + "/shares"
	APIMount   = APIBase + "/mount"
	APIUnmount = APIBase + "/unmount"
	APIEvents  = APIBase + "/events"
)
