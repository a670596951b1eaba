// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package mounter

import (
	"os"
	"syscall"
)

// deviceID extracts the filesystem identifier from a stat result.
func deviceID(info os.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Dev), true
}
