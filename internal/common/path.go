// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a path with tilde (~) to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user's home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// GetConfigDir returns the appropriate configuration directory.
// Root gets the system directory, everyone else a dotdir in $HOME.
func GetConfigDir() string {
	if os.Geteuid() == 0 {
		return "/etc/moored"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/moored"
	}
	return filepath.Join(home, ".moored")
}

// GetManagedConfigDir returns the directory where centrally pushed (MDM)
// policy files are placed. Policy files here are read-only for moored.
func GetManagedConfigDir() string {
	return "/Library/Managed Preferences/moored"
}

// ResolveUsernamePlaceholder substitutes the %USERNAME% marker in share
// URLs with the given username.
func ResolveUsernamePlaceholder(raw, username string) string {
	return strings.ReplaceAll(raw, "%USERNAME%", username)
}
