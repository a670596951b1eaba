// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"
)

const (
	// TestSharePrefix is used as prefix for generated share names
	TestSharePrefix = "share"

	// TestShareNameLength is the length of the random suffix
	TestShareNameLength = 6

	// Chars used for random name generation
	shareNameChars = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateShareName creates a unique share name for testing.
func GenerateShareName() string {
	rand.Seed(uint64(time.Now().UnixNano()))
	suffix := make([]byte, TestShareNameLength)
	for i := range suffix {
		suffix[i] = shareNameChars[rand.Intn(len(shareNameChars))]
	}
	return fmt.Sprintf("%s-%s", TestSharePrefix, string(suffix))
}

// GenerateShareURL creates a unique smb:// share URL for testing.
func GenerateShareURL(host string) string {
	if host == "" {
		host = "fs.example.com"
	}
	return fmt.Sprintf("smb://%s/%s", host, GenerateShareName())
}
