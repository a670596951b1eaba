// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log"

	"github.com/moorfs/moored/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
	}
}
