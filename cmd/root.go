// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	configcmd "github.com/moorfs/moored/cmd/config"
	"github.com/moorfs/moored/cmd/mount"
	"github.com/moorfs/moored/cmd/serve"
	"github.com/moorfs/moored/cmd/shares"
	"github.com/moorfs/moored/cmd/status"
	"github.com/moorfs/moored/cmd/unmount"
	"github.com/moorfs/moored/cmd/version"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "moored",
		Short: "moored: keeps network shares mounted",
	}

	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(status.NewStatusCmd())
	rootCmd.AddCommand(shares.NewSharesCmd())
	rootCmd.AddCommand(mount.NewMountCmd())
	rootCmd.AddCommand(unmount.NewUnmountCmd())
	rootCmd.AddCommand(configcmd.NewConfigCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return rootCmd
}
