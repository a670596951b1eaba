// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package unmount

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moorfs/moored/config"
	"github.com/moorfs/moored/pkg/httpclient"
)

func NewUnmountCmd() *cobra.Command {
	var remove string

	cmd := &cobra.Command{
		Use:   "unmount",
		Short: "Unmount all mounted shares",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			client := httpclient.New(cfg.Server.Port)
			ctx := context.Background()

			if remove != "" {
				if err := client.RemoveShare(ctx, remove); err != nil {
					return err
				}
				fmt.Printf("removed share %s\n", remove)
				return nil
			}

			shares, err := client.UnmountAll(ctx)
			if err != nil {
				return err
			}
			for _, s := range shares {
				fmt.Printf("%s: %s\n", s.NetworkShare, s.MountStatus)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remove, "remove", "", "Remove the share with this id instead of unmounting")
	return cmd
}
