// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package shares

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/moorfs/moored/config"
	"github.com/moorfs/moored/pkg/httpclient"
	"github.com/moorfs/moored/pkg/share"
)

func NewSharesCmd() *cobra.Command {
	var (
		mountID   string
		unmountID string
	)

	cmd := &cobra.Command{
		Use:   "shares",
		Short: "List shares, or mount/unmount one by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			client := httpclient.New(cfg.Server.Port)
			ctx := context.Background()

			switch {
			case mountID != "":
				s, err := client.MountShare(ctx, mountID)
				if err != nil {
					return err
				}
				printShare(s)
				return nil
			case unmountID != "":
				s, err := client.UnmountShare(ctx, unmountID)
				if err != nil {
					return err
				}
				printShare(s)
				return nil
			}

			shares, err := client.Shares(ctx)
			if err != nil {
				return err
			}
			if len(shares) == 0 {
				fmt.Println("no shares configured")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSHARE\tAUTH\tSTATUS\tMANAGED")
			for _, s := range shares {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
					s.ID, s.NetworkShare, s.AuthType, s.MountStatus, s.Managed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&mountID, "mount", "", "Mount the share with this id")
	cmd.Flags().StringVar(&unmountID, "unmount", "", "Unmount the share with this id")
	return cmd
}

func printShare(s share.Share) {
	fmt.Printf("%s: %s", s.NetworkShare, s.MountStatus)
	if s.ActualMountPoint != "" {
		fmt.Printf(" at %s", s.ActualMountPoint)
	}
	fmt.Println()
}
