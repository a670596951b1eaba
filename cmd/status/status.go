// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/moorfs/moored/config"
	"github.com/moorfs/moored/pkg/httpclient"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and share mount states",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			client := httpclient.New(cfg.Server.Port)
			ctx := context.Background()

			report, err := client.Health(ctx)
			if err != nil {
				fmt.Println("moored is not running")
				return nil
			}

			fmt.Printf("moored %s, up %s\n", report.Version, report.Uptime)
			fmt.Printf("shares: %d total, %d mounted, %d need attention\n",
				report.Shares, report.Mounted, report.Errored)

			shares, err := client.Shares(ctx)
			if err != nil {
				return err
			}
			if len(shares) == 0 {
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SHARE\tSTATUS\tMOUNT POINT")
			for _, s := range shares {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					s.NetworkShare, s.MountStatus, s.ActualMountPoint)
			}
			return w.Flush()
		},
	}
}
