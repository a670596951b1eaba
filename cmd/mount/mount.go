// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moorfs/moored/config"
	"github.com/moorfs/moored/pkg/api"
	"github.com/moorfs/moored/pkg/httpclient"
)

func NewMountCmd() *cobra.Command {
	var (
		addURL      string
		username    string
		password    string
		mountPoint  string
		displayName string
		authType    string
	)

	cmd := &cobra.Command{
		Use:   "mount",
		Short: "Trigger a mount pass, optionally adding a share first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			client := httpclient.New(cfg.Server.Port)
			ctx := context.Background()

			if addURL != "" {
				s, err := client.AddShare(ctx, api.ShareRequest{
					NetworkShare: addURL,
					AuthType:     authType,
					Username:     username,
					Password:     password,
					MountPoint:   mountPoint,
					DisplayName:  displayName,
				})
				if err != nil {
					return err
				}
				fmt.Printf("added share %s (%s)\n", s.NetworkShare, s.ID)
			}

			shares, err := client.MountAll(ctx)
			if err != nil {
				return err
			}
			for _, s := range shares {
				fmt.Printf("%s: %s\n", s.NetworkShare, s.MountStatus)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addURL, "add", "", "Share URL to add before mounting (smb://server/share)")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username for the added share")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password for the added share")
	cmd.Flags().StringVar(&mountPoint, "mount-point", "", "Mount directory name override")
	cmd.Flags().StringVar(&displayName, "display-name", "", "Display name for the added share")
	cmd.Flags().StringVar(&authType, "auth", "", "Auth type for the added share (krb or pwd)")
	return cmd
}
