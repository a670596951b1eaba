// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package accounts

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/stratastor/logger"

	"github.com/moorfs/moored/pkg/errors"
)

// DirectoryConfig carries the LDAP settings for home-share discovery.
type DirectoryConfig struct {
	URL           string
	BaseDN        string
	BindDN        string
	BindPassword  string
	HomeAttribute string
}

// DirectoryClient looks the user's network home directory up in Active
// Directory / Open Directory. The home share is mounted like any
// configured share once discovered.
type DirectoryClient struct {
	logger   logger.Logger
	cfg      DirectoryConfig
	username string
}

func NewDirectoryClient(l logger.Logger, cfg DirectoryConfig, username string) *DirectoryClient {
	if cfg.HomeAttribute == "" {
		cfg.HomeAttribute = "homeDirectory"
	}
	return &DirectoryClient{logger: l, cfg: cfg, username: username}
}

// HomeShareURL returns the user's home share as an smb:// URL, or ""
// when there is none or the directory is unavailable. Failures are
// logged, never fatal: the home share is opportunistic.
func (c *DirectoryClient) HomeShareURL() string {
	raw, err := c.lookupHome()
	if err != nil {
		c.logger.Debug("home share lookup failed",
			"user", c.username, "error", err)
		return ""
	}
	if raw == "" {
		return ""
	}

	u := UNCToURL(raw)
	if u == "" {
		c.logger.Warn("unusable home directory attribute",
			"user", c.username, "value", raw)
	}
	return u
}

func (c *DirectoryClient) lookupHome() (string, error) {
	var opts []ldap.DialOpt
	if strings.HasPrefix(c.cfg.URL, "ldaps://") {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{
			// Directory servers on managed Macs commonly present
			// internal CA certs we cannot verify here.
			InsecureSkipVerify: true,
		}))
	}

	conn, err := ldap.DialURL(c.cfg.URL, opts...)
	if err != nil {
		return "", errors.Wrap(err, errors.AccountsConnectFailed)
	}
	defer conn.Close()

	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			return "", errors.Wrap(err, errors.AccountsConnectFailed)
		}
	}

	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf("(|(sAMAccountName=%s)(uid=%s))",
			ldap.EscapeFilter(c.username), ldap.EscapeFilter(c.username)),
		[]string{c.cfg.HomeAttribute},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return "", errors.Wrap(err, errors.AccountsLookupFailed).
			WithMetadata("user", c.username)
	}
	if len(res.Entries) == 0 {
		return "", nil
	}
	return res.Entries[0].GetAttributeValue(c.cfg.HomeAttribute), nil
}

// UNCToURL converts a \\server\share\path UNC home directory to an
// smb:// URL. Already-URL values pass through; anything else yields "".
func UNCToURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		return raw
	}
	if !strings.HasPrefix(raw, `\\`) {
		return ""
	}

	parts := strings.Split(strings.TrimPrefix(raw, `\\`), `\`)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return "smb://" + strings.Join(parts, "/")
}
