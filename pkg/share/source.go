// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"os"
	"path/filepath"

	"github.com/stratastor/logger"
	"gopkg.in/yaml.v3"

	"github.com/moorfs/moored/pkg/errors"
)

// Record is one raw share entry as it appears in a new-format
// configuration list. Legacy lists carry bare URL strings instead.
type Record struct {
	NetworkShare  string `yaml:"networkShare"            json:"networkShare"`
	AuthType      string `yaml:"authType,omitempty"      json:"authType,omitempty"`
	Username      string `yaml:"username,omitempty"      json:"username,omitempty"`
	MountPoint    string `yaml:"mountPoint,omitempty"    json:"mountPoint,omitempty"`
	DisplayName   string `yaml:"displayName,omitempty"   json:"displayName,omitempty"`
	AuthProfileID string `yaml:"authProfileID,omitempty" json:"authProfileID,omitempty"`
}

// listFile is the on-disk schema shared by the managed policy file and
// the user share file. A file carries either the new-format list or the
// legacy list; when both are present the new format wins and the legacy
// list is ignored (never merged).
type listFile struct {
	Shares       []Record `yaml:"shares"`
	LegacyShares []string `yaml:"legacyShares"`
}

// Provider supplies the raw configuration records the manager
// reconciles against. Implementations must be cheap to call; the
// manager re-reads sources on every reconciliation pass.
type Provider interface {
	// ManagedList returns the centrally pushed share list. ok is false
	// when no managed policy exists at all.
	ManagedList() (records []Record, legacy []string, ok bool)
	// UserList returns the user-defined share list.
	UserList() (records []Record, legacy []string, ok bool)
	// HomeShareURL returns the directory-service network home URL, or
	// "" when unavailable. Best-effort.
	HomeShareURL() string
}

// UserStore persists user-defined shares. Managed shares are never
// written anywhere.
type UserStore interface {
	SaveUserShares(records []Record) error
}

// HomeShareFunc adapts a lookup function to the Provider home-share hook.
type HomeShareFunc func() string

// FileProvider reads the managed policy file and the user share file
// from disk and persists user shares back.
type FileProvider struct {
	logger     logger.Logger
	policyPath string
	userPath   string
	homeShare  HomeShareFunc
}

// NewFileProvider creates a provider over the given file paths.
// homeShare may be nil.
func NewFileProvider(l logger.Logger, policyPath, userPath string, homeShare HomeShareFunc) *FileProvider {
	return &FileProvider{
		logger:     l,
		policyPath: policyPath,
		userPath:   userPath,
		homeShare:  homeShare,
	}
}

func (p *FileProvider) ManagedList() ([]Record, []string, bool) {
	return p.readList(p.policyPath)
}

func (p *FileProvider) UserList() ([]Record, []string, bool) {
	return p.readList(p.userPath)
}

func (p *FileProvider) HomeShareURL() string {
	if p.homeShare == nil {
		return ""
	}
	return p.homeShare()
}

func (p *FileProvider) readList(path string) ([]Record, []string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("failed to read share list", "path", path, "error", err)
		}
		return nil, nil, false
	}

	var f listFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		// Parse errors are skip-and-log, never fatal.
		p.logger.Warn("failed to parse share list", "path", path, "error", err)
		return nil, nil, false
	}

	return f.Shares, f.LegacyShares, true
}

// SaveUserShares serializes the user-defined share list. Passwords never
// appear in records, so nothing sensitive touches disk here.
func (p *FileProvider) SaveUserShares(records []Record) error {
	if err := os.MkdirAll(filepath.Dir(p.userPath), 0755); err != nil {
		return errors.Wrap(err, errors.ShareStoreFailed).
			WithMetadata("path", p.userPath)
	}

	data, err := yaml.Marshal(listFile{Shares: records})
	if err != nil {
		return errors.Wrap(err, errors.ShareStoreFailed).
			WithMetadata("path", p.userPath)
	}

	if err := os.WriteFile(p.userPath, data, 0600); err != nil {
		return errors.Wrap(err, errors.ShareStoreFailed).
			WithMetadata("path", p.userPath)
	}
	return nil
}

var _ Provider = (*FileProvider)(nil)
var _ UserStore = (*FileProvider)(nil)
