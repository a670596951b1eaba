// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package accounts manages auth profiles: named identities (username
// plus realm) that shares authenticate with. A share that doesn't name
// a profile gets one auto-assigned by matching the server's domain
// against the profile realms.
package accounts

import (
	"context"
	"strings"

	"github.com/stratastor/logger"

	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/share"
)

// Profile is one authentication identity.
type Profile struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Username string `json:"username" yaml:"username"`
	// Realm is the DNS suffix of the servers this profile covers,
	// e.g. "corp.example.com".
	Realm string `json:"realm" yaml:"realm"`
}

// Manager holds the configured profiles. The set is fixed at startup;
// reads need no locking.
type Manager struct {
	logger   logger.Logger
	profiles []Profile
}

func NewManager(l logger.Logger, profiles []Profile) *Manager {
	return &Manager{logger: l, profiles: profiles}
}

// List returns the configured profiles.
func (m *Manager) List() []Profile {
	out := make([]Profile, len(m.profiles))
	copy(out, m.profiles)
	return out
}

// Get returns the profile with the given id.
func (m *Manager) Get(id string) (Profile, error) {
	for _, p := range m.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, errors.New(errors.AccountsProfileNotFound, id)
}

// AutoAssign picks the profile for a share by matching the share's host
// against the profile realms. The match must be unique; with no realm
// match a single configured profile wins by default. Anything else is
// AccountsNoUniqueProfile.
func (m *Manager) AutoAssign(ctx context.Context, s share.Share) (string, error) {
	u, err := s.URL()
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())

	var matches []Profile
	for _, p := range m.profiles {
		if p.Realm == "" {
			continue
		}
		realm := strings.ToLower(p.Realm)
		if host == realm || strings.HasSuffix(host, "."+realm) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0].ID, nil
	case 0:
		if len(m.profiles) == 1 {
			return m.profiles[0].ID, nil
		}
		return "", errors.New(errors.AccountsNoUniqueProfile, host).
			WithMetadata("candidates", "0")
	default:
		return "", errors.New(errors.AccountsNoUniqueProfile, host).
			WithMetadata("candidates", strings.Join(profileIDs(matches), ","))
	}
}

func profileIDs(profiles []Profile) []string {
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids
}

var _ share.ProfileAssigner = (*Manager)(nil)
