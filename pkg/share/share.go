// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package share holds the share data model and the concurrency-safe
// manager that owns the canonical share collection.
package share

import (
	"net/url"
	"path"
	"strings"

	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/keychain"
)

// AuthType selects how a share authenticates.
type AuthType string

const (
	// AuthTypeKerberos relies on an existing ticket; no stored password.
	AuthTypeKerberos AuthType = "krb"
	// AuthTypePassword uses a keychain-stored credential.
	AuthTypePassword AuthType = "pwd"
)

// MountStatus is the advisory runtime state of a share. ActualMountPoint
// plus a live filesystem check is authoritative; consumers must tolerate
// transient disagreement.
type MountStatus string

const (
	StatusUnmounted         MountStatus = "unmounted"
	StatusQueued            MountStatus = "queued"
	StatusMounted           MountStatus = "mounted"
	StatusToBeMounted       MountStatus = "toBeMounted"
	StatusErrorOnMount      MountStatus = "errorOnMount"
	StatusUnreachable       MountStatus = "unreachable"
	StatusMissingPassword   MountStatus = "missingPassword"
	StatusUnassignedProfile MountStatus = "unassignedProfile"
	StatusUndefined         MountStatus = "undefined"
)

// Terminal reports whether the status requires user or policy action
// before another mount attempt is worthwhile.
func (s MountStatus) Terminal() bool {
	switch s {
	case StatusErrorOnMount, StatusMissingPassword, StatusUnassignedProfile:
		return true
	}
	return false
}

// Share is one configured network share plus its runtime state. The
// resolved NetworkShare URL is the natural dedup key: the collection
// never holds two shares with the same value.
type Share struct {
	// ID is generated at creation and stable for the share's lifetime.
	// All lookups and updates go by ID, never by index.
	ID string `json:"id" yaml:"-"`

	// NetworkShare is the canonical share URL with %USERNAME%
	// placeholders already resolved, e.g. smb://server/path.
	NetworkShare string `json:"networkShare" yaml:"networkShare"`

	AuthType    AuthType `json:"authType"              yaml:"authType"`
	Username    string   `json:"username,omitempty"    yaml:"username,omitempty"`
	DisplayName string   `json:"displayName,omitempty" yaml:"displayName,omitempty"`

	// Password is never persisted to configuration, only to the
	// credential store.
	Password string `json:"-" yaml:"-"`

	// AuthProfileID references an external auth-profile entity.
	AuthProfileID string `json:"authProfileID,omitempty" yaml:"authProfileID,omitempty"`

	// MountPoint is an optional explicit sub-path under the mount root.
	// When empty the last path component of the share URL is used.
	MountPoint string `json:"mountPoint,omitempty" yaml:"mountPoint,omitempty"`

	// ActualMountPoint is set only while the share is known mounted.
	ActualMountPoint string `json:"actualMountPoint,omitempty" yaml:"-"`

	MountStatus MountStatus `json:"mountStatus" yaml:"-"`

	// Managed marks policy-sourced shares. They are read-only for the
	// user and removed automatically when policy drops them.
	Managed bool `json:"managed" yaml:"-"`
}

// URL parses the share's network URL.
func (s *Share) URL() (*url.URL, error) {
	u, err := url.Parse(s.NetworkShare)
	if err != nil {
		return nil, errors.Wrap(err, errors.ShareInvalidURL).
			WithMetadata("share", s.NetworkShare)
	}
	if u.Host == "" {
		return nil, errors.New(errors.MountInvalidHost, s.NetworkShare)
	}
	return u, nil
}

// MountDirName returns the directory name for the mount point: the
// explicit override when set, otherwise the URL's last path component.
func (s *Share) MountDirName() string {
	if s.MountPoint != "" {
		return s.MountPoint
	}
	u, err := url.Parse(s.NetworkShare)
	if err != nil {
		return ""
	}
	return path.Base(strings.TrimRight(u.Path, "/"))
}

// KeychainItem builds the credential-store key for this share.
func (s *Share) KeychainItem() keychain.Item {
	u, err := url.Parse(s.NetworkShare)
	if err != nil {
		return keychain.Item{Username: s.Username}
	}
	return keychain.Item{
		Server:   u.Hostname(),
		Path:     strings.TrimPrefix(u.Path, "/"),
		Username: s.Username,
		Protocol: u.Scheme,
	}
}

// StateMachine validates mountStatus transitions:
//
//	unmounted/toBeMounted/undefined ─(attempt starts)→ queued
//	queued ─(success/already mounted)→ mounted
//	queued ─(probe failed/auth failed)→ toBeMounted
//	queued ─(no such share)→ errorOnMount
//	queued ─(host down/timeout)→ unreachable
//	mounted ─(unmount ok)→ unmounted, ─(unmount failed)→ undefined
//	any ─(network down)→ undefined
//
// Each share advances its own instance independently; mixed states
// across the collection are normal during any pass.
type StateMachine struct {
	transitions map[MountStatus][]MountStatus
}

// NewStateMachine creates the status transition table.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{transitions: make(map[MountStatus][]MountStatus)}

	attemptable := []MountStatus{
		StatusQueued, StatusUndefined, StatusMissingPassword,
		StatusUnassignedProfile, StatusToBeMounted,
	}

	sm.transitions[StatusUnmounted] = attemptable
	sm.transitions[StatusToBeMounted] = append([]MountStatus{StatusUnmounted}, attemptable...)
	sm.transitions[StatusUnreachable] = append([]MountStatus{StatusUnmounted}, attemptable...)
	sm.transitions[StatusMissingPassword] = []MountStatus{
		StatusQueued, StatusToBeMounted, StatusUndefined, StatusUnmounted,
	}
	sm.transitions[StatusUnassignedProfile] = []MountStatus{
		StatusQueued, StatusToBeMounted, StatusUndefined, StatusUnmounted,
	}
	sm.transitions[StatusUndefined] = append(
		[]MountStatus{StatusUnmounted, StatusMounted}, attemptable...)

	sm.transitions[StatusQueued] = []MountStatus{
		StatusMounted, StatusToBeMounted, StatusErrorOnMount,
		StatusUnreachable, StatusMissingPassword, StatusUnmounted,
		StatusUndefined,
	}
	sm.transitions[StatusMounted] = []MountStatus{
		StatusUnmounted, StatusUndefined,
	}
	sm.transitions[StatusErrorOnMount] = []MountStatus{
		StatusToBeMounted, StatusUndefined, StatusUnmounted, StatusQueued,
	}

	return sm
}

// CanTransition checks if a transition from oldStatus to newStatus is valid.
func (sm *StateMachine) CanTransition(oldStatus, newStatus MountStatus) bool {
	if oldStatus == newStatus {
		return true
	}
	// Network drop forces undefined from anywhere.
	if newStatus == StatusUndefined {
		return true
	}

	validNext, exists := sm.transitions[oldStatus]
	if !exists {
		return false
	}
	for _, s := range validNext {
		if s == newStatus {
			return true
		}
	}
	return false
}
