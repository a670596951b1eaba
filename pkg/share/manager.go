// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"net/url"
	"os/user"
	"sync"

	"github.com/google/uuid"
	"github.com/stratastor/logger"

	"github.com/moorfs/moored/internal/common"
	"github.com/moorfs/moored/internal/events"
	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/keychain"
)

// ProfileAssigner resolves an auth profile for a share that lacks one.
// Returns the profile ID, or a coded error (AccountsNoUniqueProfile when
// the match is ambiguous).
type ProfileAssigner interface {
	AutoAssign(ctx context.Context, s Share) (string, error)
}

// Manager is the sole owner of the share collection. Every mutation is
// serialized through its mutex so concurrent mount callbacks cannot lose
// updates. Narrow setters are no-ops (not errors) on unknown IDs because
// the share may have been concurrently removed.
type Manager struct {
	logger logger.Logger

	mu     sync.Mutex
	shares []*Share

	keychain keychain.Store
	provider Provider
	store    UserStore
	assigner ProfileAssigner
	bus      *events.Bus
	sm       *StateMachine

	// localUsername resolves %USERNAME% placeholders in share URLs.
	localUsername string

	// lastHomeShare caches the directory-service home URL so a
	// transient lookup failure doesn't tear the home share down.
	lastHomeShare string
}

// NewManager creates the share collection owner. assigner and bus may be
// nil; usernameOverride replaces the local account name when non-empty.
func NewManager(
	l logger.Logger,
	provider Provider,
	store UserStore,
	kc keychain.Store,
	assigner ProfileAssigner,
	bus *events.Bus,
	usernameOverride string,
) *Manager {
	username := usernameOverride
	if username == "" {
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
	}

	return &Manager{
		logger:        l,
		keychain:      kc,
		provider:      provider,
		store:         store,
		assigner:      assigner,
		bus:           bus,
		sm:            NewStateMachine(),
		localUsername: username,
	}
}

// List returns a snapshot of the collection.
func (m *Manager) List() []Share {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Share, len(m.shares))
	for i, s := range m.shares {
		out[i] = *s
	}
	return out
}

// Get returns a copy of the share with the given id.
func (m *Manager) Get(id string) (Share, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.findLocked(id); s != nil {
		return *s, true
	}
	return Share{}, false
}

// MountedShares returns copies of all shares with a known mount point.
func (m *Manager) MountedShares() []Share {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Share
	for _, s := range m.shares {
		if s.ActualMountPoint != "" {
			out = append(out, *s)
		}
	}
	return out
}

// AddShare inserts a share. Dedup is enforced on the resolved
// networkShare value. A present password goes to the credential store;
// shares lacking an auth profile get one auto-assigned asynchronously,
// best-effort.
func (m *Manager) AddShare(ctx context.Context, s Share) (Share, error) {
	s.NetworkShare = common.ResolveUsernamePlaceholder(s.NetworkShare, m.localUsername)

	if _, err := s.URL(); err != nil {
		return Share{}, err
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.AuthType == "" {
		s.AuthType = AuthTypeKerberos
	}
	if s.MountStatus == "" {
		s.MountStatus = StatusUnmounted
	}

	m.mu.Lock()
	for _, existing := range m.shares {
		if existing.NetworkShare == s.NetworkShare {
			m.mu.Unlock()
			return Share{}, errors.New(errors.ShareAlreadyExists, s.NetworkShare)
		}
	}
	inserted := s
	m.shares = append(m.shares, &inserted)
	m.mu.Unlock()

	m.logger.Info("share added",
		"id", s.ID, "share", s.NetworkShare, "managed", s.Managed)

	if s.Password != "" {
		if err := m.keychain.Save(ctx, s.KeychainItem(), s.Password); err != nil {
			// A share can exist without a keychain entry.
			m.logger.Error("failed to save share credential",
				"id", s.ID, "share", s.NetworkShare, "error", err)
		}
	}

	if s.AuthProfileID == "" && m.assigner != nil {
		go m.autoAssignProfile(context.WithoutCancel(ctx), s)
	}

	if !s.Managed {
		if err := m.SaveModifiedShareConfigs(); err != nil {
			m.logger.Error("failed to persist user shares", "error", err)
		}
	}

	return s, nil
}

// autoAssignProfile attempts to bind the share to an auth profile.
// Failure leaves the profile unset; password shares with no unique match
// become unassignedProfile and raise a needs-attention event.
func (m *Manager) autoAssignProfile(ctx context.Context, s Share) {
	profileID, err := m.assigner.AutoAssign(ctx, s)
	if err != nil {
		m.logger.Debug("auth profile auto-assignment failed",
			"id", s.ID, "share", s.NetworkShare, "error", err)

		if s.AuthType == AuthTypePassword && errors.HasCode(err, errors.AccountsNoUniqueProfile) {
			m.UpdateMountStatus(s.ID, StatusUnassignedProfile)
			if m.bus != nil {
				m.bus.Emit(events.Event{
					Type:    events.EventNeedsAttention,
					ShareID: s.ID,
					Message: "no auth profile could be assigned",
				})
			}
		}
		return
	}

	m.mu.Lock()
	if existing := m.findLocked(s.ID); existing != nil {
		existing.AuthProfileID = profileID
	}
	m.mu.Unlock()

	m.logger.Info("auth profile assigned", "id", s.ID, "profile", profileID)
}

// RemoveShare removes a share by id and deletes its credential entry if
// a username was set. An unknown id is logged, not an error.
func (m *Manager) RemoveShare(ctx context.Context, id string) {
	m.mu.Lock()
	var removed *Share
	for i, s := range m.shares {
		if s.ID == id {
			removed = s
			m.shares = append(m.shares[:i], m.shares[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if removed == nil {
		m.logger.Info("remove requested for unknown share", "id", id)
		return
	}

	m.logger.Info("share removed", "id", id, "share", removed.NetworkShare)

	if removed.Username != "" {
		if err := m.keychain.Remove(ctx, removed.KeychainItem()); err != nil &&
			!errors.HasCode(err, errors.KeychainItemNotFound) {
			m.logger.Error("failed to remove share credential",
				"id", id, "error", err)
		}
	}

	if !removed.Managed {
		if err := m.SaveModifiedShareConfigs(); err != nil {
			m.logger.Error("failed to persist user shares", "error", err)
		}
	}
}

// UpdateShare replaces a share in place. A changed username removes the
// old keychain entry before the new one is written so stale credentials
// never linger.
func (m *Manager) UpdateShare(ctx context.Context, id string, updated Share) error {
	updated.NetworkShare = common.ResolveUsernamePlaceholder(updated.NetworkShare, m.localUsername)
	if _, err := updated.URL(); err != nil {
		return err
	}

	m.mu.Lock()
	existing := m.findLocked(id)
	if existing == nil {
		m.mu.Unlock()
		return errors.New(errors.ShareNotFound, id)
	}

	old := *existing
	updated.ID = old.ID
	if updated.MountStatus == "" {
		updated.MountStatus = old.MountStatus
	}
	if updated.ActualMountPoint == "" {
		updated.ActualMountPoint = old.ActualMountPoint
	}
	*existing = updated
	m.mu.Unlock()

	if old.Username != "" && old.Username != updated.Username {
		if err := m.keychain.Remove(ctx, old.KeychainItem()); err != nil &&
			!errors.HasCode(err, errors.KeychainItemNotFound) {
			m.logger.Error("failed to remove stale credential",
				"id", id, "old_username", old.Username, "error", err)
		}
	}
	if updated.Password != "" {
		if err := m.keychain.Save(ctx, updated.KeychainItem(), updated.Password); err != nil {
			m.logger.Error("failed to save share credential", "id", id, "error", err)
		}
	}

	if !updated.Managed {
		if err := m.SaveModifiedShareConfigs(); err != nil {
			m.logger.Error("failed to persist user shares", "error", err)
		}
	}

	return nil
}

// UpdateMountStatus sets a share's advisory status. Irregular transitions
// are logged but applied; consumers tolerate transient disagreement.
func (m *Manager) UpdateMountStatus(id string, status MountStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findLocked(id)
	if s == nil {
		return
	}
	if !m.sm.CanTransition(s.MountStatus, status) {
		m.logger.Debug("irregular mount status transition",
			"id", id, "from", s.MountStatus, "to", status)
	}
	s.MountStatus = status
}

// UpdateMountPoint sets the explicit mount sub-path.
func (m *Manager) UpdateMountPoint(id, mountPoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.findLocked(id); s != nil {
		s.MountPoint = mountPoint
	}
}

// UpdateActualMountPoint records where the share is actually mounted.
// Empty clears it.
func (m *Manager) UpdateActualMountPoint(id, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.findLocked(id); s != nil {
		s.ActualMountPoint = path
	}
}

// TryBeginMount atomically claims a share for a mount attempt by moving
// it to queued. Returns false when the share is already queued, in a
// terminal error state, or gone. The check and the set happen under the
// collection lock; this is the guard that prevents two concurrent mount
// attempts for the same share.
func (m *Manager) TryBeginMount(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findLocked(id)
	if s == nil {
		return false
	}
	if s.MountStatus == StatusQueued || s.MountStatus == StatusErrorOnMount {
		return false
	}
	s.MountStatus = StatusQueued
	return true
}

// ResetQueued reverts a queued share to the fallback status. Used by the
// cancellation guard so an aborted attempt never leaves a share stuck in
// queued.
func (m *Manager) ResetQueued(id string, fallback MountStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.findLocked(id); s != nil && s.MountStatus == StatusQueued {
		s.MountStatus = fallback
	}
}

// BulkSetStatus forces every share to the given status. The network-down
// handler uses this before attempting a global unmount.
func (m *Manager) BulkSetStatus(status MountStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.shares {
		s.MountStatus = status
	}
}

func (m *Manager) findLocked(id string) *Share {
	for _, s := range m.shares {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// shareFromRecord builds a Share from a new-format configuration record.
// Malformed URLs yield an error and the record is skipped by callers. A
// password-auth share with no stored credential is not a failure: it
// surfaces as missingPassword.
func (m *Manager) shareFromRecord(ctx context.Context, rec Record, managed bool) (*Share, error) {
	resolved := common.ResolveUsernamePlaceholder(rec.NetworkShare, m.localUsername)

	u, err := url.Parse(resolved)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return nil, errors.New(errors.ShareConfigInvalid, resolved)
	}

	authType := AuthType(rec.AuthType)
	if authType != AuthTypePassword {
		authType = AuthTypeKerberos
	}

	s := &Share{
		ID:            uuid.NewString(),
		NetworkShare:  resolved,
		AuthType:      authType,
		Username:      common.ResolveUsernamePlaceholder(rec.Username, m.localUsername),
		DisplayName:   rec.DisplayName,
		MountPoint:    rec.MountPoint,
		AuthProfileID: rec.AuthProfileID,
		MountStatus:   StatusUnmounted,
		Managed:       managed,
	}

	if authType == AuthTypePassword {
		if s.Username == "" {
			s.Username = m.localUsername
		}
		pw, err := m.keychain.Retrieve(ctx, s.KeychainItem())
		if err != nil {
			s.MountStatus = StatusMissingPassword
			if m.bus != nil {
				m.bus.Emit(events.Event{
					Type:    events.EventNeedsAttention,
					ShareID: s.ID,
					Message: "no stored password for share",
				})
			}
		} else {
			s.Password = pw
		}
	}

	return s, nil
}

// shareFromLegacyURL builds a Share from a legacy-format bare URL entry.
func (m *Manager) shareFromLegacyURL(ctx context.Context, raw string, managed bool) (*Share, error) {
	return m.shareFromRecord(ctx, Record{NetworkShare: raw}, managed)
}

// desiredManagedShares resolves the current policy into Share values,
// applying precedence: new-format managed list or legacy managed list,
// never both. The directory-service home share is appended when known.
func (m *Manager) desiredManagedShares(ctx context.Context) []*Share {
	var desired []*Share

	records, legacy, ok := m.provider.ManagedList()
	if ok {
		if len(records) > 0 {
			for _, rec := range records {
				s, err := m.shareFromRecord(ctx, rec, true)
				if err != nil {
					m.logger.Warn("skipping invalid managed share record",
						"share", rec.NetworkShare, "error", err)
					continue
				}
				desired = append(desired, s)
			}
		} else {
			for _, raw := range legacy {
				s, err := m.shareFromLegacyURL(ctx, raw, true)
				if err != nil {
					m.logger.Warn("skipping invalid legacy managed share",
						"share", raw, "error", err)
					continue
				}
				desired = append(desired, s)
			}
		}
	}

	if home := m.provider.HomeShareURL(); home != "" {
		m.lastHomeShare = home
	}
	if m.lastHomeShare != "" {
		s, err := m.shareFromLegacyURL(ctx, m.lastHomeShare, true)
		if err != nil {
			m.logger.Warn("skipping invalid home share", "share", m.lastHomeShare, "error", err)
		} else {
			desired = append(desired, s)
		}
	}

	return desired
}

// LoadUserShares reads the user-defined share list once at startup.
// Precedence mirrors the managed list: new format or legacy, never both.
func (m *Manager) LoadUserShares(ctx context.Context) {
	records, legacy, ok := m.provider.UserList()
	if !ok {
		return
	}

	build := func(s *Share, err error, raw string) {
		if err != nil {
			m.logger.Warn("skipping invalid user share", "share", raw, "error", err)
			return
		}
		s.Managed = false
		m.mu.Lock()
		for _, existing := range m.shares {
			if existing.NetworkShare == s.NetworkShare {
				m.mu.Unlock()
				return
			}
		}
		m.shares = append(m.shares, s)
		m.mu.Unlock()
	}

	if len(records) > 0 {
		for _, rec := range records {
			s, err := m.shareFromRecord(ctx, rec, false)
			build(s, err, rec.NetworkShare)
		}
		return
	}
	for _, raw := range legacy {
		s, err := m.shareFromLegacyURL(ctx, raw, false)
		build(s, err, raw)
	}
}

// UpdateShareArray is the reconciliation pass: it re-reads the policy
// sources, diffs against the current managed shares, inserts new ones,
// updates changed ones preserving runtime state, and drops managed
// shares no longer present. User shares are never touched. Running it
// twice with unchanged configuration is a no-op the second time.
func (m *Manager) UpdateShareArray(ctx context.Context) {
	desired := m.desiredManagedShares(ctx)

	desiredByURL := make(map[string]*Share, len(desired))
	for _, s := range desired {
		desiredByURL[s.NetworkShare] = s
	}

	var added, updated, removed int
	var staleIDs []string

	m.mu.Lock()
	seen := make(map[string]bool, len(desired))
	for _, existing := range m.shares {
		if !existing.Managed {
			continue
		}
		want, ok := desiredByURL[existing.NetworkShare]
		if !ok {
			staleIDs = append(staleIDs, existing.ID)
			continue
		}
		seen[existing.NetworkShare] = true

		// Refresh config-derived fields, preserving id, status, and
		// actual mount point. Profile assignments aren't cleared by a
		// record that omits one.
		changed := false
		if existing.AuthType != want.AuthType {
			existing.AuthType = want.AuthType
			changed = true
		}
		if want.Username != "" && existing.Username != want.Username {
			existing.Username = want.Username
			changed = true
		}
		if existing.MountPoint != want.MountPoint {
			existing.MountPoint = want.MountPoint
			changed = true
		}
		if existing.DisplayName != want.DisplayName {
			existing.DisplayName = want.DisplayName
			changed = true
		}
		if want.AuthProfileID != "" && existing.AuthProfileID != want.AuthProfileID {
			existing.AuthProfileID = want.AuthProfileID
			changed = true
		}
		if changed {
			updated++
		}
	}

	var toInsert []*Share
	for _, want := range desired {
		if seen[want.NetworkShare] {
			continue
		}
		// Dedup against user shares too: at most one share per
		// resolved URL, policy doesn't shadow an identical user entry.
		dup := false
		for _, existing := range m.shares {
			if existing.NetworkShare == want.NetworkShare {
				dup = true
				break
			}
		}
		if !dup {
			toInsert = append(toInsert, want)
		}
	}
	for _, s := range toInsert {
		m.shares = append(m.shares, s)
		added++
	}
	m.mu.Unlock()

	for _, id := range staleIDs {
		m.RemoveShare(ctx, id)
		removed++
	}

	for _, s := range toInsert {
		if s.AuthProfileID == "" && m.assigner != nil {
			go m.autoAssignProfile(context.WithoutCancel(ctx), *s)
		}
	}

	if added > 0 || updated > 0 || removed > 0 {
		m.logger.Info("share reconciliation completed",
			"added", added, "updated", updated, "removed", removed)
	} else {
		m.logger.Debug("share reconciliation completed - no changes")
	}
}

// SaveModifiedShareConfigs serializes only the user-defined shares back
// to the user share store. Passwords are never written.
func (m *Manager) SaveModifiedShareConfigs() error {
	m.mu.Lock()
	var records []Record
	for _, s := range m.shares {
		if s.Managed {
			continue
		}
		records = append(records, Record{
			NetworkShare:  s.NetworkShare,
			AuthType:      string(s.AuthType),
			Username:      s.Username,
			MountPoint:    s.MountPoint,
			DisplayName:   s.DisplayName,
			AuthProfileID: s.AuthProfileID,
		})
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.SaveUserShares(records)
}
