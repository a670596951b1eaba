// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moorfs/moored/internal/events"
	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/keychain"
	"github.com/moorfs/moored/pkg/testutil"
)

func createTestLogger(t *testing.T) logger.Logger {
	testLogger, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	return testLogger
}

// staticProvider serves fixed lists so reconciliation can be driven
// without files on disk.
type staticProvider struct {
	managed       []Record
	legacyManaged []string
	managedOK     bool
	user          []Record
	legacyUser    []string
	userOK        bool
	home          string
}

func (p *staticProvider) ManagedList() ([]Record, []string, bool) {
	return p.managed, p.legacyManaged, p.managedOK
}

func (p *staticProvider) UserList() ([]Record, []string, bool) {
	return p.user, p.legacyUser, p.userOK
}

func (p *staticProvider) HomeShareURL() string { return p.home }

type memoryUserStore struct {
	saved [][]Record
}

func (s *memoryUserStore) SaveUserShares(records []Record) error {
	s.saved = append(s.saved, records)
	return nil
}

func setupTestManager(t *testing.T, provider Provider) (*Manager, *keychain.MemoryStore, *memoryUserStore) {
	if provider == nil {
		provider = &staticProvider{}
	}
	kc := keychain.NewMemoryStore()
	store := &memoryUserStore{}
	m := NewManager(createTestLogger(t), provider, store, kc, nil, nil, "testuser")
	return m, kc, store
}

func TestAddShareDeduplicates(t *testing.T) {
	m, _, _ := setupTestManager(t, nil)
	ctx := context.Background()

	first, err := m.AddShare(ctx, Share{NetworkShare: "smb://fileserver.example.com/projects"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, AuthTypeKerberos, first.AuthType)
	assert.Equal(t, StatusUnmounted, first.MountStatus)

	_, err = m.AddShare(ctx, Share{NetworkShare: "smb://fileserver.example.com/projects"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ShareAlreadyExists))
	assert.Len(t, m.List(), 1)
}

func TestAddShareResolvesUsernamePlaceholder(t *testing.T) {
	m, _, _ := setupTestManager(t, nil)

	s, err := m.AddShare(context.Background(), Share{
		NetworkShare: "smb://home.example.com/%USERNAME%",
	})
	require.NoError(t, err)
	assert.Equal(t, "smb://home.example.com/testuser", s.NetworkShare)
}

func TestAddShareRejectsInvalidURL(t *testing.T) {
	m, _, _ := setupTestManager(t, nil)

	_, err := m.AddShare(context.Background(), Share{NetworkShare: "not a url"})
	require.Error(t, err)
	assert.Empty(t, m.List())
}

func TestAddShareStoresPassword(t *testing.T) {
	m, kc, _ := setupTestManager(t, nil)

	s, err := m.AddShare(context.Background(), Share{
		NetworkShare: "smb://fileserver.example.com/finance",
		AuthType:     AuthTypePassword,
		Username:     "alice",
		Password:     "s3cret",
	})
	require.NoError(t, err)

	pw, err := kc.Retrieve(context.Background(), s.KeychainItem())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
}

func TestRemoveShareCleansCredential(t *testing.T) {
	m, kc, _ := setupTestManager(t, nil)
	ctx := context.Background()

	s, err := m.AddShare(ctx, Share{
		NetworkShare: "smb://fileserver.example.com/finance",
		AuthType:     AuthTypePassword,
		Username:     "alice",
		Password:     "s3cret",
	})
	require.NoError(t, err)

	m.RemoveShare(ctx, s.ID)
	assert.Empty(t, m.List())

	_, err = kc.Retrieve(ctx, s.KeychainItem())
	assert.True(t, errors.HasCode(err, errors.KeychainItemNotFound))
}

func TestRemoveShareUnknownIDIsSilent(t *testing.T) {
	m, _, _ := setupTestManager(t, nil)

	// Must not panic or error.
	m.RemoveShare(context.Background(), "no-such-id")
}

func TestUpdateShareUsernameChangeRemovesOldCredential(t *testing.T) {
	m, kc, _ := setupTestManager(t, nil)
	ctx := context.Background()

	s, err := m.AddShare(ctx, Share{
		NetworkShare: "smb://fileserver.example.com/finance",
		AuthType:     AuthTypePassword,
		Username:     "alice",
		Password:     "s3cret",
	})
	require.NoError(t, err)
	oldItem := s.KeychainItem()

	updated := s
	updated.Username = "bob"
	updated.Password = "hunter2"
	require.NoError(t, m.UpdateShare(ctx, s.ID, updated))

	_, err = kc.Retrieve(ctx, oldItem)
	assert.True(t, errors.HasCode(err, errors.KeychainItemNotFound),
		"old username's credential should be gone")

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	pw, err := kc.Retrieve(ctx, got.KeychainItem())
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
}

func TestNarrowSettersIgnoreUnknownID(t *testing.T) {
	m, _, _ := setupTestManager(t, nil)

	m.UpdateMountStatus("ghost", StatusMounted)
	m.UpdateMountPoint("ghost", "Projects")
	m.UpdateActualMountPoint("ghost", "/tmp/x")
	assert.Empty(t, m.List())
}

func TestTryBeginMountGuard(t *testing.T) {
	m, _, _ := setupTestManager(t, nil)
	ctx := context.Background()

	s, err := m.AddShare(ctx, Share{NetworkShare: "smb://fs.example.com/docs"})
	require.NoError(t, err)

	assert.True(t, m.TryBeginMount(s.ID))
	got, _ := m.Get(s.ID)
	assert.Equal(t, StatusQueued, got.MountStatus)

	// A second claim while queued must lose.
	assert.False(t, m.TryBeginMount(s.ID))

	m.UpdateMountStatus(s.ID, StatusErrorOnMount)
	assert.False(t, m.TryBeginMount(s.ID), "errorOnMount shares are skipped")

	assert.False(t, m.TryBeginMount("ghost"))
}

func TestResetQueuedOnlyAffectsQueuedShares(t *testing.T) {
	m, _, _ := setupTestManager(t, nil)
	ctx := context.Background()

	s, err := m.AddShare(ctx, Share{NetworkShare: "smb://fs.example.com/docs"})
	require.NoError(t, err)

	require.True(t, m.TryBeginMount(s.ID))
	m.ResetQueued(s.ID, StatusUnmounted)
	got, _ := m.Get(s.ID)
	assert.Equal(t, StatusUnmounted, got.MountStatus)

	m.UpdateMountStatus(s.ID, StatusMounted)
	m.ResetQueued(s.ID, StatusUnmounted)
	got, _ = m.Get(s.ID)
	assert.Equal(t, StatusMounted, got.MountStatus, "non-queued shares are untouched")
}

func TestBulkSetStatus(t *testing.T) {
	m, _, _ := setupTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		host := fmt.Sprintf("fs%d.example.com", i)
		_, err := m.AddShare(ctx, Share{NetworkShare: testutil.GenerateShareURL(host)})
		require.NoError(t, err)
	}
	require.Len(t, m.List(), 4)

	m.BulkSetStatus(StatusUndefined)
	for _, s := range m.List() {
		assert.Equal(t, StatusUndefined, s.MountStatus)
	}
}

func TestUpdateShareArrayReconciliation(t *testing.T) {
	provider := &staticProvider{
		managed: []Record{
			{NetworkShare: "smb://fs.example.com/projects"},
			{NetworkShare: "smb://fs.example.com/scans", MountPoint: "Scans"},
		},
		managedOK: true,
	}
	m, _, _ := setupTestManager(t, provider)
	ctx := context.Background()

	m.UpdateShareArray(ctx)
	shares := m.List()
	require.Len(t, shares, 2)
	for _, s := range shares {
		assert.True(t, s.Managed)
	}

	// Second pass with identical policy must not duplicate or churn.
	before := m.List()
	m.UpdateShareArray(ctx)
	after := m.List()
	require.Len(t, after, 2)
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID, "reconciliation must preserve share identity")
	}

	// Policy drops one share and changes a field on the other.
	provider.managed = []Record{
		{NetworkShare: "smb://fs.example.com/projects", DisplayName: "Projects"},
	}
	m.UpdateShareArray(ctx)
	shares = m.List()
	require.Len(t, shares, 1)
	assert.Equal(t, "smb://fs.example.com/projects", shares[0].NetworkShare)
	assert.Equal(t, "Projects", shares[0].DisplayName)
	assert.Equal(t, before[0].ID, shares[0].ID)
}

func TestUpdateShareArrayPreservesRuntimeState(t *testing.T) {
	provider := &staticProvider{
		managed:   []Record{{NetworkShare: "smb://fs.example.com/projects"}},
		managedOK: true,
	}
	m, _, _ := setupTestManager(t, provider)
	ctx := context.Background()

	m.UpdateShareArray(ctx)
	s := m.List()[0]
	m.UpdateMountStatus(s.ID, StatusMounted)
	m.UpdateActualMountPoint(s.ID, "/Users/testuser/Network Shares/projects")

	provider.managed = []Record{{NetworkShare: "smb://fs.example.com/projects", DisplayName: "P"}}
	m.UpdateShareArray(ctx)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, StatusMounted, got.MountStatus)
	assert.Equal(t, "/Users/testuser/Network Shares/projects", got.ActualMountPoint)
	assert.Equal(t, "P", got.DisplayName)
}

func TestUpdateShareArrayNeverTouchesUserShares(t *testing.T) {
	provider := &staticProvider{managedOK: true}
	m, _, _ := setupTestManager(t, provider)
	ctx := context.Background()

	s, err := m.AddShare(ctx, Share{NetworkShare: "smb://nas.example.com/music"})
	require.NoError(t, err)

	m.UpdateShareArray(ctx)
	got, ok := m.Get(s.ID)
	require.True(t, ok, "user share must survive an empty policy")
	assert.False(t, got.Managed)
}

func TestUpdateShareArrayLegacyPrecedence(t *testing.T) {
	provider := &staticProvider{
		managed:       []Record{{NetworkShare: "smb://fs.example.com/new"}},
		legacyManaged: []string{"smb://fs.example.com/old"},
		managedOK:     true,
	}
	m, _, _ := setupTestManager(t, provider)
	ctx := context.Background()

	m.UpdateShareArray(ctx)
	shares := m.List()
	require.Len(t, shares, 1, "new format wins, lists are never merged")
	assert.Equal(t, "smb://fs.example.com/new", shares[0].NetworkShare)

	provider.managed = nil
	m.UpdateShareArray(ctx)
	shares = m.List()
	require.Len(t, shares, 1)
	assert.Equal(t, "smb://fs.example.com/old", shares[0].NetworkShare)
}

func TestEmptyManagedRecordsFallBackToLegacy(t *testing.T) {
	provider := &staticProvider{
		managed:       []Record{},
		legacyManaged: []string{"smb://fs.example.com/old"},
		managedOK:     true,
	}
	m, _, _ := setupTestManager(t, provider)

	m.UpdateShareArray(context.Background())

	shares := m.List()
	require.Len(t, shares, 1, "an empty new-format list behaves like an absent one")
	assert.Equal(t, "smb://fs.example.com/old", shares[0].NetworkShare)
}

func TestUpdateShareArraySkipsMalformedRecords(t *testing.T) {
	provider := &staticProvider{
		managed: []Record{
			{NetworkShare: "this is not a url"},
			{NetworkShare: "smb://fs.example.com/good"},
		},
		managedOK: true,
	}
	m, _, _ := setupTestManager(t, provider)

	m.UpdateShareArray(context.Background())
	shares := m.List()
	require.Len(t, shares, 1)
	assert.Equal(t, "smb://fs.example.com/good", shares[0].NetworkShare)
}

func TestUpdateShareArrayHomeShare(t *testing.T) {
	provider := &staticProvider{
		managedOK: true,
		home:      "smb://home.example.com/users/%USERNAME%",
	}
	m, _, _ := setupTestManager(t, provider)
	ctx := context.Background()

	m.UpdateShareArray(ctx)
	shares := m.List()
	require.Len(t, shares, 1)
	assert.Equal(t, "smb://home.example.com/users/testuser", shares[0].NetworkShare)

	// A transient lookup failure must not tear the home share down.
	provider.home = ""
	m.UpdateShareArray(ctx)
	assert.Len(t, m.List(), 1)
}

func TestPasswordShareWithoutCredentialIsMissingPassword(t *testing.T) {
	provider := &staticProvider{
		managed: []Record{{
			NetworkShare: "smb://fs.example.com/secure",
			AuthType:     string(AuthTypePassword),
			Username:     "alice",
		}},
		managedOK: true,
	}
	kc := keychain.NewMemoryStore()
	bus := events.NewBus(createTestLogger(t))
	defer bus.Close()
	m := NewManager(createTestLogger(t), provider, &memoryUserStore{}, kc, nil, bus, "testuser")

	m.UpdateShareArray(context.Background())
	shares := m.List()
	require.Len(t, shares, 1)
	assert.Equal(t, StatusMissingPassword, shares[0].MountStatus)

	recent := bus.Recent()
	require.NotEmpty(t, recent)
	assert.Equal(t, events.EventNeedsAttention, recent[0].Type)
}

func TestSaveModifiedShareConfigsExcludesManagedAndPasswords(t *testing.T) {
	provider := &staticProvider{
		managed:   []Record{{NetworkShare: "smb://fs.example.com/managed"}},
		managedOK: true,
	}
	m, _, store := setupTestManager(t, provider)
	ctx := context.Background()

	m.UpdateShareArray(ctx)
	_, err := m.AddShare(ctx, Share{
		NetworkShare: "smb://nas.example.com/music",
		AuthType:     AuthTypePassword,
		Username:     "alice",
		Password:     "s3cret",
	})
	require.NoError(t, err)

	require.NotEmpty(t, store.saved)
	last := store.saved[len(store.saved)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "smb://nas.example.com/music", last[0].NetworkShare)
}

func TestLoadUserSharesFromFileProvider(t *testing.T) {
	dir := t.TempDir()
	userPath := filepath.Join(dir, "shares.yml")
	content := "shares:\n" +
		"  - networkShare: smb://nas.example.com/music\n" +
		"    authType: krb\n" +
		"legacyShares:\n" +
		"  - smb://ignored.example.com/old\n"
	require.NoError(t, os.WriteFile(userPath, []byte(content), 0600))

	l := createTestLogger(t)
	provider := NewFileProvider(l, filepath.Join(dir, "absent.yml"), userPath, nil)
	m := NewManager(l, provider, provider, keychain.NewMemoryStore(), nil, nil, "testuser")

	m.LoadUserShares(context.Background())
	shares := m.List()
	require.Len(t, shares, 1, "new format wins over legacy entries")
	assert.Equal(t, "smb://nas.example.com/music", shares[0].NetworkShare)
	assert.False(t, shares[0].Managed)
}
