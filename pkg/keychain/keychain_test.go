// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package keychain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moorfs/moored/pkg/errors"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	item := Item{Server: "fs.example.com", Path: "projects", Username: "alice", Protocol: "smb"}

	require.NoError(t, store.Save(ctx, item, "s3cret"))
	require.True(t, store.Has(item))

	pw, err := store.Retrieve(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	require.NoError(t, store.Remove(ctx, item))
	assert.False(t, store.Has(item))
}

func TestMemoryStoreSaveOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	item := Item{Server: "fs.example.com", Path: "projects", Username: "alice", Protocol: "smb"}

	require.NoError(t, store.Save(ctx, item, "old"))
	require.NoError(t, store.Save(ctx, item, "new"))

	pw, err := store.Retrieve(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "new", pw)
}

func TestMemoryStoreMissingItem(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	item := Item{Server: "fs.example.com", Path: "projects", Username: "alice", Protocol: "smb"}

	_, err := store.Retrieve(ctx, item)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.KeychainItemNotFound))

	err = store.Remove(ctx, item)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.KeychainItemNotFound))
}

func TestMemoryStoreItemsAreDistinct(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	alice := Item{Server: "fs.example.com", Path: "projects", Username: "alice", Protocol: "smb"}
	bob := Item{Server: "fs.example.com", Path: "projects", Username: "bob", Protocol: "smb"}

	require.NoError(t, store.Save(ctx, alice, "a"))
	require.NoError(t, store.Save(ctx, bob, "b"))

	pw, err := store.Retrieve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "a", pw)

	require.NoError(t, store.Remove(ctx, alice))
	assert.True(t, store.Has(bob))
}

func TestProtocolCode(t *testing.T) {
	tests := []struct {
		protocol string
		want     string
	}{
		{"smb", "smb "},
		{"SMB", "smb "},
		{"afp", "afp "},
		{"cifs", "cifs"},
		{"", "smb "},
		{"webdav", "smb "},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, protocolCode(tc.protocol), "protocol %q", tc.protocol)
	}
}
