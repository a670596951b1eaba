// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package accounts

import (
	"context"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/share"
)

func createTestLogger(t *testing.T) logger.Logger {
	testLogger, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	return testLogger
}

func TestAutoAssignByRealm(t *testing.T) {
	m := NewManager(createTestLogger(t), []Profile{
		{ID: "corp", Username: "alice", Realm: "corp.example.com"},
		{ID: "lab", Username: "alice-lab", Realm: "lab.example.net"},
	})

	id, err := m.AutoAssign(context.Background(),
		share.Share{NetworkShare: "smb://fs.corp.example.com/projects"})
	require.NoError(t, err)
	assert.Equal(t, "corp", id)

	id, err = m.AutoAssign(context.Background(),
		share.Share{NetworkShare: "smb://lab.example.net/scans"})
	require.NoError(t, err)
	assert.Equal(t, "lab", id)
}

func TestAutoAssignNoMatchIsAmbiguous(t *testing.T) {
	m := NewManager(createTestLogger(t), []Profile{
		{ID: "corp", Realm: "corp.example.com"},
		{ID: "lab", Realm: "lab.example.net"},
	})

	_, err := m.AutoAssign(context.Background(),
		share.Share{NetworkShare: "smb://nas.home.arpa/music"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.AccountsNoUniqueProfile))
}

func TestAutoAssignSingleProfileFallback(t *testing.T) {
	m := NewManager(createTestLogger(t), []Profile{
		{ID: "only", Realm: "corp.example.com"},
	})

	id, err := m.AutoAssign(context.Background(),
		share.Share{NetworkShare: "smb://nas.home.arpa/music"})
	require.NoError(t, err)
	assert.Equal(t, "only", id)
}

func TestAutoAssignMultipleMatchesIsAmbiguous(t *testing.T) {
	m := NewManager(createTestLogger(t), []Profile{
		{ID: "a", Realm: "example.com"},
		{ID: "b", Realm: "corp.example.com"},
	})

	_, err := m.AutoAssign(context.Background(),
		share.Share{NetworkShare: "smb://fs.corp.example.com/projects"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.AccountsNoUniqueProfile))
}

func TestGetProfile(t *testing.T) {
	m := NewManager(createTestLogger(t), []Profile{{ID: "corp", Name: "Corp"}})

	p, err := m.Get("corp")
	require.NoError(t, err)
	assert.Equal(t, "Corp", p.Name)

	_, err = m.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.AccountsProfileNotFound))
}

func TestUNCToURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`\\filer.corp.example.com\homes\alice`, "smb://filer.corp.example.com/homes/alice"},
		{`\\filer\homes`, "smb://filer/homes"},
		{"smb://filer/homes/alice", "smb://filer/homes/alice"},
		{`\\filer`, ""},
		{"", ""},
		{"/local/path", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UNCToURL(tt.in), "input %q", tt.in)
	}
}
