// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moorfs/moored/pkg/keychain"
	"github.com/moorfs/moored/pkg/mounter"
	"github.com/moorfs/moored/pkg/netfs"
	"github.com/moorfs/moored/pkg/share"
)

func createTestLogger(t *testing.T) logger.Logger {
	testLogger, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)
	return testLogger
}

type policyProvider struct {
	records []share.Record
}

func (p *policyProvider) ManagedList() ([]share.Record, []string, bool) {
	return p.records, nil, true
}
func (p *policyProvider) UserList() ([]share.Record, []string, bool) { return nil, nil, false }
func (p *policyProvider) HomeShareURL() string                       { return "" }

func setupController(t *testing.T, records ...share.Record) (*Controller, *netfs.FakeCaller, *share.Manager) {
	l := createTestLogger(t)
	caller := &netfs.FakeCaller{}
	shares := share.NewManager(l, &policyProvider{records: records}, nil,
		keychain.NewMemoryStore(), nil, nil, "testuser")

	dirs := mounter.NewDirectoryManager(l, caller.Mounts)
	m := mounter.NewMounter(l, shares, caller, dirs, nil, nil, mounter.Options{
		MountRoot: filepath.Join(t.TempDir(), "Network Shares"),
	})

	c, err := NewController(l, shares, m, nil, time.Hour)
	require.NoError(t, err)
	return c, caller, shares
}

func TestStartRunsInitialPass(t *testing.T) {
	c, caller, shares := setupController(t,
		share.Record{NetworkShare: "smb://fs.example.com/projects"})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx, false)

	require.Len(t, caller.MountCalls, 1, "startup runs a reconcile-and-mount pass")
	list := shares.List()
	require.Len(t, list, 1)
	assert.Equal(t, share.StatusMounted, list[0].MountStatus)
}

func TestTriggerUnmount(t *testing.T) {
	c, caller, shares := setupController(t,
		share.Record{NetworkShare: "smb://fs.example.com/projects"})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx, false)

	c.TriggerUnmount(ctx)
	require.Len(t, caller.UnmountCalls, 1)
	list := shares.List()
	assert.Equal(t, share.StatusUnmounted, list[0].MountStatus)
}

func TestTriggerMountRemountsAfterUnmount(t *testing.T) {
	c, caller, _ := setupController(t,
		share.Record{NetworkShare: "smb://fs.example.com/projects"})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx, false)

	c.TriggerUnmount(ctx)
	c.TriggerMount(ctx)
	assert.Len(t, caller.MountCalls, 2)
}

func TestStopIsIdempotent(t *testing.T) {
	c, _, _ := setupController(t)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	c.Stop(ctx, false)
	c.Stop(ctx, false)
}
