// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package netfs

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want Outcome
	}{
		{0, OutcomeSuccess},
		{17, OutcomeAlreadyMounted},
		{2, OutcomeNoSuchShare},
		{19, OutcomeNoSuchShare},
		{-6003, OutcomeNoSuchShare},
		{13, OutcomeAuthFailed},
		{80, OutcomeAuthFailed},
		{81, OutcomeAuthFailed},
		{50, OutcomeHostDown},
		{51, OutcomeHostDown},
		{60, OutcomeHostDown},
		{61, OutcomeHostDown},
		{64, OutcomeHostDown},
		{65, OutcomeHostDown},
		{999, OutcomeUnknown},
		{-1, OutcomeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.code), "code %d", tt.code)
	}
}

func TestParseMountTable(t *testing.T) {
	out := `/dev/disk3s1 on / (apfs, sealed, local, read-only, journaled)
//alice@fs.example.com/projects on /Users/alice/Network Shares/projects (smbfs, nodev, nosuid, mounted by alice)
//bob@nas.example.com/music on /Users/alice/Network Shares/music (afpfs, nobrowse)
map auto_home on /System/Volumes/Data/home (autofs, automounted)
garbage line without separators`

	entries := ParseMountTable(out)
	require.Len(t, entries, 4)

	assert.Equal(t, "//alice@fs.example.com/projects", entries[1].Device)
	assert.Equal(t, "/Users/alice/Network Shares/projects", entries[1].Path)
	assert.Equal(t, "smbfs", entries[1].FSType)
	assert.True(t, entries[1].IsNetworkFS())

	assert.Equal(t, "afpfs", entries[2].FSType)
	assert.True(t, entries[2].IsNetworkFS())

	assert.False(t, entries[0].IsNetworkFS())
	assert.False(t, entries[3].IsNetworkFS())
}

func TestSameLocation(t *testing.T) {
	tests := []struct {
		device, location string
		want             bool
	}{
		{"//alice@fs.example.com/projects", "//fs.example.com/projects", true},
		{"//FS.EXAMPLE.COM/projects", "//fs.example.com/projects", true},
		{"//fs.example.com/projects/", "//fs.example.com/projects", true},
		{"//fs.example.com/projects", "//fs.example.com/other", false},
		{"//fs.example.com/Projects", "//fs.example.com/projects", false},
		{"//other.example.com/projects", "//fs.example.com/projects", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SameLocation(tt.device, tt.location),
			"%s vs %s", tt.device, tt.location)
	}
}

func TestFormatShareLocation(t *testing.T) {
	u, err := url.Parse("smb://fs.example.com/our%20projects")
	require.NoError(t, err)
	assert.Equal(t, "//fs.example.com/our%20projects", FormatShareLocation(u))
}

func TestDefaultPort(t *testing.T) {
	assert.Equal(t, 445, DefaultPort("smb"))
	assert.Equal(t, 445, DefaultPort("cifs"))
	assert.Equal(t, 548, DefaultPort("afp"))
	assert.Equal(t, 548, DefaultPort("AFP"))
}

func TestFakeCallerRecordsCalls(t *testing.T) {
	f := &FakeCaller{}
	u, _ := url.Parse("smb://fs.example.com/projects")

	code, err := f.Mount(t.Context(), MountRequest{URL: u, MountPoint: "/tmp/projects"})
	require.NoError(t, err)
	assert.Zero(t, code)
	require.Len(t, f.MountCalls, 1)

	require.NoError(t, f.Unmount(t.Context(), "/tmp/projects"))
	assert.Equal(t, []string{"/tmp/projects"}, f.UnmountCalls)
}
