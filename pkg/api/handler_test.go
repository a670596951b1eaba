// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moorfs/moored/internal/events"
	"github.com/moorfs/moored/pkg/accounts"
	"github.com/moorfs/moored/pkg/activity"
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

type emptyProvider struct{}

func (emptyProvider) ManagedList() ([]share.Record, []string, bool) { return nil, nil, false }
func (emptyProvider) UserList() ([]share.Record, []string, bool)    { return nil, nil, false }
func (emptyProvider) HomeShareURL() string                          { return "" }

type handlerFixture struct {
	engine *gin.Engine
	shares *share.Manager
	caller *netfs.FakeCaller
	bus    *events.Bus
}

func setupTestHandler(t *testing.T) *handlerFixture {
	gin.SetMode(gin.TestMode)
	l := createTestLogger(t)

	bus := events.NewBus(l)
	t.Cleanup(bus.Close)

	caller := &netfs.FakeCaller{}
	shares := share.NewManager(l, emptyProvider{}, nil,
		keychain.NewMemoryStore(), nil, bus, "testuser")

	dirs := mounter.NewDirectoryManager(l, caller.Mounts)
	m := mounter.NewMounter(l, shares, caller, dirs, nil, bus, mounter.Options{
		MountRoot: filepath.Join(t.TempDir(), "Network Shares"),
	})

	control, err := activity.NewController(l, shares, m, nil, time.Hour)
	require.NoError(t, err)

	profiles := accounts.NewManager(l, []accounts.Profile{
		{ID: "corp", Name: "Corporate", Username: "testuser", Realm: "example.com"},
	})

	handler := NewShareHandler(shares, control, profiles, bus, l)
	engine := gin.New()
	handler.RegisterRoutes(engine.Group("/api/v1/moored"))

	return &handlerFixture{engine: engine, shares: shares, caller: caller, bus: bus}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/v1/moored"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestListSharesEmpty(t *testing.T) {
	f := setupTestHandler(t)

	w, resp := f.do(t, http.MethodGet, "/shares", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestAddAndGetShare(t *testing.T) {
	f := setupTestHandler(t)

	w, resp := f.do(t, http.MethodPost, "/shares", ShareRequest{
		NetworkShare: "smb://fs.example.com/projects",
		DisplayName:  "Projects",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, resp.Success)

	var created share.Share
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "smb://fs.example.com/projects", created.NetworkShare)

	w, resp = f.do(t, http.MethodGet, "/shares/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestAddShareMissingURL(t *testing.T) {
	f := setupTestHandler(t)

	w, resp := f.do(t, http.MethodPost, "/shares", ShareRequest{DisplayName: "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SHARES", resp.Error.Domain)
}

func TestAddShareDuplicateConflict(t *testing.T) {
	f := setupTestHandler(t)

	req := ShareRequest{NetworkShare: "smb://fs.example.com/projects"}
	w, _ := f.do(t, http.MethodPost, "/shares", req)
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := f.do(t, http.MethodPost, "/shares", req)
	require.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, resp.Error)
}

func TestGetShareNotFound(t *testing.T) {
	f := setupTestHandler(t)

	w, resp := f.do(t, http.MethodGet, "/shares/no-such-id", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
}

func TestUpdateShare(t *testing.T) {
	f := setupTestHandler(t)

	_, resp := f.do(t, http.MethodPost, "/shares", ShareRequest{
		NetworkShare: "smb://fs.example.com/projects",
	})
	var created share.Share
	data, _ := json.Marshal(resp.Result)
	require.NoError(t, json.Unmarshal(data, &created))

	w, resp := f.do(t, http.MethodPut, "/shares/"+created.ID, ShareRequest{
		NetworkShare: "smb://fs.example.com/projects",
		DisplayName:  "Projects (renamed)",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	s, ok := f.shares.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Projects (renamed)", s.DisplayName)
}

func TestRemoveShareIsIdempotent(t *testing.T) {
	f := setupTestHandler(t)

	_, resp := f.do(t, http.MethodPost, "/shares", ShareRequest{
		NetworkShare: "smb://fs.example.com/projects",
	})
	var created share.Share
	data, _ := json.Marshal(resp.Result)
	require.NoError(t, json.Unmarshal(data, &created))

	w, _ := f.do(t, http.MethodDelete, "/shares/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.shares.List())

	// Removing an unknown id succeeds silently.
	w, resp = f.do(t, http.MethodDelete, "/shares/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestMountAndUnmountEndpoints(t *testing.T) {
	f := setupTestHandler(t)

	_, _ = f.do(t, http.MethodPost, "/shares", ShareRequest{
		NetworkShare: "smb://fs.example.com/projects",
	})

	w, resp := f.do(t, http.MethodPost, "/mount", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)
	require.Len(t, f.caller.MountCalls, 1)

	list := f.shares.List()
	require.Len(t, list, 1)
	assert.Equal(t, share.StatusMounted, list[0].MountStatus)

	w, _ = f.do(t, http.MethodPost, "/unmount", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.caller.UnmountCalls, 1)
	assert.Equal(t, share.StatusUnmounted, f.shares.List()[0].MountStatus)
}

func TestMountSingleShare(t *testing.T) {
	f := setupTestHandler(t)

	_, resp := f.do(t, http.MethodPost, "/shares", ShareRequest{
		NetworkShare: "smb://fs.example.com/projects",
	})
	var created share.Share
	data, _ := json.Marshal(resp.Result)
	require.NoError(t, json.Unmarshal(data, &created))

	w, resp := f.do(t, http.MethodPost, "/shares/"+created.ID+"/mount", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)
	require.Len(t, f.caller.MountCalls, 1)

	var mounted share.Share
	data, _ = json.Marshal(resp.Result)
	require.NoError(t, json.Unmarshal(data, &mounted))
	assert.Equal(t, share.StatusMounted, mounted.MountStatus)

	w, resp = f.do(t, http.MethodPost, "/shares/"+created.ID+"/unmount", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.caller.UnmountCalls, 1)

	var unmounted share.Share
	data, _ = json.Marshal(resp.Result)
	require.NoError(t, json.Unmarshal(data, &unmounted))
	assert.Equal(t, share.StatusUnmounted, unmounted.MountStatus)
}

func TestMountUnknownShare(t *testing.T) {
	f := setupTestHandler(t)

	w, resp := f.do(t, http.MethodPost, "/shares/no-such-id/mount", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.False(t, resp.Success)
}

func TestListProfiles(t *testing.T) {
	f := setupTestHandler(t)

	w, resp := f.do(t, http.MethodGet, "/profiles", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	var profiles []accounts.Profile
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &profiles))
	require.Len(t, profiles, 1)
	assert.Equal(t, "corp", profiles[0].ID)
}

func TestListEvents(t *testing.T) {
	f := setupTestHandler(t)

	f.bus.Emit(events.Event{Type: events.EventNetworkChanged, Message: "link up"})

	w, resp := f.do(t, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	var evts []events.Event
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &evts))
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventNetworkChanged, evts[0].Type)
}
