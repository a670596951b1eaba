// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package keychain stores per-share credentials in the user's keychain,
// keyed by (server host, share path, username, protocol). The share
// collection never persists passwords anywhere else.
package keychain

import (
	"context"
	"strings"
	"sync"

	"github.com/stratastor/logger"

	"github.com/moorfs/moored/internal/command"
	"github.com/moorfs/moored/pkg/errors"
)

// Item identifies one credential entry.
type Item struct {
	Server   string // host component of the share URL
	Path     string // share path component, no leading slash
	Username string
	Protocol string // "smb", "afp", "cifs"
}

// Store is the credential-store contract the share manager depends on.
// Implementations must tolerate concurrent access for distinct items;
// remove-then-add for the same item is sequenced by the caller.
type Store interface {
	Save(ctx context.Context, item Item, password string) error
	Retrieve(ctx context.Context, item Item) (string, error)
	Remove(ctx context.Context, item Item) error
}

const securityBin = "/usr/bin/security"

// protocolCode maps a URL scheme to the four-character keychain protocol
// attribute the security tool expects.
func protocolCode(protocol string) string {
	switch strings.ToLower(protocol) {
	case "afp":
		return "afp "
	case "cifs":
		return "cifs"
	default:
		return "smb "
	}
}

// ExecStore drives the macOS security(1) tool. All errors are reported
// as coded errors; callers log and continue, a share can live without a
// keychain entry.
type ExecStore struct {
	logger logger.Logger
}

// NewExecStore creates a keychain store backed by the security tool.
func NewExecStore(l logger.Logger) *ExecStore {
	return &ExecStore{logger: l}
}

func (s *ExecStore) Save(ctx context.Context, item Item, password string) error {
	// -U updates an existing item in place instead of failing on duplicates.
	_, err := command.ExecCommand(ctx, s.logger, securityBin,
		"add-internet-password",
		"-a", item.Username,
		"-s", item.Server,
		"-p", "/"+strings.TrimPrefix(item.Path, "/"),
		"-r", protocolCode(item.Protocol),
		"-l", item.Server,
		"-w", password,
		"-U")
	if err != nil {
		return errors.Wrap(err, errors.KeychainSaveFailed).
			WithMetadata("server", item.Server).
			WithMetadata("username", item.Username)
	}
	return nil
}

func (s *ExecStore) Retrieve(ctx context.Context, item Item) (string, error) {
	out, err := command.ExecCommand(ctx, s.logger, securityBin,
		"find-internet-password",
		"-a", item.Username,
		"-s", item.Server,
		"-p", "/"+strings.TrimPrefix(item.Path, "/"),
		"-r", protocolCode(item.Protocol),
		"-w")
	if err != nil {
		// Exit code 44 is errSecItemNotFound.
		if command.ExitCode(err) == 44 {
			return "", errors.New(errors.KeychainItemNotFound, item.Server).
				WithMetadata("username", item.Username)
		}
		return "", errors.Wrap(err, errors.KeychainReadFailed).
			WithMetadata("server", item.Server).
			WithMetadata("username", item.Username)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func (s *ExecStore) Remove(ctx context.Context, item Item) error {
	_, err := command.ExecCommand(ctx, s.logger, securityBin,
		"delete-internet-password",
		"-a", item.Username,
		"-s", item.Server,
		"-r", protocolCode(item.Protocol))
	if err != nil {
		if command.ExitCode(err) == 44 {
			return errors.New(errors.KeychainItemNotFound, item.Server).
				WithMetadata("username", item.Username)
		}
		return errors.Wrap(err, errors.KeychainRemoveFailed).
			WithMetadata("server", item.Server).
			WithMetadata("username", item.Username)
	}
	return nil
}

// MemoryStore is an in-process Store for tests and for platforms
// without a keychain tool.
type MemoryStore struct {
	mu    sync.Mutex
	items map[Item]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Item]string)}
}

func (s *MemoryStore) Save(ctx context.Context, item Item, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item] = password
	return nil
}

func (s *MemoryStore) Retrieve(ctx context.Context, item Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pw, ok := s.items[item]
	if !ok {
		return "", errors.New(errors.KeychainItemNotFound, item.Server).
			WithMetadata("username", item.Username)
	}
	return pw, nil
}

func (s *MemoryStore) Remove(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item]; !ok {
		return errors.New(errors.KeychainItemNotFound, item.Server)
	}
	delete(s.items, item)
	return nil
}

// Has reports whether an item exists. Test helper.
func (s *MemoryStore) Has(item Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[item]
	return ok
}
