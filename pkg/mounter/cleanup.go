// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package mounter

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moorfs/moored/pkg/errors"
)

// prepareMountPoint makes sure the mount directory exists and is usable.
// A plain file obstructing the path is removed. Returns whether the
// directory was created by this call, so failure paths know whether to
// clean it up again.
func (m *Mounter) prepareMountPoint(ctx context.Context, path string) (bool, error) {
	info, err := os.Lstat(path)
	if err == nil {
		if info.IsDir() {
			return false, nil
		}
		// Something like a stale file or dangling symlink sits where
		// the mount directory belongs.
		if err := os.Remove(path); err != nil {
			return false, errors.Wrap(err, errors.DirectoryRemoveFailed).
				WithMetadata("path", path)
		}
		m.logger.Debug("removed obstruction at mount point", "path", path)
	} else if !os.IsNotExist(err) {
		return false, errors.Wrap(err, errors.DirectoryResolveFailed).
			WithMetadata("path", path)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return false, errors.Wrap(err, errors.DirectoryRemoveFailed).
			WithMetadata("path", path)
	}
	return true, nil
}

// cleanupMountPoint removes a mount directory we no longer need.
// Refusals from the directory manager are expected (the directory may
// have become a live mount) and only logged.
func (m *Mounter) cleanupMountPoint(ctx context.Context, path string) {
	if m.dirs == nil {
		return
	}
	if err := m.dirs.SafeRemove(ctx, path); err != nil {
		m.logger.Debug("mount directory not removed", "path", path, "error", err)
	}
}

// CleanupStrayDirectories sweeps the mount root for duplicate mount
// directories. When a mount attempt races an existing mount the OS
// creates "<name>-1", "<name>-2", ... next to the real mount point. A
// directory only counts as a stray when the name before the suffix is a
// configured share's mount directory and the path is not a share's own
// live mount point: a share legitimately named "<name>-<n>" is never a
// stray of itself. Strays still mounted are unmounted first. Noise
// files dropped into the mount root and into its unmounted child
// directories are swept too. The numeric suffix scan is bounded so a
// hostile directory listing can't stall the sweep.
func (m *Mounter) CleanupStrayDirectories(ctx context.Context) {
	entries, err := os.ReadDir(m.opts.MountRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to scan mount root", "root", m.opts.MountRoot, "error", err)
		}
		return
	}

	shareDirs := map[string]bool{}
	ownMounts := map[string]bool{}
	for _, s := range m.shares.List() {
		shareDirs[s.MountDirName()] = true
		if s.ActualMountPoint != "" {
			ownMounts[filepath.Clean(s.ActualMountPoint)] = true
		}
	}

	for _, e := range entries {
		if !e.IsDir() {
			if noiseFiles[e.Name()] {
				os.Remove(filepath.Join(m.opts.MountRoot, e.Name()))
			}
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(m.opts.MountRoot, e.Name())
		if !m.isStrayCandidate(e.Name(), path, shareDirs, ownMounts) {
			m.sweepChildNoiseFiles(ctx, path)
			continue
		}
		if m.isLiveNetworkMount(ctx, path) {
			if err := m.caller.Unmount(ctx, path); err != nil {
				m.logger.Warn("stray mount not unmounted", "path", path, "error", err)
				continue
			}
			m.logger.Info("unmounted stray duplicate mount", "path", path)
		}
		if err := m.dirs.SafeRemove(ctx, path); err != nil {
			m.logger.Debug("stray directory not removed", "path", path, "error", err)
		}
	}
}

// isStrayCandidate reports whether a mount-root entry looks like an
// OS-created numbered duplicate of a configured share's directory. The
// share's own directory and mount point never qualify.
func (m *Mounter) isStrayCandidate(name, path string, shareDirs, ownMounts map[string]bool) bool {
	base, ok := mountDirBase(name)
	if !ok || !shareDirs[base] {
		return false
	}
	n, err := strconv.Atoi(name[len(base)+1:])
	if err != nil || n < 1 || n > m.opts.StrayScanLimit {
		return false
	}
	return !shareDirs[name] && !ownMounts[filepath.Clean(path)]
}

// sweepChildNoiseFiles removes Finder droppings from an immediate child
// of the mount root. Live mounts are skipped since their contents belong
// to the remote share.
func (m *Mounter) sweepChildNoiseFiles(ctx context.Context, path string) {
	if m.isLiveNetworkMount(ctx, path) {
		return
	}
	for name := range noiseFiles {
		os.Remove(filepath.Join(path, name))
	}
}

// isLiveNetworkMount reports whether path is currently a mounted network
// volume. Only network mounts qualify: a stray that turns out to be a
// local mount is left alone entirely.
func (m *Mounter) isLiveNetworkMount(ctx context.Context, path string) bool {
	entries, err := m.caller.Mounts(ctx)
	if err != nil {
		return false
	}
	clean := filepath.Clean(path)
	for _, e := range entries {
		if e.IsNetworkFS() && filepath.Clean(e.Path) == clean {
			return true
		}
	}
	return false
}
