// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package mounter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stratastor/logger"

	"github.com/moorfs/moored/internal/constants"
	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/netfs"
)

// noiseFiles are entries that don't count towards a directory being
// non-empty. Finder and the automounter drop these into otherwise
// empty mount directories.
var noiseFiles = map[string]bool{
	".DS_Store":        true,
	".autodiskmounted": true,
	".localized":       true,
}

// MountTableFunc returns the current mount table. Injected so tests can
// run without a live system.
type MountTableFunc func(ctx context.Context) ([]netfs.Entry, error)

// DirectoryManager removes leftover mount directories. Removal is
// deliberately conservative: a directory is only deleted when it is
// provably an empty, unprotected, plain directory, and every check runs
// again right before the delete. All removals are serialized.
type DirectoryManager struct {
	logger logger.Logger
	mu     sync.Mutex
	mounts MountTableFunc
}

func NewDirectoryManager(l logger.Logger, mounts MountTableFunc) *DirectoryManager {
	return &DirectoryManager{logger: l, mounts: mounts}
}

// SafeRemove deletes the directory at path if and only if it is safe to
// do so. Returns nil both when the directory was removed and when it
// vanished underneath us; every refusal returns a coded error.
func (d *DirectoryManager) SafeRemove(ctx context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if underSystemMountRoot(path) {
		return errors.New(errors.DirectoryProtected, path)
	}

	// Resolve symlinks so all later checks see the real target.
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.DirectoryResolveFailed).
			WithMetadata("path", path)
	}

	if underSystemMountRoot(resolved) {
		return errors.New(errors.DirectoryProtected, resolved)
	}

	info, err := os.Lstat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.DirectoryResolveFailed).
			WithMetadata("path", resolved)
	}
	if !info.IsDir() {
		return errors.New(errors.DirectoryRemoveFailed, resolved).
			WithMetadata("reason", "not a directory")
	}

	if err := d.checkProtected(ctx, resolved, info); err != nil {
		return err
	}

	empty, noise, err := scanEmptiness(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.DirectoryRemoveFailed).
			WithMetadata("path", resolved)
	}
	if !empty {
		return errors.New(errors.DirectoryNotEmpty, resolved)
	}

	// The directory may have become a mount point between the scan and
	// now. Check again immediately before deleting anything.
	info, err = os.Lstat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.DirectoryResolveFailed).
			WithMetadata("path", resolved)
	}
	if err := d.checkProtected(ctx, resolved, info); err != nil {
		return err
	}

	for _, name := range noise {
		if err := os.Remove(filepath.Join(resolved, name)); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, errors.DirectoryRemoveFailed).
				WithMetadata("path", filepath.Join(resolved, name))
		}
	}

	if err := os.Remove(resolved); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, errors.DirectoryRemoveFailed).
			WithMetadata("path", resolved)
	}

	d.logger.Debug("removed leftover mount directory", "path", resolved)
	return nil
}

// underSystemMountRoot reports whether path is the system mount root or
// anything beneath it. Nothing under it is ever deleted: an entry there
// that doesn't look like a mount right now may be one a moment later.
func underSystemMountRoot(path string) bool {
	clean := filepath.Clean(path)
	return clean == constants.SystemMountRoot ||
		strings.HasPrefix(clean+"/", constants.SystemMountRoot+"/")
}

// checkProtected refuses directories that are themselves mount points.
// Two independent signals: the filesystem identifier differing from the
// parent's, and the path appearing as a network mount in the mount
// table. Either one protects the directory.
func (d *DirectoryManager) checkProtected(ctx context.Context, path string, info os.FileInfo) error {
	if dev, ok := deviceID(info); ok {
		parentInfo, err := os.Lstat(filepath.Dir(path))
		if err == nil {
			if parentDev, ok := deviceID(parentInfo); ok && dev != parentDev {
				return errors.New(errors.DirectoryIsMountPoint, path)
			}
		}
	}

	if d.mounts != nil {
		entries, err := d.mounts(ctx)
		if err != nil {
			// Can't prove it isn't a mount. Refuse.
			return errors.Wrap(err, errors.DirectoryIsMountPoint).
				WithMetadata("path", path)
		}
		for _, e := range entries {
			if filepath.Clean(e.Path) == filepath.Clean(path) && e.IsNetworkFS() {
				return errors.New(errors.DirectoryIsMountPoint, path)
			}
		}
	}

	return nil
}

// scanEmptiness reports whether the directory holds only noise files,
// and which noise files it holds.
func scanEmptiness(path string) (bool, []string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, nil, err
	}

	var noise []string
	for _, e := range entries {
		if noiseFiles[e.Name()] {
			noise = append(noise, e.Name())
			continue
		}
		return false, nil, nil
	}
	return true, noise, nil
}
