// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package mounter drives the actual mounting and unmounting of network
// shares. It owns no share state itself: all status lives in the share
// manager, and the mounter moves shares through the status machine as
// attempts progress.
package mounter

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stratastor/logger"

	"github.com/moorfs/moored/internal/command"
	"github.com/moorfs/moored/internal/events"
	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/netfs"
	"github.com/moorfs/moored/pkg/share"
)

// Prober answers whether a host accepts connections on a port. The
// mounter probes before invoking the OS mount so an offline server
// fails fast instead of hanging in the mount syscall.
type Prober interface {
	Reachable(ctx context.Context, host string, port int) bool
}

// Options carries the tunables the mounter needs from configuration.
type Options struct {
	// MountRoot is the directory mount points are created under,
	// already expanded.
	MountRoot string
	// StrayScanLimit bounds the "<name>-<n>" duplicate scan.
	StrayScanLimit int
	// ProbeTimeout bounds the reachability probe per host.
	ProbeTimeout time.Duration
	// NetworkUp reports whether the network monitor currently considers
	// the network usable. nil means "assume up".
	NetworkUp func() bool
}

// Mounter mounts and unmounts the managed share collection.
type Mounter struct {
	logger logger.Logger
	shares *share.Manager
	caller netfs.Caller
	dirs   *DirectoryManager
	prober Prober
	bus    *events.Bus
	opts   Options
}

func NewMounter(
	l logger.Logger,
	shares *share.Manager,
	caller netfs.Caller,
	dirs *DirectoryManager,
	prober Prober,
	bus *events.Bus,
	opts Options,
) *Mounter {
	if opts.StrayScanLimit <= 0 {
		opts.StrayScanLimit = 30
	}
	return &Mounter{
		logger: l,
		shares: shares,
		caller: caller,
		dirs:   dirs,
		prober: prober,
		bus:    bus,
		opts:   opts,
	}
}

// MountRoot returns the expanded directory mounts are created under.
func (m *Mounter) MountRoot() string {
	return m.opts.MountRoot
}

// MountAllShares attempts to mount every share that isn't already being
// worked on. Shares already queued or in a terminal error state are
// skipped; each claimed share is mounted concurrently. The call returns
// once every attempt has finished.
func (m *Mounter) MountAllShares(ctx context.Context) {
	if m.opts.NetworkUp != nil && !m.opts.NetworkUp() {
		m.logger.Info("network is down, skipping mount pass")
		return
	}
	if err := m.EnsureMountRoot(); err != nil {
		m.logger.Error("mount root unavailable", "root", m.opts.MountRoot, "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, s := range m.shares.List() {
		if s.MountStatus == share.StatusMissingPassword ||
			s.MountStatus == share.StatusUnassignedProfile {
			continue
		}
		if !m.shares.TryBeginMount(s.ID) {
			continue
		}

		wg.Add(1)
		go func(sh share.Share) {
			defer wg.Done()
			// A cancelled or panicked attempt must never leave the
			// share stuck in queued.
			defer m.shares.ResetQueued(sh.ID, share.StatusUndefined)

			if err := m.MountShare(ctx, sh); err != nil {
				m.logger.Warn("mount attempt failed",
					"share", sh.NetworkShare, "error", err)
			}
		}(s)
	}
	wg.Wait()
}

// MountShare runs a single mount attempt for a share the caller has
// already claimed via TryBeginMount. The final mount status is always
// written before returning.
func (m *Mounter) MountShare(ctx context.Context, s share.Share) error {
	u, err := s.URL()
	if err != nil {
		// A URL that cannot be parsed cannot be encoded for the OS
		// mount tools either.
		if !errors.HasCode(err, errors.MountInvalidHost) {
			err = errors.New(errors.MountEncodingFailed, err.Error()).
				WithMetadata("share", s.NetworkShare)
		}
		m.fail(s, share.StatusErrorOnMount, err)
		return err
	}
	if u.Hostname() == "" {
		err := errors.New(errors.MountInvalidHost, s.NetworkShare)
		m.fail(s, share.StatusErrorOnMount, err)
		return err
	}

	if !m.probe(ctx, u.Scheme, u.Hostname()) {
		// Not an error state: the server may simply be off this
		// network. Retry on the next pass.
		m.shares.UpdateMountStatus(s.ID, share.StatusToBeMounted)
		return errors.New(errors.MountTargetUnreachable, u.Hostname())
	}

	mountPoint := filepath.Join(m.opts.MountRoot, s.MountDirName())

	// Idempotence: if the share is already in the mount table, adopt
	// it instead of mounting again.
	if existing, ok := m.findMounted(ctx, u); ok {
		m.shares.UpdateActualMountPoint(s.ID, existing)
		m.shares.UpdateMountStatus(s.ID, share.StatusMounted)
		m.logger.Debug("share already mounted", "share", s.NetworkShare, "path", existing)
		return nil
	}

	created, err := m.prepareMountPoint(ctx, mountPoint)
	if err != nil {
		m.fail(s, share.StatusErrorOnMount, err)
		return err
	}

	password := s.Password
	code, err := m.caller.Mount(ctx, netfs.MountRequest{
		URL:        u,
		Username:   s.Username,
		Password:   password,
		MountPoint: mountPoint,
	})
	if err != nil {
		if created {
			m.cleanupMountPoint(ctx, mountPoint)
		}
		err = errors.Wrap(err, errors.MountFailed).WithMetadata("share", s.NetworkShare)
		m.fail(s, share.StatusErrorOnMount, err)
		return err
	}

	outcome := netfs.Classify(code)
	switch outcome {
	case netfs.OutcomeSuccess:
		m.shares.UpdateActualMountPoint(s.ID, mountPoint)
		m.shares.UpdateMountStatus(s.ID, share.StatusMounted)
		m.logger.Info("share mounted", "share", s.NetworkShare, "path", mountPoint)
		return nil

	case netfs.OutcomeAlreadyMounted:
		if existing, ok := m.findMounted(ctx, u); ok {
			mountPoint = existing
		}
		m.shares.UpdateActualMountPoint(s.ID, mountPoint)
		m.shares.UpdateMountStatus(s.ID, share.StatusMounted)
		return nil

	case netfs.OutcomeHostDown:
		if created {
			m.cleanupMountPoint(ctx, mountPoint)
		}
		// Transient network-layer failure. Retried on the next pass.
		m.shares.UpdateMountStatus(s.ID, share.StatusUnreachable)
		return errors.New(errors.MountHostDown, u.Hostname()).
			WithMetadata("code", fmt.Sprintf("%d", code))

	case netfs.OutcomeNoSuchShare:
		if created {
			m.cleanupMountPoint(ctx, mountPoint)
		}
		err := errors.New(errors.MountNoSuchShare, s.NetworkShare).
			WithMetadata("code", fmt.Sprintf("%d", code))
		m.fail(s, share.StatusErrorOnMount, err)
		return err

	case netfs.OutcomeAuthFailed:
		if created {
			m.cleanupMountPoint(ctx, mountPoint)
		}
		// Not terminal: a credential refresh (new keychain entry, fresh
		// Kerberos ticket) may land before the next pass.
		m.shares.UpdateMountStatus(s.ID, share.StatusToBeMounted)
		return errors.New(errors.MountAuthFailed, s.NetworkShare).
			WithMetadata("code", fmt.Sprintf("%d", code))

	default:
		if created {
			m.cleanupMountPoint(ctx, mountPoint)
		}
		err := errors.New(errors.MountUnknownCode, s.NetworkShare).
			WithMetadata("code", fmt.Sprintf("%d", code))
		m.fail(s, share.StatusErrorOnMount, err)
		return err
	}
}

// UnmountShare unmounts a single share and removes its mount directory.
func (m *Mounter) UnmountShare(ctx context.Context, s share.Share) error {
	if s.ActualMountPoint == "" {
		return nil
	}

	if err := m.caller.Unmount(ctx, s.ActualMountPoint); err != nil {
		// We no longer know whether the mount survived.
		m.shares.UpdateMountStatus(s.ID, share.StatusUndefined)
		return errors.Wrap(err, errors.UnmountFailed).
			WithMetadata("share", s.NetworkShare)
	}

	m.shares.UpdateActualMountPoint(s.ID, "")
	m.shares.UpdateMountStatus(s.ID, share.StatusUnmounted)
	m.cleanupMountPoint(ctx, s.ActualMountPoint)
	m.logger.Info("share unmounted", "share", s.NetworkShare)
	return nil
}

// UnmountAllMountedShares unmounts everything with a known mount point.
// Failures put the share in undefined rather than pretending it stayed
// mounted. The leftover-directory sweep runs regardless of outcome.
func (m *Mounter) UnmountAllMountedShares(ctx context.Context) {
	for _, s := range m.shares.MountedShares() {
		if err := m.UnmountShare(ctx, s); err != nil {
			m.logger.Warn("unmount failed",
				"share", s.NetworkShare, "path", s.ActualMountPoint, "error", err)
		}
	}
	m.CleanupStrayDirectories(ctx)
}

func (m *Mounter) probe(ctx context.Context, scheme, host string) bool {
	if m.prober == nil {
		return true
	}
	probeCtx := ctx
	if m.opts.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, m.opts.ProbeTimeout)
		defer cancel()
	}
	return m.prober.Reachable(probeCtx, host, netfs.DefaultPort(scheme))
}

// findMounted looks the share's location up in the live mount table.
func (m *Mounter) findMounted(ctx context.Context, u *url.URL) (string, bool) {
	entries, err := m.caller.Mounts(ctx)
	if err != nil {
		m.logger.Debug("failed to read mount table", "error", err)
		return "", false
	}
	want := netfs.FormatShareLocation(u)
	for _, e := range entries {
		if !e.IsNetworkFS() {
			continue
		}
		if netfs.SameLocation(e.Device, want) {
			return e.Path, true
		}
	}
	return "", false
}

// EnsureMountRoot creates the mount root if it does not exist yet. A
// path blocked by a plain file or an unreadable parent is reported as
// MountRootUnavailable; without a usable mount root nothing else here
// can work.
func (m *Mounter) EnsureMountRoot() error {
	info, err := os.Stat(m.opts.MountRoot)
	if err == nil {
		if !info.IsDir() {
			return errors.New(errors.MountRootUnavailable, m.opts.MountRoot)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.Wrap(err, errors.MountRootUnavailable)
	}
	if err := os.MkdirAll(m.opts.MountRoot, 0755); err != nil {
		return errors.Wrap(err, errors.MountRootUnavailable)
	}
	return nil
}

// fail records a terminal status and raises a mount-error event.
func (m *Mounter) fail(s share.Share, status share.MountStatus, err error) {
	m.shares.UpdateMountStatus(s.ID, status)
	if m.bus != nil {
		m.bus.Emit(events.Event{
			Type:    events.EventMountError,
			ShareID: s.ID,
			Message: err.Error(),
		})
	}
}

// RestartFinder relaunches Finder so stale sidebar entries disappear
// after a bulk unmount. Best effort.
func (m *Mounter) RestartFinder(ctx context.Context) {
	if _, err := command.ExecCommand(ctx, m.logger, "/usr/bin/killall", "Finder"); err != nil {
		m.logger.Debug("finder restart failed", "error", err)
	}
}

// mountDirBase strips a trailing "-<n>" stray suffix, returning the base
// name and whether a suffix was present.
func mountDirBase(name string) (string, bool) {
	i := strings.LastIndex(name, "-")
	if i <= 0 || i == len(name)-1 {
		return name, false
	}
	for _, r := range name[i+1:] {
		if r < '0' || r > '9' {
			return name, false
		}
	}
	return name[:i], true
}
