// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package netfs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/stratastor/logger"

	"github.com/moorfs/moored/internal/command"
	"github.com/moorfs/moored/pkg/errors"
)

// MountRequest carries everything the OS mount call needs. URL is the
// percent-encoded share URL; Username/Password are optional.
type MountRequest struct {
	URL        *url.URL
	Username   string
	Password   string
	MountPoint string
}

// Caller is the OS mount primitive contract. Mount returns the raw
// integer result code (0 on success); a non-nil error means the call
// itself could not be made (binary missing, context cancelled), not
// that the mount failed.
type Caller interface {
	Mount(ctx context.Context, req MountRequest) (int, error)
	Unmount(ctx context.Context, mountPoint string) error
	Mounts(ctx context.Context) ([]Entry, error)
}

const (
	binMountSMBFS = "/sbin/mount_smbfs"
	binMountAFP   = "/sbin/mount_afp"
	binUmount     = "/sbin/umount"
	binMount      = "/sbin/mount"
	binDiskutil   = "/usr/sbin/diskutil"
)

// ExecCaller shells out to the platform mount tools with a fixed option
// set: no UI prompts, soft mount, mount exactly at the given directory.
type ExecCaller struct {
	logger logger.Logger
}

// NewExecCaller creates the production mount caller.
func NewExecCaller(l logger.Logger) *ExecCaller {
	return &ExecCaller{logger: l}
}

func (c *ExecCaller) Mount(ctx context.Context, req MountRequest) (int, error) {
	bin := binMountSMBFS
	if req.URL.Scheme == "afp" {
		bin = binMountAFP
	}

	// mount_smbfs wants the //[user[:pass]@]server/share form; embedded
	// credentials are percent-encoded so they survive argument parsing.
	loc := "//"
	if req.Username != "" {
		loc += url.User(req.Username).String()
		if req.Password != "" {
			loc = "//" + url.UserPassword(req.Username, req.Password).String()
		}
		loc += "@"
	}
	loc += req.URL.Host + req.URL.EscapedPath()

	args := []string{"-N", "-o", "soft", loc, req.MountPoint}
	if bin == binMountAFP {
		// mount_afp takes the full URL and has no -N; the AM flag
		// suppresses the auth dialog.
		args = []string{"-o", "soft", req.URL.String(), req.MountPoint}
	}

	out, err := command.ExecCommand(ctx, c.logger, bin, args...)
	if err != nil {
		code := command.ExitCode(err)
		if code < 0 {
			return -1, errors.Wrap(err, errors.MountFailed).
				WithMetadata("mount_point", req.MountPoint)
		}
		c.logger.Debug("mount tool returned nonzero",
			"bin", bin, "code", code, "output", strings.TrimSpace(string(out)))
		return code, nil
	}

	return 0, nil
}

func (c *ExecCaller) Unmount(ctx context.Context, mountPoint string) error {
	// diskutil ejects every partition of the volume and never prompts;
	// fall back to plain umount when it is unavailable.
	_, err := command.ExecCommand(ctx, c.logger, binDiskutil,
		"unmount", "force", mountPoint)
	if err == nil {
		return nil
	}

	if _, uerr := command.ExecCommand(ctx, c.logger, binUmount, mountPoint); uerr != nil {
		return errors.Wrap(uerr, errors.UnmountFailed).
			WithMetadata("mount_point", mountPoint)
	}
	return nil
}

func (c *ExecCaller) Mounts(ctx context.Context) ([]Entry, error) {
	out, err := command.ExecCommand(ctx, c.logger, binMount)
	if err != nil {
		return nil, errors.Wrap(err, errors.CommandExecution).
			WithMetadata("command", binMount)
	}
	return ParseMountTable(string(out)), nil
}

// FakeCaller is a scriptable Caller for tests. MountFunc defaults to
// success; recorded calls can be asserted on.
type FakeCaller struct {
	MountFunc   func(req MountRequest) (int, error)
	UnmountFunc func(mountPoint string) error

	MountCalls   []MountRequest
	UnmountCalls []string
	MountTable   []Entry
}

func (f *FakeCaller) Mount(ctx context.Context, req MountRequest) (int, error) {
	f.MountCalls = append(f.MountCalls, req)
	if f.MountFunc != nil {
		return f.MountFunc(req)
	}
	return 0, nil
}

func (f *FakeCaller) Unmount(ctx context.Context, mountPoint string) error {
	f.UnmountCalls = append(f.UnmountCalls, mountPoint)
	if f.UnmountFunc != nil {
		return f.UnmountFunc(mountPoint)
	}
	return nil
}

func (f *FakeCaller) Mounts(ctx context.Context) ([]Entry, error) {
	return f.MountTable, nil
}

var _ Caller = (*ExecCaller)(nil)
var _ Caller = (*FakeCaller)(nil)

// FormatShareLocation renders the canonical //server/share form used in
// log lines, without credentials.
func FormatShareLocation(u *url.URL) string {
	return fmt.Sprintf("//%s%s", u.Host, u.EscapedPath())
}

// DefaultPort returns the service port probed for a share scheme.
func DefaultPort(scheme string) int {
	if strings.EqualFold(scheme, "afp") {
		return 548
	}
	return 445 // smb, cifs
}

// SameLocation reports whether a mount-table device string refers to
// the same server share as a canonical //server/share location. Devices
// carry a user@ prefix and the host part is case-insensitive.
func SameLocation(device, location string) bool {
	return normalizeLocation(device) == normalizeLocation(location)
}

func normalizeLocation(s string) string {
	s = strings.TrimPrefix(s, "//")
	s = strings.TrimRight(s, "/")

	slash := strings.Index(s, "/")
	host := s
	rest := ""
	if slash >= 0 {
		host = s[:slash]
		rest = s[slash:]
	}
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	return strings.ToLower(host) + rest
}
