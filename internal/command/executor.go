// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package command runs the OS tools the daemon depends on: the mount
// binaries, diskutil, security(1), and killall. Everything funnels
// through ExecCommand so argument validation and timeouts are applied
// in exactly one place.
package command

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/stratastor/logger"

	mrerrors "github.com/moorfs/moored/pkg/errors"
)

// Characters that would let an argument escape into the shell. None of
// the tools we call need them.
const dangerousChars = "&|><$`\\[];{}"

const (
	defaultCommandTimeout = 30 * time.Second
	maxArguments          = 64
)

// ExecCommand runs name with args under a timeout and returns the
// combined output. Share passwords travel through here as mount_smbfs
// URL arguments, so the logged command string must never include args
// beyond what the caller already sanitized.
func ExecCommand(
	ctx context.Context,
	log logger.Logger,
	name string,
	args ...string,
) ([]byte, error) {
	if err := validate(name, args); err != nil {
		return nil, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCommandTimeout)
		defer cancel()
	}

	cmdString := shellquote.Join(append([]string{name}, args...)...)
	log.Debug("running command", "cmd", cmdString)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = []string{} // no inherited environment, no expansion surprises

	output, err := cmd.CombinedOutput()
	if err == nil {
		return output, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Error("command exited nonzero",
			"cmd", cmdString,
			"exit_code", exitErr.ExitCode(),
			"output", string(output))
		return output, mrerrors.Wrap(err, mrerrors.CommandExecution).
			WithMetadata("command", cmdString).
			WithMetadata("exit_code", strconv.Itoa(exitErr.ExitCode())).
			WithMetadata("output", string(output))
	}

	log.Error("command did not run", "cmd", cmdString, "err", err)
	return output, mrerrors.Wrap(err, mrerrors.CommandExecution).
		WithMetadata("command", cmdString).
		WithMetadata("output", string(output))
}

// ExitCode extracts the process exit code from an execution error.
// Returns -1 when the command never ran or was killed by a signal.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func validate(name string, args []string) error {
	switch {
	case name == "":
		return mrerrors.New(mrerrors.CommandInvalidInput, "empty command")
	case !strings.HasPrefix(name, "/") && strings.ContainsAny(name, "/\\"):
		return mrerrors.New(mrerrors.CommandInvalidInput,
			"relative paths are not allowed for commands")
	case strings.ContainsAny(name, dangerousChars):
		return mrerrors.New(mrerrors.CommandInvalidInput,
			"command contains invalid characters")
	case len(args) > maxArguments:
		return mrerrors.New(mrerrors.CommandInvalidInput, "too many arguments")
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, dangerousChars) {
			return mrerrors.New(mrerrors.CommandInvalidInput,
				"argument contains invalid characters")
		}
	}
	return nil
}
