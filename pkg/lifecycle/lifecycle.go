// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/moorfs/moored/pkg/errors"
)

var (
	shutdownHooks []func()
	reloadHooks   []func()
	cancel        context.CancelFunc
)

// RegisterShutdownHook adds a hook to run on SIGTERM/SIGINT, after the
// context has been cancelled.
func RegisterShutdownHook(hook func()) {
	shutdownHooks = append(shutdownHooks, hook)
}

// RegisterReloadHook adds a hook to run on SIGHUP. The daemon reloads
// share policy rather than restarting.
func RegisterReloadHook(hook func()) {
	reloadHooks = append(reloadHooks, hook)
}

func RegisterContextCanceller(c context.CancelFunc) {
	cancel = c
}

// HandleSignals blocks until shutdown or the context ends.
func HandleSignals(ctx context.Context) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for {
		select {
		case sig := <-stop:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				shutdown()
				return
			case syscall.SIGHUP:
				for _, hook := range reloadHooks {
					hook()
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func shutdown() {
	if cancel != nil {
		cancel()
	}
	// Hooks run in reverse registration order so dependents stop
	// before their dependencies.
	for i := len(shutdownHooks) - 1; i >= 0; i-- {
		shutdownHooks[i]()
	}
	os.Exit(0)
}

// EnsureSingleInstance guards against a second daemon fighting over the
// same mounts. Stale PID files from a crashed instance are cleaned up.
func EnsureSingleInstance(pidPath string) error {
	if pidPath == "" {
		return errors.New(errors.LifecyclePID, "empty PID file path")
	}

	if raw, err := os.ReadFile(pidPath); err == nil {
		if pid := livePID(raw); pid != 0 {
			return errors.New(errors.LifecycleDaemon,
				"another instance is already running").
				WithMetadata("pid", strconv.Itoa(pid))
		}
		// Stale or garbled leftover from a crash.
		os.Remove(pidPath)
	}

	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(pidPath, []byte(pid), 0644); err != nil {
		return errors.Wrap(err, errors.LifecyclePID).
			WithMetadata("path", pidPath)
	}

	RegisterShutdownHook(func() {
		os.Remove(pidPath)
	})
	return nil
}

// livePID parses a PID file's contents and returns the PID if that
// process is still alive, 0 otherwise.
func livePID(raw []byte) int {
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return 0
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0
	}
	return pid
}
