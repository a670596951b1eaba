// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"
	"github.com/stratastor/logger"

	"github.com/moorfs/moored/config"
	"github.com/moorfs/moored/internal/common"
	"github.com/moorfs/moored/internal/constants"
	"github.com/moorfs/moored/internal/events"
	"github.com/moorfs/moored/pkg/accounts"
	"github.com/moorfs/moored/pkg/activity"
	"github.com/moorfs/moored/pkg/health"
	"github.com/moorfs/moored/pkg/keychain"
	"github.com/moorfs/moored/pkg/lifecycle"
	"github.com/moorfs/moored/pkg/monitor"
	"github.com/moorfs/moored/pkg/mounter"
	"github.com/moorfs/moored/pkg/netfs"
	"github.com/moorfs/moored/pkg/server"
	"github.com/moorfs/moored/pkg/share"
)

var detached bool

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the moored daemon",
		Run:   runServe,
	}

	cmd.Flags().BoolVarP(&detached, "detach", "d", false, "Run as a daemon")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) {
	lcfg := config.NewLoggerConfig(config.GetConfig())
	log, err := logger.NewTag(lcfg, "serve")
	if err != nil {
		panic(err)
	}

	rc := config.GetConfig()
	pidFile := filepath.Join(common.GetConfigDir(), constants.PIDFileName)
	if err := lifecycle.EnsureSingleInstance(pidFile); err != nil {
		log.Error("Failed to start", "error", err)
		os.Exit(1)
	}

	if detached {
		dctx := &daemon.Context{
			PidFileName: pidFile,
			PidFilePerm: 0644,
			LogFileName: rc.Logs.Path,
			LogFilePerm: 0640,
			WorkDir:     "/",
			Umask:       027,
			Args:        []string{"moored", "serve"},
		}

		d, err := dctx.Reborn()
		if err != nil {
			log.Error("Failed to start daemon", "error", err)
			os.Exit(1)
		}

		if d != nil {
			log.Info("moored is running as a daemon")
			return
		}
		defer dctx.Release()
	}

	startDaemon()
}

// startDaemon builds the object graph and runs until a signal stops it.
// Construction order matters: the share manager must exist before the
// monitor derives probe targets from it, and the controller must be
// running before the API exposes mount triggers.
func startDaemon() {
	cfg := config.GetConfig()
	lcfg := config.NewLoggerConfig(cfg)
	log, err := logger.NewTag(lcfg, "serve")
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lifecycle.RegisterContextCanceller(cancel)

	bus := events.NewBus(log)
	kc := keychain.NewExecStore(log)

	username := cfg.Mount.UsernameOverride

	var homeShare share.HomeShareFunc
	if cfg.Directory.Enabled {
		dir := accounts.NewDirectoryClient(log, accounts.DirectoryConfig{
			URL:           cfg.Directory.LDAPURL,
			BaseDN:        cfg.Directory.BaseDN,
			BindDN:        cfg.Directory.BindDN,
			BindPassword:  cfg.Directory.BindPassword,
			HomeAttribute: cfg.Directory.HomeAttribute,
		}, username)
		homeShare = dir.HomeShareURL
	}

	provider := share.NewFileProvider(log,
		cfg.Shares.ManagedPolicyPath, cfg.Shares.UserSharesPath, homeShare)

	profiles := make([]accounts.Profile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		profiles = append(profiles, accounts.Profile{
			ID:       p.ID,
			Name:     p.Name,
			Username: p.Username,
			Realm:    p.Realm,
		})
	}
	accountsMgr := accounts.NewManager(log, profiles)

	shares := share.NewManager(log, provider, provider, kc, accountsMgr, bus, username)
	shares.LoadUserShares(ctx)

	mountRoot := cfg.Mount.Root
	if mountRoot == "" {
		mountRoot = constants.DefaultMountRoot
	}
	if expanded, err := common.ExpandPath(mountRoot); err == nil {
		mountRoot = expanded
	} else {
		log.Error("Failed to expand mount root", "root", mountRoot, "error", err)
	}

	caller := netfs.NewExecCaller(log)
	dirs := mounter.NewDirectoryManager(log, caller.Mounts)
	prober := &monitor.TCPProber{Timeout: parseDuration(cfg.Probe.Timeout, 2*time.Second)}

	mon := monitor.NewMonitor(log, prober, func() []monitor.Target {
		var targets []monitor.Target
		seen := map[string]bool{}
		for _, s := range shares.List() {
			u, err := s.URL()
			if err != nil {
				continue
			}
			host := u.Hostname()
			if host == "" || seen[host] {
				continue
			}
			seen[host] = true
			targets = append(targets, monitor.Target{
				Host: host,
				Port: netfs.DefaultPort(u.Scheme),
			})
		}
		return targets
	}, bus, 30*time.Second, parseDuration(cfg.Reconcile.NetworkSettleDelay, 3*time.Second))

	m := mounter.NewMounter(log, shares, caller, dirs, prober, bus, mounter.Options{
		MountRoot:      mountRoot,
		StrayScanLimit: cfg.Cleanup.StrayScanLimit,
		ProbeTimeout:   parseDuration(cfg.Probe.Timeout, 2*time.Second),
		NetworkUp:      mon.Up,
	})
	// The one condition the daemon cannot limp past: without a mount
	// root there is nowhere to mount anything.
	if err := m.EnsureMountRoot(); err != nil {
		log.Error("Failed to create mount root", "root", mountRoot, "error", err)
		os.Exit(1)
	}

	control, err := activity.NewController(log, shares, m, mon,
		parseDuration(cfg.Reconcile.Interval, 5*time.Minute))
	if err != nil {
		log.Error("Failed to create activity controller", "error", err)
		os.Exit(1)
	}
	if err := control.Start(ctx); err != nil {
		log.Error("Failed to start activity controller", "error", err)
		os.Exit(1)
	}

	lifecycle.RegisterShutdownHook(func() {
		log.Info("Shutting down, releasing mounts...")
		control.Stop(context.Background(), true)
		bus.Close()
	})
	lifecycle.RegisterReloadHook(func() {
		log.Info("Reload requested, re-reading share policy")
		control.TriggerMount(ctx)
	})

	go lifecycle.HandleSignals(ctx)

	deps := server.Deps{
		Shares:   shares,
		Control:  control,
		Profiles: accountsMgr,
		Bus:      bus,
		Health:   health.NewChecker(shares),
	}

	log.Info("Starting moored control API", "port", cfg.Server.Port)
	if err := server.Start(ctx, deps, cfg.Server.Port); err != nil {
		log.Error("Failed to start server", "error", err)
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
