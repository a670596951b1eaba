// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package activity runs the daemon's periodic work: the scheduled
// reconcile-and-mount pass, reactions to network up/down transitions,
// and the sleep/wake heuristic.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stratastor/logger"

	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/monitor"
	"github.com/moorfs/moored/pkg/mounter"
	"github.com/moorfs/moored/pkg/share"
)

// wakeTick is how often the wake watcher samples the wall clock. A
// sample gap far beyond the tick means the machine was asleep.
const wakeTick = 30 * time.Second

// Controller owns the background loops. Construct, wire, Start, and
// eventually Stop; all mount work funnels through runPass so manual
// triggers and scheduled runs behave identically.
type Controller struct {
	logger    logger.Logger
	shares    *share.Manager
	mounter   *mounter.Mounter
	monitor   *monitor.Monitor
	scheduler gocron.Scheduler
	interval  time.Duration

	mu       sync.Mutex
	started  bool
	wakeStop chan struct{}
	wakeDone chan struct{}
}

func NewController(
	l logger.Logger,
	shares *share.Manager,
	m *mounter.Mounter,
	mon *monitor.Monitor,
	interval time.Duration,
) (*Controller, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.SchedulerError)
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Controller{
		logger:    l,
		shares:    shares,
		mounter:   m,
		monitor:   mon,
		scheduler: scheduler,
		interval:  interval,
	}, nil
}

// Start wires the monitor callbacks, registers the periodic job, and
// kicks off an immediate first pass.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.wakeStop = make(chan struct{})
	c.wakeDone = make(chan struct{})
	c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.OnUp = func(ctx context.Context) {
			c.logger.Info("network is back, mounting shares")
			c.runPass(ctx)
		}
		c.monitor.OnDown = func(ctx context.Context) {
			c.logger.Info("network lost, marking shares undefined")
			// Mount state is unknowable while offline. Force the dead
			// mounts off so Finder doesn't hang on them.
			c.shares.BulkSetStatus(share.StatusUndefined)
			c.mounter.UnmountAllMountedShares(ctx)
		}
		c.monitor.Start(ctx)
	}

	_, err := c.scheduler.NewJob(
		gocron.DurationJob(c.interval),
		gocron.NewTask(func() { c.runPass(ctx) }),
	)
	if err != nil {
		return errors.Wrap(err, errors.SchedulerError)
	}
	c.scheduler.Start()

	go c.watchWake(ctx)

	c.logger.Info("activity controller started", "interval", c.interval.String())
	c.runPass(ctx)
	return nil
}

// TriggerMount runs a full reconcile-and-mount pass now.
func (c *Controller) TriggerMount(ctx context.Context) {
	c.runPass(ctx)
}

// TriggerUnmount unmounts everything that is mounted.
func (c *Controller) TriggerUnmount(ctx context.Context) {
	c.mounter.UnmountAllMountedShares(ctx)
}

// TriggerMountShare mounts a single share on demand. A share already
// being worked on is left alone.
func (c *Controller) TriggerMountShare(ctx context.Context, id string) error {
	s, ok := c.shares.Get(id)
	if !ok {
		return errors.New(errors.ShareNotFound, id)
	}
	if !c.shares.TryBeginMount(id) {
		return nil
	}
	defer c.shares.ResetQueued(id, share.StatusUndefined)
	return c.mounter.MountShare(ctx, s)
}

// TriggerUnmountShare unmounts a single share on demand.
func (c *Controller) TriggerUnmountShare(ctx context.Context, id string) error {
	s, ok := c.shares.Get(id)
	if !ok {
		return errors.New(errors.ShareNotFound, id)
	}
	return c.mounter.UnmountShare(ctx, s)
}

func (c *Controller) runPass(ctx context.Context) {
	c.shares.UpdateShareArray(ctx)
	c.mounter.MountAllShares(ctx)
	c.mounter.CleanupStrayDirectories(ctx)
}

// watchWake detects sleep/wake cycles by sampling the wall clock: a gap
// well beyond the tick means the process was suspended. After a wake
// the shares are re-evaluated because the network has usually changed
// underneath us.
func (c *Controller) watchWake(ctx context.Context) {
	defer close(c.wakeDone)

	ticker := time.NewTicker(wakeTick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			gap := now.Sub(last)
			last = now
			if gap > 2*wakeTick {
				c.logger.Info("wake from sleep detected", "gap", gap.String())
				c.shares.BulkSetStatus(share.StatusUndefined)
				c.runPass(ctx)
				// Finder caches dead mounts across sleep; a refresh
				// clears the stale sidebar entries.
				c.mounter.RestartFinder(ctx)
			}
		case <-c.wakeStop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop shuts the loops down. With unmountOnExit the mounted shares are
// released and Finder restarted so no dead mounts outlive the daemon.
func (c *Controller) Stop(ctx context.Context, unmountOnExit bool) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	close(c.wakeStop)
	done := c.wakeDone
	c.mu.Unlock()

	if err := c.scheduler.Shutdown(); err != nil {
		c.logger.Error("scheduler shutdown failed", "error", err)
	}
	if c.monitor != nil {
		c.monitor.Stop()
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		c.logger.Warn("wake watcher did not stop in time")
	}

	if unmountOnExit {
		c.mounter.UnmountAllMountedShares(ctx)
		c.mounter.RestartFinder(ctx)
	}

	c.logger.Info("activity controller stopped")
}
