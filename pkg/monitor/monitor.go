// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor tracks whether the share servers are reachable and
// reports up/down transitions. It intentionally probes the actual
// servers instead of a generic connectivity check: a laptop can be
// online and still unable to reach the corporate file servers.
package monitor

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/stratastor/logger"

	"github.com/moorfs/moored/internal/events"
)

// Target is one host:port endpoint to probe.
type Target struct {
	Host string
	Port int
}

// TargetsFunc supplies the current probe targets, typically derived
// from the share collection.
type TargetsFunc func() []Target

// TCPProber answers reachability with a plain TCP dial.
type TCPProber struct {
	Timeout time.Duration
}

func (p *TCPProber) Reachable(ctx context.Context, host string, port int) bool {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Prober answers whether a host accepts connections on a port.
type Prober interface {
	Reachable(ctx context.Context, host string, port int) bool
}

// Monitor polls the probe targets and emits a network-changed event on
// every up/down transition. Transitions are debounced by the settle
// delay so a flapping Wi-Fi association doesn't trigger mount churn.
type Monitor struct {
	logger  logger.Logger
	prober  Prober
	targets TargetsFunc
	bus     *events.Bus

	interval    time.Duration
	settleDelay time.Duration

	// OnUp and OnDown run after a settled transition, in the polling
	// goroutine. Set before Start.
	OnUp   func(ctx context.Context)
	OnDown func(ctx context.Context)

	mu      sync.Mutex
	up      bool
	known   bool
	started bool
	stop    chan struct{}
	done    chan struct{}
}

func NewMonitor(
	l logger.Logger,
	prober Prober,
	targets TargetsFunc,
	bus *events.Bus,
	interval, settleDelay time.Duration,
) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		logger:      l,
		prober:      prober,
		targets:     targets,
		bus:         bus,
		interval:    interval,
		settleDelay: settleDelay,
	}
}

// Up reports the last settled reachability state. Before the first poll
// completes the network is assumed up.
func (m *Monitor) Up() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known {
		return true
	}
	return m.up
}

// Start launches the polling loop. Calling Start twice is an error in
// the caller; the second call is ignored.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.loop(ctx)
}

// Stop terminates the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.evaluate(ctx)
	for {
		select {
		case <-ticker.C:
			m.evaluate(ctx)
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// evaluate probes the targets and fires transition handlers when the
// settled state changed.
func (m *Monitor) evaluate(ctx context.Context) {
	up := m.probeAll(ctx)

	m.mu.Lock()
	changed := !m.known || up != m.up
	m.mu.Unlock()
	if !changed {
		return
	}

	// Confirm the new state after the settle delay before acting on it.
	if m.settleDelay > 0 {
		select {
		case <-time.After(m.settleDelay):
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		}
		if m.probeAll(ctx) != up {
			return
		}
	}

	m.mu.Lock()
	first := !m.known
	m.known = true
	m.up = up
	m.mu.Unlock()

	if first && up {
		// Nothing transitioned; this is just the initial confirmation.
		return
	}

	m.logger.Info("network reachability changed", "up", up)
	if m.bus != nil {
		msg := "share servers reachable"
		if !up {
			msg = "share servers unreachable"
		}
		m.bus.Emit(events.Event{Type: events.EventNetworkChanged, Message: msg})
	}

	if up && m.OnUp != nil {
		m.OnUp(ctx)
	}
	if !up && m.OnDown != nil {
		m.OnDown(ctx)
	}
}

// probeAll reports up when at least one target answers, or when there
// is nothing to probe.
func (m *Monitor) probeAll(ctx context.Context) bool {
	targets := m.targets()
	if len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if m.prober.Reachable(ctx, t.Host, t.Port) {
			return true
		}
	}
	return false
}
