// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
	"time"

	"github.com/stratastor/logger"
)

// EventType identifies what happened. The UI layer keys its rendering on
// these values, so they are part of the control-API contract.
type EventType string

const (
	// EventNeedsAttention signals a share the user must act on
	// (missing password, unassigned auth profile).
	EventNeedsAttention EventType = "needs-attention"
	// EventMountError signals a failed mount attempt.
	EventMountError EventType = "mount-error"
	// EventErrorCleared signals a previously reported error is resolved.
	EventErrorCleared EventType = "error-cleared"
	// EventNetworkChanged signals the network monitor observed a change.
	EventNetworkChanged EventType = "network-changed"
)

// Event is one fire-and-forget notification to observers. No
// acknowledgement is expected.
type Event struct {
	Type      EventType         `json:"type"`
	ShareID   string            `json:"shareId,omitempty"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

const recentEventLimit = 64

// Bus is a bounded in-process event fan-out. Emit never blocks: slow
// subscribers drop events rather than stalling the mount path.
type Bus struct {
	logger logger.Logger

	mu          sync.RWMutex
	subscribers []chan Event
	recent      []Event
	closed      bool
}

// NewBus creates an event bus.
func NewBus(l logger.Logger) *Bus {
	return &Bus{logger: l}
}

// Subscribe registers a new observer channel. The returned channel is
// buffered; events are dropped when the buffer is full.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 32)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Emit publishes an event to all subscribers (non-blocking) and records
// it in the recent-events ring.
func (b *Bus) Emit(evt Event) {
	evt.Timestamp = time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.recent = append(b.recent, evt)
	if len(b.recent) > recentEventLimit {
		b.recent = b.recent[len(b.recent)-recentEventLimit:]
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("event subscriber buffer full, dropping event",
				"type", evt.Type, "share_id", evt.ShareID)
		}
	}
}

// Recent returns a copy of the most recent events, newest last.
func (b *Bus) Recent() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, len(b.recent))
	copy(out, b.recent)
	return out
}

// Close tears the bus down. Subsequent Emit calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
