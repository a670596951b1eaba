// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"time"

	"github.com/moorfs/moored/internal/constants"
	"github.com/moorfs/moored/pkg/share"
)

// Report is the health endpoint payload.
type Report struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Shares  int    `json:"shares"`
	Mounted int    `json:"mounted"`
	Errored int    `json:"errored"`
}

// Checker summarizes daemon state for the health endpoint and the
// status CLI.
type Checker struct {
	shares    *share.Manager
	startedAt time.Time
}

func NewChecker(shares *share.Manager) *Checker {
	return &Checker{shares: shares, startedAt: time.Now()}
}

func (c *Checker) Report() Report {
	r := Report{
		Status:  "healthy",
		Version: constants.Version,
		Uptime:  time.Since(c.startedAt).Round(time.Second).String(),
	}

	for _, s := range c.shares.List() {
		r.Shares++
		switch s.MountStatus {
		case share.StatusMounted:
			r.Mounted++
		case share.StatusErrorOnMount, share.StatusMissingPassword,
			share.StatusUnassignedProfile:
			r.Errored++
		}
	}
	return r
}
