// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpclient is the daemon's control API client, used by the
// CLI subcommands that talk to a running moored instance.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/moorfs/moored/internal/constants"
	"github.com/moorfs/moored/pkg/api"
	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/health"
	"github.com/moorfs/moored/pkg/share"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryCount    = 2
	defaultRetryWaitTime = 500 * time.Millisecond
	userAgent            = "moored-cli"
)

// Client talks to a local moored daemon.
type Client struct {
	rc *resty.Client
}

// New builds a client for the daemon on the given loopback port.
func New(port int) *Client {
	rc := resty.New().
		SetBaseURL(fmt.Sprintf("http://127.0.0.1:%d", port)).
		SetTimeout(defaultTimeout).
		SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(defaultRetryWaitTime).
		SetHeader("User-Agent", userAgent)
	return &Client{rc: rc}
}

// envelope mirrors api.APIResponse with a raw result so callers can
// decode into their own types.
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *api.APIError   `json:"error"`
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.rc.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrap(err, errors.ServerRequestFailed).
			WithMetadata("path", path)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return errors.Wrap(err, errors.ServerRequestFailed).
			WithMetadata("path", path).
			WithMetadata("status", resp.Status())
	}

	if !env.Success {
		details := resp.Status()
		if env.Error != nil {
			details = fmt.Sprintf("%s: %s", env.Error.Message, env.Error.Details)
		}
		return errors.New(errors.ServerRequestFailed, details).
			WithMetadata("path", path)
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return errors.Wrap(err, errors.ServerRequestFailed).
				WithMetadata("path", path)
		}
	}
	return nil
}

// Health fetches the daemon health report.
func (c *Client) Health(ctx context.Context) (health.Report, error) {
	var report health.Report
	resp, err := c.rc.R().SetContext(ctx).SetResult(&report).Get("/health")
	if err != nil {
		return report, errors.Wrap(err, errors.ServerRequestFailed)
	}
	if resp.IsError() {
		return report, errors.New(errors.ServerRequestFailed, resp.Status())
	}
	return report, nil
}

// Shares lists the daemon's share collection.
func (c *Client) Shares(ctx context.Context) ([]share.Share, error) {
	var shares []share.Share
	err := c.call(ctx, resty.MethodGet, constants.APIShares, nil, &shares)
	return shares, err
}

// AddShare creates a new share.
func (c *Client) AddShare(ctx context.Context, req api.ShareRequest) (share.Share, error) {
	var s share.Share
	err := c.call(ctx, resty.MethodPost, constants.APIShares, req, &s)
	return s, err
}

// RemoveShare deletes a share by id.
func (c *Client) RemoveShare(ctx context.Context, id string) error {
	return c.call(ctx, resty.MethodDelete, constants.APIShares+"/"+id, nil, nil)
}

// MountShare mounts a single share and returns its resulting state.
func (c *Client) MountShare(ctx context.Context, id string) (share.Share, error) {
	var s share.Share
	err := c.call(ctx, resty.MethodPost, constants.APIShares+"/"+id+"/mount", nil, &s)
	return s, err
}

// UnmountShare unmounts a single share and returns its resulting state.
func (c *Client) UnmountShare(ctx context.Context, id string) (share.Share, error) {
	var s share.Share
	err := c.call(ctx, resty.MethodPost, constants.APIShares+"/"+id+"/unmount", nil, &s)
	return s, err
}

// MountAll triggers a mount pass and returns the resulting collection.
func (c *Client) MountAll(ctx context.Context) ([]share.Share, error) {
	var shares []share.Share
	err := c.call(ctx, resty.MethodPost, constants.APIMount, nil, &shares)
	return shares, err
}

// UnmountAll unmounts everything and returns the resulting collection.
func (c *Client) UnmountAll(ctx context.Context) ([]share.Share, error) {
	var shares []share.Share
	err := c.call(ctx, resty.MethodPost, constants.APIUnmount, nil, &shares)
	return shares, err
}
