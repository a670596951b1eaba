// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the daemon's REST surface. A menu-bar app or the
// moored CLI manage shares and trigger mount passes through it.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"

	"github.com/moorfs/moored/internal/events"
	"github.com/moorfs/moored/pkg/accounts"
	"github.com/moorfs/moored/pkg/activity"
	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/share"
)

// ShareHandler handles the share management REST API.
type ShareHandler struct {
	shares   *share.Manager
	control  *activity.Controller
	profiles *accounts.Manager
	bus      *events.Bus
	logger   logger.Logger
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries error information in API responses.
type APIError struct {
	Code    int               `json:"code"`
	Domain  string            `json:"domain"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// ShareRequest is the request body for creating or updating a share.
type ShareRequest struct {
	NetworkShare string `json:"networkShare" binding:"required"`
	AuthType     string `json:"authType"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	MountPoint   string `json:"mountPoint"`
	DisplayName  string `json:"displayName"`
	ProfileID    string `json:"profileId"`
}

func NewShareHandler(
	shares *share.Manager,
	control *activity.Controller,
	profiles *accounts.Manager,
	bus *events.Bus,
	l logger.Logger,
) *ShareHandler {
	return &ShareHandler{
		shares:   shares,
		control:  control,
		profiles: profiles,
		bus:      bus,
		logger:   l,
	}
}

// RegisterRoutes mounts the handler under the given group.
func (h *ShareHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/shares", h.listShares)
	g.POST("/shares", h.addShare)
	g.GET("/shares/:id", h.getShare)
	g.PUT("/shares/:id", h.updateShare)
	g.DELETE("/shares/:id", h.removeShare)

	g.POST("/shares/:id/mount", h.mountShare)
	g.POST("/shares/:id/unmount", h.unmountShare)

	g.POST("/mount", h.mountAll)
	g.POST("/unmount", h.unmountAll)

	g.GET("/events", h.listEvents)
	g.GET("/profiles", h.listProfiles)
}

func (h *ShareHandler) listShares(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.shares.List())
}

func (h *ShareHandler) getShare(c *gin.Context) {
	s, ok := h.shares.Get(c.Param("id"))
	if !ok {
		h.sendError(c, errors.New(errors.ShareNotFound, c.Param("id")))
		return
	}
	h.sendSuccess(c, http.StatusOK, s)
}

func (h *ShareHandler) addShare(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errors.Wrap(err, errors.ShareInvalidInput))
		return
	}

	s, err := h.shares.AddShare(c.Request.Context(), share.Share{
		NetworkShare:  req.NetworkShare,
		AuthType:      share.AuthType(req.AuthType),
		Username:      req.Username,
		Password:      req.Password,
		MountPoint:    req.MountPoint,
		DisplayName:   req.DisplayName,
		AuthProfileID: req.ProfileID,
	})
	if err != nil {
		h.sendError(c, err)
		return
	}

	h.sendSuccess(c, http.StatusCreated, s)
}

func (h *ShareHandler) updateShare(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, errors.Wrap(err, errors.ShareInvalidInput))
		return
	}

	id := c.Param("id")
	err := h.shares.UpdateShare(c.Request.Context(), id, share.Share{
		NetworkShare:  req.NetworkShare,
		AuthType:      share.AuthType(req.AuthType),
		Username:      req.Username,
		Password:      req.Password,
		MountPoint:    req.MountPoint,
		DisplayName:   req.DisplayName,
		AuthProfileID: req.ProfileID,
	})
	if err != nil {
		h.sendError(c, err)
		return
	}

	s, _ := h.shares.Get(id)
	h.sendSuccess(c, http.StatusOK, s)
}

func (h *ShareHandler) removeShare(c *gin.Context) {
	h.shares.RemoveShare(c.Request.Context(), c.Param("id"))
	h.sendSuccess(c, http.StatusOK, gin.H{"removed": c.Param("id")})
}

func (h *ShareHandler) mountShare(c *gin.Context) {
	id := c.Param("id")
	if err := h.control.TriggerMountShare(c.Request.Context(), id); err != nil {
		// A failed attempt already left the share in a retry or error
		// status; surface the share so the caller sees where it landed.
		if s, ok := h.shares.Get(id); ok {
			h.logger.Warn("mount request failed", "id", id, "error", err)
			h.sendSuccess(c, http.StatusOK, s)
			return
		}
		h.sendError(c, err)
		return
	}
	s, _ := h.shares.Get(id)
	h.sendSuccess(c, http.StatusOK, s)
}

func (h *ShareHandler) unmountShare(c *gin.Context) {
	id := c.Param("id")
	if err := h.control.TriggerUnmountShare(c.Request.Context(), id); err != nil {
		if s, ok := h.shares.Get(id); ok {
			h.logger.Warn("unmount request failed", "id", id, "error", err)
			h.sendSuccess(c, http.StatusOK, s)
			return
		}
		h.sendError(c, err)
		return
	}
	s, _ := h.shares.Get(id)
	h.sendSuccess(c, http.StatusOK, s)
}

func (h *ShareHandler) mountAll(c *gin.Context) {
	h.control.TriggerMount(c.Request.Context())
	h.sendSuccess(c, http.StatusOK, h.shares.List())
}

func (h *ShareHandler) unmountAll(c *gin.Context) {
	h.control.TriggerUnmount(c.Request.Context())
	h.sendSuccess(c, http.StatusOK, h.shares.List())
}

func (h *ShareHandler) listEvents(c *gin.Context) {
	if h.bus == nil {
		h.sendSuccess(c, http.StatusOK, []events.Event{})
		return
	}
	h.sendSuccess(c, http.StatusOK, h.bus.Recent())
}

func (h *ShareHandler) listProfiles(c *gin.Context) {
	if h.profiles == nil {
		h.sendSuccess(c, http.StatusOK, []accounts.Profile{})
		return
	}
	h.sendSuccess(c, http.StatusOK, h.profiles.List())
}

func (h *ShareHandler) sendSuccess(c *gin.Context, statusCode int, result interface{}) {
	c.JSON(statusCode, APIResponse{Success: true, Result: result})
}

func (h *ShareHandler) sendError(c *gin.Context, err error) {
	response := APIResponse{Success: false}

	if me, ok := err.(*errors.MooredError); ok {
		response.Error = &APIError{
			Code:    int(me.Code),
			Domain:  string(me.Domain),
			Message: me.Message,
			Details: me.Details,
			Meta:    me.Metadata,
		}
		c.JSON(me.HTTPStatus, response)
		return
	}

	response.Error = &APIError{
		Code:    http.StatusInternalServerError,
		Domain:  string(errors.DomainShares),
		Message: "Internal server error",
		Details: err.Error(),
	}
	c.JSON(http.StatusInternalServerError, response)
}
