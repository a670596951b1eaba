// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

// The control API runs on gin's engine wrapped in an http.Server rather
// than gin.Run(): the wrapper gives us graceful shutdown and ties the
// listener's lifetime to the daemon context handled by the lifecycle
// package.

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"

	"github.com/moorfs/moored/config"
	"github.com/moorfs/moored/internal/common"
	"github.com/moorfs/moored/internal/events"
	"github.com/moorfs/moored/pkg/accounts"
	"github.com/moorfs/moored/pkg/activity"
	"github.com/moorfs/moored/pkg/errors"
	"github.com/moorfs/moored/pkg/health"
	"github.com/moorfs/moored/pkg/share"
)

// Deps carries the collaborators the API serves. Everything is handed
// in; the server owns no domain state.
type Deps struct {
	Shares   *share.Manager
	Control  *activity.Controller
	Profiles *accounts.Manager
	Bus      *events.Bus
	Health   *health.Checker
}

// Start runs the control API until the context is cancelled. It only
// listens on loopback: the API manages the local user's mounts and has
// no business being reachable from the network.
func Start(ctx context.Context, deps Deps, port int) error {
	l, err := logger.NewTag(config.NewLoggerConfig(config.GetConfig()), "server")
	if err != nil {
		return err
	}
	cfg := config.GetConfig()

	switch cfg.Environment {
	case "prod", "production":
		gin.SetMode(gin.ReleaseMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(l))

	engine.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
			return
		}
		c.JSON(http.StatusOK, deps.Health.Report())
	})

	engine.NoRoute(func(c *gin.Context) {
		common.APIError(c, errors.New(errors.ServerRouteNotFound, c.Request.URL.Path))
	})

	registerShareRoutes(engine, deps, l)

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	l.Info("control API listening", "addr", srv.Addr)

	select {
	case err := <-errChan:
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}
