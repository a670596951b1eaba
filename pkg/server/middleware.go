// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stratastor/logger"

	"github.com/moorfs/moored/pkg/errors"
)

// LoggerMiddleware logs each control-API request with a correlation id.
// Health probes are skipped so the periodic status checks from the CLI
// and menu-bar app don't drown out real traffic.
func LoggerMiddleware(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-Id", requestID)
		}
		c.Set("request_id", requestID)

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, "query", q)
		}
		for _, ginErr := range c.Errors {
			if me, ok := ginErr.Err.(*errors.MooredError); ok {
				fields = append(fields,
					"error_code", int(me.Code),
					"error_domain", string(me.Domain),
					"error", me.Message)
			} else {
				fields = append(fields, "error", ginErr.Error())
			}
		}

		switch {
		case status >= 500:
			l.Error("request failed", fields...)
		case status >= 400:
			l.Warn("request rejected", fields...)
		default:
			l.Info("request", fields...)
		}
	}
}
