// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moorfs/moored/pkg/errors"
)

// APIError writes a structured error response and aborts the handler chain.
func APIError(c *gin.Context, err error) {
	if me, ok := err.(*errors.MooredError); ok {
		c.JSON(me.HTTPStatus, gin.H{
			"error": gin.H{
				"code":      me.Code,
				"domain":    me.Domain,
				"message":   me.Message,
				"details":   me.Details,
				"metadata":  me.Metadata,
				"timestamp": time.Now().Format(time.RFC3339),
			},
		})
	} else {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"message":   err.Error(),
				"timestamp": time.Now().Format(time.RFC3339),
			},
		})
	}
	c.Abort()
}
