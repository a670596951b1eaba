// Copyright 2025 The Moored Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"

	"github.com/moorfs/moored/internal/constants"
	"github.com/moorfs/moored/pkg/api"
)

func registerShareRoutes(engine *gin.Engine, deps Deps, l logger.Logger) {
	handler := api.NewShareHandler(deps.Shares, deps.Control, deps.Profiles, deps.Bus, l)

	v1 := engine.Group(constants.APIBase)
	{
		handler.RegisterRoutes(v1)
	}
}
