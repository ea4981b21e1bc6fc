// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ryanrahmadifa/e2RTLedger/services/api/handlers"
)

// SetupRoutes wires the ingestion API onto the router.
func SetupRoutes(router *gin.Engine, deps *handlers.Deps, enableMetrics bool) {
	deps.Normalize()

	router.GET("/healthz", handlers.Health(deps))
	router.GET("/version", handlers.Version(deps))
	if enableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/documents", handlers.SubmitDocument(deps))
		v1.POST("/documents/text", handlers.SubmitText(deps))
		v1.GET("/tasks/:id", handlers.TaskStatus(deps))
		v1.GET("/ledger", handlers.ListLedger(deps))
		v1.GET("/claims/:fingerprint", handlers.ClaimStatus(deps))
	}
}
