// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graphview

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/depscope/depscope/services/graphview/graph"
)

// RegisterRoutes mounts the graphview API under the given group with
// request tracing enabled.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	registerValidators()
	rg.Use(otelgin.Middleware("depscope.graphview"))

	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.HandleCreateSession)
		sessions.DELETE("/:id", h.HandleDeleteSession)

		sessions.POST("/:id/ingest", h.HandleIngest)
		sessions.POST("/:id/ingest/stream", h.HandleIngestStream)
		sessions.POST("/:id/ingest/file", h.HandleIngestFile)
		sessions.POST("/:id/ingest/replay", h.HandleReplay)

		sessions.GET("/:id/stream", h.HandleStream)
		sessions.GET("/:id/view", h.HandleView)

		sessions.GET("/:id/nodes/:node_id", h.HandleNode)
		sessions.GET("/:id/edges", h.HandleEdges)
		sessions.GET("/:id/files", h.HandleNodesByFile)
		sessions.GET("/:id/categories", h.HandleNodesByCategory)
		sessions.POST("/:id/connected", h.HandleConnected)
		sessions.POST("/:id/search", h.HandleSearch)

		sessions.GET("/:id/health", h.HandleHealth)
		sessions.POST("/:id/impact", h.HandleImpact)
		sessions.POST("/:id/impact/bulk", h.HandleImpactBulk)

		sessions.POST("/:id/select", h.HandleSelect)
		sessions.GET("/:id/select", h.HandleSelection)
		sessions.DELETE("/:id/select", h.HandleClearSelection)

		sessions.GET("/:id/stats", h.HandleStats)
		sessions.GET("/:id/export", h.HandleExport)
	}
}

// registerValidators installs the category binding rule used by search
// requests. Safe to call more than once.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "unknown" || graph.ParseCategory(s) != graph.CategoryUnknown
	})
}
