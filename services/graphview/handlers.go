// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graphview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/depscope/depscope/services/graphview/graph"
	"github.com/depscope/depscope/services/graphview/impact"
	"github.com/depscope/depscope/services/graphview/render"
	"github.com/depscope/depscope/services/graphview/transport"
)

// Handlers binds the service to gin. One instance serves all routes.
type Handlers struct {
	service *Service
	logger  *slog.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(service *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// getOrCreateRequestID propagates the caller's X-Request-ID or mints
// one, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}

func (h *Handlers) requestLogger(c *gin.Context) *slog.Logger {
	return h.logger.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("path", c.FullPath()))
}

// respondError maps domain sentinels onto HTTP status codes with a
// stable machine-readable code.
func (h *Handlers) respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, ErrSessionNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, graph.ErrNodeNotFound):
		status, code = http.StatusNotFound, "node_not_found"
	case errors.Is(err, graph.ErrEmptyGraph):
		status, code = http.StatusBadRequest, "empty_graph"
	case errors.Is(err, ErrNoSelection):
		status, code = http.StatusNotFound, "no_selection"
	case errors.Is(err, impact.ErrUnknownChangeType),
		errors.Is(err, impact.ErrNoTargets):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, graph.ErrGraphComplete):
		status, code = http.StatusConflict, "graph_complete"
	case errors.Is(err, ErrIngestInProgress):
		status, code = http.StatusConflict, "ingest_in_progress"
	case errors.Is(err, ErrTooManySessions):
		status, code = http.StatusTooManyRequests, "too_many_sessions"
	case errors.Is(err, transport.ErrUpstreamStatus),
		errors.Is(err, transport.ErrMalformedChunk),
		errors.Is(err, transport.ErrErrorFrame),
		errors.Is(err, transport.ErrTruncatedStream):
		status, code = http.StatusBadGateway, "upstream_stream_failed"
	case errors.Is(err, graph.ErrWorkerUnavailable),
		errors.Is(err, transport.ErrSpoolClosed),
		errors.Is(err, ErrWatcherUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, graph.ErrRequestTimeout),
		errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Warn("request rejected",
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func (h *Handlers) respondBindError(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("malformed request body", slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: fmt.Sprintf("invalid request: %v", err),
		Code:  "invalid_request",
	})
}

// HandleCreateSession opens a new graph session.
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	logger := h.requestLogger(c)
	resp, err := h.service.CreateSession()
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleDeleteSession closes a session.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	logger := h.requestLogger(c)
	if err := h.service.DeleteSession(c.Param("id")); err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleIngest merges a direct graph payload.
func (h *Handlers) HandleIngest(c *gin.Context) {
	logger := h.requestLogger(c)
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, logger, err)
		return
	}
	resp, err := h.service.Ingest(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	logger.Info("payload ingested",
		slog.Int("nodes_added", resp.NodesAdded),
		slog.Int("edges_added", resp.EdgesAdded))
	c.JSON(http.StatusOK, resp)
}

// HandleIngestStream consumes an upstream SSE chunk stream.
func (h *Handlers) HandleIngestStream(c *gin.Context) {
	logger := h.requestLogger(c)
	var req StreamIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, logger, err)
		return
	}
	resp, err := h.service.IngestStream(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleIngestFile loads a graph payload from disk, optionally
// watching it for changes.
func (h *Handlers) HandleIngestFile(c *gin.Context) {
	logger := h.requestLogger(c)
	var req FileIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, logger, err)
		return
	}
	resp, err := h.service.IngestFile(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleReplay re-applies spooled stream chunks to the session.
func (h *Handlers) HandleReplay(c *gin.Context) {
	logger := h.requestLogger(c)
	resp, err := h.service.ReplayChunks(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStream serves the session graph as a chunked SSE stream. An
// optional chunk_size query overrides the configured size.
func (h *Handlers) HandleStream(c *gin.Context) {
	logger := h.requestLogger(c)

	chunkSize := 0
	if raw := c.Query("chunk_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondBindError(c, logger, fmt.Errorf("chunk_size must be a non-negative integer"))
			return
		}
		chunkSize = n
	}

	chunks, err := h.service.StreamChunks(c.Param("id"), chunkSize)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	transport.SetSSEHeaders(c.Writer)
	writer, err := transport.NewSSEWriter(c.Writer)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	ctx := c.Request.Context()
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			logger.Debug("stream client disconnected")
			return
		default:
		}
		if err := writer.WriteChunk(chunk); err != nil {
			logger.Warn("stream write failed", slog.String("error", err.Error()))
			return
		}
	}
	if err := writer.WriteComplete(); err != nil {
		logger.Warn("stream completion write failed", slog.String("error", err.Error()))
	}
}

// HandleView upgrades to a websocket and serves interactive frames.
func (h *Handlers) HandleView(c *gin.Context) {
	logger := h.requestLogger(c)
	sess, err := h.service.Session(c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	ctx := c.Request.Context()
	view := render.NewViewSession(sess.Graph, sess.Renderer(ctx), sess.Viewport(ctx), logger)
	view.Serve(c.Writer, c.Request)
}

// HandleNode returns one node by id.
func (h *Handlers) HandleNode(c *gin.Context) {
	logger := h.requestLogger(c)
	node, err := h.service.Node(c.Param("id"), c.Param("node_id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// HandleEdges returns edges filtered by optional source and target
// query parameters.
func (h *Handlers) HandleEdges(c *gin.Context) {
	logger := h.requestLogger(c)
	edges, err := h.service.Edges(c.Param("id"), c.Query("source"), c.Query("target"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges, "count": len(edges)})
}

// HandleNodesByFile returns the nodes declared in one file.
func (h *Handlers) HandleNodesByFile(c *gin.Context) {
	logger := h.requestLogger(c)
	path := c.Query("path")
	if path == "" {
		h.respondBindError(c, logger, fmt.Errorf("path query parameter is required"))
		return
	}
	nodes, err := h.service.NodesByFile(c.Param("id"), path)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "count": len(nodes)})
}

// HandleNodesByCategory returns the nodes of one category.
func (h *Handlers) HandleNodesByCategory(c *gin.Context) {
	logger := h.requestLogger(c)
	category := c.Query("category")
	if category == "" {
		h.respondBindError(c, logger, fmt.Errorf("category query parameter is required"))
		return
	}
	nodes, err := h.service.NodesByCategory(c.Param("id"), category)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "count": len(nodes)})
}

// HandleConnected walks a node's neighborhood.
func (h *Handlers) HandleConnected(c *gin.Context) {
	logger := h.requestLogger(c)
	var req ConnectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, logger, err)
		return
	}
	connections, err := h.service.Connected(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": connections, "count": len(connections)})
}

// HandleSearch runs a scored node search.
func (h *Handlers) HandleSearch(c *gin.Context) {
	logger := h.requestLogger(c)
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, logger, err)
		return
	}
	results, err := h.service.Search(c.Param("id"), &req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// HandleHealth returns the codebase health report.
func (h *Handlers) HandleHealth(c *gin.Context) {
	logger := h.requestLogger(c)
	report, err := h.service.Health(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleImpact scores a candidate change to one node.
func (h *Handlers) HandleImpact(c *gin.Context) {
	logger := h.requestLogger(c)
	var req ImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, logger, err)
		return
	}
	report, err := h.service.Impact(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleImpactBulk scores one change across several nodes.
func (h *Handlers) HandleImpactBulk(c *gin.Context) {
	logger := h.requestLogger(c)
	var req BulkImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, logger, err)
		return
	}
	report, err := h.service.ImpactBulk(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleSelect marks a node as selected and highlights it.
func (h *Handlers) HandleSelect(c *gin.Context) {
	logger := h.requestLogger(c)
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, logger, err)
		return
	}
	resp, err := h.service.Select(c.Request.Context(), c.Param("id"), req.NodeID)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSelection returns the current selection context.
func (h *Handlers) HandleSelection(c *gin.Context) {
	logger := h.requestLogger(c)
	selection, err := h.service.Selection(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, selection)
}

// HandleClearSelection drops the selection.
func (h *Handlers) HandleClearSelection(c *gin.Context) {
	logger := h.requestLogger(c)
	if err := h.service.ClearSelection(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleStats returns aggregate graph statistics.
func (h *Handlers) HandleStats(c *gin.Context) {
	logger := h.requestLogger(c)
	stats, err := h.service.Stats(c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleExport serves the session report as a JSON download.
func (h *Handlers) HandleExport(c *gin.Context) {
	logger := h.requestLogger(c)
	bundle, err := h.service.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	filename := fmt.Sprintf("depscope-%s-%s.json",
		bundle.SessionID[:8], time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.JSON(http.StatusOK, bundle)
}
