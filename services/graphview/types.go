// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graphview

import (
	"time"

	"github.com/depscope/depscope/services/graphview/graph"
	"github.com/depscope/depscope/services/graphview/health"
	"github.com/depscope/depscope/services/graphview/impact"
)

// ErrorResponse is the standard error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateSessionResponse returns the id for subsequent requests.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestRequest carries a direct graph payload.
type IngestRequest struct {
	Nodes []graph.Node `json:"nodes" binding:"required,dive"`
	Edges []graph.Edge `json:"edges"`
	// Complete marks the graph as fully delivered; further merges are
	// rejected until a file removal reopens it.
	Complete bool `json:"complete"`
}

// StreamIngestRequest points the service at an upstream SSE endpoint.
type StreamIngestRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// FileIngestRequest loads a graph payload from a local JSON file.
type FileIngestRequest struct {
	Path string `json:"path" binding:"required"`
	// Watch re-ingests the file whenever it changes on disk.
	Watch bool `json:"watch"`
	// ChunkSize overrides the chunking applied while merging. Zero
	// uses the default; out-of-range values are clamped.
	ChunkSize int `json:"chunk_size" binding:"omitempty,min=0"`
}

// IngestResponse reports what one ingest merged.
type IngestResponse struct {
	SessionID  string `json:"session_id"`
	NodesAdded int    `json:"nodes_added"`
	EdgesAdded int    `json:"edges_added"`
	TotalNodes int    `json:"total_nodes"`
	TotalEdges int    `json:"total_edges"`
	Complete   bool   `json:"complete"`
}

// SearchRequest queries nodes by name, file, code or category text.
type SearchRequest struct {
	Query      string   `json:"query" binding:"required"`
	Categories []string `json:"categories" binding:"omitempty,dive,category"`
	Limit      int      `json:"limit" binding:"omitempty,min=1,max=500"`
}

// ConnectedRequest walks the neighborhood of one node.
type ConnectedRequest struct {
	NodeID string `json:"node_id" binding:"required"`
	// Depth bounds the walk; -1 means unbounded.
	Depth int `json:"depth" binding:"omitempty,min=-1"`
}

// ImpactRequest scores a candidate change to one node.
type ImpactRequest struct {
	NodeID     string `json:"node_id" binding:"required"`
	ChangeType string `json:"change_type" binding:"required,oneof=modify refactor delete"`
}

// BulkImpactRequest scores the same change over several nodes.
type BulkImpactRequest struct {
	NodeIDs    []string `json:"node_ids" binding:"required,min=1"`
	ChangeType string   `json:"change_type" binding:"required,oneof=modify refactor delete"`
}

// SelectRequest marks one node as selected for the session.
type SelectRequest struct {
	NodeID string `json:"node_id" binding:"required"`
}

// SelectionResponse returns the selected node with its neighborhood,
// ready for highlighting.
type SelectionResponse struct {
	Node      *graph.Node        `json:"node"`
	Connected []graph.Connection `json:"connected"`
}

// ExportBundle is the downloadable report: summary statistics, the
// health report, and context for the selected node when one is set.
type ExportBundle struct {
	GeneratedAt time.Time         `json:"generated_at"`
	SessionID   string            `json:"session_id"`
	Stats       graph.Stats       `json:"stats"`
	Health      *health.Report    `json:"health,omitempty"`
	Selection   *SelectionContext `json:"selection,omitempty"`
}

// SelectionContext is the selected-node portion of an export.
type SelectionContext struct {
	Node      *graph.Node        `json:"node"`
	Connected []graph.Connection `json:"connected"`
	Impact    *impact.Report     `json:"impact,omitempty"`
}
