// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transport moves graphs over the wire in ordered chunks.
//
// A stream is a metadata preamble, a sequence of data chunks, and a
// terminal frame (complete or error). The producer side is Chunker and
// SSEWriter, the consumer side is StreamReader, and Spool keeps the raw
// chunks of a session for replay.
package transport

import "github.com/depscope/depscope/services/graphview/graph"

const (
	// MinChunkSize and MaxChunkSize bound the nodes-per-chunk setting;
	// values outside the range are clamped, not rejected.
	MinChunkSize = 50
	MaxChunkSize = 500

	// DefaultChunkSize is used when no chunk size is configured.
	DefaultChunkSize = 200

	// PreambleChunkID marks the metadata-only chunk that precedes data
	// chunks. Consumers must not merge its (empty) node and edge sets.
	PreambleChunkID = -1
)

// Metadata is carried by the preamble chunk so consumers can size
// buffers and report progress before the first data chunk lands.
type Metadata struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
	ChunkSize  int `json:"chunk_size"`
}

// Chunk is one transport unit. Edges are attached to every chunk whose
// node set contains either endpoint, so an edge can appear in more than
// one chunk and consumers deduplicate on merge.
type Chunk struct {
	ChunkID     int          `json:"chunk_id"`
	Nodes       []graph.Node `json:"nodes"`
	Edges       []graph.Edge `json:"edges"`
	TotalChunks int          `json:"total_chunks"`
	// Progress is cumulative nodes emitted over total nodes, in [0,1].
	Progress float64   `json:"progress"`
	IsFinal  bool      `json:"is_final"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// IsPreamble reports whether the chunk is the metadata preamble.
func (c *Chunk) IsPreamble() bool {
	return c.ChunkID == PreambleChunkID
}

// Terminal frame types on the wire. Data chunks carry no type field.
const (
	frameComplete = "complete"
	frameError    = "error"
)

// envelope distinguishes terminal frames from data chunks. A data chunk
// decodes with an empty Type.
type envelope struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}
