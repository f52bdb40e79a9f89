// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"sort"

	"github.com/depscope/depscope/services/graphview/graph"
)

// categoryPriority orders categories for priority loading. Lower values
// load first; structural nodes (modules, classes) give the consumer a
// skeleton before the function bodies arrive.
var categoryPriority = map[graph.Category]int{
	graph.CategoryModule:         1,
	graph.CategoryClass:          2,
	graph.CategoryFunction:       3,
	graph.CategoryMethod:         3,
	graph.CategoryExternalSymbol: 4,
	graph.CategoryDirectory:      5,
	graph.CategoryUnknown:        6,
}

// Chunker splits a node/edge set into ordered transport chunks.
type Chunker struct {
	size     int
	priority bool
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the nodes-per-chunk target, clamped to
// [MinChunkSize, MaxChunkSize].
func WithChunkSize(n int) ChunkerOption {
	return func(c *Chunker) {
		c.size = clampChunkSize(n)
	}
}

// WithPriorityOrdering toggles category-priority ordering. Enabled by
// default; disabling preserves the caller's node order.
func WithPriorityOrdering(enabled bool) ChunkerOption {
	return func(c *Chunker) {
		c.priority = enabled
	}
}

// NewChunker creates a Chunker with the given options.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{size: DefaultChunkSize, priority: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunks produces the full chunk sequence for the given graph data: the
// metadata preamble followed by data chunks. The terminal frame is a
// wire concern and is emitted by the stream writer, not included here.
func (c *Chunker) Chunks(nodes []graph.Node, edges []graph.Edge) []*Chunk {
	ordered := nodes
	if c.priority {
		ordered = make([]graph.Node, len(nodes))
		copy(ordered, nodes)
		sort.SliceStable(ordered, func(i, j int) bool {
			pi := priorityFor(ordered[i].Category)
			pj := priorityFor(ordered[j].Category)
			if pi != pj {
				return pi < pj
			}
			return len(ordered[i].Name) < len(ordered[j].Name)
		})
	}

	total := len(ordered)
	totalChunks := (total + c.size - 1) / c.size

	chunks := make([]*Chunk, 0, totalChunks+1)
	chunks = append(chunks, &Chunk{
		ChunkID:     PreambleChunkID,
		TotalChunks: totalChunks,
		Metadata: &Metadata{
			TotalNodes: total,
			TotalEdges: len(edges),
			ChunkSize:  c.size,
		},
	})

	emitted := 0
	for id := 0; id < totalChunks; id++ {
		start := id * c.size
		end := start + c.size
		if end > total {
			end = total
		}
		members := ordered[start:end]
		emitted += len(members)

		chunks = append(chunks, &Chunk{
			ChunkID:     id,
			Nodes:       members,
			Edges:       incidentEdges(members, edges),
			TotalChunks: totalChunks,
			Progress:    float64(emitted) / float64(total),
			IsFinal:     id == totalChunks-1,
		})
	}
	return chunks
}

// incidentEdges returns every edge with either endpoint in the member
// set. Edges spanning two chunks appear in both.
func incidentEdges(members []graph.Node, edges []graph.Edge) []graph.Edge {
	ids := make(map[string]struct{}, len(members))
	for i := range members {
		ids[members[i].ID] = struct{}{}
	}

	var incident []graph.Edge
	for _, e := range edges {
		if _, ok := ids[e.Source]; ok {
			incident = append(incident, e)
			continue
		}
		if _, ok := ids[e.Target]; ok {
			incident = append(incident, e)
		}
	}
	return incident
}

func priorityFor(cat graph.Category) int {
	if p, ok := categoryPriority[cat]; ok {
		return p
	}
	return categoryPriority[graph.CategoryUnknown]
}

func clampChunkSize(n int) int {
	if n < MinChunkSize {
		return MinChunkSize
	}
	if n > MaxChunkSize {
		return MaxChunkSize
	}
	return n
}
