// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
)

// Traversal configuration limits.
const (
	// MaxTraversalDepth is the ceiling applied to requested depths.
	MaxTraversalDepth = 100

	// contextCheckInterval is how many dequeues pass between context checks.
	contextCheckInterval = 128
)

// Connection describes one node reached by ConnectedNodes.
type Connection struct {
	// Node is the reached node.
	Node *Node `json:"node"`

	// Depth is the shortest discovered hop count from the origin (>= 1).
	Depth int `json:"depth"`

	// Path is the relationship-label trail from the origin to this node.
	// Hops taken against edge direction carry a " (reverse)" suffix.
	Path []string `json:"path"`
}

// ConnectedNodes returns every node within maxDepth hops of the origin,
// traversing the union of outgoing and incoming adjacency.
//
// Description:
//
//	Breadth-first search. Depth 0 is the origin itself and is excluded from
//	the result set, so maxDepth <= 0 always yields an empty slice. Each
//	reached node reports its shortest discovered depth and the relationship
//	path that discovered it first. Ties at equal depth resolve by adjacency
//	insertion order (outgoing before incoming), which is deterministic for
//	a fixed merge order.
//
// Inputs:
//
//	ctx - Cancellation. Checked periodically; a cancelled traversal
//	      returns the portion discovered so far with no error.
//	id - Origin node ID.
//	maxDepth - Hop limit, clamped to MaxTraversalDepth. Negative values
//	      mean unbounded (clamped likewise).
//
// Errors:
//
//	ErrNodeNotFound - origin is not in the graph.
func (g *Graph) ConnectedNodes(ctx context.Context, id string, maxDepth int) ([]Connection, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return nil, ErrNodeNotFound
	}

	if maxDepth < 0 || maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}
	result := make([]Connection, 0)
	if maxDepth == 0 {
		return result, nil
	}

	type queued struct {
		id    string
		depth int
		path  []string
	}

	visited := map[string]bool{id: true}
	queue := []queued{{id: id, depth: 0, path: nil}}
	steps := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		steps++
		if steps%contextCheckInterval == 0 && ctx.Err() != nil {
			break
		}
		if cur.depth >= maxDepth {
			continue
		}

		// Outgoing first, then incoming: fixed order keeps equal-depth
		// discovery deterministic.
		for _, e := range g.outgoing[cur.id] {
			next := e.Target
			if visited[next] {
				continue
			}
			visited[next] = true
			path := appendPath(cur.path, e.Relationship.String())
			result = append(result, Connection{Node: g.nodes[next], Depth: cur.depth + 1, Path: path})
			queue = append(queue, queued{id: next, depth: cur.depth + 1, path: path})
		}
		for _, e := range g.incoming[cur.id] {
			next := e.Source
			if visited[next] {
				continue
			}
			visited[next] = true
			path := appendPath(cur.path, e.Relationship.String()+" (reverse)")
			result = append(result, Connection{Node: g.nodes[next], Depth: cur.depth + 1, Path: path})
			queue = append(queue, queued{id: next, depth: cur.depth + 1, path: path})
		}
	}
	return result, nil
}

// appendPath copies the parent path and appends one label. Paths are shared
// across queue entries, so the copy is required.
func appendPath(parent []string, label string) []string {
	path := make([]string, 0, len(parent)+1)
	path = append(path, parent...)
	path = append(path, label)
	return path
}
