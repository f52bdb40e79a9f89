// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"sort"
)

// Enhancement constants.
const (
	// connectedFilesDepth bounds the per-node BFS that collects the files a
	// node is structurally coupled to. Depth 2 covers "my neighbors and the
	// things they touch" without walking the whole graph.
	connectedFilesDepth = 2

	// Importance bucket boundaries for render priority.
	highPriorityCutoff   = 0.66
	mediumPriorityCutoff = 0.33
)

// EnhanceAll computes the full derived metric set for every node.
//
// Description:
//
//	For each node: in/out degree, total connections, a normalized
//	importance score, a connected-files set from a depth-bounded BFS, and
//	the discretized render priority. Importance weighs incoming edges
//	double (being depended on indicates structural centrality) and is
//	normalized by the graph maximum, so scores land in [0,1] and are a
//	monotonic function of the current edge set.
//
//	This is the expensive per-node pass the metrics worker parallelizes.
//	Callers that need only a slice of nodes use enhanceRange.
func (g *Graph) EnhanceAll() map[string]*EnhancedNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enhanceRangeLocked(g.nodeOrder)
}

// enhanceRangeLocked computes metrics for the given node IDs. Normalization
// still uses the whole-graph maximum so partial passes agree with full ones.
func (g *Graph) enhanceRangeLocked(ids []string) map[string]*EnhancedNode {
	maxRaw := 0
	for id := range g.nodes {
		raw := len(g.incoming[id])*2 + len(g.outgoing[id])
		if raw > maxRaw {
			maxRaw = raw
		}
	}

	result := make(map[string]*EnhancedNode, len(ids))
	for _, id := range ids {
		node, ok := g.nodes[id]
		if !ok {
			continue
		}
		in := len(g.incoming[id])
		out := len(g.outgoing[id])
		raw := in*2 + out

		score := 0.0
		if maxRaw > 0 {
			score = float64(raw) / float64(maxRaw)
		}

		enhanced := &EnhancedNode{
			Node:             *node,
			InDegree:         in,
			OutDegree:        out,
			TotalConnections: in + out,
			ImportanceScore:  score,
			ConnectedFiles:   g.connectedFilesLocked(id),
			RenderPriority:   renderPriorityFor(node.Category, score),
		}
		result[id] = enhanced
	}
	return result
}

// connectedFilesLocked collects distinct files reachable within
// connectedFilesDepth hops in either direction, excluding the node's own file.
func (g *Graph) connectedFilesLocked(id string) []string {
	own := ""
	if n, ok := g.nodes[id]; ok {
		own = n.File
	}

	seen := map[string]bool{id: true}
	files := make(map[string]bool)
	frontier := []string{id}

	for depth := 0; depth < connectedFilesDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, cur := range frontier {
			for _, e := range g.outgoing[cur] {
				next = visitFile(g, e.Target, own, seen, files, next)
			}
			for _, e := range g.incoming[cur] {
				next = visitFile(g, e.Source, own, seen, files, next)
			}
		}
		frontier = next
	}

	result := make([]string, 0, len(files))
	for f := range files {
		result = append(result, f)
	}
	sort.Strings(result)
	return result
}

func visitFile(g *Graph, id, own string, seen, files map[string]bool, next []string) []string {
	if seen[id] {
		return next
	}
	seen[id] = true
	if n, ok := g.nodes[id]; ok {
		if n.File != "" && n.File != own {
			files[n.File] = true
		}
		next = append(next, id)
	}
	return next
}

// renderPriorityFor buckets importance into draw sizes. Modules are always
// at least medium so file-level structure stays visible when zoomed out.
func renderPriorityFor(cat Category, score float64) RenderPriority {
	switch {
	case score >= highPriorityCutoff:
		return RenderHigh
	case score >= mediumPriorityCutoff || cat == CategoryModule:
		return RenderMedium
	default:
		return RenderLow
	}
}
