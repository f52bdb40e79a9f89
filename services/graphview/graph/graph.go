// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"sync"
	"time"
)

// edgeKey identifies an edge for deduplication. Two edges with the same
// (source, target) pair are the same edge regardless of relationship.
type edgeKey struct {
	source string
	target string
}

// Graph is the incrementally assembled code-dependency graph.
//
// Description:
//
//	Nodes and edges arrive in chunks and are merged idempotently: a node
//	whose ID already exists is a no-op, as is an edge whose (source,target)
//	pair already exists. Four secondary views are maintained in O(1)
//	amortized update: id->node, file->nodes, category->nodes, and the
//	outgoing/incoming adjacency maps used by every traversal.
//
//	Edges may reference nodes that have not arrived yet (the transport
//	attaches an edge to every chunk containing either endpoint). Such edges
//	are retained in the edge list but excluded from adjacency until both
//	endpoints exist; a pending table re-links them as nodes arrive.
//
// Thread Safety:
//
//	Safe for concurrent use. There is exactly one writer (the merge loop);
//	readers take the read lock and always observe a consistent snapshot
//	between merges.
//
// Lifecycle:
//
//	Starts empty, populated progressively by Merge, and marked complete by
//	Complete() once the terminal chunk is seen. Completion rejects further
//	merges but is otherwise advisory: derived reports are always computed
//	against the latest merged state.
type Graph struct {
	mu sync.RWMutex

	nodes     map[string]*Node
	nodeOrder []string

	edges    []*Edge
	edgeSeen map[edgeKey]struct{}

	byFile     map[string][]*Node
	byCategory map[Category][]*Node

	outgoing map[string][]*Edge
	incoming map[string][]*Edge

	// pending maps a missing node ID to edges waiting on it.
	pending map[string][]*Edge

	// metrics is the latest EnhancedNode set, replaced wholesale by
	// ApplyMetrics after each recompute. Never patched in place.
	metrics map[string]*EnhancedNode

	complete        bool
	completedAtUnix int64

	expectedNodes int
	expectedEdges int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		edgeSeen:   make(map[edgeKey]struct{}),
		byFile:     make(map[string][]*Node),
		byCategory: make(map[Category][]*Node),
		outgoing:   make(map[string][]*Edge),
		incoming:   make(map[string][]*Edge),
		pending:    make(map[string][]*Edge),
	}
}

// SetExpected records the totals announced by a metadata preamble.
func (g *Graph) SetExpected(nodes, edges int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expectedNodes = nodes
	g.expectedEdges = edges
}

// Expected returns the totals announced by the metadata preamble, zero if
// no preamble was seen.
func (g *Graph) Expected() (nodes, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.expectedNodes, g.expectedEdges
}

// Merge adds a batch of nodes and edges to the graph.
//
// Description:
//
//	Idempotent and incremental. Duplicate nodes (by ID) and duplicate edges
//	(by source/target pair) are silently skipped, so replaying a chunk
//	yields a graph identical to merging it once.
//
// Outputs:
//
//	addedNodes, addedEdges - counts actually merged (duplicates excluded).
//	error - ErrGraphComplete if the terminal chunk was already applied.
func (g *Graph) Merge(nodes []Node, edges []Edge) (addedNodes, addedEdges int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.complete {
		return 0, 0, ErrGraphComplete
	}

	for i := range nodes {
		if g.addNodeLocked(&nodes[i]) {
			addedNodes++
		}
	}
	for i := range edges {
		if g.addEdgeLocked(&edges[i]) {
			addedEdges++
		}
	}
	return addedNodes, addedEdges, nil
}

// addNodeLocked inserts a node and updates the secondary views.
// Returns false if the ID already exists.
func (g *Graph) addNodeLocked(n *Node) bool {
	if n.ID == "" {
		return false
	}
	if _, exists := g.nodes[n.ID]; exists {
		return false
	}

	stored := *n
	node := &stored
	g.nodes[node.ID] = node
	g.nodeOrder = append(g.nodeOrder, node.ID)

	if node.File != "" {
		g.byFile[node.File] = append(g.byFile[node.File], node)
	}
	g.byCategory[node.Category] = append(g.byCategory[node.Category], node)

	// Re-link edges that were waiting on this node.
	waiting := g.pending[node.ID]
	if len(waiting) > 0 {
		delete(g.pending, node.ID)
		for _, e := range waiting {
			g.linkEdgeLocked(e)
		}
	}
	return true
}

// addEdgeLocked inserts an edge, deduplicating by (source, target).
// Returns false for duplicates and self-referential empty IDs.
func (g *Graph) addEdgeLocked(e *Edge) bool {
	if e.Source == "" || e.Target == "" {
		return false
	}
	key := edgeKey{source: e.Source, target: e.Target}
	if _, seen := g.edgeSeen[key]; seen {
		return false
	}

	stored := *e
	edge := &stored
	g.edgeSeen[key] = struct{}{}
	g.edges = append(g.edges, edge)
	g.linkEdgeLocked(edge)
	return true
}

// linkEdgeLocked attaches an edge to the adjacency maps if both endpoints
// exist, otherwise parks it in the pending table.
func (g *Graph) linkEdgeLocked(e *Edge) {
	_, srcOK := g.nodes[e.Source]
	_, dstOK := g.nodes[e.Target]

	if srcOK && dstOK {
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
		g.incoming[e.Target] = append(g.incoming[e.Target], e)
		return
	}

	// Park under exactly one missing endpoint. When that node arrives
	// the re-link parks again under the other endpoint if it is still
	// absent, so an edge can never sit in two pending lists and get
	// linked twice.
	if !srcOK {
		g.pending[e.Source] = append(g.pending[e.Source], e)
		return
	}
	g.pending[e.Target] = append(g.pending[e.Target], e)
}

// Complete marks the graph as fully assembled.
//
// Further merges return ErrGraphComplete. Idempotent.
func (g *Graph) Complete() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.complete {
		return
	}
	g.complete = true
	g.completedAtUnix = time.Now().UnixMilli()
}

// IsComplete reports whether the terminal chunk has been applied.
func (g *Graph) IsComplete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.complete
}

// NodeCount returns the number of unique nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of deduplicated edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// GetNode retrieves a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// GetNodesByFile returns the nodes declared in the given file.
func (g *Graph) GetNodesByFile(path string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyNodes(g.byFile[path])
}

// GetNodesByCategory returns the nodes of the given category.
func (g *Graph) GetNodesByCategory(cat Category) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyNodes(g.byCategory[cat])
}

// GetEdges returns edges matching the given endpoints. Empty source or
// target acts as a wildcard.
func (g *Graph) GetEdges(source, target string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Edge, 0)
	for _, e := range g.edges {
		if source != "" && e.Source != source {
			continue
		}
		if target != "" && e.Target != target {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		result = append(result, g.nodes[id])
	}
	return result
}

// Edges returns a copy of the edge list.
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Edge, len(g.edges))
	copy(result, g.edges)
	return result
}

// Outgoing returns the outgoing adjacency for a node. The returned slice
// must not be modified.
func (g *Graph) Outgoing(id string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.outgoing[id]
}

// Incoming returns the incoming adjacency for a node. The returned slice
// must not be modified.
func (g *Graph) Incoming(id string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.incoming[id]
}

// Degree returns (inDegree, outDegree) for a node, counting only edges
// with both endpoints present.
func (g *Graph) Degree(id string) (in, out int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.incoming[id]), len(g.outgoing[id])
}

// RemoveFile removes every node declared in the given file along with all
// edges touching those nodes. Used by watch-mode re-ingest.
//
// Outputs:
//
//	int - number of nodes removed.
func (g *Graph) RemoveFile(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	doomed := make(map[string]bool)
	for _, n := range g.byFile[path] {
		doomed[n.ID] = true
	}
	if len(doomed) == 0 {
		return 0
	}

	for id := range doomed {
		node := g.nodes[id]
		delete(g.nodes, id)
		delete(g.outgoing, id)
		delete(g.incoming, id)
		delete(g.pending, id)
		g.byCategory[node.Category] = dropNodes(g.byCategory[node.Category], doomed)
	}
	delete(g.byFile, path)

	g.nodeOrder = dropIDs(g.nodeOrder, doomed)

	kept := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if doomed[e.Source] || doomed[e.Target] {
			delete(g.edgeSeen, edgeKey{source: e.Source, target: e.Target})
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept

	for id, adj := range g.outgoing {
		g.outgoing[id] = dropEdges(adj, doomed)
	}
	for id, adj := range g.incoming {
		g.incoming[id] = dropEdges(adj, doomed)
	}

	// Reopen for merging: a file-level rescan follows a removal.
	g.complete = false
	return len(doomed)
}

// ApplyMetrics replaces the derived EnhancedNode set wholesale.
func (g *Graph) ApplyMetrics(metrics map[string]*EnhancedNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.metrics = metrics
}

// Metrics returns the latest EnhancedNode for a node, nil if metrics have
// not been computed since the last structural change.
func (g *Graph) Metrics(id string) *EnhancedNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metrics[id]
}

// AllMetrics returns the latest EnhancedNode set. The returned map must
// not be modified.
func (g *Graph) AllMetrics() map[string]*EnhancedNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metrics
}

// Importance returns the latest importance score for a node, 0 if unknown.
func (g *Graph) Importance(id string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if m, ok := g.metrics[id]; ok {
		return m.ImportanceScore
	}
	return 0
}

// Stats summarizes the assembled graph.
type Stats struct {
	// TotalNodes and TotalEdges are the merged counts.
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`

	// AverageConnections is mean total degree across nodes.
	AverageConnections float64 `json:"average_connections"`

	// MaxConnections is the highest total degree of any node.
	MaxConnections int `json:"max_connections"`

	// FileCount is the number of distinct files with at least one node.
	FileCount int `json:"file_count"`

	// CategoryStats counts nodes per category.
	CategoryStats map[string]int `json:"category_stats"`

	// RelationshipStats counts edges per relationship kind.
	RelationshipStats map[string]int `json:"relationship_stats"`

	// Complete reports whether the terminal chunk has been applied.
	Complete bool `json:"complete"`
}

// Stats computes summary statistics over the current snapshot.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{
		TotalNodes:        len(g.nodes),
		TotalEdges:        len(g.edges),
		FileCount:         len(g.byFile),
		CategoryStats:     make(map[string]int),
		RelationshipStats: make(map[string]int),
		Complete:          g.complete,
	}

	totalDegree := 0
	for id := range g.nodes {
		degree := len(g.incoming[id]) + len(g.outgoing[id])
		totalDegree += degree
		if degree > stats.MaxConnections {
			stats.MaxConnections = degree
		}
	}
	if len(g.nodes) > 0 {
		stats.AverageConnections = float64(totalDegree) / float64(len(g.nodes))
	}
	for cat, nodes := range g.byCategory {
		if len(nodes) > 0 {
			stats.CategoryStats[cat.String()] = len(nodes)
		}
	}
	for _, e := range g.edges {
		stats.RelationshipStats[e.Relationship.String()]++
	}
	return stats
}

// Clone returns a deep copy sharing no mutable state with the receiver.
//
// Description:
//
//	Nodes and edges are copied, and every secondary view is rebuilt
//	against the copies, so analyzers can hold a stable snapshot while
//	the original keeps merging. The clone is always reopened: merging
//	into it succeeds even when the original is complete.
//
// Thread Safety:
//
//	The returned graph is independent and needs no coordination with
//	the receiver.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := New()
	clone.nodeOrder = append([]string(nil), g.nodeOrder...)
	clone.expectedNodes = g.expectedNodes
	clone.expectedEdges = g.expectedEdges

	for _, id := range g.nodeOrder {
		stored := *g.nodes[id]
		node := &stored
		clone.nodes[id] = node
		if node.File != "" {
			clone.byFile[node.File] = append(clone.byFile[node.File], node)
		}
		clone.byCategory[node.Category] = append(clone.byCategory[node.Category], node)
	}

	for _, e := range g.edges {
		stored := *e
		edge := &stored
		clone.edges = append(clone.edges, edge)
		clone.edgeSeen[edgeKey{source: edge.Source, target: edge.Target}] = struct{}{}
		clone.linkEdgeLocked(edge)
	}

	if g.metrics != nil {
		clone.metrics = make(map[string]*EnhancedNode, len(g.metrics))
		for id, m := range g.metrics {
			copied := *m
			clone.metrics[id] = &copied
		}
	}
	return clone
}

func copyNodes(nodes []*Node) []*Node {
	if len(nodes) == 0 {
		return []*Node{}
	}
	result := make([]*Node, len(nodes))
	copy(result, nodes)
	return result
}

func dropNodes(nodes []*Node, doomed map[string]bool) []*Node {
	kept := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if !doomed[n.ID] {
			kept = append(kept, n)
		}
	}
	return kept
}

func dropEdges(edges []*Edge, doomed map[string]bool) []*Edge {
	kept := make([]*Edge, 0, len(edges))
	for _, e := range edges {
		if !doomed[e.Source] && !doomed[e.Target] {
			kept = append(kept, e)
		}
	}
	return kept
}

func dropIDs(ids []string, doomed map[string]bool) []string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if !doomed[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
