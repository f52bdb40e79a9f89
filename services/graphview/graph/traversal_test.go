// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"testing"
)

// chainGraph builds a->b->c->d with an extra incoming edge x->c.
func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	_, _, err := g.Merge([]Node{
		testNode("a", "a", "a.py", CategoryFunction),
		testNode("b", "b", "b.py", CategoryFunction),
		testNode("c", "c", "c.py", CategoryFunction),
		testNode("d", "d", "d.py", CategoryFunction),
		testNode("x", "x", "x.py", CategoryFunction),
	}, []Edge{
		testEdge("a", "b", RelCalls),
		testEdge("b", "c", RelCalls),
		testEdge("c", "d", RelCalls),
		testEdge("x", "c", RelImportsSymbol),
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	return g
}

func TestConnectedNodes_DepthZero(t *testing.T) {
	g := chainGraph(t)
	conns, err := g.ConnectedNodes(context.Background(), "b", 0)
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if len(conns) != 0 {
		t.Errorf("depth 0 must return the empty set, got %d", len(conns))
	}
}

func TestConnectedNodes_UnboundedReachesEverything(t *testing.T) {
	g := chainGraph(t)
	// Direction is ignored, so from "d" every node is reachable.
	conns, err := g.ConnectedNodes(context.Background(), "d", -1)
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if len(conns) != 4 {
		t.Errorf("unbounded traversal reached %d nodes, want 4", len(conns))
	}
}

func TestConnectedNodes_DepthAndPaths(t *testing.T) {
	g := chainGraph(t)
	conns, err := g.ConnectedNodes(context.Background(), "b", 2)
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}

	byID := make(map[string]Connection)
	for _, c := range conns {
		byID[c.Node.ID] = c
	}

	if c, ok := byID["c"]; !ok || c.Depth != 1 {
		t.Errorf("c: got %+v, want depth 1", c)
	} else if len(c.Path) != 1 || c.Path[0] != "calls" {
		t.Errorf("c path: %v", c.Path)
	}

	// a is reached against edge direction; the hop label carries the tag.
	if c, ok := byID["a"]; !ok || c.Depth != 1 {
		t.Errorf("a: got %+v, want depth 1", c)
	} else if c.Path[0] != "calls (reverse)" {
		t.Errorf("a path: %v", c.Path)
	}

	if c, ok := byID["d"]; !ok || c.Depth != 2 {
		t.Errorf("d: got %+v, want depth 2", c)
	}

	// x reaches via c's incoming adjacency at depth 2.
	if c, ok := byID["x"]; !ok || c.Depth != 2 {
		t.Errorf("x: got %+v, want depth 2", c)
	} else if c.Path[1] != "imports_symbol (reverse)" {
		t.Errorf("x path: %v", c.Path)
	}

	// The origin itself is excluded.
	if _, ok := byID["b"]; ok {
		t.Error("origin must be excluded from the result set")
	}
}

func TestConnectedNodes_ShortestDepthWins(t *testing.T) {
	g := New()
	// Diamond: a->b, a->c, b->d, c->d plus a direct a->d shortcut.
	_, _, _ = g.Merge([]Node{
		testNode("a", "a", "f", CategoryFunction),
		testNode("b", "b", "f", CategoryFunction),
		testNode("c", "c", "f", CategoryFunction),
		testNode("d", "d", "f", CategoryFunction),
	}, []Edge{
		testEdge("a", "b", RelCalls),
		testEdge("a", "c", RelCalls),
		testEdge("b", "d", RelCalls),
		testEdge("c", "d", RelCalls),
		testEdge("a", "d", RelReferences),
	})

	conns, err := g.ConnectedNodes(context.Background(), "a", 5)
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	for _, c := range conns {
		if c.Node.ID == "d" {
			if c.Depth != 1 {
				t.Errorf("d discovered at depth %d, want shortest depth 1", c.Depth)
			}
			return
		}
	}
	t.Error("d not reached")
}

func TestConnectedNodes_UnknownOrigin(t *testing.T) {
	g := New()
	if _, err := g.ConnectedNodes(context.Background(), "ghost", 3); err != ErrNodeNotFound {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}
