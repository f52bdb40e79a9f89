// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"testing"
)

func searchGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	nodes := []Node{
		{ID: "1", Name: "parseConfig", File: "src/config.py", Category: CategoryFunction, Code: "def parseConfig(): pass"},
		{ID: "2", Name: "Server", File: "src/server.py", Category: CategoryClass, Code: "class Server: config = None"},
		{ID: "3", Name: "run", File: "src/config_loader.py", Category: CategoryFunction, Code: "def run(): pass"},
		{ID: "4", Name: "helper", File: "src/util.py", Category: CategoryFunction, Code: "x = load_config()"},
	}
	if _, _, err := g.Merge(nodes, []Edge{
		testEdge("2", "1", RelCalls),
		testEdge("3", "1", RelCalls),
		testEdge("4", "1", RelCalls),
	}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	g.ApplyMetrics(g.EnhanceAll())
	return g
}

func TestSearch_FieldPriority(t *testing.T) {
	g := searchGraph(t)
	results := g.Search("config", SearchFilters{})
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}

	// Name match outranks file match outranks code match.
	if results[0].Node.ID != "1" || results[0].MatchedOn != "name" {
		t.Errorf("first result: %s via %s, want node 1 via name", results[0].Node.ID, results[0].MatchedOn)
	}
	if results[1].MatchedOn != "file" {
		t.Errorf("second result matched on %s, want file", results[1].MatchedOn)
	}
	for _, r := range results[2:] {
		if r.MatchedOn != "code" {
			t.Errorf("trailing result matched on %s, want code", r.MatchedOn)
		}
	}
}

func TestSearch_FirstMatchingFieldWins(t *testing.T) {
	g := searchGraph(t)
	// Node 1 matches "config" in name, file and code; only name counts.
	results := g.Search("parseconfig", SearchFilters{})
	if len(results) != 1 || results[0].MatchedOn != "name" {
		t.Fatalf("results: %+v", results)
	}
}

func TestSearch_CategoryFilter(t *testing.T) {
	g := searchGraph(t)
	results := g.Search("config", SearchFilters{Categories: []Category{CategoryClass}})
	if len(results) != 1 || results[0].Node.ID != "2" {
		t.Fatalf("category filter: %+v", results)
	}
}

func TestSearch_LimitAndEmptyQuery(t *testing.T) {
	g := searchGraph(t)
	if got := g.Search("config", SearchFilters{Limit: 2}); len(got) != 2 {
		t.Errorf("limit: got %d", len(got))
	}
	if got := g.Search("   ", SearchFilters{}); len(got) != 0 {
		t.Errorf("empty query must match nothing, got %d", len(got))
	}
}

func TestSearch_ImportanceOrdersWithinField(t *testing.T) {
	g := New()
	_, _, _ = g.Merge([]Node{
		{ID: "hub", Name: "config_hub", File: "a.py", Category: CategoryFunction},
		{ID: "leaf", Name: "config_leaf", File: "b.py", Category: CategoryFunction},
		{ID: "c1", Name: "c1", File: "c.py", Category: CategoryFunction},
		{ID: "c2", Name: "c2", File: "c.py", Category: CategoryFunction},
	}, []Edge{
		testEdge("c1", "hub", RelCalls),
		testEdge("c2", "hub", RelCalls),
	})
	g.ApplyMetrics(g.EnhanceAll())

	results := g.Search("config", SearchFilters{})
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Node.ID != "hub" {
		t.Errorf("importance tie-break: first is %s, want hub", results[0].Node.ID)
	}
}
