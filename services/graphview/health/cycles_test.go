// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package health

import (
	"reflect"
	"testing"

	"github.com/depscope/depscope/services/graphview/graph"
)

func cycleGraph(t *testing.T, edges []graph.Edge) *graph.Graph {
	t.Helper()
	g := graph.New()
	seen := map[string]bool{}
	var nodes []graph.Node
	for _, e := range edges {
		for _, id := range []string{e.Source, e.Target} {
			if !seen[id] {
				seen[id] = true
				nodes = append(nodes, node(id, id, "src/"+id+".py", graph.CategoryFunction))
			}
		}
	}
	mustMerge(t, g, nodes, edges)
	return g
}

func TestCycles_TwoNodeLow(t *testing.T) {
	g := cycleGraph(t, []graph.Edge{
		edge("A", "B", graph.RelCalls),
		edge("B", "A", graph.RelCalls),
	})

	cycles := NewAnalyzer(g).Cycles()
	if len(cycles) != 1 {
		t.Fatalf("cycles: %d, want 1", len(cycles))
	}
	if cycles[0].Severity != SeverityLow {
		t.Errorf("severity: %s, want low", cycles[0].Severity)
	}
	if !reflect.DeepEqual(cycles[0].Nodes, []string{"A", "B"}) {
		t.Errorf("members: %v", cycles[0].Nodes)
	}
}

func TestCycles_ThreeNodeMedium(t *testing.T) {
	g := cycleGraph(t, []graph.Edge{
		edge("A", "B", graph.RelCalls),
		edge("B", "C", graph.RelCalls),
		edge("C", "A", graph.RelCalls),
	})

	cycles := NewAnalyzer(g).Cycles()
	if len(cycles) != 1 {
		t.Fatalf("cycles: %d, want 1", len(cycles))
	}
	if cycles[0].Severity != SeverityMedium {
		t.Errorf("severity: %s, want medium", cycles[0].Severity)
	}
	if cycles[0].Nodes[0] != "A" {
		t.Errorf("rotation: %v, want smallest member first", cycles[0].Nodes)
	}
}

func TestCycles_LargeHigh(t *testing.T) {
	g := cycleGraph(t, []graph.Edge{
		edge("A", "B", graph.RelCalls),
		edge("B", "C", graph.RelCalls),
		edge("C", "D", graph.RelCalls),
		edge("D", "E", graph.RelCalls),
		edge("E", "A", graph.RelCalls),
	})

	cycles := NewAnalyzer(g).Cycles()
	if len(cycles) != 1 {
		t.Fatalf("cycles: %d", len(cycles))
	}
	if cycles[0].Severity != SeverityHigh {
		t.Errorf("severity: %s, want high", cycles[0].Severity)
	}
}

func TestCycles_NonDependencyEdgesIgnored(t *testing.T) {
	g := cycleGraph(t, []graph.Edge{
		edge("A", "B", graph.RelInherits),
		edge("B", "A", graph.RelInherits),
	})

	if cycles := NewAnalyzer(g).Cycles(); len(cycles) != 0 {
		t.Errorf("inheritance loop reported as dependency cycle: %+v", cycles)
	}
}

func TestCycles_DedupAcrossEntryNodes(t *testing.T) {
	// Two disjoint roots feed into the same loop: one report only.
	g := cycleGraph(t, []graph.Edge{
		edge("r1", "A", graph.RelCalls),
		edge("r2", "B", graph.RelCalls),
		edge("A", "B", graph.RelCalls),
		edge("B", "A", graph.RelCalls),
	})

	cycles := NewAnalyzer(g).Cycles()
	if len(cycles) != 1 {
		t.Fatalf("cycles: %d, want 1 after dedup", len(cycles))
	}
}

func TestCyclesContaining(t *testing.T) {
	g := cycleGraph(t, []graph.Edge{
		edge("A", "B", graph.RelCalls),
		edge("B", "A", graph.RelCalls),
		edge("C", "D", graph.RelCalls),
		edge("D", "C", graph.RelCalls),
	})

	a := NewAnalyzer(g)
	got := a.CyclesContaining("C")
	if len(got) != 1 || got[0].Nodes[0] != "C" {
		t.Fatalf("CyclesContaining(C): %+v", got)
	}
	if len(a.CyclesContaining("missing")) != 0 {
		t.Error("unknown node should match no cycles")
	}
}
