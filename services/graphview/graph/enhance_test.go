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

func TestEnhanceAll_DegreesAndImportance(t *testing.T) {
	g := New()
	_, _, _ = g.Merge([]Node{
		testNode("hub", "hub", "hub.py", CategoryFunction),
		testNode("a", "a", "a.py", CategoryFunction),
		testNode("b", "b", "b.py", CategoryFunction),
		testNode("c", "c", "c.py", CategoryFunction),
	}, []Edge{
		testEdge("a", "hub", RelCalls),
		testEdge("b", "hub", RelCalls),
		testEdge("hub", "c", RelCalls),
	})

	metrics := g.EnhanceAll()
	hub := metrics["hub"]
	if hub == nil {
		t.Fatal("hub missing from metrics")
	}
	if hub.InDegree != 2 || hub.OutDegree != 1 || hub.TotalConnections != 3 {
		t.Errorf("hub degrees: in=%d out=%d total=%d", hub.InDegree, hub.OutDegree, hub.TotalConnections)
	}
	// hub has the maximum weighted degree, so it normalizes to 1.0.
	if hub.ImportanceScore != 1.0 {
		t.Errorf("hub importance: %f, want 1.0", hub.ImportanceScore)
	}
	if metrics["c"].ImportanceScore >= hub.ImportanceScore {
		t.Error("leaf must be less important than hub")
	}
	if hub.RenderPriority != RenderHigh {
		t.Errorf("hub priority: %v, want high", hub.RenderPriority)
	}
}

func TestEnhanceAll_ConnectedFiles(t *testing.T) {
	g := New()
	_, _, _ = g.Merge([]Node{
		testNode("a", "a", "a.py", CategoryFunction),
		testNode("b", "b", "b.py", CategoryFunction),
		testNode("c", "c", "c.py", CategoryFunction),
		testNode("far", "far", "far.py", CategoryFunction),
	}, []Edge{
		testEdge("a", "b", RelCalls),
		testEdge("b", "c", RelCalls),
		testEdge("c", "far", RelCalls),
	})

	metrics := g.EnhanceAll()
	files := metrics["a"].ConnectedFiles
	// Depth 2 from a: b.py and c.py, not far.py and not a's own file.
	if len(files) != 2 || files[0] != "b.py" || files[1] != "c.py" {
		t.Errorf("connected files for a: %v", files)
	}
}

func TestEnhanceAll_ModuleFloorsAtMedium(t *testing.T) {
	g := New()
	_, _, _ = g.Merge([]Node{
		testNode("m", "mod", "m.py", CategoryModule),
		testNode("busy", "busy", "b.py", CategoryFunction),
		testNode("x", "x", "x.py", CategoryFunction),
	}, []Edge{
		testEdge("x", "busy", RelCalls),
		testEdge("busy", "x", RelReferences),
	})

	metrics := g.EnhanceAll()
	if metrics["m"].RenderPriority != RenderMedium {
		t.Errorf("isolated module priority: %v, want medium", metrics["m"].RenderPriority)
	}
}

func TestEnhanceAll_EmptyGraph(t *testing.T) {
	g := New()
	if got := g.EnhanceAll(); len(got) != 0 {
		t.Errorf("empty graph metrics: %d entries", len(got))
	}
}
