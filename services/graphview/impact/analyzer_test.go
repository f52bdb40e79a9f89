// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package impact

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/depscope/depscope/services/graphview/graph"
)

func buildGraph(t *testing.T, nodes []graph.Node, edges []graph.Edge) *graph.Graph {
	t.Helper()
	g := graph.New()
	if _, _, err := g.Merge(nodes, edges); err != nil {
		t.Fatalf("merge: %v", err)
	}
	return g
}

func fn(id string) graph.Node {
	return graph.Node{ID: id, Name: id, File: "src/" + id + ".py", Category: graph.CategoryFunction}
}

func calls(source, target string) graph.Edge {
	return graph.Edge{Source: source, Target: target, Relationship: graph.RelCalls}
}

// Exported target, 12 direct dependents, one of them highly connected:
// deleting it must come out high risk.
func TestAnalyze_DeleteExportedHub(t *testing.T) {
	nodes := []graph.Node{fn("target"), fn("sym"), fn("hub")}
	edges := []graph.Edge{
		{Source: "target", Target: "sym", Relationship: graph.RelExports},
		calls("hub", "target"),
	}
	for i := 0; i < 11; i++ {
		nodes = append(nodes, fn(fmt.Sprintf("dep%02d", i)), fn(fmt.Sprintf("leaf%02d", i)))
		edges = append(edges, calls(fmt.Sprintf("dep%02d", i), "target"))
		// Pad the hub past the heavy-dependent threshold.
		edges = append(edges, calls("hub", fmt.Sprintf("leaf%02d", i)))
	}
	g := buildGraph(t, nodes, edges)

	report, err := NewAnalyzer(g).Analyze(context.Background(), "target", ChangeDelete)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(report.DirectDependents) != 12 {
		t.Fatalf("direct dependents: %d, want 12", len(report.DirectDependents))
	}
	if report.RiskLevel != RiskHigh {
		t.Errorf("risk level: %s, want high (score %f)", report.RiskLevel, report.RiskScore)
	}
	// (0.5 exported + 0.3 heavy dependent) * 1.5 = 1.2, clamped.
	if report.RiskScore != 1.0 {
		t.Errorf("clamped score: %f, want 1.0", report.RiskScore)
	}
}

func TestAnalyze_ModifyLeafIsLowRisk(t *testing.T) {
	g := buildGraph(t,
		[]graph.Node{fn("leaf"), fn("caller")},
		[]graph.Edge{calls("caller", "leaf")},
	)

	report, err := NewAnalyzer(g).Analyze(context.Background(), "leaf", ChangeModify)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if report.RiskLevel != RiskLow {
		t.Errorf("risk level: %s, want low", report.RiskLevel)
	}
	if report.RiskScore != 0 {
		t.Errorf("score: %f, want 0", report.RiskScore)
	}
	if len(report.AffectedFiles) != 1 || report.AffectedFiles[0] != "src/caller.py" {
		t.Errorf("affected files: %v", report.AffectedFiles)
	}
}

func TestAnalyze_IndirectClosure(t *testing.T) {
	// root -> mid -> target: mid is direct, root is indirect at 2 hops.
	g := buildGraph(t,
		[]graph.Node{fn("target"), fn("mid"), fn("root")},
		[]graph.Edge{calls("mid", "target"), calls("root", "mid")},
	)

	report, err := NewAnalyzer(g).Analyze(context.Background(), "target", ChangeModify)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(report.IndirectDependents) != 1 {
		t.Fatalf("indirect dependents: %+v", report.IndirectDependents)
	}
	if got := report.IndirectDependents[0]; got.NodeID != "root" || got.Hops != 2 {
		t.Errorf("indirect dependent: %+v", got)
	}
	// One indirect dependent at 0.1, modify multiplier.
	if math.Abs(report.RiskScore-0.1) > 1e-9 {
		t.Errorf("score: %f, want 0.1", report.RiskScore)
	}
}

func TestAnalyze_StructuralDependentWeight(t *testing.T) {
	mod := graph.Node{ID: "mod", Name: "mod", File: "src/mod.py", Category: graph.CategoryModule}
	g := buildGraph(t,
		[]graph.Node{fn("target"), mod},
		[]graph.Edge{{Source: "mod", Target: "target", Relationship: graph.RelImportsSymbol}},
	)

	report, err := NewAnalyzer(g).Analyze(context.Background(), "target", ChangeModify)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if math.Abs(report.RiskScore-0.4) > 1e-9 {
		t.Errorf("score: %f, want 0.4 for a module dependent", report.RiskScore)
	}
	if report.RiskLevel != RiskLow {
		t.Errorf("risk level: %s, want low at 0.4", report.RiskLevel)
	}
}

func TestAnalyze_CyclicTargetPenalty(t *testing.T) {
	g := buildGraph(t,
		[]graph.Node{fn("a"), fn("b")},
		[]graph.Edge{calls("a", "b"), calls("b", "a")},
	)

	report, err := NewAnalyzer(g).Analyze(context.Background(), "a", ChangeRefactor)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	// 0.3 cycle * 1.2 refactor = 0.36.
	if math.Abs(report.RiskScore-0.36) > 1e-9 {
		t.Errorf("score: %f, want 0.36", report.RiskScore)
	}
	found := false
	for _, r := range report.Reasons {
		if r == "target participates in a circular dependency" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing cycle reason: %v", report.Reasons)
	}
}

func TestAnalyze_UnknownTarget(t *testing.T) {
	g := buildGraph(t, []graph.Node{fn("a")}, nil)
	if _, err := NewAnalyzer(g).Analyze(context.Background(), "missing", ChangeModify); !errors.Is(err, graph.ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestAnalyzeBulk(t *testing.T) {
	g := buildGraph(t,
		[]graph.Node{fn("t1"), fn("t2"), fn("c1"), fn("c2")},
		[]graph.Edge{calls("c1", "t1"), calls("c2", "t2"), calls("c2", "c1")},
	)
	a := NewAnalyzer(g)

	t.Run("union and max", func(t *testing.T) {
		bulk, err := a.AnalyzeBulk(context.Background(), []string{"t1", "t2"}, ChangeModify)
		if err != nil {
			t.Fatalf("bulk: %v", err)
		}
		if len(bulk.Reports) != 2 {
			t.Fatalf("reports: %d", len(bulk.Reports))
		}
		wantFiles := []string{"src/c1.py", "src/c2.py"}
		if len(bulk.AffectedFiles) != len(wantFiles) {
			t.Fatalf("affected files: %v", bulk.AffectedFiles)
		}
		for i, f := range wantFiles {
			if bulk.AffectedFiles[i] != f {
				t.Errorf("affected files[%d]: %s, want %s", i, bulk.AffectedFiles[i], f)
			}
		}
		var maxScore float64
		for _, r := range bulk.Reports {
			if r.RiskScore > maxScore {
				maxScore = r.RiskScore
			}
		}
		if bulk.RiskScore != maxScore {
			t.Errorf("bulk score %f != max per-target %f", bulk.RiskScore, maxScore)
		}
	})

	t.Run("empty targets", func(t *testing.T) {
		if _, err := a.AnalyzeBulk(context.Background(), nil, ChangeModify); !errors.Is(err, ErrNoTargets) {
			t.Errorf("expected ErrNoTargets, got %v", err)
		}
	})

	t.Run("unknown target fails batch", func(t *testing.T) {
		if _, err := a.AnalyzeBulk(context.Background(), []string{"t1", "missing"}, ChangeModify); !errors.Is(err, graph.ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound, got %v", err)
		}
	})
}

func TestParseChangeType(t *testing.T) {
	for want, name := range map[ChangeType]string{
		ChangeModify:   "modify",
		ChangeRefactor: "refactor",
		ChangeDelete:   "delete",
	} {
		got, err := ParseChangeType(name)
		if err != nil || got != want {
			t.Errorf("ParseChangeType(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseChangeType("rename"); !errors.Is(err, ErrUnknownChangeType) {
		t.Errorf("expected ErrUnknownChangeType, got %v", err)
	}
}
