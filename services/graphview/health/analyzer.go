// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package health derives heuristic code-health findings from an assembled
// dependency graph: dead code, unreachable code, unused imports, orphaned
// modules, circular dependencies, and composite quality scores.
//
// All analyses are read-only over the current graph snapshot and are
// heuristics, not verified data-flow results.
package health

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/depscope/depscope/services/graphview/graph"
)

// Quality score weights.
const (
	issueRatioWeight      = 50.0
	cyclePenaltyWeight    = 5.0
	complexityWeight      = 0.5
	complexityPenaltyBase = 50
	complexityPerEdge     = 10.0
)

// Analyzer runs health checks over one graph.
//
// Thread Safety: safe for concurrent use; every method reads a consistent
// snapshot and mutates nothing.
type Analyzer struct {
	graph *graph.Graph
}

// NewAnalyzer creates an analyzer for the given graph.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{graph: g}
}

// Analyze produces the full health report.
//
// Errors:
//
//	graph.ErrEmptyGraph - the graph holds no nodes.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	ctx, span := startAnalysisSpan(ctx, a.graph.NodeCount(), a.graph.EdgeCount())
	defer span.End()
	start := time.Now()

	if a.graph.NodeCount() == 0 {
		span.SetStatus(codes.Error, graph.ErrEmptyGraph.Error())
		return nil, graph.ErrEmptyGraph
	}

	report := &Report{
		DeadCode:           a.UnusedFunctions(),
		UnreachableCode:    a.UnreachableCode(),
		UnusedImports:      a.UnusedImports(),
		OrphanedModules:    a.OrphanedModules(),
		CyclicDependencies: a.Cycles(),
	}

	nodes := a.graph.NodeCount()
	edges := a.graph.EdgeCount()
	report.TotalIssues = len(report.DeadCode) + len(report.UnreachableCode) +
		len(report.OrphanedModules) + len(report.UnusedImports)
	report.ComplexityScore = complexityScore(nodes, edges)
	report.CodeQualityScore = qualityScore(nodes, report.TotalIssues, len(report.CyclicDependencies), report.ComplexityScore)

	span.SetAttributes(
		attribute.Int("health.total_issues", report.TotalIssues),
		attribute.Int("health.cycles", len(report.CyclicDependencies)),
		attribute.Float64("health.quality_score", report.CodeQualityScore),
	)
	span.SetStatus(codes.Ok, "")
	recordAnalysisMetrics(ctx, time.Since(start), report)

	slog.Debug("health analysis completed",
		slog.Int("nodes", nodes),
		slog.Int("issues", report.TotalIssues),
		slog.Int("cycles", len(report.CyclicDependencies)),
		slog.Float64("quality", report.CodeQualityScore),
	)
	return report, nil
}

// EntryPoints returns the IDs assumed reachable by definition.
//
// A node qualifies if its name is main/index/app (case-insensitive), its
// file path contains a main./index./app./entry. segment, or it is the
// target of an export edge. If nothing qualifies, every module node is
// treated as an entry point so an unannotated graph is not flagged
// wholesale as unreachable.
func (a *Analyzer) EntryPoints() map[string]bool {
	exported := make(map[string]bool)
	for _, e := range a.graph.Edges() {
		if e.Relationship == graph.RelExports {
			exported[e.Target] = true
		}
	}

	entries := make(map[string]bool)
	for _, n := range a.graph.Nodes() {
		if isEntryName(n.Name) || isEntryFile(n.File) || exported[n.ID] {
			entries[n.ID] = true
		}
	}
	if len(entries) > 0 {
		return entries
	}

	// Fallback: no convention detected, assume modules are roots.
	for _, n := range a.graph.GetNodesByCategory(graph.CategoryModule) {
		entries[n.ID] = true
	}
	return entries
}

// UnusedFunctions flags function/method nodes that nothing calls, exports
// or imports.
func (a *Analyzer) UnusedFunctions() []Finding {
	entries := a.EntryPoints()
	findings := make([]Finding, 0)

	candidates := append(
		a.graph.GetNodesByCategory(graph.CategoryFunction),
		a.graph.GetNodesByCategory(graph.CategoryMethod)...,
	)
	for _, n := range candidates {
		if entries[n.ID] {
			continue
		}
		if a.isUsed(n.ID) {
			continue
		}
		findings = append(findings, Finding{
			NodeID:     n.ID,
			Name:       n.Name,
			File:       n.File,
			Reason:     "never called, exported, or imported",
			Confidence: unusedConfidence(n),
		})
	}
	return findings
}

// isUsed reports whether a node is the target of a call/invoke edge, the
// source of an export edge, or the target of an import edge.
func (a *Analyzer) isUsed(id string) bool {
	for _, e := range a.graph.Incoming(id) {
		if graph.CallRels.Contains(e.Relationship) || graph.ImportRels.Contains(e.Relationship) {
			return true
		}
	}
	for _, e := range a.graph.Outgoing(id) {
		if e.Relationship == graph.RelExports {
			return true
		}
	}
	return false
}

// unusedConfidence applies the adjustment model to the base confidence.
func unusedConfidence(n *graph.Node) float64 {
	confidence := baseUnusedConfidence
	if len(n.Code) < shortCodeThresholdChars {
		confidence -= shortCodePenalty
	}
	lower := strings.ToLower(n.Name)
	for _, term := range genericNameTerms {
		if strings.Contains(lower, term) {
			confidence -= genericNamePenalty
			break
		}
	}
	if len(n.Code) > longCodeThresholdChars {
		confidence += longCodeBonus
	}
	return clamp(confidence, minConfidence, maxConfidence)
}

// UnreachableCode flags nodes a forward traversal from the entry-point set
// never visits. External symbols are excluded; they live outside the tree.
func (a *Analyzer) UnreachableCode() []Finding {
	entries := a.EntryPoints()
	visited := make(map[string]bool, len(entries))
	queue := make([]string, 0, len(entries))
	for id := range entries {
		visited[id] = true
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range a.graph.Outgoing(cur) {
			if !visited[e.Target] {
				visited[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}

	findings := make([]Finding, 0)
	for _, n := range a.graph.Nodes() {
		if visited[n.ID] || n.Category == graph.CategoryExternalSymbol {
			continue
		}
		findings = append(findings, Finding{
			NodeID:     n.ID,
			Name:       n.Name,
			File:       n.File,
			Reason:     "not reachable from any entry point",
			Confidence: unreachableConfidence,
		})
	}
	return findings
}

// UnusedImports flags imported symbols that are never called, referenced,
// or mentioned in any embedded code snippet.
func (a *Analyzer) UnusedImports() []Finding {
	imported := make(map[string]bool)
	for _, e := range a.graph.Edges() {
		if graph.ImportRels.Contains(e.Relationship) {
			imported[e.Target] = true
		}
	}
	if len(imported) == 0 {
		return []Finding{}
	}

	findings := make([]Finding, 0)
	for id := range imported {
		n, ok := a.graph.GetNode(id)
		if !ok {
			continue
		}
		if a.importUsed(n) {
			continue
		}
		findings = append(findings, Finding{
			NodeID:     n.ID,
			Name:       n.Name,
			File:       n.File,
			Reason:     "imported but never used",
			Confidence: unusedImportConfidence,
		})
	}
	return findings
}

// importUsed reports whether the symbol is the target of a usage edge or
// its name appears inside any node's embedded code.
func (a *Analyzer) importUsed(n *graph.Node) bool {
	for _, e := range a.graph.Incoming(n.ID) {
		if graph.UsageRels.Contains(e.Relationship) {
			return true
		}
	}
	if n.Name == "" {
		return false
	}
	for _, other := range a.graph.Nodes() {
		if other.ID == n.ID || other.Code == "" {
			continue
		}
		if strings.Contains(other.Code, n.Name) {
			return true
		}
	}
	return false
}

// OrphanedModules flags module nodes nothing imports or requires, unless
// their file name marks them as an entry module.
func (a *Analyzer) OrphanedModules() []Finding {
	findings := make([]Finding, 0)
	for _, n := range a.graph.GetNodesByCategory(graph.CategoryModule) {
		if isEntryFile(n.File) || isEntryName(n.Name) {
			continue
		}
		used := false
		for _, e := range a.graph.Incoming(n.ID) {
			if graph.ModuleUsageRels.Contains(e.Relationship) {
				used = true
				break
			}
		}
		if used {
			continue
		}
		findings = append(findings, Finding{
			NodeID:     n.ID,
			Name:       n.Name,
			File:       n.File,
			Reason:     "module is never imported",
			Confidence: orphanedModuleConfidence,
		})
	}
	return findings
}

func isEntryName(name string) bool {
	switch strings.ToLower(name) {
	case "main", "index", "app":
		return true
	}
	return false
}

var entryFileMarkers = []string{"main.", "index.", "app.", "entry."}

func isEntryFile(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range entryFileMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// complexityScore is min(100, round(10 * edges / nodes)).
func complexityScore(nodes, edges int) int {
	if nodes == 0 {
		return 0
	}
	score := int(math.Round(complexityPerEdge * float64(edges) / float64(nodes)))
	if score > 100 {
		score = 100
	}
	return score
}

// qualityScore composes the 0-100 quality value. Cycles act as a flat
// per-cycle penalty only; they are not folded into the issue ratio.
func qualityScore(nodes, issues, cycles, complexity int) float64 {
	if nodes == 0 {
		return 0
	}
	score := 100.0
	score -= issueRatioWeight * float64(issues) / float64(nodes)
	score -= cyclePenaltyWeight * float64(cycles)
	score -= complexityWeight * math.Max(0, float64(complexity-complexityPenaltyBase))
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
