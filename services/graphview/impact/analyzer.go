// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package impact

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/depscope/depscope/services/graphview/graph"
	"github.com/depscope/depscope/services/graphview/health"
)

// Analyzer computes change-impact reports against a graph snapshot.
//
// # Description
//
// For a target node the analyzer walks the reverse dependency closure
// (who points at the target, and transitively who points at them),
// accumulates a risk score from the shape of that closure and the
// target's own exposure, and buckets the score into a risk level.
//
// # Thread Safety
//
// All methods are safe for concurrent use; the underlying graph takes
// read locks per query.
type Analyzer struct {
	graph  *graph.Graph
	health *health.Analyzer
}

// NewAnalyzer creates an impact analyzer over the given graph.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{
		graph:  g,
		health: health.NewAnalyzer(g),
	}
}

// Analyze computes the impact report for a single target.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - targetID: Node to evaluate.
//   - change: Kind of edit being considered.
//
// # Outputs
//
//   - *Report: Dependent sets, accumulated reasons and risk.
//   - error: graph.ErrNodeNotFound when the target is unknown.
func (a *Analyzer) Analyze(ctx context.Context, targetID string, change ChangeType) (*Report, error) {
	start := time.Now()
	ctx, span := startAnalysisSpan(ctx, targetID, change)
	defer span.End()

	target, ok := a.graph.GetNode(targetID)
	if !ok {
		return nil, fmt.Errorf("impact target %q: %w", targetID, graph.ErrNodeNotFound)
	}

	direct := a.directDependents(targetID)
	indirect := a.indirectDependents(ctx, targetID, direct)

	report := &Report{
		Target:             targetID,
		ChangeType:         change,
		DirectDependents:   direct,
		IndirectDependents: indirect,
	}

	raw := a.accumulateRisk(target, report)
	raw *= change.Multiplier()

	report.RiskLevel = riskLevelFor(raw)
	report.RiskScore = clampRisk(raw)
	a.collectAffected(report)

	recordAnalysisMetrics(ctx, time.Since(start), report)
	return report, nil
}

// AnalyzeBulk evaluates several targets under the same change type and
// merges the results: union of files, functions and reasons, maximum
// risk. Unknown targets fail the whole batch.
func (a *Analyzer) AnalyzeBulk(ctx context.Context, targetIDs []string, change ChangeType) (*BulkReport, error) {
	if len(targetIDs) == 0 {
		return nil, ErrNoTargets
	}

	bulk := &BulkReport{
		Targets:    append([]string(nil), targetIDs...),
		ChangeType: change,
		RiskLevel:  RiskLow,
	}

	files := make(map[string]struct{})
	functions := make(map[string]struct{})
	reasons := make(map[string]struct{})

	for _, id := range targetIDs {
		report, err := a.Analyze(ctx, id, change)
		if err != nil {
			return nil, err
		}
		bulk.Reports = append(bulk.Reports, report)

		for _, f := range report.AffectedFiles {
			files[f] = struct{}{}
		}
		for _, fn := range report.AffectedFunctions {
			functions[fn] = struct{}{}
		}
		for _, r := range report.Reasons {
			reasons[r] = struct{}{}
		}

		if report.RiskScore > bulk.RiskScore {
			bulk.RiskScore = report.RiskScore
		}
		if riskRank(report.RiskLevel) > riskRank(bulk.RiskLevel) {
			bulk.RiskLevel = report.RiskLevel
		}
	}

	bulk.AffectedFiles = sortedKeys(files)
	bulk.AffectedFunctions = sortedKeys(functions)
	bulk.Reasons = sortedKeys(reasons)
	return bulk, nil
}

// directDependents returns the sources of every edge targeting the node.
func (a *Analyzer) directDependents(targetID string) []Dependent {
	incoming := a.graph.Incoming(targetID)
	seen := make(map[string]struct{}, len(incoming))
	dependents := make([]Dependent, 0, len(incoming))

	for _, e := range incoming {
		if _, dup := seen[e.Source]; dup {
			continue
		}
		seen[e.Source] = struct{}{}
		if d, ok := a.dependentFor(e.Source, 1); ok {
			dependents = append(dependents, d)
		}
	}

	sort.Slice(dependents, func(i, j int) bool { return dependents[i].NodeID < dependents[j].NodeID })
	return dependents
}

// indirectDependents walks the reverse closure above the direct set,
// unbounded depth, excluding the target and the direct dependents.
func (a *Analyzer) indirectDependents(ctx context.Context, targetID string, direct []Dependent) []Dependent {
	visited := map[string]struct{}{targetID: {}}
	var frontier []string
	for _, d := range direct {
		visited[d.NodeID] = struct{}{}
		frontier = append(frontier, d.NodeID)
	}

	var dependents []Dependent
	for hops := 2; len(frontier) > 0; hops++ {
		select {
		case <-ctx.Done():
			return dependents
		default:
		}

		var next []string
		for _, id := range frontier {
			for _, e := range a.graph.Incoming(id) {
				if _, dup := visited[e.Source]; dup {
					continue
				}
				visited[e.Source] = struct{}{}
				if d, ok := a.dependentFor(e.Source, hops); ok {
					dependents = append(dependents, d)
					next = append(next, e.Source)
				}
			}
		}
		frontier = next
	}

	sort.Slice(dependents, func(i, j int) bool {
		if dependents[i].Hops != dependents[j].Hops {
			return dependents[i].Hops < dependents[j].Hops
		}
		return dependents[i].NodeID < dependents[j].NodeID
	})
	return dependents
}

func (a *Analyzer) dependentFor(id string, hops int) (Dependent, bool) {
	n, ok := a.graph.GetNode(id)
	if !ok {
		return Dependent{}, false
	}
	return Dependent{
		NodeID:   n.ID,
		Name:     n.Name,
		File:     n.File,
		Category: n.Category.String(),
		Hops:     hops,
	}, true
}

// accumulateRisk applies the additive risk model and records a reason
// string for every term that fired. The returned value is pre-clamp.
func (a *Analyzer) accumulateRisk(target *graph.Node, report *Report) float64 {
	var risk float64

	heavy := 0
	structural := 0
	for _, d := range report.DirectDependents {
		in, out := a.graph.Degree(d.NodeID)
		if in+out > heavyDependentEdgeThreshold {
			risk += heavyDependentWeight
			heavy++
		}
		if d.Category == graph.CategoryModule.String() || d.Category == graph.CategoryClass.String() {
			risk += structuralDependentRisk
			structural++
		}
	}
	if heavy > 0 {
		report.Reasons = append(report.Reasons, fmt.Sprintf("%d highly connected direct dependents", heavy))
	}
	if structural > 0 {
		report.Reasons = append(report.Reasons, fmt.Sprintf("%d module or class level dependents", structural))
	}

	if n := len(report.IndirectDependents); n > 0 {
		risk += indirectDependentRisk * float64(n)
		report.Reasons = append(report.Reasons, fmt.Sprintf("%d indirect dependents in the closure", n))
	}

	if a.isExported(target.ID) {
		risk += exportedTargetRisk
		report.Reasons = append(report.Reasons, "target is exported")
	}

	if a.incomingImports(target.ID) > importedTargetEdgeThreshold {
		risk += importedTargetRisk
		report.Reasons = append(report.Reasons, "target is widely imported")
	}

	if len(a.health.CyclesContaining(target.ID)) > 0 {
		risk += cyclicTargetRisk
		report.Reasons = append(report.Reasons, "target participates in a circular dependency")
	}

	return risk
}

// isExported reports whether the node is the source of an export edge.
func (a *Analyzer) isExported(id string) bool {
	for _, e := range a.graph.Outgoing(id) {
		if e.Relationship == graph.RelExports {
			return true
		}
	}
	return false
}

func (a *Analyzer) incomingImports(id string) int {
	count := 0
	for _, e := range a.graph.Incoming(id) {
		if graph.ImportRels.Contains(e.Relationship) {
			count++
		}
	}
	return count
}

// collectAffected fills the file and function lists from both
// dependent sets, deduplicated and sorted.
func (a *Analyzer) collectAffected(report *Report) {
	files := make(map[string]struct{})
	functions := make(map[string]struct{})

	record := func(d Dependent) {
		if d.File != "" {
			files[d.File] = struct{}{}
		}
		if d.Category == graph.CategoryFunction.String() || d.Category == graph.CategoryMethod.String() {
			functions[d.Name] = struct{}{}
		}
	}
	for _, d := range report.DirectDependents {
		record(d)
	}
	for _, d := range report.IndirectDependents {
		record(d)
	}

	report.AffectedFiles = sortedKeys(files)
	report.AffectedFunctions = sortedKeys(functions)
}

func riskLevelFor(raw float64) RiskLevel {
	switch {
	case raw >= highRiskThreshold:
		return RiskHigh
	case raw >= mediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

func riskRank(level RiskLevel) int {
	switch level {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

func clampRisk(raw float64) float64 {
	if raw < 0 {
		return 0
	}
	if raw > 1 {
		return 1
	}
	return raw
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
