// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package health

// Confidence model constants for heuristic findings.
const (
	baseUnusedConfidence      = 0.9
	unreachableConfidence     = 0.8
	unusedImportConfidence    = 0.9
	orphanedModuleConfidence  = 0.7
	shortCodePenalty          = 0.2
	genericNamePenalty        = 0.3
	longCodeBonus             = 0.1
	minConfidence             = 0.1
	maxConfidence             = 1.0
	shortCodeThresholdChars   = 50
	longCodeThresholdChars    = 200
)

// genericNameTerms mark likely shared utilities; a hit lowers confidence
// because such symbols are often invoked dynamically.
var genericNameTerms = []string{"utils", "helper", "utility", "common", "shared"}

// Finding is one heuristic issue attached to a node.
type Finding struct {
	// NodeID identifies the flagged node.
	NodeID string `json:"node_id"`

	// Name and File locate the node for display.
	Name string `json:"name"`
	File string `json:"file"`

	// Reason is a short human-readable explanation.
	Reason string `json:"reason"`

	// Confidence is the heuristic certainty in [0.1, 1.0].
	Confidence float64 `json:"confidence"`
}

// Severity buckets a cycle by its length.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Cycle is one detected circular dependency.
type Cycle struct {
	// Nodes are the member node IDs in cycle order, starting from the
	// lexicographically smallest member (normalization for dedup).
	Nodes []string `json:"nodes"`

	// Severity is low (<=2 nodes), medium (3-4) or high (>4).
	Severity Severity `json:"severity"`
}

// Report is the full health assessment of a graph snapshot.
//
// Derived, recomputed on demand; never incrementally maintained.
type Report struct {
	// DeadCode lists functions and methods that nothing appears to use.
	DeadCode []Finding `json:"dead_code"`

	// UnreachableCode lists nodes no entry point can reach.
	UnreachableCode []Finding `json:"unreachable_code"`

	// UnusedImports lists imported symbols that are never used.
	UnusedImports []Finding `json:"unused_imports"`

	// OrphanedModules lists modules nothing imports.
	OrphanedModules []Finding `json:"orphaned_modules"`

	// CyclicDependencies lists normalized dependency cycles.
	CyclicDependencies []Cycle `json:"cyclic_dependencies"`

	// ComplexityScore is min(100, round(10 * edges / nodes)).
	ComplexityScore int `json:"complexity_score"`

	// CodeQualityScore is the composite 0-100 score.
	CodeQualityScore float64 `json:"code_quality_score"`

	// TotalIssues counts dead code, unreachable, orphaned and unused-import
	// findings. Cycles are penalized separately in the quality score and
	// deliberately excluded from this count.
	TotalIssues int `json:"total_issues"`
}
