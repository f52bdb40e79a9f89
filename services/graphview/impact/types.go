// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package impact scores the blast radius of a candidate change to one
// or more graph nodes. Risk accumulates additively over the dependent
// set, is scaled by the change type, and is clamped to [0,1] after the
// risk level has been assigned from the raw value.
package impact

import (
	"encoding/json"
	"fmt"
)

// ChangeType describes the kind of edit being evaluated.
type ChangeType int

const (
	ChangeModify ChangeType = iota
	ChangeRefactor
	ChangeDelete
)

var changeTypeNames = [...]string{"modify", "refactor", "delete"}

// ParseChangeType maps a wire string to a ChangeType.
func ParseChangeType(s string) (ChangeType, error) {
	for i, name := range changeTypeNames {
		if s == name {
			return ChangeType(i), nil
		}
	}
	return ChangeModify, fmt.Errorf("%w: %q", ErrUnknownChangeType, s)
}

func (c ChangeType) String() string {
	if int(c) < len(changeTypeNames) {
		return changeTypeNames[c]
	}
	return "modify"
}

// Multiplier returns the risk scale factor for this change type.
func (c ChangeType) Multiplier() float64 {
	switch c {
	case ChangeDelete:
		return 1.5
	case ChangeRefactor:
		return 1.2
	default:
		return 1.0
	}
}

func (c ChangeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChangeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseChangeType(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// RiskLevel buckets a risk score for display.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk accumulation weights.
const (
	heavyDependentWeight    = 0.3
	structuralDependentRisk = 0.4
	indirectDependentRisk   = 0.1
	exportedTargetRisk      = 0.5
	importedTargetRisk      = 0.2
	cyclicTargetRisk        = 0.3

	heavyDependentEdgeThreshold = 10
	importedTargetEdgeThreshold = 5

	highRiskThreshold   = 1.0
	mediumRiskThreshold = 0.5
)

// Dependent is one node affected by the candidate change.
type Dependent struct {
	NodeID   string `json:"node_id"`
	Name     string `json:"name"`
	File     string `json:"file"`
	Category string `json:"category"`
	// Hops is 1 for direct dependents, >1 for indirect.
	Hops int `json:"hops"`
}

// Report is the result of analyzing one target node.
type Report struct {
	Target     string     `json:"target"`
	ChangeType ChangeType `json:"change_type"`

	DirectDependents   []Dependent `json:"direct_dependents"`
	IndirectDependents []Dependent `json:"indirect_dependents"`

	AffectedFiles     []string `json:"affected_files"`
	AffectedFunctions []string `json:"affected_functions"`
	Reasons           []string `json:"reasons"`

	// RiskScore is the post-clamp score in [0,1]. RiskLevel is assigned
	// from the pre-clamp accumulation, so a score of 1.0 can be either
	// medium or high depending on how far past the clamp it landed.
	RiskScore float64   `json:"risk_score"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// BulkReport aggregates the analysis of several targets: the union of
// affected files, functions and reasons, and the maximum risk observed.
type BulkReport struct {
	Targets    []string   `json:"targets"`
	ChangeType ChangeType `json:"change_type"`

	AffectedFiles     []string `json:"affected_files"`
	AffectedFunctions []string `json:"affected_functions"`
	Reasons           []string `json:"reasons"`

	RiskScore float64   `json:"risk_score"`
	RiskLevel RiskLevel `json:"risk_level"`

	Reports []*Report `json:"reports"`
}
