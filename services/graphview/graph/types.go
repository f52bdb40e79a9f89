// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"encoding/json"
	"strings"
)

// Category classifies a node by the kind of code entity it represents.
type Category int

const (
	// CategoryUnknown indicates an unrecognized entity kind.
	CategoryUnknown Category = iota

	// CategoryModule is a file-level module.
	CategoryModule

	// CategoryClass is a class or type declaration.
	CategoryClass

	// CategoryFunction is a free function.
	CategoryFunction

	// CategoryMethod is a method bound to a class.
	CategoryMethod

	// CategoryExternalSymbol is a symbol resolved outside the analyzed tree.
	CategoryExternalSymbol

	// CategoryDirectory is a directory grouping node.
	CategoryDirectory

	// NumCategories is the total number of categories (for array sizing).
	NumCategories
)

var categoryNames = map[Category]string{
	CategoryUnknown:        "unknown",
	CategoryModule:         "module",
	CategoryClass:          "class",
	CategoryFunction:       "function",
	CategoryMethod:         "method",
	CategoryExternalSymbol: "external_symbol",
	CategoryDirectory:      "directory",
}

var categoryValues = map[string]Category{
	"unknown":          CategoryUnknown,
	"module":           CategoryModule,
	"class":            CategoryClass,
	"function":         CategoryFunction,
	"method":           CategoryMethod,
	"external_symbol":  CategoryExternalSymbol,
	"external":         CategoryExternalSymbol,
	"directory":        CategoryDirectory,
	"import_statement": CategoryExternalSymbol,
}

// String returns the wire representation of the Category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCategory maps a wire string to a Category.
//
// Unrecognized values map to CategoryUnknown rather than failing, because
// upstream generators add categories faster than consumers upgrade.
func ParseCategory(s string) Category {
	if c, ok := categoryValues[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c
	}
	return CategoryUnknown
}

// MarshalJSON encodes the Category as its wire string.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes the Category from its wire string.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseCategory(s)
	return nil
}

// Relationship is the closed set of edge kinds.
//
// Upstream generators tag edges with free-form strings ("calls",
// "imports_module", ...). Those strings are classified exactly once, at
// decode time, into this enum. All traversal semantics (which kinds create
// dependencies, which count as usage) are defined over explicit Relationship
// sets below, never by substring matching.
type Relationship int

const (
	// RelUnknown indicates an unrecognized relationship tag.
	RelUnknown Relationship = iota

	// RelCalls indicates a function/method calls another.
	RelCalls

	// RelInvokes indicates a dynamic or indirect invocation.
	RelInvokes

	// RelImportsModule indicates a module-level import.
	RelImportsModule

	// RelImportsSymbol indicates a single-symbol import.
	RelImportsSymbol

	// RelRequires indicates a runtime require of a module.
	RelRequires

	// RelExports indicates the source exports the target symbol.
	RelExports

	// RelInherits indicates class inheritance.
	RelInherits

	// RelDefinesClass indicates a module defines a class.
	RelDefinesClass

	// RelDefinesFunction indicates a module defines a function.
	RelDefinesFunction

	// RelDefinesMethod indicates a class defines a method.
	RelDefinesMethod

	// RelReferences indicates a general symbol reference.
	RelReferences

	// RelDependsOn indicates an explicit dependency declaration.
	RelDependsOn

	// NumRelationships is the total number of relationship kinds.
	NumRelationships
)

var relationshipNames = map[Relationship]string{
	RelUnknown:         "unknown",
	RelCalls:           "calls",
	RelInvokes:         "invokes",
	RelImportsModule:   "imports_module",
	RelImportsSymbol:   "imports_symbol",
	RelRequires:        "requires",
	RelExports:         "exports",
	RelInherits:        "inherits",
	RelDefinesClass:    "defines_class",
	RelDefinesFunction: "defines_function",
	RelDefinesMethod:   "defines_method",
	RelReferences:      "references",
	RelDependsOn:       "depends_on",
}

var relationshipValues = func() map[string]Relationship {
	m := make(map[string]Relationship, len(relationshipNames))
	for rel, name := range relationshipNames {
		m[name] = rel
	}
	return m
}()

// String returns the wire representation of the Relationship.
func (r Relationship) String() string {
	if name, ok := relationshipNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRelationship maps a wire string to a Relationship.
//
// Exact matches are preferred. Unknown tags are classified once by their
// dominant verb so that generator dialects ("imports", "calls_method") still
// land in the right bucket; after this point no substring logic runs.
func ParseRelationship(s string) Relationship {
	tag := strings.ToLower(strings.TrimSpace(s))
	if rel, ok := relationshipValues[tag]; ok {
		return rel
	}
	switch {
	case strings.Contains(tag, "call"):
		return RelCalls
	case strings.Contains(tag, "invoke"):
		return RelInvokes
	case strings.Contains(tag, "import"):
		return RelImportsModule
	case strings.Contains(tag, "require"):
		return RelRequires
	case strings.Contains(tag, "export"):
		return RelExports
	case strings.Contains(tag, "inherit"), strings.Contains(tag, "extend"):
		return RelInherits
	case strings.Contains(tag, "reference"):
		return RelReferences
	case strings.Contains(tag, "depend"):
		return RelDependsOn
	}
	return RelUnknown
}

// MarshalJSON encodes the Relationship as its wire string.
func (r Relationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes the Relationship from its wire string.
func (r *Relationship) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRelationship(s)
	return nil
}

// RelationshipSet is an allow-list of relationship kinds.
type RelationshipSet [NumRelationships]bool

// NewRelationshipSet builds a set from the given kinds.
func NewRelationshipSet(rels ...Relationship) RelationshipSet {
	var set RelationshipSet
	for _, rel := range rels {
		if rel >= 0 && rel < NumRelationships {
			set[rel] = true
		}
	}
	return set
}

// Contains reports whether the set includes the given kind.
func (s RelationshipSet) Contains(rel Relationship) bool {
	return rel >= 0 && rel < NumRelationships && s[rel]
}

// Semantic relationship sets. These are the single source of truth for
// which edge kinds drive each analysis.
var (
	// DependencyRels are the kinds that create a dependency for cycle and
	// impact analysis. Definition edges are structural, not dependencies.
	DependencyRels = NewRelationshipSet(RelCalls, RelImportsModule, RelImportsSymbol, RelDependsOn)

	// CallRels are the kinds that mark a callee as used.
	CallRels = NewRelationshipSet(RelCalls, RelInvokes)

	// ImportRels are the kinds that mark the target as imported.
	ImportRels = NewRelationshipSet(RelImportsModule, RelImportsSymbol)

	// ModuleUsageRels are the kinds that keep a module from being orphaned.
	ModuleUsageRels = NewRelationshipSet(RelImportsModule, RelImportsSymbol, RelRequires)

	// UsageRels are the kinds that mark an imported symbol as used.
	UsageRels = NewRelationshipSet(RelCalls, RelInvokes, RelReferences)
)

// Node is a code entity in the dependency graph.
//
// Identity is ID: two nodes with the same ID arriving in different chunks
// are the same entity and must not duplicate.
type Node struct {
	// ID uniquely identifies the node across the whole graph.
	ID string `json:"id" validate:"required"`

	// Name is the declared name of the entity.
	Name string `json:"name"`

	// File is the path of the file the entity lives in.
	File string `json:"file"`

	// Category classifies the entity.
	Category Category `json:"category"`

	// Code is the embedded source snippet for the entity.
	Code string `json:"code,omitempty"`

	// StartLine and EndLine bound the entity in its file (1-based, optional).
	StartLine int `json:"start_line,omitempty"`
	EndLine   int `json:"end_line,omitempty"`
}

// Edge is a directed relationship between two nodes.
type Edge struct {
	// Source is the origin node ID.
	Source string `json:"source" validate:"required"`

	// Target is the destination node ID.
	Target string `json:"target" validate:"required"`

	// Relationship is the classified edge kind.
	Relationship Relationship `json:"relationship"`
}

// RenderPriority buckets a node's importance for the renderer.
type RenderPriority int

const (
	// RenderLow draws the node small with no label.
	RenderLow RenderPriority = iota

	// RenderMedium draws the node at medium size.
	RenderMedium

	// RenderHigh draws the node large and eligible for a label.
	RenderHigh
)

// String returns the wire representation of the RenderPriority.
func (p RenderPriority) String() string {
	switch p {
	case RenderHigh:
		return "high"
	case RenderMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalJSON encodes the RenderPriority as its wire string.
func (p RenderPriority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// EnhancedNode is a Node plus derived connectivity metrics.
//
// All fields below Node are functions of the current edge set. They are
// recomputed wholesale after any structural change, never patched.
type EnhancedNode struct {
	Node

	// InDegree is the number of incoming edges.
	InDegree int `json:"in_degree"`

	// OutDegree is the number of outgoing edges.
	OutDegree int `json:"out_degree"`

	// TotalConnections is InDegree + OutDegree.
	TotalConnections int `json:"total_connections"`

	// ImportanceScore is a normalized centrality heuristic in [0,1].
	// Incoming edges weigh double: being depended on matters more.
	ImportanceScore float64 `json:"importance_score"`

	// ConnectedFiles lists the distinct files reachable within the
	// connected-files radius, excluding the node's own file.
	ConnectedFiles []string `json:"connected_files"`

	// RenderPriority is the discretized importance bucket.
	RenderPriority RenderPriority `json:"render_priority"`
}
