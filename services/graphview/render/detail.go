// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"context"
	"fmt"

	"github.com/depscope/depscope/services/graphview/graph"
)

// DetailStage identifies one step of progressive node loading.
type DetailStage string

const (
	StageOutline    DetailStage = "outline"
	StageContent    DetailStage = "content"
	StageReferences DetailStage = "references"
)

// NodeOutline is the cheap first stage: identity and location.
type NodeOutline struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	File     string `json:"file"`
	Category string `json:"category"`
}

// NodeReference is one edge touching the node, resolved to a name.
type NodeReference struct {
	NodeID       string `json:"node_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	// Direction is "in" for edges targeting the node, "out" otherwise.
	Direction string `json:"direction"`
}

// NodeDetail accumulates across stages. Stage records how far the load
// got before completion or cancellation.
type NodeDetail struct {
	Outline    NodeOutline     `json:"outline"`
	Content    string          `json:"content,omitempty"`
	References []NodeReference `json:"references,omitempty"`
	Stage      DetailStage     `json:"stage"`
}

// DetailLoader loads node details in strict stage order: outline, then
// content, then references. The context is checked before each stage
// transition; cancellation aborts the remaining stages and returns what
// loaded so far alongside the context error.
type DetailLoader struct {
	graph *graph.Graph
}

// NewDetailLoader creates a loader over the graph.
func NewDetailLoader(g *graph.Graph) *DetailLoader {
	return &DetailLoader{graph: g}
}

// Load runs the stages for one node. On cancellation the partial
// detail is returned with a non-nil error; callers can still use the
// stages that completed.
func (l *DetailLoader) Load(ctx context.Context, nodeID string) (*NodeDetail, error) {
	n, ok := l.graph.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("detail for %q: %w", nodeID, graph.ErrNodeNotFound)
	}

	detail := &NodeDetail{
		Outline: NodeOutline{
			ID:       n.ID,
			Name:     n.Name,
			File:     n.File,
			Category: n.Category.String(),
		},
		Stage: StageOutline,
	}

	if err := ctx.Err(); err != nil {
		return detail, err
	}
	detail.Content = n.Code
	detail.Stage = StageContent

	if err := ctx.Err(); err != nil {
		return detail, err
	}
	detail.References = l.references(nodeID)
	detail.Stage = StageReferences
	return detail, nil
}

func (l *DetailLoader) references(nodeID string) []NodeReference {
	var refs []NodeReference
	for _, e := range l.graph.Incoming(nodeID) {
		refs = append(refs, l.referenceFor(e.Source, e.Relationship, "in"))
	}
	for _, e := range l.graph.Outgoing(nodeID) {
		refs = append(refs, l.referenceFor(e.Target, e.Relationship, "out"))
	}
	return refs
}

func (l *DetailLoader) referenceFor(id string, rel graph.Relationship, direction string) NodeReference {
	ref := NodeReference{
		NodeID:       id,
		Relationship: rel.String(),
		Direction:    direction,
	}
	if n, ok := l.graph.GetNode(id); ok {
		ref.Name = n.Name
	}
	return ref
}
