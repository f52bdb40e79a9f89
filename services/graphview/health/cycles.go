// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package health

import (
	"sort"
	"strings"

	"github.com/depscope/depscope/services/graphview/graph"
)

// Cycles finds circular dependencies over dependency-creating edges.
//
// Description:
//
//	Iterative depth-first search restricted to graph.DependencyRels. A
//	back-edge into the active path produces a cycle. Cycles discovered
//	from different start points are deduplicated by their sorted member
//	set; the reported order is rotated to start at the smallest member so
//	output is deterministic. Uses an explicit stack; deep graphs must not
//	overflow the goroutine stack.
//
// Severity:
//
//	low for cycles of <=2 nodes, medium for 3-4, high for >4.
func (a *Analyzer) Cycles() []Cycle {
	type frame struct {
		id        string
		edgeIndex int
	}

	const (
		colorWhite = 0 // unvisited
		colorGray  = 1 // on the active path
		colorBlack = 2 // fully explored
	)

	color := make(map[string]int)
	seen := make(map[string]bool) // normalized cycle keys
	cycles := make([]Cycle, 0)

	nodes := a.graph.Nodes()
	for _, start := range nodes {
		if color[start.ID] != colorWhite {
			continue
		}

		stack := []frame{{id: start.ID}}
		color[start.ID] = colorGray
		path := []string{start.ID}
		onPath := map[string]int{start.ID: 0}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := a.graph.Outgoing(top.id)

			advanced := false
			for top.edgeIndex < len(edges) {
				e := edges[top.edgeIndex]
				top.edgeIndex++

				if !graph.DependencyRels.Contains(e.Relationship) {
					continue
				}
				switch color[e.Target] {
				case colorWhite:
					color[e.Target] = colorGray
					stack = append(stack, frame{id: e.Target})
					onPath[e.Target] = len(path)
					path = append(path, e.Target)
					advanced = true
				case colorGray:
					// Back edge: the cycle is the path suffix from the
					// target to the current node.
					if at, ok := onPath[e.Target]; ok {
						members := append([]string(nil), path[at:]...)
						if c, fresh := normalizeCycle(members, seen); fresh {
							cycles = append(cycles, c)
						}
					}
				}
				if advanced {
					break
				}
			}

			if !advanced {
				color[top.id] = colorBlack
				delete(onPath, top.id)
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i].Nodes) != len(cycles[j].Nodes) {
			return len(cycles[i].Nodes) > len(cycles[j].Nodes)
		}
		return cycles[i].Nodes[0] < cycles[j].Nodes[0]
	})
	return cycles
}

// CyclesContaining returns only the cycles that include the given node.
func (a *Analyzer) CyclesContaining(id string) []Cycle {
	all := a.Cycles()
	result := make([]Cycle, 0)
	for _, c := range all {
		for _, member := range c.Nodes {
			if member == id {
				result = append(result, c)
				break
			}
		}
	}
	return result
}

// normalizeCycle dedupes by sorted member key and rotates the member list
// to start at its smallest element. Returns fresh=false for duplicates.
func normalizeCycle(members []string, seen map[string]bool) (Cycle, bool) {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	key := strings.Join(sorted, "\x00")
	if seen[key] {
		return Cycle{}, false
	}
	seen[key] = true

	// Rotate so the smallest member leads while preserving cycle order.
	minAt := 0
	for i, m := range members {
		if m < members[minAt] {
			minAt = i
		}
	}
	rotated := make([]string, 0, len(members))
	rotated = append(rotated, members[minAt:]...)
	rotated = append(rotated, members[:minAt]...)

	return Cycle{Nodes: rotated, Severity: severityFor(len(members))}, true
}

func severityFor(length int) Severity {
	switch {
	case length <= 2:
		return SeverityLow
	case length <= 4:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}
