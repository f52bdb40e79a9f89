// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"sort"
	"strings"
)

// Search configuration limits.
const (
	// DefaultSearchLimit caps results when the filter does not set one.
	DefaultSearchLimit = 50

	// MaxSearchLimit is the hard ceiling on requested limits.
	MaxSearchLimit = 500
)

// MatchField identifies which node field satisfied a search query.
// Higher values outrank lower ones; the first matching field wins and no
// cumulative scoring applies beyond this weighting.
type MatchField int

const (
	// MatchNone means the node did not match.
	MatchNone MatchField = iota

	// MatchCategory matched the category name.
	MatchCategory

	// MatchCode matched inside the embedded code snippet.
	MatchCode

	// MatchFile matched the file path.
	MatchFile

	// MatchName matched the node name.
	MatchName
)

// String returns a wire label for the match field.
func (f MatchField) String() string {
	switch f {
	case MatchName:
		return "name"
	case MatchFile:
		return "file"
	case MatchCode:
		return "code"
	case MatchCategory:
		return "category"
	default:
		return "none"
	}
}

// SearchFilters narrows and bounds a search.
type SearchFilters struct {
	// Categories is an allow-list; empty admits every category.
	Categories []Category

	// Limit caps the result count (default DefaultSearchLimit).
	Limit int
}

// SearchResult is one scored search hit.
type SearchResult struct {
	// Node is the matching node.
	Node *Node `json:"node"`

	// Field is which field matched.
	Field MatchField `json:"-"`

	// MatchedOn is the wire label of Field.
	MatchedOn string `json:"matched_on"`

	// Importance is the node's importance at scoring time.
	Importance float64 `json:"importance"`
}

// Search scores nodes against a case-insensitive substring query.
//
// Description:
//
//	Each candidate is scored by the first field that matches, in priority
//	order name > file path > embedded code > category. Results are ordered
//	by (match priority desc, importance desc) and capped to the limit.
//	An empty query matches nothing.
func (g *Graph) Search(query string, filters SearchFilters) []SearchResult {
	g.mu.RLock()
	defer g.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []SearchResult{}
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	} else if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	var allowed map[Category]bool
	if len(filters.Categories) > 0 {
		allowed = make(map[Category]bool, len(filters.Categories))
		for _, c := range filters.Categories {
			allowed[c] = true
		}
	}

	results := make([]SearchResult, 0)
	for _, id := range g.nodeOrder {
		node := g.nodes[id]
		if allowed != nil && !allowed[node.Category] {
			continue
		}
		field := matchNode(node, query)
		if field == MatchNone {
			continue
		}
		importance := 0.0
		if m, ok := g.metrics[node.ID]; ok {
			importance = m.ImportanceScore
		}
		results = append(results, SearchResult{
			Node:       node,
			Field:      field,
			MatchedOn:  field.String(),
			Importance: importance,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Field != results[j].Field {
			return results[i].Field > results[j].Field
		}
		return results[i].Importance > results[j].Importance
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// matchNode returns the highest-priority field containing the query.
func matchNode(n *Node, query string) MatchField {
	if strings.Contains(strings.ToLower(n.Name), query) {
		return MatchName
	}
	if strings.Contains(strings.ToLower(n.File), query) {
		return MatchFile
	}
	if n.Code != "" && strings.Contains(strings.ToLower(n.Code), query) {
		return MatchCode
	}
	if strings.Contains(n.Category.String(), query) {
		return MatchCategory
	}
	return MatchNone
}
