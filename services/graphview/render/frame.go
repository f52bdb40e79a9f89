// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/depscope/depscope/services/graphview/graph"
)

const (
	radiusLow    = 4.0
	radiusMedium = 6.0
	radiusHigh   = 9.0
	// Highlighted nodes draw half again as large.
	highlightScale = 1.5

	// labelZoomThreshold hides labels when zoomed far out.
	labelZoomThreshold = 0.8
	maxLabelPx         = 140.0
	// approxCharPx approximates glyph advance for truncation without a
	// font metrics dependency.
	approxCharPx = 7.0
	ellipsis     = "…"
)

// FrameNode is one drawable node in screen coordinates.
type FrameNode struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Radius      float64 `json:"radius"`
	Priority    string  `json:"priority"`
	Highlighted bool    `json:"highlighted"`
	Label       string  `json:"label,omitempty"`
}

// FrameEdge is one drawable edge; endpoints are screen coordinates.
type FrameEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
}

// Frame is one complete draw list. Edges precede nodes so nodes paint
// on top; Nodes is in draw order, so the last entry is frontmost.
type Frame struct {
	Edges  []FrameEdge `json:"edges"`
	Nodes  []FrameNode `json:"nodes"`
	Camera Camera      `json:"camera"`
}

// Renderer builds frames from a graph, a layout and a viewport, and
// resolves pointer picks against the last built frame.
//
// # Thread Safety
//
// Safe for concurrent use. Pick operates on the frame most recently
// returned by BuildFrame.
type Renderer struct {
	graph    *graph.Graph
	layout   *Layout
	viewport *Viewport
	worker   *graph.WorkerSession

	mu          sync.Mutex
	highlighted map[string]bool
	lastFrame   *Frame
}

// NewRenderer assembles a renderer. The worker session is optional;
// when nil, culling runs synchronously on the calling goroutine.
func NewRenderer(g *graph.Graph, layout *Layout, viewport *Viewport, worker *graph.WorkerSession) *Renderer {
	return &Renderer{
		graph:       g,
		layout:      layout,
		viewport:    viewport,
		worker:      worker,
		highlighted: make(map[string]bool),
	}
}

// Highlight replaces the highlighted node set.
func (r *Renderer) Highlight(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.highlighted = make(map[string]bool, len(ids))
	for _, id := range ids {
		r.highlighted[id] = true
	}
}

// Highlighted returns the highlighted set as a sorted slice.
func (r *Renderer) Highlighted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.highlighted))
	for id := range r.highlighted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildFrame culls to the buffered viewport, always retaining the
// highlighted set, and produces the draw list for one frame.
func (r *Renderer) BuildFrame(ctx context.Context) (*Frame, error) {
	positions := r.layout.Positions()
	bounds := r.viewport.CullBounds()

	r.mu.Lock()
	keep := make(map[string]bool, len(r.highlighted))
	for id := range r.highlighted {
		keep[id] = true
	}
	r.mu.Unlock()

	visible, err := r.cull(ctx, positions, bounds, keep)
	if err != nil {
		return nil, err
	}

	cam := r.viewport.Camera()
	visibleSet := make(map[string]bool, len(visible))
	for _, id := range visible {
		visibleSet[id] = true
	}

	frame := &Frame{Camera: cam}

	// Edges first so nodes draw over them. Only edges with both
	// endpoints visible are worth the draw call.
	for _, e := range r.graph.Edges() {
		if !visibleSet[e.Source] || !visibleSet[e.Target] {
			continue
		}
		p1, p2 := positions[e.Source], positions[e.Target]
		x1, y1 := r.viewport.WorldToScreen(p1.X, p1.Y)
		x2, y2 := r.viewport.WorldToScreen(p2.X, p2.Y)
		frame.Edges = append(frame.Edges, FrameEdge{
			Source: e.Source, Target: e.Target,
			X1: x1, Y1: y1, X2: x2, Y2: y2,
		})
	}

	// Draw order: low priority first, high priority and highlighted
	// last, so the most important nodes end up frontmost. Ties break
	// on id so draw order, and therefore picking among overlapping
	// equal-rank nodes, is identical frame to frame.
	sort.Slice(visible, func(i, j int) bool {
		ri, rj := r.drawRank(visible[i]), r.drawRank(visible[j])
		if ri != rj {
			return ri < rj
		}
		return visible[i] < visible[j]
	})

	for _, id := range visible {
		n, ok := r.graph.GetNode(id)
		if !ok {
			continue
		}
		pos := positions[id]
		x, y := r.viewport.WorldToScreen(pos.X, pos.Y)

		priority := r.priorityFor(id)
		highlighted := keep[id]
		radius := radiusFor(priority)
		if highlighted {
			radius *= highlightScale
		}

		fn := FrameNode{
			ID:          id,
			X:           x,
			Y:           y,
			Radius:      radius,
			Priority:    priority.String(),
			Highlighted: highlighted,
		}
		if cam.Scale >= labelZoomThreshold && (priority == graph.RenderHigh || highlighted) {
			fn.Label = truncateLabel(n.Name, maxLabelPx/cam.Scale)
		}
		frame.Nodes = append(frame.Nodes, fn)
	}

	r.mu.Lock()
	r.lastFrame = frame
	r.mu.Unlock()
	return frame, nil
}

// Pick resolves a click at the given screen position against the last
// frame. Nodes are tested front to back, so when nodes overlap the one
// drawn last wins. Returns the node id and true on a hit.
func (r *Renderer) Pick(px, py float64) (string, bool) {
	r.mu.Lock()
	frame := r.lastFrame
	r.mu.Unlock()
	if frame == nil {
		return "", false
	}

	for i := len(frame.Nodes) - 1; i >= 0; i-- {
		n := frame.Nodes[i]
		if math.Hypot(px-n.X, py-n.Y) <= n.Radius {
			return n.ID, true
		}
	}
	return "", false
}

func (r *Renderer) cull(ctx context.Context, positions map[string]graph.Position, bounds graph.CullBounds, keep map[string]bool) ([]string, error) {
	if r.worker != nil {
		visible, err := r.worker.Cull(ctx, positions, bounds, keep)
		if err == nil {
			return visible, nil
		}
		// Worker unavailable: fall through to the synchronous path.
	}

	var visible []string
	for id, p := range positions {
		if keep[id] || bounds.Contains(p) {
			visible = append(visible, id)
		}
	}
	sort.Strings(visible)
	return visible, nil
}

func (r *Renderer) priorityFor(id string) graph.RenderPriority {
	if m := r.graph.Metrics(id); m != nil {
		return m.RenderPriority
	}
	return graph.RenderLow
}

func (r *Renderer) drawRank(id string) int {
	r.mu.Lock()
	highlighted := r.highlighted[id]
	r.mu.Unlock()
	if highlighted {
		return 3
	}
	switch r.priorityFor(id) {
	case graph.RenderHigh:
		return 2
	case graph.RenderMedium:
		return 1
	default:
		return 0
	}
}

func radiusFor(p graph.RenderPriority) float64 {
	switch p {
	case graph.RenderHigh:
		return radiusHigh
	case graph.RenderMedium:
		return radiusMedium
	default:
		return radiusLow
	}
}

// truncateLabel cuts the label to the pixel budget using an
// approximate glyph width, appending an ellipsis when shortened.
func truncateLabel(label string, maxPx float64) string {
	maxChars := int(maxPx / approxCharPx)
	if maxChars < 1 {
		return ""
	}
	runes := []rune(label)
	if len(runes) <= maxChars {
		return label
	}
	if maxChars == 1 {
		return ellipsis
	}
	return string(runes[:maxChars-1]) + ellipsis
}
