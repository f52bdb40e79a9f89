// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package render computes node positions and builds drawable frames
// for the interactive graph view.
package render

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/depscope/depscope/services/graphview/graph"
)

const (
	// Circle initialization: important nodes sit closer to the center.
	baseRadius   = 1000.0
	centerPull   = 0.7
	jitterRadius = 25.0

	// Force simulation tuning.
	repulsionThreshold = 250.0
	repulsionStrength  = 60000.0
	springStrength     = 0.02
	springRestLength   = 120.0
	maxSpringForce     = 40.0
	damping            = 0.85
	tickInterval       = 16 * time.Millisecond
	integrationStep    = 0.5

	// DefaultSimulationWindow bounds the wall-clock time spent settling
	// the layout before positions freeze.
	DefaultSimulationWindow = 3 * time.Second
)

// Layout owns the position map for one graph. Positions are mutable
// during the simulation window and frozen afterwards; panning and
// zooming act on the camera, never on frozen positions.
//
// # Thread Safety
//
// Safe for concurrent use. Simulate holds the write lock per tick, so
// readers observe consistent snapshots between ticks.
type Layout struct {
	mu        sync.RWMutex
	graph     *graph.Graph
	positions map[string]graph.Position
	velocity  map[string]graph.Position
	frozen    bool
	rng       *rand.Rand
}

// LayoutOption configures a Layout.
type LayoutOption func(*Layout)

// WithSeed makes the jitter deterministic.
func WithSeed(seed int64) LayoutOption {
	return func(l *Layout) {
		l.rng = rand.New(rand.NewSource(seed))
	}
}

// NewLayout places every node of the graph on a circle whose radius
// shrinks with importance, with a small jitter to break symmetry.
func NewLayout(g *graph.Graph, opts ...LayoutOption) *Layout {
	l := &Layout{
		graph:     g,
		positions: make(map[string]graph.Position),
		velocity:  make(map[string]graph.Position),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(l)
	}

	nodes := g.Nodes()
	if len(nodes) == 0 {
		return l
	}
	step := 2 * math.Pi / float64(len(nodes))
	for i, n := range nodes {
		importance := g.Importance(n.ID)
		radius := baseRadius * (1 - centerPull*importance)
		angle := step * float64(i)
		l.positions[n.ID] = graph.Position{
			X: radius*math.Cos(angle) + (l.rng.Float64()*2-1)*jitterRadius,
			Y: radius*math.Sin(angle) + (l.rng.Float64()*2-1)*jitterRadius,
		}
		l.velocity[n.ID] = graph.Position{}
	}
	return l
}

// Simulate runs the force simulation for at most window wall-clock
// time, then freezes the layout. Cancelling the context stops early;
// positions computed so far are kept and frozen.
func (l *Layout) Simulate(ctx context.Context, window time.Duration) {
	if window <= 0 {
		window = DefaultSimulationWindow
	}
	deadline := time.Now().Add(window)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			l.freeze()
			return
		case <-ticker.C:
			l.tick()
		}
	}
	l.freeze()
}

// Frozen reports whether the simulation window has elapsed.
func (l *Layout) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}

// Positions returns a copy of the current position map.
func (l *Layout) Positions() map[string]graph.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]graph.Position, len(l.positions))
	for id, p := range l.positions {
		out[id] = p
	}
	return out
}

// Position returns one node's position.
func (l *Layout) Position(id string) (graph.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[id]
	return p, ok
}

func (l *Layout) freeze() {
	l.mu.Lock()
	l.frozen = true
	l.mu.Unlock()
}

// tick applies one integration step: pairwise repulsion within the
// distance threshold, capped spring attraction along edges, damped
// velocity integration.
func (l *Layout) tick() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		return
	}

	ids := make([]string, 0, len(l.positions))
	for id := range l.positions {
		ids = append(ids, id)
	}
	forces := make(map[string]graph.Position, len(ids))

	// Repulsion, inverse-square falloff inside the threshold.
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := l.positions[ids[i]], l.positions[ids[j]]
			dx, dy := a.X-b.X, a.Y-b.Y
			distSq := dx*dx + dy*dy
			if distSq == 0 {
				dx, distSq = 0.1, 0.01
			}
			dist := math.Sqrt(distSq)
			if dist > repulsionThreshold {
				continue
			}
			mag := repulsionStrength / distSq
			fx, fy := dx/dist*mag, dy/dist*mag
			fa, fb := forces[ids[i]], forces[ids[j]]
			fa.X += fx
			fa.Y += fy
			fb.X -= fx
			fb.Y -= fy
			forces[ids[i]], forces[ids[j]] = fa, fb
		}
	}

	// Spring attraction along edges, proportional to stretch, capped.
	for _, e := range l.graph.Edges() {
		a, okA := l.positions[e.Source]
		b, okB := l.positions[e.Target]
		if !okA || !okB {
			continue
		}
		dx, dy := b.X-a.X, b.Y-a.Y
		dist := math.Hypot(dx, dy)
		if dist == 0 {
			continue
		}
		mag := springStrength * (dist - springRestLength)
		if mag > maxSpringForce {
			mag = maxSpringForce
		} else if mag < -maxSpringForce {
			mag = -maxSpringForce
		}
		fx, fy := dx/dist*mag, dy/dist*mag
		fa, fb := forces[e.Source], forces[e.Target]
		fa.X += fx
		fa.Y += fy
		fb.X -= fx
		fb.Y -= fy
		forces[e.Source], forces[e.Target] = fa, fb
	}

	// Damped integration.
	for _, id := range ids {
		v := l.velocity[id]
		f := forces[id]
		v.X = (v.X + f.X*integrationStep) * damping
		v.Y = (v.Y + f.Y*integrationStep) * damping
		l.velocity[id] = v

		p := l.positions[id]
		p.X += v.X * integrationStep
		p.Y += v.Y * integrationStep
		l.positions[id] = p
	}
}
