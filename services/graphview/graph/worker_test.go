// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestWorkerSession_EnhanceAllMatchesSynchronous(t *testing.T) {
	g := New()
	nodes := make([]Node, 0, 600)
	edges := make([]Edge, 0, 599)
	for i := 0; i < 600; i++ {
		nodes = append(nodes, testNode(fmt.Sprintf("n%d", i), fmt.Sprintf("fn%d", i), fmt.Sprintf("f%d.py", i%10), CategoryFunction))
		if i > 0 {
			edges = append(edges, testEdge(fmt.Sprintf("n%d", i-1), fmt.Sprintf("n%d", i), RelCalls))
		}
	}
	if _, _, err := g.Merge(nodes, edges); err != nil {
		t.Fatalf("merge: %v", err)
	}

	w := NewWorkerSession(WithWorkers(4))
	defer w.Close()

	parallel, err := w.EnhanceAll(context.Background(), g)
	if err != nil {
		t.Fatalf("EnhanceAll: %v", err)
	}
	sync := g.EnhanceAll()

	if len(parallel) != len(sync) {
		t.Fatalf("parallel computed %d nodes, sync %d", len(parallel), len(sync))
	}
	for id, want := range sync {
		got := parallel[id]
		if got == nil {
			t.Fatalf("missing %s in parallel result", id)
		}
		if got.ImportanceScore != want.ImportanceScore || got.TotalConnections != want.TotalConnections {
			t.Errorf("%s: parallel %+v != sync %+v", id, got, want)
		}
	}
}

func TestWorkerSession_Cull(t *testing.T) {
	w := NewWorkerSession(WithWorkers(1))
	defer w.Close()

	positions := map[string]Position{
		"in":       {X: 5, Y: 5},
		"out":      {X: 500, Y: 500},
		"pinned":   {X: 900, Y: 900},
		"boundary": {X: 10, Y: 10},
	}
	bounds := CullBounds{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	keep := map[string]bool{"pinned": true}

	visible, err := w.Cull(context.Background(), positions, bounds, keep)
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	set := make(map[string]bool, len(visible))
	for _, id := range visible {
		set[id] = true
	}
	if !set["in"] || !set["boundary"] {
		t.Errorf("in-bounds nodes missing: %v", visible)
	}
	if set["out"] {
		t.Error("out-of-bounds node not culled")
	}
	// Highlighted/selected nodes survive culling regardless of position.
	if !set["pinned"] {
		t.Error("pinned node was culled")
	}
}

func TestWorkerSession_ClosedRejectsRequests(t *testing.T) {
	w := NewWorkerSession(WithWorkers(1))
	w.Close()

	if _, err := w.EnhanceAll(context.Background(), New()); !errors.Is(err, ErrWorkerUnavailable) {
		t.Errorf("expected ErrWorkerUnavailable, got %v", err)
	}
}

func TestWorkerSession_StaleSweepRejectsIndividually(t *testing.T) {
	w := NewWorkerSession(
		WithWorkers(1),
		WithRequestTimeout(50*time.Millisecond),
		withSweepInterval(20*time.Millisecond),
	)
	defer w.Close()

	// Jam the single worker so the next request goes stale in the queue.
	release := make(chan struct{})
	go func() {
		_, _ = w.submit(context.Background(), func(context.Context) (any, error) {
			<-release
			return nil, nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	_, err := w.submit(context.Background(), func(context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("expected ErrRequestTimeout, got %v", err)
	}
	close(release)

	// The session stays usable after a stale rejection.
	if _, err := w.Cull(context.Background(), map[string]Position{}, CullBounds{}, nil); err != nil {
		t.Errorf("session unusable after stale rejection: %v", err)
	}
}

func TestWorkerSession_ContextCancellation(t *testing.T) {
	w := NewWorkerSession(WithWorkers(1))
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.EnhanceAll(ctx, New()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
