// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graphview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/depscope/depscope/services/graphview/graph"
	"github.com/depscope/depscope/services/graphview/render"
	"github.com/depscope/depscope/services/graphview/transport"
)

const (
	// chunkQueueDepth bounds buffered chunks awaiting merge; producers
	// block when the consumer falls behind.
	chunkQueueDepth = 256

	// mergeTickInterval and maxChunksPerTick time-slice chunk
	// application so a burst never starves other session requests.
	mergeTickInterval = 50 * time.Millisecond
	maxChunksPerTick  = 32

	defaultViewportWidth  = 1280.0
	defaultViewportHeight = 800.0
)

// Session owns one graph and everything derived from it: the metrics
// worker, layout, renderer and the current selection. The merge loop
// goroutine is the graph's single writer; every other access is a read.
type Session struct {
	ID        string
	Graph     *graph.Graph
	Worker    *graph.WorkerSession
	CreatedAt time.Time

	layout   *render.Layout
	renderer *render.Renderer
	viewport *render.Viewport

	mu       sync.Mutex
	selected string
	watcher  *fsnotify.Watcher

	chunks    chan *transport.Chunk
	pending   atomic.Int64
	ingesting atomic.Bool
	lastNanos atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func newSession(logger *slog.Logger) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Graph:     graph.New(),
		Worker:    graph.NewWorkerSession(),
		CreatedAt: time.Now(),
		chunks:    make(chan *transport.Chunk, chunkQueueDepth),
		done:      make(chan struct{}),
	}
	s.logger = logger.With(slog.String("session_id", s.ID))
	s.touch()
	go s.mergeLoop()
	return s
}

func (s *Session) touch() {
	s.lastNanos.Store(time.Now().UnixNano())
}

func (s *Session) lastAccess() time.Time {
	return time.Unix(0, s.lastNanos.Load())
}

// enqueue queues one chunk for merging. Blocks when the queue is full
// so a fast producer cannot grow memory without bound.
func (s *Session) enqueue(ctx context.Context, chunk *transport.Chunk) error {
	select {
	case <-s.done:
		return ErrSessionNotFound
	case <-ctx.Done():
		return ctx.Err()
	case s.chunks <- chunk:
		s.pending.Add(1)
		return nil
	}
}

// flush blocks until every queued chunk has been merged.
func (s *Session) flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrSessionNotFound
		case <-ticker.C:
		}
	}
	return nil
}

// mergeLoop is the single writer: it drains queued chunks in bounded
// batches per tick.
func (s *Session) mergeLoop() {
	ticker := time.NewTicker(mergeTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.drainBatch()
		}
	}
}

func (s *Session) drainBatch() {
	for i := 0; i < maxChunksPerTick; i++ {
		select {
		case chunk := <-s.chunks:
			s.applyChunk(chunk)
			s.pending.Add(-1)
		default:
			return
		}
	}
}

func (s *Session) applyChunk(chunk *transport.Chunk) {
	if chunk.IsPreamble() {
		if chunk.Metadata != nil {
			s.Graph.SetExpected(chunk.Metadata.TotalNodes, chunk.Metadata.TotalEdges)
		}
		return
	}

	nodes, edges, err := s.Graph.Merge(chunk.Nodes, chunk.Edges)
	if err != nil {
		s.logger.Warn("chunk merge rejected",
			slog.Int("chunk_id", chunk.ChunkID),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("chunk merged",
		slog.Int("chunk_id", chunk.ChunkID),
		slog.Int("nodes_added", nodes),
		slog.Int("edges_added", edges),
		slog.Float64("progress", chunk.Progress))

	if chunk.IsFinal {
		s.Graph.Complete()
	}
}

// recomputeMetrics refreshes importance scores and render priorities
// through the worker, falling back to a synchronous pass when the
// worker is unavailable.
func (s *Session) recomputeMetrics(ctx context.Context) {
	metrics, err := s.Worker.EnhanceAll(ctx, s.Graph)
	if err != nil {
		s.logger.Warn("worker enhance failed, computing synchronously",
			slog.String("error", err.Error()))
		metrics = s.Graph.EnhanceAll()
	}
	s.Graph.ApplyMetrics(metrics)
}

// Renderer lazily builds the layout, viewport and renderer for the
// session, running the force simulation on first use.
func (s *Session) Renderer(ctx context.Context) *render.Renderer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderer == nil {
		s.layout = render.NewLayout(s.Graph)
		s.viewport = render.NewViewport(defaultViewportWidth, defaultViewportHeight)
		s.renderer = render.NewRenderer(s.Graph, s.layout, s.viewport, s.Worker)
		// The simulation outlives the triggering request; it stops on
		// its own once the window elapses or the session closes.
		simCtx, cancel := context.WithCancel(context.Background())
		go func() {
			<-s.done
			cancel()
		}()
		go s.layout.Simulate(simCtx, render.DefaultSimulationWindow)
	}
	return s.renderer
}

// Viewport returns the session viewport, building the render state if
// needed.
func (s *Session) Viewport(ctx context.Context) *render.Viewport {
	s.Renderer(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// Select records the selection. Empty id clears it.
func (s *Session) Select(id string) {
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
}

// Selected returns the current selection, empty when none.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) setWatcher(w *fsnotify.Watcher) {
	s.mu.Lock()
	old := s.watcher
	s.watcher = w
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Close stops the merge loop, the worker and any file watcher.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.Worker.Close()
		s.setWatcher(nil)
	})
}

// Store holds live sessions with TTL eviction and bounded capacity.
// Concurrent ingests for the same key are coalesced via singleflight.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	capacity int

	flight singleflight.Group
	logger *slog.Logger
	stop   chan struct{}
	once   sync.Once
}

// NewStore creates a session store. A ttl of zero disables expiry.
func NewStore(ttl time.Duration, capacity int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	st := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		capacity: capacity,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go st.janitor()
	}
	return st
}

// Create adds a session, evicting the least recently used one when at
// capacity.
func (st *Store) Create() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.capacity > 0 && len(st.sessions) >= st.capacity {
		if !st.evictLRULocked() {
			return nil, ErrTooManySessions
		}
	}

	s := newSession(st.logger)
	st.sessions[s.ID] = s
	st.logger.Info("session created", slog.String("session_id", s.ID))
	return s, nil
}

// Get returns a live session and refreshes its last-access time.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	s.touch()
	return s, nil
}

// Remove closes and drops a session.
func (st *Store) Remove(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	s.Close()
	return nil
}

// Len returns the live session count.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Coalesce deduplicates concurrent identical operations, typically an
// ingest for the same session and source.
func (st *Store) Coalesce(key string, fn func() (any, error)) (any, error) {
	v, err, _ := st.flight.Do(key, fn)
	return v, err
}

// Close shuts down the janitor and every session.
func (st *Store) Close() {
	st.once.Do(func() {
		close(st.stop)
	})
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, s := range st.sessions {
		s.Close()
		delete(st.sessions, id)
	}
}

func (st *Store) janitor() {
	interval := st.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			st.evictExpired()
		}
	}
}

func (st *Store) evictExpired() {
	cutoff := time.Now().Add(-st.ttl)
	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		if s.lastAccess().Before(cutoff) && !s.ingesting.Load() {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		st.logger.Info("session expired", slog.String("session_id", s.ID))
		s.Close()
	}
}

// evictLRULocked drops the idle session with the oldest access time.
// Returns false when every session is mid-ingest.
func (st *Store) evictLRULocked() bool {
	var victim *Session
	for _, s := range st.sessions {
		if s.ingesting.Load() {
			continue
		}
		if victim == nil || s.lastAccess().Before(victim.lastAccess()) {
			victim = s
		}
	}
	if victim == nil {
		return false
	}
	delete(st.sessions, victim.ID)
	victim.Close()
	st.logger.Info("session evicted", slog.String("session_id", victim.ID))
	return true
}
