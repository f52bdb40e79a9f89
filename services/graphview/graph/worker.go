// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Worker pool configuration constants.
const (
	// parallelThreshold is the minimum shard size worth a goroutine.
	// Smaller batches run sequentially for better cache locality.
	parallelThreshold = 256

	// maxParallelWorkers caps compute goroutines regardless of CPU count.
	// The enhancement pass is memory-bound; more fan-out does not help.
	maxParallelWorkers = 8

	// DefaultRequestTimeout is how long a queued request may remain
	// unresolved before the stale sweep rejects it.
	DefaultRequestTimeout = 30 * time.Second

	// defaultSweepInterval is how often the stale sweep runs.
	defaultSweepInterval = 5 * time.Second

	// requestQueueDepth bounds the request queue.
	requestQueueDepth = 64
)

// Position is a 2D layout position, used by viewport culling requests.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CullBounds is the buffered viewport rectangle in world coordinates.
type CullBounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Contains reports whether a position falls inside the bounds.
func (b CullBounds) Contains(p Position) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// workerResult carries a reply back to a waiting caller.
type workerResult struct {
	value any
	err   error
}

// workerRequest is one queued unit of work with its correlation id.
type workerRequest struct {
	id       uint64
	ctx      context.Context
	run      func(ctx context.Context) (any, error)
	enqueued time.Time
}

// WorkerSession runs heavy per-node computation off the request path.
//
// Description:
//
//	An explicit session object owning the pending-request table and a
//	monotonically increasing correlation-id counter. Requests are queued,
//	executed by a bounded goroutine pool, and resolved by matching reply.
//	A periodic sweep rejects any request outstanding beyond the configured
//	timeout with ErrRequestTimeout, individually, so one stuck request
//	never poisons the queue.
//
// Thread Safety:
//
//	Safe for concurrent use. Close is idempotent; requests submitted after
//	Close fail with ErrWorkerUnavailable.
type WorkerSession struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*pendingEntry

	requests chan workerRequest
	done     chan struct{}
	closed   bool
	wg       sync.WaitGroup

	workers    int
	staleAfter time.Duration
	sweepEvery time.Duration
}

type pendingEntry struct {
	reply    chan workerResult
	enqueued time.Time
}

// WorkerOption configures a WorkerSession.
type WorkerOption func(*WorkerSession)

// WithWorkers sets the pool size. Values <= 0 fall back to NumCPU (capped).
func WithWorkers(n int) WorkerOption {
	return func(w *WorkerSession) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithRequestTimeout sets the stale-request window.
func WithRequestTimeout(d time.Duration) WorkerOption {
	return func(w *WorkerSession) {
		if d > 0 {
			w.staleAfter = d
		}
	}
}

// withSweepInterval shortens the sweep period. Test hook.
func withSweepInterval(d time.Duration) WorkerOption {
	return func(w *WorkerSession) {
		if d > 0 {
			w.sweepEvery = d
		}
	}
}

// NewWorkerSession creates and starts a metrics worker session.
func NewWorkerSession(opts ...WorkerOption) *WorkerSession {
	workers := runtime.NumCPU()
	if workers > maxParallelWorkers {
		workers = maxParallelWorkers
	}
	w := &WorkerSession{
		pending:    make(map[uint64]*pendingEntry),
		requests:   make(chan workerRequest, requestQueueDepth),
		done:       make(chan struct{}),
		workers:    workers,
		staleAfter: DefaultRequestTimeout,
		sweepEvery: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(w)
	}

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	w.wg.Add(1)
	go w.sweep()
	return w
}

// Close stops the pool and rejects all pending requests.
func (w *WorkerSession) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.done)
	for id, entry := range w.pending {
		entry.reply <- workerResult{err: ErrWorkerUnavailable}
		delete(w.pending, id)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// EnhanceAll computes the derived metric set for every node of g, sharding
// the node list across the pool when it is wide enough.
//
// Errors:
//
//	ErrWorkerUnavailable - session closed before or during the request.
//	ErrRequestTimeout - request outstanding beyond the stale window.
func (w *WorkerSession) EnhanceAll(ctx context.Context, g *Graph) (map[string]*EnhancedNode, error) {
	value, err := w.submit(ctx, func(ctx context.Context) (any, error) {
		return w.enhanceParallel(ctx, g), nil
	})
	if err != nil {
		return nil, err
	}
	return value.(map[string]*EnhancedNode), nil
}

// Cull returns the IDs whose positions fall inside bounds, always retaining
// every ID in keep regardless of position.
func (w *WorkerSession) Cull(ctx context.Context, positions map[string]Position, bounds CullBounds, keep map[string]bool) ([]string, error) {
	value, err := w.submit(ctx, func(ctx context.Context) (any, error) {
		visible := make([]string, 0, len(positions))
		for id, pos := range positions {
			if bounds.Contains(pos) || keep[id] {
				visible = append(visible, id)
			}
		}
		// Map iteration order is random; callers rely on a stable
		// visible list for reproducible draw order.
		sort.Strings(visible)
		return visible, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]string), nil
}

// submit queues work under a fresh correlation id and waits for the reply.
func (w *WorkerSession) submit(ctx context.Context, run func(ctx context.Context) (any, error)) (any, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrWorkerUnavailable
	}
	w.nextID++
	id := w.nextID
	entry := &pendingEntry{
		reply:    make(chan workerResult, 1),
		enqueued: time.Now(),
	}
	w.pending[id] = entry
	w.mu.Unlock()

	req := workerRequest{id: id, ctx: ctx, run: run, enqueued: entry.enqueued}
	select {
	case w.requests <- req:
	case <-w.done:
		w.resolve(id, workerResult{err: ErrWorkerUnavailable})
	case <-ctx.Done():
		w.resolve(id, workerResult{err: ctx.Err()})
	}

	select {
	case res := <-entry.reply:
		return res.value, res.err
	case <-ctx.Done():
		w.drop(id)
		return nil, ctx.Err()
	}
}

// resolve delivers a result to the pending entry with the given id, if it
// is still outstanding.
func (w *WorkerSession) resolve(id uint64, res workerResult) {
	w.mu.Lock()
	entry, ok := w.pending[id]
	if ok {
		delete(w.pending, id)
	}
	w.mu.Unlock()
	if ok {
		entry.reply <- res
	}
}

// drop abandons a pending entry without delivering a result.
func (w *WorkerSession) drop(id uint64) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()
}

// loop is one pool goroutine.
func (w *WorkerSession) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case req := <-w.requests:
			if req.ctx.Err() != nil {
				w.resolve(req.id, workerResult{err: req.ctx.Err()})
				continue
			}
			value, err := req.run(req.ctx)
			w.resolve(req.id, workerResult{value: value, err: err})
		}
	}
}

// sweep rejects requests that have been outstanding too long. Rejection is
// per-request; in-flight work for other ids is untouched.
func (w *WorkerSession) sweep() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.mu.Lock()
			var stale []uint64
			for id, entry := range w.pending {
				if now.Sub(entry.enqueued) > w.staleAfter {
					stale = append(stale, id)
				}
			}
			for _, id := range stale {
				entry := w.pending[id]
				delete(w.pending, id)
				entry.reply <- workerResult{err: ErrRequestTimeout}
			}
			w.mu.Unlock()
			if len(stale) > 0 {
				slog.Warn("rejected stale worker requests",
					slog.Int("count", len(stale)),
					slog.Duration("stale_after", w.staleAfter),
				)
			}
		}
	}
}

// enhanceParallel shards the node list across compute goroutines when the
// graph is wide enough, merging the per-shard maps at the end.
func (w *WorkerSession) enhanceParallel(ctx context.Context, g *Graph) map[string]*EnhancedNode {
	g.mu.RLock()
	ids := make([]string, len(g.nodeOrder))
	copy(ids, g.nodeOrder)
	g.mu.RUnlock()

	if len(ids) <= parallelThreshold {
		g.mu.RLock()
		defer g.mu.RUnlock()
		return g.enhanceRangeLocked(ids)
	}

	shards := w.workers
	if shards > len(ids)/parallelThreshold+1 {
		shards = len(ids)/parallelThreshold + 1
	}
	chunk := (len(ids) + shards - 1) / shards

	partials := make([]map[string]*EnhancedNode, shards)
	var wg sync.WaitGroup
	for s := 0; s < shards; s++ {
		lo := s * chunk
		hi := lo + chunk
		if hi > len(ids) {
			hi = len(ids)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(s, lo, hi int) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			g.mu.RLock()
			partials[s] = g.enhanceRangeLocked(ids[lo:hi])
			g.mu.RUnlock()
		}(s, lo, hi)
	}
	wg.Wait()

	merged := make(map[string]*EnhancedNode, len(ids))
	for _, part := range partials {
		for id, m := range part {
			merged[id] = m
		}
	}
	return merged
}
