// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graphview serves interactive dependency-graph sessions: it
// ingests graph payloads from direct uploads, chunked SSE streams and
// watched files, and exposes query, health, impact and render
// operations over them.
package graphview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/depscope/depscope/services/graphview/graph"
	"github.com/depscope/depscope/services/graphview/health"
	"github.com/depscope/depscope/services/graphview/impact"
	"github.com/depscope/depscope/services/graphview/transport"
)

// ServiceConfig controls session lifetimes and ingest behavior.
type ServiceConfig struct {
	// SessionTTL evicts sessions idle longer than this. Zero disables
	// expiry.
	SessionTTL time.Duration
	// MaxSessions bounds live sessions; the least recently used idle
	// session is evicted at capacity. Zero means unbounded.
	MaxSessions int
	// ChunkSize is the default nodes-per-chunk for outbound streams
	// and file ingest.
	ChunkSize int
	// IngestTimeout bounds one stream or file ingest end to end.
	IngestTimeout time.Duration
}

// DefaultServiceConfig returns production defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		SessionTTL:    30 * time.Minute,
		MaxSessions:   64,
		ChunkSize:     transport.DefaultChunkSize,
		IngestTimeout: 10 * time.Minute,
	}
}

// Service is the graphview application core. Handlers translate HTTP
// to these methods; everything below them is transport-agnostic.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	config  ServiceConfig
	store   *Store
	chunker *transport.Chunker
	reader  *transport.StreamReader
	spool   *transport.Spool
	logger  *slog.Logger
}

// NewService wires the session store, chunker, SSE reader and chunk
// spool. The spool is optional infrastructure: when it cannot be
// opened the service runs without stream replay.
func NewService(cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	spool, err := transport.OpenSpool(logger)
	if err != nil {
		logger.Warn("chunk spool unavailable, stream replay disabled",
			slog.String("error", err.Error()))
		spool = nil
	}

	return &Service{
		config:  cfg,
		store:   NewStore(cfg.SessionTTL, cfg.MaxSessions, logger),
		chunker: transport.NewChunker(transport.WithChunkSize(cfg.ChunkSize)),
		reader:  transport.NewStreamReader(transport.WithLogger(logger)),
		spool:   spool,
		logger:  logger,
	}
}

// Close releases every session and the spool.
func (s *Service) Close() {
	s.store.Close()
	if s.spool != nil {
		if err := s.spool.Close(); err != nil {
			s.logger.Warn("spool close failed", slog.String("error", err.Error()))
		}
	}
}

// CreateSession opens a new empty graph session.
func (s *Service) CreateSession() (*CreateSessionResponse, error) {
	sess, err := s.store.Create()
	if err != nil {
		return nil, err
	}
	return &CreateSessionResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
	}, nil
}

// DeleteSession closes a session and drops its graph.
func (s *Service) DeleteSession(id string) error {
	if s.spool != nil {
		if err := s.spool.Clear(id); err != nil && !errors.Is(err, transport.ErrSpoolClosed) {
			s.logger.Warn("spool clear failed",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
		}
	}
	return s.store.Remove(id)
}

// Ingest merges a direct graph payload into the session. Merging is
// idempotent, so retried payloads are safe.
func (s *Service) Ingest(ctx context.Context, sessionID string, req *IngestRequest) (*IngestResponse, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	nodes, edges, err := sess.Graph.Merge(req.Nodes, req.Edges)
	if err != nil {
		return nil, err
	}
	if req.Complete {
		sess.Graph.Complete()
	}
	sess.recomputeMetrics(ctx)

	return s.ingestResponse(sess, nodes, edges), nil
}

// IngestStream consumes a chunked SSE stream into the session.
// Concurrent requests for the same session and URL are coalesced.
// Chunks merged before a mid-stream failure are retained.
func (s *Service) IngestStream(ctx context.Context, sessionID string, req *StreamIngestRequest) (*IngestResponse, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	key := sessionID + "|" + req.URL
	resp, err := s.store.Coalesce(key, func() (any, error) {
		return s.ingestStream(ctx, sess, req.URL)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*IngestResponse), nil
}

func (s *Service) ingestStream(ctx context.Context, sess *Session, url string) (*IngestResponse, error) {
	if !sess.ingesting.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("session %s: %w", sess.ID, ErrIngestInProgress)
	}
	defer sess.ingesting.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.IngestTimeout)
	defer cancel()

	before := sess.Graph.Stats()
	streamErr := s.reader.Read(ctx, url, func(chunk *transport.Chunk) error {
		if s.spool != nil {
			if err := s.spool.Put(sess.ID, chunk); err != nil {
				s.logger.Warn("spool write failed", slog.String("error", err.Error()))
			}
		}
		return sess.enqueue(ctx, chunk)
	})

	// Drain whatever was queued even on failure so partial data stays
	// queryable.
	if err := sess.flush(ctx); err != nil && streamErr == nil {
		streamErr = err
	}
	sess.recomputeMetrics(ctx)

	after := sess.Graph.Stats()
	resp := s.ingestResponse(sess,
		after.TotalNodes-before.TotalNodes,
		after.TotalEdges-before.TotalEdges)
	if streamErr != nil {
		return nil, streamErr
	}
	return resp, nil
}

type filePayload struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// IngestFile loads a graph payload from disk, chunked through the same
// pipeline as streams. With Watch set, the file is re-ingested on
// every write until the session closes.
func (s *Service) IngestFile(ctx context.Context, sessionID string, req *FileIngestRequest) (*IngestResponse, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := s.ingestFile(ctx, sess, req.Path, req.ChunkSize)
	if err != nil {
		return nil, err
	}

	if req.Watch {
		if err := s.watchFile(sess, req.Path, req.ChunkSize); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (s *Service) ingestFile(ctx context.Context, sess *Session, path string, chunkSize int) (*IngestResponse, error) {
	if !sess.ingesting.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("session %s: %w", sess.ID, ErrIngestInProgress)
	}
	defer sess.ingesting.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.IngestTimeout)
	defer cancel()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	var payload filePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse graph file %s: %w", path, err)
	}

	chunker := s.chunker
	if chunkSize > 0 {
		chunker = transport.NewChunker(transport.WithChunkSize(chunkSize))
	}

	before := sess.Graph.Stats()
	for _, chunk := range chunker.Chunks(payload.Nodes, payload.Edges) {
		if err := sess.enqueue(ctx, chunk); err != nil {
			return nil, err
		}
	}
	if err := sess.flush(ctx); err != nil {
		return nil, err
	}
	sess.recomputeMetrics(ctx)

	after := sess.Graph.Stats()
	return s.ingestResponse(sess,
		after.TotalNodes-before.TotalNodes,
		after.TotalEdges-before.TotalEdges), nil
}

func (s *Service) watchFile(sess *Session, path string, chunkSize int) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherUnavailable, err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("%w: watch %s: %v", ErrWatcherUnavailable, path, err)
	}
	sess.setWatcher(watcher)

	go func() {
		logger := s.logger.With(
			slog.String("session_id", sess.ID),
			slog.String("path", path))
		for {
			select {
			case <-sess.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				logger.Info("watched graph file changed, re-ingesting")
				if _, err := s.ingestFile(context.Background(), sess, path, chunkSize); err != nil {
					logger.Warn("re-ingest failed", slog.String("error", err.Error()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

// ReplayChunks re-feeds spooled stream chunks into the session, used
// after a consumer failure to recover without re-fetching upstream.
func (s *Service) ReplayChunks(ctx context.Context, sessionID string) (*IngestResponse, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.spool == nil {
		return nil, transport.ErrSpoolClosed
	}

	before := sess.Graph.Stats()
	if err := s.spool.Replay(sessionID, func(chunk *transport.Chunk) error {
		return sess.enqueue(ctx, chunk)
	}); err != nil {
		return nil, err
	}
	if err := sess.flush(ctx); err != nil {
		return nil, err
	}
	sess.recomputeMetrics(ctx)

	after := sess.Graph.Stats()
	return s.ingestResponse(sess,
		after.TotalNodes-before.TotalNodes,
		after.TotalEdges-before.TotalEdges), nil
}

func (s *Service) ingestResponse(sess *Session, nodes, edges int) *IngestResponse {
	stats := sess.Graph.Stats()
	return &IngestResponse{
		SessionID:  sess.ID,
		NodesAdded: nodes,
		EdgesAdded: edges,
		TotalNodes: stats.TotalNodes,
		TotalEdges: stats.TotalEdges,
		Complete:   stats.Complete,
	}
}

// StreamChunks snapshots the session graph as an ordered chunk
// sequence for an outbound SSE stream.
func (s *Service) StreamChunks(sessionID string, chunkSize int) ([]*transport.Chunk, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	chunker := s.chunker
	if chunkSize > 0 {
		chunker = transport.NewChunker(transport.WithChunkSize(chunkSize))
	}
	nodePtrs := sess.Graph.Nodes()
	nodes := make([]graph.Node, len(nodePtrs))
	for i, n := range nodePtrs {
		nodes[i] = *n
	}
	edgePtrs := sess.Graph.Edges()
	edges := make([]graph.Edge, len(edgePtrs))
	for i, e := range edgePtrs {
		edges[i] = *e
	}
	return chunker.Chunks(nodes, edges), nil
}

// Node returns one node by id.
func (s *Service) Node(sessionID, nodeID string) (*graph.Node, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	node, ok := sess.Graph.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", nodeID, graph.ErrNodeNotFound)
	}
	return node, nil
}

// Edges returns edges filtered by source and target; empty strings
// match any endpoint.
func (s *Service) Edges(sessionID, source, target string) ([]*graph.Edge, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Graph.GetEdges(source, target), nil
}

// NodesByFile returns the nodes declared in one source file.
func (s *Service) NodesByFile(sessionID, path string) ([]*graph.Node, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Graph.GetNodesByFile(path), nil
}

// NodesByCategory returns the nodes of one category.
func (s *Service) NodesByCategory(sessionID, category string) ([]*graph.Node, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Graph.GetNodesByCategory(graph.ParseCategory(category)), nil
}

// Connected walks the neighborhood of a node up to the requested
// depth. Depth -1 means unbounded.
func (s *Service) Connected(ctx context.Context, sessionID string, req *ConnectedRequest) ([]graph.Connection, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Graph.ConnectedNodes(ctx, req.NodeID, req.Depth)
}

// Search runs a scored substring search over node names and files.
func (s *Service) Search(sessionID string, req *SearchRequest) ([]graph.SearchResult, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	categories := make([]graph.Category, 0, len(req.Categories))
	for _, c := range req.Categories {
		categories = append(categories, graph.ParseCategory(c))
	}
	return sess.Graph.Search(req.Query, graph.SearchFilters{
		Categories: categories,
		Limit:      req.Limit,
	}), nil
}

// Health runs the full codebase health analysis for the session.
func (s *Service) Health(ctx context.Context, sessionID string) (*health.Report, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return health.NewAnalyzer(sess.Graph).Analyze(ctx)
}

// Impact estimates the blast radius of changing one node.
func (s *Service) Impact(ctx context.Context, sessionID string, req *ImpactRequest) (*impact.Report, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	change, err := impact.ParseChangeType(req.ChangeType)
	if err != nil {
		return nil, err
	}
	return impact.NewAnalyzer(sess.Graph).Analyze(ctx, req.NodeID, change)
}

// ImpactBulk estimates the combined blast radius of changing several
// nodes together.
func (s *Service) ImpactBulk(ctx context.Context, sessionID string, req *BulkImpactRequest) (*impact.BulkReport, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	change, err := impact.ParseChangeType(req.ChangeType)
	if err != nil {
		return nil, err
	}
	return impact.NewAnalyzer(sess.Graph).AnalyzeBulk(ctx, req.NodeIDs, change)
}

// Select marks a node as the session selection, highlights it and its
// direct neighborhood in the renderer, and returns both.
func (s *Service) Select(ctx context.Context, sessionID, nodeID string) (*SelectionResponse, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	node, ok := sess.Graph.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", nodeID, graph.ErrNodeNotFound)
	}

	connected, err := sess.Graph.ConnectedNodes(ctx, nodeID, 1)
	if err != nil {
		return nil, err
	}

	highlight := make([]string, 0, len(connected)+1)
	highlight = append(highlight, nodeID)
	for _, c := range connected {
		highlight = append(highlight, c.Node.ID)
	}
	sess.Renderer(ctx).Highlight(highlight)
	sess.Select(nodeID)

	return &SelectionResponse{Node: node, Connected: connected}, nil
}

// Selection returns the current selection with its neighborhood and a
// modify-impact estimate. ErrNoSelection when nothing is selected.
func (s *Service) Selection(ctx context.Context, sessionID string) (*SelectionContext, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	selected := sess.Selected()
	if selected == "" {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNoSelection)
	}
	return s.selectionContext(ctx, sess, selected)
}

// ClearSelection drops the selection and its highlight.
func (s *Service) ClearSelection(ctx context.Context, sessionID string) error {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return err
	}
	sess.Select("")
	sess.Renderer(ctx).Highlight(nil)
	return nil
}

// Stats returns aggregate graph statistics for the session.
func (s *Service) Stats(sessionID string) (*graph.Stats, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	stats := sess.Graph.Stats()
	return &stats, nil
}

// Export assembles a downloadable snapshot: statistics, the health
// report, and the current selection with its neighborhood and a
// modify-impact estimate.
func (s *Service) Export(ctx context.Context, sessionID string) (*ExportBundle, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	bundle := &ExportBundle{
		GeneratedAt: time.Now().UTC(),
		SessionID:   sess.ID,
		Stats:       sess.Graph.Stats(),
	}

	report, err := health.NewAnalyzer(sess.Graph).Analyze(ctx)
	switch {
	case err == nil:
		bundle.Health = report
	case errors.Is(err, graph.ErrEmptyGraph):
		// Empty sessions still export their (zero) stats.
	default:
		return nil, err
	}

	if selected := sess.Selected(); selected != "" {
		selCtx, err := s.selectionContext(ctx, sess, selected)
		if err != nil {
			return nil, err
		}
		bundle.Selection = selCtx
	}
	return bundle, nil
}

func (s *Service) selectionContext(ctx context.Context, sess *Session, nodeID string) (*SelectionContext, error) {
	node, ok := sess.Graph.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %q: %w", nodeID, graph.ErrNodeNotFound)
	}
	connected, err := sess.Graph.ConnectedNodes(ctx, nodeID, 1)
	if err != nil {
		return nil, err
	}
	report, err := impact.NewAnalyzer(sess.Graph).Analyze(ctx, nodeID, impact.ChangeModify)
	if err != nil {
		return nil, err
	}
	return &SelectionContext{Node: node, Connected: connected, Impact: report}, nil
}

// Session exposes store lookup to transport layers that need the raw
// session, such as the websocket view.
func (s *Service) Session(id string) (*Session, error) {
	return s.store.Get(id)
}
