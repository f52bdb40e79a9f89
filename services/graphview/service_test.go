// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graphview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depscope/depscope/services/graphview/graph"
	"github.com/depscope/depscope/services/graphview/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(DefaultServiceConfig(), testLogger())
	t.Cleanup(svc.Close)
	return svc
}

func testGraphJSON(t *testing.T, count int) []byte {
	t.Helper()
	nodes := make([]map[string]any, count)
	for i := range nodes {
		nodes[i] = map[string]any{
			"id":       fmt.Sprintf("n%03d", i),
			"name":     fmt.Sprintf("fn%03d", i),
			"file":     "src/mod.py",
			"category": "function",
		}
	}
	raw, err := json.Marshal(map[string]any{
		"nodes": nodes,
		"edges": []map[string]any{
			{"source": "n000", "target": "n001", "relationship": "calls"},
		},
	})
	require.NoError(t, err)
	return raw
}

func testStreamNodes(count int) []graph.Node {
	nodes := make([]graph.Node, count)
	for i := range nodes {
		nodes[i] = graph.Node{
			ID:       fmt.Sprintf("n%03d", i),
			Name:     fmt.Sprintf("fn%03d", i),
			File:     "src/mod.py",
			Category: graph.CategoryFunction,
		}
	}
	return nodes
}

func TestService_IngestFile(t *testing.T) {
	svc := testService(t)
	sess, err := svc.CreateSession()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, testGraphJSON(t, 120), 0o644))

	resp, err := svc.IngestFile(context.Background(), sess.SessionID, &FileIngestRequest{
		Path:      path,
		ChunkSize: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 120, resp.NodesAdded)
	assert.Equal(t, 1, resp.EdgesAdded)
	assert.True(t, resp.Complete, "file ingest must deliver the terminal chunk")
}

func TestService_IngestFile_MissingFile(t *testing.T) {
	svc := testService(t)
	sess, err := svc.CreateSession()
	require.NoError(t, err)

	_, err = svc.IngestFile(context.Background(), sess.SessionID, &FileIngestRequest{
		Path: filepath.Join(t.TempDir(), "absent.json"),
	})
	assert.Error(t, err, "missing file must fail")
}

// ingestStreamServer serves chunks as SSE, then the given terminal
// frame.
func ingestStreamServer(t *testing.T, chunks []*transport.Chunk, terminal string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			raw, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		}
		fmt.Fprintf(w, "data: {\"type\": %q}\n\n", terminal)
		flusher.Flush()
	}))
}

func TestService_IngestStream(t *testing.T) {
	chunks := transport.NewChunker(transport.WithChunkSize(50)).Chunks(testStreamNodes(120), nil)
	srv := ingestStreamServer(t, chunks, "complete")
	defer srv.Close()

	svc := testService(t)
	sess, err := svc.CreateSession()
	require.NoError(t, err)

	resp, err := svc.IngestStream(context.Background(), sess.SessionID, &StreamIngestRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 120, resp.NodesAdded)
	assert.True(t, resp.Complete, "stream carried the terminal chunk")
}

func TestService_IngestStream_PartialRetainedOnError(t *testing.T) {
	chunks := transport.NewChunker(transport.WithChunkSize(50)).Chunks(testStreamNodes(60), nil)
	// Serve only the preamble and the first data chunk, then fail.
	srv := ingestStreamServer(t, chunks[:2], "error")
	defer srv.Close()

	svc := testService(t)
	sess, err := svc.CreateSession()
	require.NoError(t, err)

	_, err = svc.IngestStream(context.Background(), sess.SessionID, &StreamIngestRequest{URL: srv.URL})
	require.ErrorIs(t, err, transport.ErrErrorFrame)

	stats, err := svc.Stats(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 50, stats.TotalNodes, "delivered chunk must survive the failure")
	assert.False(t, stats.Complete, "failed stream must not complete the graph")
}

func TestService_ReplayChunks(t *testing.T) {
	chunks := transport.NewChunker(transport.WithChunkSize(50)).Chunks(testStreamNodes(60), nil)
	srv := ingestStreamServer(t, chunks[:2], "error")
	defer srv.Close()

	svc := testService(t)
	sess, err := svc.CreateSession()
	require.NoError(t, err)

	_, err = svc.IngestStream(context.Background(), sess.SessionID, &StreamIngestRequest{URL: srv.URL})
	require.Error(t, err, "stream should have failed")

	// Replay re-applies the spooled chunks. The graph already holds
	// them, so nothing new is added and nothing is lost.
	resp, err := svc.ReplayChunks(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.NodesAdded)
	assert.Equal(t, 50, resp.TotalNodes)
}

func TestService_SelectHighlightsNeighborhood(t *testing.T) {
	svc := testService(t)
	created, err := svc.CreateSession()
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), created.SessionID, &IngestRequest{
		Nodes: []graph.Node{
			{ID: "a", Name: "a", File: "a.py", Category: graph.CategoryFunction},
			{ID: "b", Name: "b", File: "b.py", Category: graph.CategoryFunction},
			{ID: "c", Name: "c", File: "c.py", Category: graph.CategoryFunction},
		},
		Edges: []graph.Edge{
			{Source: "a", Target: "b", Relationship: graph.RelCalls},
		},
	})
	require.NoError(t, err)

	resp, err := svc.Select(context.Background(), created.SessionID, "a")
	require.NoError(t, err)
	require.Len(t, resp.Connected, 1)
	assert.Equal(t, "b", resp.Connected[0].Node.ID)

	sess, err := svc.Session(created.SessionID)
	require.NoError(t, err)
	assert.Len(t, sess.Renderer(context.Background()).Highlighted(), 2,
		"highlight covers selection plus neighbor")
	assert.Equal(t, "a", sess.Selected())

	require.NoError(t, svc.ClearSelection(context.Background(), created.SessionID))
	assert.Empty(t, sess.Selected())
}

func TestService_IngestFileWatch(t *testing.T) {
	svc := testService(t)
	created, err := svc.CreateSession()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, testGraphJSON(t, 10), 0o644))

	resp, err := svc.IngestFile(context.Background(), created.SessionID, &FileIngestRequest{
		Path:  path,
		Watch: true,
	})
	require.NoError(t, err)
	require.Equal(t, 10, resp.NodesAdded)

	// The watch goroutine re-ingests on write. The re-ingest merges
	// onto a completed graph and is dropped, which keeps watch ingest
	// safe for unchanged files; here we only assert the watcher is
	// installed and the session survives the event.
	require.NoError(t, os.WriteFile(path, testGraphJSON(t, 10), 0o644))
	time.Sleep(150 * time.Millisecond)

	stats, err := svc.Stats(created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalNodes)
}
