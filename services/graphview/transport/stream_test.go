// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/depscope/depscope/services/graphview/graph"
)

// streamServer serves the given chunker output followed by a terminal
// frame chosen by the caller.
func streamServer(t *testing.T, chunks []*Chunk, terminal string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetSSEHeaders(w)
		writer, err := NewSSEWriter(w)
		if err != nil {
			t.Errorf("sse writer: %v", err)
			return
		}
		for _, c := range chunks {
			if err := writer.WriteChunk(c); err != nil {
				return
			}
		}
		switch terminal {
		case "complete":
			writer.WriteComplete()
		case "error":
			writer.WriteError("upstream parse failed")
		case "malformed":
			fmt.Fprint(w, "data: {not json\n\n")
		}
		// Anything else: close without a terminal frame.
	}))
}

func TestStreamReader_RoundTrip(t *testing.T) {
	nodes := makeNodes(120, graph.CategoryFunction)
	chunks := NewChunker(WithChunkSize(60)).Chunks(nodes, nil)
	srv := streamServer(t, chunks, "complete")
	defer srv.Close()

	var got []*Chunk
	err := NewStreamReader().Read(context.Background(), srv.URL, func(c *Chunk) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("chunks received: %d, want preamble + 2", len(got))
	}
	if !got[0].IsPreamble() {
		t.Error("first received chunk should be the preamble")
	}
	if !got[2].IsFinal {
		t.Error("last data chunk should be final")
	}
}

func TestStreamReader_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewStreamReader().Read(context.Background(), srv.URL, func(*Chunk) error { return nil })
	if !errors.Is(err, ErrUpstreamStatus) {
		t.Errorf("expected ErrUpstreamStatus, got %v", err)
	}
}

func TestStreamReader_ErrorFramePreservesPartialData(t *testing.T) {
	nodes := makeNodes(60, graph.CategoryFunction)
	chunks := NewChunker(WithChunkSize(60)).Chunks(nodes, nil)
	srv := streamServer(t, chunks, "error")
	defer srv.Close()

	received := 0
	err := NewStreamReader().Read(context.Background(), srv.URL, func(c *Chunk) error {
		received++
		return nil
	})
	if !errors.Is(err, ErrErrorFrame) {
		t.Fatalf("expected ErrErrorFrame, got %v", err)
	}
	if received != 2 {
		t.Errorf("chunks before error: %d, want preamble + 1", received)
	}
}

func TestStreamReader_MalformedChunk(t *testing.T) {
	srv := streamServer(t, nil, "malformed")
	defer srv.Close()

	err := NewStreamReader().Read(context.Background(), srv.URL, func(*Chunk) error { return nil })
	if !errors.Is(err, ErrMalformedChunk) {
		t.Errorf("expected ErrMalformedChunk, got %v", err)
	}
}

func TestStreamReader_TruncatedStream(t *testing.T) {
	srv := streamServer(t, nil, "none")
	defer srv.Close()

	err := NewStreamReader().Read(context.Background(), srv.URL, func(*Chunk) error { return nil })
	if !errors.Is(err, ErrTruncatedStream) {
		t.Errorf("expected ErrTruncatedStream, got %v", err)
	}
}

func TestStreamReader_HandlerErrorStopsRead(t *testing.T) {
	nodes := makeNodes(120, graph.CategoryFunction)
	chunks := NewChunker(WithChunkSize(60)).Chunks(nodes, nil)
	srv := streamServer(t, chunks, "complete")
	defer srv.Close()

	sentinel := errors.New("enough")
	err := NewStreamReader().Read(context.Background(), srv.URL, func(c *Chunk) error {
		if c.IsPreamble() {
			return nil
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestSpool_ReplayInOrder(t *testing.T) {
	spool, err := OpenSpool(nil)
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	defer spool.Close()

	nodes := makeNodes(150, graph.CategoryFunction)
	chunks := NewChunker(WithChunkSize(50)).Chunks(nodes, nil)

	// Insert out of order; replay must come back sorted.
	for i := len(chunks) - 1; i >= 0; i-- {
		if err := spool.Put("sess-1", chunks[i]); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	var ids []int
	if err := spool.Replay("sess-1", func(c *Chunk) error {
		ids = append(ids, c.ChunkID)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	want := []int{-1, 0, 1, 2}
	if len(ids) != len(want) {
		t.Fatalf("replayed ids: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("replayed ids: %v, want %v", ids, want)
		}
	}

	if err := spool.Clear("sess-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	count := 0
	spool.Replay("sess-1", func(*Chunk) error { count++; return nil })
	if count != 0 {
		t.Errorf("chunks after clear: %d", count)
	}
}

func TestSpool_ClosedRejects(t *testing.T) {
	spool, err := OpenSpool(nil)
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	spool.Close()

	if err := spool.Put("s", &Chunk{ChunkID: 0}); !errors.Is(err, ErrSpoolClosed) {
		t.Errorf("expected ErrSpoolClosed, got %v", err)
	}
}
