// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// SetSSEHeaders sets the response headers required for event streaming.
// Must be called before the first write.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// SSEWriter emits chunk streams in SSE wire format, one event per
// chunk plus a terminal frame. Each event carries a uuid id line.
//
// # Thread Safety
//
// Safe for concurrent use; writes are serialized by a mutex.
type SSEWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter wraps a ResponseWriter for event streaming. The writer
// must support http.Flusher. Call SetSSEHeaders first.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support http.Flusher")
	}
	return &SSEWriter{writer: w, flusher: flusher}, nil
}

// WriteChunk emits one chunk as an SSE event and flushes.
func (w *SSEWriter) WriteChunk(c *Chunk) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal chunk %d: %w", c.ChunkID, err)
	}
	return w.writeEvent(data)
}

// WriteComplete emits the terminal completion frame.
func (w *SSEWriter) WriteComplete() error {
	return w.writeEvent([]byte(`{"type":"complete"}`))
}

// WriteError emits the terminal error frame. The message should be
// client-safe; internal detail belongs in the log, not on the wire.
func (w *SSEWriter) WriteError(msg string) error {
	data, err := json.Marshal(envelope{Type: frameError, Error: msg})
	if err != nil {
		return err
	}
	return w.writeEvent(data)
}

// WriteKeepAlive sends an SSE comment to hold the connection open
// through proxies with idle timeouts.
func (w *SSEWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprint(w.writer, ": ping\n\n"); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

func (w *SSEWriter) writeEvent(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "id: %s\ndata: %s\n\n", uuid.New().String(), data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}
