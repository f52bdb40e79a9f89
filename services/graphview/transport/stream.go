// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// scanBufferSize is the initial scanner buffer; maxEventBytes caps a
	// single SSE line. A 500-node chunk with embedded code can run large.
	scanBufferSize = 64 * 1024
	maxEventBytes  = 16 * 1024 * 1024

	defaultStreamTimeout = 10 * time.Minute
)

// StreamReader consumes a chunked graph stream over SSE.
//
// # Description
//
// Connects to an upstream endpoint emitting `data: <json>` lines, where
// each payload is either a Chunk or a terminal frame. Chunks are handed
// to the caller in arrival order. The reader never discards partial
// progress: chunks delivered before a failure stay delivered.
//
// # Thread Safety
//
// A StreamReader is stateless between calls; Read may be invoked
// concurrently with distinct contexts.
type StreamReader struct {
	client *http.Client
	logger *slog.Logger
}

// StreamReaderOption configures a StreamReader.
type StreamReaderOption func(*StreamReader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) StreamReaderOption {
	return func(r *StreamReader) {
		r.client = client
	}
}

// WithLogger sets the logger for stream lifecycle events.
func WithLogger(logger *slog.Logger) StreamReaderOption {
	return func(r *StreamReader) {
		r.logger = logger
	}
}

// NewStreamReader creates a reader with the given options.
func NewStreamReader(opts ...StreamReaderOption) *StreamReader {
	r := &StreamReader{
		client: &http.Client{Timeout: defaultStreamTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read streams chunks from url until a terminal frame, a failure, or
// context cancellation.
//
// # Inputs
//
//   - ctx: Cancels the underlying request and the read loop.
//   - url: Upstream SSE endpoint.
//   - handle: Called once per chunk, preamble included, in order. A
//     non-nil return stops the stream and is returned unchanged.
//
// # Outputs
//
//   - error: nil after a complete frame; ErrUpstreamStatus,
//     ErrMalformedChunk, ErrErrorFrame or ErrTruncatedStream otherwise.
func (r *StreamReader) Read(ctx context.Context, url string, handle func(*Chunk) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	log := r.logger.With(slog.String("url", url))
	log.Debug("graph stream connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, scanBufferSize), maxEventBytes)

	received := 0
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			// Blank separators, comments and event/id fields.
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedChunk, err)
		}

		switch env.Type {
		case frameComplete:
			log.Debug("graph stream complete", slog.Int("chunks", received))
			return nil
		case frameError:
			return fmt.Errorf("%w: %s", ErrErrorFrame, env.Error)
		}

		var chunk Chunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedChunk, err)
		}
		received++
		if err := handle(&chunk); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrTruncatedStream
}
