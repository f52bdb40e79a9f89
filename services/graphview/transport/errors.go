// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transport

import "errors"

var (
	// ErrUpstreamStatus indicates a non-2xx response from the upstream
	// stream endpoint.
	ErrUpstreamStatus = errors.New("upstream returned non-success status")

	// ErrMalformedChunk indicates a data frame that failed to decode.
	ErrMalformedChunk = errors.New("malformed chunk")

	// ErrErrorFrame indicates the upstream sent an explicit error frame.
	ErrErrorFrame = errors.New("upstream error frame")

	// ErrTruncatedStream indicates the connection closed before a
	// terminal frame arrived.
	ErrTruncatedStream = errors.New("stream ended without terminal frame")

	// ErrSpoolClosed indicates use of a Spool after Close.
	ErrSpoolClosed = errors.New("spool is closed")
)
