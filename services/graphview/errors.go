// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graphview

import "errors"

var (
	// ErrSessionNotFound indicates a request against an unknown or
	// expired session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions indicates the session store is at capacity
	// and nothing is eligible for eviction.
	ErrTooManySessions = errors.New("too many active sessions")

	// ErrIngestInProgress indicates a second ingest was requested for
	// a session that is still merging.
	ErrIngestInProgress = errors.New("ingest already in progress")

	// ErrNoSelection indicates a request that needs a selected node
	// while the selection is empty.
	ErrNoSelection = errors.New("no node selected")

	// ErrWatcherUnavailable indicates file watching could not start.
	ErrWatcherUnavailable = errors.New("file watcher unavailable")
)
