// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import "errors"

// Sentinel errors for the graph package.
var (
	// ErrGraphComplete indicates a merge was attempted after the terminal chunk.
	ErrGraphComplete = errors.New("graph is complete")

	// ErrNodeNotFound indicates the requested node ID is not in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEmptyGraph indicates the graph holds no nodes.
	ErrEmptyGraph = errors.New("graph is empty")

	// ErrWorkerUnavailable indicates the metrics worker is not running.
	ErrWorkerUnavailable = errors.New("metrics worker unavailable")

	// ErrRequestTimeout indicates a worker request outlived the stale sweep window.
	ErrRequestTimeout = errors.New("worker request timed out")
)
