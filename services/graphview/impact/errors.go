// Copyright (C) 2026 Depscope Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package impact

import "errors"

var (
	// ErrUnknownChangeType indicates a change type outside modify,
	// refactor and delete.
	ErrUnknownChangeType = errors.New("unknown change type")

	// ErrNoTargets indicates a bulk analysis request with an empty
	// target list.
	ErrNoTargets = errors.New("no targets to analyze")
)
