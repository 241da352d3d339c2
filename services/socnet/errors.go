// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package socnet

import "errors"

// Sentinel errors for person management. Store failures (graphstore.ErrNotFound,
// graphstore.ErrTransactionConflict) are returned wrapped but unchanged in kind.
var (
	// ErrEmptyName is returned when creating a person with a blank name.
	ErrEmptyName = errors.New("person name must not be empty")

	// ErrPersonExists is returned when a person with the name already exists.
	ErrPersonExists = errors.New("person already exists")

	// ErrPersonNotFound is returned when no person has the requested name.
	ErrPersonNotFound = errors.New("person not found")
)
