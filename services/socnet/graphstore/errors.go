// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphstore

import "errors"

// Sentinel errors for store operations. Adapters wrap them with %w so
// callers can test with errors.Is.
var (
	// ErrNotFound is returned when a referenced node or edge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPropertyNotFound is returned when a node has no value for a key.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrDuplicateEdge is returned by adapters that enforce at most one edge
	// of a type between a pair of nodes.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrTransactionConflict is returned when a concurrent transaction
	// modified data this transaction depends on. The caller may retry the
	// whole operation.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrReadOnly is returned when a read-only transaction is asked to write.
	ErrReadOnly = errors.New("transaction is read-only")

	// ErrTxClosed is returned when a committed or discarded transaction is used.
	ErrTxClosed = errors.New("transaction is closed")

	// ErrStoreClosed is returned by Begin after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidEdgeType is returned for malformed edge type names.
	ErrInvalidEdgeType = errors.New("invalid edge type")
)

// IsRetryable reports whether err is a conflict the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}
