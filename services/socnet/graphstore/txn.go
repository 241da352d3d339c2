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

import (
	"context"
	"fmt"
)

// Update executes fn within a writable transaction.
//
// Description:
//
//	Begins a writable transaction, executes fn, and commits if fn returns
//	nil. The transaction is discarded (rolled back) on error or panic.
//
// Inputs:
//
//	ctx - Context for cancellation, checked before starting.
//	store - The store to open the transaction on.
//	fn - Function to execute within the transaction.
//
// Outputs:
//
//	error - fn's error unchanged, or the commit error.
func Update(ctx context.Context, store Store, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	tx, err := store.Begin(ctx, true)
	if err != nil {
		return err
	}
	defer tx.Discard()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// View executes fn within a read-only transaction.
func View(ctx context.Context, store Store, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	tx, err := store.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer tx.Discard()

	return fn(tx)
}

// StringProperty reads a string property.
func StringProperty(ctx context.Context, tx Tx, node NodeID, key string) (string, error) {
	v, err := tx.Property(ctx, node, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("property %q of node %d is %T, not string", key, node, v)
	}
	return s, nil
}

// Int64Property reads an integer property.
func Int64Property(ctx context.Context, tx Tx, node NodeID, key string) (int64, error) {
	v, err := tx.Property(ctx, node, key)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("property %q of node %d is %T, not int64", key, node, v)
	}
	return i, nil
}
