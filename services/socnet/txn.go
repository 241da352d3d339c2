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

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// update runs fn as one instrumented write transaction.
func (n *Network) update(ctx context.Context, op string, node graphstore.NodeID, fn func(ctx context.Context, tx graphstore.Tx) error) (err error) {
	ctx, span := startSpan(ctx, op, node)
	start := time.Now()
	defer func() {
		recordMutation(op, err)
		endSpan(ctx, span, op, start, err)
	}()

	err = graphstore.Update(ctx, n.store, func(tx graphstore.Tx) error {
		return fn(ctx, tx)
	})
	switch {
	case err == nil:
		n.logger.Debug("mutation committed",
			slog.String("operation", op),
			slog.Uint64("node", uint64(node)),
		)
	case graphstore.IsRetryable(err):
		n.logger.Warn("transaction conflict",
			slog.String("operation", op),
			slog.Uint64("node", uint64(node)),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// view runs fn as one instrumented read transaction.
func (n *Network) view(ctx context.Context, op string, node graphstore.NodeID, fn func(ctx context.Context, tx graphstore.Tx) error) (err error) {
	ctx, span := startSpan(ctx, op, node)
	start := time.Now()
	defer func() { endSpan(ctx, span, op, start, err) }()

	return graphstore.View(ctx, n.store, func(tx graphstore.Tx) error {
		return fn(ctx, tx)
	})
}
