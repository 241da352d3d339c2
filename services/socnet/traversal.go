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
	"fmt"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// friendsAtDepth returns the persons exactly depth FRIEND hops from start.
//
// Description:
//
//	Breadth-first over FRIEND edges in both directions with global node
//	uniqueness, so a person reached at depth 1 is never reported at depth 2
//	and each person is reported once. The start person is excluded.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	tx - Open transaction.
//	start - The person to expand from.
//	depth - Exact hop count. Depth 1 yields direct friends.
//
// Outputs:
//
//	[]graphstore.NodeID - Person nodes in discovery order.
//	error - Non-nil if the store fails.
func friendsAtDepth(ctx context.Context, tx graphstore.Tx, start graphstore.NodeID, depth int) ([]graphstore.NodeID, error) {
	it, err := tx.Traverse(ctx, start, graphstore.TraversalDescription{
		Order:      graphstore.BreadthFirst,
		Direction:  graphstore.Both,
		EdgeTypes:  []graphstore.EdgeType{EdgeFriend},
		Uniqueness: graphstore.UniquenessNodeGlobal,
		Evaluators: []graphstore.Evaluator{
			graphstore.AtDepth(depth),
			graphstore.ExcludeStartPosition(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("friends at depth %d: %w", depth, err)
	}

	paths, err := graphstore.CollectPaths(it)
	if err != nil {
		return nil, fmt.Errorf("friends at depth %d: %w", depth, err)
	}

	ids := make([]graphstore.NodeID, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, p.End())
	}
	return ids, nil
}

// friendEdge returns the FRIEND edge between a and b in either direction.
func friendEdge(ctx context.Context, tx graphstore.Tx, a, b graphstore.NodeID) (graphstore.Edge, bool, error) {
	edges, err := tx.AdjacentEdges(ctx, a, EdgeFriend, graphstore.Both)
	if err != nil {
		return graphstore.Edge{}, false, err
	}
	for _, e := range edges {
		if e.Other(a) == b {
			return e, true, nil
		}
	}
	return graphstore.Edge{}, false, nil
}

// statusHead returns the node the person's STATUS edge points at.
func statusHead(ctx context.Context, tx graphstore.Tx, person graphstore.NodeID) (graphstore.Edge, bool, error) {
	edges, err := tx.AdjacentEdges(ctx, person, EdgeStatus, graphstore.Outgoing)
	if err != nil {
		return graphstore.Edge{}, false, err
	}
	if len(edges) == 0 {
		return graphstore.Edge{}, false, nil
	}
	return edges[0], true, nil
}

// statusCursor returns a lazy newest-first walk of a person's status chain.
// The boolean is false if the person has never posted.
//
// The chain never branches, so depth-first order is chain order. Global
// uniqueness guarantees termination even on a corrupted, cyclic chain.
func statusCursor(ctx context.Context, tx graphstore.Tx, person graphstore.NodeID) (graphstore.PathIterator, bool, error) {
	head, ok, err := statusHead(ctx, tx, person)
	if err != nil || !ok {
		return nil, false, err
	}

	it, err := tx.Traverse(ctx, head.To, graphstore.TraversalDescription{
		Order:      graphstore.DepthFirst,
		Direction:  graphstore.Outgoing,
		EdgeTypes:  []graphstore.EdgeType{EdgeNext},
		Uniqueness: graphstore.UniquenessNodeGlobal,
	})
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// statusChain materializes a person's status chain, newest first.
func statusChain(ctx context.Context, tx graphstore.Tx, person graphstore.NodeID) ([]graphstore.NodeID, error) {
	it, ok, err := statusCursor(ctx, tx, person)
	if err != nil {
		return nil, fmt.Errorf("status chain: %w", err)
	}
	if !ok {
		return nil, nil
	}

	paths, err := graphstore.CollectPaths(it)
	if err != nil {
		return nil, fmt.Errorf("status chain: %w", err)
	}
	ids := make([]graphstore.NodeID, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, p.End())
	}
	return ids, nil
}
