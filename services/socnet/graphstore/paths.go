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

// ShortestPath finds one shortest undirected path between a and b.
//
// Description:
//
//	Breadth-first search over edges of type typ in both directions, with
//	parent tracking for path reconstruction. Among several shortest paths
//	the one whose edges are enumerated first wins.
//
// Inputs:
//
//	ctx - Context for cancellation, checked once per BFS level.
//	adj - Adjacency source.
//	a, b - Endpoints. a == b yields the zero-length path [a].
//	typ - Edge type to follow.
//	maxDepth - Maximum number of edges in the path.
//
// Outputs:
//
//	Path - The path from a to b inclusive, when found.
//	bool - False if b is not reachable within maxDepth. Not an error.
//	error - Non-nil on adjacency or context errors.
func ShortestPath(ctx context.Context, adj Adjacency, a, b NodeID, typ EdgeType, maxDepth int) (Path, bool, error) {
	if a == b {
		// Still surface a missing node.
		if _, err := adj.AdjacentEdges(ctx, a, typ, Both); err != nil {
			return Path{}, false, err
		}
		return Path{Nodes: []NodeID{a}}, true, nil
	}

	parent := map[NodeID]NodeID{a: a}
	level := []NodeID{a}

	for depth := 0; depth < maxDepth && len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return Path{}, false, err
		}

		var next []NodeID
		for _, current := range level {
			edges, err := adj.AdjacentEdges(ctx, current, typ, Both)
			if err != nil {
				return Path{}, false, fmt.Errorf("shortest path: %w", err)
			}
			for _, e := range edges {
				n := e.Other(current)
				if _, seen := parent[n]; seen {
					continue
				}
				parent[n] = current
				if n == b {
					return reconstruct(parent, a, b), true, nil
				}
				next = append(next, n)
			}
		}
		level = next
	}

	return Path{}, false, nil
}

// reconstruct walks the parent map back from b to a.
func reconstruct(parent map[NodeID]NodeID, a, b NodeID) Path {
	var reversed []NodeID
	for n := b; ; n = parent[n] {
		reversed = append(reversed, n)
		if n == a {
			break
		}
	}
	nodes := make([]NodeID, len(reversed))
	for i, n := range reversed {
		nodes[len(reversed)-1-i] = n
	}
	return Path{Nodes: nodes}
}

// AllPaths enumerates every simple undirected path between a and b.
//
// Description:
//
//	Depth-first enumeration over edges of type typ in both directions. A
//	path never repeats a node. Paths are distinguished by the edges they use,
//	so two parallel edges between the same nodes yield two paths.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per expansion.
//	adj - Adjacency source.
//	a, b - Endpoints. a == b yields the single zero-length path [a].
//	typ - Edge type to follow.
//	maxDepth - Maximum number of edges per path.
//
// Outputs:
//
//	[]Path - All matching paths, possibly empty.
//	error - Non-nil on adjacency or context errors.
//
// Limitations:
//
//	The number of paths grows quickly with depth on dense graphs. Callers
//	should keep maxDepth small.
func AllPaths(ctx context.Context, adj Adjacency, a, b NodeID, typ EdgeType, maxDepth int) ([]Path, error) {
	if a == b {
		if _, err := adj.AdjacentEdges(ctx, a, typ, Both); err != nil {
			return nil, err
		}
		return []Path{{Nodes: []NodeID{a}}}, nil
	}

	var paths []Path
	var walk func(p Path) error
	walk = func(p Path) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.Length() >= maxDepth {
			return nil
		}
		end := p.End()
		edges, err := adj.AdjacentEdges(ctx, end, typ, Both)
		if err != nil {
			return fmt.Errorf("all paths: %w", err)
		}
		for _, e := range edges {
			n := e.Other(end)
			if p.contains(n) {
				continue
			}
			next := p.extend(n)
			if n == b {
				paths = append(paths, next)
				continue
			}
			if err := walk(next); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(Path{Nodes: []NodeID{a}}); err != nil {
		return nil, err
	}
	return paths, nil
}
