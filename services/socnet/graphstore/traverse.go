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

// contextCheckInterval is how often the walker checks its context.
const contextCheckInterval = 100

// Order selects the traversal strategy.
type Order int

const (
	// BreadthFirst visits all paths of length n before any of length n+1.
	BreadthFirst Order = iota

	// DepthFirst follows each branch to its end before backtracking.
	DepthFirst
)

// Uniqueness controls whether a traversal may revisit nodes.
type Uniqueness int

const (
	// UniquenessNodeGlobal never reaches a node twice during one traversal,
	// even through a different path.
	UniquenessNodeGlobal Uniqueness = iota

	// UniquenessNone permits revisits. Evaluators must prune, or the
	// traversal may not terminate on cyclic graphs.
	UniquenessNone
)

// Evaluation is an evaluator's verdict on one path.
type Evaluation struct {
	// Include reports the path to the caller.
	Include bool

	// Continue expands the path further.
	Continue bool
}

// Common evaluation results.
var (
	IncludeAndContinue = Evaluation{Include: true, Continue: true}
	IncludeAndPrune    = Evaluation{Include: true, Continue: false}
	ExcludeAndContinue = Evaluation{Include: false, Continue: true}
	ExcludeAndPrune    = Evaluation{Include: false, Continue: false}
)

// Evaluator decides whether a path is reported and whether it is expanded.
type Evaluator func(p Path) Evaluation

// AtDepth includes only paths with exactly depth edges and stops expanding
// there.
func AtDepth(depth int) Evaluator {
	return func(p Path) Evaluation {
		return Evaluation{
			Include:  p.Length() == depth,
			Continue: p.Length() < depth,
		}
	}
}

// ToDepth includes paths with at most depth edges and stops expanding there.
func ToDepth(depth int) Evaluator {
	return func(p Path) Evaluation {
		return Evaluation{
			Include:  p.Length() <= depth,
			Continue: p.Length() < depth,
		}
	}
}

// ExcludeStartPosition excludes the zero-length path at the start node.
func ExcludeStartPosition() Evaluator {
	return func(p Path) Evaluation {
		return Evaluation{Include: p.Length() > 0, Continue: true}
	}
}

// TraversalDescription configures a traversal.
type TraversalDescription struct {
	Order     Order
	Direction Direction

	// EdgeTypes restricts the followed edges. Empty follows every type.
	EdgeTypes []EdgeType

	Uniqueness Uniqueness

	// Evaluators are combined: a path is included only if every evaluator
	// includes it, and expanded only if every evaluator continues it.
	Evaluators []Evaluator
}

// evaluate combines all evaluators. No evaluators means include and continue.
func (d TraversalDescription) evaluate(p Path) Evaluation {
	result := IncludeAndContinue
	for _, ev := range d.Evaluators {
		e := ev(p)
		result.Include = result.Include && e.Include
		result.Continue = result.Continue && e.Continue
	}
	return result
}

// PathIterator is a lazy, single-pass sequence of paths.
//
// Usage:
//
//	for it.Next() {
//	    use(it.Path())
//	}
//	if err := it.Error(); err != nil { ... }
//	it.Close()
type PathIterator interface {
	// Next advances to the next path. Returns false when exhausted, closed,
	// or on error.
	Next() bool

	// Path returns the path the iterator is positioned on.
	Path() Path

	// Error returns the error that stopped iteration, if any.
	Error() error

	// Close releases the iterator. Further Next calls return false.
	Close() error
}

// Traverse starts a lazy traversal from start.
//
// Description:
//
//	Walks the graph over adj following desc. Paths are produced one per
//	Next call; expansion happens as the caller pulls, so abandoning the
//	iterator early does no further work.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 100 paths). Cancellation
//	      stops the iterator with the context error.
//	adj - Adjacency source, usually the current transaction.
//	start - Start node. The zero-length path at start is evaluated first.
//	desc - Traversal configuration.
//
// Outputs:
//
//	PathIterator - Never nil.
func Traverse(ctx context.Context, adj Adjacency, start NodeID, desc TraversalDescription) PathIterator {
	w := &walker{
		ctx:      ctx,
		adj:      adj,
		desc:     desc,
		frontier: []Path{{Nodes: []NodeID{start}}},
	}
	if desc.Uniqueness == UniquenessNodeGlobal {
		w.visited = map[NodeID]struct{}{start: {}}
	}
	return w
}

// walker implements PathIterator for Traverse.
type walker struct {
	ctx      context.Context
	adj      Adjacency
	desc     TraversalDescription
	frontier []Path
	visited  map[NodeID]struct{}
	current  Path
	err      error
	closed   bool
	checks   int
}

func (w *walker) Next() bool {
	if w.closed || w.err != nil {
		return false
	}

	for len(w.frontier) > 0 {
		w.checks++
		if w.checks%contextCheckInterval == 0 {
			if err := w.ctx.Err(); err != nil {
				w.err = err
				return false
			}
		}

		var p Path
		if w.desc.Order == DepthFirst {
			p = w.frontier[len(w.frontier)-1]
			w.frontier = w.frontier[:len(w.frontier)-1]
		} else {
			p = w.frontier[0]
			w.frontier = w.frontier[1:]
		}

		eval := w.desc.evaluate(p)
		if eval.Continue {
			if err := w.expand(p); err != nil {
				w.err = err
				return false
			}
		}
		if eval.Include {
			w.current = p
			return true
		}
	}
	return false
}

// expand queues every permitted one-edge extension of p.
func (w *walker) expand(p Path) error {
	end := p.End()
	types := w.desc.EdgeTypes
	if len(types) == 0 {
		types = []EdgeType{""}
	}

	var children []Path
	for _, typ := range types {
		edges, err := w.adj.AdjacentEdges(w.ctx, end, typ, w.desc.Direction)
		if err != nil {
			return fmt.Errorf("expand node %d: %w", end, err)
		}
		for _, e := range edges {
			next := farEnd(e, end, w.desc.Direction)
			if w.visited != nil {
				if _, seen := w.visited[next]; seen {
					continue
				}
				w.visited[next] = struct{}{}
			}
			children = append(children, p.extend(next))
		}
	}

	if w.desc.Order == DepthFirst {
		// Reverse so the first adjacent edge is popped first.
		for i := len(children) - 1; i >= 0; i-- {
			w.frontier = append(w.frontier, children[i])
		}
		return nil
	}
	w.frontier = append(w.frontier, children...)
	return nil
}

func (w *walker) Path() Path {
	return w.current
}

func (w *walker) Error() error {
	return w.err
}

func (w *walker) Close() error {
	w.closed = true
	w.frontier = nil
	w.visited = nil
	return nil
}

// farEnd returns the node reached from n by following e in direction dir.
func farEnd(e Edge, n NodeID, dir Direction) NodeID {
	switch dir {
	case Outgoing:
		return e.To
	case Incoming:
		return e.From
	default:
		return e.Other(n)
	}
}

// CollectPaths drains and closes it.
func CollectPaths(it PathIterator) ([]Path, error) {
	defer it.Close()

	var paths []Path
	for it.Next() {
		paths = append(paths, it.Path())
	}
	if err := it.Error(); err != nil {
		return paths, err
	}
	return paths, nil
}
