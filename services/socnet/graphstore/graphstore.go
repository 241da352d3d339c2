// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphstore defines the storage capability the social network core
// runs against, plus the storage-independent traversal and path algorithms
// every adapter shares.
//
// # Model
//
// A store holds nodes, typed directed edges and node properties. Nodes and
// edges are addressed by opaque numeric handles; callers never hold pointers
// into the store's memory.
//
// # Transactions
//
// All access goes through a Tx obtained from Store.Begin. A writable Tx must
// be committed to make its mutations visible; Discard without Commit rolls
// back every write made through it. Update and View wrap that lifecycle.
//
// Adapters choose their concurrency scheme. A conflicting concurrent
// mutation must surface as ErrTransactionConflict from Commit (or from the
// mutating call), never as a silent lost update.
//
// # Thread Safety
//
// Store implementations are safe for concurrent use. A single Tx is not.
package graphstore

import (
	"context"
	"fmt"
	"regexp"
)

// NodeID is an opaque node handle.
type NodeID uint64

// EdgeID is an opaque edge handle.
type EdgeID uint64

// EdgeType names the kind of an edge, e.g. "FRIEND".
type EdgeType string

var edgeTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Validate checks that the type is a non-empty upper-case identifier.
//
// Adapters that splice edge types into query text depend on this.
func (t EdgeType) Validate() error {
	if !edgeTypePattern.MatchString(string(t)) {
		return fmt.Errorf("%w: %q", ErrInvalidEdgeType, string(t))
	}
	return nil
}

// Direction selects which edges of a node are enumerated.
type Direction int

const (
	// Outgoing selects edges whose From is the node.
	Outgoing Direction = iota

	// Incoming selects edges whose To is the node.
	Incoming

	// Both selects edges in either direction.
	Both
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "OUTGOING"
	case Incoming:
		return "INCOMING"
	case Both:
		return "BOTH"
	default:
		return "UNKNOWN"
	}
}

// Edge is a typed directed connection between two nodes.
type Edge struct {
	ID   EdgeID
	Type EdgeType
	From NodeID
	To   NodeID
}

// Other returns the endpoint of the edge that is not n.
//
// For a self-loop both endpoints are n and n is returned.
func (e Edge) Other(n NodeID) NodeID {
	if e.From == n {
		return e.To
	}
	return e.From
}

// Path is an ordered sequence of nodes, start to end inclusive.
type Path struct {
	Nodes []NodeID
}

// Start returns the first node of the path.
func (p Path) Start() NodeID {
	return p.Nodes[0]
}

// End returns the last node of the path.
func (p Path) End() NodeID {
	return p.Nodes[len(p.Nodes)-1]
}

// Length returns the number of edges in the path.
func (p Path) Length() int {
	return len(p.Nodes) - 1
}

// extend returns a new path with n appended. The receiver is not modified.
func (p Path) extend(n NodeID) Path {
	nodes := make([]NodeID, len(p.Nodes)+1)
	copy(nodes, p.Nodes)
	nodes[len(p.Nodes)] = n
	return Path{Nodes: nodes}
}

// contains reports whether n already occurs in the path.
func (p Path) contains(n NodeID) bool {
	for _, id := range p.Nodes {
		if id == n {
			return true
		}
	}
	return false
}

// Adjacency is the only capability the generic algorithms need.
type Adjacency interface {
	// AdjacentEdges returns the edges of the given type touching node in the
	// given direction. An empty type matches every type.
	AdjacentEdges(ctx context.Context, node NodeID, typ EdgeType, dir Direction) ([]Edge, error)
}

// Tx is one transactional view of a store.
//
// Property values are restricted to string and int64. Adapters may return
// any integer property as int64.
type Tx interface {
	Adjacency

	// ReferenceNode returns the store's well-known root node, creating it on
	// first use in a writable transaction.
	ReferenceNode(ctx context.Context) (NodeID, error)

	// CreateNode creates an empty node.
	CreateNode(ctx context.Context) (NodeID, error)

	// DeleteNode deletes a node together with its edges and properties.
	DeleteNode(ctx context.Context, id NodeID) error

	// CreateEdge creates a directed edge. Returns ErrNotFound if either
	// endpoint does not exist, and ErrDuplicateEdge if the adapter enforces
	// edge uniqueness.
	CreateEdge(ctx context.Context, from, to NodeID, typ EdgeType) (Edge, error)

	// DeleteEdge deletes an edge. Returns ErrNotFound if it does not exist.
	DeleteEdge(ctx context.Context, id EdgeID) error

	// Edge returns one edge by handle.
	Edge(ctx context.Context, id EdgeID) (Edge, error)

	// Property returns a node property. Returns ErrNotFound for a missing node
	// and ErrPropertyNotFound for a missing key.
	Property(ctx context.Context, node NodeID, key string) (any, error)

	// SetProperty sets a node property to a string or int64 value.
	SetProperty(ctx context.Context, node NodeID, key string, value any) error

	// Traverse walks the graph from start as described by desc.
	Traverse(ctx context.Context, start NodeID, desc TraversalDescription) (PathIterator, error)

	// FindShortestPath returns one shortest undirected path of edges of type
	// typ between a and b with at most maxDepth edges. The boolean is false
	// when no such path exists.
	FindShortestPath(ctx context.Context, a, b NodeID, typ EdgeType, maxDepth int) (Path, bool, error)

	// FindAllPaths returns every simple undirected path of edges of type typ
	// between a and b with at most maxDepth edges.
	FindAllPaths(ctx context.Context, a, b NodeID, typ EdgeType, maxDepth int) ([]Path, error)

	// Commit makes the transaction's writes durable and visible.
	Commit() error

	// Discard ends the transaction. Uncommitted writes are rolled back.
	// Safe to call after Commit and more than once.
	Discard()
}

// Store hands out transactions.
type Store interface {
	// Begin starts a transaction. Read-only transactions reject mutations
	// with ErrReadOnly.
	Begin(ctx context.Context, writable bool) (Tx, error)

	// Close releases the store's resources.
	Close() error
}

// ValidateValue checks that v is a supported property value.
func ValidateValue(v any) error {
	switch v.(type) {
	case string, int64:
		return nil
	default:
		return fmt.Errorf("unsupported property value type %T", v)
	}
}
