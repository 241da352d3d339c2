// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memstore is an in-process graphstore.Store.
//
// # Concurrency
//
// Transactions are pessimistic: a writable transaction holds the store's
// exclusive lock from Begin until Commit or Discard, a read-only transaction
// holds the shared lock. Conflicts therefore never occur; concurrent
// writers queue instead.
//
// A long-lived read transaction (for example one backing an open status
// feed) blocks writers until it is discarded.
//
// # Rollback
//
// Every mutation in a writable transaction records an undo step. Discard
// without Commit replays the steps in reverse order.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// node holds a node's properties and its edge lists in creation order.
type node struct {
	props map[string]any
	out   []graphstore.EdgeID
	in    []graphstore.EdgeID
}

// Store is an in-memory graph store.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	nodes    map[graphstore.NodeID]*node
	edges    map[graphstore.EdgeID]graphstore.Edge
	nextNode graphstore.NodeID
	nextEdge graphstore.EdgeID
	ref      graphstore.NodeID
	closed   bool

	uniqueEdges bool
}

// Option configures a Store.
type Option func(*Store)

// WithUniqueEdges makes CreateEdge reject a second edge of the same type
// between the same pair of nodes, in either direction, with
// graphstore.ErrDuplicateEdge.
func WithUniqueEdges() Option {
	return func(s *Store) {
		s.uniqueEdges = true
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		nodes: make(map[graphstore.NodeID]*node),
		edges: make(map[graphstore.EdgeID]graphstore.Edge),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts a transaction, blocking until the lock is available.
func (s *Store) Begin(ctx context.Context, writable bool) (graphstore.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if writable {
		s.mu.Lock()
	} else {
		s.mu.RLock()
	}

	if s.closed {
		s.unlock(writable)
		return nil, graphstore.ErrStoreClosed
	}

	return &tx{store: s, writable: writable}, nil
}

// Close marks the store closed. Open transactions may still finish.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) unlock(writable bool) {
	if writable {
		s.mu.Unlock()
	} else {
		s.mu.RUnlock()
	}
}

// tx is a memstore transaction. It is not safe for concurrent use.
type tx struct {
	store    *Store
	writable bool
	done     bool
	undo     []func()
}

func (t *tx) check(write bool) error {
	if t.done {
		return graphstore.ErrTxClosed
	}
	if write && !t.writable {
		return graphstore.ErrReadOnly
	}
	return nil
}

func (t *tx) node(id graphstore.NodeID) (*node, error) {
	n, ok := t.store.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
	}
	return n, nil
}

func (t *tx) Commit() error {
	if t.done {
		return graphstore.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.unlock(t.writable)
	return nil
}

func (t *tx) Discard() {
	if t.done {
		return
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.store.unlock(t.writable)
}

func (t *tx) ReferenceNode(ctx context.Context) (graphstore.NodeID, error) {
	if err := t.check(false); err != nil {
		return 0, err
	}
	s := t.store
	if s.ref != 0 {
		return s.ref, nil
	}
	if !t.writable {
		return 0, fmt.Errorf("reference node: %w", graphstore.ErrNotFound)
	}
	id, err := t.CreateNode(ctx)
	if err != nil {
		return 0, err
	}
	s.ref = id
	t.undo = append(t.undo, func() { s.ref = 0 })
	return id, nil
}

func (t *tx) CreateNode(_ context.Context) (graphstore.NodeID, error) {
	if err := t.check(true); err != nil {
		return 0, err
	}
	s := t.store
	s.nextNode++
	id := s.nextNode
	s.nodes[id] = &node{props: make(map[string]any)}
	t.undo = append(t.undo, func() {
		delete(s.nodes, id)
		s.nextNode--
	})
	return id, nil
}

func (t *tx) DeleteNode(ctx context.Context, id graphstore.NodeID) error {
	if err := t.check(true); err != nil {
		return err
	}
	n, err := t.node(id)
	if err != nil {
		return err
	}

	// Copy: DeleteEdge edits the lists.
	edgeIDs := append(append([]graphstore.EdgeID{}, n.out...), n.in...)
	for _, eid := range edgeIDs {
		if _, ok := t.store.edges[eid]; !ok {
			continue // self-loop already removed
		}
		if err := t.DeleteEdge(ctx, eid); err != nil {
			return err
		}
	}

	s := t.store
	delete(s.nodes, id)
	wasRef := s.ref == id
	if wasRef {
		s.ref = 0
	}
	t.undo = append(t.undo, func() {
		s.nodes[id] = n
		if wasRef {
			s.ref = id
		}
	})
	return nil
}

func (t *tx) CreateEdge(_ context.Context, from, to graphstore.NodeID, typ graphstore.EdgeType) (graphstore.Edge, error) {
	if err := t.check(true); err != nil {
		return graphstore.Edge{}, err
	}
	if err := typ.Validate(); err != nil {
		return graphstore.Edge{}, err
	}
	fromNode, err := t.node(from)
	if err != nil {
		return graphstore.Edge{}, err
	}
	toNode, err := t.node(to)
	if err != nil {
		return graphstore.Edge{}, err
	}

	s := t.store
	if s.uniqueEdges {
		for _, eid := range fromNode.out {
			if e := s.edges[eid]; e.Type == typ && e.To == to {
				return graphstore.Edge{}, fmt.Errorf("%s %d-%d: %w", typ, from, to, graphstore.ErrDuplicateEdge)
			}
		}
		for _, eid := range fromNode.in {
			if e := s.edges[eid]; e.Type == typ && e.From == to {
				return graphstore.Edge{}, fmt.Errorf("%s %d-%d: %w", typ, from, to, graphstore.ErrDuplicateEdge)
			}
		}
	}

	s.nextEdge++
	e := graphstore.Edge{ID: s.nextEdge, Type: typ, From: from, To: to}
	s.edges[e.ID] = e
	fromNode.out = append(fromNode.out, e.ID)
	toNode.in = append(toNode.in, e.ID)

	t.undo = append(t.undo, func() {
		delete(s.edges, e.ID)
		fromNode.out = removeID(fromNode.out, e.ID)
		toNode.in = removeID(toNode.in, e.ID)
		s.nextEdge--
	})
	return e, nil
}

func (t *tx) DeleteEdge(_ context.Context, id graphstore.EdgeID) error {
	if err := t.check(true); err != nil {
		return err
	}
	s := t.store
	e, ok := s.edges[id]
	if !ok {
		return fmt.Errorf("edge %d: %w", id, graphstore.ErrNotFound)
	}
	fromNode := s.nodes[e.From]
	toNode := s.nodes[e.To]

	oldOut := fromNode.out
	oldIn := toNode.in
	delete(s.edges, id)
	fromNode.out = removeID(append([]graphstore.EdgeID{}, fromNode.out...), id)
	toNode.in = removeID(append([]graphstore.EdgeID{}, toNode.in...), id)

	t.undo = append(t.undo, func() {
		s.edges[id] = e
		fromNode.out = oldOut
		toNode.in = oldIn
	})
	return nil
}

func (t *tx) Edge(_ context.Context, id graphstore.EdgeID) (graphstore.Edge, error) {
	if err := t.check(false); err != nil {
		return graphstore.Edge{}, err
	}
	e, ok := t.store.edges[id]
	if !ok {
		return graphstore.Edge{}, fmt.Errorf("edge %d: %w", id, graphstore.ErrNotFound)
	}
	return e, nil
}

func (t *tx) Property(_ context.Context, id graphstore.NodeID, key string) (any, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	n, err := t.node(id)
	if err != nil {
		return nil, err
	}
	v, ok := n.props[key]
	if !ok {
		return nil, fmt.Errorf("node %d key %q: %w", id, key, graphstore.ErrPropertyNotFound)
	}
	return v, nil
}

func (t *tx) SetProperty(_ context.Context, id graphstore.NodeID, key string, value any) error {
	if err := t.check(true); err != nil {
		return err
	}
	if err := graphstore.ValidateValue(value); err != nil {
		return err
	}
	n, err := t.node(id)
	if err != nil {
		return err
	}

	old, had := n.props[key]
	n.props[key] = value
	t.undo = append(t.undo, func() {
		if had {
			n.props[key] = old
		} else {
			delete(n.props, key)
		}
	})
	return nil
}

func (t *tx) AdjacentEdges(_ context.Context, id graphstore.NodeID, typ graphstore.EdgeType, dir graphstore.Direction) ([]graphstore.Edge, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	n, err := t.node(id)
	if err != nil {
		return nil, err
	}

	var result []graphstore.Edge
	collect := func(ids []graphstore.EdgeID) {
		for _, eid := range ids {
			e := t.store.edges[eid]
			if typ == "" || e.Type == typ {
				result = append(result, e)
			}
		}
	}
	if dir == graphstore.Outgoing || dir == graphstore.Both {
		collect(n.out)
	}
	if dir == graphstore.Incoming || dir == graphstore.Both {
		collect(n.in)
	}
	return result, nil
}

func (t *tx) Traverse(ctx context.Context, start graphstore.NodeID, desc graphstore.TraversalDescription) (graphstore.PathIterator, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if _, err := t.node(start); err != nil {
		return nil, err
	}
	return graphstore.Traverse(ctx, t, start, desc), nil
}

func (t *tx) FindShortestPath(ctx context.Context, a, b graphstore.NodeID, typ graphstore.EdgeType, maxDepth int) (graphstore.Path, bool, error) {
	if err := t.check(false); err != nil {
		return graphstore.Path{}, false, err
	}
	if _, err := t.node(b); err != nil {
		return graphstore.Path{}, false, err
	}
	return graphstore.ShortestPath(ctx, t, a, b, typ, maxDepth)
}

func (t *tx) FindAllPaths(ctx context.Context, a, b graphstore.NodeID, typ graphstore.EdgeType, maxDepth int) ([]graphstore.Path, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if _, err := t.node(b); err != nil {
		return nil, err
	}
	return graphstore.AllPaths(ctx, t, a, b, typ, maxDepth)
}

// removeID returns ids without id, reusing the backing array.
func removeID(ids []graphstore.EdgeID, id graphstore.EdgeID) []graphstore.EdgeID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
