// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// tx wraps one badger transaction. Not safe for concurrent use.
type tx struct {
	store    *Store
	txn      *badger.Txn
	writable bool
	done     bool
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

func (t *tx) Commit() error {
	if t.done {
		return graphstore.ErrTxClosed
	}
	t.done = true
	if err := t.txn.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

func (t *tx) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
}

// get returns a copy of the value at key, or nil and badger.ErrKeyNotFound.
func (t *tx) get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *tx) set(key, value []byte) error {
	return mapErr(t.txn.Set(key, value))
}

func (t *tx) del(key []byte) error {
	return mapErr(t.txn.Delete(key))
}

// scanKeys returns copies of every key under prefix. The iterator is closed
// before returning because a read-write badger transaction allows only one.
func (t *tx) scanKeys(prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := t.txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func (t *tx) requireNode(id graphstore.NodeID) error {
	_, err := t.txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
	}
	return err
}

// touch bumps a node's adjacency version so concurrent readers of its edges
// conflict at commit.
func (t *tx) touch(id graphstore.NodeID) error {
	var version uint64
	raw, err := t.get(versionKey(id))
	switch {
	case err == nil:
		if version, err = decodeUint64(raw); err != nil {
			return fmt.Errorf("version of node %d: %w", id, err)
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}
	return t.set(versionKey(id), encodeUint64(version+1))
}

// observe registers a read of the node's adjacency version.
func (t *tx) observe(id graphstore.NodeID) error {
	_, err := t.txn.Get(versionKey(id))
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

func (t *tx) ReferenceNode(ctx context.Context) (graphstore.NodeID, error) {
	if err := t.check(false); err != nil {
		return 0, err
	}

	raw, err := t.get([]byte(refKey))
	switch {
	case err == nil:
		id, err := decodeUint64(raw)
		if err != nil {
			return 0, fmt.Errorf("reference node: %w", err)
		}
		return graphstore.NodeID(id), nil
	case !errors.Is(err, badger.ErrKeyNotFound):
		return 0, err
	}

	if !t.writable {
		return 0, fmt.Errorf("reference node: %w", graphstore.ErrNotFound)
	}
	id, err := t.CreateNode(ctx)
	if err != nil {
		return 0, err
	}
	if err := t.set([]byte(refKey), encodeUint64(uint64(id))); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *tx) CreateNode(_ context.Context) (graphstore.NodeID, error) {
	if err := t.check(true); err != nil {
		return 0, err
	}
	n, err := nextID(t.store.nodeSeq)
	if err != nil {
		return 0, err
	}
	id := graphstore.NodeID(n)
	if err := t.set(nodeKey(id), nil); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *tx) DeleteNode(ctx context.Context, id graphstore.NodeID) error {
	if err := t.check(true); err != nil {
		return err
	}
	if err := t.requireNode(id); err != nil {
		return err
	}

	// Both sides of a self-loop point at the same edge.
	seen := make(map[graphstore.EdgeID]struct{})
	for _, outgoing := range []bool{true, false} {
		for _, key := range t.scanKeys(adjPrefix(id, outgoing, "")) {
			eid, err := parseAdjEdge(key)
			if err != nil {
				return err
			}
			if _, dup := seen[eid]; dup {
				continue
			}
			seen[eid] = struct{}{}
			if err := t.DeleteEdge(ctx, eid); err != nil {
				return err
			}
		}
	}

	for _, key := range t.scanKeys(propPrefix(id)) {
		if err := t.del(key); err != nil {
			return err
		}
	}
	if err := t.del(versionKey(id)); err != nil {
		return err
	}
	if err := t.del(nodeKey(id)); err != nil {
		return err
	}

	raw, err := t.get([]byte(refKey))
	if err == nil {
		if ref, _ := decodeUint64(raw); graphstore.NodeID(ref) == id {
			return t.del([]byte(refKey))
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

func (t *tx) CreateEdge(ctx context.Context, from, to graphstore.NodeID, typ graphstore.EdgeType) (graphstore.Edge, error) {
	if err := t.check(true); err != nil {
		return graphstore.Edge{}, err
	}
	if err := typ.Validate(); err != nil {
		return graphstore.Edge{}, err
	}
	if err := t.requireNode(from); err != nil {
		return graphstore.Edge{}, err
	}
	if err := t.requireNode(to); err != nil {
		return graphstore.Edge{}, err
	}

	if t.store.uniqueEdges {
		existing, err := t.AdjacentEdges(ctx, from, typ, graphstore.Both)
		if err != nil {
			return graphstore.Edge{}, err
		}
		for _, e := range existing {
			if e.Other(from) == to {
				return graphstore.Edge{}, fmt.Errorf("%s %d-%d: %w", typ, from, to, graphstore.ErrDuplicateEdge)
			}
		}
	}

	n, err := nextID(t.store.edgeSeq)
	if err != nil {
		return graphstore.Edge{}, err
	}
	e := graphstore.Edge{ID: graphstore.EdgeID(n), Type: typ, From: from, To: to}

	data, err := encodeGob(edgeRecord{Type: typ, From: from, To: to})
	if err != nil {
		return graphstore.Edge{}, err
	}
	if err := t.set(edgeKey(e.ID), data); err != nil {
		return graphstore.Edge{}, err
	}
	if err := t.set(adjKey(from, true, typ, e.ID), nil); err != nil {
		return graphstore.Edge{}, err
	}
	if err := t.set(adjKey(to, false, typ, e.ID), nil); err != nil {
		return graphstore.Edge{}, err
	}
	if err := t.touch(from); err != nil {
		return graphstore.Edge{}, err
	}
	if from != to {
		if err := t.touch(to); err != nil {
			return graphstore.Edge{}, err
		}
	}
	return e, nil
}

func (t *tx) DeleteEdge(ctx context.Context, id graphstore.EdgeID) error {
	if err := t.check(true); err != nil {
		return err
	}
	e, err := t.Edge(ctx, id)
	if err != nil {
		return err
	}

	if err := t.del(edgeKey(id)); err != nil {
		return err
	}
	if err := t.del(adjKey(e.From, true, e.Type, id)); err != nil {
		return err
	}
	if err := t.del(adjKey(e.To, false, e.Type, id)); err != nil {
		return err
	}
	if err := t.touch(e.From); err != nil {
		return err
	}
	if e.From != e.To {
		return t.touch(e.To)
	}
	return nil
}

func (t *tx) Edge(_ context.Context, id graphstore.EdgeID) (graphstore.Edge, error) {
	if err := t.check(false); err != nil {
		return graphstore.Edge{}, err
	}
	raw, err := t.get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return graphstore.Edge{}, fmt.Errorf("edge %d: %w", id, graphstore.ErrNotFound)
	}
	if err != nil {
		return graphstore.Edge{}, err
	}
	var rec edgeRecord
	if err := decodeGob(raw, &rec); err != nil {
		return graphstore.Edge{}, fmt.Errorf("edge %d: %w", id, err)
	}
	return graphstore.Edge{ID: id, Type: rec.Type, From: rec.From, To: rec.To}, nil
}

func (t *tx) Property(_ context.Context, id graphstore.NodeID, key string) (any, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if err := t.requireNode(id); err != nil {
		return nil, err
	}
	raw, err := t.get(propKey(id, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("node %d key %q: %w", id, key, graphstore.ErrPropertyNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

func (t *tx) SetProperty(_ context.Context, id graphstore.NodeID, key string, value any) error {
	if err := t.check(true); err != nil {
		return err
	}
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	if err := t.requireNode(id); err != nil {
		return err
	}
	return t.set(propKey(id, key), data)
}

func (t *tx) AdjacentEdges(ctx context.Context, id graphstore.NodeID, typ graphstore.EdgeType, dir graphstore.Direction) ([]graphstore.Edge, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if err := t.requireNode(id); err != nil {
		return nil, err
	}
	if err := t.observe(id); err != nil {
		return nil, err
	}

	var sides []bool
	switch dir {
	case graphstore.Outgoing:
		sides = []bool{true}
	case graphstore.Incoming:
		sides = []bool{false}
	default:
		sides = []bool{true, false}
	}

	var result []graphstore.Edge
	for _, outgoing := range sides {
		for _, key := range t.scanKeys(adjPrefix(id, outgoing, typ)) {
			eid, err := parseAdjEdge(key)
			if err != nil {
				return nil, err
			}
			e, err := t.Edge(ctx, eid)
			if err != nil {
				return nil, err
			}
			result = append(result, e)
		}
	}
	return result, nil
}

func (t *tx) Traverse(ctx context.Context, start graphstore.NodeID, desc graphstore.TraversalDescription) (graphstore.PathIterator, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if err := t.requireNode(start); err != nil {
		return nil, err
	}
	return graphstore.Traverse(ctx, t, start, desc), nil
}

func (t *tx) FindShortestPath(ctx context.Context, a, b graphstore.NodeID, typ graphstore.EdgeType, maxDepth int) (graphstore.Path, bool, error) {
	if err := t.check(false); err != nil {
		return graphstore.Path{}, false, err
	}
	if err := t.requireNode(b); err != nil {
		return graphstore.Path{}, false, err
	}
	return graphstore.ShortestPath(ctx, t, a, b, typ, maxDepth)
}

func (t *tx) FindAllPaths(ctx context.Context, a, b graphstore.NodeID, typ graphstore.EdgeType, maxDepth int) ([]graphstore.Path, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if err := t.requireNode(b); err != nil {
		return nil, err
	}
	return graphstore.AllPaths(ctx, t, a, b, typ, maxDepth)
}
