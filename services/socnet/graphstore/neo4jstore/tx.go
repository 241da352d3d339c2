// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package neo4jstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// tx wraps one explicit Neo4j transaction and its session.
type tx struct {
	store    *Store
	ctx      context.Context
	session  neo4j.SessionWithContext
	ntx      neo4j.ExplicitTransaction
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

// run executes one statement and collects all records.
func (t *tx) run(query string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := t.ntx.Run(t.ctx, query, params)
	if err != nil {
		return nil, mapErr(err)
	}
	records, err := result.Collect(t.ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return records, nil
}

func (t *tx) Commit() error {
	if t.done {
		return graphstore.ErrTxClosed
	}
	t.done = true
	defer t.session.Close(t.ctx)

	if err := t.ntx.Commit(t.ctx); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

func (t *tx) Discard() {
	if t.done {
		return
	}
	t.done = true
	if err := t.ntx.Rollback(t.ctx); err != nil {
		t.store.logger.Warn("rollback failed", slog.String("error", err.Error()))
	}
	_ = t.session.Close(t.ctx)
}

func int64Field(rec *neo4j.Record, key string) (int64, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0, false
	}
	i, ok := v.(int64)
	return i, ok
}

func (t *tx) requireNode(id graphstore.NodeID) error {
	records, err := t.run(
		"MATCH (n:SocnetNode) WHERE id(n) = $id RETURN count(n) AS c",
		map[string]any{"id": int64(id)},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
	}
	if c, _ := int64Field(records[0], "c"); c == 0 {
		return fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
	}
	return nil
}

func (t *tx) ReferenceNode(_ context.Context) (graphstore.NodeID, error) {
	if err := t.check(false); err != nil {
		return 0, err
	}

	query := "MATCH (r:SocnetReference:SocnetNode) RETURN id(r) AS id ORDER BY id LIMIT 1"
	if t.writable {
		query = "MERGE (r:SocnetReference:SocnetNode) RETURN id(r) AS id"
	}
	records, err := t.run(query, nil)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("reference node: %w", graphstore.ErrNotFound)
	}
	id, _ := int64Field(records[0], "id")
	return graphstore.NodeID(id), nil
}

func (t *tx) CreateNode(_ context.Context) (graphstore.NodeID, error) {
	if err := t.check(true); err != nil {
		return 0, err
	}
	records, err := t.run("CREATE (n:SocnetNode) RETURN id(n) AS id", nil)
	if err != nil {
		return 0, err
	}
	id, _ := int64Field(records[0], "id")
	return graphstore.NodeID(id), nil
}

func (t *tx) DeleteNode(_ context.Context, id graphstore.NodeID) error {
	if err := t.check(true); err != nil {
		return err
	}
	if err := t.requireNode(id); err != nil {
		return err
	}
	_, err := t.run(
		"MATCH (n:SocnetNode) WHERE id(n) = $id DETACH DELETE n",
		map[string]any{"id": int64(id)},
	)
	return err
}

func (t *tx) CreateEdge(ctx context.Context, from, to graphstore.NodeID, typ graphstore.EdgeType) (graphstore.Edge, error) {
	if err := t.check(true); err != nil {
		return graphstore.Edge{}, err
	}
	// Validated types are safe to splice into the query text.
	if err := typ.Validate(); err != nil {
		return graphstore.Edge{}, err
	}
	if err := t.requireNode(from); err != nil {
		return graphstore.Edge{}, err
	}
	if err := t.requireNode(to); err != nil {
		return graphstore.Edge{}, err
	}

	params := map[string]any{"from": int64(from), "to": int64(to)}
	if t.store.uniqueEdges {
		records, err := t.run(fmt.Sprintf(
			"MATCH (a:SocnetNode)-[r:%s]-(b:SocnetNode) WHERE id(a) = $from AND id(b) = $to RETURN count(r) AS c", typ),
			params)
		if err != nil {
			return graphstore.Edge{}, err
		}
		if c, _ := int64Field(records[0], "c"); c > 0 {
			return graphstore.Edge{}, fmt.Errorf("%s %d-%d: %w", typ, from, to, graphstore.ErrDuplicateEdge)
		}
	}

	records, err := t.run(fmt.Sprintf(
		"MATCH (a:SocnetNode), (b:SocnetNode) WHERE id(a) = $from AND id(b) = $to CREATE (a)-[r:%s]->(b) RETURN id(r) AS id", typ),
		params)
	if err != nil {
		return graphstore.Edge{}, err
	}
	if len(records) == 0 {
		return graphstore.Edge{}, fmt.Errorf("edge %d-%d: %w", from, to, graphstore.ErrNotFound)
	}
	id, _ := int64Field(records[0], "id")
	return graphstore.Edge{ID: graphstore.EdgeID(id), Type: typ, From: from, To: to}, nil
}

func (t *tx) DeleteEdge(_ context.Context, id graphstore.EdgeID) error {
	if err := t.check(true); err != nil {
		return err
	}
	records, err := t.run(
		"MATCH (:SocnetNode)-[r]->(:SocnetNode) WHERE id(r) = $id DELETE r RETURN count(*) AS c",
		map[string]any{"id": int64(id)},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("edge %d: %w", id, graphstore.ErrNotFound)
	}
	if c, _ := int64Field(records[0], "c"); c == 0 {
		return fmt.Errorf("edge %d: %w", id, graphstore.ErrNotFound)
	}
	return nil
}

func (t *tx) Edge(_ context.Context, id graphstore.EdgeID) (graphstore.Edge, error) {
	if err := t.check(false); err != nil {
		return graphstore.Edge{}, err
	}
	records, err := t.run(
		"MATCH (a:SocnetNode)-[r]->(b:SocnetNode) WHERE id(r) = $id RETURN type(r) AS type, id(a) AS from, id(b) AS to",
		map[string]any{"id": int64(id)},
	)
	if err != nil {
		return graphstore.Edge{}, err
	}
	if len(records) == 0 {
		return graphstore.Edge{}, fmt.Errorf("edge %d: %w", id, graphstore.ErrNotFound)
	}
	return edgeFromRecord(records[0], id)
}

func edgeFromRecord(rec *neo4j.Record, id graphstore.EdgeID) (graphstore.Edge, error) {
	typ, ok := rec.Get("type")
	if !ok {
		return graphstore.Edge{}, fmt.Errorf("edge %d: missing type", id)
	}
	s, ok := typ.(string)
	if !ok {
		return graphstore.Edge{}, fmt.Errorf("edge %d: type is %T", id, typ)
	}
	from, _ := int64Field(rec, "from")
	to, _ := int64Field(rec, "to")
	return graphstore.Edge{
		ID:   id,
		Type: graphstore.EdgeType(s),
		From: graphstore.NodeID(from),
		To:   graphstore.NodeID(to),
	}, nil
}

func (t *tx) Property(_ context.Context, id graphstore.NodeID, key string) (any, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	records, err := t.run(
		"MATCH (n:SocnetNode) WHERE id(n) = $id RETURN n[$key] AS value",
		map[string]any{"id": int64(id), "key": key},
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
	}
	v, _ := records[0].Get("value")
	if v == nil {
		return nil, fmt.Errorf("node %d key %q: %w", id, key, graphstore.ErrPropertyNotFound)
	}
	if err := graphstore.ValidateValue(v); err != nil {
		return nil, fmt.Errorf("node %d key %q: %w", id, key, err)
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
	records, err := t.run(
		"MATCH (n:SocnetNode) WHERE id(n) = $id SET n += $props RETURN id(n) AS id",
		map[string]any{"id": int64(id), "props": map[string]any{key: value}},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
	}
	return nil
}

// lockNode takes the node's write lock until the transaction ends. The
// property write is undone in the same statement, so nothing is persisted.
func (t *tx) lockNode(id graphstore.NodeID) error {
	records, err := t.run(
		"MATCH (n:SocnetNode) WHERE id(n) = $id SET n._socnet_lock = true REMOVE n._socnet_lock RETURN count(n) AS c",
		map[string]any{"id": int64(id)},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
	}
	if c, _ := int64Field(records[0], "c"); c == 0 {
		return fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
	}
	return nil
}

// AdjacentEdges reads a node's edges. In a writable transaction the node is
// locked first, so a check-then-write on its edges cannot interleave with
// another writer: the second writer waits and then reads the committed
// state, or Neo4j reports a deadlock, which surfaces as
// graphstore.ErrTransactionConflict.
func (t *tx) AdjacentEdges(_ context.Context, id graphstore.NodeID, typ graphstore.EdgeType, dir graphstore.Direction) ([]graphstore.Edge, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if t.writable {
		if err := t.lockNode(id); err != nil {
			return nil, err
		}
	}
	rel := "r"
	if typ != "" {
		if err := typ.Validate(); err != nil {
			return nil, err
		}
		rel = "r:" + string(typ)
	}

	var patterns []string
	if dir == graphstore.Outgoing || dir == graphstore.Both {
		patterns = append(patterns, fmt.Sprintf("(n)-[%s]->(m:SocnetNode)", rel))
	}
	if dir == graphstore.Incoming || dir == graphstore.Both {
		patterns = append(patterns, fmt.Sprintf("(n)<-[%s]-(m:SocnetNode)", rel))
	}

	var result []graphstore.Edge
	for _, pattern := range patterns {
		records, err := t.run(
			"MATCH (n:SocnetNode) WHERE id(n) = $id "+
				"OPTIONAL MATCH "+pattern+" "+
				"RETURN id(r) AS id, type(r) AS type, id(startNode(r)) AS from, id(endNode(r)) AS to "+
				"ORDER BY id",
			map[string]any{"id": int64(id)},
		)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("node %d: %w", id, graphstore.ErrNotFound)
		}
		for _, rec := range records {
			eid, ok := int64Field(rec, "id")
			if !ok {
				continue // OPTIONAL MATCH found nothing
			}
			e, err := edgeFromRecord(rec, graphstore.EdgeID(eid))
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
	if err := typ.Validate(); err != nil {
		return graphstore.Path{}, false, err
	}
	if err := t.requireNode(a); err != nil {
		return graphstore.Path{}, false, err
	}
	if err := t.requireNode(b); err != nil {
		return graphstore.Path{}, false, err
	}
	// Cypher's shortestPath rejects identical endpoints.
	if a == b || maxDepth < 1 {
		return graphstore.ShortestPath(ctx, t, a, b, typ, maxDepth)
	}

	records, err := t.run(fmt.Sprintf(
		"MATCH (a:SocnetNode), (b:SocnetNode) WHERE id(a) = $a AND id(b) = $b "+
			"MATCH p = shortestPath((a)-[:%s*..%d]-(b)) "+
			"RETURN [x IN nodes(p) | id(x)] AS ids", typ, maxDepth),
		map[string]any{"a": int64(a), "b": int64(b)},
	)
	if err != nil {
		return graphstore.Path{}, false, err
	}
	if len(records) == 0 {
		return graphstore.Path{}, false, nil
	}

	raw, _ := records[0].Get("ids")
	list, ok := raw.([]any)
	if !ok {
		return graphstore.Path{}, false, fmt.Errorf("shortest path: unexpected ids %T", raw)
	}
	nodes := make([]graphstore.NodeID, 0, len(list))
	for _, v := range list {
		i, ok := v.(int64)
		if !ok {
			return graphstore.Path{}, false, fmt.Errorf("shortest path: unexpected id %T", v)
		}
		nodes = append(nodes, graphstore.NodeID(i))
	}
	return graphstore.Path{Nodes: nodes}, true, nil
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
