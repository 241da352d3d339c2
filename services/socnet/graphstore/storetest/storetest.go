// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storetest holds behavioural tests every graphstore.Store adapter
// must pass. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

const (
	typeFriend graphstore.EdgeType = "FRIEND"
	typeNext   graphstore.EdgeType = "NEXT"
)

// Opener returns a fresh, empty store. The store is closed by the caller
// of Run through t.Cleanup.
type Opener func(t *testing.T) graphstore.Store

// Run executes the full adapter suite, one fresh store per subtest.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s graphstore.Store)
	}{
		{"NodesAndProperties", testNodesAndProperties},
		{"PropertyErrors", testPropertyErrors},
		{"Edges", testEdges},
		{"EdgeErrors", testEdgeErrors},
		{"DeleteNode", testDeleteNode},
		{"ReferenceNode", testReferenceNode},
		{"Rollback", testRollback},
		{"ReadOnly", testReadOnly},
		{"ClosedTransaction", testClosedTransaction},
		{"Traverse", testTraverse},
		{"ShortestPath", testShortestPath},
		{"AllPaths", testAllPaths},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func update(t *testing.T, s graphstore.Store, fn func(tx graphstore.Tx) error) {
	t.Helper()
	require.NoError(t, graphstore.Update(context.Background(), s, fn))
}

func view(t *testing.T, s graphstore.Store, fn func(tx graphstore.Tx) error) {
	t.Helper()
	require.NoError(t, graphstore.View(context.Background(), s, fn))
}

func createNodes(t *testing.T, s graphstore.Store, n int) []graphstore.NodeID {
	t.Helper()
	ctx := context.Background()
	ids := make([]graphstore.NodeID, n)
	update(t, s, func(tx graphstore.Tx) error {
		for i := range ids {
			id, err := tx.CreateNode(ctx)
			if err != nil {
				return err
			}
			ids[i] = id
		}
		return nil
	})
	return ids
}

func link(t *testing.T, s graphstore.Store, typ graphstore.EdgeType, pairs ...[2]graphstore.NodeID) []graphstore.Edge {
	t.Helper()
	ctx := context.Background()
	var edges []graphstore.Edge
	update(t, s, func(tx graphstore.Tx) error {
		for _, p := range pairs {
			e, err := tx.CreateEdge(ctx, p[0], p[1], typ)
			if err != nil {
				return err
			}
			edges = append(edges, e)
		}
		return nil
	})
	return edges
}

func ends(paths []graphstore.Path) []graphstore.NodeID {
	out := make([]graphstore.NodeID, 0, len(paths))
	for _, p := range paths {
		out = append(out, p.End())
	}
	return out
}

func others(edges []graphstore.Edge, n graphstore.NodeID) []graphstore.NodeID {
	out := make([]graphstore.NodeID, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Other(n))
	}
	return out
}

func testNodesAndProperties(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := createNodes(t, s, 2)
	assert.NotEqual(t, ids[0], ids[1])

	update(t, s, func(tx graphstore.Tx) error {
		if err := tx.SetProperty(ctx, ids[0], "name", "Ann"); err != nil {
			return err
		}
		return tx.SetProperty(ctx, ids[0], "date", int64(1700000000000))
	})

	view(t, s, func(tx graphstore.Tx) error {
		name, err := graphstore.StringProperty(ctx, tx, ids[0], "name")
		require.NoError(t, err)
		assert.Equal(t, "Ann", name)

		date, err := graphstore.Int64Property(ctx, tx, ids[0], "date")
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000000), date)

		_, err = graphstore.Int64Property(ctx, tx, ids[0], "name")
		assert.Error(t, err)
		return nil
	})

	update(t, s, func(tx graphstore.Tx) error {
		return tx.SetProperty(ctx, ids[0], "name", "Anne")
	})
	view(t, s, func(tx graphstore.Tx) error {
		name, err := graphstore.StringProperty(ctx, tx, ids[0], "name")
		require.NoError(t, err)
		assert.Equal(t, "Anne", name)
		return nil
	})
}

func testPropertyErrors(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := createNodes(t, s, 1)

	view(t, s, func(tx graphstore.Tx) error {
		_, err := tx.Property(ctx, ids[0], "missing")
		assert.ErrorIs(t, err, graphstore.ErrPropertyNotFound)

		_, err = tx.Property(ctx, ids[0]+1000, "name")
		assert.ErrorIs(t, err, graphstore.ErrNotFound)
		return nil
	})

	err := graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		return tx.SetProperty(ctx, ids[0], "score", 1.5)
	})
	assert.Error(t, err)
}

func testEdges(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := createNodes(t, s, 3)
	a, b, c := ids[0], ids[1], ids[2]

	link(t, s, typeFriend, [2]graphstore.NodeID{a, b}, [2]graphstore.NodeID{c, a})
	nexts := link(t, s, typeNext, [2]graphstore.NodeID{a, c})

	view(t, s, func(tx graphstore.Tx) error {
		out, err := tx.AdjacentEdges(ctx, a, typeFriend, graphstore.Outgoing)
		require.NoError(t, err)
		assert.Equal(t, []graphstore.NodeID{b}, others(out, a))

		in, err := tx.AdjacentEdges(ctx, a, typeFriend, graphstore.Incoming)
		require.NoError(t, err)
		assert.Equal(t, []graphstore.NodeID{c}, others(in, a))

		both, err := tx.AdjacentEdges(ctx, a, typeFriend, graphstore.Both)
		require.NoError(t, err)
		assert.ElementsMatch(t, []graphstore.NodeID{b, c}, others(both, a))

		all, err := tx.AdjacentEdges(ctx, a, "", graphstore.Both)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		e, err := tx.Edge(ctx, nexts[0].ID)
		require.NoError(t, err)
		assert.Equal(t, typeNext, e.Type)
		assert.Equal(t, a, e.From)
		assert.Equal(t, c, e.To)
		return nil
	})

	update(t, s, func(tx graphstore.Tx) error {
		return tx.DeleteEdge(ctx, nexts[0].ID)
	})
	view(t, s, func(tx graphstore.Tx) error {
		out, err := tx.AdjacentEdges(ctx, a, typeNext, graphstore.Outgoing)
		require.NoError(t, err)
		assert.Empty(t, out)

		_, err = tx.Edge(ctx, nexts[0].ID)
		assert.ErrorIs(t, err, graphstore.ErrNotFound)
		return nil
	})
}

func testEdgeErrors(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := createNodes(t, s, 1)

	err := graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		_, err := tx.CreateEdge(ctx, ids[0], ids[0]+1000, typeFriend)
		return err
	})
	assert.ErrorIs(t, err, graphstore.ErrNotFound)

	err = graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		_, err := tx.CreateEdge(ctx, ids[0], ids[0], "not valid")
		return err
	})
	assert.ErrorIs(t, err, graphstore.ErrInvalidEdgeType)

	err = graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		return tx.DeleteEdge(ctx, 424242)
	})
	assert.ErrorIs(t, err, graphstore.ErrNotFound)
}

func testDeleteNode(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := createNodes(t, s, 3)
	a, b, c := ids[0], ids[1], ids[2]
	link(t, s, typeFriend, [2]graphstore.NodeID{a, b}, [2]graphstore.NodeID{c, b})

	update(t, s, func(tx graphstore.Tx) error {
		if err := tx.SetProperty(ctx, b, "name", "Bob"); err != nil {
			return err
		}
		return tx.DeleteNode(ctx, b)
	})

	view(t, s, func(tx graphstore.Tx) error {
		_, err := tx.Property(ctx, b, "name")
		assert.ErrorIs(t, err, graphstore.ErrNotFound)

		edges, err := tx.AdjacentEdges(ctx, a, typeFriend, graphstore.Both)
		require.NoError(t, err)
		assert.Empty(t, edges)

		edges, err = tx.AdjacentEdges(ctx, c, typeFriend, graphstore.Both)
		require.NoError(t, err)
		assert.Empty(t, edges)
		return nil
	})

	err := graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		return tx.DeleteNode(ctx, b)
	})
	assert.ErrorIs(t, err, graphstore.ErrNotFound)
}

func testReferenceNode(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	var first, second graphstore.NodeID
	update(t, s, func(tx graphstore.Tx) error {
		var err error
		first, err = tx.ReferenceNode(ctx)
		return err
	})
	update(t, s, func(tx graphstore.Tx) error {
		var err error
		second, err = tx.ReferenceNode(ctx)
		return err
	})
	assert.Equal(t, first, second)

	view(t, s, func(tx graphstore.Tx) error {
		ref, err := tx.ReferenceNode(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, ref)
		return nil
	})
}

func testRollback(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := createNodes(t, s, 2)
	a, b := ids[0], ids[1]

	update(t, s, func(tx graphstore.Tx) error {
		return tx.SetProperty(ctx, a, "name", "Ann")
	})

	errBoom := errors.New("boom")
	var created graphstore.NodeID
	err := graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		var err error
		if created, err = tx.CreateNode(ctx); err != nil {
			return err
		}
		if _, err := tx.CreateEdge(ctx, a, b, typeFriend); err != nil {
			return err
		}
		if err := tx.SetProperty(ctx, a, "name", "Changed"); err != nil {
			return err
		}
		if err := tx.SetProperty(ctx, b, "name", "Bob"); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	view(t, s, func(tx graphstore.Tx) error {
		_, err := tx.Property(ctx, created, "name")
		assert.ErrorIs(t, err, graphstore.ErrNotFound)

		name, err := graphstore.StringProperty(ctx, tx, a, "name")
		require.NoError(t, err)
		assert.Equal(t, "Ann", name)

		_, err = tx.Property(ctx, b, "name")
		assert.ErrorIs(t, err, graphstore.ErrPropertyNotFound)

		edges, err := tx.AdjacentEdges(ctx, a, typeFriend, graphstore.Both)
		require.NoError(t, err)
		assert.Empty(t, edges)
		return nil
	})
}

func testReadOnly(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := createNodes(t, s, 1)

	tx, err := s.Begin(ctx, false)
	require.NoError(t, err)
	defer tx.Discard()

	_, err = tx.CreateNode(ctx)
	assert.ErrorIs(t, err, graphstore.ErrReadOnly)

	err = tx.SetProperty(ctx, ids[0], "name", "x")
	assert.ErrorIs(t, err, graphstore.ErrReadOnly)

	_, err = tx.CreateEdge(ctx, ids[0], ids[0], typeFriend)
	assert.ErrorIs(t, err, graphstore.ErrReadOnly)
}

func testClosedTransaction(t *testing.T, s graphstore.Store) {
	ctx := context.Background()

	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	id, err := tx.CreateNode(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = tx.Property(ctx, id, "name")
	assert.ErrorIs(t, err, graphstore.ErrTxClosed)
	assert.ErrorIs(t, tx.Commit(), graphstore.ErrTxClosed)

	// Discard after Commit is a no-op.
	tx.Discard()

	view(t, s, func(tx graphstore.Tx) error {
		_, err := tx.Property(ctx, id, "name")
		assert.ErrorIs(t, err, graphstore.ErrPropertyNotFound)
		return nil
	})
}

// socialGraph builds 0-1, 0-2, 1-3, 2-3, 3-4 with mixed edge directions.
func socialGraph(t *testing.T, s graphstore.Store) []graphstore.NodeID {
	ids := createNodes(t, s, 5)
	link(t, s, typeFriend,
		[2]graphstore.NodeID{ids[0], ids[1]},
		[2]graphstore.NodeID{ids[2], ids[0]},
		[2]graphstore.NodeID{ids[1], ids[3]},
		[2]graphstore.NodeID{ids[3], ids[2]},
		[2]graphstore.NodeID{ids[3], ids[4]},
	)
	return ids
}

func testTraverse(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := socialGraph(t, s)

	view(t, s, func(tx graphstore.Tx) error {
		depth := func(n int) []graphstore.NodeID {
			it, err := tx.Traverse(ctx, ids[0], graphstore.TraversalDescription{
				Direction:  graphstore.Both,
				EdgeTypes:  []graphstore.EdgeType{typeFriend},
				Evaluators: []graphstore.Evaluator{graphstore.AtDepth(n), graphstore.ExcludeStartPosition()},
			})
			require.NoError(t, err)
			paths, err := graphstore.CollectPaths(it)
			require.NoError(t, err)
			return ends(paths)
		}

		assert.ElementsMatch(t, []graphstore.NodeID{ids[1], ids[2]}, depth(1))
		assert.ElementsMatch(t, []graphstore.NodeID{ids[3]}, depth(2))
		assert.ElementsMatch(t, []graphstore.NodeID{ids[4]}, depth(3))

		_, err := tx.Traverse(ctx, ids[4]+1000, graphstore.TraversalDescription{})
		assert.ErrorIs(t, err, graphstore.ErrNotFound)
		return nil
	})
}

func testShortestPath(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := socialGraph(t, s)
	lonely := createNodes(t, s, 1)[0]

	view(t, s, func(tx graphstore.Tx) error {
		p, ok, err := tx.FindShortestPath(ctx, ids[0], ids[4], typeFriend, 10)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 3, p.Length())
		assert.Equal(t, ids[0], p.Start())
		assert.Equal(t, ids[4], p.End())

		_, ok, err = tx.FindShortestPath(ctx, ids[0], ids[4], typeFriend, 2)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = tx.FindShortestPath(ctx, ids[0], lonely, typeFriend, 10)
		require.NoError(t, err)
		assert.False(t, ok)

		p, ok, err = tx.FindShortestPath(ctx, ids[2], ids[2], typeFriend, 10)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []graphstore.NodeID{ids[2]}, p.Nodes)
		return nil
	})
}

func testAllPaths(t *testing.T, s graphstore.Store) {
	ctx := context.Background()
	ids := socialGraph(t, s)

	view(t, s, func(tx graphstore.Tx) error {
		paths, err := tx.FindAllPaths(ctx, ids[0], ids[3], typeFriend, 2)
		require.NoError(t, err)
		assert.Len(t, paths, 2)
		for _, p := range paths {
			assert.Equal(t, 2, p.Length())
		}

		paths, err = tx.FindAllPaths(ctx, ids[0], ids[4], typeFriend, 2)
		require.NoError(t, err)
		assert.Empty(t, paths)

		paths, err = tx.FindAllPaths(ctx, ids[0], ids[4], typeFriend, 3)
		require.NoError(t, err)
		assert.Len(t, paths, 2)
		return nil
	})
}
