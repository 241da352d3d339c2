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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/storetest"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	return s
}

func TestStore_Suite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) graphstore.Store {
		return openInMemory(t)
	})
}

// TestOpenRequiresPath verifies that persistent mode requires a path.
func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestConfigFunctions(t *testing.T) {
	t.Run("DefaultConfig has SyncWrites", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.True(t, cfg.SyncWrites)
		assert.False(t, cfg.InMemory)
		assert.Equal(t, 5*time.Minute, cfg.GCInterval)
	})

	t.Run("InMemoryConfig has InMemory", func(t *testing.T) {
		cfg := InMemoryConfig()
		assert.True(t, cfg.InMemory)
		assert.False(t, cfg.SyncWrites)
		assert.Equal(t, time.Duration(0), cfg.GCInterval)
	})
}

// TestStore_Persistence verifies data and the reference node survive reopen.
func TestStore_Persistence(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()

	s, err := Open(cfg)
	require.NoError(t, err)

	var ref, person graphstore.NodeID
	require.NoError(t, graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		var err error
		if ref, err = tx.ReferenceNode(ctx); err != nil {
			return err
		}
		if person, err = tx.CreateNode(ctx); err != nil {
			return err
		}
		if err := tx.SetProperty(ctx, person, "name", "Ann"); err != nil {
			return err
		}
		_, err = tx.CreateEdge(ctx, ref, person, "PERSON")
		return err
	}))
	require.NoError(t, s.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, graphstore.View(ctx, s2, func(tx graphstore.Tx) error {
		got, err := tx.ReferenceNode(ctx)
		require.NoError(t, err)
		assert.Equal(t, ref, got)

		edges, err := tx.AdjacentEdges(ctx, ref, "PERSON", graphstore.Outgoing)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, person, edges[0].To)

		name, err := graphstore.StringProperty(ctx, tx, person, "name")
		require.NoError(t, err)
		assert.Equal(t, "Ann", name)
		return nil
	}))

	// Fresh IDs never collide with persisted ones.
	require.NoError(t, graphstore.Update(ctx, s2, func(tx graphstore.Tx) error {
		id, err := tx.CreateNode(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, ref, id)
		assert.NotEqual(t, person, id)
		return nil
	}))
}

// TestStore_ConflictOnConcurrentEdgeChange verifies that enumerating a node's
// edges and then committing after another transaction changed them fails.
func TestStore_ConflictOnConcurrentEdgeChange(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)
	defer s.Close()

	var ref graphstore.NodeID
	require.NoError(t, graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		var err error
		ref, err = tx.ReferenceNode(ctx)
		return err
	}))

	addPerson := func(tx graphstore.Tx) {
		_, err := tx.AdjacentEdges(ctx, ref, "PERSON", graphstore.Outgoing)
		require.NoError(t, err)
		n, err := tx.CreateNode(ctx)
		require.NoError(t, err)
		_, err = tx.CreateEdge(ctx, ref, n, "PERSON")
		require.NoError(t, err)
	}

	tx1, err := s.Begin(ctx, true)
	require.NoError(t, err)
	defer tx1.Discard()
	tx2, err := s.Begin(ctx, true)
	require.NoError(t, err)
	defer tx2.Discard()

	addPerson(tx1)
	addPerson(tx2)

	require.NoError(t, tx1.Commit())
	err = tx2.Commit()
	require.Error(t, err)
	assert.ErrorIs(t, err, graphstore.ErrTransactionConflict)
	assert.True(t, graphstore.IsRetryable(err))

	require.NoError(t, graphstore.View(ctx, s, func(tx graphstore.Tx) error {
		edges, err := tx.AdjacentEdges(ctx, ref, "PERSON", graphstore.Outgoing)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
		return nil
	}))
}

func TestStore_UniqueEdges(t *testing.T) {
	ctx := context.Background()
	cfg := InMemoryConfig()
	cfg.UniqueEdges = true
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	err = graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		a, err := tx.CreateNode(ctx)
		if err != nil {
			return err
		}
		b, err := tx.CreateNode(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.CreateEdge(ctx, a, b, "FRIEND"); err != nil {
			return err
		}
		_, err = tx.CreateEdge(ctx, b, a, "FRIEND")
		return err
	})
	assert.ErrorIs(t, err, graphstore.ErrDuplicateEdge)
}

func TestStore_CloseTwice(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	_, err := s.Begin(context.Background(), false)
	assert.ErrorIs(t, err, graphstore.ErrStoreClosed)
}

func TestGCRunner(t *testing.T) {
	t.Run("rejects nil db", func(t *testing.T) {
		_, err := newGCRunner(nil, time.Second, 0.5, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "db must not be nil")
	})

	t.Run("rejects invalid interval and ratio", func(t *testing.T) {
		db, err := openDB(InMemoryConfig())
		require.NoError(t, err)
		defer db.Close()

		_, err = newGCRunner(db, 0, 0.5, nil)
		assert.Contains(t, err.Error(), "interval must be positive")

		_, err = newGCRunner(db, time.Second, 1.5, nil)
		assert.Contains(t, err.Error(), "ratio must be between 0 and 1")
	})

	t.Run("starts and stops", func(t *testing.T) {
		db, err := openDB(InMemoryConfig())
		require.NoError(t, err)
		defer db.Close()

		r, err := newGCRunner(db, 10*time.Millisecond, 0.5, nil)
		require.NoError(t, err)
		r.start()
		time.Sleep(25 * time.Millisecond)
		r.stop()
	})
}

func TestKeys(t *testing.T) {
	key := adjKey(7, true, "FRIEND", 42)
	assert.Equal(t, "a/0000000000000007/o/FRIEND/0000000000000042", string(key))
	assert.True(t, len(key) > len(adjPrefix(7, true, "FRIEND")))

	id, err := parseAdjEdge(key)
	require.NoError(t, err)
	assert.Equal(t, graphstore.EdgeID(42), id)

	_, err = parseAdjEdge([]byte("garbage"))
	assert.Error(t, err)

	for _, v := range []any{"text", int64(-3)} {
		data, err := encodeValue(v)
		require.NoError(t, err)
		got, err := decodeValue(data)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	_, err = encodeValue(3.5)
	assert.Error(t, err)
}
