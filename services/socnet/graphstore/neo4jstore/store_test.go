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
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/storetest"
)

// configFromEnv skips the test unless SOCNET_NEO4J_URI points at a server.
func configFromEnv(t *testing.T) Config {
	t.Helper()
	uri := os.Getenv("SOCNET_NEO4J_URI")
	if uri == "" {
		t.Skip("SOCNET_NEO4J_URI not set")
	}
	return Config{
		URI:      uri,
		Username: os.Getenv("SOCNET_NEO4J_USERNAME"),
		Password: os.Getenv("SOCNET_NEO4J_PASSWORD"),
		Database: os.Getenv("SOCNET_NEO4J_DATABASE"),
	}
}

func TestStore_Suite(t *testing.T) {
	cfg := configFromEnv(t)

	storetest.Run(t, func(t *testing.T) graphstore.Store {
		ctx := context.Background()
		s, err := Open(ctx, cfg)
		require.NoError(t, err)
		require.NoError(t, s.Purge(ctx))
		return s
	})
}

func TestOpen_RequiresURI(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "URI is required")
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))

	plain := errors.New("syntax error")
	assert.Same(t, plain, mapErr(plain))
	assert.False(t, graphstore.IsRetryable(mapErr(fmt.Errorf("wrapped: %w", plain))))
}

// openPurged opens a store on the configured server and empties it.
func openPurged(t *testing.T, cfg Config) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Purge(ctx))
	return s
}

// linkIfAbsent creates a FRIEND edge from->to unless one exists in either
// direction. afterCheck runs between the check and the create.
func linkIfAbsent(ctx context.Context, s *Store, from, to graphstore.NodeID, afterCheck func()) error {
	return graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		edges, err := tx.AdjacentEdges(ctx, from, "FRIEND", graphstore.Both)
		if err != nil {
			return err
		}
		afterCheck()
		for _, e := range edges {
			if e.Other(from) == to {
				return nil
			}
		}
		_, err = tx.CreateEdge(ctx, from, to, "FRIEND")
		return err
	})
}

func friendEdges(t *testing.T, s *Store, a, b graphstore.NodeID) int {
	t.Helper()
	ctx := context.Background()
	count := 0
	require.NoError(t, graphstore.View(ctx, s, func(tx graphstore.Tx) error {
		edges, err := tx.AdjacentEdges(ctx, a, "FRIEND", graphstore.Both)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.Other(a) == b {
				count++
			}
		}
		return nil
	}))
	return count
}

func twoNodes(t *testing.T, s *Store) (graphstore.NodeID, graphstore.NodeID) {
	t.Helper()
	ctx := context.Background()
	var a, b graphstore.NodeID
	require.NoError(t, graphstore.Update(ctx, s, func(tx graphstore.Tx) error {
		var err error
		if a, err = tx.CreateNode(ctx); err != nil {
			return err
		}
		b, err = tx.CreateNode(ctx)
		return err
	}))
	return a, b
}

func TestStore_CheckThenCreateIsSerialized(t *testing.T) {
	cfg := configFromEnv(t)
	ctx := context.Background()

	t.Run("opposite directions conflict", func(t *testing.T) {
		s := openPurged(t, cfg)
		a, b := twoNodes(t, s)

		// Both transactions finish their check before either creates.
		var checked sync.WaitGroup
		checked.Add(2)
		barrier := func() {
			checked.Done()
			checked.Wait()
		}

		errs := make([]error, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs[0] = linkIfAbsent(ctx, s, a, b, barrier)
		}()
		go func() {
			defer wg.Done()
			errs[1] = linkIfAbsent(ctx, s, b, a, barrier)
		}()
		wg.Wait()

		var failed int
		for _, err := range errs {
			if err != nil {
				assert.True(t, graphstore.IsRetryable(err), "unexpected error: %v", err)
				failed++
			}
		}
		assert.Equal(t, 1, failed)
		assert.Equal(t, 1, friendEdges(t, s, a, b))
	})

	t.Run("same direction waits for the first writer", func(t *testing.T) {
		s := openPurged(t, cfg)
		a, b := twoNodes(t, s)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = linkIfAbsent(ctx, s, a, b, func() {})
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				assert.True(t, graphstore.IsRetryable(err), "unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, friendEdges(t, s, a, b))
	})
}
