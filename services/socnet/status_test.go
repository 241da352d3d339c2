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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/memstore"
)

func TestScenario_HelloWorld(t *testing.T) {
	f := newFixture(t)
	alice := f.person("Alice")
	f.post(alice, "hello")
	f.post(alice, "world")

	updates, err := alice.Status(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"world", "hello"}, f.texts(updates))
}

func TestPerson_Status(t *testing.T) {
	t.Run("never posted", func(t *testing.T) {
		f := newFixture(t)
		updates, err := f.person("A").Status(f.ctx)
		require.NoError(t, err)
		assert.Empty(t, updates)
	})

	t.Run("chain keeps call order", func(t *testing.T) {
		f := newFixture(t)
		a := f.person("A")

		const n = 12
		var want []string
		for i := 0; i < n; i++ {
			text := fmt.Sprintf("status %d", i)
			f.post(a, text)
			want = append([]string{text}, want...)
		}

		updates, err := a.Status(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, want, f.texts(updates))
	})

	t.Run("one STATUS edge and one NEXT per link", func(t *testing.T) {
		f := newFixture(t)
		a := f.person("A")
		first := f.post(a, "one")
		second := f.post(a, "two")
		third := f.post(a, "three")

		require.NoError(t, graphstore.View(f.ctx, f.net.Store(), func(tx graphstore.Tx) error {
			status, err := tx.AdjacentEdges(f.ctx, a.ID(), EdgeStatus, graphstore.Outgoing)
			require.NoError(t, err)
			require.Len(t, status, 1)
			assert.Equal(t, third.ID(), status[0].To)

			next, err := tx.AdjacentEdges(f.ctx, third.ID(), EdgeNext, graphstore.Outgoing)
			require.NoError(t, err)
			require.Len(t, next, 1)
			assert.Equal(t, second.ID(), next[0].To)

			next, err = tx.AdjacentEdges(f.ctx, first.ID(), EdgeNext, graphstore.Outgoing)
			require.NoError(t, err)
			assert.Empty(t, next)
			return nil
		}))
	})
}

func TestStatusUpdate_Details(t *testing.T) {
	f := newFixture(t)
	a := f.person("A")
	s := f.post(a, "hello")

	text, postedAt, err := s.Details(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.True(t, epoch.Equal(postedAt), "got %v", postedAt)

	later := f.post(a, "later")
	at, err := later.PostedAt(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Second, at.Sub(postedAt))

	assert.True(t, s.Equal(f.net.StatusUpdate(s.ID())))
	assert.False(t, s.Equal(later))

	other := NewNetwork(f.net.Store()).StatusUpdate(s.ID())
	assert.False(t, s.Equal(other))
	assert.Equal(t, s == other, s.Equal(other))
}

func TestStatusUpdate_Person(t *testing.T) {
	f := newFixture(t)
	a, b := f.person("A"), f.person("B")
	oldest := f.post(a, "one")
	f.post(a, "two")
	newest := f.post(a, "three")
	fromB := f.post(b, "hi")

	for _, s := range []StatusUpdate{oldest, newest} {
		owner, err := s.Person(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, a, owner)
	}

	owner, err := fromB.Person(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, b, owner)
}

// failingStore fails CreateEdge for one edge type.
type failingStore struct {
	graphstore.Store
	failOn graphstore.EdgeType
}

var errInjected = errors.New("injected failure")

func (s *failingStore) Begin(ctx context.Context, writable bool) (graphstore.Tx, error) {
	tx, err := s.Store.Begin(ctx, writable)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, failOn: s.failOn}, nil
}

type failingTx struct {
	graphstore.Tx
	failOn graphstore.EdgeType
}

func (t *failingTx) CreateEdge(ctx context.Context, from, to graphstore.NodeID, typ graphstore.EdgeType) (graphstore.Edge, error) {
	if typ == t.failOn {
		return graphstore.Edge{}, errInjected
	}
	return t.Tx.CreateEdge(ctx, from, to, typ)
}

func TestPerson_AddStatusIsAtomic(t *testing.T) {
	store := &failingStore{Store: memstore.New()}
	f := newFixtureWithStore(t, store)
	a := f.person("A")
	f.post(a, "first")

	// Fails after the node, its properties and the STATUS edge deletion.
	store.failOn = EdgeNext
	_, err := a.AddStatus(f.ctx, "second")
	require.ErrorIs(t, err, errInjected)

	store.failOn = ""
	updates, err := a.Status(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, f.texts(updates))

	f.post(a, "third")
	updates, err = a.Status(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "first"}, f.texts(updates))
}
