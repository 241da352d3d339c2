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
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/memstore"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture is a network over a fresh memstore with a controllable clock.
type fixture struct {
	t     *testing.T
	ctx   context.Context
	net   *Network
	repo  *PersonRepository
	clock *testclock.Clock
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, memstore.New())
}

func newFixtureWithStore(t *testing.T, store graphstore.Store) *fixture {
	t.Helper()
	t.Cleanup(func() { _ = store.Close() })

	clk := testclock.NewClock(epoch)
	net := NewNetwork(store, WithClock(clk))
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		net:   net,
		repo:  NewPersonRepository(net),
		clock: clk,
	}
}

func (f *fixture) person(name string) Person {
	f.t.Helper()
	p, err := f.repo.CreatePerson(f.ctx, name)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) befriend(a, b Person) {
	f.t.Helper()
	require.NoError(f.t, a.AddFriend(f.ctx, b))
}

// post adds a status, then advances the clock one second.
func (f *fixture) post(p Person, text string) StatusUpdate {
	f.t.Helper()
	s, err := p.AddStatus(f.ctx, text)
	require.NoError(f.t, err)
	f.clock.Advance(time.Second)
	return s
}

func (f *fixture) names(persons []Person) []string {
	f.t.Helper()
	out := make([]string, 0, len(persons))
	for _, p := range persons {
		name, err := p.Name(f.ctx)
		require.NoError(f.t, err)
		out = append(out, name)
	}
	return out
}

func (f *fixture) texts(updates []StatusUpdate) []string {
	f.t.Helper()
	out := make([]string, 0, len(updates))
	for _, s := range updates {
		text, err := s.Text(f.ctx)
		require.NoError(f.t, err)
		out = append(out, text)
	}
	return out
}

// friendEdgeCount counts FRIEND edges between a and b in either direction.
func (f *fixture) friendEdgeCount(a, b Person) int {
	f.t.Helper()
	count := 0
	require.NoError(f.t, graphstore.View(f.ctx, f.net.Store(), func(tx graphstore.Tx) error {
		edges, err := tx.AdjacentEdges(f.ctx, a.ID(), EdgeFriend, graphstore.Both)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.Other(a.ID()) == b.ID() {
				count++
			}
		}
		return nil
	}))
	return count
}

// scenario builds Alice-Bob, Alice-Carol, Bob-Dave.
func (f *fixture) scenario() (alice, bob, carol, dave Person) {
	alice = f.person("Alice")
	bob = f.person("Bob")
	carol = f.person("Carol")
	dave = f.person("Dave")
	f.befriend(alice, bob)
	f.befriend(alice, carol)
	f.befriend(bob, dave)
	return
}

func TestScenario_AliceBobCarolDave(t *testing.T) {
	f := newFixture(t)
	alice, _, _, _ := f.scenario()

	friends, err := alice.Friends(f.ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Bob", "Carol"}, f.names(friends))

	fof, err := alice.FriendsOfFriends(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dave"}, f.names(fof))

	recs, err := alice.FriendRecommendation(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dave"}, f.names(recs))
}

func TestPerson_Identity(t *testing.T) {
	f := newFixture(t)
	alice := f.person("Alice")

	again, err := f.repo.PersonByName(f.ctx, "Alice")
	require.NoError(t, err)

	assert.Equal(t, alice, again)
	assert.True(t, alice == again)
	assert.True(t, alice.Equal(f.net.Person(alice.ID())))

	// A second network over the same store hands out distinct handles.
	other := NewNetwork(f.net.Store()).Person(alice.ID())
	assert.False(t, alice.Equal(other))
	assert.Equal(t, alice == other, alice.Equal(other))

	seen := map[Person]bool{alice: true}
	assert.True(t, seen[again])

	assert.Equal(t, "Person[Alice]", alice.String())
	assert.Equal(t, "Person[#999]", f.net.Person(999).String())
}
