// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package socnet models a social network of people, friendships and status
// updates on top of a graphstore.Store.
//
// # Model
//
// A person is a node with a "name" property. Friendship is one FRIEND edge
// between two persons; its direction carries no meaning and every query
// treats it as undirected. A person's status updates form a newest-first
// chain: the person's STATUS edge points at the latest update, and each
// update's NEXT edge points at the one before it. Persons are registered
// under the store's reference node with PERSON edges.
//
// # Transactions
//
// Every public operation runs in exactly one store transaction. Mutations
// commit on success and roll back on any failure; a concurrent conflicting
// mutation surfaces as graphstore.ErrTransactionConflict. Nothing is retried
// automatically.
//
// # Thread Safety
//
// Person and StatusUpdate are immutable handles and safe to share. A
// StatusIterator is not safe for concurrent use.
package socnet

import (
	"log/slog"

	"github.com/juju/clock"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// Edge types of the social graph.
const (
	EdgeFriend graphstore.EdgeType = "FRIEND"
	EdgeStatus graphstore.EdgeType = "STATUS"
	EdgeNext   graphstore.EdgeType = "NEXT"
	EdgePerson graphstore.EdgeType = "PERSON"
)

// Node property keys.
const (
	propName = "name"
	propText = "text"
	propDate = "date"
)

// Network binds persons and status updates to a store.
//
// Thread Safety: Safe for concurrent use.
type Network struct {
	store  graphstore.Store
	logger *slog.Logger
	clock  clock.Clock
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithClock sets the clock used to timestamp status updates.
// Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(n *Network) {
		if c != nil {
			n.clock = c
		}
	}
}

// NewNetwork creates a network over store.
func NewNetwork(store graphstore.Store, opts ...Option) *Network {
	n := &Network{
		store:  store,
		logger: slog.Default(),
		clock:  clock.WallClock,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(slog.String("component", "socnet"))
	return n
}

// Store returns the underlying store.
func (n *Network) Store() graphstore.Store {
	return n.store
}

// Person wraps an existing node handle. No store access happens.
func (n *Network) Person(id graphstore.NodeID) Person {
	return Person{net: n, id: id}
}

// StatusUpdate wraps an existing status node handle.
func (n *Network) StatusUpdate(id graphstore.NodeID) StatusUpdate {
	return StatusUpdate{net: n, id: id}
}

func (n *Network) persons(ids []graphstore.NodeID) []Person {
	out := make([]Person, len(ids))
	for i, id := range ids {
		out[i] = n.Person(id)
	}
	return out
}
