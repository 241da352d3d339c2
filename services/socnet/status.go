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
	"fmt"
	"time"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// StatusUpdate is a handle on a status node. Equal (==) iff same node of the
// same network.
type StatusUpdate struct {
	net *Network
	id  graphstore.NodeID
}

// ID returns the wrapped node handle.
func (s StatusUpdate) ID() graphstore.NodeID {
	return s.id
}

// Equal reports whether both handles wrap the same node of the same network.
func (s StatusUpdate) Equal(other StatusUpdate) bool {
	return s.net == other.net && s.id == other.id
}

// Text returns the status text.
func (s StatusUpdate) Text(ctx context.Context) (string, error) {
	text, _, err := s.Details(ctx)
	return text, err
}

// PostedAt returns when the status was posted, at millisecond precision.
func (s StatusUpdate) PostedAt(ctx context.Context) (time.Time, error) {
	_, postedAt, err := s.Details(ctx)
	return postedAt, err
}

// Details reads text and posting time in one transaction.
func (s StatusUpdate) Details(ctx context.Context) (string, time.Time, error) {
	var text string
	var millis int64
	err := s.net.view(ctx, "StatusDetails", s.id, func(ctx context.Context, tx graphstore.Tx) error {
		var err error
		if text, millis, err = readStatus(ctx, tx, s.id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return text, time.UnixMilli(millis), nil
}

func readStatus(ctx context.Context, tx graphstore.Tx, id graphstore.NodeID) (string, int64, error) {
	text, err := graphstore.StringProperty(ctx, tx, id, propText)
	if err != nil {
		return "", 0, fmt.Errorf("status %d: %w", id, err)
	}
	millis, err := graphstore.Int64Property(ctx, tx, id, propDate)
	if err != nil {
		return "", 0, fmt.Errorf("status %d: %w", id, err)
	}
	return text, millis, nil
}

// Person returns the author of the status.
//
// Walks NEXT edges backwards to the head of the chain, then follows the
// incoming STATUS edge to its owner.
func (s StatusUpdate) Person(ctx context.Context) (Person, error) {
	var owner graphstore.NodeID
	err := s.net.view(ctx, "StatusPerson", s.id, func(ctx context.Context, tx graphstore.Tx) error {
		current := s.id
		seen := map[graphstore.NodeID]struct{}{current: {}}
		for {
			prev, err := tx.AdjacentEdges(ctx, current, EdgeNext, graphstore.Incoming)
			if err != nil {
				return fmt.Errorf("status owner: %w", err)
			}
			if len(prev) == 0 {
				break
			}
			current = prev[0].From
			if _, cycle := seen[current]; cycle {
				return fmt.Errorf("status owner: chain through node %d is cyclic", current)
			}
			seen[current] = struct{}{}
		}

		edges, err := tx.AdjacentEdges(ctx, current, EdgeStatus, graphstore.Incoming)
		if err != nil {
			return fmt.Errorf("status owner: %w", err)
		}
		if len(edges) == 0 {
			return fmt.Errorf("status owner of node %d: %w", s.id, graphstore.ErrNotFound)
		}
		owner = edges[0].From
		return nil
	})
	if err != nil {
		return Person{}, err
	}
	return s.net.Person(owner), nil
}
