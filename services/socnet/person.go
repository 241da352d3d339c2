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

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// Person is a handle on a person node.
//
// Two Person values are equal (==) iff they wrap the same node of the same
// network, so Person works as a map key.
type Person struct {
	net *Network
	id  graphstore.NodeID
}

// ID returns the wrapped node handle.
func (p Person) ID() graphstore.NodeID {
	return p.id
}

// Equal reports whether both handles wrap the same node of the same
// network. It agrees with ==.
func (p Person) Equal(other Person) bool {
	return p.net == other.net && p.id == other.id
}

// Name returns the person's name.
func (p Person) Name(ctx context.Context) (string, error) {
	var name string
	err := p.net.view(ctx, "Name", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		var err error
		name, err = graphstore.StringProperty(ctx, tx, p.id, propName)
		return err
	})
	return name, err
}

// String renders the person as Person[<name>], falling back to the node
// handle when the name cannot be read.
func (p Person) String() string {
	name, err := p.Name(context.Background())
	if err != nil {
		return fmt.Sprintf("Person[#%d]", p.id)
	}
	return "Person[" + name + "]"
}

// AddFriend makes p and other friends.
//
// Description:
//
//	Creates one FRIEND edge from p to other unless other is p or a FRIEND
//	edge in either direction already connects them. The check and the
//	create run in one transaction.
//
// Outputs:
//
//	error - graphstore.ErrNotFound if other does not exist, or a store error.
//	        Already being friends is not an error.
func (p Person) AddFriend(ctx context.Context, other Person) error {
	if p.id == other.id {
		return nil
	}
	return p.net.update(ctx, "AddFriend", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		_, exists, err := friendEdge(ctx, tx, p.id, other.id)
		if err != nil {
			return fmt.Errorf("add friend: %w", err)
		}
		if exists {
			return nil
		}
		if _, err := tx.CreateEdge(ctx, p.id, other.id, EdgeFriend); err != nil {
			return fmt.Errorf("add friend: %w", err)
		}
		return nil
	})
}

// RemoveFriend ends the friendship between p and other. Removing a
// friendship that does not exist is a no-op.
func (p Person) RemoveFriend(ctx context.Context, other Person) error {
	if p.id == other.id {
		return nil
	}
	return p.net.update(ctx, "RemoveFriend", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		e, exists, err := friendEdge(ctx, tx, p.id, other.id)
		if err != nil {
			return fmt.Errorf("remove friend: %w", err)
		}
		if !exists {
			return nil
		}
		if err := tx.DeleteEdge(ctx, e.ID); err != nil {
			return fmt.Errorf("remove friend: %w", err)
		}
		return nil
	})
}

// Friends returns p's direct friends.
func (p Person) Friends(ctx context.Context) ([]Person, error) {
	var ids []graphstore.NodeID
	err := p.net.view(ctx, "Friends", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		var err error
		ids, err = friendsAtDepth(ctx, tx, p.id, 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p.net.persons(ids), nil
}

// NrOfFriends returns the number of direct friends.
func (p Person) NrOfFriends(ctx context.Context) (int, error) {
	friends, err := p.Friends(ctx)
	if err != nil {
		return 0, err
	}
	return len(friends), nil
}

// FriendsOfFriends returns the persons exactly two FRIEND hops away: never
// p itself and never one of p's direct friends.
func (p Person) FriendsOfFriends(ctx context.Context) ([]Person, error) {
	var ids []graphstore.NodeID
	err := p.net.view(ctx, "FriendsOfFriends", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		var err error
		ids, err = friendsAtDepth(ctx, tx, p.id, 2)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p.net.persons(ids), nil
}

// ShortestPathTo returns one shortest chain of friends from p to other,
// both inclusive, with at most maxDepth friendships. The result is empty,
// not an error, when no such chain exists.
func (p Person) ShortestPathTo(ctx context.Context, other Person, maxDepth int) ([]Person, error) {
	var path graphstore.Path
	var found bool
	err := p.net.view(ctx, "ShortestPathTo", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		var err error
		path, found, err = tx.FindShortestPath(ctx, p.id, other.id, EdgeFriend, maxDepth)
		if err != nil {
			return fmt.Errorf("shortest path: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return []Person{}, nil
	}
	return p.net.persons(path.Nodes), nil
}

// Status returns p's status updates, newest first. Empty if p never posted.
func (p Person) Status(ctx context.Context) ([]StatusUpdate, error) {
	var ids []graphstore.NodeID
	err := p.net.view(ctx, "Status", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		var err error
		ids, err = statusChain(ctx, tx, p.id)
		return err
	})
	if err != nil {
		return nil, err
	}

	updates := make([]StatusUpdate, len(ids))
	for i, id := range ids {
		updates[i] = p.net.StatusUpdate(id)
	}
	return updates, nil
}

// AddStatus posts a new status update stamped with the network clock.
//
// Description:
//
//	Creates the status node, then, if p has posted before, links it to the
//	previous head with NEXT and moves p's STATUS edge to it: the old STATUS
//	edge is deleted before the new one is created. All of this happens in
//	one transaction.
//
// Outputs:
//
//	StatusUpdate - The new head of p's chain.
//	error - Non-nil on store failure; nothing is written in that case.
func (p Person) AddStatus(ctx context.Context, text string) (StatusUpdate, error) {
	var id graphstore.NodeID
	err := p.net.update(ctx, "AddStatus", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		head, hasHead, err := statusHead(ctx, tx, p.id)
		if err != nil {
			return fmt.Errorf("add status: %w", err)
		}

		if id, err = tx.CreateNode(ctx); err != nil {
			return fmt.Errorf("add status: %w", err)
		}
		if err := tx.SetProperty(ctx, id, propText, text); err != nil {
			return fmt.Errorf("add status: %w", err)
		}
		postedAt := p.net.clock.Now().UnixMilli()
		if err := tx.SetProperty(ctx, id, propDate, postedAt); err != nil {
			return fmt.Errorf("add status: %w", err)
		}

		if hasHead {
			if err := tx.DeleteEdge(ctx, head.ID); err != nil {
				return fmt.Errorf("add status: %w", err)
			}
			if _, err := tx.CreateEdge(ctx, id, head.To, EdgeNext); err != nil {
				return fmt.Errorf("add status: %w", err)
			}
		}
		if _, err := tx.CreateEdge(ctx, p.id, id, EdgeStatus); err != nil {
			return fmt.Errorf("add status: %w", err)
		}
		return nil
	})
	if err != nil {
		return StatusUpdate{}, err
	}
	return p.net.StatusUpdate(id), nil
}
