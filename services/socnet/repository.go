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
	"strings"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// PersonRepository creates, finds and deletes persons by name.
//
// Persons hang off the store's reference node by PERSON edges. Lookups scan
// those edges, so they cost O(number of persons).
type PersonRepository struct {
	net *Network
}

// NewPersonRepository creates a repository over net.
func NewPersonRepository(net *Network) *PersonRepository {
	return &PersonRepository{net: net}
}

// findByName scans the registered persons for name.
func findByName(ctx context.Context, tx graphstore.Tx, ref graphstore.NodeID, name string) (graphstore.NodeID, bool, error) {
	edges, err := tx.AdjacentEdges(ctx, ref, EdgePerson, graphstore.Outgoing)
	if err != nil {
		return 0, false, err
	}
	for _, e := range edges {
		n, err := graphstore.StringProperty(ctx, tx, e.To, propName)
		if err != nil {
			return 0, false, err
		}
		if n == name {
			return e.To, true, nil
		}
	}
	return 0, false, nil
}

// CreatePerson registers a new person.
//
// Outputs:
//
//	Person - The new person.
//	error - ErrEmptyName for a blank name, ErrPersonExists if the name is
//	        taken, or a store error.
func (r *PersonRepository) CreatePerson(ctx context.Context, name string) (Person, error) {
	if strings.TrimSpace(name) == "" {
		return Person{}, ErrEmptyName
	}

	var id graphstore.NodeID
	err := r.net.update(ctx, "CreatePerson", 0, func(ctx context.Context, tx graphstore.Tx) error {
		ref, err := tx.ReferenceNode(ctx)
		if err != nil {
			return fmt.Errorf("create person: %w", err)
		}
		_, exists, err := findByName(ctx, tx, ref, name)
		if err != nil {
			return fmt.Errorf("create person: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %q", ErrPersonExists, name)
		}

		if id, err = tx.CreateNode(ctx); err != nil {
			return fmt.Errorf("create person: %w", err)
		}
		if err := tx.SetProperty(ctx, id, propName, name); err != nil {
			return fmt.Errorf("create person: %w", err)
		}
		if _, err := tx.CreateEdge(ctx, ref, id, EdgePerson); err != nil {
			return fmt.Errorf("create person: %w", err)
		}
		return nil
	})
	if err != nil {
		return Person{}, err
	}
	return r.net.Person(id), nil
}

// PersonByName finds a person. Returns ErrPersonNotFound if none matches.
func (r *PersonRepository) PersonByName(ctx context.Context, name string) (Person, error) {
	var id graphstore.NodeID
	err := r.net.view(ctx, "PersonByName", 0, func(ctx context.Context, tx graphstore.Tx) error {
		ref, err := tx.ReferenceNode(ctx)
		if errors.Is(err, graphstore.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrPersonNotFound, name)
		}
		if err != nil {
			return err
		}

		var found bool
		if id, found, err = findByName(ctx, tx, ref, name); err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrPersonNotFound, name)
		}
		return nil
	})
	if err != nil {
		return Person{}, err
	}
	return r.net.Person(id), nil
}

// AllPersons returns every registered person in registration order.
func (r *PersonRepository) AllPersons(ctx context.Context) ([]Person, error) {
	var ids []graphstore.NodeID
	err := r.net.view(ctx, "AllPersons", 0, func(ctx context.Context, tx graphstore.Tx) error {
		ref, err := tx.ReferenceNode(ctx)
		if errors.Is(err, graphstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		edges, err := tx.AdjacentEdges(ctx, ref, EdgePerson, graphstore.Outgoing)
		if err != nil {
			return err
		}
		for _, e := range edges {
			ids = append(ids, e.To)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.net.persons(ids), nil
}

// DeletePerson removes a person with all friendships and status updates
// in one transaction.
func (r *PersonRepository) DeletePerson(ctx context.Context, p Person) error {
	return r.net.update(ctx, "DeletePerson", p.id, func(ctx context.Context, tx graphstore.Tx) error {
		chain, err := statusChain(ctx, tx, p.id)
		if err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		for _, id := range chain {
			if err := tx.DeleteNode(ctx, id); err != nil {
				return fmt.Errorf("delete person: %w", err)
			}
		}
		// Also drops FRIEND and PERSON edges.
		if err := tx.DeleteNode(ctx, p.id); err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		return nil
	})
}
