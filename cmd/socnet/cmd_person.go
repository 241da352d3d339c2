// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) personCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Add, list and delete persons",
		Long: `Commands for registering persons by unique name.

Subcommands:
  add     - Register a new person
  list    - List every person in registration order
  delete  - Remove a person with their friendships and status updates`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Register a new person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.repo.CreatePerson(ctx, args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.emitJSON(personView{ID: uint64(p.ID()), Name: args[0]})
			}
			a.out.Success(fmt.Sprintf("added %s", args[0]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.repo.AllPersons(ctx)
			if err != nil {
				return err
			}
			return a.printPersons(ctx, "Persons", persons)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a person with their friendships and status updates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.repo.DeletePerson(ctx, persons[0]); err != nil {
				return err
			}
			if a.jsonOutput {
				return a.emitJSON(map[string]string{"deleted": args[0]})
			}
			a.out.Success(fmt.Sprintf("deleted %s", args[0]))
			return nil
		},
	})

	return cmd
}

func (a *app) friendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friend",
		Short: "Manage friendships",
		Long: `Friendships are symmetric: "friend add A B" and "friend add B A" are the
same friendship, and adding it twice changes nothing.

Subcommands:
  add     - Make two persons friends
  remove  - End a friendship
  list    - List a person's friends`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME OTHER",
		Short: "Make two persons friends",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args...)
			if err != nil {
				return err
			}
			if err := persons[0].AddFriend(ctx, persons[1]); err != nil {
				return err
			}
			if a.jsonOutput {
				return a.emitJSON(map[string][]string{"friends": args})
			}
			a.out.Success(fmt.Sprintf("%s and %s are friends", args[0], args[1]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove NAME OTHER",
		Short: "End a friendship",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args...)
			if err != nil {
				return err
			}
			if err := persons[0].RemoveFriend(ctx, persons[1]); err != nil {
				return err
			}
			if a.jsonOutput {
				return a.emitJSON(map[string][]string{"unfriended": args})
			}
			a.out.Success(fmt.Sprintf("%s and %s are no longer friends", args[0], args[1]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list NAME",
		Short: "List a person's friends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			friends, err := persons[0].Friends(ctx)
			if err != nil {
				return err
			}
			return a.printPersons(ctx, "Friends of "+args[0], friends)
		},
	})

	return cmd
}
