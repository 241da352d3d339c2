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

func (a *app) fofCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fof NAME",
		Short: "List friends of friends",
		Long: `List the persons exactly two friendships away: friends of a friend who
are not themselves friends, and not the person.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			fof, err := persons[0].FriendsOfFriends(ctx)
			if err != nil {
				return err
			}
			return a.printPersons(ctx, "Friends of friends of "+args[0], fof)
		},
	}
}

func (a *app) pathCmd() *cobra.Command {
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "path FROM TO",
		Short: "Find the shortest chain of friends between two persons",
		Long: `Find one shortest chain of friendships from FROM to TO, both inclusive.

Examples:
  socnet path Alice Dave
  socnet path Alice Dave --max-depth 3 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args...)
			if err != nil {
				return err
			}
			depth := a.cfg.Query.MaxDepth
			if maxDepth > 0 {
				depth = maxDepth
			}

			path, err := persons[0].ShortestPathTo(ctx, persons[1], depth)
			if err != nil {
				return err
			}
			views, err := a.views(ctx, path)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.emitJSON(views)
			}
			if len(views) == 0 {
				a.out.Warning(fmt.Sprintf("no path from %s to %s within %d friendships", args[0], args[1], depth))
				return nil
			}
			names := make([]string, len(views))
			for i, v := range views {
				names[i] = v.Name
			}
			a.out.Chain(names)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0,
		"Maximum number of friendships (0 = config default)")
	return cmd
}

// rankedView is the JSON form of a recommendation.
type rankedView struct {
	personView
	Rank int `json:"rank"`
}

func (a *app) recommendCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "recommend NAME",
		Short: "Recommend friends of friends, most connected first",
		Long: `Rank friends of friends by the number of distinct friendship paths of
length two that reach them, and print the top k.

Examples:
  socnet recommend Alice
  socnet recommend Alice -k 10 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			count := a.cfg.Query.Recommendations
			if cmd.Flags().Changed("k") {
				count = k
			}

			ranked, err := persons[0].RankedRecommendations(ctx, count)
			if err != nil {
				return err
			}
			views := make([]rankedView, len(ranked))
			for i, r := range ranked {
				name, err := r.Person.Name(ctx)
				if err != nil {
					return err
				}
				views[i] = rankedView{personView{ID: uint64(r.Person.ID()), Name: name}, r.Rank}
			}
			if a.jsonOutput {
				return a.emitJSON(views)
			}
			a.out.Title("Recommended for " + args[0])
			for _, v := range views {
				a.out.Item(v.Name, fmt.Sprintf("%d mutual paths", v.Rank))
			}
			if len(views) == 0 {
				a.out.Muted("nobody to recommend")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0,
		"Number of recommendations (default from config)")
	return cmd
}
