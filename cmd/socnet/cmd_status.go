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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/socnet/services/socnet"
)

// statusView is the JSON form of a status update.
type statusView struct {
	ID       uint64    `json:"id"`
	Person   string    `json:"person,omitempty"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`
}

func statusOf(ctx context.Context, s socnet.StatusUpdate, owner string) (statusView, error) {
	text, postedAt, err := s.Details(ctx)
	if err != nil {
		return statusView{}, err
	}
	return statusView{ID: uint64(s.ID()), Person: owner, Text: text, PostedAt: postedAt.UTC()}, nil
}

func (a *app) printStatuses(title string, views []statusView) error {
	if a.jsonOutput {
		return a.emitJSON(views)
	}
	a.out.Title(title)
	for _, v := range views {
		note := v.PostedAt.Format(time.RFC3339)
		if v.Person != "" {
			note = v.Person + ", " + note
		}
		a.out.Item(v.Text, note)
	}
	if len(views) == 0 {
		a.out.Muted("no status updates")
	}
	return nil
}

func (a *app) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Post and list status updates",
		Long: `Subcommands:
  post  - Post a status update; it becomes the person's current status
  list  - List a person's status updates, newest first`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "post NAME TEXT...",
		Short: "Post a status update",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			s, err := persons[0].AddStatus(ctx, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			view, err := statusOf(ctx, s, args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.emitJSON(view)
			}
			a.out.Success(fmt.Sprintf("%s posted %q", args[0], view.Text))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list NAME",
		Short: "List status updates, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			updates, err := persons[0].Status(ctx)
			if err != nil {
				return err
			}
			views := make([]statusView, len(updates))
			for i, s := range updates {
				if views[i], err = statusOf(ctx, s, ""); err != nil {
					return err
				}
			}
			return a.printStatuses("Status of "+args[0], views)
		},
	})

	return cmd
}

func (a *app) feedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "feed NAME",
		Short: "Show friends' status updates, newest first",
		Long: `Merge the status updates of every friend into one stream, newest first.

Examples:
  socnet feed Alice
  socnet feed Alice --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			persons, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			it, err := persons[0].FriendStatuses(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := it.Close(); closeErr != nil {
					err = multierror.Append(err, closeErr).ErrorOrNil()
				}
			}()

			// Entries carry what the feed already read. Owner names are
			// resolved after Close, once the feed no longer holds the store.
			type entry struct {
				view  statusView
				owner socnet.Person
			}
			var entries []entry
			for (limit <= 0 || len(entries) < limit) && it.Next() {
				entries = append(entries, entry{
					view: statusView{
						ID:       uint64(it.Status().ID()),
						Text:     it.Text(),
						PostedAt: it.PostedAt().UTC(),
					},
					owner: it.Person(),
				})
			}
			if err := it.Error(); err != nil {
				return err
			}
			if err := it.Close(); err != nil {
				return err
			}

			names := make(map[socnet.Person]string)
			views := make([]statusView, len(entries))
			for i, e := range entries {
				name, ok := names[e.owner]
				if !ok {
					if name, err = e.owner.Name(ctx); err != nil {
						return err
					}
					names[e.owner] = name
				}
				views[i] = e.view
				views[i].Person = name
			}
			return a.printStatuses("Feed of "+args[0], views)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0,
		"Maximum number of updates (0 = all)")
	return cmd
}
