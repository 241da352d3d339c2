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
	"container/heap"
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// StatusIterator is a lazy, newest-first merge of several status chains.
//
// Usage:
//
//	it, err := p.FriendStatuses(ctx)
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//	    fmt.Println(it.Text(), it.PostedAt())
//	}
//	if err := it.Error(); err != nil { ... }
//
// The iterator reads from one read transaction held until Close. Text,
// PostedAt and Person return values read by that transaction; use them
// instead of the StatusUpdate and Person accessors while the iterator is
// open. With memstore the held transaction blocks writers, and a second
// read from the same goroutine would queue behind a waiting writer.
//
// Thread Safety: Not safe for concurrent use.
type StatusIterator struct {
	ctx     context.Context
	net     *Network
	tx      graphstore.Tx
	heads   cursorHeap
	current StatusUpdate
	text    string
	posted  int64
	owner   graphstore.NodeID
	err     error
	closed  bool
}

// cursor is one chain's read position plus its pending, unreturned status.
type cursor struct {
	it       graphstore.PathIterator
	order    int
	owner    graphstore.NodeID
	node     graphstore.NodeID
	text     string
	postedAt int64
}

// cursorHeap orders cursors by their pending status, newest first. Equal
// timestamps fall back to friend order.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	if h[i].postedAt != h[j].postedAt {
		return h[i].postedAt > h[j].postedAt
	}
	return h[i].order < h[j].order
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// FriendStatuses returns a lazy feed of all of p's friends' status updates,
// newest first across friends.
//
// Description:
//
//	Opens one cursor per friend on that friend's chain and merges them:
//	each Next yields the newest pending status and advances only its
//	cursor. At most one status per friend is buffered. Not restartable;
//	call again for a fresh feed over the live data.
//
// Outputs:
//
//	*StatusIterator - The feed. Caller must Close it.
//	error - Non-nil if the friends or chain heads cannot be read.
func (p Person) FriendStatuses(ctx context.Context) (*StatusIterator, error) {
	ctx, span := startSpan(ctx, "FriendStatuses", p.id)
	start := time.Now()

	it, err := p.openFeed(ctx)
	endSpan(ctx, span, "FriendStatuses", start, err)
	return it, err
}

func (p Person) openFeed(ctx context.Context) (*StatusIterator, error) {
	tx, err := p.net.store.Begin(ctx, false)
	if err != nil {
		return nil, err
	}

	friends, err := friendsAtDepth(ctx, tx, p.id, 1)
	if err != nil {
		tx.Discard()
		return nil, err
	}

	it := &StatusIterator{ctx: ctx, net: p.net, tx: tx}
	for i, friend := range friends {
		chain, ok, err := statusCursor(ctx, tx, friend)
		if err != nil {
			_ = it.Close()
			return nil, fmt.Errorf("feed cursor for %d: %w", friend, err)
		}
		if !ok {
			continue
		}
		c := &cursor{it: chain, order: i, owner: friend}
		if err := it.advance(c); err != nil {
			_ = it.Close()
			return nil, err
		}
	}
	return it, nil
}

// advance loads c's next status and queues c, or closes c when its chain
// is exhausted.
func (it *StatusIterator) advance(c *cursor) error {
	if !c.it.Next() {
		err := c.it.Error()
		_ = c.it.Close()
		if err != nil {
			return fmt.Errorf("feed: %w", err)
		}
		return nil
	}

	node := c.it.Path().End()
	text, postedAt, err := readStatus(it.ctx, it.tx, node)
	if err != nil {
		_ = c.it.Close()
		return fmt.Errorf("feed: %w", err)
	}
	c.node, c.text, c.postedAt = node, text, postedAt
	heap.Push(&it.heads, c)
	return nil
}

// Next advances to the newest remaining status. It returns false when all
// chains are exhausted, after Close, or on error.
func (it *StatusIterator) Next() bool {
	if it.closed || it.err != nil || len(it.heads) == 0 {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	c := heap.Pop(&it.heads).(*cursor)
	it.current = it.net.StatusUpdate(c.node)
	it.text, it.posted, it.owner = c.text, c.postedAt, c.owner
	if err := it.advance(c); err != nil {
		it.err = err
		return false
	}
	return true
}

// Status returns the status the iterator is positioned on.
func (it *StatusIterator) Status() StatusUpdate {
	return it.current
}

// Text returns the current status text without another store read.
func (it *StatusIterator) Text() string {
	return it.text
}

// PostedAt returns the current status timestamp without another store read.
func (it *StatusIterator) PostedAt() time.Time {
	return time.UnixMilli(it.posted)
}

// Person returns the friend who posted the current status.
func (it *StatusIterator) Person() Person {
	return it.net.Person(it.owner)
}

// Error returns the error that stopped iteration, if any.
func (it *StatusIterator) Error() error {
	return it.err
}

// Close releases every cursor and the read transaction. Safe to call more
// than once.
func (it *StatusIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true

	var result *multierror.Error
	for _, c := range it.heads {
		if err := c.it.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	it.heads = nil
	it.tx.Discard()
	return result.ErrorOrNil()
}
