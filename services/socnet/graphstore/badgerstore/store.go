// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// sequenceBandwidth is how many IDs a sequence leases per disk write.
const sequenceBandwidth = 100

// Store is a graphstore.Store backed by BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db          *badger.DB
	nodeSeq     *badger.Sequence
	edgeSeq     *badger.Sequence
	gc          *gcRunner
	uniqueEdges bool
	logger      *slog.Logger
	closed      atomic.Bool
}

// Open opens or creates a store.
//
// Description:
//
//	Opens BadgerDB with cfg, leases the node and edge ID sequences, and
//	starts value log GC for persistent stores when cfg.GCInterval is set.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close when done.
//	error - Non-nil if the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		db:          db,
		uniqueEdges: cfg.UniqueEdges,
		logger:      logger.With(slog.String("component", "badgerstore")),
	}

	if s.nodeSeq, err = db.GetSequence([]byte(nodeSeqKey), sequenceBandwidth); err != nil {
		db.Close()
		return nil, fmt.Errorf("node sequence: %w", err)
	}
	if s.edgeSeq, err = db.GetSequence([]byte(edgeSeqKey), sequenceBandwidth); err != nil {
		_ = s.nodeSeq.Release()
		db.Close()
		return nil, fmt.Errorf("edge sequence: %w", err)
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			_ = s.nodeSeq.Release()
			_ = s.edgeSeq.Release()
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}

	s.logger.Debug("store opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
	)
	return s, nil
}

// Begin starts a transaction on a consistent snapshot.
func (s *Store) Begin(ctx context.Context, writable bool) (graphstore.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, graphstore.ErrStoreClosed
	}
	return &tx{
		store:    s,
		txn:      s.db.NewTransaction(writable),
		writable: writable,
	}, nil
}

// Close stops GC, releases the sequences and closes the database.
// Safe to call more than once.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.gc != nil {
		s.gc.stop()
	}

	var result *multierror.Error
	if err := s.nodeSeq.Release(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release node sequence: %w", err))
	}
	if err := s.edgeSeq.Release(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release edge sequence: %w", err))
	}
	if err := s.db.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close badger database: %w", err))
	}
	return result.ErrorOrNil()
}

// nextID draws from a sequence. IDs start at 1 so zero stays unset.
func nextID(seq *badger.Sequence) (uint64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	return n + 1, nil
}

// mapErr translates badger errors into graphstore sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", graphstore.ErrTransactionConflict, err)
	}
	return err
}
