// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package neo4jstore is a graphstore.Store on a Neo4j server.
//
// Every graphstore transaction maps to one explicit Neo4j transaction in its
// own session. Nodes carry the label SocnetNode and are addressed by their
// internal Neo4j id. Neo4j's transient errors (deadlocks, lock timeouts)
// surface as graphstore.ErrTransactionConflict.
//
// Neo4j reads at read-committed isolation. A writable transaction therefore
// write-locks a node before listing its edges, which makes a check on a
// node's edges followed by a write behave atomically.
//
// Shortest paths run server-side with Cypher's shortestPath. Traversals and
// path enumeration use the shared graphstore algorithms over AdjacentEdges.
package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AleutianAI/socnet/services/socnet/graphstore"
)

// Config holds connection settings.
type Config struct {
	// URI is the bolt or neo4j URI, e.g. "neo4j://localhost:7687".
	URI string

	Username string
	Password string

	// Database selects a named database. Empty uses the server default.
	Database string

	// UniqueEdges rejects a second edge of the same type between the same
	// pair of nodes with graphstore.ErrDuplicateEdge.
	UniqueEdges bool

	// Logger is optional.
	Logger *slog.Logger
}

// Store is a graphstore.Store backed by a Neo4j driver.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	driver      neo4j.DriverWithContext
	database    string
	uniqueEdges bool
	logger      *slog.Logger
	closed      atomic.Bool
}

// Open connects to the server and verifies connectivity.
//
// Inputs:
//
//	ctx - Context bounding the connectivity check.
//	cfg - Connection settings. URI is required.
//
// Outputs:
//
//	*Store - Connected store. Caller must call Close when done.
//	error - Non-nil if the driver cannot be created or the server is unreachable.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("neo4j URI is required")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		driver:      driver,
		database:    cfg.Database,
		uniqueEdges: cfg.UniqueEdges,
		logger:      logger.With(slog.String("component", "neo4jstore")),
	}
	s.logger.Debug("store opened", slog.String("uri", cfg.URI))
	return s, nil
}

// Begin opens a session and an explicit transaction in it.
func (s *Store) Begin(ctx context.Context, writable bool) (graphstore.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, graphstore.ErrStoreClosed
	}

	mode := neo4j.AccessModeRead
	if writable {
		mode = neo4j.AccessModeWrite
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})

	ntx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, fmt.Errorf("begin transaction: %w", mapErr(err))
	}

	return &tx{
		store:    s,
		ctx:      ctx,
		session:  session,
		ntx:      ntx,
		writable: writable,
	}, nil
}

// Close closes the driver. Safe to call more than once.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.driver.Close(context.Background())
}

// Purge deletes every node this package created, including the reference
// node. Intended for tests against a shared server.
func (s *Store) Purge(ctx context.Context) error {
	return graphstore.Update(ctx, s, func(gtx graphstore.Tx) error {
		_, err := gtx.(*tx).run("MATCH (n:SocnetNode) DETACH DELETE n", nil)
		return err
	})
}

// mapErr translates driver errors into graphstore sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if neo4j.IsRetryable(err) {
		return fmt.Errorf("%w: %v", graphstore.ErrTransactionConflict, err)
	}
	return err
}
