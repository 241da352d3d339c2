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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/socnet/services/socnet"
	"github.com/AleutianAI/socnet/services/socnet/config"
	"github.com/AleutianAI/socnet/services/socnet/graphstore"
	"github.com/AleutianAI/socnet/services/socnet/graphstore/memstore"
)

// sharedStore outlives a single CLI invocation.
type sharedStore struct {
	graphstore.Store
}

func (sharedStore) Close() error { return nil }

// harness runs CLI invocations against one in-memory store.
type harness struct {
	t     *testing.T
	store graphstore.Store
	clock *testclock.Clock
}

func newHarness(t *testing.T) *harness {
	store := memstore.New()
	t.Cleanup(func() { _ = store.Close() })
	return &harness{
		t:     t,
		store: store,
		clock: testclock.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
}

// exec runs one command line and returns stdout, stderr and the exit code.
func (h *harness) exec(args ...string) (string, string, int) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	a.openStore = func(context.Context, config.StoreConfig, *slog.Logger) (graphstore.Store, error) {
		return sharedStore{h.store}, nil
	}
	a.netOpts = []socnet.Option{socnet.WithClock(h.clock)}

	code := run(append([]string{"--backend", "memory"}, args...), a)
	h.clock.Advance(time.Second)
	return stdout.String(), stderr.String(), code
}

// ok runs a command that must succeed.
func (h *harness) ok(args ...string) string {
	h.t.Helper()
	stdout, stderr, code := h.exec(args...)
	require.Equal(h.t, ExitSuccess, code, "socnet %v\nstderr: %s", args, stderr)
	return stdout
}

// names decodes a JSON person list into names.
func (h *harness) names(stdout string) []string {
	h.t.Helper()
	var views []personView
	require.NoError(h.t, json.Unmarshal([]byte(stdout), &views), stdout)
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Name
	}
	return out
}

func (h *harness) texts(stdout string) []statusView {
	h.t.Helper()
	var views []statusView
	require.NoError(h.t, json.Unmarshal([]byte(stdout), &views), stdout)
	return views
}

func (h *harness) scenario() {
	for _, name := range []string{"Alice", "Bob", "Carol", "Dave"} {
		h.ok("person", "add", name)
	}
	h.ok("friend", "add", "Alice", "Bob")
	h.ok("friend", "add", "Alice", "Carol")
	h.ok("friend", "add", "Bob", "Dave")
}

func TestCLI_Persons(t *testing.T) {
	h := newHarness(t)
	h.ok("person", "add", "Alice")
	h.ok("person", "add", "Bob")

	assert.Equal(t, []string{"Alice", "Bob"}, h.names(h.ok("person", "list", "--json")))

	_, stderr, code := h.exec("person", "add", "Alice")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, socnet.ErrPersonExists.Error())

	h.ok("person", "delete", "Bob")
	assert.Equal(t, []string{"Alice"}, h.names(h.ok("person", "list", "--json")))

	_, stderr, code = h.exec("person", "delete", "Bob")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, socnet.ErrPersonNotFound.Error())
}

func TestCLI_Friends(t *testing.T) {
	h := newHarness(t)
	h.scenario()

	assert.ElementsMatch(t, []string{"Bob", "Carol"}, h.names(h.ok("friend", "list", "Alice", "--json")))
	assert.Equal(t, []string{"Dave"}, h.names(h.ok("fof", "Alice", "--json")))

	// Adding the reverse direction changes nothing.
	h.ok("friend", "add", "Bob", "Alice")
	assert.Len(t, h.names(h.ok("friend", "list", "Alice", "--json")), 2)

	h.ok("friend", "remove", "Carol", "Alice")
	assert.Equal(t, []string{"Bob"}, h.names(h.ok("friend", "list", "Alice", "--json")))
}

func TestCLI_Path(t *testing.T) {
	h := newHarness(t)
	h.scenario()

	assert.Equal(t, []string{"Alice", "Bob", "Dave"}, h.names(h.ok("path", "Alice", "Dave", "--json")))
	assert.Empty(t, h.names(h.ok("path", "Carol", "Dave", "--max-depth", "2", "--json")))

	out := h.ok("path", "Carol", "Dave", "--max-depth", "2")
	assert.Contains(t, out, "no path from Carol to Dave")

	out = h.ok("path", "Alice", "Dave")
	assert.Contains(t, out, "Alice -> Bob -> Dave")
}

func TestCLI_Recommend(t *testing.T) {
	h := newHarness(t)
	h.scenario()
	h.ok("person", "add", "Erin")
	h.ok("friend", "add", "Carol", "Erin")
	h.ok("friend", "add", "Bob", "Erin")

	var ranked []rankedView
	require.NoError(t, json.Unmarshal([]byte(h.ok("recommend", "Alice", "--json")), &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, "Erin", ranked[0].Name)
	assert.Equal(t, 2, ranked[0].Rank)
	assert.Equal(t, "Dave", ranked[1].Name)
	assert.Equal(t, 1, ranked[1].Rank)

	require.NoError(t, json.Unmarshal([]byte(h.ok("recommend", "Alice", "-k", "1", "--json")), &ranked))
	require.Len(t, ranked, 1)
	assert.Equal(t, "Erin", ranked[0].Name)

	out := h.ok("recommend", "Alice")
	assert.Contains(t, out, "Erin\t2 mutual paths")
}

func TestCLI_StatusAndFeed(t *testing.T) {
	h := newHarness(t)
	h.scenario()

	h.ok("status", "post", "Bob", "b1")
	h.ok("status", "post", "Carol", "c1")
	h.ok("status", "post", "Bob", "hello", "world")
	h.ok("status", "post", "Dave", "not a friend of Alice")

	list := h.texts(h.ok("status", "list", "Bob", "--json"))
	require.Len(t, list, 2)
	assert.Equal(t, "hello world", list[0].Text)
	assert.Equal(t, "b1", list[1].Text)
	assert.True(t, list[0].PostedAt.After(list[1].PostedAt))

	feed := h.texts(h.ok("feed", "Alice", "--json"))
	require.Len(t, feed, 3)
	assert.Equal(t, "hello world", feed[0].Text)
	assert.Equal(t, "Bob", feed[0].Person)
	assert.Equal(t, "c1", feed[1].Text)
	assert.Equal(t, "Carol", feed[1].Person)
	assert.Equal(t, "b1", feed[2].Text)

	limited := h.texts(h.ok("feed", "Alice", "--limit", "1", "--json"))
	require.Len(t, limited, 1)
	assert.Equal(t, "hello world", limited[0].Text)

	// The store accepts writes after an abandoned feed.
	h.ok("status", "post", "Carol", "c2")
}

func TestCLI_Errors(t *testing.T) {
	h := newHarness(t)

	t.Run("unknown person", func(t *testing.T) {
		_, stderr, code := h.exec("friend", "list", "Nobody")
		assert.Equal(t, ExitError, code)
		assert.Contains(t, stderr, `"Nobody"`)
	})

	t.Run("wrong arity", func(t *testing.T) {
		_, _, code := h.exec("friend", "add", "Alice")
		assert.Equal(t, ExitError, code)
	})

	t.Run("invalid backend", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run([]string{"--backend", "sqlite", "person", "list"}, newApp(&stdout, &stderr))
		assert.Equal(t, ExitError, code)
		assert.Contains(t, stderr.String(), config.ErrInvalidConfig.Error())
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, stderr, code := h.exec("--log-level", "loud", "person", "list")
		assert.Equal(t, ExitError, code)
		assert.Contains(t, stderr, config.ErrInvalidConfig.Error())
	})
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "socnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: badger
  badger:
    path: `+filepath.Join(dir, "data")+`
    sync_writes: false
logging:
  level: debug
`), 0600))

	exec := func(args ...string) (string, string, int) {
		var stdout, stderr bytes.Buffer
		code := run(append([]string{"--config", path}, args...), newApp(&stdout, &stderr))
		return stdout.String(), stderr.String(), code
	}

	_, stderr, code := exec("person", "add", "Alice")
	require.Equal(t, ExitSuccess, code, stderr)
	// Debug logging from the config reaches stderr as JSON.
	assert.Contains(t, stderr, `"msg":"store opened"`)

	_, stderr, code = exec("person", "add", "Bob")
	require.Equal(t, ExitSuccess, code, stderr)

	// Data survives between invocations.
	stdout, stderr, code := exec("person", "list", "--json")
	require.Equal(t, ExitSuccess, code, stderr)
	var views []personView
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "Alice", views[0].Name)
	assert.Equal(t, "Bob", views[1].Name)
}

func TestCLI_MetricsFile(t *testing.T) {
	dir := t.TempDir()
	metricsPath := filepath.Join(dir, "socnet.prom")
	path := filepath.Join(dir, "socnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: memory
telemetry:
  metrics: prometheus
  metrics_file: `+metricsPath+`
`), 0600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", path, "person", "add", "Alice"}, newApp(&stdout, &stderr))
	require.Equal(t, ExitSuccess, code, stderr.String())

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "socnet_mutation_total")
}
