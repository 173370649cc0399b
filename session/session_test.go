/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package session_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"chainguard.dev/triagent/session"
	"github.com/stretchr/testify/require"
)

var testScope = session.Scope{App: "triagent", User: "alice"}

// storeFactories lets every behavior test run against both store flavors.
func storeFactories(t *testing.T) map[string]func(t *testing.T) session.Store {
	return map[string]func(t *testing.T) session.Store{
		"memory": func(t *testing.T) session.Store {
			return session.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) session.Store {
			store, err := session.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
			if err != nil {
				t.Fatalf("OpenSQLite() = %v, wanted no error", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			id := session.NewID()
			created, err := store.Create(ctx, testScope, id, map[string]any{"github_user": "alice"})
			if err != nil {
				t.Fatalf("Create() = %v, wanted no error", err)
			}
			if created.StateString("github_user") != "alice" {
				t.Errorf("github_user = %q, wanted = %q", created.StateString("github_user"), "alice")
			}

			got, err := store.Get(ctx, testScope, id)
			if err != nil {
				t.Fatalf("Get() = %v, wanted no error", err)
			}
			if got.StateString("github_user") != "alice" {
				t.Errorf("loaded github_user = %q, wanted = %q", got.StateString("github_user"), "alice")
			}

			if err := got.PutState(ctx, "issue", `{"issue_number": "42"}`); err != nil {
				t.Fatalf("PutState() = %v, wanted no error", err)
			}
			reloaded, err := store.Get(ctx, testScope, id)
			if err != nil {
				t.Fatalf("Get() after PutState = %v, wanted no error", err)
			}
			if reloaded.StateString("issue") != `{"issue_number": "42"}` {
				t.Errorf("issue = %q, wanted the stored payload", reloaded.StateString("issue"))
			}
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			_, err := store.Get(context.Background(), testScope, "no-such-session")
			if !errors.Is(err, session.ErrNotFound) {
				t.Errorf("Get() error = %v, wanted ErrNotFound", err)
			}
		})
	}
}

func TestStoreScopeIsolation(t *testing.T) {
	other := session.Scope{App: "triagent", User: "bob"}
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			mine := session.NewID()
			theirs := session.NewID()
			if _, err := store.Create(ctx, testScope, mine, nil); err != nil {
				t.Fatalf("Create() = %v, wanted no error", err)
			}
			if _, err := store.Create(ctx, other, theirs, nil); err != nil {
				t.Fatalf("Create() = %v, wanted no error", err)
			}

			ids, err := store.List(ctx, testScope)
			if err != nil {
				t.Fatalf("List() = %v, wanted no error", err)
			}
			if len(ids) != 1 || ids[0] != mine {
				t.Errorf("List(%v) = %v, wanted only %s", testScope, ids, mine)
			}

			// A session is invisible outside its own scope.
			if _, err := store.Get(ctx, testScope, theirs); !errors.Is(err, session.ErrNotFound) {
				t.Errorf("cross-scope Get() error = %v, wanted ErrNotFound", err)
			}
		})
	}
}

func TestStoreListOrdersByCreation(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			var want []string
			for i := 0; i < 3; i++ {
				id := session.NewID()
				if _, err := store.Create(ctx, testScope, id, nil); err != nil {
					t.Fatalf("Create() = %v, wanted no error", err)
				}
				want = append(want, id)
				// Creation timestamps must differ for ordering to hold.
				time.Sleep(5 * time.Millisecond)
			}

			got, err := store.List(ctx, testScope)
			if err != nil {
				t.Fatalf("List() = %v, wanted no error", err)
			}
			if len(got) != len(want) {
				t.Fatalf("List() = %d sessions, wanted = %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("List()[%d] = %s, wanted = %s", i, got[i], want[i])
				}
			}
		})
	}
}

func TestSQLiteStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := session.OpenSQLite(ctx, path)
	require.NoError(t, err)

	id := session.NewID()
	s, err := store.Create(ctx, testScope, id, map[string]any{"github_user": "alice"})
	require.NoError(t, err)
	require.NoError(t, s.PutState(ctx, "issue", "issue payload"))
	require.NoError(t, store.Close())

	reopened, err := session.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.List(ctx, testScope)
	require.NoError(t, err)
	require.Equal(t, []string{id}, ids)

	got, err := reopened.Get(ctx, testScope, id)
	require.NoError(t, err)
	require.Equal(t, "alice", got.StateString("github_user"))
	require.Equal(t, "issue payload", got.StateString("issue"))
}

func TestCreateDuplicateFails(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			id := session.NewID()
			if _, err := store.Create(ctx, testScope, id, nil); err != nil {
				t.Fatalf("Create() = %v, wanted no error", err)
			}
			if _, err := store.Create(ctx, testScope, id, nil); err == nil {
				t.Error("Create() duplicate = nil, wanted error")
			}
		})
	}
}
