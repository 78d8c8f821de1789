// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/store/sqlitestore"
	"github.com/bureau-foundation/thoughtcache/lib/store/storetest"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
)

func open(t *testing.T, path string) *sqlitestore.Backend {
	t.Helper()
	backend, err := sqlitestore.Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return backend
}

func TestBackend(t *testing.T) {
	storetest.TestBackend(t, func(t *testing.T) store.Backend {
		return open(t, filepath.Join(t.TempDir(), "thoughts.db"))
	})
}

func TestRecordsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "thoughts.db")
	entry := &thought.ParentEntry{Children: []thought.StoredChild{{Value: "a", Rank: 0}, {Value: "b", Rank: 1}}}

	s := store.New(open(t, path), nil)
	if err := s.SetContext(ctx, thought.Root(), entry); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	backend := open(t, path)
	defer backend.Close()
	got, err := store.New(backend, nil).GetContext(ctx, thought.Root())
	if err != nil || got == nil || len(got.Children) != 2 {
		t.Fatalf("GetContext after reopen = %+v, %v", got, err)
	}
	if count, err := backend.Count(ctx); err != nil || count != 1 {
		t.Errorf("Count = %d, %v; want 1", count, err)
	}
}
