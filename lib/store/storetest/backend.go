// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
)

// TestBackend runs the behaviour every Backend must share through a
// Store. open returns a fresh, empty backend; TestBackend closes it.
func TestBackend(t *testing.T, open func(t *testing.T) store.Backend) {
	ctx := context.Background()

	entry := func(c thought.Context, values ...string) *thought.ParentEntry {
		e := &thought.ParentEntry{Context: c}
		for i, value := range values {
			e.Children = append(e.Children, thought.StoredChild{Value: value, Rank: float64(i)})
		}
		return e
	}

	t.Run("RoundTrip", func(t *testing.T) {
		s := store.New(open(t), nil)
		defer s.Close()

		c := thought.Context{"a", "b"}
		want := entry(c, "x", "y")
		want.Children[1].HasPendingDescendants = true
		if err := s.SetContext(ctx, c, want); err != nil {
			t.Fatalf("SetContext: %v", err)
		}
		got, err := s.GetContext(ctx, thought.Context{thought.RootToken, "a", "b"})
		if err != nil {
			t.Fatalf("GetContext: %v", err)
		}
		if got == nil || len(got.Children) != 2 || got.Children[0].Value != "x" || !got.Children[1].HasPendingDescendants {
			t.Fatalf("GetContext = %+v", got)
		}
	})

	t.Run("MissingIsNil", func(t *testing.T) {
		s := store.New(open(t), nil)
		defer s.Close()

		got, err := s.GetContext(ctx, thought.Context{"nope"})
		if err != nil || got != nil {
			t.Fatalf("GetContext(missing) = %+v, %v", got, err)
		}
		if err := s.DeleteContext(ctx, thought.Context{"nope"}); err != nil {
			t.Fatalf("DeleteContext(missing): %v", err)
		}
	})

	t.Run("OverwriteAndDelete", func(t *testing.T) {
		s := store.New(open(t), nil)
		defer s.Close()

		root := thought.Root()
		for _, values := range [][]string{{"a"}, {"a", "b", "c"}} {
			if err := s.SetContext(ctx, root, entry(root, values...)); err != nil {
				t.Fatalf("SetContext: %v", err)
			}
		}
		got, err := s.GetContext(ctx, root)
		if err != nil || got == nil || len(got.Children) != 3 {
			t.Fatalf("GetContext after overwrite = %+v, %v", got, err)
		}

		if err := s.SetContext(ctx, root, &thought.ParentEntry{}); err != nil {
			t.Fatalf("SetContext(empty): %v", err)
		}
		if got, err := s.GetContext(ctx, root); err != nil || got != nil {
			t.Fatalf("empty entry was stored: %+v, %v", got, err)
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		s := store.New(open(t), nil)
		defer s.Close()

		contexts := []thought.Context{thought.Root(), {"a"}, {"a", "b"}}
		for _, c := range contexts {
			if err := s.SetContext(ctx, c, entry(c, "v")); err != nil {
				t.Fatalf("SetContext(%s): %v", c, err)
			}
		}
		if err := s.ClearAll(ctx); err != nil {
			t.Fatalf("ClearAll: %v", err)
		}
		for _, c := range contexts {
			if got, err := s.GetContext(ctx, c); err != nil || got != nil {
				t.Errorf("%s survived ClearAll: %+v, %v", c, got, err)
			}
		}
	})

	t.Run("CorruptRecord", func(t *testing.T) {
		backend := open(t)
		s := store.New(backend, nil)
		defer s.Close()

		c := thought.Context{"a"}
		key := c.Key()
		if err := backend.Put(ctx, key[:], []byte{0xff, 0x00}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if _, err := s.GetContext(ctx, c); !errors.Is(err, store.ErrCorruptRecord) {
			t.Errorf("GetContext(garbage) = %v, want ErrCorruptRecord", err)
		}

		// A valid record filed under the wrong key.
		if err := s.SetContext(ctx, thought.Context{"b"}, entry(nil, "v")); err != nil {
			t.Fatalf("SetContext: %v", err)
		}
		other := thought.Context{"b"}.Key()
		moved, err := backend.Get(ctx, other[:])
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if err := backend.Put(ctx, key[:], moved); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if _, err := s.GetContext(ctx, c); !errors.Is(err, store.ErrCorruptRecord) {
			t.Errorf("GetContext(misfiled) = %v, want ErrCorruptRecord", err)
		}
	})
}
