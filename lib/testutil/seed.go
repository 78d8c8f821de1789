// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"math"
	"strings"

	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

// Seed writes the outline described by paths into adapter. Each path
// is slash-separated ("a/b/c") and creates any missing ancestors.
// Siblings are ranked in order of first appearance.
func Seed(t T, adapter store.Adapter, paths ...string) {
	t.Helper()
	tr := tree.NewResident()
	for _, path := range paths {
		values := thought.ParseContext(path)
		for i, value := range values {
			parent := values[:i]
			if tr.HasChild(parent, value) {
				continue
			}
			if _, err := tr.Apply(tree.Insert{Context: parent, Value: value, Rank: math.NaN()}); err != nil {
				t.Fatalf("seeding %s: %v", path, err)
			}
		}
	}
	ctx := context.Background()
	for _, c := range tr.Contexts() {
		if err := adapter.SetContext(ctx, c, tr.Entry(c)); err != nil {
			t.Fatalf("seeding %s: %v", c, err)
		}
	}
}

// Walk returns every path reachable in adapter from the root, in
// depth-first rank order, as slash-separated strings.
func Walk(t T, adapter store.Adapter) []string {
	t.Helper()
	var paths []string
	var walk func(c thought.Context)
	walk = func(c thought.Context) {
		entry, err := adapter.GetContext(context.Background(), c)
		if err != nil {
			t.Fatalf("reading %s: %v", c, err)
		}
		if entry == nil {
			return
		}
		for _, child := range entry.Children {
			childContext := c.Child(child.Value)
			paths = append(paths, strings.Join(childContext, "/"))
			walk(childContext)
		}
	}
	walk(thought.Root())
	return paths
}

// Values returns the child values stored for c, or nil when c has no
// record.
func Values(t T, adapter store.Adapter, c thought.Context) []string {
	t.Helper()
	entry, err := adapter.GetContext(context.Background(), c)
	if err != nil {
		t.Fatalf("reading %s: %v", c, err)
	}
	return entry.Values()
}
