// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pullqueue

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/store/storetest"
	"github.com/bureau-foundation/thoughtcache/lib/testutil"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

const timeout = 5 * time.Second

type fixture struct {
	mu     sync.Mutex
	tree   *tree.Tree
	queue  *Queue
	merged []thought.Context
}

func newFixture(adapter store.Adapter, cfg Config) *fixture {
	f := &fixture{tree: tree.New()}
	cfg.Adapter = adapter
	cfg.Tree = f.tree
	cfg.Lock = &f.mu
	cfg.OnMerged = func(c thought.Context) { f.merged = append(f.merged, c) }
	f.queue = New(cfg)
	return f
}

func (f *fixture) residency(c thought.Context) tree.Residency {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tree.Residency(c)
}

func (f *fixture) children(c thought.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var values []string
	for _, child := range f.tree.Children(c) {
		values = append(values, child.Value)
	}
	return values
}

func (f *fixture) load(t *testing.T, c thought.Context) {
	t.Helper()
	testutil.RequireClosed(t, f.queue.EnsureLoaded(c), timeout, "loading %s", c)
}

func TestFetchReadsBufferDepth(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	testutil.Seed(t, s, "a/b/c/d/e")
	recorder := storetest.NewRecorder(s)
	f := newFixture(recorder, Config{PrefetchDepth: -1})

	f.load(t, thought.Root())
	testutil.Within(t, timeout, f.queue.Wait)

	for c, want := range map[string]tree.Residency{
		"":      tree.Resident,
		"a":     tree.Resident,
		"a/b":   tree.Resident,
		"a/b/c": tree.Pending,
	} {
		if got := f.residency(thought.ParseContext(c)); got != want {
			t.Errorf("%q: %s, want %s", c, got, want)
		}
	}
	if reads := recorder.Count("get"); reads != 3 {
		t.Errorf("reads = %d, want 3", reads)
	}
	if len(f.merged) != 3 || !f.merged[0].IsRoot() || !f.merged[2].Equal(thought.Context{"a", "b"}) {
		t.Errorf("OnMerged order = %v", f.merged)
	}
}

func TestPrefetchLoadsDeepChain(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	testutil.Seed(t, s, "a/b/c/d/e")
	f := newFixture(s, Config{})

	f.load(t, thought.Root())
	testutil.Within(t, timeout, f.queue.Wait)

	path := thought.Root()
	for _, value := range []string{"a", "b", "c", "d", "e"} {
		if got := f.children(path); !slices.Equal(got, []string{value}) {
			t.Fatalf("children of %s = %v, want [%s]", path, got, value)
		}
		path = path.Child(value)
	}
	if got := f.children(path); got != nil {
		t.Errorf("children of e = %v", got)
	}
	if f.residency(path) != tree.Resident {
		t.Error("leaf is not resident")
	}
}

func TestPrefetchStopsAtDepth(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	testutil.Seed(t, s, "a/b/c/d/e/f")
	f := newFixture(s, Config{BufferDepth: -1, PrefetchDepth: 3})

	f.load(t, thought.Root())
	testutil.Within(t, timeout, f.queue.Wait)

	if f.residency(thought.ParseContext("a/b/c")) != tree.Resident {
		t.Error("a/b/c not prefetched")
	}
	if f.residency(thought.ParseContext("a/b/c/d")) != tree.Pending {
		t.Error("a/b/c/d prefetched beyond PrefetchDepth")
	}
}

func TestConcurrentRequestsShareFetch(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	testutil.Seed(t, s, "a")
	gated := storetest.NewGated(s)
	gated.Hold(thought.Root())
	f := newFixture(gated, Config{})

	first := f.queue.EnsureLoaded(thought.Root())
	second := f.queue.EnsureLoaded(thought.Context{thought.RootToken})
	if first != second {
		t.Fatal("second request started its own fetch")
	}
	testutil.RequireReceive(t, gated.Blocked(), timeout, "root read")
	if f.queue.InFlight() != 1 {
		t.Errorf("InFlight = %d, want 1", f.queue.InFlight())
	}

	gated.Release(thought.Root())
	testutil.RequireClosed(t, first, timeout, "root fetch")
	testutil.Within(t, timeout, f.queue.Wait)
	if stats := f.queue.Stats(); stats.Fetches != 1 {
		t.Errorf("Fetches = %d, want 1", stats.Fetches)
	}

	select {
	case <-f.queue.EnsureLoaded(thought.Root()):
	default:
		t.Error("EnsureLoaded of a resident context is not immediately done")
	}
}

type mapOverlay map[string]*thought.ParentEntry

func (o mapOverlay) Pending(c thought.Context) (*thought.ParentEntry, bool) {
	entry, ok := o[c.ID()]
	return entry, ok
}

func TestOverlayTakesPrecedence(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	testutil.Seed(t, s, "stale", "gone/child")
	overlay := mapOverlay{
		thought.Root().ID(): {Children: []thought.StoredChild{
			{Value: "fresh", Rank: 0},
			{Value: "gone", Rank: 1, HasPendingDescendants: true},
		}},
		thought.Context{"gone"}.ID(): nil,
	}
	f := newFixture(s, Config{Overlay: overlay})

	f.load(t, thought.Root())
	testutil.Within(t, timeout, f.queue.Wait)

	if got := f.children(thought.Root()); !slices.Equal(got, []string{"fresh", "gone"}) {
		t.Errorf("root children = %v", got)
	}
	if got := f.children(thought.Context{"gone"}); got != nil {
		t.Errorf("queued tombstone ignored: children of gone = %v", got)
	}
}

func TestReadFailureLeavesContextPending(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	testutil.Seed(t, s, "a")
	faulty := storetest.NewFaulty(s)
	faulty.FailReads(1)
	f := newFixture(faulty, Config{})

	f.load(t, thought.Root())
	if f.residency(thought.Root()) != tree.Pending {
		t.Fatal("root resident after failed read")
	}
	if stats := f.queue.Stats(); stats.Failed != 1 {
		t.Errorf("Failed = %d", stats.Failed)
	}

	f.load(t, thought.Root())
	if got := f.children(thought.Root()); !slices.Equal(got, []string{"a"}) {
		t.Errorf("retry loaded %v", got)
	}
}

func TestCorruptRecordLoadsAsEmpty(t *testing.T) {
	backend := store.NewMemory()
	key := thought.Root().Key()
	if err := backend.Put(context.Background(), key[:], []byte("not cbor")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	f := newFixture(store.New(backend, nil), Config{})

	f.load(t, thought.Root())
	if f.residency(thought.Root()) != tree.Resident || f.children(thought.Root()) != nil {
		t.Error("corrupt root did not load as empty")
	}
}

func TestResetDiscardsFetchInFlight(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	testutil.Seed(t, s, "a")
	gated := storetest.NewGated(s)
	gated.Hold(thought.Root())
	f := newFixture(gated, Config{})

	done := f.queue.EnsureLoaded(thought.Root())
	testutil.RequireReceive(t, gated.Blocked(), timeout, "root read")

	f.mu.Lock()
	f.tree.Clear()
	f.queue.Reset()
	f.mu.Unlock()

	gated.Release(thought.Root())
	testutil.RequireClosed(t, done, timeout, "stale fetch")
	testutil.Within(t, timeout, f.queue.Wait)

	if f.residency(thought.Root()) != tree.Pending {
		t.Error("stale fetch was merged after Reset")
	}
	if stats := f.queue.Stats(); stats.Stale != 1 {
		t.Errorf("Stale = %d, want 1", stats.Stale)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	gated := storetest.NewGated(s)
	gated.Hold(thought.Root())
	f := newFixture(gated, Config{})
	defer gated.Release(thought.Root())

	f.queue.EnsureLoaded(thought.Root())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.queue.Wait(ctx); err == nil {
		t.Fatal("Wait with cancelled context returned nil while a fetch is in flight")
	}
}

func TestMarkPending(t *testing.T) {
	s, _ := storetest.NewMemoryStore()
	testutil.Seed(t, s, "a/b")
	f := newFixture(s, Config{})
	f.load(t, thought.Root())
	testutil.Within(t, timeout, f.queue.Wait)

	if err := f.queue.MarkPending(thought.Context{"a"}); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if f.residency(thought.Context{"a"}) != tree.Pending {
		t.Fatal("a not pending")
	}
	f.load(t, thought.Context{"a"})
	if got := f.children(thought.Context{"a"}); !slices.Equal(got, []string{"b"}) {
		t.Errorf("children of a after reload = %v", got)
	}
}
