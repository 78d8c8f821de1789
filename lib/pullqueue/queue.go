// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pullqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

const (
	DefaultBufferDepth   = 2
	DefaultPrefetchDepth = 8
	DefaultConcurrency   = 4
)

// Overlay supplies entries that are newer than storage. ok with a nil
// entry means the context has no children.
type Overlay interface {
	Pending(c thought.Context) (entry *thought.ParentEntry, ok bool)
}

// Config configures a Queue. Adapter, Tree and Lock are required.
type Config struct {
	Adapter store.Adapter

	// Overlay, if set, is read before Adapter.
	Overlay Overlay

	// Tree is the live tree. It is only touched with Lock held.
	Tree *tree.Tree
	Lock sync.Locker

	// OnMerged runs with Lock held after a context's children were
	// merged.
	OnMerged func(c thought.Context)

	// BufferDepth is how many levels below the requested context one
	// fetch reads. Zero means DefaultBufferDepth; negative reads the
	// requested context only.
	BufferDepth int

	// PrefetchDepth is the deepest context fetched without being
	// asked for. Zero means DefaultPrefetchDepth; negative disables
	// prefetching.
	PrefetchDepth int

	// Concurrency bounds the reads in flight per fetch. Zero means
	// DefaultConcurrency.
	Concurrency int

	Logger *slog.Logger
}

// Stats counts queue activity since New.
type Stats struct {
	// Fetches counts started fetches.
	Fetches int
	// Reads counts contexts read from the overlay or storage.
	Reads int
	// Merged counts contexts merged into the live tree.
	Merged int
	// Failed counts fetches abandoned on a read error.
	Failed int
	// Stale counts fetches discarded because of Reset.
	Stale int
}

// Queue is safe for concurrent use.
type Queue struct {
	adapter       store.Adapter
	overlay       Overlay
	tree          *tree.Tree
	lock          sync.Locker
	onMerged      func(thought.Context)
	bufferDepth   int
	prefetchDepth int
	concurrency   int
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu is acquired after lock, never before.
	mu         sync.Mutex
	inflight   map[string]chan struct{}
	active     int
	idle       chan struct{}
	generation uint64
	stats      Stats
}

// New returns an idle queue.
func New(cfg Config) *Queue {
	q := &Queue{
		adapter:       cfg.Adapter,
		overlay:       cfg.Overlay,
		tree:          cfg.Tree,
		lock:          cfg.Lock,
		onMerged:      cfg.OnMerged,
		bufferDepth:   cfg.BufferDepth,
		prefetchDepth: cfg.PrefetchDepth,
		concurrency:   cfg.Concurrency,
		logger:        cfg.Logger,
		inflight:      make(map[string]chan struct{}),
	}
	switch {
	case q.bufferDepth == 0:
		q.bufferDepth = DefaultBufferDepth
	case q.bufferDepth < 0:
		q.bufferDepth = 0
	}
	if q.prefetchDepth == 0 {
		q.prefetchDepth = DefaultPrefetchDepth
	}
	if q.concurrency <= 0 {
		q.concurrency = DefaultConcurrency
	}
	if q.logger == nil {
		q.logger = slog.New(slog.DiscardHandler)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// EnsureLoaded starts a fetch for c if it is pending and not already
// being fetched. The returned channel is closed once that fetch has
// finished, successfully or not; it is already closed when c is not
// pending.
func (q *Queue) EnsureLoaded(c thought.Context) <-chan struct{} {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.EnsureLoadedLocked(c)
}

// EnsureLoadedLocked is EnsureLoaded for callers already holding the
// lock.
func (q *Queue) EnsureLoadedLocked(c thought.Context) <-chan struct{} {
	if q.tree.Residency(c) != tree.Pending {
		return closedChan
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	id := c.ID()
	if done, ok := q.inflight[id]; ok {
		return done
	}
	done := make(chan struct{})
	q.inflight[id] = done
	if q.active == 0 {
		q.idle = make(chan struct{})
	}
	q.active++
	q.stats.Fetches++
	go q.fetch(c.Normalize(), done, q.generation)
	return done
}

// MarkPending flags the resident context c as having children in
// storage that must be fetched before it is edited.
func (q *Queue) MarkPending(c thought.Context) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.tree.MarkPending(c)
}

// Reset abandons every fetch in flight: their results are discarded
// when they complete. Call with the lock held, right after the tree
// was cleared.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.generation++
	clear(q.inflight)
}

// Wait blocks until no fetch is in flight, including prefetches
// started by the fetches it waited for.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		active, idle := q.active, q.idle
		q.mu.Unlock()
		if active == 0 {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// InFlight returns the number of fetches in progress.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Stats returns a snapshot of the counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close cancels reads in progress. Their fetches fail and leave their
// contexts pending.
func (q *Queue) Close() {
	q.cancel()
}

// level is one breadth-first layer of a fetch.
type level struct {
	contexts []thought.Context
	entries  []*thought.ParentEntry
}

func (q *Queue) fetch(c thought.Context, done chan struct{}, generation uint64) {
	defer q.finish(c, done)

	levels, err := q.read(c)
	if err != nil {
		q.mu.Lock()
		q.stats.Failed++
		q.mu.Unlock()
		q.logger.Warn("fetch failed, context stays pending",
			"context", c.String(),
			"error", err,
		)
		return
	}

	q.lock.Lock()
	defer q.lock.Unlock()

	q.mu.Lock()
	stale := generation != q.generation
	if stale {
		q.stats.Stale++
	}
	q.mu.Unlock()
	if stale {
		q.logger.Debug("discarding stale fetch", "context", c.String())
		return
	}

	var merged, candidates []thought.Context
	for _, l := range levels {
		for i, lc := range l.contexts {
			result, err := q.tree.Merge(lc, l.entries[i])
			if errors.Is(err, tree.ErrStaleMerge) {
				q.logger.Debug("skipping merge of vanished context", "context", lc.String())
				continue
			}
			if err != nil {
				q.logger.Warn("merge failed", "context", lc.String(), "error", err)
				continue
			}
			if result.AlreadyResident {
				continue
			}
			if len(result.Conflicts) > 0 {
				q.logger.Warn("stored children skipped on rank conflict",
					"context", lc.String(),
					"values", result.Conflicts,
				)
			}
			merged = append(merged, lc)
			candidates = append(candidates, result.Pending...)
		}
	}

	q.mu.Lock()
	q.stats.Merged += len(merged)
	q.mu.Unlock()

	if q.onMerged != nil {
		for _, mc := range merged {
			q.onMerged(mc)
		}
	}
	if q.prefetchDepth > 0 {
		for _, pc := range candidates {
			if pc.Depth() <= q.prefetchDepth {
				q.EnsureLoadedLocked(pc)
			}
		}
	}
}

// read fetches c and the pending contexts below it without holding
// the lock. An error reading c itself aborts the fetch; an error
// deeper down only stops the descent.
func (q *Queue) read(c thought.Context) ([]level, error) {
	var levels []level
	frontier := []thought.Context{c}
	for depth := 0; depth <= q.bufferDepth && len(frontier) > 0; depth++ {
		entries := make([]*thought.ParentEntry, len(frontier))
		group, ctx := errgroup.WithContext(q.ctx)
		group.SetLimit(q.concurrency)
		for i, fc := range frontier {
			group.Go(func() error {
				entry, err := q.readOne(ctx, fc)
				entries[i] = entry
				return err
			})
		}
		if err := group.Wait(); err != nil {
			if depth == 0 {
				return nil, err
			}
			q.logger.Warn("buffered read failed, deeper levels stay pending",
				"context", c.String(),
				"depth", depth,
				"error", err,
			)
			break
		}
		levels = append(levels, level{contexts: frontier, entries: entries})

		var next []thought.Context
		for i, fc := range frontier {
			if entries[i] == nil {
				continue
			}
			for _, child := range entries[i].Children {
				if child.HasPendingDescendants {
					next = append(next, fc.Child(child.Value))
				}
			}
		}
		frontier = next
	}
	return levels, nil
}

func (q *Queue) readOne(ctx context.Context, c thought.Context) (*thought.ParentEntry, error) {
	q.mu.Lock()
	q.stats.Reads++
	q.mu.Unlock()

	if q.overlay != nil {
		if entry, ok := q.overlay.Pending(c); ok {
			return entry, nil
		}
	}
	entry, err := q.adapter.GetContext(ctx, c)
	if errors.Is(err, store.ErrCorruptRecord) {
		q.logger.Error("corrupt record treated as empty", "context", c.String(), "error", err)
		return nil, nil
	}
	return entry, err
}

func (q *Queue) finish(c thought.Context, done chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inflight[c.ID()] == done {
		delete(q.inflight, c.ID())
	}
	close(done)
	q.active--
	if q.active == 0 {
		close(q.idle)
	}
}
