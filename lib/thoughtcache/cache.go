// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package thoughtcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/thoughtcache/lib/clock"
	"github.com/bureau-foundation/thoughtcache/lib/deferred"
	"github.com/bureau-foundation/thoughtcache/lib/outline"
	"github.com/bureau-foundation/thoughtcache/lib/pullqueue"
	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
	"github.com/bureau-foundation/thoughtcache/lib/writequeue"
)

// ErrClosed is returned by operations on a closed Cache.
var ErrClosed = errors.New("thoughtcache: closed")

// Config configures a Cache. Adapter is required; zero values of the
// scheduling and loading fields select the queue defaults.
type Config struct {
	Adapter store.Adapter

	// Clock drives the write schedule. Defaults to clock.Real().
	Clock clock.Clock

	Logger *slog.Logger

	// Write queue schedule. See writequeue.Config.
	Debounce time.Duration
	MaxWait  time.Duration
	Throttle time.Duration

	// Loading. See pullqueue.Config.
	BufferDepth   int
	PrefetchDepth int
	Concurrency   int
}

// Result reports what happened to one dispatched action.
type Result struct {
	// Changes lists the contexts rewritten in the live tree. Empty for
	// a deferred action.
	Changes tree.Changes

	// Deferred is set when the action was queued behind a load.
	Deferred *deferred.Operation
}

// Handler processes one action. Handlers run with the cache lock held.
type Handler func(ctx context.Context, action tree.Action) (Result, error)

// Middleware wraps the handler chain.
type Middleware func(next Handler) Handler

type replayKey struct{}

// IsReplay reports whether ctx belongs to the replay of a deferred
// action rather than a fresh dispatch.
func IsReplay(ctx context.Context) bool {
	replay, _ := ctx.Value(replayKey{}).(bool)
	return replay
}

// Cache is safe for concurrent use.
type Cache struct {
	adapter store.Adapter
	logger  *slog.Logger
	writes  *writequeue.Queue
	pulls   *pullqueue.Queue

	// mu guards everything below and the live tree. It is taken
	// before the queues' own locks.
	mu         sync.Mutex
	tree       *tree.Tree
	tracker    *deferred.Tracker
	middleware []Middleware
	handler    Handler
	closed     bool
}

// New returns a cache with an unloaded tree. Call Initialize before
// reading it; actions dispatched earlier are deferred until the root
// is loaded.
func New(cfg Config) (*Cache, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("thoughtcache: adapter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Cache{
		adapter: cfg.Adapter,
		logger:  logger,
		tree:    tree.New(),
		tracker: deferred.New(logger.With("component", "deferred")),
	}
	c.writes = writequeue.New(writequeue.Config{
		Adapter:  cfg.Adapter,
		Clock:    cfg.Clock,
		Debounce: cfg.Debounce,
		MaxWait:  cfg.MaxWait,
		Throttle: cfg.Throttle,
		Logger:   logger.With("component", "writequeue"),
	})
	c.pulls = pullqueue.New(pullqueue.Config{
		Adapter:       cfg.Adapter,
		Overlay:       c.writes,
		Tree:          c.tree,
		Lock:          &c.mu,
		OnMerged:      c.onMergedLocked,
		BufferDepth:   cfg.BufferDepth,
		PrefetchDepth: cfg.PrefetchDepth,
		Concurrency:   cfg.Concurrency,
		Logger:        logger.With("component", "pullqueue"),
	})
	c.handler = c.intercept
	return c, nil
}

// Use appends middlewares to the dispatch chain. The first middleware
// registered sees each action first; the cache's interceptor always
// runs last.
func (c *Cache) Use(middleware ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware...)
	handler := Handler(c.intercept)
	for _, mw := range slices.Backward(c.middleware) {
		handler = mw(handler)
	}
	c.handler = handler
}

// Initialize drops the live tree and any deferred actions, then loads
// the root from storage. It returns once the root level is merged;
// deeper levels keep loading in the background. Writes that are still
// queued are visible to the reload.
func (c *Cache) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.tracker.Clear()
	c.pulls.Reset()
	c.tree.Clear()
	done := c.pulls.EnsureLoadedLocked(thought.Root())
	c.mu.Unlock()

	return c.await(ctx, thought.Root(), done)
}

// Dispatch runs each action through the middleware chain. Actions that
// cannot apply yet are deferred and do not produce an error. The
// returned error joins the failures of the individual actions.
func (c *Cache) Dispatch(ctx context.Context, actions ...tree.Action) error {
	var errs []error
	for _, action := range actions {
		if _, err := c.Apply(ctx, action); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply dispatches one action and reports its outcome.
func (c *Cache) Apply(ctx context.Context, action tree.Action) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Result{}, ErrClosed
	}
	return c.handler(ctx, action)
}

// intercept decides whether action applies now or waits for a load.
func (c *Cache) intercept(ctx context.Context, action tree.Action) (Result, error) {
	if _, ok := action.(tree.Clear); ok {
		c.tracker.Clear()
		c.pulls.Reset()
		return c.reduce(action)
	}
	if IsReplay(ctx) {
		return c.reduce(action)
	}

	target := action.Target()
	missing := c.tree.Missing(action)
	if len(missing) == 0 && !c.tracker.Conflicts(action) {
		return c.reduce(action)
	}

	// Behind an earlier deferral touching the same subtree the action
	// waits its turn even when it could apply now.
	op := c.tracker.Defer(target, action)
	c.logger.Debug("action deferred",
		"op_id", op.ID,
		"action", action.Kind(),
		"context", target.String(),
		"missing", len(missing),
	)
	for _, mc := range missing {
		c.pulls.EnsureLoadedLocked(mc)
	}
	return Result{Deferred: op}, nil
}

// reduce applies action to the tree and queues the dirtied records.
func (c *Cache) reduce(action tree.Action) (Result, error) {
	changes, err := c.tree.Apply(action)
	if err != nil {
		return Result{}, fmt.Errorf("applying %s to %s: %w", action.Kind(), action.Target(), err)
	}
	for _, dc := range changes.Dirty {
		c.writes.Enqueue(dc, c.tree.Entry(dc))
	}
	return Result{Changes: changes}, nil
}

// onMergedLocked is the pull queue's merge hook.
func (c *Cache) onMergedLocked(thought.Context) {
	c.resolveLocked()
}

// resolveLocked replays every deferred action that is ready, oldest
// queue first, until a pass makes no progress, then requests the
// contexts the remaining queue heads still wait for.
func (c *Cache) resolveLocked() {
	replay := context.WithValue(context.Background(), replayKey{}, true)
	ready := func(action tree.Action) bool {
		return len(c.tree.Missing(action)) == 0
	}
	apply := func(action tree.Action) (*tree.Relocation, error) {
		result, err := c.handler(replay, action)
		return result.Changes.Relocation, err
	}

	for {
		progress := false
		for _, qc := range c.tracker.Contexts() {
			if len(c.tracker.Resolve(qc, ready, apply)) > 0 {
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	for _, qc := range c.tracker.Contexts() {
		head := c.tracker.Head(qc)
		if head == nil {
			continue
		}
		for _, mc := range c.tree.Missing(head.Action) {
			c.pulls.EnsureLoadedLocked(mc)
		}
	}
}

// EnsureLoaded fetches the children of target if they are pending and waits
// for the merge. Deeper levels may remain pending.
func (c *Cache) EnsureLoaded(ctx context.Context, target thought.Context) error {
	return c.await(ctx, target, c.pulls.EnsureLoaded(target))
}

func (c *Cache) await(ctx context.Context, target thought.Context, done <-chan struct{}) error {
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.mu.Lock()
	pending := c.tree.IsPending(target)
	c.mu.Unlock()
	if pending {
		return fmt.Errorf("loading %s: %w", target, store.ErrStorageUnavailable)
	}
	return nil
}

// LoadSubtree loads every pending context below target and waits until the
// whole subtree is resident.
func (c *Cache) LoadSubtree(ctx context.Context, target thought.Context) error {
	for {
		c.mu.Lock()
		if c.tree.Residency(target) == tree.Unknown {
			c.mu.Unlock()
			return fmt.Errorf("loading %s: %w", target, tree.ErrNotFound)
		}
		pending := c.tree.PendingWithin(target)
		dones := make([]<-chan struct{}, len(pending))
		for i, pc := range pending {
			dones[i] = c.pulls.EnsureLoadedLocked(pc)
		}
		c.mu.Unlock()

		if len(pending) == 0 {
			return nil
		}
		for _, done := range dones {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		c.mu.Lock()
		stuck := true
		for _, pc := range pending {
			if !c.tree.IsPending(pc) {
				stuck = false
				break
			}
		}
		c.mu.Unlock()
		if stuck {
			return fmt.Errorf("loading subtree of %s: %w", target, store.ErrStorageUnavailable)
		}
	}
}

// Wait blocks until no load is in flight. Deferred actions whose loads
// succeeded have been replayed when it returns.
func (c *Cache) Wait(ctx context.Context) error {
	return c.pulls.Wait(ctx)
}

// Flush writes every queued record now.
func (c *Cache) Flush(ctx context.Context) error {
	if err := c.writes.Flush(ctx); err != nil {
		if errors.Is(err, writequeue.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close stops loading, flushes queued writes and rejects further
// dispatches. Deferred actions that never became ready are dropped.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if n := c.tracker.Len(); n > 0 {
		c.logger.Warn("closing with deferred actions", "count", n)
	}
	c.mu.Unlock()

	c.pulls.Close()
	waitErr := c.pulls.Wait(ctx)
	return errors.Join(waitErr, c.writes.Close(ctx))
}

// Reset empties storage and the live tree, then initializes again.
// Queued writes are discarded.
func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.tracker.Clear()
	c.pulls.Reset()
	c.tree.Clear()
	c.mu.Unlock()

	c.writes.Discard()
	// Waits out a flush that is already writing.
	if err := c.Flush(ctx); err != nil {
		return err
	}
	if err := c.adapter.ClearAll(ctx); err != nil {
		return fmt.Errorf("clearing storage: %w", err)
	}
	c.logger.Info("cache reset")
	return c.Initialize(ctx)
}

// Children returns the resident children of target in rank order.
func (c *Cache) Children(target thought.Context) []thought.Child {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Children(target)
}

// HasChild reports whether target has a resident child named value.
func (c *Cache) HasChild(target thought.Context, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.HasChild(target, value)
}

// PathExists reports whether path is resident in the live tree.
func (c *Cache) PathExists(path thought.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.PathExists(path)
}

func (c *Cache) IsPending(target thought.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.IsPending(target)
}

func (c *Cache) Residency(target thought.Context) tree.Residency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Residency(target)
}

// Deferred returns copies of the queued deferred operations in the
// order they were dispatched.
func (c *Cache) Deferred() []deferred.Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := c.tracker.Operations()
	out := make([]deferred.Operation, len(ops))
	for i, op := range ops {
		out[i] = *op
	}
	return out
}

// Stats is a snapshot of cache activity.
type Stats struct {
	// Thoughts and Contexts count what is resident.
	Thoughts int
	Contexts int

	// Deferred counts actions waiting for a load.
	Deferred int

	// Queued counts records waiting to be written.
	Queued int

	Writes writequeue.Stats
	Loads  pullqueue.Stats
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	stats := Stats{
		Thoughts: c.tree.Len(),
		Contexts: len(c.tree.Contexts()),
		Deferred: c.tracker.Len(),
	}
	c.mu.Unlock()
	stats.Queued = c.writes.Len()
	stats.Writes = c.writes.Stats()
	stats.Loads = c.pulls.Stats()
	return stats
}

// ImportText adds the thoughts of an indented outline under parent and
// returns how many the outline held. Thoughts that already exist are
// kept and their imported children are added to them.
func (c *Cache) ImportText(ctx context.Context, parent thought.Context, text string) (int, error) {
	nodes := outline.Parse(text)
	var errs []error
	for _, action := range outline.Actions(parent, nodes) {
		if _, err := c.Apply(ctx, action); err != nil && !errors.Is(err, tree.ErrDuplicateValue) {
			errs = append(errs, err)
		}
	}
	count := outline.Count(nodes)
	c.logger.Debug("outline imported", "context", parent.String(), "thoughts", count)
	return count, errors.Join(errs...)
}

// ExportText loads the subtree below target and renders it as an
// indented outline.
func (c *Cache) ExportText(ctx context.Context, target thought.Context) (string, error) {
	if err := c.LoadSubtree(ctx, target); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return outline.Export(c.tree.Children, target), nil
}
