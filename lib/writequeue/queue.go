// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package writequeue

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/thoughtcache/lib/clock"
	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
)

const (
	DefaultDebounce = 100 * time.Millisecond
	DefaultMaxWait  = time.Second
	DefaultThrottle = 250 * time.Millisecond
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("writequeue: closed")

// Config configures a Queue. Adapter is required.
type Config struct {
	Adapter store.Adapter

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Debounce is the quiet period after the last Enqueue before a
	// flush. Zero means DefaultDebounce.
	Debounce time.Duration

	// MaxWait bounds how long a write waits while enqueues keep
	// extending the debounce. Zero means DefaultMaxWait.
	MaxWait time.Duration

	// Throttle is the minimum spacing of scheduled flushes. Zero means
	// DefaultThrottle; negative disables throttling.
	Throttle time.Duration

	Logger *slog.Logger
}

// Stats counts queue activity since New.
type Stats struct {
	// Flushes counts flushes that had at least one write.
	Flushes int
	// Written counts successful SetContext calls.
	Written int
	// Deleted counts successful tombstone writes.
	Deleted int
	// Failed counts writes the adapter rejected.
	Failed int
	// Coalesced counts enqueues that replaced a queued write.
	Coalesced int
}

type write struct {
	context thought.Context
	entry   *thought.ParentEntry
	seq     uint64
}

// Queue is safe for concurrent use.
type Queue struct {
	adapter  store.Adapter
	clock    clock.Clock
	debounce time.Duration
	maxWait  time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger

	// flushMu is held for the duration of a flush so no key is
	// written by two flushes at once.
	flushMu sync.Mutex

	mu           sync.Mutex
	pending      map[thought.Key]*write
	inflight     map[thought.Key]*write
	seq          uint64
	firstPending time.Time
	timer        *clock.Timer
	// generation identifies the armed timer. A callback that fired
	// before a re-arm or stop carries an older value and does nothing.
	generation uint64
	closed     bool
	stats      Stats
}

// New returns an empty queue.
func New(cfg Config) *Queue {
	q := &Queue{
		adapter:  cfg.Adapter,
		clock:    cfg.Clock,
		debounce: cmp.Or(cfg.Debounce, DefaultDebounce),
		maxWait:  cmp.Or(cfg.MaxWait, DefaultMaxWait),
		logger:   cfg.Logger,
		pending:  make(map[thought.Key]*write),
	}
	if q.clock == nil {
		q.clock = clock.Real()
	}
	if q.logger == nil {
		q.logger = slog.New(slog.DiscardHandler)
	}
	throttle := cmp.Or(cfg.Throttle, DefaultThrottle)
	if throttle < 0 {
		q.limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		q.limiter = rate.NewLimiter(rate.Every(throttle), 1)
	}
	return q
}

// Enqueue queues entry as the new record for c, replacing any queued
// write for the same key. A nil entry queues a tombstone.
func (q *Queue) Enqueue(c thought.Context, entry *thought.ParentEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Error("write dropped: queue closed", "context", c.String())
		return
	}
	key := c.Key()
	if _, ok := q.pending[key]; ok {
		q.stats.Coalesced++
	} else if len(q.pending) == 0 {
		q.firstPending = q.clock.Now()
	}
	q.seq++
	q.pending[key] = &write{context: c.Normalize(), entry: entry.Clone(), seq: q.seq}
	q.scheduleLocked(q.debounce)
}

// Pending returns the queued or in-flight write for c. ok is false
// when nothing is queued; a queued tombstone returns (nil, true).
func (q *Queue) Pending(c thought.Context) (entry *thought.ParentEntry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := c.Key()
	w, ok := q.pending[key]
	if !ok {
		w, ok = q.inflight[key]
	}
	if !ok {
		return nil, false
	}
	return w.entry.Clone(), true
}

// Len returns the number of queued writes, excluding any in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stats returns a snapshot of the counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Discard drops every queued write without flushing it.
func (q *Queue) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.pending)
	q.stopTimerLocked()
}

// Flush writes every queued entry now and returns once the adapter has
// acknowledged or rejected each one. Rejected writes stay queued.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if len(q.pending) > 0 {
		// Counts against the throttle so the next scheduled flush keeps
		// its spacing.
		q.limiter.ReserveN(q.clock.Now(), 1)
	}
	q.mu.Unlock()
	return q.flush(ctx)
}

// Close stops the schedule, flushes what is queued and rejects later
// writes.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.stopTimerLocked()
	q.mu.Unlock()
	return q.flush(ctx)
}

// scheduleLocked arms the flush timer delay from now, capped by
// MaxWait since the oldest queued write.
func (q *Queue) scheduleLocked(delay time.Duration) {
	if q.closed {
		return
	}
	now := q.clock.Now()
	if deadline := q.firstPending.Add(q.maxWait); now.Add(delay).After(deadline) {
		delay = deadline.Sub(now)
	}
	// A non-positive delay would run the callback synchronously while
	// q.mu is held.
	delay = max(delay, time.Nanosecond)
	q.armLocked(delay)
}

func (q *Queue) armLocked(delay time.Duration) {
	q.stopTimerLocked()
	generation := q.generation
	q.timer = q.clock.AfterFunc(delay, func() { q.onTimer(generation) })
}

func (q *Queue) stopTimerLocked() {
	q.generation++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue) onTimer(generation uint64) {
	q.mu.Lock()
	if generation != q.generation || q.closed || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	now := q.clock.Now()
	reservation := q.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		q.armLocked(delay)
		q.mu.Unlock()
		q.logger.Debug("flush throttled", "delay", delay)
		return
	}
	q.timer = nil
	q.generation++
	q.mu.Unlock()

	if err := q.flush(context.Background()); err != nil {
		q.logger.Warn("scheduled flush failed, will retry", "error", err)
	}
}

func (q *Queue) flush(ctx context.Context) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	batch := q.pending
	q.pending = make(map[thought.Key]*write)
	q.inflight = batch
	q.stopTimerLocked()
	q.mu.Unlock()

	writes := slices.SortedFunc(maps.Values(batch), func(a, b *write) int {
		return cmp.Compare(a.seq, b.seq)
	})

	var errs []error
	var failed []*write
	written, deleted := 0, 0
	for _, w := range writes {
		var err error
		if w.entry == nil {
			err = q.adapter.DeleteContext(ctx, w.context)
		} else {
			err = q.adapter.SetContext(ctx, w.context, w.entry)
		}
		switch {
		case err != nil:
			errs = append(errs, err)
			failed = append(failed, w)
		case w.entry == nil:
			deleted++
		default:
			written++
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight = nil
	q.stats.Flushes++
	q.stats.Written += written
	q.stats.Deleted += deleted
	q.stats.Failed += len(failed)
	for _, w := range failed {
		key := w.context.Key()
		if _, superseded := q.pending[key]; superseded {
			continue
		}
		if len(q.pending) == 0 {
			q.firstPending = q.clock.Now()
		}
		q.pending[key] = w
	}
	if len(failed) > 0 {
		q.scheduleLocked(q.debounce)
	}
	q.logger.Debug("flushed",
		"written", written,
		"deleted", deleted,
		"failed", len(failed),
	)
	return errors.Join(errs...)
}
