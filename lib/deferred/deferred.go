// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package deferred tracks structural actions that could not apply yet
// because part of the tree they touch is still buffered in storage.
//
// Actions are queued per target context and replayed strictly in the
// order they were deferred. A later action never replaces an earlier
// one: if the first moves or renames its thought, the actions behind
// it are rebased onto the new location before they run, so "rename a
// to c, then delete a" deletes c. Across queues, an operation never
// replays before an older one whose subtree overlaps its own.
//
// A Tracker is not safe for concurrent use; the cache calls it with
// its own lock held.
package deferred

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

// State is the lifecycle state of an Operation.
type State int

const (
	// Pending operations are waiting for their context to load.
	Pending State = iota
	// Applied operations were replayed successfully.
	Applied
	// Failed operations were replayed and rejected by the tree.
	Failed
)

func (s State) String() string {
	switch s {
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Operation is one deferred action.
type Operation struct {
	// ID identifies the operation in logs.
	ID string

	// Context is the context the operation is queued under. It
	// follows the target when an earlier operation relocates it.
	Context thought.Context

	Action tree.Action
	State  State

	// Err is set when State is Failed.
	Err error

	seq uint64
}

type queue struct {
	context thought.Context
	ops     []*Operation
}

// Tracker holds the deferred operations of one cache.
type Tracker struct {
	logger *slog.Logger
	queues map[string]*queue
	seq    uint64
}

// New returns an empty tracker. A nil logger discards.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{logger: logger, queues: make(map[string]*queue)}
}

// Defer appends action to the queue for c.
func (t *Tracker) Defer(c thought.Context, action tree.Action) *Operation {
	c = c.Normalize()
	t.seq++
	op := &Operation{
		ID:      uuid.NewString(),
		Context: c,
		Action:  action,
		seq:     t.seq,
	}
	q := t.queues[c.ID()]
	if q == nil {
		q = &queue{context: c}
		t.queues[c.ID()] = q
	}
	q.ops = append(q.ops, op)
	t.logger.Debug("operation deferred",
		"op_id", op.ID,
		"action", action.Kind(),
		"context", c.String(),
		"queued", len(q.ops),
	)
	return op
}

// Has reports whether operations are queued for c.
func (t *Tracker) Has(c thought.Context) bool {
	_, ok := t.queues[c.ID()]
	return ok
}

// Head returns the next operation queued for c, or nil.
func (t *Tracker) Head(c thought.Context) *Operation {
	q := t.queues[c.ID()]
	if q == nil {
		return nil
	}
	return q.ops[0]
}

// Contexts lists the contexts with queued operations, oldest queue
// head first.
func (t *Tracker) Contexts() []thought.Context {
	queues := t.sortedQueues()
	contexts := make([]thought.Context, len(queues))
	for i, q := range queues {
		contexts[i] = slices.Clone(q.context)
	}
	return contexts
}

// Operations returns every queued operation in deferral order.
func (t *Tracker) Operations() []*Operation {
	var ops []*Operation
	for _, q := range t.queues {
		ops = append(ops, q.ops...)
	}
	slices.SortFunc(ops, func(a, b *Operation) int { return cmp.Compare(a.seq, b.seq) })
	return ops
}

// Len returns the number of queued operations.
func (t *Tracker) Len() int {
	n := 0
	for _, q := range t.queues {
		n += len(q.ops)
	}
	return n
}

// Clear drops every queued operation.
func (t *Tracker) Clear() {
	if n := t.Len(); n > 0 {
		t.logger.Info("deferred operations dropped", "count", n)
	}
	clear(t.queues)
}

// Conflicts reports whether action overlaps a queued operation and
// must therefore wait behind it.
func (t *Tracker) Conflicts(action tree.Action) bool {
	for _, q := range t.queues {
		for _, op := range q.ops {
			if tree.Overlaps(op.Action, action) {
				return true
			}
		}
	}
	return false
}

// blocked reports whether an operation deferred before op, in any
// queue, overlaps it.
func (t *Tracker) blocked(op *Operation) bool {
	for _, q := range t.queues {
		for _, other := range q.ops {
			if other.seq < op.seq && tree.Overlaps(other.Action, op.Action) {
				return true
			}
		}
	}
	return false
}

// Resolve replays the operations queued for c in order. ready reports
// whether an action can apply now; replay stops at the first action
// that cannot, or that an older overlapping operation in another
// queue still waits ahead of, leaving it and everything behind it
// queued. apply performs an action and reports where it moved the
// thought, if it did. A rejected action is marked Failed and replay
// continues with the next one.
//
// Resolve returns the operations it replayed.
func (t *Tracker) Resolve(c thought.Context, ready func(tree.Action) bool, apply func(tree.Action) (*tree.Relocation, error)) []*Operation {
	q := t.queues[c.ID()]
	if q == nil {
		return nil
	}

	var replayed []*Operation
	for len(q.ops) > 0 {
		op := q.ops[0]
		if t.blocked(op) || !ready(op.Action) {
			break
		}
		q.ops = q.ops[1:]
		replayed = append(replayed, op)

		relocation, err := apply(op.Action)
		if err != nil {
			op.State, op.Err = Failed, err
			t.logger.Warn("deferred operation failed",
				"op_id", op.ID,
				"action", op.Action.Kind(),
				"context", op.Context.String(),
				"error", err,
			)
			continue
		}
		op.State = Applied
		t.logger.Debug("deferred operation applied", "op_id", op.ID, "action", op.Action.Kind())
		if relocation != nil {
			t.rebase(relocation.From, relocation.To)
		}
	}

	if len(q.ops) == 0 && t.queues[q.context.ID()] == q {
		delete(t.queues, q.context.ID())
	}
	return replayed
}

// rebase points every queued operation touching from at to instead,
// re-filing queues whose context moved.
func (t *Tracker) rebase(from, to thought.Context) {
	var moved []*queue
	for id, q := range t.queues {
		for _, op := range q.ops {
			op.Action = op.Action.Rebase(from, to)
		}
		if rebased, ok := q.context.Rebase(from, to); ok {
			delete(t.queues, id)
			q.context = rebased
			for _, op := range q.ops {
				op.Context = rebased
			}
			moved = append(moved, q)
		}
	}
	for _, q := range moved {
		existing := t.queues[q.context.ID()]
		if existing == nil {
			t.queues[q.context.ID()] = q
			continue
		}
		existing.ops = append(existing.ops, q.ops...)
		slices.SortStableFunc(existing.ops, func(a, b *Operation) int { return cmp.Compare(a.seq, b.seq) })
		// existing owns these operations now.
		q.ops = nil
	}
}

func (t *Tracker) sortedQueues() []*queue {
	queues := make([]*queue, 0, len(t.queues))
	for _, q := range t.queues {
		if len(q.ops) > 0 {
			queues = append(queues, q)
		}
	}
	slices.SortFunc(queues, func(a, b *queue) int { return cmp.Compare(a.ops[0].seq, b.ops[0].seq) })
	return queues
}
