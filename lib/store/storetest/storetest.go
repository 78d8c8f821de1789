// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package storetest wraps store adapters for tests: Gated holds reads
// of chosen contexts, Faulty injects failures and Recorder logs every
// call.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
)

// ErrInjected is the cause of every failure produced by Faulty.
var ErrInjected = errors.New("storetest: injected failure")

// NewMemoryStore returns a Store on a fresh in-memory backend together
// with the backend, for record counting.
func NewMemoryStore() (*store.Store, *store.Memory) {
	backend := store.NewMemory()
	return store.New(backend, nil), backend
}

// Gated blocks GetContext for held contexts until they are released.
type Gated struct {
	store.Adapter

	mu      sync.Mutex
	gates   map[string]chan struct{}
	blocked chan thought.Context
}

// NewGated wraps inner with no contexts held.
func NewGated(inner store.Adapter) *Gated {
	return &Gated{
		Adapter: inner,
		gates:   make(map[string]chan struct{}),
		blocked: make(chan thought.Context, 64),
	}
}

// Hold makes reads of c block until Release(c).
func (g *Gated) Hold(c thought.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.gates[c.ID()]; !ok {
		g.gates[c.ID()] = make(chan struct{})
	}
}

// Release unblocks reads of c, current and future.
func (g *Gated) Release(c thought.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gate, ok := g.gates[c.ID()]; ok {
		close(gate)
		delete(g.gates, c.ID())
	}
}

// Blocked receives each context whose read started waiting on a gate.
func (g *Gated) Blocked() <-chan thought.Context { return g.blocked }

func (g *Gated) GetContext(ctx context.Context, c thought.Context) (*thought.ParentEntry, error) {
	g.mu.Lock()
	gate := g.gates[c.ID()]
	g.mu.Unlock()
	if gate != nil {
		select {
		case g.blocked <- c.Normalize():
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.Adapter.GetContext(ctx, c)
}

// Faulty fails a configurable number of upcoming calls.
type Faulty struct {
	store.Adapter

	mu         sync.Mutex
	readFails  int
	writeFails int
}

// NewFaulty wraps inner with no failures armed.
func NewFaulty(inner store.Adapter) *Faulty {
	return &Faulty{Adapter: inner}
}

// FailReads makes the next n GetContext calls fail.
func (f *Faulty) FailReads(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readFails = n
}

// FailWrites makes the next n SetContext or DeleteContext calls fail.
func (f *Faulty) FailWrites(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeFails = n
}

func (f *Faulty) take(counter *int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *counter <= 0 {
		return false
	}
	*counter--
	return true
}

func (f *Faulty) GetContext(ctx context.Context, c thought.Context) (*thought.ParentEntry, error) {
	if f.take(&f.readFails) {
		return nil, fmt.Errorf("reading %s: %w: %w", c, store.ErrStorageUnavailable, ErrInjected)
	}
	return f.Adapter.GetContext(ctx, c)
}

func (f *Faulty) SetContext(ctx context.Context, c thought.Context, entry *thought.ParentEntry) error {
	if f.take(&f.writeFails) {
		return fmt.Errorf("writing %s: %w: %w", c, store.ErrStorageUnavailable, ErrInjected)
	}
	return f.Adapter.SetContext(ctx, c, entry)
}

func (f *Faulty) DeleteContext(ctx context.Context, c thought.Context) error {
	if f.take(&f.writeFails) {
		return fmt.Errorf("deleting %s: %w: %w", c, store.ErrStorageUnavailable, ErrInjected)
	}
	return f.Adapter.DeleteContext(ctx, c)
}

// Op is one recorded adapter call.
type Op struct {
	// Kind is "get", "set", "delete" or "clear".
	Kind    string
	Context thought.Context
}

// Recorder logs every call before passing it on.
type Recorder struct {
	store.Adapter

	mu  sync.Mutex
	ops []Op
}

// NewRecorder wraps inner with an empty log.
func NewRecorder(inner store.Adapter) *Recorder {
	return &Recorder{Adapter: inner}
}

func (r *Recorder) record(kind string, c thought.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: kind, Context: c.Normalize()})
}

// Ops returns a copy of the log.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			count++
		}
	}
	return count
}

// Reset empties the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

func (r *Recorder) GetContext(ctx context.Context, c thought.Context) (*thought.ParentEntry, error) {
	r.record("get", c)
	return r.Adapter.GetContext(ctx, c)
}

func (r *Recorder) SetContext(ctx context.Context, c thought.Context, entry *thought.ParentEntry) error {
	r.record("set", c)
	return r.Adapter.SetContext(ctx, c, entry)
}

func (r *Recorder) DeleteContext(ctx context.Context, c thought.Context) error {
	r.record("delete", c)
	return r.Adapter.DeleteContext(ctx, c)
}

func (r *Recorder) ClearAll(ctx context.Context) error {
	r.record("clear", thought.Root())
	return r.Adapter.ClearAll(ctx)
}
