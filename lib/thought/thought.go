// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package thought

import (
	"math"
	"slices"
)

// Child is one thought as held in the live tree.
type Child struct {
	Value string
	Rank  float64

	// Pending is set when the thought's descendants exist in storage
	// but have not been merged into the live tree yet.
	Pending bool
}

// Path is a ranked path from the root to a thought (root excluded).
type Path []Child

// Values returns the context of the thought's own children: every
// value along the path.
func (p Path) Values() Context {
	values := make(Context, len(p))
	for i, child := range p {
		values[i] = child.Value
	}
	return values
}

// Context returns the context holding the last thought of the path.
func (p Path) Context() Context {
	if len(p) == 0 {
		return Root()
	}
	return p[:len(p)-1].Values()
}

// Last returns the thought the path points at.
func (p Path) Last() Child {
	if len(p) == 0 {
		return Child{}
	}
	return p[len(p)-1]
}

// Rebase returns a copy of p whose values are rebased from one
// context prefix to another. Ranks are kept.
func (p Path) Rebase(from, to Context) Path {
	values, ok := p.Values().Rebase(from, to)
	if !ok {
		return p
	}
	// Ranks are only known for the part of the path below the rebased
	// prefix; the new ancestors get zero ranks.
	kept := len(p) - len(from.Normalize())
	rebased := make(Path, len(values))
	for i, value := range values {
		rebased[i].Value = value
		if j := i - (len(values) - kept); j >= 0 {
			rebased[i].Rank = p[len(p)-kept+j].Rank
		}
	}
	return rebased
}

// StoredChild is one child inside a persisted ParentEntry.
type StoredChild struct {
	Value string  `cbor:"value"`
	Rank  float64 `cbor:"rank"`

	// HasPendingDescendants marks a child that owns a ParentEntry of
	// its own. A loader that stops at this child must mark it pending
	// rather than treat it as a leaf.
	HasPendingDescendants bool `cbor:"hasPendingDescendants,omitempty"`
}

// ParentEntry is the persisted unit for one context: the list of its
// children in rank order. An entry exists in storage iff the context
// has at least one child.
type ParentEntry struct {
	Context  []string      `cbor:"context"`
	Children []StoredChild `cbor:"children"`
}

// Child returns the stored child named value.
func (e *ParentEntry) Child(value string) (StoredChild, bool) {
	if e == nil {
		return StoredChild{}, false
	}
	for _, child := range e.Children {
		if child.Value == value {
			return child, true
		}
	}
	return StoredChild{}, false
}

// Values lists the child values in stored order.
func (e *ParentEntry) Values() []string {
	if e == nil {
		return nil
	}
	values := make([]string, len(e.Children))
	for i, child := range e.Children {
		values[i] = child.Value
	}
	return values
}

// Clone returns a deep copy of e.
func (e *ParentEntry) Clone() *ParentEntry {
	if e == nil {
		return nil
	}
	return &ParentEntry{
		Context:  slices.Clone(e.Context),
		Children: slices.Clone(e.Children),
	}
}

// RankAfter returns a rank that sorts after every child in children.
func RankAfter(children []Child) float64 {
	if len(children) == 0 {
		return 0
	}
	highest := children[0].Rank
	for _, child := range children[1:] {
		highest = math.Max(highest, child.Rank)
	}
	return math.Floor(highest) + 1
}

// RankBetween returns a rank strictly between before and after.
func RankBetween(before, after float64) float64 {
	return before + (after-before)/2
}
