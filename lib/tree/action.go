// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"github.com/bureau-foundation/thoughtcache/lib/thought"
)

// Action is a structural edit of the live tree.
type Action interface {
	// Kind names the action in logs ("insert", "delete", ...).
	Kind() string

	// Target is the context an action is tracked under while it waits
	// for buffered descendants: the children context of the thought
	// being edited, or for an insert the context receiving the child.
	Target() thought.Context

	// Rebase returns a copy of the action with every context under
	// from moved to the same position under to. Used to replay an
	// action after an earlier one moved or renamed its target.
	Rebase(from, to thought.Context) Action

	requirements() []requirement
}

// requirement is a context that must be resident before an action can
// apply. subtree requires every descendant to be resident as well.
type requirement struct {
	context thought.Context
	subtree bool
}

// Insert adds a child to a context. A NaN rank appends after the
// existing children.
type Insert struct {
	Context thought.Context
	Value   string
	Rank    float64
}

func (Insert) Kind() string { return "insert" }

func (a Insert) Target() thought.Context { return a.Context.Normalize() }

func (a Insert) Rebase(from, to thought.Context) Action {
	a.Context, _ = a.Context.Rebase(from, to)
	return a
}

func (a Insert) requirements() []requirement {
	return []requirement{{context: a.Context}}
}

// Delete removes a thought and all of its descendants.
type Delete struct {
	Context thought.Context
	Value   string
}

func (Delete) Kind() string { return "delete" }

func (a Delete) Target() thought.Context { return a.Context.Child(a.Value) }

func (a Delete) Rebase(from, to thought.Context) Action {
	target, ok := a.Target().Rebase(from, to)
	if !ok {
		return a
	}
	a.Context, a.Value, _ = target.Parent()
	return a
}

func (a Delete) requirements() []requirement {
	return []requirement{{context: a.Target(), subtree: true}}
}

// Move relocates a thought and its subtree. To names the new parent
// context (all but the last element) and the new value and rank of
// the thought (the last element).
type Move struct {
	From thought.Path
	To   thought.Path
}

func (Move) Kind() string { return "move" }

func (a Move) Target() thought.Context { return a.From.Values() }

func (a Move) Rebase(from, to thought.Context) Action {
	a.From = a.From.Rebase(from, to)
	a.To = a.To.Rebase(from, to)
	return a
}

func (a Move) requirements() []requirement {
	return []requirement{
		{context: a.From.Values(), subtree: true},
		{context: a.To.Context()},
	}
}

// Rename changes the value of a thought in place, keeping its rank
// and subtree.
type Rename struct {
	Context  thought.Context
	OldValue string
	NewValue string
}

func (Rename) Kind() string { return "rename" }

func (a Rename) Target() thought.Context { return a.Context.Child(a.OldValue) }

func (a Rename) Rebase(from, to thought.Context) Action {
	target, ok := a.Target().Rebase(from, to)
	if !ok {
		return a
	}
	a.Context, a.OldValue, _ = target.Parent()
	return a
}

func (a Rename) requirements() []requirement {
	return []requirement{{context: a.Target(), subtree: true}}
}

// Clear empties the live tree without touching storage. The root
// becomes pending until it is loaded again.
type Clear struct{}

func (Clear) Kind() string { return "clear" }

func (Clear) Target() thought.Context { return thought.Root() }

func (a Clear) Rebase(thought.Context, thought.Context) Action { return a }

func (Clear) requirements() []requirement { return nil }

// Paths returns the thoughts action touches: the thought it targets
// and, for insert, move and rename, the thought it creates. Clear
// touches the root and so every thought.
func Paths(action Action) []thought.Context {
	switch a := action.(type) {
	case Insert:
		return []thought.Context{a.Context.Child(a.Value)}
	case Move:
		return []thought.Context{a.From.Values(), a.To.Values()}
	case Rename:
		return []thought.Context{a.Target(), a.Context.Child(a.NewValue)}
	default:
		return []thought.Context{action.Target()}
	}
}

// Overlaps reports whether a and b touch a common subtree. Two
// overlapping actions can give a different tree when applied in the
// other order.
func Overlaps(a, b Action) bool {
	for _, p := range Paths(a) {
		for _, q := range Paths(b) {
			if p.HasPrefix(q) || q.HasPrefix(p) {
				return true
			}
		}
	}
	return false
}

// Changes lists the persistence consequences of one applied action.
type Changes struct {
	// Dirty holds every context whose parent entry must be rewritten
	// from the live tree, in the order the writes should be issued.
	// A context with no remaining children must be removed.
	Dirty []thought.Context

	// Relocation is set when the action moved or renamed a thought.
	Relocation *Relocation
}

// Relocation records that the subtree at From now lives at To.
type Relocation struct {
	From thought.Context
	To   thought.Context
}

// changeSet accumulates dirty contexts without duplicates.
type changeSet struct {
	seen    map[string]bool
	changes Changes
}

func (s *changeSet) add(contexts ...thought.Context) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	for _, c := range contexts {
		id := c.ID()
		if s.seen[id] {
			continue
		}
		s.seen[id] = true
		s.changes.Dirty = append(s.changes.Dirty, c.Normalize())
	}
}
