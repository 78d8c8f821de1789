// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/bureau-foundation/thoughtcache/lib/thought"
)

// Residency is the load state of a context.
type Residency int

const (
	// Unknown contexts are not reachable from the resident tree.
	Unknown Residency = iota
	// Pending contexts have children in storage that are not merged.
	Pending
	// Resident contexts have all of their children in memory.
	Resident
)

func (r Residency) String() string {
	switch r {
	case Pending:
		return "pending"
	case Resident:
		return "resident"
	default:
		return "unknown"
	}
}

// node holds the children of one resident context, rank-ascending.
type node struct {
	context  thought.Context
	children []thought.Child
}

func (n *node) index(value string) int {
	return slices.IndexFunc(n.children, func(child thought.Child) bool {
		return child.Value == value
	})
}

// Tree is the live tree. The zero value is not usable; call New or
// NewResident.
type Tree struct {
	contexts    map[string]*node
	rootPending bool
}

// New returns an empty tree whose root is pending: nothing may be
// edited until the root has been merged from storage.
func New() *Tree {
	return &Tree{contexts: make(map[string]*node), rootPending: true}
}

// NewResident returns an empty tree whose root is already resident,
// for trees that are not backed by storage.
func NewResident() *Tree {
	return &Tree{contexts: make(map[string]*node)}
}

// Clear removes every thought and marks the root pending.
func (t *Tree) Clear() {
	t.contexts = make(map[string]*node)
	t.rootPending = true
}

// Residency reports the load state of c.
func (t *Tree) Residency(c thought.Context) Residency {
	values := c.Normalize()
	if t.rootPending {
		if len(values) == 0 {
			return Pending
		}
		return Unknown
	}
	for i, value := range values {
		child, ok := t.child(values[:i], value)
		if !ok {
			return Unknown
		}
		if child.Pending {
			if i == len(values)-1 {
				return Pending
			}
			return Unknown
		}
	}
	return Resident
}

// IsPending reports whether c has unmerged children in storage.
func (t *Tree) IsPending(c thought.Context) bool {
	return t.Residency(c) == Pending
}

// Children returns a copy of the children of c in rank order.
func (t *Tree) Children(c thought.Context) []thought.Child {
	n := t.contexts[c.ID()]
	if n == nil {
		return nil
	}
	return slices.Clone(n.children)
}

// HasChild reports whether c lists a child named value.
func (t *Tree) HasChild(c thought.Context, value string) bool {
	_, ok := t.child(c, value)
	return ok
}

// PathExists reports whether every value of path is a child of the
// values before it. The root always exists.
func (t *Tree) PathExists(path thought.Context) bool {
	values := path.Normalize()
	for i, value := range values {
		if !t.HasChild(values[:i], value) {
			return false
		}
	}
	return true
}

// Len returns the number of resident thoughts.
func (t *Tree) Len() int {
	total := 0
	for _, n := range t.contexts {
		total += len(n.children)
	}
	return total
}

// Contexts lists every context that currently has children, ordered
// by depth and then by value.
func (t *Tree) Contexts() []thought.Context {
	contexts := make([]thought.Context, 0, len(t.contexts))
	for _, n := range t.contexts {
		contexts = append(contexts, n.context)
	}
	sortContexts(contexts)
	return contexts
}

// Entry builds the storage record for c from the live tree. Nil means
// c has no children and its record must not exist.
func (t *Tree) Entry(c thought.Context) *thought.ParentEntry {
	n := t.contexts[c.ID()]
	if n == nil || len(n.children) == 0 {
		return nil
	}
	entry := &thought.ParentEntry{
		Context:  c.Normalize(),
		Children: make([]thought.StoredChild, len(n.children)),
	}
	for i, child := range n.children {
		grandchildren := t.contexts[n.context.Child(child.Value).ID()]
		entry.Children[i] = thought.StoredChild{
			Value:                 child.Value,
			Rank:                  child.Rank,
			HasPendingDescendants: child.Pending || (grandchildren != nil && len(grandchildren.children) > 0),
		}
	}
	return entry
}

// PendingWithin returns the pending contexts that must be merged
// before the whole subtree at c is resident: c itself or its nearest
// pending ancestor, or every pending descendant of c. Nil means the
// subtree is fully resident (or c is unknown).
func (t *Tree) PendingWithin(c thought.Context) []thought.Context {
	if pending, ok := t.firstPending(c); ok {
		return []thought.Context{pending}
	}
	if t.Residency(c) != Resident {
		return nil
	}
	var pending []thought.Context
	var walk func(thought.Context)
	walk = func(context thought.Context) {
		n := t.contexts[context.ID()]
		if n == nil {
			return
		}
		for _, child := range n.children {
			childContext := context.Child(child.Value)
			if child.Pending {
				pending = append(pending, childContext)
				continue
			}
			walk(childContext)
		}
	}
	walk(c.Normalize())
	return pending
}

// Missing returns the pending contexts that must be merged before
// action can apply. An empty result means the action is ready.
func (t *Tree) Missing(action Action) []thought.Context {
	var missing []thought.Context
	seen := make(map[string]bool)
	for _, req := range action.requirements() {
		var found []thought.Context
		if req.subtree {
			found = t.PendingWithin(req.context)
		} else if pending, ok := t.firstPending(req.context); ok {
			found = []thought.Context{pending}
		}
		for _, c := range found {
			if !seen[c.ID()] {
				seen[c.ID()] = true
				missing = append(missing, c)
			}
		}
	}
	return missing
}

// firstPending returns c or the nearest ancestor of c that is pending.
func (t *Tree) firstPending(c thought.Context) (thought.Context, bool) {
	if t.rootPending {
		return thought.Root(), true
	}
	values := c.Normalize()
	for i, value := range values {
		child, ok := t.child(values[:i], value)
		if !ok {
			return nil, false
		}
		if child.Pending {
			return values[: i+1 : i+1], true
		}
	}
	return nil, false
}

// MarkPending flags c as having children in storage that are not
// merged yet. c must be resident.
func (t *Tree) MarkPending(c thought.Context) error {
	switch t.Residency(c) {
	case Unknown:
		return fmt.Errorf("marking %s pending: %w", c, ErrNotFound)
	case Pending:
		return nil
	}
	parent, value, ok := c.Parent()
	if !ok {
		t.rootPending = true
		return nil
	}
	n := t.contexts[parent.ID()]
	n.children[n.index(value)].Pending = true
	return nil
}

// MergeResult describes one merge.
type MergeResult struct {
	// Inserted counts children added to the live tree.
	Inserted int

	// Pending lists the children contexts that were merged with a
	// pending marker because storage holds descendants for them.
	Pending []thought.Context

	// Conflicts lists stored values skipped because a live child
	// already holds their rank.
	Conflicts []string

	// AlreadyResident is set when c was resident before the merge and
	// nothing was changed.
	AlreadyResident bool
}

// Merge adds the children of a fetched parent entry to the pending
// context c and clears its pending marker. Live children are never
// overwritten: a stored child whose value is already present is
// skipped, as is one whose rank is taken by a different live child.
// A nil entry means c has no children in storage.
func (t *Tree) Merge(c thought.Context, entry *thought.ParentEntry) (MergeResult, error) {
	var result MergeResult
	switch t.Residency(c) {
	case Unknown:
		return result, fmt.Errorf("merging %s: %w", c, ErrStaleMerge)
	case Resident:
		result.AlreadyResident = true
		return result, nil
	}

	values := c.Normalize()
	if entry != nil {
		for _, stored := range entry.Children {
			child := thought.Child{
				Value:   stored.Value,
				Rank:    stored.Rank,
				Pending: stored.HasPendingDescendants,
			}
			if t.HasChild(values, child.Value) {
				continue
			}
			if _, err := t.add(values, child); err != nil {
				result.Conflicts = append(result.Conflicts, child.Value)
				continue
			}
			result.Inserted++
			if child.Pending {
				result.Pending = append(result.Pending, values.Child(child.Value))
			}
		}
	}

	parent, value, ok := values.Parent()
	if !ok {
		t.rootPending = false
		return result, nil
	}
	n := t.contexts[parent.ID()]
	n.children[n.index(value)].Pending = false
	return result, nil
}

// Apply performs action on the tree.
func (t *Tree) Apply(action Action) (Changes, error) {
	switch a := action.(type) {
	case Insert:
		return t.insert(a)
	case Delete:
		return t.delete(a)
	case Move:
		last := a.To.Last()
		return t.relocate(a.From.Context(), a.From.Last().Value, a.To.Context(), last.Value, last.Rank)
	case Rename:
		n := t.contexts[a.Context.ID()]
		if n == nil || n.index(a.OldValue) < 0 {
			return Changes{}, nil
		}
		rank := n.children[n.index(a.OldValue)].Rank
		return t.relocate(a.Context, a.OldValue, a.Context, a.NewValue, rank)
	case Clear:
		t.Clear()
		return Changes{}, nil
	default:
		return Changes{}, fmt.Errorf("tree: unsupported action %T", action)
	}
}

func (t *Tree) insert(a Insert) (Changes, error) {
	var set changeSet
	values := a.Context.Normalize()
	if err := t.requireResident(values); err != nil {
		return Changes{}, fmt.Errorf("inserting %q: %w", a.Value, err)
	}
	if !utf8.ValidString(a.Value) {
		return Changes{}, fmt.Errorf("inserting %q into %s: %w", a.Value, values, ErrInvalidValue)
	}
	rank := a.Rank
	if math.IsNaN(rank) {
		rank = thought.RankAfter(t.Children(values))
	}
	first, err := t.add(values, thought.Child{Value: a.Value, Rank: rank})
	if err != nil {
		return Changes{}, fmt.Errorf("inserting %q into %s: %w", a.Value, values, err)
	}
	set.add(values)
	if parent, _, ok := values.Parent(); ok && first {
		set.add(parent)
	}
	return set.changes, nil
}

func (t *Tree) delete(a Delete) (Changes, error) {
	var set changeSet
	values := a.Context.Normalize()
	switch t.Residency(values) {
	case Unknown:
		return set.changes, nil
	case Pending:
		return Changes{}, fmt.Errorf("deleting %q: %w", a.Value, ErrNotResident)
	}
	if !t.HasChild(values, a.Value) {
		return set.changes, nil
	}
	target := values.Child(a.Value)
	if pending := t.PendingWithin(target); len(pending) > 0 {
		return Changes{}, fmt.Errorf("deleting %s: %w", target, ErrNotResident)
	}

	removed := t.detach(target)
	last := t.remove(values, a.Value)
	set.add(values)
	if parent, _, ok := values.Parent(); ok && last {
		set.add(parent)
	}
	for _, n := range removed {
		set.add(n.context)
	}
	return set.changes, nil
}

// relocate moves the thought oldValue in oldParent to newValue with
// newRank in newParent, carrying its resident subtree along.
func (t *Tree) relocate(oldParent thought.Context, oldValue string, newParent thought.Context, newValue string, newRank float64) (Changes, error) {
	var set changeSet
	oldParent, newParent = oldParent.Normalize(), newParent.Normalize()

	switch t.Residency(oldParent) {
	case Unknown:
		return set.changes, nil
	case Pending:
		return Changes{}, fmt.Errorf("moving %q: %w", oldValue, ErrNotResident)
	}
	moving, ok := t.child(oldParent, oldValue)
	if !ok {
		return set.changes, nil
	}

	from := oldParent.Child(oldValue)
	to := newParent.Child(newValue)
	if !utf8.ValidString(newValue) {
		return Changes{}, fmt.Errorf("moving %s to %q: %w", from, newValue, ErrInvalidValue)
	}
	if newParent.HasPrefix(from) {
		return Changes{}, fmt.Errorf("moving %s to %s: %w", from, to, ErrInvalidMove)
	}
	if pending := t.PendingWithin(from); len(pending) > 0 {
		return Changes{}, fmt.Errorf("moving %s: %w", from, ErrNotResident)
	}
	if err := t.requireResident(newParent); err != nil {
		return Changes{}, fmt.Errorf("moving %s to %s: %w", from, to, err)
	}
	samePlace := oldParent.Equal(newParent)
	if n := t.contexts[newParent.ID()]; n != nil {
		for _, child := range n.children {
			if samePlace && child.Value == oldValue {
				continue
			}
			if child.Value == newValue {
				return Changes{}, fmt.Errorf("moving %s to %s: %w", from, to, ErrDuplicateValue)
			}
			if child.Rank == newRank {
				return Changes{}, fmt.Errorf("moving %s to %s at rank %v: %w", from, to, newRank, ErrRankConflict)
			}
		}
	}

	oldHadChildren := len(t.Children(oldParent)) > 0
	newHadChildren := len(t.Children(newParent)) > 0

	subtree := t.detach(from)
	t.remove(oldParent, oldValue)
	if _, err := t.add(newParent, thought.Child{Value: newValue, Rank: newRank, Pending: moving.Pending}); err != nil {
		// Checked above; restore and report rather than lose the subtree.
		t.add(oldParent, moving)
		t.attach(subtree)
		return Changes{}, fmt.Errorf("moving %s to %s: %w", from, to, err)
	}
	oldContexts := make([]thought.Context, len(subtree))
	for i, n := range subtree {
		oldContexts[i] = n.context
		n.context, _ = n.context.Rebase(from, to)
	}
	t.attach(subtree)

	// New records first and tombstones last, so an interrupted flush
	// leaves the subtree readable under at least one of its locations.
	for _, n := range subtree {
		set.add(n.context)
	}
	set.add(newParent)
	if parent, _, ok := newParent.Parent(); ok && !newHadChildren {
		set.add(parent)
	}
	set.add(oldParent)
	if parent, _, ok := oldParent.Parent(); ok && oldHadChildren && len(t.Children(oldParent)) == 0 {
		set.add(parent)
	}
	set.add(oldContexts...)

	if !from.Equal(to) {
		set.changes.Relocation = &Relocation{From: from, To: to}
	}
	return set.changes, nil
}

func (t *Tree) requireResident(c thought.Context) error {
	switch t.Residency(c) {
	case Unknown:
		return fmt.Errorf("%s: %w", c, ErrNotFound)
	case Pending:
		return fmt.Errorf("%s: %w", c, ErrNotResident)
	}
	return nil
}

func (t *Tree) child(c thought.Context, value string) (thought.Child, bool) {
	n := t.contexts[c.ID()]
	if n == nil {
		return thought.Child{}, false
	}
	i := n.index(value)
	if i < 0 {
		return thought.Child{}, false
	}
	return n.children[i], true
}

// add inserts child into c in rank order. first reports whether c had
// no children before.
func (t *Tree) add(c thought.Context, child thought.Child) (first bool, err error) {
	id := c.ID()
	n := t.contexts[id]
	if n == nil {
		n = &node{context: c.Normalize()}
	}
	for _, existing := range n.children {
		if existing.Value == child.Value {
			return false, ErrDuplicateValue
		}
		if existing.Rank == child.Rank {
			return false, ErrRankConflict
		}
	}
	position, _ := slices.BinarySearchFunc(n.children, child.Rank, func(existing thought.Child, rank float64) int {
		return cmp.Compare(existing.Rank, rank)
	})
	n.children = slices.Insert(n.children, position, child)
	t.contexts[id] = n
	return len(n.children) == 1, nil
}

// remove deletes value from c. last reports whether c is now empty.
func (t *Tree) remove(c thought.Context, value string) (last bool) {
	id := c.ID()
	n := t.contexts[id]
	if n == nil {
		return false
	}
	if i := n.index(value); i >= 0 {
		n.children = slices.Delete(n.children, i, i+1)
	}
	if len(n.children) == 0 {
		delete(t.contexts, id)
		return true
	}
	return false
}

// detach removes and returns every node at or below prefix.
func (t *Tree) detach(prefix thought.Context) []*node {
	var detached []*node
	for id, n := range t.contexts {
		if n.context.HasPrefix(prefix) {
			detached = append(detached, n)
			delete(t.contexts, id)
		}
	}
	slices.SortFunc(detached, func(a, b *node) int {
		return compareContexts(a.context, b.context)
	})
	return detached
}

func (t *Tree) attach(nodes []*node) {
	for _, n := range nodes {
		t.contexts[n.context.ID()] = n
	}
}

func sortContexts(contexts []thought.Context) {
	slices.SortFunc(contexts, compareContexts)
}

func compareContexts(a, b thought.Context) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return slices.Compare(a, b)
}
