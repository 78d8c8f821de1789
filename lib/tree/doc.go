// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tree is the in-memory live tree of thoughts: the single
// source of truth for what is currently visible.
//
// The tree stores, for every resident context with at least one child,
// the rank-ordered list of those children. A context is in one of
// three states ([Residency]):
//
//   - Resident: its children are known. The root is resident once it
//     has been loaded; any other context is resident when its parent
//     is resident and lists it without a pending marker.
//   - Pending: its children exist in storage but have not been merged
//     yet. Only [Tree.Merge] clears this state.
//   - Unknown: not reachable from the resident part of the tree.
//
// Structural edits are [Action] values applied with [Tree.Apply]. Each
// application returns the [Changes] the caller must persist: every
// context whose parent entry needs to be rewritten (or removed, when
// [Tree.Entry] returns nil for it). Before applying an action the
// caller asks [Tree.Missing] which pending contexts must be merged
// first; the tree itself never blocks or loads.
//
// A Tree is not safe for concurrent use.
package tree
