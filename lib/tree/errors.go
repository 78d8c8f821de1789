// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import "errors"

var (
	// ErrNotFound is returned when an action names a context that is
	// not reachable in the live tree.
	ErrNotFound = errors.New("tree: context not found")

	// ErrNotResident is returned when an action needs a context whose
	// children have not been merged yet.
	ErrNotResident = errors.New("tree: context not resident")

	// ErrDuplicateValue is returned when a context would hold two
	// children with the same value.
	ErrDuplicateValue = errors.New("tree: duplicate value")

	// ErrInvalidValue is returned when a thought value is not valid
	// UTF-8. Such a value could be written but never read back.
	ErrInvalidValue = errors.New("tree: value is not valid UTF-8")

	// ErrRankConflict is returned when a context would hold two
	// children with the same rank.
	ErrRankConflict = errors.New("tree: rank conflict")

	// ErrInvalidMove is returned when a thought would be moved into its
	// own subtree.
	ErrInvalidMove = errors.New("tree: cannot move a thought into its own subtree")

	// ErrStaleMerge is returned when fetched children arrive for a
	// context that is no longer reachable, e.g. because it was deleted
	// while the fetch was in flight.
	ErrStaleMerge = errors.New("tree: stale merge")
)
