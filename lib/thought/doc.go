// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package thought defines the data model shared by the live tree, the
// storage adapter and the write and pull queues.
//
// A thought is a node in an outline: a text value, a rank that orders
// it among its siblings, and children. A thought is addressed by its
// [Context], the sequence of ancestor values from the root down to
// (but not including) the thought. The context of a thought's own
// children is therefore its context plus its value, which is also the
// storage key for the [ParentEntry] listing those children.
//
// Ranks are float64 so a thought can be placed between two siblings
// without renumbering them ([RankBetween]). Ranks are unique among
// siblings and children are always kept in ascending rank order.
//
// Storage keys ([Key]) are BLAKE3 keyed hashes of the deterministic
// CBOR encoding of a normalized context.
package thought
