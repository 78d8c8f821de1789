// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pullqueue loads buffered subtrees from storage into the live
// tree.
//
// A context is pending when the live tree knows it has children in
// storage but has not merged them. [Queue.EnsureLoaded] starts a fetch
// for a pending context: it reads the context and, breadth first, the
// pending contexts below it down to BufferDepth levels, reading each
// level's siblings concurrently. Reads consult the write queue's
// overlay before storage so unflushed edits are never lost.
//
// The fetched entries are merged top-down while the cache lock is
// held, after which OnMerged runs once per merged context. Contexts
// that are still pending afterwards and lie within PrefetchDepth of the
// root are fetched in the background, so a freshly loaded tree fills
// in without anyone asking.
//
// A fetch that fails leaves its context pending; the next EnsureLoaded
// retries it. A fetch that completes after [Queue.Reset] is discarded.
package pullqueue
