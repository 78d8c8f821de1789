// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package thoughtcache keeps a live outline tree in sync with a
// durable store while loading deep subtrees lazily.
//
// A Cache owns the live tree and the three queues around it:
//
//   - the write queue, which coalesces the parent entries dirtied by
//     each edit and flushes them on a debounce and throttle schedule;
//   - the pull queue, which fetches pending contexts a few levels at a
//     time and merges them additively into the tree;
//   - the deferred tracker, which holds structural actions whose
//     target is not fully resident yet.
//
// Every action passes through Dispatch. The cache's interceptor, the
// innermost stage of the middleware chain, applies an action at once
// when everything it touches is resident. Otherwise it defers the
// action and asks the pull queue for the missing contexts. Each merge
// replays the deferred actions that became ready, in the order they
// were dispatched, so deleting a thought whose descendants are still
// in storage eventually removes the whole subtree from storage too.
//
// All tree access is serialized by one mutex. Middlewares run with it
// held and must not call back into the Cache.
package thoughtcache
