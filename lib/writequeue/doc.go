// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package writequeue coalesces parent-entry writes and flushes them to
// a store adapter on a debounced, throttled schedule.
//
// At most one write is queued per storage key: enqueuing a context
// again replaces whatever was queued for it, so a burst of edits to
// one context costs a single write. A nil entry is a tombstone and
// flushes as DeleteContext.
//
// A flush is scheduled Debounce after the most recent Enqueue, but no
// later than MaxWait after the oldest unflushed one. Scheduled flushes
// are additionally spaced at least Throttle apart. Flush writes
// immediately regardless of the schedule.
//
// Writes are issued in enqueue order, with a replaced write taking the
// position of its replacement. A failed write stays queued and is
// retried by the next scheduled flush, unless a newer write for the
// same key was queued while it was in flight.
//
// [Queue.Pending] exposes queued and in-flight writes so readers see
// their own unflushed edits.
package writequeue
