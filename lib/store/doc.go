// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists parent entries, one record per context.
//
// [Adapter] is the contract the write queue and the pull queue depend
// on. [Store] implements it on any byte-oriented [Backend]: it hashes
// the context into a [thought.Key], encodes the entry as deterministic
// CBOR and verifies on read that the record names the context it was
// fetched for. Backends live in subpackages (sqlitestore, levelstore);
// [NewMemory] is an in-process backend for tests and throwaway caches.
//
// A context without children has no record. SetContext with an empty
// entry therefore deletes, and GetContext of a missing record returns
// (nil, nil).
package store
