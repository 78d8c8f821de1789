// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the cache packages.
//
// [RequireReceive], [RequireSend], [RequireClosed] and [Within] bound
// waits on channels and blocking calls with a wall-clock timeout so a
// deadlock fails the test instead of hanging it. They are the only
// place tests use real time; everything else runs on clock.Fake.
//
// [Seed] writes an outline straight into a store adapter, and [Walk]
// reads back what is reachable from the root, so tests can state
// storage contents as slash-separated paths.
//
// All helpers call t.Fatalf on failure.
package testutil
