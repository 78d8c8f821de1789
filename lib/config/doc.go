// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads thoughtcache configuration from YAML or JSONC.
//
// Configuration comes from a single file named by either the
// THOUGHTCACHE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search. Values the
// file leaves out keep their [Default].
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is YAML. Durations are Go duration
// strings ("250ms", "1s") in both formats.
//
// After loading, ${HOME} and ${VAR:-default} patterns in the store
// path are expanded. No other environment variables override config
// values.
//
// This package depends on no other thoughtcache packages.
package config
