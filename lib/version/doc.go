// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the
// thoughtcache binary.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// For example:
//
//	go build -ldflags "-X github.com/bureau-foundation/thoughtcache/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without ldflags the commit falls back to the VCS stamp embedded by
// the Go toolchain, and to "unknown" in test binaries.
//
//   - [Info] -- "0.1.0-dev (abc1234, 2026-02-10T...)" for --version
//   - [Full] -- Info plus Go version and GOOS/GOARCH
//   - [Short] -- just the version number
package version
