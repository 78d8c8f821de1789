// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// commit returns GitCommit, falling back to the VCS stamp the Go
// toolchain embeds when ldflags were not used.
func commit() (sha string, dirty bool) {
	sha, dirty = GitCommit, GitDirty == "true"
	if sha != "unknown" {
		return sha, dirty
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return sha, dirty
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			sha = setting.Value
			if len(sha) > 12 {
				sha = sha[:12]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return sha, dirty
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	sha, dirty := commit()
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, sha, suffix, BuildTime)
}

// Full returns detailed version information including Go version.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}
