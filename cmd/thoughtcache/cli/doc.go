// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree used by the thoughtcache binary.
//
// A [Command] either runs or dispatches to subcommands by name. Flags
// are parsed with spf13/pflag just before Run; unknown commands and
// flags are answered with a "did you mean" suggestion picked by edit
// distance. -h, --help and a bare "help" print structured help.
//
// [NewLogger] builds the process logger from the log section of the
// configuration, and [ExitError] lets a command choose its exit code
// without an extra error line.
package cli
