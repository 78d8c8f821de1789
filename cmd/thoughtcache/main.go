// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/thoughtcache/cmd/thoughtcache/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (like ls on a missing
		// path) return an error carrying the exit code. Don't print a
		// redundant "error:" line for those.
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root(os.Stdout).Execute(ctx, os.Args[1:])
}
