// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the thoughtcache command tree.
//
// Every command opens the configured store, initializes a cache on
// it, performs one operation and closes the cache again, which
// flushes whatever the operation queued. Deferred edits are given
// time to replay before the command returns.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/thoughtcache/cmd/thoughtcache/cli"
	"github.com/bureau-foundation/thoughtcache/lib/version"
)

// Root builds the command tree. Command output goes to stdout.
func Root(stdout io.Writer) *cli.Command {
	var showVersion bool
	return &cli.Command{
		Name: "thoughtcache",
		Description: `thoughtcache: a hierarchical outline store with lazy subtree loading.

Thoughts are addressed by slash-separated paths of values from the
root ("projects/garden/beds"). Edits to thoughts whose descendants are
still in storage are deferred until the subtree has been loaded, then
applied and written back.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("thoughtcache", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information")
			return flagSet
		},
		Subcommands: []*cli.Command{
			importCommand(stdout),
			lsCommand(stdout),
			exportCommand(stdout),
			rmCommand(stdout),
			mvCommand(stdout),
			renameCommand(stdout),
			statsCommand(stdout),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(context.Context, []string) error {
					fmt.Fprintf(stdout, "thoughtcache %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Import an outline under the root",
				Command:     "thoughtcache import notes.md",
			},
			{
				Description: "Show two levels below a thought",
				Command:     "thoughtcache ls --depth 2 projects",
			},
		},
		Run: func(context.Context, []string) error {
			if !showVersion {
				return fmt.Errorf("subcommand required\n\nRun 'thoughtcache --help' for usage.")
			}
			fmt.Fprintf(stdout, "thoughtcache %s\n", version.Info())
			return nil
		},
	}
}

// withSession parses the shared flags, opens a session for the
// command and closes it after run, joining the errors of both.
func withSession(params *sessionParams, name string, run func(ctx context.Context, s *session, args []string) error) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) (err error) {
		s, err := params.open(ctx, name)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := s.close(context.WithoutCancel(ctx)); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return run(ctx, s, args)
	}
}

func sessionFlags(name string, params *sessionParams) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	params.AddFlags(flagSet)
	return flagSet
}
