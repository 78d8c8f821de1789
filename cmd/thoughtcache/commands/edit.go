// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/thoughtcache/cmd/thoughtcache/cli"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

func importCommand(stdout io.Writer) *cli.Command {
	var params sessionParams
	var parent string
	return &cli.Command{
		Name:    "import",
		Summary: "Import an indented outline",
		Description: `Add the thoughts of an indented outline file ("-" reads stdin).

Lines are "- value" list items nested by indentation. Thoughts that
already exist are kept and the imported children are added to them.`,
		Usage: "thoughtcache import [flags] <file>",
		Flags: func() *pflag.FlagSet {
			flagSet := sessionFlags("import", &params)
			flagSet.StringVar(&parent, "parent", "", "path of the thought to import under (default: root)")
			return flagSet
		},
		Run: withSession(&params, "import", func(ctx context.Context, s *session, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("import takes exactly one file argument")
			}
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			under := thought.ParseContext(parent)
			if err := s.resolve(ctx, under); err != nil {
				return err
			}
			count, err := s.cache.ImportText(ctx, under, string(data))
			if err != nil {
				return err
			}
			if err := s.settle(ctx); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "imported %d thoughts under %s\n", count, displayPath(under))
			return nil
		}),
	}
}

func rmCommand(stdout io.Writer) *cli.Command {
	var params sessionParams
	return &cli.Command{
		Name:    "rm",
		Summary: "Delete a thought and its descendants",
		Usage:   "thoughtcache rm [flags] <path>",
		Flags:   func() *pflag.FlagSet { return sessionFlags("rm", &params) },
		Run: withSession(&params, "rm", func(ctx context.Context, s *session, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("rm takes exactly one path")
			}
			parent, value, err := splitPath(args[0])
			if err != nil {
				return err
			}
			if err := s.resolve(ctx, parent.Child(value)); err != nil {
				return err
			}
			if err := s.cache.Dispatch(ctx, tree.Delete{Context: parent, Value: value}); err != nil {
				return err
			}
			if err := s.settle(ctx); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "deleted %s\n", displayPath(parent.Child(value)))
			return nil
		}),
	}
}

func mvCommand(stdout io.Writer) *cli.Command {
	var params sessionParams
	return &cli.Command{
		Name:    "mv",
		Summary: "Move a thought and its descendants",
		Description: `Move the thought at <from> to <to>. The last value of <to> is the
thought's new value; the rest names its new parent, where it is
placed after the existing children.`,
		Usage: "thoughtcache mv [flags] <from> <to>",
		Examples: []cli.Example{
			{Description: "Move a thought under another", Command: "thoughtcache mv inbox/idea projects/idea"},
		},
		Flags: func() *pflag.FlagSet { return sessionFlags("mv", &params) },
		Run: withSession(&params, "mv", func(ctx context.Context, s *session, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("mv takes a source and a destination path")
			}
			from := thought.ParseContext(args[0])
			toParent, toValue, err := splitPath(args[1])
			if err != nil {
				return err
			}
			if from.IsRoot() {
				return fmt.Errorf("cannot move the root")
			}
			if err := s.resolve(ctx, from); err != nil {
				return err
			}
			if err := s.resolve(ctx, toParent); err != nil {
				return err
			}
			fromPath, err := s.path(from)
			if err != nil {
				return err
			}
			toPath, err := s.path(toParent)
			if err != nil {
				return err
			}
			rank := thought.RankAfter(s.cache.Children(toParent))
			toPath = append(toPath, thought.Child{Value: toValue, Rank: rank})

			if err := s.cache.Dispatch(ctx, tree.Move{From: fromPath, To: toPath}); err != nil {
				return err
			}
			if err := s.settle(ctx); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "moved %s to %s\n", displayPath(from), displayPath(toParent.Child(toValue)))
			return nil
		}),
	}
}

func renameCommand(stdout io.Writer) *cli.Command {
	var params sessionParams
	return &cli.Command{
		Name:    "rename",
		Summary: "Change the value of a thought",
		Usage:   "thoughtcache rename [flags] <path> <new-value>",
		Flags:   func() *pflag.FlagSet { return sessionFlags("rename", &params) },
		Run: withSession(&params, "rename", func(ctx context.Context, s *session, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("rename takes a path and a new value")
			}
			parent, value, err := splitPath(args[0])
			if err != nil {
				return err
			}
			if err := s.resolve(ctx, parent.Child(value)); err != nil {
				return err
			}
			action := tree.Rename{Context: parent, OldValue: value, NewValue: args[1]}
			if err := s.cache.Dispatch(ctx, action); err != nil {
				return err
			}
			if err := s.settle(ctx); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "renamed %s to %s\n", displayPath(parent.Child(value)), args[1])
			return nil
		}),
	}
}
