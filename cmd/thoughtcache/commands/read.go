// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/thoughtcache/cmd/thoughtcache/cli"
	"github.com/bureau-foundation/thoughtcache/lib/config"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

func lsCommand(stdout io.Writer) *cli.Command {
	var params sessionParams
	var depth int
	var ranks bool
	return &cli.Command{
		Name:    "ls",
		Summary: "List the children of a thought",
		Description: `List the children of the thought at PATH (default: root). Only the
levels that are shown are loaded from storage.`,
		Usage: "thoughtcache ls [flags] [path]",
		Flags: func() *pflag.FlagSet {
			flagSet := sessionFlags("ls", &params)
			flagSet.IntVar(&depth, "depth", 1, "levels to show (0 for all)")
			flagSet.BoolVar(&ranks, "ranks", false, "show the rank of each thought")
			return flagSet
		},
		Run: withSession(&params, "ls", func(ctx context.Context, s *session, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("ls takes at most one path")
			}
			target := thought.Root()
			if len(args) == 1 {
				target = thought.ParseContext(args[0])
			}
			if err := s.resolve(ctx, target); err != nil {
				if errors.Is(err, tree.ErrNotFound) {
					fmt.Fprintf(stdout, "%s: no such thought\n", displayPath(target))
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			return list(ctx, s, stdout, target, depth, ranks, 0)
		}),
	}
}

// list prints the children of c, loading each level before it is
// shown. A depth of zero or less lists everything.
func list(ctx context.Context, s *session, w io.Writer, c thought.Context, depth int, ranks bool, level int) error {
	if err := s.cache.EnsureLoaded(ctx, c); err != nil {
		return err
	}
	for _, child := range s.cache.Children(c) {
		line := strings.Repeat("  ", level) + child.Value
		if ranks {
			line += " (" + strconv.FormatFloat(child.Rank, 'g', -1, 64) + ")"
		}
		fmt.Fprintln(w, line)
		if depth <= 0 || level+1 < depth {
			if err := list(ctx, s, w, c.Child(child.Value), depth, ranks, level+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func exportCommand(stdout io.Writer) *cli.Command {
	var params sessionParams
	return &cli.Command{
		Name:    "export",
		Summary: "Print a subtree as an indented outline",
		Description: `Load the whole subtree below PATH (default: root) and print it in
the outline format "thoughtcache import" reads.`,
		Usage: "thoughtcache export [flags] [path]",
		Flags: func() *pflag.FlagSet { return sessionFlags("export", &params) },
		Run: withSession(&params, "export", func(ctx context.Context, s *session, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("export takes at most one path")
			}
			target := thought.Root()
			if len(args) == 1 {
				target = thought.ParseContext(args[0])
			}
			if err := s.resolve(ctx, target); err != nil {
				return err
			}
			text, err := s.cache.ExportText(ctx, target)
			if err != nil {
				return err
			}
			_, err = io.WriteString(stdout, text)
			return err
		}),
	}
}

func statsCommand(stdout io.Writer) *cli.Command {
	var params sessionParams
	var shallow bool
	return &cli.Command{
		Name:    "stats",
		Summary: "Show store and cache statistics",
		Description: `Load every thought and report what the cache holds and what the
store contains. With --shallow only the root level is loaded.`,
		Usage: "thoughtcache stats [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := sessionFlags("stats", &params)
			flagSet.BoolVar(&shallow, "shallow", false, "do not load below the root")
			return flagSet
		},
		Run: withSession(&params, "stats", func(ctx context.Context, s *session, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("stats takes no arguments")
			}
			if !shallow {
				if err := s.cache.LoadSubtree(ctx, thought.Root()); err != nil {
					return err
				}
			}
			records, err := s.backend.Count(ctx)
			if err != nil {
				return err
			}
			stats := s.cache.Stats()

			writer := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(writer, "backend\t%s\n", s.config.Store.Backend)
			if s.config.Store.Backend != config.BackendMemory {
				fmt.Fprintf(writer, "path\t%s\n", s.config.Store.Path)
				if size, err := diskUsage(s.config.Store); err == nil {
					fmt.Fprintf(writer, "size\t%s\n", humanize.Bytes(size))
				} else {
					s.logger.Warn("measuring store size failed", "error", err)
				}
			}
			fmt.Fprintf(writer, "records\t%s\n", humanize.Comma(int64(records)))
			fmt.Fprintf(writer, "thoughts\t%s\n", humanize.Comma(int64(stats.Thoughts)))
			fmt.Fprintf(writer, "contexts\t%s\n", humanize.Comma(int64(stats.Contexts)))
			fmt.Fprintf(writer, "loads\t%d fetches, %d merged, %d failed\n",
				stats.Loads.Fetches, stats.Loads.Merged, stats.Loads.Failed)
			return writer.Flush()
		}),
	}
}

// diskUsage sums the files that make up the store: the database and
// its WAL files for SQLite, the whole directory for LevelDB.
func diskUsage(cfg config.StoreConfig) (uint64, error) {
	var total uint64
	switch cfg.Backend {
	case config.BackendSQLite:
		for _, suffix := range []string{"", "-wal", "-shm"} {
			info, err := os.Stat(cfg.Path + suffix)
			if errors.Is(err, fs.ErrNotExist) && suffix != "" {
				continue
			}
			if err != nil {
				return 0, err
			}
			total += uint64(info.Size())
		}
	case config.BackendLevelDB:
		err := filepath.WalkDir(cfg.Path, func(_ string, entry fs.DirEntry, err error) error {
			if err != nil || entry.IsDir() {
				return err
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			total += uint64(info.Size())
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
