// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/thoughtcache/cmd/thoughtcache/cli"
	"github.com/bureau-foundation/thoughtcache/lib/config"
	"github.com/bureau-foundation/thoughtcache/lib/store"
	"github.com/bureau-foundation/thoughtcache/lib/store/levelstore"
	"github.com/bureau-foundation/thoughtcache/lib/store/sqlitestore"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/thoughtcache"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

// backend is a store.Backend that can count its records.
type backend interface {
	store.Backend
	Count(ctx context.Context) (int, error)
}

// sessionParams holds the flags shared by every command that opens
// the store.
type sessionParams struct {
	ConfigPath string
}

func (p *sessionParams) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&p.ConfigPath, "config", "", "config file (default: $"+config.EnvVar+", then built-in defaults)")
}

// loadConfig reads --config, then THOUGHTCACHE_CONFIG, then falls
// back to Default.
func (p *sessionParams) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case p.ConfigPath != "":
		cfg, err = config.LoadFile(p.ConfigPath)
	case os.Getenv(config.EnvVar) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// session is an open store with an initialized cache on top.
type session struct {
	config  *config.Config
	logger  *slog.Logger
	backend backend
	store   *store.Store
	cache   *thoughtcache.Cache
}

func (p *sessionParams) open(ctx context.Context, command string) (*session, error) {
	cfg, err := p.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	logger = logger.With("command", command)

	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	var b backend
	switch cfg.Store.Backend {
	case config.BackendMemory:
		b = store.NewMemory()
	case config.BackendSQLite:
		b, err = sqlitestore.Open(cfg.Store.Path, logger)
	case config.BackendLevelDB:
		b, err = levelstore.Open(cfg.Store.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	st := store.New(b, logger)
	cache, err := thoughtcache.New(thoughtcache.Config{
		Adapter:       st,
		Logger:        logger,
		Debounce:      cfg.WriteQueue.Debounce,
		MaxWait:       cfg.WriteQueue.MaxWait,
		Throttle:      cfg.WriteQueue.Throttle,
		BufferDepth:   cfg.PullQueue.BufferDepth,
		PrefetchDepth: cfg.PullQueue.PrefetchDepth,
		Concurrency:   cfg.PullQueue.Concurrency,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := cache.Initialize(ctx); err != nil {
		cache.Close(ctx)
		st.Close()
		return nil, err
	}
	return &session{config: cfg, logger: logger, backend: b, store: st, cache: cache}, nil
}

// close flushes the cache and closes the store.
func (s *session) close(ctx context.Context) error {
	return errors.Join(s.cache.Close(ctx), s.store.Close())
}

// settle waits for every load and replay to finish and reports
// actions that are still deferred.
func (s *session) settle(ctx context.Context) error {
	if err := s.cache.Wait(ctx); err != nil {
		return err
	}
	var errs []error
	for _, op := range s.cache.Deferred() {
		errs = append(errs, fmt.Errorf("%s of %s still waiting for storage", op.Action.Kind(), op.Context))
	}
	return errors.Join(errs...)
}

// resolve loads every level down to c and fails if c is not a thought.
func (s *session) resolve(ctx context.Context, c thought.Context) error {
	c = c.Normalize()
	for i := 0; i <= len(c); i++ {
		prefix := c[:i]
		if !s.cache.PathExists(prefix) {
			return fmt.Errorf("%s: %w", displayPath(prefix), tree.ErrNotFound)
		}
		if err := s.cache.EnsureLoaded(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

// path returns the ranked path to the thought c, which must be loaded.
func (s *session) path(c thought.Context) (thought.Path, error) {
	c = c.Normalize()
	path := make(thought.Path, 0, len(c))
	for i, value := range c {
		index := -1
		children := s.cache.Children(c[:i])
		for j, child := range children {
			if child.Value == value {
				index = j
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("%s: %w", displayPath(c[:i+1]), tree.ErrNotFound)
		}
		path = append(path, children[index])
	}
	return path, nil
}

// splitPath parses a slash-separated thought path into its parent
// context and value.
func splitPath(arg string) (parent thought.Context, value string, err error) {
	parent, value, ok := thought.ParseContext(arg).Parent()
	if !ok {
		return nil, "", fmt.Errorf("%q names the root, not a thought", arg)
	}
	return parent, value, nil
}

func displayPath(c thought.Context) string {
	if c.IsRoot() {
		return "/"
	}
	return "/" + strings.Join(c.Normalize(), "/")
}
