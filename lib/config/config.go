// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable read by Load.
const EnvVar = "THOUGHTCACHE_CONFIG"

// Storage backends.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
)

// Config is the configuration of a thoughtcache process.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	WriteQueue WriteQueueConfig `yaml:"write_queue"`
	PullQueue  PullQueueConfig  `yaml:"pull_queue"`
	Log        LogConfig        `yaml:"log"`
}

// StoreConfig selects the durable store.
type StoreConfig struct {
	// Backend is memory, sqlite or leveldb.
	// Default: sqlite
	Backend string `yaml:"backend"`

	// Path is the SQLite database file or the LevelDB directory.
	// Ignored by the memory backend.
	// Default: ${HOME}/.local/share/thoughtcache/thoughts.db
	Path string `yaml:"path"`
}

// WriteQueueConfig configures the flush schedule.
type WriteQueueConfig struct {
	// Debounce is the quiet period before queued writes flush.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// MaxWait bounds how long continued edits can postpone a flush.
	// Default: 1s
	MaxWait time.Duration `yaml:"max_wait"`

	// Throttle is the minimum spacing of flushes. Negative disables it.
	// Default: 250ms
	Throttle time.Duration `yaml:"throttle"`
}

// PullQueueConfig configures lazy loading.
type PullQueueConfig struct {
	// BufferDepth is how many levels below a requested context one
	// fetch reads. Negative reads the requested context only.
	// Default: 2
	BufferDepth int `yaml:"buffer_depth"`

	// PrefetchDepth is the deepest context loaded without being asked
	// for. Negative disables prefetching.
	// Default: 8
	PrefetchDepth int `yaml:"prefetch_depth"`

	// Concurrency bounds parallel reads per fetch.
	// Default: 4
	Concurrency int `yaml:"concurrency"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// Default: warn
	Level string `yaml:"level"`

	// Format is text, json or auto. Auto writes text to a terminal and
	// JSON otherwise.
	// Default: auto
	Format string `yaml:"format"`
}

// Default returns the default configuration. Loading a file merges
// into it.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(homeDir, ".local", "share", "thoughtcache", "thoughts.db"),
		},
		WriteQueue: WriteQueueConfig{
			Debounce: 100 * time.Millisecond,
			MaxWait:  time.Second,
			Throttle: 250 * time.Millisecond,
		},
		PullQueue: PullQueueConfig{
			BufferDepth:   2,
			PrefetchDepth: 8,
			Concurrency:   4,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by THOUGHTCACHE_CONFIG.
// It fails when the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path on top of Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges one file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is valid YAML, so one decoder handles durations for both.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Store.Path = expandVars(c.Store.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	backends := []string{BackendMemory, BackendSQLite, BackendLevelDB}
	if !slices.Contains(backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("store.backend must be one of: %v", backends))
	}
	if c.Store.Backend != BackendMemory && c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required for the %s backend", c.Store.Backend))
	}

	if c.WriteQueue.Debounce < 0 {
		errs = append(errs, errors.New("write_queue.debounce must not be negative"))
	}
	if c.WriteQueue.MaxWait < 0 {
		errs = append(errs, errors.New("write_queue.max_wait must not be negative"))
	}
	if c.WriteQueue.MaxWait > 0 && c.WriteQueue.MaxWait < c.WriteQueue.Debounce {
		errs = append(errs, fmt.Errorf("write_queue.max_wait (%s) is shorter than write_queue.debounce (%s)",
			c.WriteQueue.MaxWait, c.WriteQueue.Debounce))
	}
	if c.PullQueue.Concurrency < 0 {
		errs = append(errs, errors.New("pull_queue.concurrency must not be negative"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if formats := []string{"auto", "text", "json"}; !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of %v, got %q", formats, c.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// EnsurePaths creates the directory that will hold the store.
func (c *Config) EnsurePaths() error {
	var dir string
	switch c.Store.Backend {
	case BackendSQLite:
		dir = filepath.Dir(c.Store.Path)
	case BackendLevelDB:
		dir = c.Store.Path
	default:
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
