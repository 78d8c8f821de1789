// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("expected backend=sqlite, got %s", cfg.Store.Backend)
	}
	if filepath.Base(cfg.Store.Path) != "thoughts.db" {
		t.Errorf("expected path to end in thoughts.db, got %s", cfg.Store.Path)
	}
	if cfg.WriteQueue.Debounce != 100*time.Millisecond {
		t.Errorf("expected debounce=100ms, got %s", cfg.WriteQueue.Debounce)
	}
	if cfg.PullQueue.BufferDepth != 2 {
		t.Errorf("expected buffer_depth=2, got %d", cfg.PullQueue.BufferDepth)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when THOUGHTCACHE_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "THOUGHTCACHE_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestLoad_WithEnvVar(t *testing.T) {
	path := writeConfig(t, "thoughtcache.yaml", `
store:
  backend: leveldb
  path: /test/thoughts
`)
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Store.Backend != BackendLevelDB || cfg.Store.Path != "/test/thoughts" {
		t.Errorf("store = %+v", cfg.Store)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeConfig(t, "thoughtcache.yaml", `
write_queue:
  debounce: 50ms
  throttle: -1s
pull_queue:
  buffer_depth: 3
  prefetch_depth: -1
log:
  level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.WriteQueue.Debounce != 50*time.Millisecond {
		t.Errorf("expected debounce=50ms, got %s", cfg.WriteQueue.Debounce)
	}
	if cfg.WriteQueue.Throttle != -time.Second {
		t.Errorf("expected throttle=-1s, got %s", cfg.WriteQueue.Throttle)
	}
	// Unset fields keep their defaults.
	if cfg.WriteQueue.MaxWait != time.Second {
		t.Errorf("expected max_wait=1s, got %s", cfg.WriteQueue.MaxWait)
	}
	if cfg.PullQueue.BufferDepth != 3 || cfg.PullQueue.PrefetchDepth != -1 || cfg.PullQueue.Concurrency != 4 {
		t.Errorf("pull_queue = %+v", cfg.PullQueue)
	}
	if level, err := cfg.Log.SlogLevel(); err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "thoughtcache.jsonc", `{
  // Ephemeral store for demos.
  "store": {"backend": "memory"},
  "write_queue": {"max_wait": "2s",},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("expected backend=memory, got %s", cfg.Store.Backend)
	}
	if cfg.WriteQueue.MaxWait != 2*time.Second {
		t.Errorf("expected max_wait=2s, got %s", cfg.WriteQueue.MaxWait)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	path := writeConfig(t, "bad.yaml", "write_queue:\n  debounce: soon\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for an unparseable duration")
	}
}

func TestLoadFile_ExpandsPath(t *testing.T) {
	t.Setenv("THOUGHTCACHE_TEST_DIR", "/data")
	path := writeConfig(t, "thoughtcache.yaml", `
store:
  path: ${THOUGHTCACHE_TEST_DIR}/thoughts.db
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Store.Path != "/data/thoughts.db" {
		t.Errorf("expected path=/data/thoughts.db, got %s", cfg.Store.Path)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/thoughts",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/thoughts",
		},
		{
			input:    "${THOUGHTCACHE_UNSET_FOR_TEST:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "memory backend needs no path",
			modify: func(c *Config) {
				c.Store.Backend = BackendMemory
				c.Store.Path = ""
			},
			wantErr: false,
		},
		{
			name: "unknown backend",
			modify: func(c *Config) {
				c.Store.Backend = "postgres"
			},
			wantErr: true,
		},
		{
			name: "sqlite without path",
			modify: func(c *Config) {
				c.Store.Path = ""
			},
			wantErr: true,
		},
		{
			name: "max wait shorter than debounce",
			modify: func(c *Config) {
				c.WriteQueue.MaxWait = 10 * time.Millisecond
			},
			wantErr: true,
		},
		{
			name: "negative throttle disables",
			modify: func(c *Config) {
				c.WriteQueue.Throttle = -1
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "chatty"
			},
			wantErr: true,
		},
		{
			name: "invalid log format",
			modify: func(c *Config) {
				c.Log.Format = "xml"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Store.Path = filepath.Join(tmpDir, "nested", "thoughts.db")
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}
	if info, err := os.Stat(filepath.Join(tmpDir, "nested")); err != nil || !info.IsDir() {
		t.Errorf("expected sqlite parent directory to exist: %v", err)
	}

	cfg.Store.Backend = BackendLevelDB
	cfg.Store.Path = filepath.Join(tmpDir, "level")
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}
	if info, err := os.Stat(cfg.Store.Path); err != nil || !info.IsDir() {
		t.Errorf("expected leveldb directory to exist: %v", err)
	}
}
