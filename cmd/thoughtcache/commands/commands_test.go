// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/thoughtcache/cmd/thoughtcache/cli"
)

const notes = `
- projects
  - garden
    - beds
    - compost
  - shed
- inbox
  - seeds
`

// writeConfig writes a config file for backend under a fresh
// directory and returns its path.
func writeConfig(t *testing.T, backend, storeName string) string {
	t.Helper()
	dir := t.TempDir()
	content := "store:\n" +
		"  backend: " + backend + "\n" +
		"  path: " + filepath.Join(dir, storeName) + "\n" +
		"write_queue:\n" +
		"  debounce: 1ms\n" +
		"  max_wait: 10ms\n" +
		"  throttle: -1ms\n" +
		"log:\n" +
		"  level: error\n" +
		"  format: json\n"
	path := filepath.Join(dir, "thoughtcache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs one command line against the config file and returns
// its stdout.
func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := Root(&stdout)
	root.HelpOutput = &stdout
	// Flags follow the subcommand name.
	full := append([]string{args[0], "--config", configPath}, args[1:]...)
	err := root.Execute(context.Background(), full)
	return stdout.String(), err
}

func mustExecute(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	output, err := execute(t, configPath, args...)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return output
}

func writeNotes(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte(notes), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEditFlow(t *testing.T) {
	for _, test := range []struct {
		backend string
		store   string
	}{
		{"leveldb", "thoughts"},
		{"sqlite", "thoughts.db"},
	} {
		t.Run(test.backend, func(t *testing.T) {
			configPath := writeConfig(t, test.backend, test.store)

			output := mustExecute(t, configPath, "import", writeNotes(t))
			if output != "imported 7 thoughts under /\n" {
				t.Errorf("import output = %q", output)
			}

			output = mustExecute(t, configPath, "ls")
			if output != "projects\ninbox\n" {
				t.Errorf("ls output = %q", output)
			}
			output = mustExecute(t, configPath, "ls", "--depth", "0", "projects")
			if output != "garden\n  beds\n  compost\nshed\n" {
				t.Errorf("ls --depth 0 projects output = %q", output)
			}

			mustExecute(t, configPath, "mv", "inbox/seeds", "projects/garden/seeds")
			mustExecute(t, configPath, "rename", "projects/shed", "workshop")
			mustExecute(t, configPath, "rm", "inbox")

			output = mustExecute(t, configPath, "export")
			want := "- projects\n" +
				"  - garden\n" +
				"    - beds\n" +
				"    - compost\n" +
				"    - seeds\n" +
				"  - workshop\n"
			if output != want {
				t.Errorf("export output:\n%s\nwant:\n%s", output, want)
			}

			fields := statsFields(mustExecute(t, configPath, "stats"))
			if fields["backend"] != test.backend {
				t.Errorf("stats backend = %q, want %q", fields["backend"], test.backend)
			}
			if fields["thoughts"] != "6" {
				t.Errorf("stats thoughts = %q, want 6", fields["thoughts"])
			}
			if _, ok := fields["size"]; !ok {
				t.Errorf("stats has no size line: %v", fields)
			}
		})
	}
}

// statsFields maps the first word of each stats line to the rest.
func statsFields(output string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		name, value, _ := strings.Cut(line, " ")
		fields[name] = strings.TrimSpace(value)
	}
	return fields
}

func TestImportUnderParent(t *testing.T) {
	configPath := writeConfig(t, "leveldb", "thoughts")
	mustExecute(t, configPath, "import", writeNotes(t))

	extra := filepath.Join(t.TempDir(), "extra.md")
	if err := os.WriteFile(extra, []byte("- tools\n  - rake\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := mustExecute(t, configPath, "import", "--parent", "projects/shed", extra)
	if output != "imported 2 thoughts under /projects/shed\n" {
		t.Errorf("import output = %q", output)
	}
	output = mustExecute(t, configPath, "export", "projects/shed")
	if output != "- tools\n  - rake\n" {
		t.Errorf("export output = %q", output)
	}
}

func TestLsMissingPath(t *testing.T) {
	configPath := writeConfig(t, "leveldb", "thoughts")
	mustExecute(t, configPath, "import", writeNotes(t))

	output, err := execute(t, configPath, "ls", "projects/nowhere")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("ls of a missing path: error = %v, want exit code 1", err)
	}
	if output != "/projects/nowhere: no such thought\n" {
		t.Errorf("output = %q", output)
	}
}

func TestRmMissingPath(t *testing.T) {
	configPath := writeConfig(t, "leveldb", "thoughts")
	if _, err := execute(t, configPath, "rm", "nothing/here"); err == nil {
		t.Fatal("rm of a missing path succeeded")
	}
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := Root(&stdout).Execute(context.Background(), []string{"version"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "thoughtcache ") {
		t.Errorf("version output = %q", stdout.String())
	}
}
