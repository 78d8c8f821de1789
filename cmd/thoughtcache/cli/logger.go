// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/thoughtcache/lib/config"
)

// NewLogger creates the process logger from the log configuration.
// With format "auto", a terminal on w gets slog.TextHandler output and
// anything else (pipes, files, CI) gets slog.JSONHandler.
//
// Callers scope the logger with command context via With():
//
//	logger, err := cli.NewLogger(cfg.Log, os.Stderr)
//	...
//	logger = logger.With("command", "import")
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}

	text := cfg.Format == "text"
	if cfg.Format == "auto" {
		file, ok := w.(*os.File)
		text = ok && term.IsTerminal(int(file.Fd()))
	}
	if text {
		return slog.New(slog.NewTextHandler(w, options)), nil
	}
	return slog.New(slog.NewJSONHandler(w, options)), nil
}
