// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitestore is the SQLite storage backend. Each parent entry
// is one row keyed by its context hash.
package sqlitestore

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/thoughtcache/lib/sqlitepool"
	"github.com/bureau-foundation/thoughtcache/lib/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS parent_entries (
	key    BLOB PRIMARY KEY,
	record BLOB NOT NULL
) WITHOUT ROWID;
`

// Backend stores records in the parent_entries table.
type Backend struct {
	pool *sqlitepool.Pool
}

var _ store.Backend = (*Backend)(nil)

// Open opens (creating if needed) the database at path.
func Open(path string, logger *slog.Logger) (*Backend, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: schema,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{pool: pool}, nil
}

// Path returns the database file path.
func (b *Backend) Path() string { return b.pool.Path() }

func (b *Backend) Get(ctx context.Context, key []byte) ([]byte, error) {
	var record []byte
	err := b.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT record FROM parent_entries WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, record)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get: %w", err)
	}
	return record, nil
}

func (b *Backend) Put(ctx context.Context, key, value []byte) error {
	err := b.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO parent_entries (key, record) VALUES (?, ?)
			 ON CONFLICT (key) DO UPDATE SET record = excluded.record`,
			&sqlitex.ExecOptions{Args: []any{key, value}})
	})
	if err != nil {
		return fmt.Errorf("sqlitestore: put: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key []byte) error {
	err := b.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM parent_entries WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key},
		})
	})
	if err != nil {
		return fmt.Errorf("sqlitestore: delete: %w", err)
	}
	return nil
}

func (b *Backend) Clear(ctx context.Context) error {
	err := b.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteTransient(conn, "DELETE FROM parent_entries", nil)
	})
	if err != nil {
		return fmt.Errorf("sqlitestore: clear: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (b *Backend) Count(ctx context.Context) (int, error) {
	var count int
	err := b.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT count(*) FROM parent_entries", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: count: %w", err)
	}
	return count, nil
}

func (b *Backend) Close() error { return b.pool.Close() }
