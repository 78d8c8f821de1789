// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite connection pool behind the
// sqlite storage backend.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection
// gets the same pragmas before first use:
//
//   - journal_mode=WAL: pull-queue reads never wait for a flush.
//   - synchronous=NORMAL: a flushed entry survives a process crash.
//   - busy_timeout=5000: concurrent flushes from two processes wait
//     for the write lock instead of failing with SQLITE_BUSY.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - temp_store=MEMORY.
//
// Config.Schema, when set, runs on every new connection after the
// pragmas and must therefore be idempotent (CREATE ... IF NOT EXISTS).
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/thoughtcache/thoughts.db",
//	    Schema: schema,
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.With(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "SELECT 1", nil)
//	})
//
// Connections are not safe for concurrent use; [Pool.Take] and
// [Pool.Put] hand one to a single goroutine at a time.
package sqlitepool
