// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package levelstore is the LevelDB storage backend.
package levelstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bureau-foundation/thoughtcache/lib/store"
)

var contextPrefix = []byte("/context/")

// Backend stores records under /context/<key>.
type Backend struct {
	db *leveldb.DB
}

var _ store.Backend = (*Backend)(nil)

var options = &opt.Options{
	Compression: opt.NoCompression,
	Filter:      filter.NewBloomFilter(10),
}

// Open opens (creating if needed) the database in dir.
func Open(dir string) (*Backend, error) {
	db, err := leveldb.OpenFile(dir, options)
	if err != nil {
		return nil, fmt.Errorf("levelstore: opening %s: %w", dir, err)
	}
	return &Backend{db: db}, nil
}

// OpenMemory returns a backend that lives only in memory.
func OpenMemory() (*Backend, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), options)
	if err != nil {
		return nil, fmt.Errorf("levelstore: opening memory storage: %w", err)
	}
	return &Backend{db: db}, nil
}

func dbKey(key []byte) []byte {
	return append(bytes.Clone(contextPrefix), key...)
}

func (b *Backend) Get(_ context.Context, key []byte) ([]byte, error) {
	value, err := b.db.Get(dbKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("levelstore: get: %w", err)
	}
	return value, nil
}

func (b *Backend) Put(_ context.Context, key, value []byte) error {
	if err := b.db.Put(dbKey(key), value, nil); err != nil {
		return fmt.Errorf("levelstore: put: %w", err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, key []byte) error {
	if err := b.db.Delete(dbKey(key), nil); err != nil {
		return fmt.Errorf("levelstore: delete: %w", err)
	}
	return nil
}

func (b *Backend) Clear(context.Context) error {
	iter := b.db.NewIterator(util.BytesPrefix(contextPrefix), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(bytes.Clone(iter.Key()))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("levelstore: scanning: %w", err)
	}
	if err := b.db.Write(batch, nil); err != nil {
		return fmt.Errorf("levelstore: clear: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (b *Backend) Count(context.Context) (int, error) {
	iter := b.db.NewIterator(util.BytesPrefix(contextPrefix), nil)
	defer iter.Release()
	count := 0
	for iter.Next() {
		count++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("levelstore: count: %w", err)
	}
	return count, nil
}

func (b *Backend) Close() error { return b.db.Close() }
