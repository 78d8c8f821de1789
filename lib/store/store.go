// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/thoughtcache/lib/codec"
	"github.com/bureau-foundation/thoughtcache/lib/thought"
)

// Adapter reads and writes parent entries.
type Adapter interface {
	// GetContext returns the entry for c, or nil when c has no record.
	GetContext(ctx context.Context, c thought.Context) (*thought.ParentEntry, error)

	// SetContext stores entry as the record for c. A nil or empty
	// entry deletes the record.
	SetContext(ctx context.Context, c thought.Context, entry *thought.ParentEntry) error

	// DeleteContext removes the record for c. Deleting a missing
	// record succeeds.
	DeleteContext(ctx context.Context, c thought.Context) error

	// ClearAll removes every record.
	ClearAll(ctx context.Context) error
}

// Backend is a byte key-value store. Get returns (nil, nil) for a
// missing key. Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Put(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Clear(ctx context.Context) error
	Close() error
}

// Store is the codec-backed Adapter over a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

var _ Adapter = (*Store)(nil)

// New returns a Store on backend. A nil logger discards.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{backend: backend, logger: logger}
}

func (s *Store) GetContext(ctx context.Context, c thought.Context) (*thought.ParentEntry, error) {
	key := c.Key()
	data, err := s.backend.Get(ctx, key[:])
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w: %w", c, ErrStorageUnavailable, err)
	}
	if data == nil {
		return nil, nil
	}
	var entry thought.ParentEntry
	if err := codec.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("store: decoding %s (key %s): %w: %w", c, key, ErrCorruptRecord, err)
	}
	if named := thought.Context(entry.Context); !named.Equal(c) {
		return nil, fmt.Errorf("store: record %s names %s, not %s: %w", key, named, c, ErrCorruptRecord)
	}
	return &entry, nil
}

func (s *Store) SetContext(ctx context.Context, c thought.Context, entry *thought.ParentEntry) error {
	if entry == nil || len(entry.Children) == 0 {
		return s.DeleteContext(ctx, c)
	}
	record := *entry
	record.Context = c.Normalize()
	data, err := codec.Marshal(&record)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", c, err)
	}
	key := c.Key()
	if err := s.backend.Put(ctx, key[:], data); err != nil {
		return fmt.Errorf("store: writing %s: %w: %w", c, ErrStorageUnavailable, err)
	}
	s.logger.Debug("record written", "context", c.String(), "children", len(record.Children), "bytes", len(data))
	return nil
}

func (s *Store) DeleteContext(ctx context.Context, c thought.Context) error {
	key := c.Key()
	if err := s.backend.Delete(ctx, key[:]); err != nil {
		return fmt.Errorf("store: deleting %s: %w: %w", c, ErrStorageUnavailable, err)
	}
	s.logger.Debug("record deleted", "context", c.String())
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.backend.Clear(ctx); err != nil {
		return fmt.Errorf("store: clearing: %w: %w", ErrStorageUnavailable, err)
	}
	s.logger.Info("store cleared")
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
