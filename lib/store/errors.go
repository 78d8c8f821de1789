// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import "errors"

var (
	// ErrStorageUnavailable wraps every failure reported by a backend.
	ErrStorageUnavailable = errors.New("store: storage unavailable")

	// ErrCorruptRecord is returned when a record cannot be decoded or
	// names a different context than the one it is stored under.
	ErrCorruptRecord = errors.New("store: corrupt record")
)
