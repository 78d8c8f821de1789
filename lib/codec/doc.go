// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for every record the
// cache persists.
//
// Parent entries are stored as CBOR rather than JSON because storage
// keys are derived from the encoded bytes of a context: the encoder
// uses Core Deterministic Encoding (RFC 8949 §4.2), so the same
// logical value always produces the same bytes and therefore the same
// key.
//
//	data, err := codec.Marshal(entry)
//	err = codec.Unmarshal(data, &entry)
//
// Decoding is strict about structure (duplicate map keys and trailing
// bytes are rejected) so that a damaged record surfaces as an error
// instead of a silently truncated child list. Unknown fields are
// ignored for forward compatibility.
package codec
