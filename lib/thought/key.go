// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package thought

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/thoughtcache/lib/codec"
)

// Key is the storage key of a context: a 32-byte BLAKE3 digest.
type Key [32]byte

// contextDomainKey keys the BLAKE3 hash so context keys never collide
// with digests computed for any other purpose over the same bytes.
var contextDomainKey = [32]byte{
	't', 'h', 'o', 'u', 'g', 'h', 't', 'c', 'a', 'c', 'h', 'e', '.',
	'c', 'o', 'n', 't', 'e', 'x', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Key returns the storage key for c. Contexts that differ only by a
// leading RootToken share a key.
func (c Context) Key() Key {
	encoded, err := codec.Marshal([]string(c.Normalize()))
	if err != nil {
		// A []string always encodes; failure here is a programming
		// error in the codec configuration.
		panic("thought: encoding context: " + err.Error())
	}
	hasher, err := blake3.NewKeyed(contextDomainKey[:])
	if err != nil {
		panic("thought: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(encoded)
	var key Key
	copy(key[:], hasher.Sum(nil))
	return key
}

// String returns the lowercase hex form of k.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}
