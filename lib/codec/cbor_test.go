// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleChild struct {
	Value string  `cbor:"value"`
	Rank  float64 `cbor:"rank"`
	More  bool    `cbor:"more,omitempty"`
}

type sampleEntry struct {
	Context  []string      `cbor:"context"`
	Children []sampleChild `cbor:"children"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleEntry{
		Context: []string{"a", "b"},
		Children: []sampleChild{
			{Value: "c", Rank: 0},
			{Value: "d", Rank: 1.5, More: true},
		},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleEntry
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(decoded.Children) != 2 || decoded.Children[1] != original.Children[1] {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	entry := sampleEntry{Context: []string{"x"}, Children: []sampleChild{{Value: "y", Rank: 2}}}

	first, err := Marshal(entry)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(entry)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestNilAndEmptySlicesEncodeIdentically(t *testing.T) {
	nilData, err := Marshal([]string(nil))
	if err != nil {
		t.Fatalf("Marshal nil: %v", err)
	}
	emptyData, err := Marshal([]string{})
	if err != nil {
		t.Fatalf("Marshal empty: %v", err)
	}
	if !bytes.Equal(nilData, emptyData) {
		t.Errorf("nil slice encodes as %x, empty slice as %x", nilData, emptyData)
	}
}

func TestUnmarshalRejectsTrailingBytes(t *testing.T) {
	data, err := Marshal(sampleEntry{Context: []string{"a"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	data = append(data, 0x00)

	var decoded sampleEntry
	if err := Unmarshal(data, &decoded); err == nil {
		t.Error("expected error for trailing bytes")
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var decoded sampleEntry
	if err := Unmarshal([]byte{0xff, 0xfe, 0xfd}, &decoded); err == nil {
		t.Error("expected error for invalid CBOR")
	}
	if Valid([]byte{0xff, 0xfe, 0xfd}) {
		t.Error("Valid accepted malformed input")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleChild{Value: "a", Rank: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"value"`) {
		t.Errorf("Diagnose output missing field name: %s", notation)
	}
}
