// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outline

import (
	"math"
	"reflect"
	"testing"

	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

func TestParseNested(t *testing.T) {
	nodes := Parse(`
        - x
        - a
          - b
            - c
              - d
                - e`)
	want := []Node{
		{Value: "x"},
		{Value: "a", Children: []Node{
			{Value: "b", Children: []Node{
				{Value: "c", Children: []Node{
					{Value: "d", Children: []Node{{Value: "e"}}},
				}},
			}},
		}},
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("Parse = %+v", nodes)
	}
	if Count(nodes) != 6 {
		t.Errorf("Count = %d, want 6", Count(nodes))
	}
}

func TestParseBulletStyles(t *testing.T) {
	nodes := Parse("* one\n  + two\n1. three")
	if len(nodes) != 2 || nodes[0].Value != "one" || nodes[0].Children[0].Value != "two" || nodes[1].Value != "three" {
		t.Fatalf("Parse = %+v", nodes)
	}
}

func TestParsePlainLines(t *testing.T) {
	nodes := Parse("alpha\nbeta")
	if len(nodes) != 2 || nodes[0].Value != "alpha" || nodes[1].Value != "beta" {
		t.Fatalf("Parse = %+v", nodes)
	}
	if Parse("  \n\n ") != nil {
		t.Error("blank input produced thoughts")
	}
}

func TestParseKeepsMarkupVerbatim(t *testing.T) {
	nodes := Parse("- *bold* [link](x)")
	if len(nodes) != 1 || nodes[0].Value != "*bold* [link](x)" {
		t.Fatalf("Parse = %+v", nodes)
	}
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"shared indent", "\n    - a\n      - b\n\n", "- a\n  - b"},
		{"flush left", "- a\n  - b\n    - c", "- a\n  - b\n    - c"},
		{"blank line inside", "  - a\n     \n    - b", "- a\n\n  - b"},
		{"tabs", "\t- a\n\t\t- b", "- a\n  - b"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Dedent(test.input); got != test.want {
				t.Errorf("Dedent = %q, want %q", got, test.want)
			}
		})
	}
}

func TestParseFlushLeftNesting(t *testing.T) {
	nodes := Parse("- a\n  - b\n    - c\n- d")
	want := []Node{
		{Value: "a", Children: []Node{
			{Value: "b", Children: []Node{{Value: "c"}}},
		}},
		{Value: "d"},
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("Parse = %+v, want %+v", nodes, want)
	}
}

func TestActionsBuildTree(t *testing.T) {
	tr := tree.NewResident()
	if _, err := tr.Apply(tree.Insert{Context: thought.Root(), Value: "existing", Rank: 0}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, action := range Actions(thought.Root(), Parse("- a\n  - b\n- c")) {
		if _, err := tr.Apply(action); err != nil {
			t.Fatalf("Apply(%+v): %v", action, err)
		}
	}

	children := tr.Children(thought.Root())
	if len(children) != 3 || children[1].Value != "a" || children[1].Rank != 1 || children[2].Rank != 2 {
		t.Fatalf("root children = %+v", children)
	}
	if !tr.PathExists(thought.Context{"a", "b"}) {
		t.Error("nested thought missing")
	}
	first := Actions(thought.Root(), []Node{{Value: "v"}})[0].(tree.Insert)
	if !math.IsNaN(first.Rank) {
		t.Errorf("insert rank = %v, want NaN (append)", first.Rank)
	}
}

func TestExportRoundTrip(t *testing.T) {
	text := "- a\n  - b\n    - c\n- d\n"
	tr := tree.NewResident()
	for _, action := range Actions(thought.Root(), Parse(text)) {
		if _, err := tr.Apply(action); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if got := Export(tr.Children, thought.Root()); got != text {
		t.Errorf("Export = %q, want %q", got, text)
	}
	if got := Export(tr.Children, thought.Context{"a"}); got != "- b\n  - c\n" {
		t.Errorf("Export(a) = %q", got)
	}
}
