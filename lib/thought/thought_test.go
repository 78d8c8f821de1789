// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package thought

import (
	"slices"
	"testing"
)

func TestRootForms(t *testing.T) {
	forms := []Context{nil, {}, {RootToken}, ParseContext(""), ParseContext("/"), ParseContext(RootToken)}
	for _, form := range forms {
		if !form.IsRoot() {
			t.Errorf("%#v: IsRoot() = false", form)
		}
		if form.Key() != Root().Key() {
			t.Errorf("%#v: key differs from Root()", form)
		}
		if form.ID() != "" {
			t.Errorf("%#v: ID() = %q, want empty", form, form.ID())
		}
	}
}

func TestContextKeyIgnoresRootToken(t *testing.T) {
	if (Context{RootToken, "a", "b"}).Key() != (Context{"a", "b"}).Key() {
		t.Error("leading root token changed the key")
	}
	if (Context{"a", "b"}).Key() == (Context{"b", "a"}).Key() {
		t.Error("distinct contexts share a key")
	}
	if (Context{"ab"}).Key() == (Context{"a", "b"}).Key() {
		t.Error("value boundaries are not part of the key")
	}
}

func TestContextIDDistinguishesEmptyValues(t *testing.T) {
	ids := map[string]Context{}
	for _, c := range []Context{{}, {""}, {"", ""}, {"a"}, {"a", ""}} {
		id := c.ID()
		if previous, ok := ids[id]; ok {
			t.Errorf("%#v and %#v share ID %q", previous, c, id)
		}
		ids[id] = c
	}
}

func TestChildAndParent(t *testing.T) {
	c := Context{RootToken, "a"}
	child := c.Child("b")
	if !slices.Equal(child, Context{"a", "b"}) {
		t.Fatalf("Child = %#v", child)
	}
	parent, value, ok := child.Parent()
	if !ok || value != "b" || !parent.Equal(Context{"a"}) {
		t.Errorf("Parent() = %#v, %q, %v", parent, value, ok)
	}
	if _, _, ok := Root().Parent(); ok {
		t.Error("root has a parent")
	}

	// Appending to the parent must not clobber the child's storage.
	_ = parent.Child("z")
	if child[1] != "b" {
		t.Errorf("child context aliased by parent: %#v", child)
	}
}

func TestRebase(t *testing.T) {
	rebased, ok := Context{"a", "b", "c"}.Rebase(Context{"a"}, Context{"x", "a"})
	if !ok || !slices.Equal(rebased, Context{"x", "a", "b", "c"}) {
		t.Errorf("Rebase = %#v, %v", rebased, ok)
	}
	unchanged, ok := Context{"m"}.Rebase(Context{"a"}, Context{"b"})
	if ok || !slices.Equal(unchanged, Context{"m"}) {
		t.Errorf("Rebase of unrelated context = %#v, %v", unchanged, ok)
	}
	if !(Context{"a", "b"}).HasPrefix(Root()) {
		t.Error("every context has the root as prefix")
	}
}

func TestPathRebaseKeepsSuffixRanks(t *testing.T) {
	path := Path{{Value: "a", Rank: 1}, {Value: "b", Rank: 2}, {Value: "c", Rank: 3}}
	rebased := path.Rebase(Context{"a"}, Context{"x", "a!"})
	if !slices.Equal(rebased.Values(), Context{"x", "a!", "b", "c"}) {
		t.Fatalf("values = %#v", rebased.Values())
	}
	if rebased.Last().Rank != 3 || rebased[2].Rank != 2 {
		t.Errorf("ranks not kept: %+v", rebased)
	}
	if !rebased.Context().Equal(Context{"x", "a!", "b"}) {
		t.Errorf("Context() = %#v", rebased.Context())
	}
}

func TestParseContext(t *testing.T) {
	if got := ParseContext("/a/b/"); !slices.Equal(got, Context{"a", "b"}) {
		t.Errorf("ParseContext = %#v", got)
	}
	if got := ParseContext(RootToken + "/a"); !slices.Equal(got, Context{"a"}) {
		t.Errorf("ParseContext with root token = %#v", got)
	}
	if got := (Context{"a", "b"}).String(); got != RootToken+"/a/b" {
		t.Errorf("String() = %q", got)
	}
}

func TestRanks(t *testing.T) {
	if RankAfter(nil) != 0 {
		t.Error("RankAfter(nil) != 0")
	}
	children := []Child{{Value: "a", Rank: 0}, {Value: "b", Rank: 2.5}}
	if got := RankAfter(children); got != 3 {
		t.Errorf("RankAfter = %v, want 3", got)
	}
	between := RankBetween(0, 1)
	if between <= 0 || between >= 1 {
		t.Errorf("RankBetween(0, 1) = %v", between)
	}
}

func TestParentEntryHelpers(t *testing.T) {
	entry := &ParentEntry{
		Context:  []string{"a"},
		Children: []StoredChild{{Value: "m", Rank: 0}, {Value: "b", Rank: 1, HasPendingDescendants: true}},
	}
	if !slices.Equal(entry.Values(), []string{"m", "b"}) {
		t.Errorf("Values = %v", entry.Values())
	}
	child, ok := entry.Child("b")
	if !ok || !child.HasPendingDescendants {
		t.Errorf("Child(b) = %+v, %v", child, ok)
	}
	clone := entry.Clone()
	clone.Children[0].Value = "changed"
	if entry.Children[0].Value != "m" {
		t.Error("Clone shares children storage")
	}
	var missing *ParentEntry
	if missing.Values() != nil || missing.Clone() != nil {
		t.Error("nil entry helpers should return nil")
	}
}
