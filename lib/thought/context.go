// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package thought

import (
	"slices"
	"strings"
)

// RootToken is the reserved value naming the root context. A context
// may be written with or without it as its first element; both forms
// address the same thought.
const RootToken = "__ROOT__"

// Context is the ordered sequence of values from the root to a
// thought, excluding the thought itself.
type Context []string

// Root returns the root context.
func Root() Context { return Context{} }

// ParseContext splits a slash-separated path ("a/b/c") into a
// context. An empty string, "/" and RootToken parse to the root.
func ParseContext(path string) Context {
	path = strings.Trim(path, "/")
	if path == "" {
		return Root()
	}
	return Context(strings.Split(path, "/")).Normalize()
}

// Normalize returns the context without a leading RootToken. The
// result never aliases c.
func (c Context) Normalize() Context {
	if len(c) > 0 && c[0] == RootToken {
		c = c[1:]
	}
	return slices.Clip(slices.Clone(c))
}

// IsRoot reports whether c addresses the root.
func (c Context) IsRoot() bool {
	return len(c) == 0 || (len(c) == 1 && c[0] == RootToken)
}

// Depth is the number of values below the root. The root has depth 0.
func (c Context) Depth() int {
	return len(c.Normalize())
}

// Child returns the context of the children of the thought named
// value in c.
func (c Context) Child(value string) Context {
	n := c.Normalize()
	return append(n, value)
}

// Parent splits c into the context holding it and its last value.
// ok is false for the root.
func (c Context) Parent() (parent Context, value string, ok bool) {
	n := c.Normalize()
	if len(n) == 0 {
		return nil, "", false
	}
	return n[: len(n)-1 : len(n)-1], n[len(n)-1], true
}

// Equal reports whether c and other address the same context.
func (c Context) Equal(other Context) bool {
	return slices.Equal(c.Normalize(), other.Normalize())
}

// HasPrefix reports whether prefix is c or an ancestor of c.
func (c Context) HasPrefix(prefix Context) bool {
	n, p := c.Normalize(), prefix.Normalize()
	return len(n) >= len(p) && slices.Equal(n[:len(p)], p)
}

// Rebase replaces the prefix from with to. ok is false when from is
// not a prefix of c, in which case c is returned unchanged.
func (c Context) Rebase(from, to Context) (Context, bool) {
	if !c.HasPrefix(from) {
		return c, false
	}
	n := c.Normalize()
	rebased := to.Normalize()
	return append(rebased, n[len(from.Normalize()):]...), true
}

// ID is a compact string form of c suitable as a map key. Every value
// is prefixed with a NUL byte so the root (""), a child named "" and
// nested values never collide.
func (c Context) ID() string {
	var builder strings.Builder
	for _, value := range c.Normalize() {
		builder.WriteByte(0)
		builder.WriteString(value)
	}
	return builder.String()
}

// String renders c as a slash-separated path with the root token in
// front, e.g. "__ROOT__/a/b".
func (c Context) String() string {
	return strings.Join(append(Context{RootToken}, c.Normalize()...), "/")
}
