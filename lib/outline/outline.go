// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package outline converts between indented text outlines and thought
// subtrees.
//
// Parse accepts any Markdown list syntax ("-", "*", "+" or numbered
// bullets, two or more spaces of nesting) and ignores indentation
// common to every line, so outlines pasted from indented source text
// parse the same as flush-left ones. Lines outside a list become
// childless thoughts.
package outline

import (
	"math"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/bureau-foundation/thoughtcache/lib/thought"
	"github.com/bureau-foundation/thoughtcache/lib/tree"
)

// Node is one parsed thought and its subtree.
type Node struct {
	Value    string
	Children []Node
}

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New()
	})
	return markdown
}

// Parse reads an outline.
func Parse(input string) []Node {
	source := []byte(Dedent(input))
	if len(source) == 0 {
		return nil
	}
	document := parser().Parser().Parse(text.NewReader(source))
	return blockNodes(document, source)
}

func blockNodes(parent ast.Node, source []byte) []Node {
	var nodes []Node
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case ast.KindList:
			nodes = append(nodes, listNodes(child, source)...)
		case ast.KindParagraph, ast.KindTextBlock:
			for _, line := range lines(child, source) {
				nodes = append(nodes, Node{Value: line})
			}
		}
	}
	return nodes
}

func listNodes(list ast.Node, source []byte) []Node {
	var nodes []Node
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var node Node
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			switch child.Kind() {
			case ast.KindParagraph, ast.KindTextBlock:
				// Lazy continuation lines belong to the same thought.
				value := strings.Join(lines(child, source), " ")
				if node.Value == "" {
					node.Value = value
				} else {
					node.Children = append(node.Children, Node{Value: value})
				}
			case ast.KindList:
				node.Children = append(node.Children, listNodes(child, source)...)
			}
		}
		if node.Value == "" && len(node.Children) == 0 {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func lines(block ast.Node, source []byte) []string {
	segments := block.Lines()
	out := make([]string, 0, segments.Len())
	for i := range segments.Len() {
		segment := segments.At(i)
		if line := strings.TrimSpace(string(segment.Value(source))); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Dedent removes leading and trailing blank lines and the indentation
// shared by every non-blank line.
func Dedent(input string) string {
	all := strings.Split(strings.ReplaceAll(input, "\t", "  "), "\n")
	start, end := 0, len(all)
	for start < end && strings.TrimSpace(all[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(all[end-1]) == "" {
		end--
	}
	body := all[start:end]

	common := -1
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " "))
		if common < 0 || indent < common {
			common = indent
		}
	}
	for i, line := range body {
		switch {
		case strings.TrimSpace(line) == "":
			body[i] = ""
		case common > 0:
			body[i] = line[common:]
		}
	}
	return strings.Join(body, "\n")
}

// Actions returns the inserts that add nodes under parent, parents
// before their children. Every insert appends after the existing
// siblings at the time it applies.
func Actions(parent thought.Context, nodes []Node) []tree.Action {
	var actions []tree.Action
	var walk func(c thought.Context, nodes []Node)
	walk = func(c thought.Context, nodes []Node) {
		for _, node := range nodes {
			actions = append(actions, tree.Insert{Context: c, Value: node.Value, Rank: math.NaN()})
			walk(c.Child(node.Value), node.Children)
		}
	}
	walk(parent.Normalize(), nodes)
	return actions
}

// Count returns the number of thoughts in nodes, descendants included.
func Count(nodes []Node) int {
	total := 0
	for _, node := range nodes {
		total += 1 + Count(node.Children)
	}
	return total
}

// Export renders the subtree below c as a "- value" outline with two
// spaces of indentation per level. children supplies the children of
// a context in rank order.
func Export(children func(thought.Context) []thought.Child, c thought.Context) string {
	var builder strings.Builder
	var walk func(c thought.Context, depth int)
	walk = func(c thought.Context, depth int) {
		for _, child := range children(c) {
			builder.WriteString(strings.Repeat("  ", depth))
			builder.WriteString("- ")
			builder.WriteString(child.Value)
			builder.WriteByte('\n')
			walk(c.Child(child.Value), depth+1)
		}
	}
	walk(c.Normalize(), 0)
	return builder.String()
}
