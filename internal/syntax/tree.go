// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package syntax

import (
	"bytes"
	"strings"
)

// Tree is a parsed file.
type Tree struct {
	path     string
	root     *Node
	lines    []string
	count    int
	comments []*Node
}

// NewTree wraps a root node with the source it came from.
func NewTree(path string, src []byte, root *Node) *Tree {
	t := &Tree{
		path:  path,
		root:  root,
		lines: strings.Split(string(src), "\n"),
		count: countLines(src),
	}
	Walk(root, func(n *Node) bool {
		if n.kind == KindComment {
			t.comments = append(t.comments, n)
		}
		return true
	})
	return t
}

// Path returns the file path the tree was parsed from.
func (t *Tree) Path() string { return t.path }

// Root returns the module node.
func (t *Tree) Root() *Node { return t.root }

// LineCount returns the number of source lines.
func (t *Tree) LineCount() int { return t.count }

// Line returns the 1-based source line without its terminator, or "".
func (t *Tree) Line(n int) string {
	if n < 1 || n > len(t.lines) {
		return ""
	}
	return strings.TrimRight(t.lines[n-1], "\r")
}

// Comments returns every comment node in source order.
func (t *Tree) Comments() []*Node { return t.comments }

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
