// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package treeprinter

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	edgeLinkChr = " ├── "
	edgeLastChr = " └── "
	edgeLink    = " │   "
	edgeEmpty   = "     "
)

// Node is a handle associated with a specific depth in a tree. See below for
// sample usage.
type Node struct {
	tree *tree
	idx  int
}

type tree struct {
	nodes []node
}

type node struct {
	lines    []string
	children []int
}

// New creates a tree printer and returns a sentinel node reference which
// should be used to add the root. Sample usage:
//
//	tp := New()
//	root := tp.Child("root")
//	root.Child("child-1")
//	root.Child("child-2").Child("grandchild")
//	root.Child("child-3")
//
//	fmt.Print(tp.String())
//
// Output:
//
//	root
//	 ├── child-1
//	 ├── child-2
//	 │    └── grandchild
//	 └── child-3
//
// Note that the Child calls can't be rearranged arbitrarily; they have
// to be in the order they need to be displayed (depth-first pre-order).
func New() Node {
	t := &tree{nodes: []node{{}}}
	return Node{tree: t, idx: 0}
}

// Child adds a node as a child of the given node.
func (n Node) Child(text string) Node {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	n.tree.nodes = append(n.tree.nodes, node{lines: lines})
	idx := len(n.tree.nodes) - 1
	n.tree.nodes[n.idx].children = append(n.tree.nodes[n.idx].children, idx)
	return Node{tree: n.tree, idx: idx}
}

// Childf adds a node as a child of the given node.
func (n Node) Childf(format string, args ...interface{}) Node {
	return n.Child(fmt.Sprintf(format, args...))
}

// AddLine adds a new line to a node without an edge.
func (n Node) AddLine(text string) {
	n.tree.nodes[n.idx].lines = append(n.tree.nodes[n.idx].lines, text)
}

// String returns the tree as a string.
func (n Node) String() string {
	var buf bytes.Buffer
	for _, c := range n.tree.nodes[n.idx].children {
		nd := &n.tree.nodes[c]
		for _, l := range nd.lines {
			buf.WriteString(l)
			buf.WriteByte('\n')
		}
		n.tree.format(&buf, c, "")
	}
	return buf.String()
}

func (t *tree) format(buf *bytes.Buffer, idx int, prefix string) {
	children := t.nodes[idx].children
	for i, c := range children {
		last := i == len(children)-1
		edge, cont := edgeLinkChr, edgeLink
		if last {
			edge, cont = edgeLastChr, edgeEmpty
		}
		for j, l := range t.nodes[c].lines {
			if j == 0 {
				buf.WriteString(prefix + edge + l)
			} else {
				buf.WriteString(prefix + cont + l)
			}
			buf.WriteByte('\n')
		}
		t.format(buf, c, prefix+cont)
	}
}
