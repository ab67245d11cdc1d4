// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package treeprinter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreePrinter(t *testing.T) {
	tree := func(n Node) {
		r := n.Child("root")
		r.AddLine("continuation")
		n1 := r.Childf("%d", 1)
		n11 := n1.Childf("%d%d", 1, 1)
		n11.Child("111")
		n11.Child("112")
		n12 := n1.Child("12")
		n12.Child("121")
		r.Child("2").Child("21")
	}

	n := New()
	tree(n)

	expected := strings.TrimLeft(`
root
continuation
 ├── 1
 │    ├── 11
 │    │    ├── 111
 │    │    └── 112
 │    └── 12
 │         └── 121
 └── 2
      └── 21
`, "\n")
	require.Equal(t, expected, n.String())
}

func TestTreePrinterMultiline(t *testing.T) {
	n := New()
	r := n.Child("root")
	r.Child("a\nb")
	r.Child("c")
	expected := "root\n ├── a\n │   b\n └── c\n"
	require.Equal(t, expected, n.String())
}
