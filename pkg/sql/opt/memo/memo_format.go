// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/util/treeprinter"
)

// String returns a dump of the memo. Groups are printed in id order, each
// followed by its members:
//
//	memo (3 groups, root G3)
//	 ├── G1: (scan a)
//	 ├── G2: (scan b)
//	 └── G3: (inner-join G1 G2 [a.x:1 = b.x:3])
func (m *Memo) String() string {
	return m.FormatMemo(nil)
}

// FormatMemo is like String, but names functions using the registry.
func (m *Memo) FormatMemo(fns scalar.FunctionRegistry) string {
	f := MakeExprFmtCtx(ExprFmtHideAll, m.metadata, fns)

	tp := treeprinter.New()
	var root treeprinter.Node
	if m.root != 0 {
		root = tp.Childf("memo (%d groups, root %s)", len(m.groups), m.root)
	} else {
		root = tp.Childf("memo (%d groups)", len(m.groups))
	}

	for _, grp := range m.groups {
		f.Buffer.Reset()
		for i, e := range grp.exprs {
			if i != 0 {
				f.Buffer.WriteByte(' ')
			}
			m.formatMExpr(&f, e)
		}
		child := root.Childf("%s: %s", grp.id, f.Buffer.String())
		m.formatBestExprSet(child, grp)
	}
	return tp.String()
}

func (m *Memo) formatMExpr(f *ExprFmtCtx, e *MExpr) {
	fmt.Fprintf(f.Buffer, "(%s", opName(e.op))
	for _, c := range e.children {
		fmt.Fprintf(f.Buffer, " %s", c)
	}
	f.formatPrivate(e.op)
	f.Buffer.WriteString(")")
}

func (m *Memo) formatBestExprSet(tp treeprinter.Node, grp *Group) {
	if len(grp.best) == 0 {
		return
	}
	keys := make([]string, 0, len(grp.best))
	for k := range grp.best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		best := grp.best[k]
		child := tp.Childf("%q", k)
		f := MakeExprFmtCtx(ExprFmtHideAll, m.metadata, nil)
		m.formatMExpr(&f, best.Expr)
		child.Childf("best: %s", f.Buffer.String())
		child.Childf("cost: %.2f", best.Cost)
	}
}
