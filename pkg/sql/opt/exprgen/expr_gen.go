// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package exprgen builds relational expression trees from a compact
// s-expression syntax, for tests and tools. For example:
//
//	(filter (gt a.x 1)
//	  (inner-join (eq a.x b.x) (scan a) (scan b)))
//
// Relational forms:
//
//	(scan TABLE [ALIAS])
//	(filter PRED INPUT)
//	(inner-join|left-join|semi-join|anti-join ON LEFT RIGHT)
//	(cross-join LEFT RIGHT)
//	(project (COL...) INPUT)
//	(sort (+COL|-COL...) INPUT)
//	(limit N [OFFSET] INPUT)
//	(aggregate (GROUPCOL...) ((NAME AGG [COL])...) INPUT)
//	(eval-scalar ((NAME SCALAR)...) INPUT)
//	(union-all LEFT RIGHT)
//	(exchange serial|random|broadcast|(hash COL...) INPUT)
//
// Scalar forms are column references (x or a.x), constants (1, 1.5, "str",
// true, false, null), comparisons (eq, ne, lt, le, gt, ge), and, or, not,
// is-null, and calls of functions known to the function registry, e.g.
// (plus a.x 1).
package exprgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/cat"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
)

// Build parses the input and builds the relational expression it describes.
// Tables are resolved through the catalog and added to the metadata.
func Build(
	ctx context.Context,
	catalog cat.Catalog,
	md *opt.Metadata,
	fns scalar.FunctionRegistry,
	input string,
) (_ *memo.SExpr, err error) {
	n, err := parse(input)
	if err != nil {
		return nil, err
	}
	b := builder{ctx: ctx, catalog: catalog, md: md, fns: fns}
	defer b.catch(&err)
	return b.buildRel(n), nil
}

// BuildScalar builds a scalar expression whose column references are
// resolved against cols.
func BuildScalar(
	md *opt.Metadata, fns scalar.FunctionRegistry, cols opt.ColSet, input string,
) (_ scalar.Expr, err error) {
	n, err := parse(input)
	if err != nil {
		return nil, err
	}
	b := builder{md: md, fns: fns}
	defer b.catch(&err)
	return b.buildScalar(n, cols), nil
}

// BuildRequired builds required physical properties from a list of
// properties, resolving columns against cols:
//
//	((ordering +a.x -a.y) (distribution hash a.x))
func BuildRequired(md *opt.Metadata, cols opt.ColSet, input string) (_ *physical.Required, err error) {
	n, err := parse(input)
	if err != nil {
		return nil, err
	}
	b := builder{md: md}
	defer b.catch(&err)
	if !n.isList() {
		b.errorf(n, "expected a list of properties")
	}
	required := &physical.Required{}
	for _, prop := range n.list {
		switch prop.head() {
		case "ordering":
			required.Ordering = b.buildOrdering(&node{pos: prop.pos, list: prop.list[1:]}, cols)
		case "distribution":
			b.expectArgs(prop, 1, -1)
			required.Distribution = b.buildDistribution(prop.list[1], prop.list[2:], cols)
		default:
			b.errorf(prop, "unknown physical property %s", prop)
		}
	}
	return required, nil
}

// builderError wraps errors raised while building, so that they can be told
// apart from other panics.
type builderError struct {
	error
}

type builder struct {
	ctx     context.Context
	catalog cat.Catalog
	md      *opt.Metadata
	fns     scalar.FunctionRegistry
}

func (b *builder) catch(err *error) {
	if r := recover(); r != nil {
		bldErr, ok := r.(builderError)
		if !ok {
			panic(r)
		}
		*err = bldErr.error
	}
}

func (b *builder) errorf(n *node, format string, args ...interface{}) {
	panic(builderError{errors.Newf("%s: %s", n.pos, fmt.Sprintf(format, args...))})
}

// expectArgs checks the number of list elements after the head. A negative
// max means there is no upper bound.
func (b *builder) expectArgs(n *node, minArgs, maxArgs int) {
	args := len(n.list) - 1
	if args < minArgs || (maxArgs >= 0 && args > maxArgs) {
		b.errorf(n, "wrong number of arguments to %s", n.head())
	}
}

func (b *builder) buildRel(n *node) *memo.SExpr {
	name := n.head()
	if name == "" {
		b.errorf(n, "expected a relational expression, found %s", n)
	}
	if typ, ok := memo.JoinTypeByName(name); ok {
		return b.buildJoin(n, typ)
	}

	switch name {
	case "scan":
		b.expectArgs(n, 1, 2)
		return b.buildScan(n)

	case "filter":
		b.expectArgs(n, 2, 2)
		input := b.buildRel(n.list[2])
		pred := b.buildScalar(n.list[1], input.OutputCols())
		return memo.NewSExpr(&memo.FilterOp{Predicate: pred}, input)

	case "project":
		b.expectArgs(n, 2, 2)
		input := b.buildRel(n.list[2])
		cols := b.buildColList(n.list[1], input.OutputCols())
		return memo.NewSExpr(&memo.ProjectOp{Cols: cols.ToSet()}, input)

	case "sort":
		b.expectArgs(n, 2, 2)
		input := b.buildRel(n.list[2])
		return memo.NewSExpr(&memo.SortOp{Ordering: b.buildOrdering(n.list[1], input.OutputCols())}, input)

	case "limit":
		b.expectArgs(n, 2, 3)
		op := &memo.LimitOp{Limit: b.buildUint(n.list[1])}
		if len(n.list) == 4 {
			op.Offset = b.buildUint(n.list[2])
		}
		return memo.NewSExpr(op, b.buildRel(n.list[len(n.list)-1]))

	case "aggregate":
		b.expectArgs(n, 3, 3)
		return b.buildAggregate(n)

	case "eval-scalar":
		b.expectArgs(n, 2, 2)
		return b.buildEvalScalar(n)

	case "union-all":
		b.expectArgs(n, 2, 2)
		return b.buildUnionAll(n)

	case "exchange":
		b.expectArgs(n, 2, 2)
		input := b.buildRel(n.list[2])
		dist := n.list[1]
		var d physical.Distribution
		if dist.isList() {
			if len(dist.list) == 0 {
				b.errorf(dist, "expected a distribution")
			}
			d = b.buildDistribution(dist.list[0], dist.list[1:], input.OutputCols())
		} else {
			d = b.buildDistribution(dist, nil, input.OutputCols())
		}
		return memo.NewSExpr(&memo.ExchangeOp{Distribution: d}, input)
	}

	b.errorf(n, "unknown operator %s", name)
	return nil
}

func (b *builder) buildScan(n *node) *memo.SExpr {
	if !n.list[1].isIdent() {
		b.errorf(n.list[1], "expected a table name")
	}
	tab, err := b.catalog.ResolveTable(b.ctx, n.list[1].text)
	if err != nil {
		panic(builderError{err})
	}
	alias := ""
	if len(n.list) == 3 {
		if !n.list[2].isIdent() {
			b.errorf(n.list[2], "expected a table alias")
		}
		alias = n.list[2].text
	}
	tabID := b.md.AddTable(tab, alias)
	return memo.NewSExpr(&memo.ScanOp{Table: tabID, Cols: b.md.TableMeta(tabID).Columns()})
}

func (b *builder) buildJoin(n *node, typ memo.JoinType) *memo.SExpr {
	if typ == memo.CrossJoin {
		b.expectArgs(n, 2, 2)
		return memo.NewSExpr(&memo.JoinOp{Type: typ},
			b.buildRel(n.list[1]), b.buildRel(n.list[2]))
	}
	b.expectArgs(n, 3, 3)
	left, right := b.buildRel(n.list[2]), b.buildRel(n.list[3])
	on := b.buildScalar(n.list[1], left.OutputCols().Union(right.OutputCols()))
	return memo.NewSExpr(&memo.JoinOp{Type: typ, On: on}, left, right)
}

func (b *builder) buildAggregate(n *node) *memo.SExpr {
	input := b.buildRel(n.list[3])
	inCols := input.OutputCols()
	op := &memo.AggregateOp{GroupingCols: b.buildColList(n.list[1], inCols).ToSet()}
	b.expectList(n.list[2])
	for _, item := range n.list[2].list {
		if !item.isList() || len(item.list) < 2 || len(item.list) > 3 ||
			!item.list[0].isIdent() || !item.list[1].isIdent() {
			b.errorf(item, "expected (NAME AGG [COL]), found %s", item)
		}
		fn, ok := scalar.AggFuncByName(item.list[1].text)
		if !ok {
			b.errorf(item.list[1], "unknown aggregate %s", item.list[1].text)
		}
		agg := memo.AggregateItem{Func: fn}
		if len(item.list) == 3 {
			agg.Arg = b.resolveColumn(item.list[2], inCols)
		}
		if (fn == scalar.CountRows) != (agg.Arg == 0) {
			b.errorf(item, "wrong number of arguments to %s", fn)
		}
		agg.Col = b.md.AddColumn(item.list[0].text)
		op.Aggregations = append(op.Aggregations, agg)
	}
	return memo.NewSExpr(op, input)
}

func (b *builder) buildEvalScalar(n *node) *memo.SExpr {
	input := b.buildRel(n.list[2])
	b.expectList(n.list[1])
	op := &memo.EvalScalarOp{}
	for _, item := range n.list[1].list {
		if !item.isList() || len(item.list) != 2 || !item.list[0].isIdent() {
			b.errorf(item, "expected (NAME SCALAR), found %s", item)
		}
		e := b.buildScalar(item.list[1], input.OutputCols())
		op.Items = append(op.Items, memo.ScalarItem{Col: b.md.AddColumn(item.list[0].text), Expr: e})
	}
	return memo.NewSExpr(op, input)
}

// buildUnionAll matches the output columns of both inputs in id order and
// names the result columns after the left input.
func (b *builder) buildUnionAll(n *node) *memo.SExpr {
	left, right := b.buildRel(n.list[1]), b.buildRel(n.list[2])
	leftCols, rightCols := left.OutputCols().ToList(), right.OutputCols().ToList()
	if len(leftCols) != len(rightCols) {
		b.errorf(n, "union-all inputs have %d and %d columns", len(leftCols), len(rightCols))
	}
	op := &memo.UnionAllOp{LeftCols: leftCols, RightCols: rightCols}
	for _, c := range leftCols {
		op.OutCols = append(op.OutCols, b.md.AddColumn(b.md.ColumnMeta(c).Alias))
	}
	return memo.NewSExpr(op, left, right)
}

func (b *builder) buildDistribution(kind *node, keys []*node, cols opt.ColSet) physical.Distribution {
	if !kind.isIdent() {
		b.errorf(kind, "expected a distribution, found %s", kind)
	}
	k, ok := physical.DistributionKindByName(kind.text)
	if !ok || k == physical.AnyDistribution {
		b.errorf(kind, "unknown distribution %s", kind.text)
	}
	if (k == physical.Hash) != (len(keys) > 0) {
		b.errorf(kind, "only hash distributions have keys")
	}
	d := physical.Distribution{Kind: k}
	for _, key := range keys {
		d.Keys = append(d.Keys, b.resolveColumn(key, cols))
	}
	return d
}

func (b *builder) buildOrdering(n *node, cols opt.ColSet) opt.Ordering {
	b.expectList(n)
	ord := make(opt.Ordering, 0, len(n.list))
	for _, c := range n.list {
		if !c.isIdent() || len(c.text) < 2 || (c.text[0] != '+' && c.text[0] != '-') {
			b.errorf(c, "expected +COL or -COL, found %s", c)
		}
		col := b.resolveColumn(&node{pos: c.pos, tok: c.tok, text: c.text[1:]}, cols)
		ord = append(ord, opt.MakeOrderingColumn(col, c.text[0] == '-'))
	}
	return ord
}

func (b *builder) buildColList(n *node, cols opt.ColSet) opt.ColList {
	b.expectList(n)
	res := make(opt.ColList, 0, len(n.list))
	for _, c := range n.list {
		res = append(res, b.resolveColumn(c, cols))
	}
	return res
}

func (b *builder) expectList(n *node) {
	if !n.isList() {
		b.errorf(n, "expected a list, found %s", n)
	}
}

func (b *builder) buildUint(n *node) uint64 {
	if n.tok != 0 && !n.isList() {
		if v, err := strconv.ParseUint(n.text, 10, 64); err == nil {
			return v
		}
	}
	b.errorf(n, "expected a non-negative integer, found %s", n)
	return 0
}

// resolveColumn finds the column in cols that is named by n, either with its
// qualified alias (a.x) or, if that is unambiguous, its column alias (x).
func (b *builder) resolveColumn(n *node, cols opt.ColSet) opt.ColumnID {
	if !n.isIdent() {
		b.errorf(n, "expected a column name, found %s", n)
	}
	var found opt.ColumnID
	qualified := strings.Contains(n.text, ".")
	cols.ForEach(func(col opt.ColumnID) {
		var name string
		if qualified {
			name = b.md.QualifiedAlias(col)
		} else {
			name = b.md.ColumnMeta(col).Alias
		}
		if name != n.text {
			return
		}
		if found != 0 {
			b.errorf(n, "column reference %s is ambiguous", n.text)
		}
		found = col
	})
	if found == 0 {
		b.errorf(n, "column %s does not exist", n.text)
	}
	return found
}

var comparisonOps = map[string]scalar.CmpOp{
	"eq": scalar.EqOp,
	"ne": scalar.NeOp,
	"lt": scalar.LtOp,
	"le": scalar.LeOp,
	"gt": scalar.GtOp,
	"ge": scalar.GeOp,
}

func (b *builder) buildScalar(n *node, cols opt.ColSet) scalar.Expr {
	if !n.isList() {
		return b.buildAtom(n, cols)
	}
	name := n.head()
	if name == "" {
		b.errorf(n, "expected a scalar expression, found %s", n)
	}
	args := make([]scalar.Expr, len(n.list)-1)
	for i := range args {
		args[i] = b.buildScalar(n.list[i+1], cols)
	}

	if op, ok := comparisonOps[name]; ok {
		b.expectArgs(n, 2, 2)
		return &scalar.Comparison{Op: op, Left: args[0], Right: args[1]}
	}
	switch name {
	case "and":
		b.expectArgs(n, 2, -1)
		return scalar.MakeAnd(args...)

	case "or":
		b.expectArgs(n, 2, -1)
		res := args[0]
		for _, a := range args[1:] {
			res = &scalar.Or{Left: res, Right: a}
		}
		return res

	case "not":
		b.expectArgs(n, 1, 1)
		return &scalar.Not{Input: args[0]}

	case "is-null":
		b.expectArgs(n, 1, 1)
		return &scalar.IsNull{Input: args[0]}
	}

	if b.fns == nil {
		b.errorf(n, "unknown function %s", name)
	}
	id, ok := b.fns.ResolveFunction(name)
	if !ok {
		b.errorf(n, "unknown function %s", name)
	}
	return &scalar.FuncCall{Func: id, Args: args}
}

func (b *builder) buildAtom(n *node, cols opt.ColSet) scalar.Expr {
	switch n.tok {
	case scanner.String:
		return scalar.NewConst(scalar.DString(n.text))

	case scanner.Int, scanner.Float:
		return b.buildNumber(n)

	default:
		switch strings.ToLower(n.text) {
		case "true":
			return scalar.True
		case "false":
			return scalar.False
		case "null":
			return scalar.Null
		}
		if len(n.text) > 1 && n.text[0] == '-' && isDigit(n.text[1]) {
			return b.buildNumber(n)
		}
		return scalar.NewVar(b.resolveColumn(n, cols))
	}
}

func (b *builder) buildNumber(n *node) scalar.Expr {
	d, err := scalar.ParseDDecimal(n.text)
	if err != nil {
		b.errorf(n, "invalid number %s", n.text)
	}
	return scalar.NewConst(d)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
