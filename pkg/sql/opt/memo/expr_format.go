// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/util/treeprinter"
)

// ExprFmtFlags controls which properties of the expression are shown in
// formatted output.
type ExprFmtFlags int

const (
	// ExprFmtShowAll shows all properties of the expression.
	ExprFmtShowAll ExprFmtFlags = 0

	// ExprFmtHideMiscProps does not show outer columns or row cardinality in
	// the output.
	ExprFmtHideMiscProps ExprFmtFlags = 1 << (iota - 1)

	// ExprFmtHidePhysProps does not show provided orderings or distributions.
	ExprFmtHidePhysProps

	// ExprFmtHideColumns removes column information.
	ExprFmtHideColumns

	// ExprFmtHideScalars does not show predicates, projections and other
	// operator parameters.
	ExprFmtHideScalars

	// ExprFmtHideAll shows only the basic structure of the expression.
	// Note: this flag should be used judiciously, as its meaning changes whenever
	// we add more flags.
	ExprFmtHideAll ExprFmtFlags = (1 << iota) - 1
)

// HasFlags tests whether the given flags are all set.
func (f ExprFmtFlags) HasFlags(subset ExprFmtFlags) bool {
	return f&subset == subset
}

// ExprFmtFlagsByName maps the names accepted by the format test directive to
// flags.
var ExprFmtFlagsByName = map[string]ExprFmtFlags{
	"show-all":       ExprFmtShowAll,
	"hide-miscprops": ExprFmtHideMiscProps,
	"hide-physprops": ExprFmtHidePhysProps,
	"hide-columns":   ExprFmtHideColumns,
	"hide-scalars":   ExprFmtHideScalars,
	"hide-all":       ExprFmtHideAll,
}

// FormatExpr returns a string representation of the given expression, formatted
// according to the specified flags. The metadata and function registry may be
// nil, in which case columns and functions are printed by id.
func FormatExpr(
	e *SExpr, flags ExprFmtFlags, md *opt.Metadata, fns scalar.FunctionRegistry,
) string {
	f := MakeExprFmtCtx(flags, md, fns)
	f.FormatExpr(e)
	return f.Buffer.String()
}

// ExprFmtCtx is passed as context to expression formatting functions, which
// need to know the formatting flags and metadata in order to format. In
// addition, a reusable bytes buffer avoids unnecessary allocations.
type ExprFmtCtx struct {
	Buffer *bytes.Buffer

	// Flags controls how the expression is formatted.
	Flags ExprFmtFlags

	// Metadata is used to label columns and tables.
	Metadata *opt.Metadata

	// Functions is used to name functions.
	Functions scalar.FunctionRegistry
}

// MakeExprFmtCtx creates an expression formatting context from a new buffer.
func MakeExprFmtCtx(flags ExprFmtFlags, md *opt.Metadata, fns scalar.FunctionRegistry) ExprFmtCtx {
	return ExprFmtCtx{Buffer: &bytes.Buffer{}, Flags: flags, Metadata: md, Functions: fns}
}

// FormatExpr constructs a treeprinter view of the given expression for testing
// and debugging, according to the flags in this context.
func (f *ExprFmtCtx) FormatExpr(e *SExpr) {
	tp := treeprinter.New()
	f.formatExpr(e, tp)
	f.Buffer.Reset()
	f.Buffer.WriteString(tp.String())
}

func (f *ExprFmtCtx) scalarFormatter() scalar.Formatter {
	return scalar.Formatter{Metadata: f.Metadata, Functions: f.Functions}
}

func (f *ExprFmtCtx) formatExpr(e *SExpr, tp treeprinter.Node) {
	tp = tp.Child(f.header(e.op))

	rel := e.DeriveRelationalProp()
	if !f.HasFlags(ExprFmtHideColumns) {
		tp.Childf("columns: %s", f.Metadata.FormatColSet(rel.OutputCols))
	}
	if !f.HasFlags(ExprFmtHideMiscProps) {
		if !rel.OuterCols.Empty() {
			tp.Childf("outer: %s", rel.OuterCols)
		}
		if rel.Cardinality != props.AnyCardinality {
			tp.Childf("cardinality: %s", rel.Cardinality)
		}
	}
	if !f.HasFlags(ExprFmtHidePhysProps) {
		provided := e.DerivePhysicalProp()
		if !provided.Ordering.Empty() {
			tp.Childf("ordering: %s", f.Metadata.FormatOrdering(provided.Ordering))
		}
		if !provided.Distribution.Any() {
			tp.Childf("distribution: %s", f.formatDistribution(provided.Distribution))
		}
	}

	for i := range e.children {
		f.formatExpr(e.children[i], tp)
	}

	if !f.HasFlags(ExprFmtHideScalars) {
		f.formatParams(e.op, tp)
	}
}

// HasFlags tests whether the given flags are all set.
func (f *ExprFmtCtx) HasFlags(subset ExprFmtFlags) bool {
	return f.Flags.HasFlags(subset)
}

// header returns the first line of the expression: its operator name, followed
// by the table for scans.
func (f *ExprFmtCtx) header(op RelOperator) string {
	switch t := op.(type) {
	case *ScanOp:
		return "scan " + f.tableAlias(t.Table)
	case *JoinOp:
		return t.Type.String()
	default:
		return op.Op().String()
	}
}

func (f *ExprFmtCtx) tableAlias(tab opt.TableID) string {
	if f.Metadata == nil {
		return fmt.Sprintf("t%d", tab>>32)
	}
	return f.Metadata.TableMeta(tab).Alias
}

// formatParams adds the operator's scalar parameters as trailing children.
func (f *ExprFmtCtx) formatParams(op RelOperator, tp treeprinter.Node) {
	sf := f.scalarFormatter()
	switch t := op.(type) {
	case *ScanOp:

	case *FilterOp:
		tp.Childf("predicate: %s", sf.Format(t.Predicate))

	case *JoinOp:
		if t.On != nil {
			tp.Childf("on: %s", sf.Format(t.On))
		}

	case *AggregateOp:
		if !t.GroupingCols.Empty() {
			tp.Childf("grouping: %s", f.Metadata.FormatColSet(t.GroupingCols))
		}
		if len(t.Aggregations) > 0 {
			aggs := tp.Child("aggregations")
			for i := range t.Aggregations {
				aggs.Child(f.formatAggregate(&t.Aggregations[i]))
			}
		}

	case *SortOp:
		tp.Childf("sort: %s", f.Metadata.FormatOrdering(t.Ordering))

	case *LimitOp:
		tp.Childf("limit: %d", t.Limit)
		if t.Offset != 0 {
			tp.Childf("offset: %d", t.Offset)
		}

	case *ProjectOp:

	case *EvalScalarOp:
		items := tp.Child("items")
		for i := range t.Items {
			items.Childf("%s := %s",
				f.Metadata.ColumnLabel(t.Items[i].Col), sf.Format(t.Items[i].Expr))
		}

	case *UnionAllOp:
		tp.Childf("left: %s", f.Metadata.FormatColList(t.LeftCols))
		tp.Childf("right: %s", f.Metadata.FormatColList(t.RightCols))

	case *ExchangeOp:
		tp.Childf("exchange: %s", f.formatDistribution(t.Distribution))

	default:
		panic(errors.AssertionFailedf("unhandled operator %T", op))
	}
}

func (f *ExprFmtCtx) formatAggregate(item *AggregateItem) string {
	arg := ""
	if item.Arg != 0 {
		arg = f.Metadata.ColumnLabel(item.Arg)
	}
	return fmt.Sprintf("%s := %s(%s)", f.Metadata.ColumnLabel(item.Col), item.Func, arg)
}

func (f *ExprFmtCtx) formatDistribution(d physical.Distribution) string {
	if d.Kind != physical.Hash {
		return d.String()
	}
	return fmt.Sprintf("hash(%s)", strings.ReplaceAll(f.Metadata.FormatColList(d.Keys), " ", ","))
}

// formatPrivate writes a one-line summary of the operator parameters, as
// used in the memo dump.
func (f *ExprFmtCtx) formatPrivate(op RelOperator) {
	sf := f.scalarFormatter()
	buf := f.Buffer
	switch t := op.(type) {
	case *ScanOp:
		fmt.Fprintf(buf, " %s", f.tableAlias(t.Table))
		if f.Metadata != nil {
			if tm := f.Metadata.TableMeta(t.Table); !tm.Columns().Equals(t.Cols) {
				fmt.Fprintf(buf, ",cols=%s", t.Cols)
			}
		}

	case *FilterOp:
		fmt.Fprintf(buf, " [%s]", sf.Format(t.Predicate))

	case *JoinOp:
		if t.On != nil {
			fmt.Fprintf(buf, " [%s]", sf.Format(t.On))
		}

	case *AggregateOp:
		buf.WriteString(" [")
		if !t.GroupingCols.Empty() {
			fmt.Fprintf(buf, "group=%s", t.GroupingCols)
		}
		for i := range t.Aggregations {
			if i > 0 || !t.GroupingCols.Empty() {
				buf.WriteString(", ")
			}
			buf.WriteString(f.formatAggregate(&t.Aggregations[i]))
		}
		buf.WriteByte(']')

	case *SortOp:
		fmt.Fprintf(buf, " %s", t.Ordering)

	case *LimitOp:
		fmt.Fprintf(buf, " %d", t.Limit)
		if t.Offset != 0 {
			fmt.Fprintf(buf, " offset %d", t.Offset)
		}

	case *ProjectOp:
		fmt.Fprintf(buf, " %s", t.Cols)

	case *EvalScalarOp:
		buf.WriteString(" [")
		for i := range t.Items {
			if i > 0 {
				buf.WriteString(", ")
			}
			fmt.Fprintf(buf, "%s := %s",
				f.Metadata.ColumnLabel(t.Items[i].Col), sf.Format(t.Items[i].Expr))
		}
		buf.WriteByte(']')

	case *UnionAllOp:

	case *ExchangeOp:
		fmt.Fprintf(buf, " %s", t.Distribution)

	default:
		panic(errors.AssertionFailedf("unhandled operator %T", op))
	}
}

// opName returns the name of the operator as shown in the memo dump.
func opName(op RelOperator) string {
	if j, ok := op.(*JoinOp); ok {
		return j.Type.String()
	}
	return op.Op().String()
}
