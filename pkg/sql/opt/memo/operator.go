// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
)

// RelOperator is the operator payload of a relational expression. The set of
// implementations is closed: every type switch over RelOperator in this
// package ends in an assertion failure so that adding an operator forces every
// derivation rule to be revisited.
type RelOperator interface {
	// Op returns the operator kind.
	Op() opt.Operator

	// OuterCols returns the columns referenced by the operator's own scalar
	// expressions, sort keys, grouping columns or projections.
	OuterCols() opt.ColSet

	// fingerprint writes a canonical encoding of the operator's parameters. Two
	// operators of the same kind with the same fingerprint are interchangeable.
	fingerprint(buf *bytes.Buffer)
}

// Fingerprint returns the canonical encoding of the operator's kind and
// parameters.
func Fingerprint(op RelOperator) string {
	var buf bytes.Buffer
	buf.WriteString(op.Op().String())
	op.fingerprint(&buf)
	return buf.String()
}

// ScanOp reads the given columns of a base table.
type ScanOp struct {
	Table opt.TableID
	Cols  opt.ColSet
}

// FilterOp discards the input rows for which Predicate is not true.
type FilterOp struct {
	Predicate scalar.Expr
}

// JoinType distinguishes the flavors of JoinOp.
type JoinType uint8

const (
	// InnerJoin returns the pairs of rows for which On is true.
	InnerJoin JoinType = iota

	// LeftJoin is an InnerJoin that also returns unmatched left rows, extended
	// with NULLs.
	LeftJoin

	// SemiJoin returns the left rows with at least one match.
	SemiJoin

	// AntiJoin returns the left rows with no match.
	AntiJoin

	// CrossJoin returns every pair of rows. It has no On condition.
	CrossJoin
)

var joinTypeNames = [...]string{
	InnerJoin: "inner-join",
	LeftJoin:  "left-join",
	SemiJoin:  "semi-join",
	AntiJoin:  "anti-join",
	CrossJoin: "cross-join",
}

func (t JoinType) String() string { return joinTypeNames[t] }

// SafeValue implements the redact.SafeValue interface.
func (JoinType) SafeValue() {}

// JoinTypeByName returns the join type with the given name, e.g. "semi-join".
func JoinTypeByName(name string) (JoinType, bool) {
	for i, n := range joinTypeNames {
		if n == name {
			return JoinType(i), true
		}
	}
	return InnerJoin, false
}

// OutputsRightCols returns true if rows returned by the join include the
// columns of the right input.
func (t JoinType) OutputsRightCols() bool {
	return t != SemiJoin && t != AntiJoin
}

// JoinOp joins its left and right inputs.
type JoinOp struct {
	Type JoinType
	On   scalar.Expr
}

// AggregateItem computes one aggregate into a new column. Arg is zero for
// count-rows.
type AggregateItem struct {
	Col  opt.ColumnID
	Func scalar.AggFunc
	Arg  opt.ColumnID
}

// AggregateOp groups its input by GroupingCols and computes Aggregations for
// every group. Without grouping columns it always returns exactly one row.
type AggregateOp struct {
	GroupingCols opt.ColSet
	Aggregations []AggregateItem
}

// SortOp orders its input.
type SortOp struct {
	Ordering opt.Ordering
}

// LimitOp skips Offset input rows and then returns at most Limit rows.
type LimitOp struct {
	Limit  uint64
	Offset uint64
}

// ProjectOp returns a subset of its input columns.
type ProjectOp struct {
	Cols opt.ColSet
}

// ScalarItem computes a scalar expression into a new column.
type ScalarItem struct {
	Col  opt.ColumnID
	Expr scalar.Expr
}

// EvalScalarOp extends each input row with the computed Items.
type EvalScalarOp struct {
	Items []ScalarItem
}

// UnionAllOp concatenates its inputs. Row values of LeftCols and RightCols are
// returned as OutCols, position by position.
type UnionAllOp struct {
	LeftCols  opt.ColList
	RightCols opt.ColList
	OutCols   opt.ColList
}

// ExchangeOp redistributes its input rows among workers.
type ExchangeOp struct {
	Distribution physical.Distribution
}

var (
	_ RelOperator = &ScanOp{}
	_ RelOperator = &FilterOp{}
	_ RelOperator = &JoinOp{}
	_ RelOperator = &AggregateOp{}
	_ RelOperator = &SortOp{}
	_ RelOperator = &LimitOp{}
	_ RelOperator = &ProjectOp{}
	_ RelOperator = &EvalScalarOp{}
	_ RelOperator = &UnionAllOp{}
	_ RelOperator = &ExchangeOp{}
)

// Op is part of the RelOperator interface.
func (*ScanOp) Op() opt.Operator { return opt.ScanOp }

// Op is part of the RelOperator interface.
func (*FilterOp) Op() opt.Operator { return opt.FilterOp }

// Op is part of the RelOperator interface.
func (*JoinOp) Op() opt.Operator { return opt.JoinOp }

// Op is part of the RelOperator interface.
func (*AggregateOp) Op() opt.Operator { return opt.AggregateOp }

// Op is part of the RelOperator interface.
func (*SortOp) Op() opt.Operator { return opt.SortOp }

// Op is part of the RelOperator interface.
func (*LimitOp) Op() opt.Operator { return opt.LimitOp }

// Op is part of the RelOperator interface.
func (*ProjectOp) Op() opt.Operator { return opt.ProjectOp }

// Op is part of the RelOperator interface.
func (*EvalScalarOp) Op() opt.Operator { return opt.EvalScalarOp }

// Op is part of the RelOperator interface.
func (*UnionAllOp) Op() opt.Operator { return opt.UnionAllOp }

// Op is part of the RelOperator interface.
func (*ExchangeOp) Op() opt.Operator { return opt.ExchangeOp }

// OuterCols is part of the RelOperator interface.
func (*ScanOp) OuterCols() opt.ColSet { return opt.ColSet{} }

// OuterCols is part of the RelOperator interface.
func (f *FilterOp) OuterCols() opt.ColSet { return scalar.OuterCols(f.Predicate) }

// OuterCols is part of the RelOperator interface.
func (j *JoinOp) OuterCols() opt.ColSet { return scalar.OuterCols(j.On) }

// OuterCols is part of the RelOperator interface.
func (a *AggregateOp) OuterCols() opt.ColSet {
	cols := a.GroupingCols.Copy()
	for i := range a.Aggregations {
		if a.Aggregations[i].Arg != 0 {
			cols.Add(a.Aggregations[i].Arg)
		}
	}
	return cols
}

// OuterCols is part of the RelOperator interface.
func (s *SortOp) OuterCols() opt.ColSet { return s.Ordering.ColSet() }

// OuterCols is part of the RelOperator interface.
func (*LimitOp) OuterCols() opt.ColSet { return opt.ColSet{} }

// OuterCols is part of the RelOperator interface.
func (p *ProjectOp) OuterCols() opt.ColSet { return p.Cols.Copy() }

// OuterCols is part of the RelOperator interface.
func (e *EvalScalarOp) OuterCols() opt.ColSet {
	var cols opt.ColSet
	for i := range e.Items {
		cols.UnionWith(scalar.OuterCols(e.Items[i].Expr))
	}
	return cols
}

// OuterCols is part of the RelOperator interface.
func (u *UnionAllOp) OuterCols() opt.ColSet {
	return u.LeftCols.ToSet().Union(u.RightCols.ToSet())
}

// OuterCols is part of the RelOperator interface.
func (e *ExchangeOp) OuterCols() opt.ColSet { return e.Distribution.Keys.ToSet() }

// AggregateCols returns the columns computed by the aggregations.
func (a *AggregateOp) AggregateCols() opt.ColSet {
	var cols opt.ColSet
	for i := range a.Aggregations {
		cols.Add(a.Aggregations[i].Col)
	}
	return cols
}

// ItemCols returns the columns computed by the items.
func (e *EvalScalarOp) ItemCols() opt.ColSet {
	var cols opt.ColSet
	for i := range e.Items {
		cols.Add(e.Items[i].Col)
	}
	return cols
}

func (s *ScanOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " t%d cols=%s", s.Table, s.Cols)
}

func (f *FilterOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " [%s]", scalar.Fingerprint(f.Predicate))
}

func (j *JoinOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " %s", j.Type)
	if j.On != nil {
		fmt.Fprintf(buf, " [%s]", scalar.Fingerprint(j.On))
	}
}

func (a *AggregateOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " group=%s", a.GroupingCols)
	for _, item := range a.Aggregations {
		fmt.Fprintf(buf, " %d=%s(%d)", item.Col, item.Func, item.Arg)
	}
}

func (s *SortOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " %s", s.Ordering)
}

func (l *LimitOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " %d offset %d", l.Limit, l.Offset)
}

func (p *ProjectOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " %s", p.Cols)
}

func (e *EvalScalarOp) fingerprint(buf *bytes.Buffer) {
	for _, item := range e.Items {
		fmt.Fprintf(buf, " %d=[%s]", item.Col, scalar.Fingerprint(item.Expr))
	}
}

func (u *UnionAllOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " %v %v %v", u.LeftCols, u.RightCols, u.OutCols)
}

func (e *ExchangeOp) fingerprint(buf *bytes.Buffer) {
	fmt.Fprintf(buf, " %s", e.Distribution)
}
