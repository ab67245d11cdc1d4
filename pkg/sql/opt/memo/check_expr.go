// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// CheckExpr does sanity checking on an expression tree and panics with an
// assertion failure on the first problem. It is run after every rule
// application when expression checking is enabled, which tests always do.
//
// Every column referenced by an operator must be produced by its inputs, and
// every column an operator synthesizes must be new.
func CheckExpr(e *SExpr) {
	for i := range e.children {
		CheckExpr(e.children[i])
	}

	var inputCols opt.ColSet
	for i := range e.children {
		inputCols.UnionWith(e.children[i].OutputCols())
	}
	outer := e.DeriveRelationalProp().OuterCols
	if !outer.SubsetOf(inputCols) {
		panic(errors.AssertionFailedf(
			"%s references columns %s that are not produced by its inputs %s",
			e.Op(), outer.Difference(inputCols), inputCols))
	}

	switch t := e.op.(type) {
	case *ScanOp:
		if t.Table == 0 {
			panic(errors.AssertionFailedf("scan without table"))
		}

	case *FilterOp:
		if t.Predicate == nil {
			panic(errors.AssertionFailedf("filter without predicate"))
		}

	case *JoinOp:
		if t.Type == CrossJoin && t.On != nil {
			panic(errors.AssertionFailedf("cross join with a join condition"))
		}
		left, right := e.children[0].OutputCols(), e.children[1].OutputCols()
		if left.Intersects(right) {
			panic(errors.AssertionFailedf(
				"%s inputs have columns %s in common", t.Type, left.Intersection(right)))
		}

	case *AggregateOp:
		for _, item := range t.Aggregations {
			// Check that column id is set.
			if item.Col == 0 {
				panic(errors.AssertionFailedf("aggregations column cannot have id of 0"))
			}
			if inputCols.Contains(item.Col) || t.GroupingCols.Contains(item.Col) {
				panic(errors.AssertionFailedf("aggregation reuses column %d", item.Col))
			}
		}

	case *EvalScalarOp:
		for _, item := range t.Items {
			if item.Col == 0 {
				panic(errors.AssertionFailedf("eval-scalar column cannot have id of 0"))
			}
			if inputCols.Contains(item.Col) {
				panic(errors.AssertionFailedf("eval-scalar item reuses input column %d", item.Col))
			}
		}

	case *UnionAllOp:
		if len(t.LeftCols) != len(t.OutCols) || len(t.RightCols) != len(t.OutCols) {
			panic(errors.AssertionFailedf("union-all with mismatched column lists"))
		}
		if !t.LeftCols.ToSet().SubsetOf(e.children[0].OutputCols()) ||
			!t.RightCols.ToSet().SubsetOf(e.children[1].OutputCols()) {
			panic(errors.AssertionFailedf("union-all column lists do not match its inputs"))
		}

	case *ExchangeOp:
		if t.Distribution.Any() {
			panic(errors.AssertionFailedf("exchange without distribution"))
		}

	case *SortOp, *LimitOp, *ProjectOp:

	default:
		panic(errors.AssertionFailedf("unhandled operator %T", e.op))
	}
}
