// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
)

// This file contains helper functions shared by the transforms.

// result wraps a single replacement expression.
func result(e *memo.SExpr) []*memo.SExpr {
	return []*memo.SExpr{e}
}

// constructFilter returns a filter over the input, or the input itself if
// there are no conjuncts.
func constructFilter(input *memo.SExpr, conjuncts []scalar.Expr) *memo.SExpr {
	if len(conjuncts) == 0 {
		return input
	}
	return memo.NewSExpr(&memo.FilterOp{Predicate: scalar.MakeAnd(conjuncts...)}, input)
}

// constructProject returns a project of the given columns over the input, or
// the input itself if it already produces exactly those columns.
func constructProject(input *memo.SExpr, cols opt.ColSet) *memo.SExpr {
	if input.OutputCols().Equals(cols) {
		return input
	}
	return memo.NewSExpr(&memo.ProjectOp{Cols: cols}, input)
}

// splitConjuncts divides the conjuncts of the predicate into those that only
// reference the given columns and the rest. Volatile conjuncts are always part
// of the rest, so they are evaluated once per row of the original input.
// Order is preserved in both.
func splitConjuncts(
	oc *OptimizeContext, pred scalar.Expr, cols opt.ColSet,
) (bound, rest []scalar.Expr) {
	for _, c := range scalar.Conjuncts(pred) {
		if !scalar.IsVolatile(c, oc.Functions) && scalar.OuterCols(c).SubsetOf(cols) {
			bound = append(bound, c)
		} else {
			rest = append(rest, c)
		}
	}
	return bound, rest
}

// neededCols returns the columns an operator needs from its inputs in order to
// produce the given output columns.
func neededCols(e *memo.SExpr, outCols opt.ColSet) opt.ColSet {
	return outCols.Union(e.DeriveRelationalProp().OuterCols)
}
