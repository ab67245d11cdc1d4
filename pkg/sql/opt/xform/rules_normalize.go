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

// The normalization rules simplify the tree without changing its shape in any
// way a later batch depends on. Each of them either removes a node or folds
// part of a scalar expression into a constant, so the batch always reaches a
// fixpoint.

func init() {
	registerRule(&Rule{
		Name:      opt.FoldFilterConstants,
		Pattern:   OpPattern(opt.FilterOp, Any("input")),
		Transform: foldFilterConstants,
	})
	registerRule(&Rule{
		Name:      opt.EliminateFilter,
		Pattern:   OpPattern(opt.FilterOp, Any("input")),
		Transform: eliminateFilter,
	})
	registerRule(&Rule{
		Name:      opt.MergeFilter,
		Pattern:   OpPattern(opt.FilterOp, OpPattern(opt.FilterOp, Any("input"))),
		Transform: mergeFilter,
	})
	registerRule(&Rule{
		Name:      opt.MergeEvalScalar,
		Pattern:   OpPattern(opt.EvalScalarOp, OpPattern(opt.EvalScalarOp, Any("input"))),
		Transform: mergeEvalScalar,
	})
	registerRule(&Rule{
		Name:      opt.EliminateEvalScalar,
		Pattern:   OpPattern(opt.EvalScalarOp, Any("input")),
		Transform: eliminateEvalScalar,
	})
	registerRule(&Rule{
		Name:      opt.EliminateProject,
		Pattern:   OpPattern(opt.ProjectOp, Any("input")),
		Transform: eliminateProject,
	})
	registerRule(&Rule{
		Name:      opt.MergeProject,
		Pattern:   OpPattern(opt.ProjectOp, OpPattern(opt.ProjectOp, Any("input"))),
		Transform: mergeProject,
	})
}

// foldFilterConstants replaces the constant subexpressions of a filter
// predicate with their values.
func foldFilterConstants(oc *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	filter := m.Expr.Private().(*memo.FilterOp)
	folded, err := scalar.Fold(filter.Predicate, oc.Functions)
	if err != nil {
		return nil, err
	}
	if folded == filter.Predicate {
		return nil, nil
	}
	return result(memo.NewSExpr(&memo.FilterOp{Predicate: folded}, m.Bindings.Get("input"))), nil
}

// eliminateFilter removes a filter that keeps every row.
func eliminateFilter(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	filter := m.Expr.Private().(*memo.FilterOp)
	if !scalar.IsConstTrue(filter.Predicate) {
		return nil, nil
	}
	return result(m.Bindings.Get("input")), nil
}

// mergeFilter combines a filter over a filter into one filter. The inner
// conjuncts come first. A volatile outer predicate is only evaluated on the
// rows the inner filter keeps, so it is not merged.
func mergeFilter(oc *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	outer := m.Expr.Private().(*memo.FilterOp)
	inner := m.Expr.Child(0).Private().(*memo.FilterOp)
	if scalar.IsVolatile(outer.Predicate, oc.Functions) {
		return nil, nil
	}
	pred := scalar.MakeAnd(inner.Predicate, outer.Predicate)
	return result(memo.NewSExpr(&memo.FilterOp{Predicate: pred}, m.Bindings.Get("input"))), nil
}

// mergeEvalScalar combines two eval-scalars, as long as the outer items do not
// reference the columns computed by the inner ones.
func mergeEvalScalar(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	outer := m.Expr.Private().(*memo.EvalScalarOp)
	inner := m.Expr.Child(0).Private().(*memo.EvalScalarOp)
	if outer.OuterCols().Intersects(inner.ItemCols()) {
		return nil, nil
	}
	items := make([]memo.ScalarItem, 0, len(inner.Items)+len(outer.Items))
	items = append(items, inner.Items...)
	items = append(items, outer.Items...)
	return result(memo.NewSExpr(&memo.EvalScalarOp{Items: items}, m.Bindings.Get("input"))), nil
}

// eliminateEvalScalar removes an eval-scalar that computes nothing.
func eliminateEvalScalar(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	if len(m.Expr.Private().(*memo.EvalScalarOp).Items) != 0 {
		return nil, nil
	}
	return result(m.Bindings.Get("input")), nil
}

// eliminateProject removes a project that keeps every input column.
func eliminateProject(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	project := m.Expr.Private().(*memo.ProjectOp)
	input := m.Bindings.Get("input")
	if !project.Cols.Equals(input.OutputCols()) {
		return nil, nil
	}
	return result(input), nil
}

// mergeProject discards the inner of two projects, whose columns are a
// superset of the outer's.
func mergeProject(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	outer := m.Expr.Private().(*memo.ProjectOp)
	return result(memo.NewSExpr(outer, m.Bindings.Get("input"))), nil
}
