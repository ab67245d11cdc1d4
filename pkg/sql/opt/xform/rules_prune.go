// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
)

// The pruning rules remove columns that no ancestor needs. Every rule strictly
// reduces the number of columns produced by some input, so the batch reaches
// a fixpoint.

func init() {
	registerRule(&Rule{
		Name:      opt.PruneJoinCols,
		Pattern:   OpPattern(opt.ProjectOp, OpPattern(opt.JoinOp, Any("left"), Any("right"))),
		Transform: pruneJoinCols,
	})
	registerRule(&Rule{
		Name:      opt.PruneFilterCols,
		Pattern:   OpPattern(opt.ProjectOp, OpPattern(opt.FilterOp, Any("input"))),
		Transform: pruneFilterCols,
	})
	registerRule(&Rule{
		Name:      opt.PruneAggregateInputCols,
		Pattern:   OpPattern(opt.AggregateOp, Any("input")),
		Transform: pruneAggregateInputCols,
	})
	registerRule(&Rule{
		Name:      opt.PruneScanCols,
		Pattern:   OpPattern(opt.ProjectOp, OpPattern(opt.ScanOp)),
		Transform: pruneScanCols,
	})
}

// pruneJoinCols restricts each input of a join below a project to the
// columns needed by the project and the join condition.
func pruneJoinCols(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	project := m.Expr.Private().(*memo.ProjectOp)
	join := m.Expr.Child(0)
	needed := neededCols(join, project.Cols)
	left, right := m.Bindings.Get("left"), m.Bindings.Get("right")
	if left.OutputCols().SubsetOf(needed) && right.OutputCols().SubsetOf(needed) {
		return nil, nil
	}
	newLeft := constructProject(left, left.OutputCols().Intersection(needed))
	newRight := constructProject(right, right.OutputCols().Intersection(needed))
	return result(m.Expr.ReplaceChildren(join.ReplaceChildren(newLeft, newRight))), nil
}

// pruneFilterCols restricts the input of a filter below a project to the
// columns needed by the project and the predicate.
func pruneFilterCols(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	project := m.Expr.Private().(*memo.ProjectOp)
	filter := m.Expr.Child(0)
	input := m.Bindings.Get("input")
	needed := neededCols(filter, project.Cols)
	if input.OutputCols().SubsetOf(needed) {
		return nil, nil
	}
	newInput := constructProject(input, input.OutputCols().Intersection(needed))
	return result(m.Expr.ReplaceChildren(filter.ReplaceChildren(newInput))), nil
}

// pruneAggregateInputCols restricts the input of an aggregate to its grouping
// columns and aggregate arguments.
func pruneAggregateInputCols(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	input := m.Bindings.Get("input")
	needed := m.Expr.DeriveRelationalProp().OuterCols
	if input.OutputCols().SubsetOf(needed) {
		return nil, nil
	}
	newInput := constructProject(input, input.OutputCols().Intersection(needed))
	return result(m.Expr.ReplaceChildren(newInput)), nil
}

// pruneScanCols narrows a scan below a project to the projected columns, and
// removes the project.
func pruneScanCols(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	project := m.Expr.Private().(*memo.ProjectOp)
	scan := m.Expr.Child(0).Private().(*memo.ScanOp)
	if scan.Cols.SubsetOf(project.Cols) {
		return nil, nil
	}
	newScan := &memo.ScanOp{Table: scan.Table, Cols: scan.Cols.Intersection(project.Cols)}
	return result(constructProject(memo.NewSExpr(newScan), project.Cols)), nil
}
