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

// The pushdown rules move filters and limits towards the leaves. Every rule
// strictly increases the depth of the predicate or limit it moves, and none
// moves anything up, so the batch reaches a fixpoint.

func init() {
	registerRule(&Rule{
		Name:      opt.PushDownFilterJoin,
		Pattern:   OpPattern(opt.FilterOp, OpPattern(opt.JoinOp, Any("left"), Any("right"))),
		Transform: pushDownFilterJoin,
	})
	registerRule(&Rule{
		Name:      opt.PushDownFilterProject,
		Pattern:   OpPattern(opt.FilterOp, OpPattern(opt.ProjectOp, Any("input"))),
		Transform: pushDownFilterProject,
	})
	registerRule(&Rule{
		Name:      opt.PushDownFilterEvalScalar,
		Pattern:   OpPattern(opt.FilterOp, OpPattern(opt.EvalScalarOp, Any("input"))),
		Transform: pushDownFilterEvalScalar,
	})
	registerRule(&Rule{
		Name:      opt.PushDownFilterSort,
		Pattern:   OpPattern(opt.FilterOp, OpPattern(opt.SortOp, Any("input"))),
		Transform: pushDownFilterSort,
	})
	registerRule(&Rule{
		Name:      opt.PushDownFilterAggregate,
		Pattern:   OpPattern(opt.FilterOp, OpPattern(opt.AggregateOp, Any("input"))),
		Transform: pushDownFilterAggregate,
	})
	registerRule(&Rule{
		Name:      opt.PushDownLimitProject,
		Pattern:   OpPattern(opt.LimitOp, OpPattern(opt.ProjectOp, Any("input"))),
		Transform: pushDownLimitProject,
	})
	registerRule(&Rule{
		Name:      opt.PushDownLimitEvalScalar,
		Pattern:   OpPattern(opt.LimitOp, OpPattern(opt.EvalScalarOp, Any("input"))),
		Transform: pushDownLimitEvalScalar,
	})
}

// pushDownFilterJoin moves the conjuncts of a filter over a join as far down
// as the join type allows:
//
//   - Inner and cross joins: conjuncts bound by one input move into that
//     input, and conjuncts that reference both move into the join condition.
//     A cross join that gains a condition becomes an inner join.
//   - Left joins: only conjuncts bound by the left input move. Filtering the
//     right input would turn rejected matches into NULL-extended rows.
//   - Semi and anti joins: every conjunct is bound by the left input.
//
// Conjuncts that cannot move stay in a filter above the join, and so do
// volatile conjuncts.
func pushDownFilterJoin(oc *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	filter := m.Expr.Private().(*memo.FilterOp)
	join := m.Expr.Child(0).Private().(*memo.JoinOp)
	left, right := m.Bindings.Get("left"), m.Bindings.Get("right")
	leftCols, rightCols := left.OutputCols(), right.OutputCols()

	var leftConds, rightConds, onConds, remaining []scalar.Expr
	for _, c := range scalar.Conjuncts(filter.Predicate) {
		cols := scalar.OuterCols(c)
		switch {
		case scalar.IsVolatile(c, oc.Functions):
			remaining = append(remaining, c)
		case cols.SubsetOf(leftCols):
			leftConds = append(leftConds, c)
		case join.Type != memo.InnerJoin && join.Type != memo.CrossJoin:
			remaining = append(remaining, c)
		case cols.SubsetOf(rightCols):
			rightConds = append(rightConds, c)
		case cols.SubsetOf(leftCols.Union(rightCols)):
			onConds = append(onConds, c)
		default:
			remaining = append(remaining, c)
		}
	}
	if len(leftConds) == 0 && len(rightConds) == 0 && len(onConds) == 0 {
		return nil, nil
	}

	newJoin := join
	if len(onConds) != 0 {
		newJoin = &memo.JoinOp{Type: join.Type, On: scalar.MakeAnd(join.On, scalar.MakeAnd(onConds...))}
		if newJoin.Type == memo.CrossJoin {
			newJoin.Type = memo.InnerJoin
		}
	}
	res := memo.NewSExpr(newJoin, constructFilter(left, leftConds), constructFilter(right, rightConds))
	return result(constructFilter(res, remaining)), nil
}

// pushDownFilterProject moves a filter below a project. The predicate only
// references projected columns, which the input also produces.
func pushDownFilterProject(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	project := m.Expr.Child(0)
	filtered := memo.NewSExpr(m.Expr.Private(), m.Bindings.Get("input"))
	return result(project.ReplaceChildren(filtered)), nil
}

// pushDownFilterEvalScalar moves the conjuncts that do not reference computed
// columns below an eval-scalar.
func pushDownFilterEvalScalar(oc *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	filter := m.Expr.Private().(*memo.FilterOp)
	eval := m.Expr.Child(0)
	input := m.Bindings.Get("input")
	pushed, remaining := splitConjuncts(oc, filter.Predicate, input.OutputCols())
	if len(pushed) == 0 {
		return nil, nil
	}
	res := eval.ReplaceChildren(constructFilter(input, pushed))
	return result(constructFilter(res, remaining)), nil
}

// pushDownFilterSort moves a filter below a sort, so that fewer rows are
// sorted.
func pushDownFilterSort(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	sort := m.Expr.Child(0)
	filtered := memo.NewSExpr(m.Expr.Private(), m.Bindings.Get("input"))
	return result(sort.ReplaceChildren(filtered)), nil
}

// pushDownFilterAggregate moves the conjuncts that only reference grouping
// columns below a grouped aggregate. A scalar aggregate returns a row even
// for an empty input, so nothing is pushed below it.
func pushDownFilterAggregate(oc *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	filter := m.Expr.Private().(*memo.FilterOp)
	agg := m.Expr.Child(0)
	grouping := agg.Private().(*memo.AggregateOp).GroupingCols
	if grouping.Empty() {
		return nil, nil
	}
	pushed, remaining := splitConjuncts(oc, filter.Predicate, grouping)
	if len(pushed) == 0 {
		return nil, nil
	}
	res := agg.ReplaceChildren(constructFilter(m.Bindings.Get("input"), pushed))
	return result(constructFilter(res, remaining)), nil
}

// pushDownLimitProject moves a limit below a project.
func pushDownLimitProject(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	project := m.Expr.Child(0)
	limited := memo.NewSExpr(m.Expr.Private(), m.Bindings.Get("input"))
	return result(project.ReplaceChildren(limited)), nil
}

// pushDownLimitEvalScalar moves a limit below an eval-scalar, so that fewer
// rows are computed.
func pushDownLimitEvalScalar(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	eval := m.Expr.Child(0)
	limited := memo.NewSExpr(m.Expr.Private(), m.Bindings.Get("input"))
	return result(eval.ReplaceChildren(limited)), nil
}
