// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/xform"
	"github.com/cockroachdb/optrewrite/pkg/util/log"
	"github.com/stretchr/testify/require"
)

// TestRuleTransforms applies every built-in rule once to an expression it matches.
// A nil expected tree means the rule must not change the input.
func TestRuleTransforms(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	c5 := env.md.AddColumn("c5")
	c6 := env.md.AddColumn("c6")
	scanA, scanB := env.scanA(), env.scanB()

	plusOne := func(col opt.ColumnID) scalar.Expr {
		return env.fn(t, "plus", scalar.NewVar(col), intConst(1))
	}
	item := func(col opt.ColumnID, e scalar.Expr) memo.ScalarItem {
		return memo.ScalarItem{Col: col, Expr: e}
	}
	countRows := memo.AggregateItem{Col: c5, Func: scalar.CountRows}
	volatile := &scalar.Comparison{Op: scalar.LtOp, Left: env.fn(t, "random"), Right: intConst(3)}

	testCases := []struct {
		name     string
		rule     opt.RuleName
		input    *memo.SExpr
		expected *memo.SExpr
	}{
		{
			name:     "fold constants",
			rule:     opt.FoldFilterConstants,
			input:    filter(&scalar.Comparison{Op: scalar.GtOp, Left: scalar.NewVar(1), Right: env.fn(t, "plus", intConst(1), intConst(2))}, scanA),
			expected: filter(gt(1, 3), scanA),
		},
		{
			name:  "nothing to fold",
			rule:  opt.FoldFilterConstants,
			input: filter(gt(1, 3), scanA),
		},
		{
			name:  "volatile functions are not folded",
			rule:  opt.FoldFilterConstants,
			input: filter(&scalar.Comparison{Op: scalar.GtOp, Left: scalar.NewVar(1), Right: env.fn(t, "random")}, scanA),
		},
		{
			name:     "eliminate true filter",
			rule:     opt.EliminateFilter,
			input:    filter(scalar.True, scanA),
			expected: scanA,
		},
		{
			name:  "keep false filter",
			rule:  opt.EliminateFilter,
			input: filter(scalar.False, scanA),
		},
		{
			name:     "merge filters",
			rule:     opt.MergeFilter,
			input:    filter(gt(1, 1), filter(gt(2, 2), scanA)),
			expected: filter(and(gt(2, 2), gt(1, 1)), scanA),
		},
		{
			name:     "merge independent eval-scalars",
			rule:     opt.MergeEvalScalar,
			input:    evalScalar(evalScalar(scanA, item(c5, plusOne(1))), item(c6, plusOne(2))),
			expected: evalScalar(scanA, item(c5, plusOne(1)), item(c6, plusOne(2))),
		},
		{
			name:  "keep dependent eval-scalars",
			rule:  opt.MergeEvalScalar,
			input: evalScalar(evalScalar(scanA, item(c5, plusOne(1))), item(c6, plusOne(c5))),
		},
		{
			name:     "eliminate empty eval-scalar",
			rule:     opt.EliminateEvalScalar,
			input:    evalScalar(scanA),
			expected: scanA,
		},
		{
			name:     "eliminate identity project",
			rule:     opt.EliminateProject,
			input:    project(scanA, 1, 2),
			expected: scanA,
		},
		{
			name:  "keep narrowing project",
			rule:  opt.EliminateProject,
			input: project(scanA, 2),
		},
		{
			name:     "merge projects",
			rule:     opt.MergeProject,
			input:    project(project(scanA, 1, 2), 1),
			expected: project(scanA, 1),
		},
		{
			name:  "push filter into inner join",
			rule:  opt.PushDownFilterJoin,
			input: filter(and(gt(1, 1), gt(3, 2), eq(2, 4)), join(memo.InnerJoin, eq(1, 3), scanA, scanB)),
			expected: join(memo.InnerJoin, and(eq(1, 3), eq(2, 4)),
				filter(gt(1, 1), scanA), filter(gt(3, 2), scanB)),
		},
		{
			name:     "cross join becomes inner join",
			rule:     opt.PushDownFilterJoin,
			input:    filter(eq(1, 3), join(memo.CrossJoin, nil, scanA, scanB)),
			expected: join(memo.InnerJoin, eq(1, 3), scanA, scanB),
		},
		{
			name:     "volatile conjunct stays above join",
			rule:     opt.PushDownFilterJoin,
			input:    filter(and(volatile, gt(1, 1)), join(memo.CrossJoin, nil, scanA, scanB)),
			expected: filter(volatile, join(memo.CrossJoin, nil, filter(gt(1, 1), scanA), scanB)),
		},
		{
			name:  "volatile filter over join",
			rule:  opt.PushDownFilterJoin,
			input: filter(volatile, join(memo.CrossJoin, nil, scanA, scanB)),
		},
		{
			name:  "volatile filter over eval-scalar",
			rule:  opt.PushDownFilterEvalScalar,
			input: filter(volatile, evalScalar(scanA, item(c5, plusOne(1)))),
		},
		{
			name:  "volatile filter over aggregate",
			rule:  opt.PushDownFilterAggregate,
			input: filter(and(volatile, gt(1, 1)), aggregate(scanA, opt.MakeColSet(1), countRows)),
			expected: filter(volatile,
				aggregate(filter(gt(1, 1), scanA), opt.MakeColSet(1), countRows)),
		},
		{
			name:  "keep volatile filter unmerged",
			rule:  opt.MergeFilter,
			input: filter(volatile, filter(gt(2, 2), scanA)),
		},
		{
			name:  "push left conjuncts below left join",
			rule:  opt.PushDownFilterJoin,
			input: filter(and(gt(1, 1), gt(3, 2)), join(memo.LeftJoin, eq(1, 3), scanA, scanB)),
			expected: filter(gt(3, 2),
				join(memo.LeftJoin, eq(1, 3), filter(gt(1, 1), scanA), scanB)),
		},
		{
			name:  "keep right conjuncts above left join",
			rule:  opt.PushDownFilterJoin,
			input: filter(gt(3, 2), join(memo.LeftJoin, eq(1, 3), scanA, scanB)),
		},
		{
			name:     "push filter below semi join",
			rule:     opt.PushDownFilterJoin,
			input:    filter(gt(2, 2), join(memo.SemiJoin, eq(1, 3), scanA, scanB)),
			expected: join(memo.SemiJoin, eq(1, 3), filter(gt(2, 2), scanA), scanB),
		},
		{
			name:     "push filter below project",
			rule:     opt.PushDownFilterProject,
			input:    filter(gt(1, 1), project(scanA, 1)),
			expected: project(filter(gt(1, 1), scanA), 1),
		},
		{
			name:  "push filter below eval-scalar",
			rule:  opt.PushDownFilterEvalScalar,
			input: filter(and(gt(1, 1), gt(c5, 1)), evalScalar(scanA, item(c5, plusOne(2)))),
			expected: filter(gt(c5, 1),
				evalScalar(filter(gt(1, 1), scanA), item(c5, plusOne(2)))),
		},
		{
			name:  "keep filter on computed column",
			rule:  opt.PushDownFilterEvalScalar,
			input: filter(gt(c5, 1), evalScalar(scanA, item(c5, plusOne(2)))),
		},
		{
			name:     "push filter below sort",
			rule:     opt.PushDownFilterSort,
			input:    filter(gt(1, 1), sortBy(scanA, 2)),
			expected: sortBy(filter(gt(1, 1), scanA), 2),
		},
		{
			name:  "push filter below grouped aggregate",
			rule:  opt.PushDownFilterAggregate,
			input: filter(and(gt(1, 1), gt(c5, 1)), aggregate(scanA, opt.MakeColSet(1), countRows)),
			expected: filter(gt(c5, 1),
				aggregate(filter(gt(1, 1), scanA), opt.MakeColSet(1), countRows)),
		},
		{
			name:  "keep filter above scalar aggregate",
			rule:  opt.PushDownFilterAggregate,
			input: filter(gt(c5, 1), aggregate(scanA, opt.ColSet{}, countRows)),
		},
		{
			name:     "push limit below project",
			rule:     opt.PushDownLimitProject,
			input:    limit(10, project(scanA, 1)),
			expected: project(limit(10, scanA), 1),
		},
		{
			name:     "push limit below eval-scalar",
			rule:     opt.PushDownLimitEvalScalar,
			input:    limit(10, evalScalar(scanA, item(c5, plusOne(1)))),
			expected: evalScalar(limit(10, scanA), item(c5, plusOne(1))),
		},
		{
			name:     "small input on the build side",
			rule:     opt.CommuteJoinBuildSide,
			input:    join(memo.InnerJoin, eq(1, 3), scanB, scanA),
			expected: join(memo.InnerJoin, eq(1, 3), scanA, scanB),
		},
		{
			name:  "build side already smaller",
			rule:  opt.CommuteJoinBuildSide,
			input: join(memo.InnerJoin, eq(1, 3), scanA, scanB),
		},
		{
			name:  "left join is not commuted",
			rule:  opt.CommuteJoinBuildSide,
			input: join(memo.LeftJoin, eq(1, 3), scanB, scanA),
		},
		{
			name:     "commute join",
			rule:     opt.CommuteJoin,
			input:    join(memo.InnerJoin, eq(1, 3), scanA, scanB),
			expected: join(memo.InnerJoin, eq(1, 3), scanB, scanA),
		},
		{
			name:     "prune join inputs",
			rule:     opt.PruneJoinCols,
			input:    project(join(memo.InnerJoin, eq(1, 3), scanA, scanB), 2),
			expected: project(join(memo.InnerJoin, eq(1, 3), scanA, project(scanB, 3)), 2),
		},
		{
			name:     "prune filter input",
			rule:     opt.PruneFilterCols,
			input:    project(filter(gt(1, 1), scanA), 1),
			expected: project(filter(gt(1, 1), project(scanA, 1)), 1),
		},
		{
			name:     "prune aggregate input",
			rule:     opt.PruneAggregateInputCols,
			input:    aggregate(scanA, opt.MakeColSet(1), countRows),
			expected: aggregate(project(scanA, 1), opt.MakeColSet(1), countRows),
		},
		{
			name:     "prune scan",
			rule:     opt.PruneScanCols,
			input:    project(scanA, 1),
			expected: memo.NewSExpr(&memo.ScanOp{Table: env.tabA, Cols: opt.MakeColSet(1)}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			oc := env.newContext(t, nil)
			require.NoError(t, oc.PrefetchStats(context.Background(), tc.input))
			res, changed, err := applyRule(t, oc, tc.rule, tc.input)
			require.NoError(t, err)
			if tc.expected == nil {
				require.False(t, changed)
				require.Same(t, tc.input, res)
				return
			}
			require.True(t, changed)
			env.requireEqualTrees(t, tc.expected, res)
			memo.CheckExpr(res)
		})
	}
}

func TestFoldUnknownFunction(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	oc := env.newContext(t, nil)

	pred := &scalar.Comparison{Op: scalar.GtOp, Left: scalar.NewVar(1), Right: &scalar.FuncCall{Func: 999}}
	_, _, err := applyRule(t, oc, opt.FoldFilterConstants, filter(pred, env.scanA()))
	require.Error(t, err)
	require.True(t, opt.HasErrorKind(err, opt.RuleTransformError))
	require.Contains(t, err.Error(), "rule FoldFilterConstants failed on filter")
	require.Contains(t, err.Error(), "unknown function id 999")
}

func applyRule(
	t *testing.T, oc *xform.OptimizeContext, name opt.RuleName, e *memo.SExpr,
) (*memo.SExpr, bool, error) {
	return xform.ApplyRule(oc, lookupRule(t, name), e)
}
