// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"testing"

	"github.com/cockroachdb/optrewrite/pkg/settings"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/xform"
	"github.com/stretchr/testify/require"
)

// testEnv has a large table a(x, y) with column ids 1 and 2 and a small table
// b(x, y) with column ids 3 and 4.
type testEnv struct {
	cat  *testcat.Catalog
	md   opt.Metadata
	fns  *scalar.Registry
	tabA opt.TableID
	tabB opt.TableID
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{cat: testcat.New(), fns: scalar.NewBuiltinRegistry()}
	a, err := env.cat.CreateTable("a", []string{"x", "y"}, nil, 1000)
	require.NoError(t, err)
	b, err := env.cat.CreateTable("b", []string{"x", "y"}, nil, 10)
	require.NoError(t, err)
	env.tabA = env.md.AddTable(a, "")
	env.tabB = env.md.AddTable(b, "")
	return env
}

// newContext returns a context for one run. Expressions are checked after
// every rule application.
func (env *testEnv) newContext(t *testing.T, sv *settings.Values) *xform.OptimizeContext {
	if sv == nil {
		sv = settings.MakeValues()
	}
	xform.CheckExpressions.Override(sv, true)
	oc, err := xform.NewOptimizeContext(&env.md, env.fns, env.cat, sv)
	require.NoError(t, err)
	return oc
}

func (env *testEnv) scanA() *memo.SExpr {
	return memo.NewSExpr(&memo.ScanOp{Table: env.tabA, Cols: opt.MakeColSet(1, 2)})
}

func (env *testEnv) scanB() *memo.SExpr {
	return memo.NewSExpr(&memo.ScanOp{Table: env.tabB, Cols: opt.MakeColSet(3, 4)})
}

func (env *testEnv) fn(t *testing.T, name string, args ...scalar.Expr) scalar.Expr {
	id, ok := env.fns.ResolveFunction(name)
	require.True(t, ok, name)
	return &scalar.FuncCall{Func: id, Args: args}
}

func intConst(val int64) scalar.Expr {
	return scalar.NewConst(scalar.NewDInt(val))
}

func gt(col opt.ColumnID, val int64) scalar.Expr {
	return &scalar.Comparison{Op: scalar.GtOp, Left: scalar.NewVar(col), Right: intConst(val)}
}

func eq(left, right opt.ColumnID) scalar.Expr {
	return &scalar.Comparison{Op: scalar.EqOp, Left: scalar.NewVar(left), Right: scalar.NewVar(right)}
}

func and(exprs ...scalar.Expr) scalar.Expr {
	return scalar.MakeAnd(exprs...)
}

func filter(pred scalar.Expr, input *memo.SExpr) *memo.SExpr {
	return memo.NewSExpr(&memo.FilterOp{Predicate: pred}, input)
}

func join(typ memo.JoinType, on scalar.Expr, left, right *memo.SExpr) *memo.SExpr {
	return memo.NewSExpr(&memo.JoinOp{Type: typ, On: on}, left, right)
}

func project(input *memo.SExpr, cols ...opt.ColumnID) *memo.SExpr {
	return memo.NewSExpr(&memo.ProjectOp{Cols: opt.MakeColSet(cols...)}, input)
}

func limit(n uint64, input *memo.SExpr) *memo.SExpr {
	return memo.NewSExpr(&memo.LimitOp{Limit: n}, input)
}

func sortBy(input *memo.SExpr, cols ...opt.ColumnID) *memo.SExpr {
	ord := make(opt.Ordering, len(cols))
	for i, c := range cols {
		ord[i] = opt.MakeOrderingColumn(c, false)
	}
	return memo.NewSExpr(&memo.SortOp{Ordering: ord}, input)
}

func evalScalar(input *memo.SExpr, items ...memo.ScalarItem) *memo.SExpr {
	return memo.NewSExpr(&memo.EvalScalarOp{Items: items}, input)
}

func aggregate(input *memo.SExpr, grouping opt.ColSet, aggs ...memo.AggregateItem) *memo.SExpr {
	return memo.NewSExpr(&memo.AggregateOp{GroupingCols: grouping, Aggregations: aggs}, input)
}

// format prints the expression tree with column names.
func (env *testEnv) format(e *memo.SExpr) string {
	return memo.FormatExpr(e, memo.ExprFmtHideMiscProps|memo.ExprFmtHidePhysProps, &env.md, env.fns)
}

// requireEqualTrees fails the test with both trees printed if they differ.
func (env *testEnv) requireEqualTrees(t *testing.T, expected, actual *memo.SExpr) {
	t.Helper()
	if !expected.Equals(actual) {
		t.Fatalf("expected:\n%s\nactual:\n%s", env.format(expected), env.format(actual))
	}
}
