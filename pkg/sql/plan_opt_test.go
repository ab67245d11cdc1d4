// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sql_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/settings"
	"github.com/cockroachdb/optrewrite/pkg/sql"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/exprgen"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/xform"
	"github.com/cockroachdb/optrewrite/pkg/sql/plans"
	"github.com/cockroachdb/optrewrite/pkg/util/log"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	catalog *testcat.Catalog
	fns     *scalar.Registry
	md      opt.Metadata
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{catalog: testcat.New(), fns: scalar.NewBuiltinRegistry()}
	_, err := f.catalog.CreateTable("a", []string{"x", "y"}, nil, 1000)
	require.NoError(t, err)
	_, err = f.catalog.CreateTable("b", []string{"x", "z"}, nil, 10)
	require.NoError(t, err)
	return f
}

func (f *fixture) query(t *testing.T, input string) *plans.Query {
	e, err := exprgen.Build(context.Background(), f.catalog, &f.md, f.fns, input)
	require.NoError(t, err)
	return &plans.Query{Expr: e, Metadata: &f.md}
}

func (f *fixture) optimizeContext(t *testing.T) *xform.OptimizeContext {
	sv := settings.MakeValues()
	xform.CheckExpressions.Override(sv, true)
	oc, err := xform.NewOptimizeContext(&f.md, f.fns, f.catalog, sv)
	require.NoError(t, err)
	return oc
}

func (f *fixture) format(e *memo.SExpr) string {
	return memo.FormatExpr(e, memo.ExprFmtHideMiscProps|memo.ExprFmtHidePhysProps, &f.md, f.fns)
}

const filterOverJoin = `(filter (and (gt a.x 1) (eq a.x b.x) (gt b.z 250)) (cross-join (scan a) (scan b)))`

const pushedDown = `inner-join
 ├── columns: a.x:1 a.y:2 b.x:3 b.z:4
 ├── filter
 │    ├── columns: a.x:1 a.y:2
 │    ├── scan a
 │    │    └── columns: a.x:1 a.y:2
 │    └── predicate: a.x:1 > 1
 ├── filter
 │    ├── columns: b.x:3 b.z:4
 │    ├── scan b
 │    │    └── columns: b.x:3 b.z:4
 │    └── predicate: b.z:4 > 250
 └── on: a.x:1 = b.x:3
`

func TestOptimizeQueryPlan(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t)
	q := f.query(t, filterOverJoin)
	q.BindContext = plans.BindContext{Columns: []plans.ColumnBinding{{Name: "x", ID: 1}}}
	before := f.format(q.Expr)

	res, err := sql.Optimize(context.Background(), f.optimizeContext(t), q)
	require.NoError(t, err)
	out, ok := res.(*plans.Query)
	require.True(t, ok, "expected a query, got %T", res)
	require.Equal(t, pushedDown, f.format(out.Expr))
	require.Equal(t, q.BindContext, out.BindContext)
	require.Same(t, q.Metadata, out.Metadata)

	// The input plan is not modified.
	require.Equal(t, before, f.format(q.Expr))
}

// TestOptimizePushesFilterBelowJoin checks that a predicate on one join input
// moves below the join and that the other input is reused.
func TestOptimizePushesFilterBelowJoin(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t)
	q := f.query(t, `(filter (gt a.x 1) (cross-join (scan a) (scan b)))`)

	res, err := sql.Optimize(context.Background(), f.optimizeContext(t), q)
	require.NoError(t, err)
	out := res.(*plans.Query).Expr
	require.Equal(t, `cross-join
 ├── filter
 │    └── scan a
 └── scan b
`, memo.FormatExpr(out, memo.ExprFmtHideAll, &f.md, f.fns))
	require.True(t, out.OutputCols().Equals(q.Expr.OutputCols()))
	require.Same(t, q.Expr.Child(0).Child(1), out.Child(1))
}

func TestOptimizePassesThroughCommands(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t)
	show := &plans.ShowSettings{Like: "sql.optimizer.%"}
	res, err := sql.Optimize(context.Background(), f.optimizeContext(t), show)
	require.NoError(t, err)
	require.Same(t, show, res)
	require.Equal(t, "sql.optimizer.%", res.(*plans.ShowSettings).Like)
}

// TestOptimizeRoutesEveryKind checks that every plan kind is routed by
// Optimize.
func TestOptimizeRoutesEveryKind(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t)
	for k := plans.Kind(0); k < plans.NumKinds; k++ {
		t.Run(k.String(), func(t *testing.T) {
			p := plans.New(k)
			switch p := p.(type) {
			case *plans.Query:
				*p = *f.query(t, `(scan a)`)
			case *plans.Explain:
				p.Plan = f.query(t, `(scan b)`)
			}
			res, err := sql.Optimize(context.Background(), f.optimizeContext(t), p)
			require.NoError(t, err)
			require.Equal(t, k, res.Kind())
		})
	}
}

func TestOptimizeExplain(t *testing.T) {
	defer log.Scope(t).Close(t)
	ctx := context.Background()

	for _, mode := range []plans.ExplainMode{plans.ExplainPlan, plans.ExplainMemo} {
		t.Run(mode.String(), func(t *testing.T) {
			// Each subtest binds its own columns, starting at 1.
			f := newFixture(t)
			ex := &plans.Explain{Mode: mode, Plan: f.query(t, filterOverJoin)}
			res, err := sql.Optimize(ctx, f.optimizeContext(t), ex)
			require.NoError(t, err)
			out := res.(*plans.Explain)
			require.Equal(t, mode, out.Mode)
			require.Equal(t, pushedDown, f.format(out.Plan.(*plans.Query).Expr))
		})
	}

	f := newFixture(t)

	// A raw explain shows the plan as it was bound.
	raw := &plans.Explain{Mode: plans.ExplainRaw, Plan: f.query(t, filterOverJoin)}
	res, err := sql.Optimize(ctx, f.optimizeContext(t), raw)
	require.NoError(t, err)
	require.Same(t, raw, res)

	// Nested explains recurse.
	nested := &plans.Explain{Plan: &plans.Explain{Plan: &plans.ShowMetrics{}}}
	res, err = sql.Optimize(ctx, f.optimizeContext(t), nested)
	require.NoError(t, err)
	require.Same(t, nested, res)
}

type unknownPlan struct{}

func (unknownPlan) Kind() plans.Kind { return plans.NumKinds }

func TestOptimizeErrors(t *testing.T) {
	defer log.Scope(t).Close(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := sql.Optimize(ctx, f.optimizeContext(t), unknownPlan{})
	require.True(t, errors.HasAssertionFailure(err), "%+v", err)

	_, err = sql.Optimize(ctx, f.optimizeContext(t), nil)
	require.True(t, errors.HasAssertionFailure(err), "%+v", err)

	_, err = sql.Optimize(ctx, f.optimizeContext(t), &plans.Query{})
	require.True(t, errors.HasAssertionFailure(err), "%+v", err)

	// A batch that does not converge fails the whole plan.
	oc := f.optimizeContext(t)
	xform.MaxIterations.Override(oc.Settings, 1)
	_, err = sql.Optimize(ctx, oc, &plans.Explain{Plan: f.query(t, filterOverJoin)})
	require.True(t, opt.HasErrorKind(err, opt.IterationLimitExceeded), "%+v", err)
	require.ErrorContains(t, err, "optimizing query")
}
