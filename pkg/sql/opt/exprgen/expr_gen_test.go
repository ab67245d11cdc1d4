// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package exprgen_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/exprgen"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/optrewrite/pkg/util/log"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *testcat.Catalog {
	tc := testcat.New()
	_, err := tc.CreateTable("a", []string{"x", "y"}, nil, 1000)
	require.NoError(t, err)
	_, err = tc.CreateTable("b", []string{"x", "z"}, nil, 10)
	require.NoError(t, err)
	return tc
}

func build(t *testing.T, md *opt.Metadata, fns scalar.FunctionRegistry, input string) *memo.SExpr {
	e, err := exprgen.Build(context.Background(), newCatalog(t), md, fns, input)
	require.NoError(t, err)
	return e
}

func TestBuild(t *testing.T) {
	defer log.Scope(t).Close(t)
	fns := scalar.NewBuiltinRegistry()
	plus, _ := fns.ResolveFunction("plus")

	var md opt.Metadata
	e := build(t, &md, fns, `
		(limit 10 5
		  (sort (+a.x -z)
		    (filter (and (gt a.x 1) (is-null b.z) (ne y "foo"))
		      (inner-join (eq a.x b.x)
		        (scan a)
		        (eval-scalar ((z1 (plus z -1.5))) (scan b))))))`)

	// a(x, y) is 1-2, b(x, z) is 3-4 and z1 is 5.
	scanA := memo.NewSExpr(&memo.ScanOp{Table: md.AllTables()[0].MetaID, Cols: opt.MakeColSet(1, 2)})
	scanB := memo.NewSExpr(&memo.ScanOp{Table: md.AllTables()[1].MetaID, Cols: opt.MakeColSet(3, 4)})
	minus15, err := scalar.ParseDDecimal("-1.5")
	require.NoError(t, err)
	eval := memo.NewSExpr(&memo.EvalScalarOp{Items: []memo.ScalarItem{{
		Col:  5,
		Expr: &scalar.FuncCall{Func: plus, Args: []scalar.Expr{scalar.NewVar(4), scalar.NewConst(minus15)}},
	}}}, scanB)
	join := memo.NewSExpr(&memo.JoinOp{
		Type: memo.InnerJoin,
		On:   &scalar.Comparison{Op: scalar.EqOp, Left: scalar.NewVar(1), Right: scalar.NewVar(3)},
	}, scanA, eval)
	pred := scalar.MakeAnd(
		&scalar.Comparison{Op: scalar.GtOp, Left: scalar.NewVar(1), Right: scalar.NewConst(scalar.NewDInt(1))},
		&scalar.IsNull{Input: scalar.NewVar(4)},
		&scalar.Comparison{Op: scalar.NeOp, Left: scalar.NewVar(2), Right: scalar.NewConst(scalar.DString("foo"))},
	)
	sort := memo.NewSExpr(&memo.SortOp{Ordering: opt.Ordering{
		opt.MakeOrderingColumn(1, false), opt.MakeOrderingColumn(4, true),
	}}, memo.NewSExpr(&memo.FilterOp{Predicate: pred}, join))
	expected := memo.NewSExpr(&memo.LimitOp{Limit: 10, Offset: 5}, sort)

	if !expected.Equals(e) {
		t.Fatalf("expected:\n%s\nactual:\n%s",
			memo.FormatExpr(expected, memo.ExprFmtHideAll, &md, fns),
			memo.FormatExpr(e, memo.ExprFmtHideAll, &md, fns))
	}
	require.Equal(t, "z1", md.QualifiedAlias(5))
	memo.CheckExpr(e)
}

func TestBuildOperators(t *testing.T) {
	defer log.Scope(t).Close(t)

	testCases := []struct {
		input string
		op    opt.Operator
		cols  string
	}{
		{input: `(scan a)`, op: opt.ScanOp, cols: "a.x:1 a.y:2"},
		{input: `(scan a t)`, op: opt.ScanOp, cols: "t.x:1 t.y:2"},
		{input: `(cross-join (scan a) (scan b))`, op: opt.JoinOp, cols: "a.x:1 a.y:2 b.x:3 b.z:4"},
		{input: `(semi-join (eq a.x b.x) (scan a) (scan b))`, op: opt.JoinOp, cols: "a.x:1 a.y:2"},
		{input: `(project (y) (scan a))`, op: opt.ProjectOp, cols: "a.y:2"},
		{input: `(limit 3 (scan a))`, op: opt.LimitOp, cols: "a.x:1 a.y:2"},
		{
			input: `(aggregate (a.x) ((n count-rows) (s sum y)) (scan a))`,
			op:    opt.AggregateOp,
			cols:  "a.x:1 n:3 s:4",
		},
		{input: `(union-all (scan a) (scan b))`, op: opt.UnionAllOp, cols: "x:5 y:6"},
		{input: `(exchange (hash x) (scan a))`, op: opt.ExchangeOp, cols: "a.x:1 a.y:2"},
		{input: `(exchange serial (scan a))`, op: opt.ExchangeOp, cols: "a.x:1 a.y:2"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			var md opt.Metadata
			e := build(t, &md, nil, tc.input)
			require.Equal(t, tc.op, e.Op())
			require.Equal(t, tc.cols, md.FormatColSet(e.OutputCols()))
			memo.CheckExpr(e)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	defer log.Scope(t).Close(t)

	testCases := []struct {
		input string
		err   string
	}{
		{input: `(scan a`, err: "unterminated list"},
		{input: `(scan a) (scan b)`, err: `unexpected "(" after expression`},
		{input: ``, err: "unexpected end of input"},
		{input: `(scan c)`, err: `no table named "c"`},
		{input: `(frobnicate (scan a))`, err: "unknown operator frobnicate"},
		{input: `(filter (gt w 1) (scan a))`, err: "column w does not exist"},
		{input: `(filter (eq x 1) (cross-join (scan a) (scan b)))`, err: "column reference x is ambiguous"},
		{input: `(filter (gt a.x) (scan a))`, err: "wrong number of arguments to gt"},
		{input: `(filter (frob a.x) (scan a))`, err: "unknown function frob"},
		{input: `(limit -1 (scan a))`, err: "expected a non-negative integer"},
		{input: `(sort (x) (scan a))`, err: "expected +COL or -COL"},
		{input: `(aggregate () ((n median x)) (scan a))`, err: "unknown aggregate median"},
		{input: `(aggregate () ((n count-rows x)) (scan a))`, err: "wrong number of arguments to count-rows"},
		{input: `(union-all (scan a) (project (x) (scan b)))`, err: "union-all inputs have 2 and 1 columns"},
		{input: `(exchange (serial x) (scan a))`, err: "only hash distributions have keys"},
		{input: `(exchange any (scan a))`, err: "unknown distribution any"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			var md opt.Metadata
			_, err := exprgen.Build(context.Background(), newCatalog(t), &md, scalar.NewBuiltinRegistry(), tc.input)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestBuildRequired(t *testing.T) {
	defer log.Scope(t).Close(t)
	var md opt.Metadata
	e := build(t, &md, nil, `(scan a)`)

	required, err := exprgen.BuildRequired(&md, e.OutputCols(), `((ordering +x -a.y) (distribution hash y))`)
	require.NoError(t, err)
	expected := &physical.Required{
		Ordering:     opt.Ordering{opt.MakeOrderingColumn(1, false), opt.MakeOrderingColumn(2, true)},
		Distribution: physical.Distribution{Kind: physical.Hash, Keys: opt.ColList{2}},
	}
	require.True(t, expected.Equals(required), "%s", required)

	required, err = exprgen.BuildRequired(&md, e.OutputCols(), `()`)
	require.NoError(t, err)
	require.False(t, required.Defined())

	_, err = exprgen.BuildRequired(&md, e.OutputCols(), `((color red))`)
	require.ErrorContains(t, err, "unknown physical property (color red)")
}

func TestBuildScalar(t *testing.T) {
	fns := scalar.NewBuiltinRegistry()
	var md opt.Metadata
	e := build(t, &md, fns, `(scan a)`)

	s, err := exprgen.BuildScalar(&md, fns, e.OutputCols(), `(or (not (lt x 1)) (ge y 2) false null)`)
	require.NoError(t, err)
	f := scalar.Formatter{Metadata: &md, Functions: fns}
	require.Equal(t, "NOT (a.x:1 < 1) OR a.y:2 >= 2 OR false OR NULL", f.Format(s))
}
