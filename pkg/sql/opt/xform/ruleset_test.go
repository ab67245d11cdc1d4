// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"testing"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/xform"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func lookupRule(t *testing.T, name opt.RuleName) *xform.Rule {
	r, ok := xform.LookupRule(name)
	require.True(t, ok, "rule %s", name)
	return r
}

func TestRuleRegistry(t *testing.T) {
	rules := xform.AllRules()
	require.Len(t, rules, int(opt.NumRuleNames)-1)
	for i, r := range rules {
		require.Equal(t, opt.RuleName(i+1), r.Name)
		require.NotNil(t, r.Pattern, r.Name)
	}
	_, ok := xform.LookupRule(opt.InvalidRuleName)
	require.False(t, ok)
	_, ok = xform.LookupRule(opt.NumRuleNames)
	require.False(t, ok)
}

func TestDefaultRuleSet(t *testing.T) {
	rs := xform.DefaultRuleSet()
	require.Same(t, rs, xform.DefaultRuleSet())

	var names []string
	for i := 0; i < rs.BatchCount(); i++ {
		names = append(names, rs.Batch(i).Name)
	}
	expected := []string{xform.NormalizeBatch, xform.PushDownBatch, xform.ReorderBatch, xform.PruneBatch}
	if diff := cmp.Diff(expected, names); diff != "" {
		t.Fatalf("unexpected batches (-want +got):\n%s", diff)
	}

	for i := 0; i < rs.BatchCount(); i++ {
		for _, r := range rs.Batch(i).Rules {
			require.False(t, r.SelfInverse, r.Name)
		}
	}
}

func TestNewRuleSetValidation(t *testing.T) {
	mergeFilter := lookupRule(t, opt.MergeFilter)
	eliminateFilter := lookupRule(t, opt.EliminateFilter)

	// A copy of MergeFilter that declares EliminateFilter as its inverse.
	undoesEliminate := *mergeFilter
	undoesEliminate.Inverse = opt.EliminateFilter

	testCases := []struct {
		name    string
		batches []xform.Batch
		err     string
	}{
		{
			name:    "valid",
			batches: []xform.Batch{{Name: "a", Rules: []*xform.Rule{mergeFilter}}, {Name: "b"}},
		},
		{
			name:    "unnamed",
			batches: []xform.Batch{{Rules: []*xform.Rule{mergeFilter}}},
			err:     "rule batches must be named",
		},
		{
			name:    "duplicate",
			batches: []xform.Batch{{Name: "a"}, {Name: "a"}},
			err:     "duplicate rule batch a",
		},
		{
			name:    "self inverse",
			batches: []xform.Batch{{Name: "a", Rules: []*xform.Rule{lookupRule(t, opt.CommuteJoin)}}},
			err:     "rule CommuteJoin undoes itself and cannot be part of batch a",
		},
		{
			name: "inverse pair",
			batches: []xform.Batch{
				{Name: "a", Rules: []*xform.Rule{&undoesEliminate, eliminateFilter}},
			},
			err: "rules MergeFilter and EliminateFilter undo each other and cannot share batch a",
		},
		{
			name: "inverse pair in separate batches",
			batches: []xform.Batch{
				{Name: "a", Rules: []*xform.Rule{&undoesEliminate}},
				{Name: "b", Rules: []*xform.Rule{eliminateFilter}},
			},
		},
		{
			name: "declared inverse of a default rule",
			batches: []xform.Batch{
				{Name: "a", Rules: []*xform.Rule{lookupRule(t, opt.CommuteJoinBuildSide), lookupRule(t, opt.CommuteJoin)}},
			},
			err: "rule CommuteJoin undoes itself and cannot be part of batch a",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := xform.NewRuleSet(tc.batches...)
			if tc.err != "" {
				require.EqualError(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tc.batches), rs.BatchCount())
		})
	}
}

func TestParseRuleNames(t *testing.T) {
	names, err := xform.ParseRuleNames(" MergeFilter,, PruneScanCols ")
	require.NoError(t, err)
	require.Equal(t, []opt.RuleName{opt.MergeFilter, opt.PruneScanCols}, names)

	names, err = xform.ParseRuleNames("")
	require.NoError(t, err)
	require.Empty(t, names)

	_, err = xform.ParseRuleNames("MergeFilter,NoSuchRule")
	require.EqualError(t, err, `unknown rule "NoSuchRule"`)
}

func TestApplyRuleFirstCandidateWins(t *testing.T) {
	env := newTestEnv(t)
	oc := env.newContext(t, nil)
	scanA, scanB := env.scanA(), env.scanB()

	r := &xform.Rule{
		Name:    opt.CommuteJoin,
		Pattern: xform.OpPattern(opt.JoinOp, xform.Any("left"), xform.Any("right")),
		Transform: func(_ *xform.OptimizeContext, m *xform.Match) ([]*memo.SExpr, error) {
			first := join(memo.CrossJoin, nil, m.Bindings.Get("right"), m.Bindings.Get("left"))
			return []*memo.SExpr{first, m.Expr}, nil
		},
	}
	input := filter(gt(1, 1), join(memo.CrossJoin, nil, scanA, scanB))
	res, changed, err := xform.ApplyRule(oc, r, input)
	require.NoError(t, err)
	require.True(t, changed)
	require.Same(t, scanB, res.At([]int{0, 0}))
	require.Same(t, scanA, res.At([]int{0, 1}))
	require.Same(t, input.Private(), res.Private())

	// Returning the matched expression itself is not a change.
	noop := &xform.Rule{
		Name:    opt.CommuteJoin,
		Pattern: r.Pattern,
		Transform: func(_ *xform.OptimizeContext, m *xform.Match) ([]*memo.SExpr, error) {
			return []*memo.SExpr{m.Expr}, nil
		},
	}
	res, changed, err = xform.ApplyRule(oc, noop, input)
	require.NoError(t, err)
	require.False(t, changed)
	require.Same(t, input, res)
}

func TestApplyRuleSkipsReplacedSubtrees(t *testing.T) {
	env := newTestEnv(t)
	oc := env.newContext(t, nil)

	// Both filters match, but the inner one is gone once the outer one has
	// been merged, so the rule is only applied once per pass.
	input := filter(gt(1, 1), filter(gt(2, 2), filter(gt(1, 3), env.scanA())))
	res, changed, err := xform.ApplyRule(oc, lookupRule(t, opt.MergeFilter), input)
	require.NoError(t, err)
	require.True(t, changed)
	env.requireEqualTrees(t, filter(and(gt(2, 2), gt(1, 1)), filter(gt(1, 3), env.scanA())), res)
}
