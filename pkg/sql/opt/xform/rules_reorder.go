// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
)

func init() {
	registerRule(&Rule{
		Name:      opt.CommuteJoinBuildSide,
		Pattern:   OpPattern(opt.JoinOp, Any("left"), Any("right")),
		Transform: commuteJoinBuildSide,
		Inverse:   opt.CommuteJoin,
	})
	registerRule(&Rule{
		Name:        opt.CommuteJoin,
		Pattern:     OpPattern(opt.JoinOp, Any("left"), Any("right")),
		Transform:   commuteJoin,
		SelfInverse: true,
	})
}

// commuteJoinBuildSide swaps the inputs of an inner or cross join when the
// left input is estimated to return strictly fewer rows than the right one.
// The right input is the build side of a hash join, so it should be the
// smaller one. The comparison is strict, so the swap is never undone.
func commuteJoinBuildSide(oc *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	join := m.Expr.Private().(*memo.JoinOp)
	if join.Type != memo.InnerJoin && join.Type != memo.CrossJoin {
		return nil, nil
	}
	left, right := m.Bindings.Get("left"), m.Bindings.Get("right")
	if oc.EstimateRows(left) >= oc.EstimateRows(right) {
		return nil, nil
	}
	return result(memo.NewSExpr(join, right, left)), nil
}

// commuteJoin swaps the inputs of an inner or cross join unconditionally. It
// is used to add alternatives to memo groups.
func commuteJoin(_ *OptimizeContext, m *Match) ([]*memo.SExpr, error) {
	join := m.Expr.Private().(*memo.JoinOp)
	if join.Type != memo.InnerJoin && join.Type != memo.CrossJoin {
		return nil, nil
	}
	return result(memo.NewSExpr(join, m.Bindings.Get("right"), m.Bindings.Get("left"))), nil
}
