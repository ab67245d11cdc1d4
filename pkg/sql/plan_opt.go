// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package sql routes bound statement plans through the optimizer.
package sql

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/xform"
	"github.com/cockroachdb/optrewrite/pkg/sql/plans"
	"github.com/cockroachdb/optrewrite/pkg/util/log"
)

// Optimize rewrites the queries contained in the plan. Plans that carry no
// query are returned unchanged. The input plan is never modified.
func Optimize(ctx context.Context, oc *xform.OptimizeContext, plan plans.Plan) (plans.Plan, error) {
	if plan == nil {
		return nil, errors.AssertionFailedf("nil plan")
	}
	ctx = logtags.AddTag(ctx, "plan", plan.Kind())

	switch p := plan.(type) {
	case *plans.Query:
		if oc.Metadata == nil {
			oc.Metadata = p.Metadata
		}
		e, err := OptimizeQuery(ctx, oc, p.Expr)
		if err != nil {
			return nil, err
		}
		if e == p.Expr {
			return p, nil
		}
		return &plans.Query{Expr: e, BindContext: p.BindContext, Metadata: p.Metadata}, nil

	case *plans.Explain:
		if p.Mode == plans.ExplainRaw {
			return p, nil
		}
		inner, err := Optimize(ctx, oc, p.Plan)
		if err != nil {
			return nil, err
		}
		if inner == p.Plan {
			return p, nil
		}
		return &plans.Explain{Mode: p.Mode, Plan: inner}, nil

	case *plans.ShowMetrics,
		*plans.ShowProcessList,
		*plans.ShowSettings,
		*plans.CreateDatabase,
		*plans.CreateTable,
		*plans.CreateUser,
		*plans.CreateView,
		*plans.DropUser:
		log.VEventf(ctx, 2, "no optimization needed")
		return plan, nil

	default:
		return nil, errors.AssertionFailedf("unhandled plan type %T", plan)
	}
}

// OptimizeQuery runs the heuristic optimizer with the default rule set over
// the query expression.
func OptimizeQuery(ctx context.Context, oc *xform.OptimizeContext, e *memo.SExpr) (*memo.SExpr, error) {
	if e == nil {
		return nil, errors.AssertionFailedf("query has no expression")
	}
	o := xform.NewHeuristicOptimizer(oc, xform.DefaultRuleSet())
	res, err := o.Optimize(ctx, e)
	if err != nil {
		return nil, errors.Wrap(err, "optimizing query")
	}
	if log.ExpensiveLogEnabled(ctx, 2) {
		for _, s := range o.Stats() {
			log.VEventf(ctx, 2, "rule %s matched %d times, applied %d times", s.Rule, s.Matched, s.Applied)
		}
	}
	return res, nil
}
