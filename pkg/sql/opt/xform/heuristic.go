// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/util/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the stage an optimizer run is in. A run moves from StateInit
// through one StateApplyingBatch per batch of its rule set to StateDone.
type State uint8

const (
	// StateInit is the state of an optimizer that has not run yet.
	StateInit State = iota

	// StateApplyingBatch is the state while the rules of a batch are applied.
	StateApplyingBatch

	// StateDone is the state after the last batch has reached a fixpoint, or
	// after the run failed.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateApplyingBatch:
		return "applying-batch"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// RuleStats counts how often a rule matched and how often it changed the
// tree during a run.
type RuleStats struct {
	Rule    opt.RuleName
	Matched int
	Applied int
}

// slowBatchEvery rate limits the warning about batches that need many rounds.
var slowBatchEvery = log.Every(10 * time.Second)

// HeuristicOptimizer rewrites an expression tree by applying the batches of a
// rule set in order. Each batch is applied in rounds: every rule of the batch
// is applied to the whole tree, in order, and the batch ends after a round in
// which no rule changed anything. A batch that is still changing the tree after
// sql.optimizer.heuristic.max_iterations rounds fails with an
// IterationLimitExceeded error.
//
// The input tree is never modified. Subtrees that no rule touched are shared
// between the input and the output.
//
// A HeuristicOptimizer performs a single run.
type HeuristicOptimizer struct {
	oc    *OptimizeContext
	rules *RuleSet

	state State
	batch int

	// lastApplied is the most recent rule that changed the tree.
	lastApplied opt.RuleName

	stats [opt.NumRuleNames]RuleStats

	// matchedRule is the callback function that is invoked each time an
	// optimization rule has been matched by the optimizer. If matchedRule is
	// nil, then no notification is sent, and all rules are applied by default.
	// In addition, callers can invoke the DisableOptimizations function to
	// disable all rules.
	matchedRule MatchedRuleFunc

	// appliedRule is the callback function which is invoked each time an
	// optimization rule has been applied by the optimizer. If appliedRule is
	// nil, then no further action is taken.
	appliedRule AppliedRuleFunc
}

// NewHeuristicOptimizer returns an optimizer for one run over the given rule
// set.
func NewHeuristicOptimizer(oc *OptimizeContext, rules *RuleSet) *HeuristicOptimizer {
	return &HeuristicOptimizer{oc: oc, rules: rules}
}

// NotifyOnMatchedRule sets a callback function which is invoked each time an
// optimization rule has been matched by the optimizer. If matchedRule is nil,
// then no further action is taken. If matchedRule is not nil, then the match
// is only applied if matchedRule returns true.
func (o *HeuristicOptimizer) NotifyOnMatchedRule(matchedRule MatchedRuleFunc) {
	o.matchedRule = matchedRule
}

// NotifyOnAppliedRule sets a callback function which is invoked each time an
// optimization rule has been applied by the optimizer. If appliedRule is nil,
// then no further action is taken.
func (o *HeuristicOptimizer) NotifyOnAppliedRule(appliedRule AppliedRuleFunc) {
	o.appliedRule = appliedRule
}

// DisableOptimizations disables all rules. The optimizer still runs every
// batch, so the result is the input itself.
func (o *HeuristicOptimizer) DisableOptimizations() {
	o.NotifyOnMatchedRule(func(opt.RuleName) bool { return false })
}

// State returns the state of the run and, while a batch is applied, the index
// of the batch.
func (o *HeuristicOptimizer) State() (State, int) {
	return o.state, o.batch
}

// Stats returns the statistics of every rule that matched at least once,
// ordered by rule name.
func (o *HeuristicOptimizer) Stats() []RuleStats {
	var res []RuleStats
	for i := range o.stats {
		if o.stats[i].Matched != 0 {
			res = append(res, o.stats[i])
		}
	}
	return res
}

// Optimize applies the rule set to the expression and returns the rewritten
// expression. Any error aborts the run; there is no partial result.
func (o *HeuristicOptimizer) Optimize(ctx context.Context, e *memo.SExpr) (_ *memo.SExpr, err error) {
	if o.state != StateInit {
		return nil, errors.AssertionFailedf("optimizer cannot be reused, it is in state %s", o.state)
	}

	ctx, sp := o.oc.tracer().Start(ctx, "optimize")
	defer sp.End()

	defer func() {
		o.state = StateDone
		if r := recover(); r != nil {
			// This code allows us to propagate internal errors without having
			// to add error checks everywhere throughout the code. This is only
			// possible because the code does not update shared state and does
			// not manipulate locks.
			err = opt.CatchOptimizerError(r)
		}
		if err != nil {
			sp.RecordError(err)
			sp.SetStatus(codes.Error, "optimization failed")
			o.oc.Metrics.recordFailure(err)
			log.VEventf(ctx, 1, "optimization failed: %v", err)
		}
	}()

	if o.oc.Metrics != nil {
		o.oc.Metrics.Runs.Inc()
	}
	if !o.oc.prefetched {
		if err := o.oc.PrefetchStats(ctx, e); err != nil {
			return nil, err
		}
	}

	for i := 0; i < o.rules.BatchCount(); i++ {
		o.state, o.batch = StateApplyingBatch, i
		if e, err = o.applyBatch(ctx, o.rules.Batch(i), e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// applyBatch applies the rules of the batch in rounds until a round changes
// nothing.
func (o *HeuristicOptimizer) applyBatch(
	ctx context.Context, b *Batch, e *memo.SExpr,
) (_ *memo.SExpr, err error) {
	ctx = logtags.AddTag(ctx, "batch", b.Name)
	ctx, sp := o.oc.tracer().Start(ctx, "batch", trace.WithAttributes(attribute.String("batch", b.Name)))
	defer sp.End()

	limit := int(MaxIterations.Get(o.oc.Settings))
	log.VEventf(ctx, 1, "applying %d rules", len(b.Rules))

	onApplied := func(name opt.RuleName, before, after *memo.SExpr, path []int) {
		if CheckExpressions.Get(o.oc.Settings) {
			memo.CheckExpr(after)
		}
		if LogRuleApplications.Get(o.oc.Settings) {
			log.Infof(ctx, "applied %s at %v", name, path)
		} else {
			log.VEventf(ctx, 2, "applied %s at %v", name, path)
		}
		if o.appliedRule != nil {
			o.appliedRule(name, before, after, path)
		}
	}

	for round := 1; ; round++ {
		changed := false
		for _, r := range b.Rules {
			if !o.ruleEnabled(r.Name) {
				continue
			}
			res, err := applyRule(o.oc, r, e, b.Name, o.matchedRule, onApplied)
			if err != nil {
				return nil, err
			}
			o.stats[r.Name].Rule = r.Name
			o.stats[r.Name].Matched += res.matched
			o.stats[r.Name].Applied += res.applied
			if res.applied != 0 {
				changed = true
				e = res.expr
				o.lastApplied = r.Name
				if o.oc.Metrics != nil {
					o.oc.Metrics.RuleApplications.WithLabelValues(r.Name.String()).Add(float64(res.applied))
				}
			}
		}

		if !changed {
			log.VEventf(ctx, 1, "fixpoint reached after %d rounds", round)
			sp.SetAttributes(attribute.Int("rounds", round))
			if o.oc.Metrics != nil {
				o.oc.Metrics.BatchRounds.WithLabelValues(b.Name).Observe(float64(round))
			}
			return e, nil
		}
		if round >= limit {
			return nil, opt.NewIterationLimitError(b.Name, o.lastApplied, limit)
		}
		if round == limit/2 && slowBatchEvery.ShouldLog() {
			log.Warningf(ctx, "batch is still changing the plan after %d rounds", round)
		}
	}
}

// ruleEnabled returns false for rules that are turned off for this run.
func (o *HeuristicOptimizer) ruleEnabled(name opt.RuleName) bool {
	if o.oc.RuleDisabled(name) {
		return false
	}
	switch name {
	case opt.FoldFilterConstants:
		return ConstantFoldingEnabled.Get(o.oc.Settings)
	case opt.CommuteJoinBuildSide:
		return JoinReorderEnabled.Get(o.oc.Settings)
	}
	return true
}
