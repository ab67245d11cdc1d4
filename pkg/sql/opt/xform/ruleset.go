// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// Batch is a named group of rules that is applied to a fixpoint before the
// next batch starts. Rules are tried in the order given.
type Batch struct {
	Name  string
	Rules []*Rule
}

// RuleSet is an ordered list of batches. The order matters: a later batch may
// depend on the shape produced by an earlier one, for example join reordering
// expects filters to have been pushed down already.
type RuleSet struct {
	batches []Batch
}

// NewRuleSet validates the batches and returns a rule set. Within one batch,
// no rule may be its own inverse, and no two rules may undo each other, since
// the batch could then never reach a fixpoint.
func NewRuleSet(batches ...Batch) (*RuleSet, error) {
	seen := make(map[string]bool, len(batches))
	for _, b := range batches {
		if b.Name == "" {
			return nil, errors.New("rule batches must be named")
		}
		if seen[b.Name] {
			return nil, errors.Newf("duplicate rule batch %s", b.Name)
		}
		seen[b.Name] = true

		var members [opt.NumRuleNames]bool
		for _, r := range b.Rules {
			if r.SelfInverse {
				return nil, errors.Newf("rule %s undoes itself and cannot be part of batch %s", r.Name, b.Name)
			}
			members[r.Name] = true
		}
		for _, r := range b.Rules {
			if r.Inverse != opt.InvalidRuleName && members[r.Inverse] {
				return nil, errors.Newf(
					"rules %s and %s undo each other and cannot share batch %s", r.Name, r.Inverse, b.Name)
			}
		}
	}
	return &RuleSet{batches: batches}, nil
}

// BatchCount returns the number of batches.
func (rs *RuleSet) BatchCount() int {
	return len(rs.batches)
}

// Batch returns the ith batch.
func (rs *RuleSet) Batch(i int) *Batch {
	return &rs.batches[i]
}

// Names of the default batches.
const (
	NormalizeBatch = "normalize"
	PushDownBatch  = "pushdown"
	ReorderBatch   = "reorder"
	PruneBatch     = "prune"
)

// defaultBatches lists the rules of each default batch, in order.
var defaultBatches = []struct {
	name  string
	rules []opt.RuleName
}{
	{NormalizeBatch, []opt.RuleName{
		opt.FoldFilterConstants,
		opt.EliminateFilter,
		opt.MergeFilter,
		opt.MergeEvalScalar,
		opt.EliminateEvalScalar,
		opt.EliminateProject,
		opt.MergeProject,
	}},
	{PushDownBatch, []opt.RuleName{
		opt.PushDownFilterJoin,
		opt.PushDownFilterProject,
		opt.PushDownFilterEvalScalar,
		opt.PushDownFilterSort,
		opt.PushDownFilterAggregate,
		opt.MergeFilter,
		opt.PushDownLimitProject,
		opt.PushDownLimitEvalScalar,
	}},
	{ReorderBatch, []opt.RuleName{
		opt.CommuteJoinBuildSide,
	}},
	{PruneBatch, []opt.RuleName{
		opt.PruneJoinCols,
		opt.PruneFilterCols,
		opt.PruneAggregateInputCols,
		opt.PruneScanCols,
		opt.EliminateProject,
		opt.MergeProject,
	}},
}

var defaultRuleSet struct {
	once sync.Once
	rs   *RuleSet
}

// DefaultRuleSet returns the rule set used by OptimizeQuery.
func DefaultRuleSet() *RuleSet {
	defaultRuleSet.once.Do(func() {
		batches := make([]Batch, len(defaultBatches))
		for i, b := range defaultBatches {
			batches[i].Name = b.name
			for _, name := range b.rules {
				r, ok := LookupRule(name)
				if !ok {
					panic(errors.AssertionFailedf("rule %s is not registered", name))
				}
				batches[i].Rules = append(batches[i].Rules, r)
			}
		}
		rs, err := NewRuleSet(batches...)
		if err != nil {
			panic(errors.NewAssertionErrorWithWrappedErrf(err, "invalid default rule set"))
		}
		defaultRuleSet.rs = rs
	})
	return defaultRuleSet.rs
}
