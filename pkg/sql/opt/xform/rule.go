// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
)

// TransformFunc computes the replacements for a matched expression. It must
// not modify the match, and it must return the same candidates for the same
// match. Returning no candidates means the rule does not apply here.
type TransformFunc func(oc *OptimizeContext, m *Match) ([]*memo.SExpr, error)

// Rule is a named rewrite: wherever Pattern matches, the expression may be
// replaced by one of the candidates returned by Transform.
type Rule struct {
	Name      opt.RuleName
	Pattern   *Pattern
	Transform TransformFunc

	// SelfInverse is set for rules that undo their own work when applied
	// twice, such as commuting a join. Such a rule never reaches a fixpoint.
	SelfInverse bool

	// Inverse names a rule that undoes the work of this one.
	Inverse opt.RuleName
}

func (r *Rule) String() string {
	return r.Name.String()
}

// registry holds the built-in rules, indexed by name.
var registry [opt.NumRuleNames]*Rule

// registerRule adds a built-in rule. It is called from init functions.
func registerRule(r *Rule) {
	if r.Name == opt.InvalidRuleName || r.Name >= opt.NumRuleNames {
		panic(errors.AssertionFailedf("invalid rule name %d", r.Name))
	}
	if registry[r.Name] != nil {
		panic(errors.AssertionFailedf("rule %s registered twice", r.Name))
	}
	if r.Pattern == nil || r.Transform == nil {
		panic(errors.AssertionFailedf("rule %s needs a pattern and a transform", r.Name))
	}
	registry[r.Name] = r
}

// LookupRule returns the built-in rule with the given name.
func LookupRule(name opt.RuleName) (*Rule, bool) {
	if name >= opt.NumRuleNames || registry[name] == nil {
		return nil, false
	}
	return registry[name], true
}

// AllRules returns every built-in rule, ordered by name id.
func AllRules() []*Rule {
	var res []*Rule
	for _, r := range registry {
		if r != nil {
			res = append(res, r)
		}
	}
	return res
}

// ruleResult is the outcome of applying a rule to a tree once.
type ruleResult struct {
	expr    *memo.SExpr
	matched int
	applied int
}

// MatchedRuleFunc is called when a rule matches, before its transform runs.
// If it returns false, the match is skipped.
type MatchedRuleFunc func(ruleName opt.RuleName) bool

// AppliedRuleFunc is called after a rule has replaced an expression. before
// and after are the whole trees, and path locates the replacement.
type AppliedRuleFunc func(ruleName opt.RuleName, before, after *memo.SExpr, path []int)

// applyRule extracts every match of the rule in expr and applies the rule to
// each of them. The first candidate returned for a match replaces the matched
// expression; only the ancestors of the replaced expression are rebuilt. A
// match inside an expression that has already been replaced during this call
// is skipped, since it no longer exists in the result.
func applyRule(
	oc *OptimizeContext,
	r *Rule,
	expr *memo.SExpr,
	batch string,
	matchedRule MatchedRuleFunc,
	appliedRule AppliedRuleFunc,
) (ruleResult, error) {
	var ex PatternExtractor
	res := ruleResult{expr: expr}
	var replaced [][]int
	matches := ex.Extract(r.Pattern, expr)
	for i := range matches {
		m := &matches[i]
		if insideAny(m.Path, replaced) {
			continue
		}
		res.matched++
		if matchedRule != nil && !matchedRule(r.Name) {
			continue
		}
		candidates, err := r.Transform(oc, m)
		if err != nil {
			return ruleResult{}, opt.NewRuleTransformError(r.Name, m.Expr.Op(), batch, err)
		}
		if len(candidates) == 0 || candidates[0] == m.Expr {
			continue
		}
		before := res.expr
		res.expr = res.expr.ReplaceAt(m.Path, candidates[0])
		replaced = append(replaced, m.Path)
		res.applied++
		if appliedRule != nil {
			appliedRule(r.Name, before, res.expr, m.Path)
		}
	}
	return res, nil
}

// insideAny returns true if path equals or extends one of the prefixes.
func insideAny(path []int, prefixes [][]int) bool {
	for _, p := range prefixes {
		if len(p) > len(path) {
			continue
		}
		inside := true
		for i := range p {
			if p[i] != path[i] {
				inside = false
				break
			}
		}
		if inside {
			return true
		}
	}
	return false
}

// ApplyRule applies the rule once to every match in expr, as a single round of
// the heuristic optimizer would, and returns the result. The boolean result is
// false if the rule did not change the tree, in which case expr itself is
// returned.
func ApplyRule(oc *OptimizeContext, r *Rule, expr *memo.SExpr) (*memo.SExpr, bool, error) {
	res, err := applyRule(oc, r, expr, "", nil, nil)
	if err != nil {
		return nil, false, err
	}
	return res.expr, res.applied > 0, nil
}
