// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/settings"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// MaxIterations bounds the number of rounds a batch may run before the
// optimizer gives up with an IterationLimitExceeded error.
var MaxIterations = settings.RegisterPositiveIntSetting(
	"sql.optimizer.heuristic.max_iterations",
	"maximum number of rounds a rule batch may run before it must reach a fixpoint",
	100,
)

// DisabledRules is a comma separated list of rule names that are never
// applied.
var DisabledRules = settings.RegisterValidatedStringSetting(
	"sql.optimizer.rules.disabled",
	"comma separated list of optimizer rules that are never applied",
	"",
	func(s string) error {
		_, err := ParseRuleNames(s)
		return err
	},
)

// JoinReorderEnabled controls the reorder batch.
var JoinReorderEnabled = settings.RegisterBoolSetting(
	"sql.optimizer.join_reorder.enabled",
	"if set, join inputs are commuted so that the smaller input is on the build side",
	true,
)

// ConstantFoldingEnabled controls the FoldFilterConstants rule.
var ConstantFoldingEnabled = settings.RegisterBoolSetting(
	"sql.optimizer.constant_folding.enabled",
	"if set, constant subexpressions of filter predicates are evaluated during optimization",
	true,
)

// LogRuleApplications logs every applied rule at INFO level.
var LogRuleApplications = settings.RegisterBoolSetting(
	"sql.optimizer.log_rule_applications",
	"if set, every rule application is logged",
	false,
)

// CheckExpressions runs memo.CheckExpr on the result of every rule
// application. Tests turn it on.
var CheckExpressions = settings.RegisterBoolSetting(
	"sql.optimizer.testing.check_expressions.enabled",
	"if set, expressions are sanity checked after every rule application",
	false,
)

func init() {
	settings.Hide(CheckExpressions.Key())
}

// ParseRuleNames parses a comma separated list of rule names. Blank entries
// are ignored.
func ParseRuleNames(s string) ([]opt.RuleName, error) {
	var res []opt.RuleName
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r, ok := opt.RuleNameFromString(name)
		if !ok {
			return nil, errors.Newf("unknown rule %q", name)
		}
		res = append(res, r)
	}
	return res, nil
}
