// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "fmt"

// RuleName enumerates the names of all the optimizer rules. Rule ids are
// stable: new rules are appended before NumRuleNames.
type RuleName uint32

const (
	// InvalidRuleName is the zero value and never names a rule.
	InvalidRuleName RuleName = iota

	// FoldFilterConstants evaluates constant subexpressions of a filter
	// predicate.
	FoldFilterConstants

	// EliminateFilter removes a filter whose predicate is always true.
	EliminateFilter

	// MergeFilter combines two adjacent filters into one conjunction.
	MergeFilter

	// MergeEvalScalar combines two adjacent eval-scalar operators whose items
	// are independent.
	MergeEvalScalar

	// EliminateEvalScalar removes an eval-scalar with no items.
	EliminateEvalScalar

	// EliminateProject removes a project that passes through every input
	// column.
	EliminateProject

	// MergeProject collapses two adjacent projects.
	MergeProject

	// PushDownFilterJoin pushes filter conjuncts into the inputs or the ON
	// condition of a join.
	PushDownFilterJoin

	// PushDownFilterProject moves a filter below a project.
	PushDownFilterProject

	// PushDownFilterEvalScalar moves the conjuncts of a filter that do not
	// reference computed columns below an eval-scalar.
	PushDownFilterEvalScalar

	// PushDownFilterSort moves a filter below a sort.
	PushDownFilterSort

	// PushDownFilterAggregate moves the conjuncts of a filter that reference
	// only grouping columns below an aggregate.
	PushDownFilterAggregate

	// PushDownLimitProject moves a limit below a project.
	PushDownLimitProject

	// PushDownLimitEvalScalar moves a limit below an eval-scalar.
	PushDownLimitEvalScalar

	// CommuteJoinBuildSide swaps the inputs of an inner join so that the
	// smaller input (by estimated row count) is on the right, build side.
	CommuteJoinBuildSide

	// PruneJoinCols removes unused columns from join inputs.
	PruneJoinCols

	// PruneFilterCols removes unused columns from a filter's input.
	PruneFilterCols

	// PruneAggregateInputCols removes columns not needed by an aggregate.
	PruneAggregateInputCols

	// PruneScanCols removes unused columns from a scan below a project.
	PruneScanCols

	// CommuteJoin swaps the inputs of an inner join unconditionally. It is its
	// own inverse and is only used to explore memo alternatives.
	CommuteJoin

	// NumRuleNames tracks the total count of rule names.
	NumRuleNames
)

var ruleNames = [NumRuleNames]string{
	InvalidRuleName:          "InvalidRuleName",
	FoldFilterConstants:      "FoldFilterConstants",
	EliminateFilter:          "EliminateFilter",
	MergeFilter:              "MergeFilter",
	MergeEvalScalar:          "MergeEvalScalar",
	EliminateEvalScalar:      "EliminateEvalScalar",
	EliminateProject:         "EliminateProject",
	MergeProject:             "MergeProject",
	PushDownFilterJoin:       "PushDownFilterJoin",
	PushDownFilterProject:    "PushDownFilterProject",
	PushDownFilterEvalScalar: "PushDownFilterEvalScalar",
	PushDownFilterSort:       "PushDownFilterSort",
	PushDownFilterAggregate:  "PushDownFilterAggregate",
	PushDownLimitProject:     "PushDownLimitProject",
	PushDownLimitEvalScalar:  "PushDownLimitEvalScalar",
	CommuteJoinBuildSide:     "CommuteJoinBuildSide",
	PruneJoinCols:            "PruneJoinCols",
	PruneFilterCols:          "PruneFilterCols",
	PruneAggregateInputCols:  "PruneAggregateInputCols",
	PruneScanCols:            "PruneScanCols",
	CommuteJoin:              "CommuteJoin",
}

func (r RuleName) String() string {
	if r >= NumRuleNames {
		return fmt.Sprintf("RuleName(%d)", uint32(r))
	}
	return ruleNames[r]
}

// SafeValue implements the redact.SafeValue interface.
func (RuleName) SafeValue() {}

// RuleNameFromString returns the rule that matches the given string.
func RuleNameFromString(str string) (RuleName, bool) {
	for i := RuleName(1); i < NumRuleNames; i++ {
		if ruleNames[i] == str {
			return i, true
		}
	}
	return InvalidRuleName, false
}
