// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// ErrorKind classifies the failures of a rewrite run.
type ErrorKind uint8

const (
	// RuleTransformError is raised when a rule's transform returns an error,
	// for example because a scalar function cannot be resolved while folding.
	RuleTransformError ErrorKind = iota + 1

	// IterationLimitExceeded is raised when a batch does not reach a fixpoint
	// within the configured number of rounds.
	IterationLimitExceeded

	// GroupPropertyConflict is raised when an expression inserted into an
	// existing memo group has different logical properties than the group.
	GroupPropertyConflict
)

func (k ErrorKind) String() string {
	switch k {
	case RuleTransformError:
		return "RuleTransformError"
	case IterationLimitExceeded:
		return "IterationLimitExceeded"
	case GroupPropertyConflict:
		return "GroupPropertyConflict"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// SafeValue implements the redact.SafeValue interface.
func (ErrorKind) SafeValue() {}

// RewriteError is returned by the rewriter. It records the rule, the operator
// of the node the rule was applied to and the batch that was running, and
// wraps the underlying cause when there is one.
type RewriteError struct {
	Kind  ErrorKind
	Rule  RuleName
	Op    Operator
	Batch string

	// Limit is the round limit, set for IterationLimitExceeded.
	Limit int

	// Group, Expected and Actual are set for GroupPropertyConflict.
	Group    int32
	Expected ColSet
	Actual   ColSet

	cause error
}

var _ errors.SafeFormatter = (*RewriteError)(nil)
var _ fmt.Formatter = (*RewriteError)(nil)

// NewRuleTransformError wraps an error returned by a rule transform.
func NewRuleTransformError(rule RuleName, op Operator, batch string, cause error) error {
	return &RewriteError{Kind: RuleTransformError, Rule: rule, Op: op, Batch: batch, cause: cause}
}

// NewIterationLimitError reports that a batch did not converge.
func NewIterationLimitError(batch string, lastRule RuleName, limit int) error {
	return &RewriteError{Kind: IterationLimitExceeded, Rule: lastRule, Batch: batch, Limit: limit}
}

// NewGroupPropertyConflictError reports an insertion of an expression whose
// output columns differ from those of the target group.
func NewGroupPropertyConflictError(group int32, op Operator, expected, actual ColSet) error {
	return &RewriteError{
		Kind:     GroupPropertyConflict,
		Op:       op,
		Group:    group,
		Expected: expected,
		Actual:   actual,
	}
}

// Error implements the error interface.
func (e *RewriteError) Error() string { return fmt.Sprint(e) }

// Cause implements the causer interface from github.com/pkg/errors.
func (e *RewriteError) Cause() error { return e.cause }

// Unwrap implements the Go 1.13 wrapper interface.
func (e *RewriteError) Unwrap() error { return e.cause }

// Format implements the fmt.Formatter interface.
func (e *RewriteError) Format(s fmt.State, verb rune) { errors.FormatError(e, s, verb) }

// SafeFormatError implements the errors.SafeFormatter interface.
func (e *RewriteError) SafeFormatError(p errors.Printer) (next error) {
	switch e.Kind {
	case RuleTransformError:
		p.Printf("rule %s failed on %s in batch %s", e.Rule, e.Op, redact.Safe(e.Batch))
	case IterationLimitExceeded:
		p.Printf("batch %s did not converge after %d rounds (last rule applied: %s)",
			redact.Safe(e.Batch), redact.Safe(e.Limit), e.Rule)
	case GroupPropertyConflict:
		p.Printf("cannot add %s to group G%d: output columns %s do not match group columns %s",
			e.Op, redact.Safe(e.Group), redact.Safe(e.Actual.String()), redact.Safe(e.Expected.String()))
	default:
		p.Printf("rewrite error %s", e.Kind)
	}
	return e.cause
}

// GetRewriteError returns the first RewriteError in the error's chain.
func GetRewriteError(err error) (*RewriteError, bool) {
	var re *RewriteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HasErrorKind returns true if err has a RewriteError of the given kind in its
// chain.
func HasErrorKind(err error, kind ErrorKind) bool {
	re, ok := GetRewriteError(err)
	return ok && re.Kind == kind
}
