// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
)

// Enforcement describes an enforcer (a Sort or an Exchange) that would have to
// be placed on top of the expression at Path so that it satisfies the
// properties required by its parent.
type Enforcement struct {
	// Path is the sequence of child indexes leading from the root to the
	// expression.
	Path []int

	// Op is opt.SortOp or opt.ExchangeOp.
	Op opt.Operator

	Required *physical.Required
	Provided *physical.Provided
}

func (e Enforcement) String() string {
	provided := e.Provided.String()
	if provided == "" {
		provided = "[]"
	}
	return fmt.Sprintf("%s at %v: required %s, provided %s", e.Op, e.Path, e.Required, provided)
}

// EnforcersNeeded walks the tree top-down, passing the required properties of
// every expression to its inputs, and reports every place where the provided
// properties fall short. The walk order is pre-order, and at one position a
// Sort is reported before an Exchange.
func EnforcersNeeded(e *SExpr, required *physical.Required) []Enforcement {
	var res []Enforcement
	var walk func(e *SExpr, path []int, required *physical.Required)
	walk = func(e *SExpr, path []int, required *physical.Required) {
		provided := e.DerivePhysicalProp()
		if !provided.Ordering.Provides(required.Ordering) {
			res = append(res, Enforcement{
				Path: path, Op: opt.SortOp, Required: required, Provided: provided,
			})
		}
		if !provided.Distribution.Satisfies(required.Distribution) {
			res = append(res, Enforcement{
				Path: path, Op: opt.ExchangeOp, Required: required, Provided: provided,
			})
		}
		for i := range e.children {
			childPath := append(path[:len(path):len(path)], i)
			walk(e.children[i], childPath, e.ComputeRequiredProp(i, required))
		}
	}
	walk(e, []int{}, required)
	return res
}
