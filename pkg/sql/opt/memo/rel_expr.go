// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
)

// RelExpr is a relational expression, either a standalone tree node (*SExpr)
// or a member of a memo group (*MExpr). Properties are derived the same way
// for both, so rules and enforcer checks can be written once.
type RelExpr interface {
	// Op returns the operator kind of the expression.
	Op() opt.Operator

	// Private returns the operator payload of the expression.
	Private() RelOperator

	// ChildCount returns the number of relational inputs.
	ChildCount() int

	// DeriveRelationalProp returns the logical properties of the expression,
	// derived bottom-up from its inputs and memoized.
	DeriveRelationalProp() *props.Relational

	// DerivePhysicalProp returns the ordering and distribution the expression
	// provides, derived bottom-up from its inputs.
	DerivePhysicalProp() *physical.Provided

	// ComputeRequiredProp returns the properties that the given input must
	// provide so that the expression can provide the required properties. The
	// result only depends on the operator and the required properties, never
	// on the shape of the input.
	ComputeRequiredProp(childIdx int, required *physical.Required) *physical.Required
}

// deriveRelational computes the logical properties of an operator from the
// properties of its inputs.
func deriveRelational(op RelOperator, inputs []*props.Relational) *props.Relational {
	rel := &props.Relational{OuterCols: op.OuterCols()}

	switch t := op.(type) {
	case *ScanOp:
		rel.OutputCols = t.Cols.Copy()
		rel.Cardinality = props.AnyCardinality

	case *FilterOp:
		rel.OutputCols = inputs[0].OutputCols.Copy()
		switch {
		case scalar.IsConstTrue(t.Predicate):
			rel.Cardinality = inputs[0].Cardinality
		case scalar.IsConstFalseOrNull(t.Predicate):
			rel.Cardinality = props.ZeroCardinality
		default:
			rel.Cardinality = inputs[0].Cardinality.AsLowAs(0)
		}

	case *JoinOp:
		left, right := inputs[0], inputs[1]
		switch t.Type {
		case InnerJoin, CrossJoin:
			rel.OutputCols = left.OutputCols.Union(right.OutputCols)
			rel.Cardinality = left.Cardinality.Product(right.Cardinality)
			if t.On != nil && !scalar.IsConstTrue(t.On) {
				rel.Cardinality = rel.Cardinality.AsLowAs(0)
			}
		case LeftJoin:
			rel.OutputCols = left.OutputCols.Union(right.OutputCols)
			card := left.Cardinality.Product(right.Cardinality.AtLeast(1))
			rel.Cardinality = props.Cardinality{Min: left.Cardinality.Min, Max: card.Max}
		case SemiJoin, AntiJoin:
			rel.OutputCols = left.OutputCols.Copy()
			rel.Cardinality = left.Cardinality.AsLowAs(0)
		default:
			panic(errors.AssertionFailedf("unhandled join type %s", t.Type))
		}

	case *AggregateOp:
		rel.OutputCols = t.GroupingCols.Union(t.AggregateCols())
		if t.GroupingCols.Empty() {
			rel.Cardinality = props.OneCardinality
		} else {
			in := inputs[0].Cardinality
			rel.Cardinality = props.Cardinality{Min: min(1, in.Min), Max: in.Max}
		}

	case *SortOp, *ExchangeOp:
		rel.OutputCols = inputs[0].OutputCols.Copy()
		rel.Cardinality = inputs[0].Cardinality

	case *LimitOp:
		rel.OutputCols = inputs[0].OutputCols.Copy()
		rel.Cardinality = inputs[0].Cardinality.Skip(clampUint32(t.Offset)).AtMost(clampUint32(t.Limit))

	case *ProjectOp:
		rel.OutputCols = t.Cols.Copy()
		rel.Cardinality = inputs[0].Cardinality

	case *EvalScalarOp:
		rel.OutputCols = inputs[0].OutputCols.Union(t.ItemCols())
		rel.Cardinality = inputs[0].Cardinality

	case *UnionAllOp:
		rel.OutputCols = t.OutCols.ToSet()
		rel.Cardinality = inputs[0].Cardinality.Add(inputs[1].Cardinality)

	default:
		panic(errors.AssertionFailedf("unhandled operator %T", op))
	}
	return rel
}

// derivePhysical computes the physical properties an operator provides from
// the properties provided by its inputs.
func derivePhysical(op RelOperator, inputs []*physical.Provided) *physical.Provided {
	switch t := op.(type) {
	case *ScanOp:
		return &physical.Provided{Distribution: physical.Distribution{Kind: physical.Random}}

	case *FilterOp, *LimitOp:
		return &physical.Provided{
			Ordering:     inputs[0].Ordering,
			Distribution: inputs[0].Distribution,
		}

	case *ProjectOp:
		return restrictProvided(inputs[0], t.Cols)

	case *EvalScalarOp:
		// Items only add columns, so everything the input provides survives.
		return &physical.Provided{
			Ordering:     inputs[0].Ordering,
			Distribution: inputs[0].Distribution,
		}

	case *SortOp:
		return &physical.Provided{
			Ordering:     t.Ordering,
			Distribution: physical.Distribution{Kind: physical.Serial},
		}

	case *JoinOp:
		return &physical.Provided{Distribution: inputs[0].Distribution}

	case *AggregateOp:
		return &physical.Provided{Distribution: aggregateDistribution(t)}

	case *UnionAllOp:
		return &physical.Provided{Distribution: physical.Distribution{Kind: physical.Random}}

	case *ExchangeOp:
		return &physical.Provided{Distribution: t.Distribution}

	default:
		panic(errors.AssertionFailedf("unhandled operator %T", op))
	}
}

// computeRequired returns the properties required of input childIdx. inputCols
// are the output columns of the inputs.
func computeRequired(
	op RelOperator, inputCols []opt.ColSet, childIdx int, required *physical.Required,
) *physical.Required {
	if childIdx < 0 || childIdx >= op.Op().Arity() {
		panic(errors.AssertionFailedf("%s has no input %d", op.Op(), childIdx))
	}

	switch t := op.(type) {
	case *FilterOp, *ProjectOp, *EvalScalarOp:
		return restrictRequired(required, inputCols[childIdx])

	case *LimitOp:
		return &physical.Required{
			Ordering:     orderingPrefixIn(required.Ordering, inputCols[childIdx]),
			Distribution: physical.Distribution{Kind: physical.Serial},
		}

	case *SortOp, *UnionAllOp, *ExchangeOp:
		return physical.MinRequired

	case *JoinOp:
		leftKeys, rightKeys := JoinEqualityCols(t.On, inputCols[0], inputCols[1])
		if len(leftKeys) == 0 {
			// Without equality columns, the right side is broadcast to every
			// worker holding left rows.
			if childIdx == 0 {
				return physical.MinRequired
			}
			return &physical.Required{Distribution: physical.Distribution{Kind: physical.Broadcast}}
		}
		keys := leftKeys
		if childIdx == 1 {
			keys = rightKeys
		}
		return &physical.Required{Distribution: physical.Distribution{Kind: physical.Hash, Keys: keys}}

	case *AggregateOp:
		return &physical.Required{Distribution: aggregateDistribution(t)}

	default:
		panic(errors.AssertionFailedf("unhandled operator %T", op))
	}
}

// JoinEqualityCols returns the pairs of columns that the join condition
// equates, with one column from each input. The i-th left column is equal to
// the i-th right column.
func JoinEqualityCols(on scalar.Expr, leftCols, rightCols opt.ColSet) (left, right opt.ColList) {
	for _, c := range scalar.Conjuncts(on) {
		cmp, ok := c.(*scalar.Comparison)
		if !ok || cmp.Op != scalar.EqOp {
			continue
		}
		l, ok1 := cmp.Left.(*scalar.Variable)
		r, ok2 := cmp.Right.(*scalar.Variable)
		if !ok1 || !ok2 {
			continue
		}
		switch {
		case leftCols.Contains(l.Col) && rightCols.Contains(r.Col):
			left, right = append(left, l.Col), append(right, r.Col)
		case leftCols.Contains(r.Col) && rightCols.Contains(l.Col):
			left, right = append(left, r.Col), append(right, l.Col)
		}
	}
	return left, right
}

func aggregateDistribution(agg *AggregateOp) physical.Distribution {
	if agg.GroupingCols.Empty() {
		return physical.Distribution{Kind: physical.Serial}
	}
	return physical.Distribution{Kind: physical.Hash, Keys: agg.GroupingCols.ToList()}
}

// restrictRequired returns the part of the required properties that can be
// required of an input that only has the given columns.
func restrictRequired(required *physical.Required, cols opt.ColSet) *physical.Required {
	ordering := orderingPrefixIn(required.Ordering, cols)
	dist := required.Distribution
	if !dist.Keys.ToSet().SubsetOf(cols) {
		dist = physical.Distribution{}
	}
	if ordering.Empty() && dist.Any() {
		return physical.MinRequired
	}
	return &physical.Required{Ordering: ordering, Distribution: dist}
}

func restrictProvided(provided *physical.Provided, cols opt.ColSet) *physical.Provided {
	dist := provided.Distribution
	if !dist.Keys.ToSet().SubsetOf(cols) {
		dist = physical.Distribution{Kind: physical.Random}
	}
	return &physical.Provided{
		Ordering:     orderingPrefixIn(provided.Ordering, cols),
		Distribution: dist,
	}
}

// orderingPrefixIn returns the longest prefix of the ordering that only
// refers to the given columns.
func orderingPrefixIn(o opt.Ordering, cols opt.ColSet) opt.Ordering {
	for i := range o {
		if !cols.Contains(o[i].ID()) {
			return o[:i]
		}
	}
	return o
}

func clampUint32(v uint64) uint32 {
	if v > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(v)
}
