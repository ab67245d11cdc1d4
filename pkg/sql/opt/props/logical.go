// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"fmt"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// Relational properties describe the content and characteristics of relational
// data returned by all expression variants within a memo group, or by a single
// plan node. While each expression in a group may return rows or columns in a
// different order, or compute the result using different algorithms, the same
// set of data is returned and can then be transformed into whatever layout or
// presentation format that is desired, according to the required physical
// properties.
//
// Relational properties are derived bottom-up and are never changed once
// computed.
type Relational struct {
	// OutputCols is the set of columns that can be projected by the
	// expression. Ordering, naming, and duplication of columns is not
	// representable by this property; those are physical properties.
	OutputCols opt.ColSet

	// OuterCols is the set of columns that are referenced by the scalar
	// expressions of the operator itself (predicates, projections, sort keys,
	// grouping columns), as opposed to its inputs.
	OuterCols opt.ColSet

	// Cardinality is the number of rows that can be returned from this
	// relational expression. The number of rows will always be between the
	// inclusive Min and Max bounds. If Max=math.MaxUint32, then there is no
	// limit to the number of rows returned by the expression.
	Cardinality Cardinality
}

func (r *Relational) String() string {
	return fmt.Sprintf("cols=%s outer=%s card=%s", r.OutputCols, r.OuterCols, r.Cardinality)
}
