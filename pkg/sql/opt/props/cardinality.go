// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"fmt"
	"math"
)

// AnyCardinality indicates that any number of rows can be returned by an
// expression.
var AnyCardinality = Cardinality{Min: 0, Max: math.MaxUint32}

// ZeroCardinality indicates that no rows will be returned by expression.
var ZeroCardinality = Cardinality{}

// OneCardinality indicates that exactly one row will be returned by
// expression.
var OneCardinality = Cardinality{Min: 1, Max: 1}

// Cardinality is the number of rows that can be returned by a relational
// expression. Both Min and Max are inclusive bounds. If Max = math.MaxUint32,
// that indicates there is no limit to the number of returned rows. Max should
// always be >= Min, or method results are undefined. Cardinality is determined
// from the relational properties, and are "hard" bounds that are never
// incorrect. This constrasts with row cardinality derived by the statistics
// code, which are only estimates and may be incorrect.
type Cardinality struct {
	Min uint32
	Max uint32
}

// IsZero returns true if the expression never returns any rows.
func (c Cardinality) IsZero() bool {
	return c.Min == 0 && c.Max == 0
}

// IsOne returns true if the expression always returns one row.
func (c Cardinality) IsOne() bool {
	return c.Min == 1 && c.Max == 1
}

// IsUnbounded returns true if the expression has no upper bound.
func (c Cardinality) IsUnbounded() bool {
	return c.Max == math.MaxUint32
}

// AsLowAs ratchets the min bound downwards in order to ensure that it allows
// values that are >= the min value.
func (c Cardinality) AsLowAs(min uint32) Cardinality {
	return Cardinality{
		Min: minVal(c.Min, min),
		Max: c.Max,
	}
}

// AtLeast ratchets the bounds upwards so that they're at least as large as the
// given min value.
func (c Cardinality) AtLeast(min uint32) Cardinality {
	return Cardinality{
		Min: maxVal(c.Min, min),
		Max: maxVal(c.Max, min),
	}
}

// AtMost ratchets the bounds downwards so that they're no bigger than the
// given max value.
func (c Cardinality) AtMost(max uint32) Cardinality {
	return Cardinality{
		Min: minVal(c.Min, max),
		Max: minVal(c.Max, max),
	}
}

// Skip subtracts the given number of rows from the bounds.
func (c Cardinality) Skip(rows uint32) Cardinality {
	res := c
	if res.Min > rows {
		res.Min -= rows
	} else {
		res.Min = 0
	}
	if !c.IsUnbounded() {
		if res.Max > rows {
			res.Max -= rows
		} else {
			res.Max = 0
		}
	}
	return res
}

// Add sums the min and max bounds to get a combined count of rows.
func (c Cardinality) Add(other Cardinality) Cardinality {
	// Make sure to detect overflow.
	min := uint64(c.Min) + uint64(other.Min)
	if min > math.MaxUint32 {
		min = math.MaxUint32
	}
	max := uint64(c.Max) + uint64(other.Max)
	if max > math.MaxUint32 {
		max = math.MaxUint32
	}
	return Cardinality{Min: uint32(min), Max: uint32(max)}
}

// Product multiplies the min and max bounds to get a combined count of rows.
func (c Cardinality) Product(other Cardinality) Cardinality {
	// Prevent overflow by using 64-bit multiplication.
	min := uint64(c.Min) * uint64(other.Min)
	if min > math.MaxUint32 {
		min = math.MaxUint32
	}
	max := uint64(c.Max) * uint64(other.Max)
	if max > math.MaxUint32 {
		max = math.MaxUint32
	}
	return Cardinality{Min: uint32(min), Max: uint32(max)}
}

func (c Cardinality) String() string {
	if c.IsUnbounded() {
		return fmt.Sprintf("[%d - ]", c.Min)
	}
	return fmt.Sprintf("[%d - %d]", c.Min, c.Max)
}

func minVal(a, b uint32) uint32 {
	if a <= b {
		return a
	}
	return b
}

func maxVal(a, b uint32) uint32 {
	if a >= b {
		return a
	}
	return b
}
