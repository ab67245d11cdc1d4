// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"bytes"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// Required properties are interesting characteristics of an expression that
// impact its layout, presentation, or location, but not its logical content.
// Examples include row order and data distribution.
//
// Required properties are derived top-to-bottom - there is a required physical
// property on the root, and each expression can require physical properties on
// one or more of its operands. The required property of a child is a pure
// function of its parent's operator and the parent's required property.
type Required struct {
	// Ordering specifies the sort order of result rows. If Ordering is not
	// defined, then no particular ordering is required.
	Ordering opt.Ordering

	// Distribution specifies the physical distribution of result rows.
	Distribution Distribution
}

// MinRequired are the default physical properties that require nothing and
// provide nothing.
var MinRequired = &Required{}

// Defined is true if any physical property is defined. If none is defined, then
// this is an instance of MinRequired.
func (p *Required) Defined() bool {
	return !p.Ordering.Empty() || !p.Distribution.Any()
}

// ColSet returns the set of columns used by any of the physical properties.
func (p *Required) ColSet() opt.ColSet {
	cols := p.Ordering.ColSet()
	for _, c := range p.Distribution.Keys {
		cols.Add(c)
	}
	return cols
}

func (p *Required) String() string {
	var buf bytes.Buffer
	output := func(name string, fn func(*bytes.Buffer)) {
		if buf.Len() != 0 {
			buf.WriteByte(' ')
		}
		buf.WriteByte('[')
		buf.WriteString(name)
		buf.WriteString(": ")
		fn(&buf)
		buf.WriteByte(']')
	}

	if !p.Ordering.Empty() {
		output("ordering", p.Ordering.Format)
	}
	if !p.Distribution.Any() {
		output("distribution", p.Distribution.format)
	}

	// Handle empty properties case.
	if buf.Len() == 0 {
		return "[]"
	}
	return buf.String()
}

// Equals returns true if the two physical properties are identical.
func (p *Required) Equals(rhs *Required) bool {
	return p.Ordering.Equals(rhs.Ordering) && p.Distribution.Equals(rhs.Distribution)
}
