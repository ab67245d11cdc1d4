// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"bytes"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// Provided physical properties of an operator. An operator might be able to
// satisfy a required property in multiple ways, and additional information is
// necessary for execution. For example, the required properties may allow
// multiple ordering choices; the provided properties would describe the
// specific ordering that has to be respected during execution.
//
// Provided properties are derived bottom-up.
type Provided struct {
	// Ordering is an ordering that is maintained on the rows produced by this
	// operator.
	Ordering opt.Ordering

	// Distribution is the distribution of the rows produced by this operator.
	Distribution Distribution
}

// Equals returns true if the two sets of provided properties are identical.
func (p *Provided) Equals(other *Provided) bool {
	return p.Ordering.Equals(other.Ordering) && p.Distribution.Equals(other.Distribution)
}

// Satisfies returns true if the provided properties satisfy the required
// properties.
func (p *Provided) Satisfies(required *Required) bool {
	return p.Ordering.Provides(required.Ordering) && p.Distribution.Satisfies(required.Distribution)
}

func (p *Provided) String() string {
	var buf bytes.Buffer

	if len(p.Ordering) > 0 {
		buf.WriteString("[ordering: ")
		p.Ordering.Format(&buf)
		if p.Distribution.Any() {
			buf.WriteByte(']')
		} else {
			buf.WriteString(", ")
		}
	}

	if !p.Distribution.Any() {
		if len(p.Ordering) == 0 {
			buf.WriteByte('[')
		}
		buf.WriteString("distribution: ")
		p.Distribution.format(&buf)
		buf.WriteByte(']')
	}

	return buf.String()
}
