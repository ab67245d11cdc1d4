// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"bytes"
	"strconv"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// DistributionKind describes how the rows of an expression are spread across
// the workers that execute it.
type DistributionKind uint8

const (
	// AnyDistribution means no particular distribution is required or known.
	AnyDistribution DistributionKind = iota

	// Serial means all rows are on a single worker.
	Serial

	// Random means rows are spread over workers with no known placement.
	Random

	// Broadcast means every worker has a full copy of the rows.
	Broadcast

	// Hash means rows are partitioned over workers by a hash of Keys.
	Hash
)

var distributionNames = [...]string{
	AnyDistribution: "any",
	Serial:          "serial",
	Random:          "random",
	Broadcast:       "broadcast",
	Hash:            "hash",
}

func (k DistributionKind) String() string { return distributionNames[k] }

// DistributionKindByName returns the kind with the given name.
func DistributionKindByName(name string) (DistributionKind, bool) {
	for i, n := range distributionNames {
		if n == name {
			return DistributionKind(i), true
		}
	}
	return AnyDistribution, false
}

// Distribution is a physical property describing where rows are located.
type Distribution struct {
	Kind DistributionKind

	// Keys are the partitioning columns of a Hash distribution.
	Keys opt.ColList
}

// Any is true if this Distribution allows any placement.
func (d Distribution) Any() bool {
	return d.Kind == AnyDistribution
}

// Equals returns true if the two distributions are identical.
func (d Distribution) Equals(rhs Distribution) bool {
	return d.Kind == rhs.Kind && d.Keys.Equals(rhs.Keys)
}

// Satisfies returns true if rows distributed according to d satisfy the
// required distribution.
func (d Distribution) Satisfies(required Distribution) bool {
	switch required.Kind {
	case AnyDistribution:
		return true
	case Random:
		// Any concrete placement is an acceptable "random" one.
		return d.Kind != AnyDistribution
	case Hash:
		return d.Kind == Hash && d.Keys.Equals(required.Keys)
	default:
		return d.Kind == required.Kind
	}
}

func (d Distribution) String() string {
	var buf bytes.Buffer
	d.format(&buf)
	return buf.String()
}

func (d Distribution) format(buf *bytes.Buffer) {
	buf.WriteString(d.Kind.String())
	if d.Kind == Hash {
		buf.WriteByte('(')
		for i, c := range d.Keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(int(c)))
		}
		buf.WriteByte(')')
	}
}
