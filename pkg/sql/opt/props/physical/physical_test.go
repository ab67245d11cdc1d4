// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical_test

import (
	"testing"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
	"github.com/stretchr/testify/require"
)

func TestRequiredProps(t *testing.T) {
	// Empty props.
	phys := &physical.Required{}
	testRequired(t, phys, "[]")
	require.False(t, phys.Defined())
	require.True(t, phys.Equals(physical.MinRequired))

	// Ordering only.
	phys.Ordering = opt.Ordering{
		opt.MakeOrderingColumn(1, false),
		opt.MakeOrderingColumn(5, true),
	}
	testRequired(t, phys, "[ordering: +1,-5]")
	require.True(t, phys.Defined())

	// Ordering and distribution.
	phys.Distribution = physical.Distribution{Kind: physical.Hash, Keys: opt.ColList{2, 3}}
	testRequired(t, phys, "[ordering: +1,-5] [distribution: hash(2,3)]")
	require.Equal(t, opt.MakeColSet(1, 2, 3, 5), phys.ColSet())

	// Distribution only.
	phys = &physical.Required{Distribution: physical.Distribution{Kind: physical.Serial}}
	testRequired(t, phys, "[distribution: serial]")
	require.False(t, phys.Equals(physical.MinRequired))
}

func testRequired(t *testing.T, phys *physical.Required, expected string) {
	t.Helper()
	if actual := phys.String(); actual != expected {
		t.Errorf("\nexpected: %s\nactual: %s", expected, actual)
	}
}

func TestProvidedProps(t *testing.T) {
	p := &physical.Provided{}
	require.Equal(t, "", p.String())

	p.Ordering = opt.Ordering{opt.MakeOrderingColumn(1, false)}
	require.Equal(t, "[ordering: +1]", p.String())

	p.Distribution = physical.Distribution{Kind: physical.Broadcast}
	require.Equal(t, "[ordering: +1, distribution: broadcast]", p.String())

	p.Ordering = nil
	require.Equal(t, "[distribution: broadcast]", p.String())

	other := &physical.Provided{Distribution: physical.Distribution{Kind: physical.Broadcast}}
	require.True(t, p.Equals(other))
}

func TestSatisfies(t *testing.T) {
	hash12 := physical.Distribution{Kind: physical.Hash, Keys: opt.ColList{1, 2}}
	hash21 := physical.Distribution{Kind: physical.Hash, Keys: opt.ColList{2, 1}}
	serial := physical.Distribution{Kind: physical.Serial}
	random := physical.Distribution{Kind: physical.Random}
	anyDist := physical.Distribution{}

	testCases := []struct {
		provided physical.Distribution
		required physical.Distribution
		expected bool
	}{
		{anyDist, anyDist, true},
		{serial, anyDist, true},
		{hash12, hash12, true},
		{hash12, hash21, false},
		{serial, hash12, false},
		{serial, random, true},
		{anyDist, random, false},
		{serial, serial, true},
		{random, serial, false},
	}
	for _, tc := range testCases {
		if actual := tc.provided.Satisfies(tc.required); actual != tc.expected {
			t.Errorf("%s satisfies %s: expected %v, got %v", tc.provided, tc.required, tc.expected, actual)
		}
	}

	provided := &physical.Provided{
		Ordering:     opt.Ordering{opt.MakeOrderingColumn(1, false), opt.MakeOrderingColumn(2, true)},
		Distribution: hash12,
	}
	required := &physical.Required{
		Ordering:     opt.Ordering{opt.MakeOrderingColumn(1, false)},
		Distribution: hash12,
	}
	require.True(t, provided.Satisfies(required))
	required.Ordering = opt.Ordering{opt.MakeOrderingColumn(2, true)}
	require.False(t, provided.Satisfies(required))

	kind, ok := physical.DistributionKindByName("broadcast")
	require.True(t, ok)
	require.Equal(t, physical.Broadcast, kind)
	_, ok = physical.DistributionKindByName("bogus")
	require.False(t, ok)
}
