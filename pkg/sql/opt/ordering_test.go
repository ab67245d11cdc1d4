// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt_test

import (
	"testing"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

func TestOrdering(t *testing.T) {
	ordering := opt.Ordering{1, 5}

	if ordering.Empty() {
		t.Error("ordering not empty")
	}

	if !ordering.ColSet().Equals(opt.MakeColSet(1, 5)) {
		t.Error("ordering colset should equal the ordering columns")
	}

	if !(opt.Ordering{}).ColSet().Equals(opt.ColSet{}) {
		t.Error("empty ordering should have empty column set")
	}

	if !ordering.Equals(ordering) {
		t.Error("ordering should be equal with itself")
	}

	if ordering.Equals(opt.Ordering{}) {
		t.Error("ordering should not equal the empty ordering")
	}

	if (opt.Ordering{}).Equals(ordering) {
		t.Error("empty ordering should not equal ordering")
	}
}

func TestOrderingColumn(t *testing.T) {
	asc := opt.MakeOrderingColumn(1, false)
	desc := opt.MakeOrderingColumn(4, true)

	if asc.String() != "+1" {
		t.Errorf("expected +1, got %s", asc)
	}
	if desc.String() != "-4" {
		t.Errorf("expected -4, got %s", desc)
	}
	if desc.ID() != 4 || !desc.Descending() || desc.Ascending() {
		t.Errorf("unexpected direction or id for %s", desc)
	}
}

func TestOrderingProvides(t *testing.T) {
	testCases := []struct {
		provided, required opt.Ordering
		expected           bool
	}{
		{opt.Ordering{1, -2}, opt.Ordering{}, true},
		{opt.Ordering{1, -2}, opt.Ordering{1}, true},
		{opt.Ordering{1, -2}, opt.Ordering{1, -2}, true},
		{opt.Ordering{1, -2}, opt.Ordering{1, 2}, false},
		{opt.Ordering{1}, opt.Ordering{1, -2}, false},
		{opt.Ordering{}, opt.Ordering{3}, false},
	}
	for _, tc := range testCases {
		if res := tc.provided.Provides(tc.required); res != tc.expected {
			t.Errorf("%s provides %s: expected %t, got %t", tc.provided, tc.required, tc.expected, res)
		}
	}

	common := opt.Ordering{1, -2, 3}.CommonPrefix(opt.Ordering{1, -2, -3})
	if !common.Equals(opt.Ordering{1, -2}) {
		t.Errorf("unexpected common prefix %s", common)
	}
	if !(opt.Ordering{1, -2}).SubsetOf(opt.MakeColSet(1, 2, 3)) {
		t.Error("ordering columns should be a subset")
	}
	if (opt.Ordering{1, -4}).SubsetOf(opt.MakeColSet(1, 2, 3)) {
		t.Error("ordering columns should not be a subset")
	}
}
