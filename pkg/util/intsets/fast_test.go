// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package intsets

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestFast(t *testing.T) {
	for _, mVal := range []int{1, 8, 30, smallCutoff, 2 * smallCutoff, 4 * smallCutoff} {
		m := mVal
		t.Run(fmt.Sprintf("%d", m), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewSource(int64(m)))
			in := make([]bool, m)
			forEachRes := make([]bool, m)

			var s Fast
			for i := 0; i < 1000; i++ {
				v := rng.Intn(m)
				if rng.Intn(2) == 0 {
					in[v] = true
					s.Add(v)
				} else {
					in[v] = false
					s.Remove(v)
				}
				empty := true
				for j := 0; j < m; j++ {
					empty = empty && !in[j]
					if in[j] != s.Contains(j) {
						t.Fatalf("incorrect result for Contains(%d), expected %t", j, in[j])
					}
				}
				if empty != s.Empty() {
					t.Fatalf("incorrect result for Empty(), expected %t", empty)
				}
				for j := range forEachRes {
					forEachRes[j] = false
				}
				s.ForEach(func(j int) {
					forEachRes[j] = true
				})
				for j := 0; j < m; j++ {
					if in[j] != forEachRes[j] {
						t.Fatalf("incorrect ForEachResult for %d (%t, expected %t)", j, forEachRes[j], in[j])
					}
				}
				// Cross-check Ordered and Next().
				var vals []int
				for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
					vals = append(vals, i)
				}
				if o := s.Ordered(); !reflect.DeepEqual(vals, o) {
					t.Fatalf("set built with Next doesn't match Ordered: %v vs %v", vals, o)
				}
				s2 := s.Copy()
				if !s.Equals(s2) || !s2.Equals(s) {
					t.Fatalf("expected equality: %v, %v", s, s2)
				}
				if col, ok := s2.Next(0); ok {
					s2.Remove(col)
					if s.Equals(s2) || s2.Equals(s) {
						t.Fatalf("unexpected equality: %v, %v", s, s2)
					}
				}
			}
		})
	}
}

func TestFastTwoSetOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	// genSet creates a set of numElem values in [minVal, minVal + valRange).
	genSet := func(numElem, minVal, valRange int) (Fast, map[int]bool) {
		var s Fast
		used := make(map[int]bool, numElem)
		for _, i := range rng.Perm(valRange)[:numElem] {
			used[minVal+i] = true
			s.Add(minVal + i)
		}
		return s, used
	}

	for _, minVal := range []int{-10, 0, smallCutoff - 5, 2 * smallCutoff} {
		for _, valRange := range []int{20, 200} {
			for _, num1 := range []int{0, 1, 5, 20} {
				for _, num2 := range []int{0, 1, 5, 20} {
					s1, m1 := genSet(num1, minVal, valRange)
					s2, m2 := genSet(num2, minVal, valRange)

					u := s1.Union(s2)
					for x := range m1 {
						if !u.Contains(x) {
							t.Fatalf("incorrect union result %s union %s = %s", s1, s2, u)
						}
					}
					for x := range m2 {
						if !u.Contains(x) {
							t.Fatalf("incorrect union result %s union %s = %s", s1, s2, u)
						}
					}

					in := s1.Intersection(s2)
					if s1.Intersects(s2) != !in.Empty() {
						t.Fatalf("inconsistency between Intersection and Intersects on %s %s", s1, s2)
					}
					in.ForEach(func(x int) {
						if !m1[x] || !m2[x] {
							t.Fatalf("incorrect intersection result %s intersect %s = %s", s1, s2, in)
						}
					})

					d := s1.Difference(s2)
					d.ForEach(func(x int) {
						if !m1[x] || m2[x] {
							t.Fatalf("incorrect difference result %s \\ %s = %s", s1, s2, d)
						}
					})
					if !in.SubsetOf(s1) || !in.SubsetOf(s2) || !s1.SubsetOf(u) {
						t.Fatalf("incorrect SubsetOf result for %s %s", s1, s2)
					}
					// The original sets must not be modified by the non-mutating ops.
					if s1.Len() != len(m1) || s2.Len() != len(m2) {
						t.Fatalf("set ops modified their inputs: %s %s", s1, s2)
					}
				}
			}
		}
	}
}

func TestFastString(t *testing.T) {
	testCases := []struct {
		vals []int
		exp  string
	}{
		{
			vals: []int{},
			exp:  "()",
		},
		{
			vals: []int{-5, -3, -2, -1, 0, 1, 2, 3, 4, 5},
			exp:  "(-5,-3,-2,-1,0-5)",
		},
		{
			vals: []int{0, 1, 3, 4, 5},
			exp:  "(0,1,3-5)",
		},
		{
			vals: []int{1, 100, 101, 102},
			exp:  "(1,100-102)",
		},
	}
	for i, tc := range testCases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			s := MakeFast(tc.vals...)
			if str := s.String(); str != tc.exp {
				t.Errorf("expected %s, got %s", tc.exp, str)
			}
		})
	}
}
