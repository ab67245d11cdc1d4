// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package intsets

import (
	"bytes"
	"fmt"
	"math/bits"

	"golang.org/x/tools/container/intsets"
)

// smallCutoff is the size of the small bitmap; values in [0, smallCutoff) are
// stored without allocation as long as no larger value has been added.
const smallCutoff = 64

// Fast is a set of non-negative integers that stores small sets inline and
// falls back to an intsets.Sparse once a value outside [0, 64) is added.
//
// Fast has value semantics for small sets only. Once a set spills into the
// large representation, copies of the struct share storage; use Copy before
// mutating a set that was copied by value.
type Fast struct {
	small uint64
	large *intsets.Sparse
}

// MakeFast returns a set initialized with the given values.
func MakeFast(vals ...int) Fast {
	var res Fast
	for _, v := range vals {
		res.Add(v)
	}
	return res
}

// fitsSmall returns whether all elements of this set are in the small bitmap.
func (s *Fast) fitsSmall() bool {
	return s.large == nil
}

func (s *Fast) toLarge() *intsets.Sparse {
	if s.large != nil {
		return s.large
	}
	res := new(intsets.Sparse)
	for w := s.small; w != 0; w &= w - 1 {
		res.Insert(bits.TrailingZeros64(w))
	}
	return res
}

// Add adds a value to the set. No-op if the value is already in the set.
func (s *Fast) Add(i int) {
	if i >= 0 && i < smallCutoff && s.fitsSmall() {
		s.small |= 1 << uint64(i)
		return
	}
	if s.large == nil {
		s.large = s.toLarge()
		s.small = 0
	}
	s.large.Insert(i)
}

// AddRange adds values 'from' up to 'to' (inclusively) to the set.
func (s *Fast) AddRange(from, to int) {
	for i := from; i <= to; i++ {
		s.Add(i)
	}
}

// Remove removes a value from the set. No-op if the value is not in the set.
func (s *Fast) Remove(i int) {
	if s.fitsSmall() {
		if i >= 0 && i < smallCutoff {
			s.small &^= 1 << uint64(i)
		}
		return
	}
	s.large.Remove(i)
}

// Contains returns true if the set contains the value.
func (s Fast) Contains(i int) bool {
	if s.fitsSmall() {
		return i >= 0 && i < smallCutoff && s.small&(1<<uint64(i)) != 0
	}
	return s.large.Has(i)
}

// Empty returns true if the set is empty.
func (s Fast) Empty() bool {
	if s.fitsSmall() {
		return s.small == 0
	}
	return s.large.IsEmpty()
}

// Len returns the number of the elements in the set.
func (s Fast) Len() int {
	if s.fitsSmall() {
		return bits.OnesCount64(s.small)
	}
	return s.large.Len()
}

// Next returns the first value in the set which is >= startVal. If there is no
// such value, the second return value is false.
func (s Fast) Next(startVal int) (int, bool) {
	if s.fitsSmall() {
		if startVal < 0 {
			startVal = 0
		}
		if startVal >= smallCutoff {
			return 0, false
		}
		w := s.small >> uint64(startVal)
		if w == 0 {
			return 0, false
		}
		return startVal + bits.TrailingZeros64(w), true
	}
	res := s.large.LowerBound(startVal)
	return res, res != intsets.MaxInt
}

// ForEach calls a function for each value in the set (in increasing order).
func (s Fast) ForEach(f func(i int)) {
	if s.fitsSmall() {
		for w := s.small; w != 0; w &= w - 1 {
			f(bits.TrailingZeros64(w))
		}
		return
	}
	for _, v := range s.large.AppendTo(nil) {
		f(v)
	}
}

// Ordered returns a slice with all the integers in the set, in increasing
// order.
func (s Fast) Ordered() []int {
	if s.Empty() {
		return nil
	}
	res := make([]int, 0, s.Len())
	s.ForEach(func(i int) {
		res = append(res, i)
	})
	return res
}

// Copy returns a copy of s which can be modified independently.
func (s Fast) Copy() Fast {
	if s.fitsSmall() {
		return Fast{small: s.small}
	}
	var c Fast
	c.large = new(intsets.Sparse)
	c.large.Copy(s.large)
	return c
}

// UnionWith adds all the elements from rhs to this set.
func (s *Fast) UnionWith(rhs Fast) {
	if s.fitsSmall() && rhs.fitsSmall() {
		s.small |= rhs.small
		return
	}
	if s.large == nil {
		s.large = s.toLarge()
		s.small = 0
	}
	s.large.UnionWith(rhs.toLarge())
}

// Union returns the union of s and rhs as a new set.
func (s Fast) Union(rhs Fast) Fast {
	r := s.Copy()
	r.UnionWith(rhs)
	return r
}

// IntersectionWith removes any elements not in rhs from this set.
func (s *Fast) IntersectionWith(rhs Fast) {
	if s.fitsSmall() {
		if rhs.fitsSmall() {
			s.small &= rhs.small
			return
		}
		var res uint64
		for w := s.small; w != 0; w &= w - 1 {
			if i := bits.TrailingZeros64(w); rhs.large.Has(i) {
				res |= 1 << uint64(i)
			}
		}
		s.small = res
		return
	}
	s.large.IntersectionWith(rhs.toLarge())
}

// Intersection returns the intersection of s and rhs as a new set.
func (s Fast) Intersection(rhs Fast) Fast {
	r := s.Copy()
	r.IntersectionWith(rhs)
	return r
}

// Intersects returns true if s has any elements in common with rhs.
func (s Fast) Intersects(rhs Fast) bool {
	if s.fitsSmall() && rhs.fitsSmall() {
		return s.small&rhs.small != 0
	}
	return s.toLarge().Intersects(rhs.toLarge())
}

// DifferenceWith removes any elements in rhs from this set.
func (s *Fast) DifferenceWith(rhs Fast) {
	if s.fitsSmall() {
		if rhs.fitsSmall() {
			s.small &^= rhs.small
			return
		}
		for w := s.small; w != 0; w &= w - 1 {
			if i := bits.TrailingZeros64(w); rhs.large.Has(i) {
				s.small &^= 1 << uint64(i)
			}
		}
		return
	}
	s.large.DifferenceWith(rhs.toLarge())
}

// Difference returns the elements of s that are not in rhs as a new set.
func (s Fast) Difference(rhs Fast) Fast {
	r := s.Copy()
	r.DifferenceWith(rhs)
	return r
}

// Equals returns true if the two sets are identical.
func (s Fast) Equals(rhs Fast) bool {
	if s.fitsSmall() && rhs.fitsSmall() {
		return s.small == rhs.small
	}
	return s.toLarge().Equals(rhs.toLarge())
}

// SubsetOf returns true if rhs contains all the elements in s.
func (s Fast) SubsetOf(rhs Fast) bool {
	if s.fitsSmall() && rhs.fitsSmall() {
		return s.small&rhs.small == s.small
	}
	return s.toLarge().SubsetOf(rhs.toLarge())
}

// String returns a list representation of elements. Sequential runs of
// positive numbers are shown as ranges. For example, for the set {0, 1, 2, 5,
// 6, 10}, the output is "(0-2,5,6,10)".
func (s Fast) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	appendRange := func(start, end int) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if start == end {
			fmt.Fprintf(&buf, "%d", start)
		} else if start+1 == end {
			fmt.Fprintf(&buf, "%d,%d", start, end)
		} else {
			fmt.Fprintf(&buf, "%d-%d", start, end)
		}
	}
	rangeStart, rangeEnd := -1, -1
	s.ForEach(func(i int) {
		if i < 0 {
			appendRange(i, i)
			return
		}
		if rangeStart != -1 && rangeEnd == i-1 {
			rangeEnd = i
		} else {
			if rangeStart != -1 {
				appendRange(rangeStart, rangeEnd)
			}
			rangeStart, rangeEnd = i, i
		}
	})
	if rangeStart != -1 {
		appendRange(rangeStart, rangeEnd)
	}
	buf.WriteByte(')')
	return buf.String()
}
