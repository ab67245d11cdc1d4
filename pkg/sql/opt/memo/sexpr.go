// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
)

// SExpr is an immutable relational expression tree node. Children are shared
// by reference: the same *SExpr may appear under any number of parents, in any
// number of trees, including trees that are being optimized concurrently.
//
// An SExpr is never modified once constructed. Rewrites build new nodes and
// reuse the untouched children. The only internal writes are the one-time
// caches of derived properties, which are guarded by sync.Once.
type SExpr struct {
	op       RelOperator
	children []*SExpr

	// group is the memo group this expression was extracted from, or zero.
	// Memo.Insert maps such an expression straight back to its group, as long
	// as it is inserted into the memo it came from.
	group  GroupID
	origin *Memo

	relOnce sync.Once
	rel     *props.Relational

	physOnce sync.Once
	phys     *physical.Provided
}

var _ RelExpr = &SExpr{}

// NewSExpr constructs an expression node. The number of children must match
// the arity of the operator.
func NewSExpr(op RelOperator, children ...*SExpr) *SExpr {
	if op == nil {
		panic(errors.AssertionFailedf("expression must have an operator"))
	}
	if arity := op.Op().Arity(); arity != len(children) {
		panic(errors.AssertionFailedf(
			"%s expects %d children, got %d", op.Op(), arity, len(children)))
	}
	for i, c := range children {
		if c == nil {
			panic(errors.AssertionFailedf("child %d of %s is nil", i, op.Op()))
		}
	}
	return &SExpr{op: op, children: children}
}

// Op returns the operator kind of the expression.
func (e *SExpr) Op() opt.Operator {
	return e.op.Op()
}

// Private returns the operator payload of the expression.
func (e *SExpr) Private() RelOperator {
	return e.op
}

// ChildCount returns the number of children.
func (e *SExpr) ChildCount() int {
	return len(e.children)
}

// Child returns the ith child.
func (e *SExpr) Child(i int) *SExpr {
	return e.children[i]
}

// Children returns a copy of the list of children.
func (e *SExpr) Children() []*SExpr {
	return append([]*SExpr(nil), e.children...)
}

// OriginalGroup returns the memo group the expression was extracted from, or
// zero if it was not extracted from a memo.
func (e *SExpr) OriginalGroup() GroupID {
	return e.group
}

// ReplaceChildren returns an expression with the same operator and the given
// children. If every child is identical to the existing one, e itself is
// returned.
func (e *SExpr) ReplaceChildren(children ...*SExpr) *SExpr {
	if len(children) == len(e.children) {
		same := true
		for i := range children {
			if children[i] != e.children[i] {
				same = false
				break
			}
		}
		if same {
			return e
		}
	}
	return NewSExpr(e.op, children...)
}

// ReplaceChild returns an expression where the ith child has been replaced.
func (e *SExpr) ReplaceChild(i int, child *SExpr) *SExpr {
	if e.children[i] == child {
		return e
	}
	children := e.Children()
	children[i] = child
	return NewSExpr(e.op, children...)
}

// At returns the descendant reached by following the given child indexes.
func (e *SExpr) At(path []int) *SExpr {
	for _, i := range path {
		if i < 0 || i >= len(e.children) {
			panic(errors.AssertionFailedf("invalid path %v", path))
		}
		e = e.children[i]
	}
	return e
}

// ReplaceAt returns a tree where the descendant at the given path has been
// replaced by repl. Only the ancestors along the path are rebuilt; every other
// subtree is shared with e.
func (e *SExpr) ReplaceAt(path []int, repl *SExpr) *SExpr {
	if len(path) == 0 {
		return repl
	}
	i := path[0]
	if i < 0 || i >= len(e.children) {
		panic(errors.AssertionFailedf("invalid path %v", path))
	}
	return e.ReplaceChild(i, e.children[i].ReplaceAt(path[1:], repl))
}

// DeriveRelationalProp is part of the RelExpr interface. The result is
// computed once and must not be modified.
func (e *SExpr) DeriveRelationalProp() *props.Relational {
	e.relOnce.Do(func() {
		inputs := make([]*props.Relational, len(e.children))
		for i, c := range e.children {
			inputs[i] = c.DeriveRelationalProp()
		}
		e.rel = deriveRelational(e.op, inputs)
	})
	return e.rel
}

// DerivePhysicalProp is part of the RelExpr interface. The result is computed
// once and must not be modified.
func (e *SExpr) DerivePhysicalProp() *physical.Provided {
	e.physOnce.Do(func() {
		inputs := make([]*physical.Provided, len(e.children))
		for i, c := range e.children {
			inputs[i] = c.DerivePhysicalProp()
		}
		e.phys = derivePhysical(e.op, inputs)
	})
	return e.phys
}

// ComputeRequiredProp is part of the RelExpr interface.
func (e *SExpr) ComputeRequiredProp(childIdx int, required *physical.Required) *physical.Required {
	return computeRequired(e.op, e.childOutputs(), childIdx, required)
}

func (e *SExpr) childOutputs() []opt.ColSet {
	cols := make([]opt.ColSet, len(e.children))
	for i, c := range e.children {
		cols[i] = c.DeriveRelationalProp().OutputCols
	}
	return cols
}

// OutputCols is a shorthand for the output columns of the expression.
func (e *SExpr) OutputCols() opt.ColSet {
	return e.DeriveRelationalProp().OutputCols
}

// NodeCount returns the number of nodes in the tree. Shared subtrees are
// counted once per reference.
func (e *SExpr) NodeCount() int {
	n := 1
	for _, c := range e.children {
		n += c.NodeCount()
	}
	return n
}

// Equals returns true if the two trees have the same shape and operator
// parameters.
func (e *SExpr) Equals(other *SExpr) bool {
	if e == other {
		return true
	}
	if e.Op() != other.Op() || len(e.children) != len(other.children) {
		return false
	}
	if Fingerprint(e.op) != Fingerprint(other.op) {
		return false
	}
	for i := range e.children {
		if !e.children[i].Equals(other.children[i]) {
			return false
		}
	}
	return true
}

// extracted returns a new expression node that remembers its memo group. The
// logical properties are taken from the group.
func extracted(grp *Group, op RelOperator, children []*SExpr, m *Memo) *SExpr {
	e := NewSExpr(op, children...)
	e.group = grp.id
	e.origin = m
	e.relOnce.Do(func() { e.rel = grp.rel })
	return e
}
