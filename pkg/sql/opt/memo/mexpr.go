// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"encoding/binary"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
)

// MExpr is a member of a memo group. Unlike an SExpr, its inputs are groups,
// so the memo forms a DAG in which a sub-plan shared by several parents is
// stored, and explored, once.
type MExpr struct {
	mem      *Memo
	group    GroupID
	op       RelOperator
	children []GroupID

	// key is the interning key: the operator fingerprint followed by the child
	// group ids.
	key string

	phys *physical.Provided
}

var _ RelExpr = &MExpr{}

func makeMExpr(m *Memo, op RelOperator, children []GroupID) *MExpr {
	fp := Fingerprint(op)
	buf := make([]byte, 0, len(fp)+1+4*len(children))
	buf = append(buf, fp...)
	buf = append(buf, 0)
	for _, c := range children {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c))
	}
	return &MExpr{mem: m, op: op, children: children, key: string(buf)}
}

// Op is part of the RelExpr interface.
func (e *MExpr) Op() opt.Operator {
	return e.op.Op()
}

// Private is part of the RelExpr interface.
func (e *MExpr) Private() RelOperator {
	return e.op
}

// ChildCount is part of the RelExpr interface.
func (e *MExpr) ChildCount() int {
	return len(e.children)
}

// ChildGroup returns the group of the ith input.
func (e *MExpr) ChildGroup(i int) GroupID {
	return e.children[i]
}

// Group returns the group the expression belongs to.
func (e *MExpr) Group() GroupID {
	return e.group
}

// DeriveRelationalProp is part of the RelExpr interface. Every member of a
// group shares the group's properties.
func (e *MExpr) DeriveRelationalProp() *props.Relational {
	return e.mem.Group(e.group).rel
}

// DerivePhysicalProp is part of the RelExpr interface. Inputs are represented
// by the first member of their group.
func (e *MExpr) DerivePhysicalProp() *physical.Provided {
	if e.phys == nil {
		inputs := make([]*physical.Provided, len(e.children))
		for i, c := range e.children {
			inputs[i] = e.mem.Group(c).FirstExpr().DerivePhysicalProp()
		}
		e.phys = derivePhysical(e.op, inputs)
	}
	return e.phys
}

// ComputeRequiredProp is part of the RelExpr interface.
func (e *MExpr) ComputeRequiredProp(childIdx int, required *physical.Required) *physical.Required {
	cols := make([]opt.ColSet, len(e.children))
	for i, c := range e.children {
		cols[i] = e.mem.Group(c).rel.OutputCols
	}
	return computeRequired(e.op, cols, childIdx, required)
}
