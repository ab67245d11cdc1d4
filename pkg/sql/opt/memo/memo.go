// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props"
	"github.com/dchest/siphash"
)

// Memo is a data structure for efficiently storing a forest of expression
// trees. Conceptually, the memo is composed of a numbered set of equivalency
// classes called groups where each group contains a set of logically
// equivalent expressions. Two expressions are considered logically equivalent
// if:
//
//  1. They return the same number and data type of columns. However, order and
//     naming of columns doesn't matter.
//  2. They return the same number of rows, with the same values in each row.
//     However, order of rows doesn't matter.
//
// The different expressions in a single group are called memo expressions
// (memo-ized expressions). A memo expression has a list of child groups as its
// children rather than a list of individual expressions. The forest is
// composed of every possible combination of parent expression with its
// children, recursively applied.
//
// Structurally identical memo expressions (same operator, same parameters and
// same child groups) are interned: adding one a second time returns the group
// of the first.
//
// A Memo is not safe for concurrent use; every optimizer run builds its own.
type Memo struct {
	metadata *opt.Metadata

	// groups is the arena of groups. Group i+1 is stored at index i.
	groups []*Group

	// interner maps the siphash of an expression key to the expressions with
	// that hash.
	interner map[uint64][]*MExpr

	// root is the group of the root expression, if set.
	root GroupID
}

// Keys for the interner hash. Any fixed values work; the hash is only used to
// bucket keys that are then compared in full.
const (
	internK0 = 0x6f7074696d697a65
	internK1 = 0x6d656d6f696e7465
)

// New returns an empty memo. The metadata is used when formatting.
func New(md *opt.Metadata) *Memo {
	m := &Memo{}
	m.Init(md)
	return m
}

// Init initializes a new empty memo instance, or resets existing state so it
// can be reused.
func (m *Memo) Init(md *opt.Metadata) {
	*m = Memo{
		metadata: md,
		interner: make(map[uint64][]*MExpr),
	}
}

// Metadata returns the metadata instance associated with the memo.
func (m *Memo) Metadata() *opt.Metadata {
	return m.metadata
}

// GroupCount returns the number of groups in the memo.
func (m *Memo) GroupCount() int {
	return len(m.groups)
}

// Group returns the group with the given id.
func (m *Memo) Group(id GroupID) *Group {
	if id < 1 || int(id) > len(m.groups) {
		panic(errors.AssertionFailedf("group %d does not exist in memo", id))
	}
	return m.groups[id-1]
}

// RootGroup returns the root group of the memo, or zero if none has been set.
func (m *Memo) RootGroup() GroupID {
	return m.root
}

// SetRoot sets the root group of the memo.
func (m *Memo) SetRoot(id GroupID) {
	m.Group(id)
	m.root = id
}

// Insert adds the expression tree to the memo and returns the group of its
// root. Inputs are added before their parents. An expression that was
// extracted from this memo maps straight back to its group. An expression that
// is structurally identical to one already in the memo returns the existing
// group; otherwise a new group is created.
func (m *Memo) Insert(e *SExpr) (GroupID, error) {
	return m.insert(e, 0)
}

// InsertToGroup adds the expression as an alternative member of an existing
// group. The expression must produce the same output columns as the group;
// otherwise a GroupPropertyConflict error is returned. Adding an expression
// that is already a member of the group has no effect.
func (m *Memo) InsertToGroup(id GroupID, e *SExpr) error {
	m.Group(id)
	_, err := m.insert(e, id)
	return err
}

// insert adds e to the memo. If target is non-zero, e's root is added to that
// group.
func (m *Memo) insert(e *SExpr, target GroupID) (GroupID, error) {
	if target == 0 && e.origin == m && e.group != 0 {
		return e.group, nil
	}

	children := make([]GroupID, len(e.children))
	for i, c := range e.children {
		id, err := m.insert(c, 0)
		if err != nil {
			return 0, err
		}
		if target != 0 && m.reaches(id, target, make(map[GroupID]bool)) {
			return 0, errors.AssertionFailedf(
				"cannot add %s to group %s: input %d depends on the group itself", e.Op(), target, i)
		}
		children[i] = id
	}

	me := makeMExpr(m, e.op, children)
	hash := siphash.Hash(internK0, internK1, []byte(me.key))
	if existing := m.lookup(hash, me.key); existing != nil {
		if target == 0 || existing.group == target {
			return existing.group, nil
		}
		return 0, errors.AssertionFailedf(
			"cannot add %s to group %s: it is already a member of group %s",
			e.Op(), target, existing.group)
	}

	inputs := make([]*props.Relational, len(children))
	for i, c := range children {
		inputs[i] = m.Group(c).rel
	}
	rel := deriveRelational(e.op, inputs)

	var grp *Group
	if target == 0 {
		grp = &Group{id: GroupID(len(m.groups) + 1), rel: rel}
		m.groups = append(m.groups, grp)
	} else {
		grp = m.Group(target)
		if !rel.OutputCols.Equals(grp.rel.OutputCols) {
			return 0, opt.NewGroupPropertyConflictError(
				int32(target), e.Op(), grp.rel.OutputCols, rel.OutputCols)
		}
	}
	grp.addExpr(me)
	m.interner[hash] = append(m.interner[hash], me)
	return grp.id, nil
}

// reaches returns true if group to is group from or one of its descendants.
func (m *Memo) reaches(from, to GroupID, seen map[GroupID]bool) bool {
	if from == to {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	for _, e := range m.Group(from).exprs {
		for _, c := range e.children {
			if m.reaches(c, to, seen) {
				return true
			}
		}
	}
	return false
}

func (m *Memo) lookup(hash uint64, key string) *MExpr {
	for _, e := range m.interner[hash] {
		if e.key == key {
			return e
		}
	}
	return nil
}

// Extract builds an expression tree from the given group, choosing the first
// member of every group it visits. A group reached along several paths is
// extracted once, and every parent refers to the same *SExpr, so sharing in
// the memo is preserved in the tree. Every extracted node remembers its group.
func (m *Memo) Extract(id GroupID) *SExpr {
	return m.extract(id, make(map[GroupID]*SExpr))
}

func (m *Memo) extract(id GroupID, done map[GroupID]*SExpr) *SExpr {
	if e, ok := done[id]; ok {
		return e
	}
	grp := m.Group(id)
	first := grp.FirstExpr()
	children := make([]*SExpr, len(first.children))
	for i, c := range first.children {
		children[i] = m.extract(c, done)
	}
	e := extracted(grp, first.op, children, m)
	done[id] = e
	return e
}

// ExtractMember builds an expression node for the given member of a group over
// the given inputs, which must have been extracted from the member's child
// groups. The node remembers its group.
func (m *Memo) ExtractMember(e *MExpr, children []*SExpr) *SExpr {
	if e.mem != m {
		panic(errors.AssertionFailedf("%s is not a member of this memo", e.Op()))
	}
	for i, c := range children {
		if c.origin != m || c.group != e.children[i] {
			panic(errors.AssertionFailedf("input %d of %s was not extracted from %s", i, e.Op(), e.children[i]))
		}
	}
	return extracted(m.Group(e.group), e.op, children, m)
}
