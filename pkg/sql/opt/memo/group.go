// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo

import (
	"fmt"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
)

// GroupID identifies a memo group. Groups are numbered from 1; zero means no
// group.
type GroupID int32

func (g GroupID) String() string {
	return fmt.Sprintf("G%d", int32(g))
}

// SafeValue implements the redact.SafeValue interface.
func (GroupID) SafeValue() {}

// Group stores a set of logically equivalent expressions. All members return
// the same set of columns and share one copy of the logical properties.
type Group struct {
	id    GroupID
	exprs []*MExpr
	rel   *props.Relational

	// best stores, per set of required physical properties, the lowest cost
	// member found so far. It is keyed by the string form of the properties.
	// Nothing in the heuristic rewriter fills it; it is kept for a cost-based
	// search.
	best map[string]*BestExpr
}

// BestExpr is the lowest cost member of a group for a set of required
// physical properties.
type BestExpr struct {
	Expr     *MExpr
	Required *physical.Required
	Cost     float64
}

// ID returns the id of the group.
func (g *Group) ID() GroupID {
	return g.id
}

// MemberCount returns the number of expressions in the group.
func (g *Group) MemberCount() int {
	return len(g.exprs)
}

// Member returns the ith expression of the group, in insertion order.
func (g *Group) Member(i int) *MExpr {
	return g.exprs[i]
}

// FirstExpr returns the expression the group was created with.
func (g *Group) FirstExpr() *MExpr {
	return g.exprs[0]
}

// Relational returns the logical properties shared by all members.
func (g *Group) Relational() *props.Relational {
	return g.rel
}

// SetBest records the best member for the given required properties,
// replacing any previous winner.
func (g *Group) SetBest(required *physical.Required, e *MExpr, cost float64) {
	if g.best == nil {
		g.best = make(map[string]*BestExpr)
	}
	g.best[required.String()] = &BestExpr{Expr: e, Required: required, Cost: cost}
}

// Best returns the best member for the given required properties, if one has
// been recorded.
func (g *Group) Best(required *physical.Required) (*BestExpr, bool) {
	be, ok := g.best[required.String()]
	return be, ok
}

func (g *Group) addExpr(e *MExpr) {
	e.group = g.id
	g.exprs = append(g.exprs, e)
}
