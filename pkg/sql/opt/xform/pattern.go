// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
)

// Pattern is a template for the shape of an expression tree. A concrete
// pattern matches an expression with the same operator whose inputs match the
// child patterns one for one. A wildcard matches any expression and binds it
// to the wildcard's name.
//
// Patterns are written with OpPattern and Any:
//
//	OpPattern(opt.FilterOp, OpPattern(opt.JoinOp, Any("left"), Any("right")))
//
// matches a filter directly over a join and binds the join's inputs.
type Pattern struct {
	op       opt.Operator
	name     string
	children []*Pattern
}

// OpPattern returns a concrete pattern. The number of child patterns must
// equal the arity of the operator, otherwise the pattern could never match.
func OpPattern(op opt.Operator, children ...*Pattern) *Pattern {
	if op == opt.UnknownOp || op >= opt.NumOperators {
		panic(errors.AssertionFailedf("invalid pattern operator %d", op))
	}
	if op.Arity() != len(children) {
		panic(errors.AssertionFailedf(
			"pattern for %s has %d children, expected %d", op, len(children), op.Arity()))
	}
	return &Pattern{op: op, children: children}
}

// Any returns a wildcard pattern that binds the matched expression to name.
func Any(name string) *Pattern {
	if name == "" {
		panic(errors.AssertionFailedf("wildcard patterns must be named"))
	}
	return &Pattern{name: name}
}

// IsWildcard returns true if the pattern matches any expression.
func (p *Pattern) IsWildcard() bool {
	return p.op == opt.UnknownOp
}

// Op returns the operator matched by a concrete pattern.
func (p *Pattern) Op() opt.Operator {
	return p.op
}

// Name returns the name of a wildcard pattern.
func (p *Pattern) Name() string {
	return p.name
}

// WildcardCount returns the number of wildcards in the pattern.
func (p *Pattern) WildcardCount() int {
	if p.IsWildcard() {
		return 1
	}
	n := 0
	for _, c := range p.children {
		n += c.WildcardCount()
	}
	return n
}

func (p *Pattern) String() string {
	var sb strings.Builder
	p.format(&sb)
	return sb.String()
}

func (p *Pattern) format(sb *strings.Builder) {
	if p.IsWildcard() {
		sb.WriteByte('$')
		sb.WriteString(p.name)
		return
	}
	sb.WriteByte('(')
	sb.WriteString(p.op.String())
	for _, c := range p.children {
		sb.WriteByte(' ')
		c.format(sb)
	}
	sb.WriteByte(')')
}

// Bindings holds the expressions captured by the wildcards of a pattern, in
// the order the wildcards appear in the pattern.
type Bindings struct {
	names []string
	exprs []*memo.SExpr
}

// Len returns the number of bound expressions.
func (b *Bindings) Len() int {
	return len(b.exprs)
}

// At returns the ith bound expression.
func (b *Bindings) At(i int) *memo.SExpr {
	return b.exprs[i]
}

// Get returns the expression bound to the named wildcard, or nil.
func (b *Bindings) Get(name string) *memo.SExpr {
	for i := range b.names {
		if b.names[i] == name {
			return b.exprs[i]
		}
	}
	return nil
}

func (b *Bindings) bind(name string, e *memo.SExpr) {
	b.names = append(b.names, name)
	b.exprs = append(b.exprs, e)
}

func (b *Bindings) truncate(n int) {
	b.names = b.names[:n]
	b.exprs = b.exprs[:n]
}

func (b *Bindings) copy() Bindings {
	return Bindings{
		names: append([]string(nil), b.names...),
		exprs: append([]*memo.SExpr(nil), b.exprs...),
	}
}

// Match is one occurrence of a pattern in an expression tree.
type Match struct {
	// Path is the sequence of child indexes that leads from the root of the
	// tree to the matched expression.
	Path []int

	// Expr is the matched expression.
	Expr *memo.SExpr

	// Bindings are the expressions captured by the pattern's wildcards.
	Bindings Bindings
}

// PatternExtractor finds the occurrences of a pattern in an expression tree.
// It has no state, so the zero value is ready to use.
type PatternExtractor struct{}

// Extract returns every match of the pattern in the tree rooted at root. The
// matches are ordered by a pre-order walk of the tree, which makes the result
// identical for identical inputs. A subtree that is shared by several parents
// is reported once per path that reaches it.
func (PatternExtractor) Extract(p *Pattern, root *memo.SExpr) []Match {
	var res []Match
	var path []int
	var walk func(e *memo.SExpr)
	walk = func(e *memo.SExpr) {
		var b Bindings
		if matchExpr(p, e, &b) {
			res = append(res, Match{
				Path:     append([]int(nil), path...),
				Expr:     e,
				Bindings: b,
			})
		}
		for i, n := 0, e.ChildCount(); i < n; i++ {
			path = append(path, i)
			walk(e.Child(i))
			path = path[:len(path)-1]
		}
	}
	walk(root)
	return res
}

// MatchExpr matches the pattern against the root of the expression only.
func (PatternExtractor) MatchExpr(p *Pattern, e *memo.SExpr) (Bindings, bool) {
	var b Bindings
	if !matchExpr(p, e, &b) {
		return Bindings{}, false
	}
	return b, true
}

func matchExpr(p *Pattern, e *memo.SExpr, b *Bindings) bool {
	if p.IsWildcard() {
		b.bind(p.name, e)
		return true
	}
	if p.op != e.Op() || len(p.children) != e.ChildCount() {
		return false
	}
	n := b.Len()
	for i, c := range p.children {
		if !matchExpr(c, e.Child(i), b) {
			b.truncate(n)
			return false
		}
	}
	return true
}

// ExtractFromMemo returns every expression tree, rooted at a member of the
// given group, that the pattern matches. Concrete patterns are matched against
// every member of a group, so each combination of matching members yields a
// separate tree. Wildcards bind the first member of their group, extracted
// the way Memo.Extract does. Results are ordered by member position, with the
// leftmost input varying slowest.
func ExtractFromMemo(m *memo.Memo, group memo.GroupID, p *Pattern) []Match {
	cache := make(map[memo.GroupID]*memo.SExpr)
	var res []Match
	for _, c := range extractGroup(m, group, p, cache) {
		res = append(res, Match{Path: []int{}, Expr: c.expr, Bindings: c.bindings})
	}
	return res
}

type memoCandidate struct {
	expr     *memo.SExpr
	inputs   []*memo.SExpr
	bindings Bindings
}

func extractGroup(
	m *memo.Memo, group memo.GroupID, p *Pattern, cache map[memo.GroupID]*memo.SExpr,
) []memoCandidate {
	if p.IsWildcard() {
		e, ok := cache[group]
		if !ok {
			e = m.Extract(group)
			cache[group] = e
		}
		var b Bindings
		b.bind(p.name, e)
		return []memoCandidate{{expr: e, bindings: b}}
	}

	grp := m.Group(group)
	var res []memoCandidate
	for i, n := 0, grp.MemberCount(); i < n; i++ {
		member := grp.Member(i)
		if member.Op() != p.op || member.ChildCount() != len(p.children) {
			continue
		}
		// Start with a single empty combination and extend it input by input.
		combos := []memoCandidate{{}}
		for j, cp := range p.children {
			childCands := extractGroup(m, member.ChildGroup(j), cp, cache)
			next := make([]memoCandidate, 0, len(combos)*len(childCands))
			for _, prev := range combos {
				for _, cc := range childCands {
					b := prev.bindings.copy()
					for x := range cc.bindings.exprs {
						b.bind(cc.bindings.names[x], cc.bindings.exprs[x])
					}
					inputs := append(append([]*memo.SExpr(nil), prev.inputs...), cc.expr)
					next = append(next, memoCandidate{inputs: inputs, bindings: b})
				}
			}
			combos = next
		}
		for k := range combos {
			combos[k].expr = m.ExtractMember(member, combos[k].inputs)
			res = append(res, combos[k])
		}
	}
	return res
}
