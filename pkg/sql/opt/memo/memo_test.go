// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package memo_test

import (
	"strings"
	"testing"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/props/physical"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/optrewrite/pkg/util/log"
	"github.com/stretchr/testify/require"
)

// testEnv has two tables, a(x, y) and b(x, y), with column ids 1-4.
type testEnv struct {
	md   opt.Metadata
	tabA opt.TableID
	tabB opt.TableID
}

func newTestEnv(t *testing.T) *testEnv {
	cat := testcat.New()
	a, err := cat.CreateTable("a", []string{"x", "y"}, nil, 1000)
	require.NoError(t, err)
	b, err := cat.CreateTable("b", []string{"x", "y"}, nil, 10)
	require.NoError(t, err)

	env := &testEnv{}
	env.tabA = env.md.AddTable(a, "")
	env.tabB = env.md.AddTable(b, "")
	return env
}

func (env *testEnv) scanA() *memo.SExpr {
	return memo.NewSExpr(&memo.ScanOp{Table: env.tabA, Cols: opt.MakeColSet(1, 2)})
}

func (env *testEnv) scanB() *memo.SExpr {
	return memo.NewSExpr(&memo.ScanOp{Table: env.tabB, Cols: opt.MakeColSet(3, 4)})
}

func gt(col opt.ColumnID, val int64) scalar.Expr {
	return &scalar.Comparison{Op: scalar.GtOp, Left: scalar.NewVar(col), Right: scalar.NewConst(scalar.NewDInt(val))}
}

func eq(left, right opt.ColumnID) scalar.Expr {
	return &scalar.Comparison{Op: scalar.EqOp, Left: scalar.NewVar(left), Right: scalar.NewVar(right)}
}

func filter(pred scalar.Expr, input *memo.SExpr) *memo.SExpr {
	return memo.NewSExpr(&memo.FilterOp{Predicate: pred}, input)
}

func innerJoin(on scalar.Expr, left, right *memo.SExpr) *memo.SExpr {
	return memo.NewSExpr(&memo.JoinOp{Type: memo.InnerJoin, On: on}, left, right)
}

func TestMemoInterning(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	m := memo.New(&env.md)

	// Structurally identical trees built from different nodes share groups.
	g1, err := m.Insert(filter(gt(1, 1), env.scanA()))
	require.NoError(t, err)
	g2, err := m.Insert(filter(gt(1, 1), env.scanA()))
	require.NoError(t, err)
	require.Equal(t, g1, g2)
	require.Equal(t, 2, m.GroupCount())

	// A different predicate is a different group, over the same scan group.
	g3, err := m.Insert(filter(gt(1, 2), env.scanA()))
	require.NoError(t, err)
	require.NotEqual(t, g1, g3)
	require.Equal(t, 3, m.GroupCount())
	require.Equal(t, m.Group(g1).FirstExpr().ChildGroup(0), m.Group(g3).FirstExpr().ChildGroup(0))

	// Different tables are different groups.
	g4, err := m.Insert(env.scanB())
	require.NoError(t, err)
	require.NotEqual(t, m.Group(g1).FirstExpr().ChildGroup(0), g4)
}

func TestMemoExtract(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	m := memo.New(&env.md)

	// Both inputs of the union are the same shared node.
	scan := env.scanA()
	union := memo.NewSExpr(&memo.UnionAllOp{
		LeftCols:  opt.ColList{1, 2},
		RightCols: opt.ColList{1, 2},
		OutCols:   opt.ColList{1, 2},
	}, scan, scan)

	root, err := m.Insert(union)
	require.NoError(t, err)
	require.Equal(t, 2, m.GroupCount())
	m.SetRoot(root)

	e := m.Extract(root)
	require.True(t, e.Equals(union))
	require.Same(t, e.Child(0), e.Child(1))
	require.Equal(t, root, e.OriginalGroup())
	require.Same(t, m.Group(root).Relational(), e.DeriveRelationalProp())

	// Extracted expressions map straight back to their groups.
	before := m.GroupCount()
	g, err := m.Insert(e)
	require.NoError(t, err)
	require.Equal(t, root, g)
	g, err = m.Insert(filter(gt(2, 5), e.Child(0)))
	require.NoError(t, err)
	require.Equal(t, before+1, m.GroupCount())
	require.Equal(t, e.Child(0).OriginalGroup(), m.Group(g).FirstExpr().ChildGroup(0))

	// Expressions extracted from another memo are inserted normally.
	other := memo.New(&env.md)
	g, err = other.Insert(e)
	require.NoError(t, err)
	require.Equal(t, memo.GroupID(2), g)
}

func TestMemoInsertToGroup(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	m := memo.New(&env.md)

	g, err := m.Insert(filter(scalar.MakeAnd(gt(1, 1), gt(2, 2)), env.scanA()))
	require.NoError(t, err)

	// An equivalent alternative is added to the group.
	alt := filter(gt(2, 2), filter(gt(1, 1), env.scanA()))
	require.NoError(t, m.InsertToGroup(g, alt))
	require.Equal(t, 2, m.Group(g).MemberCount())
	require.Equal(t, g, m.Group(g).Member(1).Group())

	// Adding it again has no effect.
	require.NoError(t, m.InsertToGroup(g, alt))
	require.Equal(t, 2, m.Group(g).MemberCount())

	// An alternative with different output columns is rejected.
	project := memo.NewSExpr(&memo.ProjectOp{Cols: opt.MakeColSet(1)}, env.scanA())
	err = m.InsertToGroup(g, project)
	require.Error(t, err)
	require.True(t, opt.HasErrorKind(err, opt.GroupPropertyConflict), "%+v", err)
	require.Contains(t, err.Error(), "cannot add project to group G")
	require.Equal(t, 2, m.Group(g).MemberCount())

	// An alternative that depends on the group itself is rejected.
	self := filter(gt(1, 0), m.Extract(g))
	err = m.InsertToGroup(g, self)
	require.Error(t, err)
	require.Contains(t, err.Error(), "depends on the group itself")
}

func TestMemoFormat(t *testing.T) {
	defer log.Scope(t).Close(t)
	env := newTestEnv(t)
	m := memo.New(&env.md)

	root, err := m.Insert(innerJoin(eq(1, 3), env.scanA(), env.scanB()))
	require.NoError(t, err)
	m.SetRoot(root)

	expected := strings.TrimLeft(`
memo (3 groups, root G3)
 ├── G1: (scan a)
 ├── G2: (scan b)
 └── G3: (inner-join G1 G2 [a.x:1 = b.x:3])
`, "\n")
	require.Equal(t, expected, m.String())

	// Partial scans and alternatives are shown.
	_, err = m.Insert(memo.NewSExpr(&memo.ScanOp{Table: env.tabA, Cols: opt.MakeColSet(1)}))
	require.NoError(t, err)
	require.NoError(t, m.InsertToGroup(root, innerJoin(eq(1, 3), env.scanB(), env.scanA())))

	expected = strings.TrimLeft(`
memo (4 groups, root G3)
 ├── G1: (scan a)
 ├── G2: (scan b)
 ├── G3: (inner-join G1 G2 [a.x:1 = b.x:3]) (inner-join G2 G1 [a.x:1 = b.x:3])
 └── G4: (scan a,cols=(1))
`, "\n")
	require.Equal(t, expected, m.String())
}

func TestMemoBest(t *testing.T) {
	env := newTestEnv(t)
	m := memo.New(&env.md)
	g, err := m.Insert(env.scanA())
	require.NoError(t, err)

	grp := m.Group(g)
	required := physical.MinRequired
	_, ok := grp.Best(required)
	require.False(t, ok)

	grp.SetBest(required, grp.FirstExpr(), 10)
	best, ok := grp.Best(required)
	require.True(t, ok)
	require.Same(t, grp.FirstExpr(), best.Expr)
	require.Equal(t, 10.0, best.Cost)
	require.Contains(t, m.String(), "best: (scan a)")
}
