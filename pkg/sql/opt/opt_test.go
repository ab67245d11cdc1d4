// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/cat"
	"github.com/stretchr/testify/require"
)

type testColumn string

func (c testColumn) ColName() string { return string(c) }

type testTable struct {
	name string
	cols []string
}

func (t *testTable) ID() cat.StableID        { return 1 }
func (t *testTable) Name() string            { return t.name }
func (t *testTable) ColumnCount() int        { return len(t.cols) }
func (t *testTable) Column(i int) cat.Column { return testColumn(t.cols[i]) }

func TestColSet(t *testing.T) {
	s := opt.MakeColSet(1, 2, 3, 70)
	require.Equal(t, "(1-3,70)", s.String())
	require.True(t, s.Contains(70))
	require.Equal(t, opt.ColList{1, 2, 3, 70}, s.ToList())

	u := s.Union(opt.MakeColSet(5))
	require.Equal(t, 4, s.Len())
	require.Equal(t, 5, u.Len())
	require.True(t, s.SubsetOf(u))
	require.Equal(t, "(1-3)", s.Difference(opt.MakeColSet(70)).String())
	require.Equal(t, opt.ColumnID(5), opt.MakeColSet(5).SingleColumn())
	require.Panics(t, func() { s.SingleColumn() })
}

func TestMetadata(t *testing.T) {
	var md opt.Metadata
	a := md.AddTable(&testTable{name: "a", cols: []string{"x", "y"}}, "")
	b := md.AddTable(&testTable{name: "a", cols: []string{"x", "y"}}, "b")
	c := md.AddColumn("c")

	require.Equal(t, opt.ColumnID(1), a.ColumnID(0))
	require.Equal(t, opt.ColumnID(3), b.ColumnID(0))
	require.Equal(t, opt.ColumnID(5), c)
	require.Equal(t, 1, b.ColumnOrdinal(4))
	require.Equal(t, "a.x", md.QualifiedAlias(1))
	require.Equal(t, "b.y:4", md.ColumnLabel(4))
	require.Equal(t, "c:5", md.ColumnLabel(c))
	require.Equal(t, "a.x:1 b.x:3", md.FormatColSet(opt.MakeColSet(1, 3)))
	require.Equal(t, "+a.x:1,-c:5", md.FormatOrdering(opt.Ordering{1, -5}))
	require.Equal(t, "(3,4)", md.TableMeta(b).Columns().String())
	require.Len(t, md.AllTables(), 2)
	require.Panics(t, func() { md.ColumnMeta(6) })
}

func TestRewriteErrorFormat(t *testing.T) {
	cause := errors.New("unknown function 42")
	err := opt.NewRuleTransformError(opt.FoldFilterConstants, opt.FilterOp, "normalize", cause)
	require.EqualError(t, err,
		"rule FoldFilterConstants failed on filter in batch normalize: unknown function 42")
	require.True(t, errors.Is(err, cause))
	require.True(t, opt.HasErrorKind(err, opt.RuleTransformError))
	require.False(t, opt.HasErrorKind(err, opt.IterationLimitExceeded))

	wrapped := errors.Wrap(opt.NewIterationLimitError("pushdown", opt.MergeFilter, 10), "optimizing")
	re, ok := opt.GetRewriteError(wrapped)
	require.True(t, ok)
	require.Equal(t, opt.IterationLimitExceeded, re.Kind)
	require.Equal(t,
		"optimizing: batch pushdown did not converge after 10 rounds (last rule applied: MergeFilter)",
		wrapped.Error())
	require.Equal(t,
		"optimizing: batch pushdown did not converge after 10 rounds (last rule applied: MergeFilter)",
		errors.Redact(wrapped))

	// The rule, operator and batch are safe for reporting.
	conflict := opt.NewGroupPropertyConflictError(3, opt.ProjectOp, opt.MakeColSet(1), opt.MakeColSet(1, 2))
	require.Equal(t,
		"cannot add project to group G3: output columns (1,2) do not match group columns (1)",
		errors.Redact(conflict))
}

func TestCatchOptimizerError(t *testing.T) {
	run := func(f func()) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = opt.CatchOptimizerError(r)
			}
		}()
		f()
		return nil
	}

	err := run(func() { panic(errors.AssertionFailedf("bad group %d", 1)) })
	require.True(t, errors.IsAssertionFailure(err))

	err = run(func() {
		var s []int
		idx := len(s)
		_ = s[idx]
	})
	require.True(t, errors.IsAssertionFailure(err))

	require.NoError(t, run(func() {}))
	require.Panics(t, func() { _ = run(func() { panic("not an error") }) })
}
