// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package refexec is a naive row-at-a-time executor for expression trees. It
// exists to check that rewritten plans return the same rows as the plans
// they were derived from, and makes no attempt to be efficient.
package refexec

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/cat"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/olekukonko/tablewriter"
)

// RowSource is implemented by catalog tables that hold data.
type RowSource interface {
	cat.Table

	// TableRows returns the rows of the table, with values in column ordinal
	// order.
	TableRows() [][]scalar.Datum
}

// Result holds the rows returned by an expression. Values are in the order
// of Cols.
type Result struct {
	Cols opt.ColList
	Rows [][]scalar.Datum
}

// row holds one value per column id of the metadata. Index 0 is unused.
type row []scalar.Datum

// Executor evaluates expressions built against one metadata instance.
type Executor struct {
	md  *opt.Metadata
	fns scalar.FunctionRegistry
}

// New returns an executor for expressions using the given metadata.
func New(md *opt.Metadata, fns scalar.FunctionRegistry) *Executor {
	return &Executor{md: md, fns: fns}
}

// Execute evaluates the expression and returns its output columns, in column
// id order.
func (ex *Executor) Execute(ctx context.Context, e *memo.SExpr) (*Result, error) {
	rows, err := ex.exec(ctx, e)
	if err != nil {
		return nil, err
	}
	res := &Result{Cols: e.OutputCols().ToList()}
	res.Rows = make([][]scalar.Datum, len(rows))
	for i, r := range rows {
		out := make([]scalar.Datum, len(res.Cols))
		for j, c := range res.Cols {
			out[j] = r[c]
		}
		res.Rows[i] = out
	}
	return res, nil
}

func (ex *Executor) newRow() row {
	r := make(row, ex.md.NumColumns()+1)
	for i := range r {
		r[i] = scalar.DNull
	}
	return r
}

func (r row) accessor() scalar.RowAccessor {
	return func(col opt.ColumnID) scalar.Datum { return r[col] }
}

// merge returns a new row with the values of cols copied from other.
func (r row) merge(other row, cols opt.ColSet) row {
	res := append(row(nil), r...)
	cols.ForEach(func(c opt.ColumnID) { res[c] = other[c] })
	return res
}

func (ex *Executor) exec(ctx context.Context, e *memo.SExpr) ([]row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch t := e.Private().(type) {
	case *memo.ScanOp:
		return ex.scan(t)

	case *memo.FilterOp:
		input, err := ex.exec(ctx, e.Child(0))
		if err != nil {
			return nil, err
		}
		return ex.filter(input, t.Predicate)

	case *memo.JoinOp:
		return ex.join(ctx, e, t)

	case *memo.AggregateOp:
		input, err := ex.exec(ctx, e.Child(0))
		if err != nil {
			return nil, err
		}
		return ex.aggregate(input, t)

	case *memo.SortOp:
		input, err := ex.exec(ctx, e.Child(0))
		if err != nil {
			return nil, err
		}
		var sortErr error
		sort.SliceStable(input, func(i, j int) bool {
			for _, c := range t.Ordering {
				cmp, err := compareDatums(input[i][c.ID()], input[j][c.ID()])
				if err != nil {
					sortErr = err
					return false
				}
				if cmp != 0 {
					return (cmp < 0) != c.Descending()
				}
			}
			return false
		})
		return input, sortErr

	case *memo.LimitOp:
		input, err := ex.exec(ctx, e.Child(0))
		if err != nil {
			return nil, err
		}
		start := min(t.Offset, uint64(len(input)))
		end := min(start+t.Limit, uint64(len(input)))
		return input[start:end], nil

	case *memo.ProjectOp, *memo.ExchangeOp:
		// Columns that are not projected are never referenced again.
		return ex.exec(ctx, e.Child(0))

	case *memo.EvalScalarOp:
		input, err := ex.exec(ctx, e.Child(0))
		if err != nil {
			return nil, err
		}
		res := make([]row, len(input))
		for i, in := range input {
			r := append(row(nil), in...)
			for _, item := range t.Items {
				d, err := scalar.Eval(item.Expr, r.accessor(), ex.fns)
				if err != nil {
					return nil, err
				}
				r[item.Col] = d
			}
			res[i] = r
		}
		return res, nil

	case *memo.UnionAllOp:
		var res []row
		for i, cols := range []opt.ColList{t.LeftCols, t.RightCols} {
			input, err := ex.exec(ctx, e.Child(i))
			if err != nil {
				return nil, err
			}
			for _, in := range input {
				r := ex.newRow()
				for j, c := range cols {
					r[t.OutCols[j]] = in[c]
				}
				res = append(res, r)
			}
		}
		return res, nil

	default:
		return nil, errors.AssertionFailedf("unhandled operator %T", t)
	}
}

func (ex *Executor) scan(op *memo.ScanOp) ([]row, error) {
	src, ok := ex.md.Table(op.Table).(RowSource)
	if !ok {
		return nil, errors.Newf("table %s has no rows", ex.md.TableMeta(op.Table).Alias)
	}
	tabRows := src.TableRows()
	res := make([]row, len(tabRows))
	for i, vals := range tabRows {
		r := ex.newRow()
		op.Cols.ForEach(func(c opt.ColumnID) {
			r[c] = vals[op.Table.ColumnOrdinal(c)]
		})
		res[i] = r
	}
	return res, nil
}

func (ex *Executor) filter(input []row, pred scalar.Expr) ([]row, error) {
	var res []row
	for _, r := range input {
		ok, err := ex.isTrue(pred, r)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, r)
		}
	}
	return res, nil
}

func (ex *Executor) isTrue(pred scalar.Expr, r row) (bool, error) {
	if pred == nil {
		return true, nil
	}
	d, err := scalar.Eval(pred, r.accessor(), ex.fns)
	if err != nil {
		return false, err
	}
	return d == scalar.DBoolTrue, nil
}

// join is a nested loop join.
func (ex *Executor) join(ctx context.Context, e *memo.SExpr, op *memo.JoinOp) ([]row, error) {
	left, err := ex.exec(ctx, e.Child(0))
	if err != nil {
		return nil, err
	}
	right, err := ex.exec(ctx, e.Child(1))
	if err != nil {
		return nil, err
	}
	rightCols := e.Child(1).OutputCols()

	var res []row
	for _, l := range left {
		matched := false
		for _, r := range right {
			combined := l.merge(r, rightCols)
			ok, err := ex.isTrue(op.On, combined)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			matched = true
			if !op.Type.OutputsRightCols() {
				break
			}
			res = append(res, combined)
		}
		switch op.Type {
		case memo.LeftJoin, memo.AntiJoin:
			if !matched {
				res = append(res, l)
			}
		case memo.SemiJoin:
			if matched {
				res = append(res, l)
			}
		}
	}
	return res, nil
}

func (ex *Executor) aggregate(input []row, op *memo.AggregateOp) ([]row, error) {
	type group struct {
		first row
		aggs  []*scalar.Aggregator
	}
	newGroup := func(first row) *group {
		g := &group{first: first, aggs: make([]*scalar.Aggregator, len(op.Aggregations))}
		for i := range op.Aggregations {
			g.aggs[i] = scalar.NewAggregator(op.Aggregations[i].Func)
		}
		return g
	}

	var groups []*group
	byKey := make(map[string]*group)
	groupCols := op.GroupingCols.ToList()
	for _, r := range input {
		key := rowKey(r, groupCols)
		g, ok := byKey[key]
		if !ok {
			g = newGroup(r)
			byKey[key] = g
			groups = append(groups, g)
		}
		for i := range op.Aggregations {
			if err := g.aggs[i].Add(r[op.Aggregations[i].Arg]); err != nil {
				return nil, err
			}
		}
	}
	// A scalar aggregate returns one row, even for an empty input.
	if len(groups) == 0 && op.GroupingCols.Empty() {
		groups = append(groups, newGroup(ex.newRow()))
	}

	res := make([]row, len(groups))
	for i, g := range groups {
		r := ex.newRow()
		for _, c := range groupCols {
			r[c] = g.first[c]
		}
		for j := range op.Aggregations {
			r[op.Aggregations[j].Col] = g.aggs[j].Result()
		}
		res[i] = r
	}
	return res, nil
}

// rowKey returns a string that is equal for rows whose cols are equal.
func rowKey(r row, cols opt.ColList) string {
	var sb strings.Builder
	for _, c := range cols {
		d := r[c]
		if dec, ok := d.(*scalar.DDecimal); ok {
			// 1 and 1.0 are the same group.
			var reduced scalar.DDecimal
			reduced.Reduce(&dec.Decimal)
			d = &reduced
		}
		fmt.Fprintf(&sb, "%s:%s/", scalar.TypeName(d), d)
	}
	return sb.String()
}

// typeRank orders values of different types, NULL first.
func typeRank(d scalar.Datum) int {
	switch d.(type) {
	case scalar.DBool:
		return 1
	case *scalar.DDecimal:
		return 2
	case scalar.DString:
		return 3
	default:
		return 0
	}
}

// compareDatums is a total order over values: NULLs sort first and values
// of different types are ordered by type.
func compareDatums(a, b scalar.Datum) (int, error) {
	ra, rb := typeRank(a), typeRank(b)
	switch {
	case ra != rb:
		if ra < rb {
			return -1, nil
		}
		return 1, nil
	case ra == 0:
		return 0, nil
	}
	return scalar.Compare(a, b)
}

// Sort orders the rows of the result by all columns.
func (r *Result) Sort() {
	sort.SliceStable(r.Rows, func(i, j int) bool {
		return compareRows(r.Rows[i], r.Rows[j]) < 0
	})
}

func compareRows(a, b []scalar.Datum) int {
	for k := range a {
		if c, _ := compareDatums(a[k], b[k]); c != 0 {
			return c
		}
	}
	return 0
}

// Equivalent returns true if both results have the same rows. If ordered is
// false, the order of the rows is ignored. Columns are matched by position.
func (r *Result) Equivalent(other *Result, ordered bool) bool {
	if len(r.Cols) != len(other.Cols) || len(r.Rows) != len(other.Rows) {
		return false
	}
	a, b := r, other
	if !ordered {
		a, b = r.sortedCopy(), other.sortedCopy()
	}
	for i := range a.Rows {
		for j := range a.Rows[i] {
			if !scalar.DatumsEqual(a.Rows[i][j], b.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}

func (r *Result) sortedCopy() *Result {
	res := &Result{Cols: r.Cols, Rows: append([][]scalar.Datum(nil), r.Rows...)}
	res.Sort()
	return res
}

// String formats the rows, one per line, with values separated by spaces.
func (r *Result) String() string {
	var sb strings.Builder
	for _, vals := range r.Rows {
		for i, d := range vals {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(d.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Render writes the result as a table with a header of column labels.
func (r *Result) Render(w io.Writer, md *opt.Metadata) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	header := make([]string, len(r.Cols))
	for i, c := range r.Cols {
		header[i] = md.QualifiedAlias(c)
	}
	table.SetHeader(header)
	for _, vals := range r.Rows {
		strs := make([]string, len(vals))
		for i, d := range vals {
			strs[i] = d.String()
		}
		table.Append(strs)
	}
	table.Render()
	fmt.Fprintf(w, "(%d rows)\n", len(r.Rows))
}
