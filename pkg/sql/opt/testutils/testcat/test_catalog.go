// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/cat"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Catalog implements the cat.Catalog interface for testing purposes.
type Catalog struct {
	mu      sync.Mutex
	tables  map[string]*Table
	counter cat.StableID

	// statsRequests counts the calls to TableStatistic.
	statsRequests atomic.Int64
}

var _ cat.Catalog = &Catalog{}

// New creates a new empty instance of the test catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

// ResolveTable is part of the cat.Catalog interface.
func (tc *Catalog) ResolveTable(_ context.Context, name string) (cat.Table, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tab, ok := tc.tables[name]; ok {
		return tab, nil
	}
	return nil, errors.Newf("no table named %q", name)
}

// TableStatistic is part of the cat.Catalog interface.
func (tc *Catalog) TableStatistic(ctx context.Context, id cat.StableID) (cat.TableStatistic, error) {
	tc.statsRequests.Add(1)
	if err := ctx.Err(); err != nil {
		return cat.TableStatistic{}, err
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for _, tab := range tc.tables {
		if tab.TabID == id {
			return cat.TableStatistic{RowCount: tab.RowCount}, nil
		}
	}
	return cat.TableStatistic{}, errors.Newf("no statistics for table [%d]", id)
}

// StatsRequests returns the number of times statistics were requested.
func (tc *Catalog) StatsRequests() int64 {
	return tc.statsRequests.Load()
}

// CreateTable adds a table with the given columns. If rowCount is negative,
// the number of rows is used as the row count statistic.
func (tc *Catalog) CreateTable(
	name string, cols []string, rows [][]scalar.Datum, rowCount int64,
) (*Table, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if _, ok := tc.tables[name]; ok {
		return nil, errors.Newf("table %q already exists", name)
	}
	if len(cols) == 0 {
		return nil, errors.Newf("table %q must have at least one column", name)
	}
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, errors.Newf("row %d of %q has %d values, expected %d", i+1, name, len(r), len(cols))
		}
	}
	if rowCount < 0 {
		rowCount = int64(len(rows))
	}
	tc.counter++
	tab := &Table{
		TabID:    tc.counter + 52,
		TabName:  name,
		Rows:     rows,
		RowCount: uint64(rowCount),
	}
	for _, c := range cols {
		tab.Columns = append(tab.Columns, &Column{Name: c})
	}
	tc.tables[name] = tab
	return tab, nil
}

// Table returns the test table that was previously added with the given name.
func (tc *Catalog) Table(name string) *Table {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tab, ok := tc.tables[name]
	if !ok {
		panic(errors.AssertionFailedf("no table named %q", name))
	}
	return tab
}

// TableNames returns the names of all tables, sorted.
func (tc *Catalog) TableNames() []string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	names := maps.Keys(tc.tables)
	slices.Sort(names)
	return names
}

// Table implements the cat.Table interface for testing purposes.
type Table struct {
	TabID    cat.StableID
	TabName  string
	Columns  []*Column
	Rows     [][]scalar.Datum
	RowCount uint64
}

var _ cat.Table = &Table{}

func (tt *Table) String() string {
	names := make([]string, len(tt.Columns))
	for i, c := range tt.Columns {
		names[i] = c.Name
	}
	return tt.TabName + " (" + strings.Join(names, ", ") + ")"
}

// ID is part of the cat.Table interface.
func (tt *Table) ID() cat.StableID {
	return tt.TabID
}

// Name is part of the cat.Table interface.
func (tt *Table) Name() string {
	return tt.TabName
}

// ColumnCount is part of the cat.Table interface.
func (tt *Table) ColumnCount() int {
	return len(tt.Columns)
}

// Column is part of the cat.Table interface.
func (tt *Table) Column(i int) cat.Column {
	return tt.Columns[i]
}

// TableRows returns the contents of the table.
func (tt *Table) TableRows() [][]scalar.Datum {
	return tt.Rows
}

// FindOrdinal returns the ordinal of the column with the given name.
func (tt *Table) FindOrdinal(name string) (int, bool) {
	for i, c := range tt.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Column implements the cat.Column interface for testing purposes.
type Column struct {
	Name string
}

var _ cat.Column = &Column{}

// ColName is part of the cat.Column interface.
func (tc *Column) ColName() string {
	return tc.Name
}

// ParseRow parses a comma-separated list of values: numbers, single-quoted
// strings, true, false and NULL.
func ParseRow(line string) ([]scalar.Datum, error) {
	var row []scalar.Datum
	for _, f := range splitValues(line) {
		d, err := ParseDatum(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		row = append(row, d)
	}
	return row, nil
}

// ParseDatum parses a single value.
func ParseDatum(s string) (scalar.Datum, error) {
	switch {
	case strings.EqualFold(s, "null"):
		return scalar.DNull, nil
	case s == "true":
		return scalar.DBoolTrue, nil
	case s == "false":
		return scalar.DBoolFalse, nil
	case len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'':
		return scalar.DString(strings.ReplaceAll(s[1:len(s)-1], "''", "'")), nil
	}
	d, err := scalar.ParseDDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid value %q", s)
	}
	return d, nil
}

// splitValues splits on commas that are not inside quotes.
func splitValues(line string) []string {
	var res []string
	inQuote := false
	start := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\'':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				res = append(res, line[start:i])
				start = i + 1
			}
		}
	}
	return append(res, line[start:])
}
