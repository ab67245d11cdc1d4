// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/cat"
)

// Metadata assigns unique ids to the columns, tables, and other metadata used
// within the scope of a particular query. Because it is specific to one query,
// the ids tend to be small integers that can be efficiently stored and
// manipulated.
//
// Within a query, every unique column and every projection (that is more than
// just a pass through of a column) is assigned a unique column id.
// Additionally, every separate reference to a table in the query gets a new
// set of output column ids. Consider the query:
//
//	SELECT * FROM a AS l JOIN a AS r ON (l.x = r.y)
//
// In this query, `l.x` is not equivalent to `r.x` and `l.y` is not equivalent
// to `r.y`. In order to achieve this, we need to give these columns different
// ids.
//
// The metadata is populated while a plan is built and is read-only while rules
// run, so it may be shared by concurrent optimizer runs over the same plan.
type Metadata struct {
	// cols stores information about each metadata column, indexed by
	// ColumnID.index().
	cols []ColumnMeta

	// tables stores information about each metadata table, indexed by
	// TableID.index().
	tables []TableMeta
}

// ColumnMeta stores information about one of the columns stored in the
// metadata.
type ColumnMeta struct {
	// MetaID is the identifier for this column that is unique within the query
	// metadata.
	MetaID ColumnID

	// Alias is the best-effort name of this column. Since the same column in a
	// query can have multiple names (using aliasing), one of those is chosen to
	// be used for pretty-printing and debugging.
	Alias string

	// Table is the metadata id of the base table this column belongs to, or
	// zero if the column is synthesized.
	Table TableID
}

// AddTable indexes a new reference to a table within the query. Separate
// references to the same table are assigned different table ids (e.g. in a
// self-join query). All columns are added to the metadata. If alias is empty,
// the table's name is used when formatting its columns.
func (md *Metadata) AddTable(tab cat.Table, alias string) TableID {
	tabID := makeTableID(len(md.tables), ColumnID(len(md.cols)+1))
	if alias == "" {
		alias = tab.Name()
	}
	md.tables = append(md.tables, TableMeta{MetaID: tabID, Table: tab, Alias: alias})
	for i, n := 0, tab.ColumnCount(); i < n; i++ {
		md.cols = append(md.cols, ColumnMeta{
			MetaID: tabID.ColumnID(i),
			Alias:  tab.Column(i).ColName(),
			Table:  tabID,
		})
	}
	return tabID
}

// AddColumn assigns a new unique id to a column within the query and records
// its alias. The column is not part of any base table.
func (md *Metadata) AddColumn(alias string) ColumnID {
	colID := ColumnID(len(md.cols) + 1)
	md.cols = append(md.cols, ColumnMeta{MetaID: colID, Alias: alias})
	return colID
}

// NumColumns returns the count of columns tracked by this Metadata instance.
func (md *Metadata) NumColumns() int {
	return len(md.cols)
}

// ColumnMeta looks up the metadata for the column associated with the given
// column id. The same column can be added multiple times to the query
// metadata and associated with multiple column ids.
func (md *Metadata) ColumnMeta(colID ColumnID) *ColumnMeta {
	if colID < 1 || colID.index() >= len(md.cols) {
		panic(errors.AssertionFailedf("column %d does not exist in metadata", colID))
	}
	return &md.cols[colID.index()]
}

// TableMeta looks up the metadata for the table associated with the given
// table id. The same table can be added multiple times to the query metadata
// and associated with multiple table ids.
func (md *Metadata) TableMeta(tabID TableID) *TableMeta {
	if tabID.index() < 0 || tabID.index() >= len(md.tables) {
		panic(errors.AssertionFailedf("table %d does not exist in metadata", tabID))
	}
	return &md.tables[tabID.index()]
}

// Table looks up the catalog table associated with the given metadata id.
func (md *Metadata) Table(tabID TableID) cat.Table {
	return md.TableMeta(tabID).Table
}

// AllTables returns the metadata for all tables. The result must not be
// modified.
func (md *Metadata) AllTables() []TableMeta {
	return md.tables
}

// QualifiedAlias returns the column alias, possibly qualified with the table
// alias. When the metadata is nil, the column id is used instead.
func (md *Metadata) QualifiedAlias(colID ColumnID) string {
	if md == nil || colID < 1 || colID.index() >= len(md.cols) {
		return fmt.Sprintf("@%d", colID)
	}
	cm := &md.cols[colID.index()]
	if cm.Table == 0 {
		return cm.Alias
	}
	return md.tables[cm.Table.index()].Alias + "." + cm.Alias
}

// ColumnLabel returns the qualified alias of the column followed by its id,
// e.g. "a.x:1".
func (md *Metadata) ColumnLabel(colID ColumnID) string {
	return fmt.Sprintf("%s:%d", md.QualifiedAlias(colID), colID)
}

// FormatColSet formats a column set using column labels, e.g. "a.x:1 a.y:2".
func (md *Metadata) FormatColSet(cols ColSet) string {
	return md.FormatColList(cols.ToList())
}

// FormatColList formats a column list using column labels.
func (md *Metadata) FormatColList(cols ColList) string {
	buf := make([]byte, 0, 16*len(cols))
	for i, c := range cols {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, md.ColumnLabel(c)...)
	}
	return string(buf)
}

// FormatOrdering formats an ordering using column labels, e.g. "+a.x:1,-a.y:2".
func (md *Metadata) FormatOrdering(o Ordering) string {
	buf := make([]byte, 0, 16*len(o))
	for i, c := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		if c.Descending() {
			buf = append(buf, '-')
		} else {
			buf = append(buf, '+')
		}
		buf = append(buf, md.ColumnLabel(c.ID())...)
	}
	return string(buf)
}
