// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains interfaces that are used by the query optimizer to avoid
// including specifics of table implementations.
package cat

import "context"

// StableID permanently and uniquely identifies a catalog object (table, view,
// etc.) within its scope (a database or cluster).
type StableID uint64

// Column is an interface to a table column, exposing only the information
// needed by the query optimizer.
type Column interface {
	// ColName returns the name of the column.
	ColName() string
}

// Table is an interface to a database table, exposing only the information
// needed by the query optimizer.
type Table interface {
	// ID is the unique, stable identifier for this table.
	ID() StableID

	// Name returns the unqualified name of the table.
	Name() string

	// ColumnCount returns the number of columns in the table.
	ColumnCount() int

	// Column returns a Column interface to the column at the ith ordinal
	// position within the table, where i < ColumnCount.
	Column(i int) Column
}

// TableStatistic is the subset of a table's statistics used by the rewriter.
type TableStatistic struct {
	// RowCount is the estimated number of rows in the table.
	RowCount uint64
}

// Catalog is an interface to a database catalog, exposing only the information
// needed by the query optimizer.
type Catalog interface {
	// ResolveTable locates a table by name.
	ResolveTable(ctx context.Context, name string) (Table, error)

	// TableStatistic returns the most recent statistics for the table. It may
	// block, so it is never called while rules run.
	TableStatistic(ctx context.Context, id StableID) (TableStatistic, error)
}
