// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package plans defines the statement plans handed to the optimizer. Only
// queries carry an expression tree; every other plan is passed through
// unchanged.
package plans

import (
	"fmt"

	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
)

// Kind identifies the concrete type of a Plan.
type Kind uint8

const (
	QueryKind Kind = iota
	ExplainKind
	ShowMetricsKind
	ShowProcessListKind
	ShowSettingsKind
	CreateDatabaseKind
	CreateTableKind
	CreateUserKind
	CreateViewKind
	DropUserKind

	// NumKinds is the number of plan kinds. It must be last.
	NumKinds
)

var kindNames = [...]string{
	QueryKind:           "query",
	ExplainKind:         "explain",
	ShowMetricsKind:     "show-metrics",
	ShowProcessListKind: "show-process-list",
	ShowSettingsKind:    "show-settings",
	CreateDatabaseKind:  "create-database",
	CreateTableKind:     "create-table",
	CreateUserKind:      "create-user",
	CreateViewKind:      "create-view",
	DropUserKind:        "drop-user",
}

func (k Kind) String() string {
	if k >= NumKinds {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// SafeValue implements the redact.SafeValue interface.
func (Kind) SafeValue() {}

// Plan is a bound statement.
type Plan interface {
	Kind() Kind
}

// ColumnBinding names one output column of a query.
type ColumnBinding struct {
	Name string
	ID   opt.ColumnID
}

// BindContext records the output columns of a query in the order the client
// sees them.
type BindContext struct {
	Columns []ColumnBinding
}

// ColList returns the ids of the bound columns.
func (bc *BindContext) ColList() opt.ColList {
	cols := make(opt.ColList, len(bc.Columns))
	for i := range bc.Columns {
		cols[i] = bc.Columns[i].ID
	}
	return cols
}

// Query is a relational query.
type Query struct {
	Expr        *memo.SExpr
	BindContext BindContext
	Metadata    *opt.Metadata
}

// ExplainMode selects what an EXPLAIN statement shows.
type ExplainMode uint8

const (
	// ExplainPlan shows the optimized plan.
	ExplainPlan ExplainMode = iota
	// ExplainRaw shows the plan as it was bound, without optimization.
	ExplainRaw
	// ExplainMemo shows the memo built from the optimized plan.
	ExplainMemo
)

func (m ExplainMode) String() string {
	switch m {
	case ExplainPlan:
		return "plan"
	case ExplainRaw:
		return "raw"
	case ExplainMemo:
		return "memo"
	default:
		return fmt.Sprintf("ExplainMode(%d)", uint8(m))
	}
}

// Explain wraps the plan of the statement being explained.
type Explain struct {
	Mode ExplainMode
	Plan Plan
}

// ShowMetrics lists the server metrics.
type ShowMetrics struct{}

// ShowProcessList lists the running statements.
type ShowProcessList struct{}

// ShowSettings lists the settings whose name matches Like.
type ShowSettings struct {
	Like string
}

// CreateDatabase creates a database.
type CreateDatabase struct {
	Name        string
	IfNotExists bool
}

// CreateTable creates a table.
type CreateTable struct {
	Database    string
	Name        string
	Columns     []string
	IfNotExists bool
}

// CreateUser creates a user.
type CreateUser struct {
	Name     string
	Password string
}

// CreateView creates a view. The query text is stored as written.
type CreateView struct {
	Database string
	Name     string
	Query    string
}

// DropUser removes a user.
type DropUser struct {
	Name     string
	IfExists bool
}

// Kind is part of the Plan interface.
func (*Query) Kind() Kind { return QueryKind }

// Kind is part of the Plan interface.
func (*Explain) Kind() Kind { return ExplainKind }

// Kind is part of the Plan interface.
func (*ShowMetrics) Kind() Kind { return ShowMetricsKind }

// Kind is part of the Plan interface.
func (*ShowProcessList) Kind() Kind { return ShowProcessListKind }

// Kind is part of the Plan interface.
func (*ShowSettings) Kind() Kind { return ShowSettingsKind }

// Kind is part of the Plan interface.
func (*CreateDatabase) Kind() Kind { return CreateDatabaseKind }

// Kind is part of the Plan interface.
func (*CreateTable) Kind() Kind { return CreateTableKind }

// Kind is part of the Plan interface.
func (*CreateUser) Kind() Kind { return CreateUserKind }

// Kind is part of the Plan interface.
func (*CreateView) Kind() Kind { return CreateViewKind }

// Kind is part of the Plan interface.
func (*DropUser) Kind() Kind { return DropUserKind }

var (
	_ Plan = &Query{}
	_ Plan = &Explain{}
	_ Plan = &ShowMetrics{}
	_ Plan = &ShowProcessList{}
	_ Plan = &ShowSettings{}
	_ Plan = &CreateDatabase{}
	_ Plan = &CreateTable{}
	_ Plan = &CreateUser{}
	_ Plan = &CreateView{}
	_ Plan = &DropUser{}
)

// New returns an empty plan of the given kind. A Query has no expression and
// an Explain wraps nothing; callers fill them in.
func New(k Kind) Plan {
	switch k {
	case QueryKind:
		return &Query{}
	case ExplainKind:
		return &Explain{}
	case ShowMetricsKind:
		return &ShowMetrics{}
	case ShowProcessListKind:
		return &ShowProcessList{}
	case ShowSettingsKind:
		return &ShowSettings{}
	case CreateDatabaseKind:
		return &CreateDatabase{}
	case CreateTableKind:
		return &CreateTable{}
	case CreateUserKind:
		return &CreateUser{}
	case CreateViewKind:
		return &CreateView{}
	case DropUserKind:
		return &DropUser{}
	}
	return nil
}
