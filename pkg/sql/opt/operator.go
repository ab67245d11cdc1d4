// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "fmt"

// Operator describes the type of operation that a relational expression
// performs. The set of operators is closed; code that switches on an Operator
// should treat an unexpected value as an assertion failure.
type Operator uint8

const (
	// UnknownOp is the zero value and never appears in a valid expression.
	UnknownOp Operator = iota

	// ScanOp reads all rows of a base table, projecting a subset of its
	// columns.
	ScanOp

	// FilterOp discards input rows that do not satisfy a predicate.
	FilterOp

	// JoinOp combines the rows of two inputs. The join type (inner, left,
	// semi, anti, cross) is part of the operator's private data.
	JoinOp

	// AggregateOp groups its input by a set of columns and computes aggregate
	// functions over each group.
	AggregateOp

	// SortOp orders its input.
	SortOp

	// LimitOp returns at most a fixed number of input rows after skipping an
	// optional offset.
	LimitOp

	// ProjectOp restricts its input to a list of passthrough columns.
	ProjectOp

	// EvalScalarOp appends computed columns to its input.
	EvalScalarOp

	// UnionAllOp concatenates the rows of two inputs.
	UnionAllOp

	// ExchangeOp redistributes its input across workers.
	ExchangeOp

	// NumOperators tracks the total count of operators.
	NumOperators
)

type operatorInfo struct {
	name  string
	arity int
}

var operatorTab = [NumOperators]operatorInfo{
	UnknownOp:    {name: "unknown"},
	ScanOp:       {name: "scan", arity: 0},
	FilterOp:     {name: "filter", arity: 1},
	JoinOp:       {name: "join", arity: 2},
	AggregateOp:  {name: "aggregate", arity: 1},
	SortOp:       {name: "sort", arity: 1},
	LimitOp:      {name: "limit", arity: 1},
	ProjectOp:    {name: "project", arity: 1},
	EvalScalarOp: {name: "eval-scalar", arity: 1},
	UnionAllOp:   {name: "union-all", arity: 2},
	ExchangeOp:   {name: "exchange", arity: 1},
}

func (op Operator) String() string {
	if op >= NumOperators {
		return fmt.Sprintf("Operator(%d)", op)
	}
	return operatorTab[op].name
}

// SafeValue implements the redact.SafeValue interface.
func (Operator) SafeValue() {}

// Arity returns the number of relational inputs an expression with this
// operator has.
func (op Operator) Arity() int {
	return operatorTab[op].arity
}

// OperatorByName returns the operator with the given name.
func OperatorByName(name string) (Operator, bool) {
	for op := ScanOp; op < NumOperators; op++ {
		if operatorTab[op].name == name {
			return op, true
		}
	}
	return UnknownOp, false
}
