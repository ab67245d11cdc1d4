// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package scalar contains the scalar expressions referenced by relational
// operators: predicates, projections and aggregate arguments. Scalar
// expressions reference input columns by opt.ColumnID and functions by
// FunctionID; they are immutable once constructed.
package scalar

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// Expr is a scalar expression. The set of implementations is closed.
type Expr interface {
	scalarExpr()
}

// Variable is a reference to an input column.
type Variable struct {
	Col opt.ColumnID
}

// Const is a constant value.
type Const struct {
	Value Datum
}

// CmpOp is a comparison operator.
type CmpOp uint8

// Comparison operators.
const (
	EqOp CmpOp = iota + 1
	NeOp
	LtOp
	LeOp
	GtOp
	GeOp
)

var cmpOpNames = [...]string{
	EqOp: "=",
	NeOp: "!=",
	LtOp: "<",
	LeOp: "<=",
	GtOp: ">",
	GeOp: ">=",
}

func (o CmpOp) String() string { return cmpOpNames[o] }

// Comparison compares two values. It is NULL if either side is NULL.
type Comparison struct {
	Op          CmpOp
	Left, Right Expr
}

// And is the logical conjunction of its operands.
type And struct {
	Left, Right Expr
}

// Or is the logical disjunction of its operands.
type Or struct {
	Left, Right Expr
}

// Not is the logical negation of its input.
type Not struct {
	Input Expr
}

// IsNull tests whether its input is NULL.
type IsNull struct {
	Input Expr
}

// FuncCall invokes a function resolved through a FunctionRegistry.
type FuncCall struct {
	Func FunctionID
	Args []Expr
}

func (*Variable) scalarExpr()   {}
func (*Const) scalarExpr()      {}
func (*Comparison) scalarExpr() {}
func (*And) scalarExpr()        {}
func (*Or) scalarExpr()         {}
func (*Not) scalarExpr()        {}
func (*IsNull) scalarExpr()     {}
func (*FuncCall) scalarExpr()   {}

// True and False are the boolean constants.
var (
	True  Expr = &Const{Value: DBoolTrue}
	False Expr = &Const{Value: DBoolFalse}
	Null  Expr = &Const{Value: DNull}
)

// NewVar returns a reference to the given column.
func NewVar(col opt.ColumnID) *Variable {
	return &Variable{Col: col}
}

// NewConst returns a constant expression.
func NewConst(d Datum) *Const {
	return &Const{Value: d}
}

// OuterCols returns the set of columns referenced by the expression.
func OuterCols(e Expr) opt.ColSet {
	var cols opt.ColSet
	collectCols(e, &cols)
	return cols
}

func collectCols(e Expr, cols *opt.ColSet) {
	switch t := e.(type) {
	case nil:
	case *Variable:
		cols.Add(t.Col)
	case *Const:
	case *Comparison:
		collectCols(t.Left, cols)
		collectCols(t.Right, cols)
	case *And:
		collectCols(t.Left, cols)
		collectCols(t.Right, cols)
	case *Or:
		collectCols(t.Left, cols)
		collectCols(t.Right, cols)
	case *Not:
		collectCols(t.Input, cols)
	case *IsNull:
		collectCols(t.Input, cols)
	case *FuncCall:
		for _, a := range t.Args {
			collectCols(a, cols)
		}
	default:
		panic(errors.AssertionFailedf("unhandled scalar expression %T", e))
	}
}

// IsVolatile returns true if the expression calls a volatile function. A call
// the registry cannot resolve counts as volatile.
func IsVolatile(e Expr, reg FunctionRegistry) bool {
	switch t := e.(type) {
	case *Comparison:
		return IsVolatile(t.Left, reg) || IsVolatile(t.Right, reg)
	case *And:
		return IsVolatile(t.Left, reg) || IsVolatile(t.Right, reg)
	case *Or:
		return IsVolatile(t.Left, reg) || IsVolatile(t.Right, reg)
	case *Not:
		return IsVolatile(t.Input, reg)
	case *IsNull:
		return IsVolatile(t.Input, reg)
	case *FuncCall:
		if o, ok := reg.LookupFunction(t.Func); !ok || o.Volatile {
			return true
		}
		for _, a := range t.Args {
			if IsVolatile(a, reg) {
				return true
			}
		}
	}
	return false
}

// Conjuncts returns the top-level conjuncts of the expression, in order. A nil
// expression has no conjuncts.
func Conjuncts(e Expr) []Expr {
	if e == nil {
		return nil
	}
	if and, ok := e.(*And); ok {
		return append(Conjuncts(and.Left), Conjuncts(and.Right)...)
	}
	return []Expr{e}
}

// MakeAnd builds a left-deep conjunction of the given expressions. It returns
// nil if there are none.
func MakeAnd(exprs ...Expr) Expr {
	var res Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if res == nil {
			res = e
		} else {
			res = &And{Left: res, Right: e}
		}
	}
	return res
}

// IsConstTrue returns true if the expression is the constant true.
func IsConstTrue(e Expr) bool {
	c, ok := e.(*Const)
	return ok && c.Value == DBoolTrue
}

// IsConstFalseOrNull returns true if the expression is the constant false or
// NULL; a filter with such a predicate rejects every row.
func IsConstFalseOrNull(e Expr) bool {
	c, ok := e.(*Const)
	return ok && (c.Value == DBoolFalse || c.Value == DNull)
}

// Equal returns true if the two expressions are structurally identical.
func Equal(a, b Expr) bool {
	switch l := a.(type) {
	case nil:
		return b == nil
	case *Variable:
		r, ok := b.(*Variable)
		return ok && l.Col == r.Col
	case *Const:
		r, ok := b.(*Const)
		return ok && DatumsEqual(l.Value, r.Value) && TypeName(l.Value) == TypeName(r.Value)
	case *Comparison:
		r, ok := b.(*Comparison)
		return ok && l.Op == r.Op && Equal(l.Left, r.Left) && Equal(l.Right, r.Right)
	case *And:
		r, ok := b.(*And)
		return ok && Equal(l.Left, r.Left) && Equal(l.Right, r.Right)
	case *Or:
		r, ok := b.(*Or)
		return ok && Equal(l.Left, r.Left) && Equal(l.Right, r.Right)
	case *Not:
		r, ok := b.(*Not)
		return ok && Equal(l.Input, r.Input)
	case *IsNull:
		r, ok := b.(*IsNull)
		return ok && Equal(l.Input, r.Input)
	case *FuncCall:
		r, ok := b.(*FuncCall)
		if !ok || l.Func != r.Func || len(l.Args) != len(r.Args) {
			return false
		}
		for i := range l.Args {
			if !Equal(l.Args[i], r.Args[i]) {
				return false
			}
		}
		return true
	default:
		panic(errors.AssertionFailedf("unhandled scalar expression %T", a))
	}
}
