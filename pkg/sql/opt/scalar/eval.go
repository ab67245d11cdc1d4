// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// RowAccessor returns the value of a column in the current row.
type RowAccessor func(col opt.ColumnID) Datum

// Eval evaluates the expression against a row using SQL three-valued logic.
func Eval(e Expr, row RowAccessor, reg FunctionRegistry) (Datum, error) {
	switch t := e.(type) {
	case *Variable:
		if row == nil {
			return nil, errors.AssertionFailedf("no row to evaluate column %d", t.Col)
		}
		return row(t.Col), nil

	case *Const:
		return t.Value, nil

	case *Comparison:
		l, err := Eval(t.Left, row, reg)
		if err != nil {
			return nil, err
		}
		r, err := Eval(t.Right, row, reg)
		if err != nil {
			return nil, err
		}
		return evalComparison(t.Op, l, r)

	case *And:
		l, r, err := evalBoolPair(t.Left, t.Right, row, reg)
		if err != nil {
			return nil, err
		}
		if l == DBoolFalse || r == DBoolFalse {
			return DBoolFalse, nil
		}
		if l == DNull || r == DNull {
			return DNull, nil
		}
		return DBoolTrue, nil

	case *Or:
		l, r, err := evalBoolPair(t.Left, t.Right, row, reg)
		if err != nil {
			return nil, err
		}
		if l == DBoolTrue || r == DBoolTrue {
			return DBoolTrue, nil
		}
		if l == DNull || r == DNull {
			return DNull, nil
		}
		return DBoolFalse, nil

	case *Not:
		d, err := evalBool(t.Input, row, reg)
		if err != nil || d == DNull {
			return d, err
		}
		return MakeDBool(!bool(d.(DBool))), nil

	case *IsNull:
		d, err := Eval(t.Input, row, reg)
		if err != nil {
			return nil, err
		}
		return MakeDBool(d == DNull), nil

	case *FuncCall:
		o, err := lookup(reg, t.Func)
		if err != nil {
			return nil, err
		}
		args := make([]Datum, len(t.Args))
		for i, a := range t.Args {
			if args[i], err = Eval(a, row, reg); err != nil {
				return nil, err
			}
			if args[i] == DNull && !o.NullableArgs {
				return DNull, nil
			}
		}
		return o.Fn(args)

	default:
		return nil, errors.AssertionFailedf("unhandled scalar expression %T", e)
	}
}

func lookup(reg FunctionRegistry, id FunctionID) (*Overload, error) {
	if reg == nil {
		return nil, errors.Newf("no function registry to resolve function %d", id)
	}
	o, ok := reg.LookupFunction(id)
	if !ok {
		return nil, errors.Newf("unknown function id %d", id)
	}
	return o, nil
}

func evalComparison(op CmpOp, l, r Datum) (Datum, error) {
	if l == DNull || r == DNull {
		return DNull, nil
	}
	c, err := Compare(l, r)
	if err != nil {
		return nil, err
	}
	var res bool
	switch op {
	case EqOp:
		res = c == 0
	case NeOp:
		res = c != 0
	case LtOp:
		res = c < 0
	case LeOp:
		res = c <= 0
	case GtOp:
		res = c > 0
	case GeOp:
		res = c >= 0
	default:
		return nil, errors.AssertionFailedf("unhandled comparison operator %d", op)
	}
	return MakeDBool(res), nil
}

func evalBool(e Expr, row RowAccessor, reg FunctionRegistry) (Datum, error) {
	d, err := Eval(e, row, reg)
	if err != nil {
		return nil, err
	}
	switch d.(type) {
	case DBool, dNull:
		return d, nil
	}
	return nil, errors.Newf("expected bool, found %s", TypeName(d))
}

func evalBoolPair(
	left, right Expr, row RowAccessor, reg FunctionRegistry,
) (l, r Datum, err error) {
	if l, err = evalBool(left, row, reg); err != nil {
		return nil, nil, err
	}
	if r, err = evalBool(right, row, reg); err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// Fold evaluates the constant subexpressions of e. If nothing can be folded,
// e itself is returned, so callers can detect a change by comparing pointers.
// Calls to volatile functions are never folded, and a call whose evaluation
// fails is left in place so that the error surfaces at execution time. A
// function id the registry cannot resolve is an error.
func Fold(e Expr, reg FunctionRegistry) (Expr, error) {
	switch t := e.(type) {
	case *Variable, *Const:
		return e, nil

	case *Comparison:
		l, err := Fold(t.Left, reg)
		if err != nil {
			return nil, err
		}
		r, err := Fold(t.Right, reg)
		if err != nil {
			return nil, err
		}
		lc, lok := l.(*Const)
		rc, rok := r.(*Const)
		if lok && rok {
			if d, err := evalComparison(t.Op, lc.Value, rc.Value); err == nil {
				return NewConst(d), nil
			}
		}
		if l == t.Left && r == t.Right {
			return e, nil
		}
		return &Comparison{Op: t.Op, Left: l, Right: r}, nil

	case *And:
		l, err := Fold(t.Left, reg)
		if err != nil {
			return nil, err
		}
		r, err := Fold(t.Right, reg)
		if err != nil {
			return nil, err
		}
		switch {
		case isConst(l, DBoolFalse) || isConst(r, DBoolFalse):
			return False, nil
		case isConst(l, DBoolTrue):
			return r, nil
		case isConst(r, DBoolTrue):
			return l, nil
		case isConst(l, DNull) && isConst(r, DNull):
			return Null, nil
		case l == t.Left && r == t.Right:
			return e, nil
		}
		return &And{Left: l, Right: r}, nil

	case *Or:
		l, err := Fold(t.Left, reg)
		if err != nil {
			return nil, err
		}
		r, err := Fold(t.Right, reg)
		if err != nil {
			return nil, err
		}
		switch {
		case isConst(l, DBoolTrue) || isConst(r, DBoolTrue):
			return True, nil
		case isConst(l, DBoolFalse):
			return r, nil
		case isConst(r, DBoolFalse):
			return l, nil
		case isConst(l, DNull) && isConst(r, DNull):
			return Null, nil
		case l == t.Left && r == t.Right:
			return e, nil
		}
		return &Or{Left: l, Right: r}, nil

	case *Not:
		in, err := Fold(t.Input, reg)
		if err != nil {
			return nil, err
		}
		if c, ok := in.(*Const); ok {
			switch c.Value {
			case DNull:
				return Null, nil
			case DBoolTrue:
				return False, nil
			case DBoolFalse:
				return True, nil
			}
		}
		if in == t.Input {
			return e, nil
		}
		return &Not{Input: in}, nil

	case *IsNull:
		in, err := Fold(t.Input, reg)
		if err != nil {
			return nil, err
		}
		if c, ok := in.(*Const); ok {
			return NewConst(MakeDBool(c.Value == DNull)), nil
		}
		if in == t.Input {
			return e, nil
		}
		return &IsNull{Input: in}, nil

	case *FuncCall:
		o, err := lookup(reg, t.Func)
		if err != nil {
			return nil, err
		}
		changed := false
		allConst := true
		args := make([]Expr, len(t.Args))
		for i, a := range t.Args {
			if args[i], err = Fold(a, reg); err != nil {
				return nil, err
			}
			changed = changed || args[i] != a
			_, isConst := args[i].(*Const)
			allConst = allConst && isConst
		}
		if allConst && !o.Volatile {
			call := &FuncCall{Func: t.Func, Args: args}
			if d, err := Eval(call, nil, reg); err == nil {
				return NewConst(d), nil
			}
		}
		if !changed {
			return e, nil
		}
		return &FuncCall{Func: t.Func, Args: args}, nil

	default:
		return nil, errors.AssertionFailedf("unhandled scalar expression %T", e)
	}
}

func isConst(e Expr, d Datum) bool {
	c, ok := e.(*Const)
	return ok && c.Value == d
}
