// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// FunctionID identifies a function overload known to a FunctionRegistry.
type FunctionID uint32

// Overload is the definition of a scalar function.
type Overload struct {
	Name string

	// Volatile functions may return different results for the same arguments,
	// so they are never evaluated during constant folding.
	Volatile bool

	// NullableArgs is set when the function must be called even if one of its
	// arguments is NULL. Otherwise a NULL argument yields NULL.
	NullableArgs bool

	Fn func(args []Datum) (Datum, error)
}

// FunctionRegistry resolves function ids.
type FunctionRegistry interface {
	// LookupFunction returns the overload with the given id.
	LookupFunction(id FunctionID) (*Overload, bool)

	// ResolveFunction returns the id of the function with the given name.
	ResolveFunction(name string) (FunctionID, bool)
}

// Registry is an in-memory FunctionRegistry. FunctionID 0 is never assigned.
type Registry struct {
	overloads []*Overload
	byName    map[string]FunctionID
}

var _ FunctionRegistry = &Registry{}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{overloads: []*Overload{nil}, byName: map[string]FunctionID{}}
}

// Register adds an overload and returns its id.
func (r *Registry) Register(o *Overload) FunctionID {
	if _, ok := r.byName[o.Name]; ok {
		panic(errors.AssertionFailedf("function %s already registered", o.Name))
	}
	id := FunctionID(len(r.overloads))
	r.overloads = append(r.overloads, o)
	r.byName[o.Name] = id
	return id
}

// LookupFunction is part of the FunctionRegistry interface.
func (r *Registry) LookupFunction(id FunctionID) (*Overload, bool) {
	if id == 0 || int(id) >= len(r.overloads) {
		return nil, false
	}
	return r.overloads[id], true
}

// ResolveFunction is part of the FunctionRegistry interface.
func (r *Registry) ResolveFunction(name string) (FunctionID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// decimalCtx is the context used for arithmetic on decimals.
var decimalCtx = apd.BaseContext.WithPrecision(20)

type decimalBinOp func(ctx *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error)

func decimalOp(name string, op decimalBinOp) func([]Datum) (Datum, error) {
	return func(args []Datum) (Datum, error) {
		if len(args) != 2 {
			return nil, errors.Newf("%s: expected 2 arguments, found %d", name, len(args))
		}
		l, lok := args[0].(*DDecimal)
		r, rok := args[1].(*DDecimal)
		if !lok || !rok {
			return nil, errors.Newf("%s: unsupported argument types %s, %s",
				name, TypeName(args[0]), TypeName(args[1]))
		}
		res := &DDecimal{}
		if _, err := op(decimalCtx, &res.Decimal, &l.Decimal, &r.Decimal); err != nil {
			return nil, errors.Wrapf(err, "%s", name)
		}
		return res, nil
	}
}

func stringOp(name string, op func(string) string) func([]Datum) (Datum, error) {
	return func(args []Datum) (Datum, error) {
		if len(args) != 1 {
			return nil, errors.Newf("%s: expected 1 argument, found %d", name, len(args))
		}
		s, ok := args[0].(DString)
		if !ok {
			return nil, errors.Newf("%s: unsupported argument type %s", name, TypeName(args[0]))
		}
		return DString(op(string(s))), nil
	}
}

// randomSeq is a deterministic stand-in for a volatile function.
type randomSeq struct {
	n atomic.Int64
}

func (r *randomSeq) next([]Datum) (Datum, error) {
	return NewDInt(r.n.Add(1)), nil
}

// NewBuiltinRegistry returns a registry containing the builtin functions:
// plus, minus, mult, div, concat, lower, upper, abs, coalesce and the volatile
// function random.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Overload{Name: "plus", Fn: decimalOp("plus", (*apd.Context).Add)})
	r.Register(&Overload{Name: "minus", Fn: decimalOp("minus", (*apd.Context).Sub)})
	r.Register(&Overload{Name: "mult", Fn: decimalOp("mult", (*apd.Context).Mul)})
	r.Register(&Overload{Name: "div", Fn: decimalOp("div", (*apd.Context).Quo)})
	r.Register(&Overload{Name: "concat", Fn: func(args []Datum) (Datum, error) {
		var sb strings.Builder
		for _, a := range args {
			s, ok := a.(DString)
			if !ok {
				return nil, errors.Newf("concat: unsupported argument type %s", TypeName(a))
			}
			sb.WriteString(string(s))
		}
		return DString(sb.String()), nil
	}})
	r.Register(&Overload{Name: "lower", Fn: stringOp("lower", strings.ToLower)})
	r.Register(&Overload{Name: "upper", Fn: stringOp("upper", strings.ToUpper)})
	r.Register(&Overload{Name: "abs", Fn: func(args []Datum) (Datum, error) {
		if len(args) != 1 {
			return nil, errors.Newf("abs: expected 1 argument, found %d", len(args))
		}
		d, ok := args[0].(*DDecimal)
		if !ok {
			return nil, errors.Newf("abs: unsupported argument type %s", TypeName(args[0]))
		}
		res := &DDecimal{}
		res.Abs(&d.Decimal)
		return res, nil
	}})
	r.Register(&Overload{Name: "coalesce", NullableArgs: true, Fn: func(args []Datum) (Datum, error) {
		for _, a := range args {
			if a != DNull {
				return a, nil
			}
		}
		return DNull, nil
	}})
	seq := &randomSeq{}
	r.Register(&Overload{Name: "random", Volatile: true, Fn: seq.next})
	return r
}
