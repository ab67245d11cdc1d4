// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
)

// Formatter renders scalar expressions. Columns are labeled using the
// metadata and functions named using the registry; either may be nil, in
// which case ids are printed instead.
type Formatter struct {
	Metadata  *opt.Metadata
	Functions FunctionRegistry
}

// Format returns the string representation of the expression.
func (f Formatter) Format(e Expr) string {
	var buf bytes.Buffer
	f.format(&buf, e)
	return buf.String()
}

// Fingerprint returns a canonical string for the expression that only depends
// on column and function ids.
func Fingerprint(e Expr) string {
	return Formatter{}.Format(e)
}

func (f Formatter) format(buf *bytes.Buffer, e Expr) {
	switch t := e.(type) {
	case nil:
		buf.WriteString("<nil>")

	case *Variable:
		if f.Metadata != nil {
			buf.WriteString(f.Metadata.ColumnLabel(t.Col))
		} else {
			fmt.Fprintf(buf, "@%d", t.Col)
		}

	case *Const:
		buf.WriteString(t.Value.String())

	case *Comparison:
		f.formatOperand(buf, t.Left)
		fmt.Fprintf(buf, " %s ", t.Op)
		f.formatOperand(buf, t.Right)

	case *And:
		f.formatLogical(buf, t.Left, "AND")
		buf.WriteString(" AND ")
		f.formatLogical(buf, t.Right, "AND")

	case *Or:
		f.formatLogical(buf, t.Left, "OR")
		buf.WriteString(" OR ")
		f.formatLogical(buf, t.Right, "OR")

	case *Not:
		buf.WriteString("NOT ")
		f.formatOperand(buf, t.Input)

	case *IsNull:
		f.formatOperand(buf, t.Input)
		buf.WriteString(" IS NULL")

	case *FuncCall:
		name := ""
		if f.Functions != nil {
			if o, ok := f.Functions.LookupFunction(t.Func); ok {
				name = o.Name
			}
		}
		if name == "" {
			name = fmt.Sprintf("fn%d", t.Func)
		}
		buf.WriteString(name)
		buf.WriteByte('(')
		for i, a := range t.Args {
			if i > 0 {
				buf.WriteString(", ")
			}
			f.format(buf, a)
		}
		buf.WriteByte(')')

	default:
		panic(errors.AssertionFailedf("unhandled scalar expression %T", e))
	}
}

// formatOperand wraps compound operands in parentheses.
func (f Formatter) formatOperand(buf *bytes.Buffer, e Expr) {
	switch e.(type) {
	case *Variable, *Const, *FuncCall:
		f.format(buf, e)
	default:
		buf.WriteByte('(')
		f.format(buf, e)
		buf.WriteByte(')')
	}
}

// formatLogical prints the operand of AND / OR, adding parentheses unless the
// operand has the same logical operator or binds tighter.
func (f Formatter) formatLogical(buf *bytes.Buffer, e Expr, op string) {
	switch e.(type) {
	case *And:
		if op == "AND" {
			f.format(buf, e)
			return
		}
	case *Or:
		if op == "OR" {
			f.format(buf, e)
			return
		}
	default:
		f.format(buf, e)
		return
	}
	buf.WriteByte('(')
	f.format(buf, e)
	buf.WriteByte(')')
}
