// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// Datum is a constant value. The concrete types are *DDecimal, DString, DBool
// and the DNull singleton.
type Datum interface {
	datum()
	String() string
}

// DDecimal is a numeric value.
type DDecimal struct {
	apd.Decimal
}

// DString is a string value.
type DString string

// DBool is a boolean value.
type DBool bool

type dNull struct{}

// DNull is the NULL value.
var DNull Datum = dNull{}

// DBoolTrue and DBoolFalse are the two boolean values.
var (
	DBoolTrue  Datum = DBool(true)
	DBoolFalse Datum = DBool(false)
)

func (*DDecimal) datum() {}
func (DString) datum()   {}
func (DBool) datum()     {}
func (dNull) datum()     {}

// NewDInt returns a decimal datum with the given integer value.
func NewDInt(i int64) *DDecimal {
	d := &DDecimal{}
	d.SetInt64(i)
	return d
}

// ParseDDecimal parses a decimal literal.
func ParseDDecimal(s string) (*DDecimal, error) {
	d := &DDecimal{}
	if _, _, err := d.SetString(s); err != nil {
		return nil, errors.Wrapf(err, "could not parse %q as decimal", s)
	}
	return d, nil
}

// MakeDBool converts a Go bool to a datum.
func MakeDBool(b bool) Datum {
	if b {
		return DBoolTrue
	}
	return DBoolFalse
}

func (d *DDecimal) String() string { return d.Decimal.String() }

func (d DString) String() string {
	return "'" + strings.ReplaceAll(string(d), "'", "''") + "'"
}

func (d DBool) String() string { return strconv.FormatBool(bool(d)) }

func (dNull) String() string { return "NULL" }

// TypeName returns the name of the datum's type, used in error messages.
func TypeName(d Datum) string {
	switch d.(type) {
	case *DDecimal:
		return "decimal"
	case DString:
		return "string"
	case DBool:
		return "bool"
	case dNull:
		return "unknown"
	default:
		panic(errors.AssertionFailedf("unhandled datum type %T", d))
	}
}

// Compare returns -1, 0 or 1 depending on whether a is less than, equal to or
// greater than b. Both values must be non-NULL and of the same type.
func Compare(a, b Datum) (int, error) {
	switch t := a.(type) {
	case *DDecimal:
		if o, ok := b.(*DDecimal); ok {
			return t.Cmp(&o.Decimal), nil
		}
	case DString:
		if o, ok := b.(DString); ok {
			return strings.Compare(string(t), string(o)), nil
		}
	case DBool:
		if o, ok := b.(DBool); ok {
			switch {
			case t == o:
				return 0, nil
			case !bool(t):
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	return 0, errors.Newf("unsupported comparison: %s to %s", TypeName(a), TypeName(b))
}

// DatumsEqual returns true if the two datums are identical values. NULL is
// equal to NULL and values of different types are never equal.
func DatumsEqual(a, b Datum) bool {
	if a == DNull || b == DNull {
		return a == b
	}
	c, err := Compare(a, b)
	return err == nil && c == 0
}
