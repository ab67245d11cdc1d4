// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// AggFunc is an aggregate function.
type AggFunc uint8

// Aggregate functions. CountRows takes no argument.
const (
	CountRows AggFunc = iota + 1
	Count
	Sum
	Min
	Max
)

var aggNames = [...]string{
	CountRows: "count-rows",
	Count:     "count",
	Sum:       "sum",
	Min:       "min",
	Max:       "max",
}

func (a AggFunc) String() string { return aggNames[a] }

// AggFuncByName returns the aggregate with the given name.
func AggFuncByName(name string) (AggFunc, bool) {
	for i := CountRows; i <= Max; i++ {
		if aggNames[i] == name {
			return i, true
		}
	}
	return 0, false
}

// Aggregator accumulates the values of one aggregate over a group.
type Aggregator struct {
	fn    AggFunc
	count int64
	acc   Datum
}

// NewAggregator returns an empty aggregator.
func NewAggregator(fn AggFunc) *Aggregator {
	return &Aggregator{fn: fn, acc: DNull}
}

// Add accumulates one input value. The value is ignored for CountRows.
func (a *Aggregator) Add(d Datum) error {
	if a.fn == CountRows {
		a.count++
		return nil
	}
	if d == DNull {
		return nil
	}
	a.count++
	switch a.fn {
	case Count:
	case Sum:
		if a.acc == DNull {
			a.acc = d
			return nil
		}
		res, err := decimalOp("sum", (*apd.Context).Add)([]Datum{a.acc, d})
		if err != nil {
			return err
		}
		a.acc = res
	case Min, Max:
		if a.acc == DNull {
			a.acc = d
			return nil
		}
		c, err := Compare(d, a.acc)
		if err != nil {
			return err
		}
		if (a.fn == Min && c < 0) || (a.fn == Max && c > 0) {
			a.acc = d
		}
	default:
		return errors.AssertionFailedf("unhandled aggregate %d", a.fn)
	}
	return nil
}

// Result returns the aggregate value.
func (a *Aggregator) Result() Datum {
	switch a.fn {
	case CountRows, Count:
		return NewDInt(a.count)
	default:
		return a.acc
	}
}
