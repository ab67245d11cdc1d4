// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/settings"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/cat"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/util/intsets"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// StatsProvider supplies table statistics. Implementations may block, so they
// are only consulted by OptimizeContext.PrefetchStats.
type StatsProvider interface {
	TableStatistic(ctx context.Context, id cat.StableID) (cat.TableStatistic, error)
}

// unknownRowCount is the row count assumed for a table without statistics.
const unknownRowCount = 1000

// OptimizeContext holds everything a single optimizer run needs besides the
// expression itself. It is created for one run and must not be reused.
type OptimizeContext struct {
	// Settings holds per-run setting overrides. It may be nil.
	Settings *settings.Values

	// Functions resolves the function ids in scalar expressions.
	Functions scalar.FunctionRegistry

	// Metadata describes the columns and tables referenced by the expression.
	Metadata *opt.Metadata

	// Stats supplies table row counts. It may be nil, in which case every
	// table is assumed to have unknownRowCount rows.
	Stats StatsProvider

	// Metrics, if set, is updated by the run.
	Metrics *Metrics

	// Tracer creates the spans of the run. It defaults to the global tracer.
	Tracer trace.Tracer

	rowCounts  map[opt.TableID]float64
	prefetched bool
	disabled   intsets.Fast
}

// NewOptimizeContext returns a context for one optimizer run. The disabled
// rules are read from the settings.
func NewOptimizeContext(
	md *opt.Metadata, fns scalar.FunctionRegistry, stats StatsProvider, sv *settings.Values,
) (*OptimizeContext, error) {
	oc := &OptimizeContext{
		Settings:  sv,
		Functions: fns,
		Metadata:  md,
		Stats:     stats,
		Tracer:    otel.Tracer("github.com/cockroachdb/optrewrite/pkg/sql/opt/xform"),
	}
	names, err := ParseRuleNames(DisabledRules.Get(sv))
	if err != nil {
		return nil, err
	}
	for _, r := range names {
		oc.DisableRule(r)
	}
	return oc, nil
}

// DisableRule prevents the rule from being applied in this run.
func (oc *OptimizeContext) DisableRule(r opt.RuleName) {
	oc.disabled.Add(int(r))
}

// RuleDisabled returns true if the rule must not be applied in this run.
func (oc *OptimizeContext) RuleDisabled(r opt.RuleName) bool {
	return oc.disabled.Contains(int(r))
}

// PrefetchStats loads the statistics of every table scanned by the expression,
// so that rules can read them without blocking.
func (oc *OptimizeContext) PrefetchStats(ctx context.Context, e *memo.SExpr) error {
	if oc.rowCounts == nil {
		oc.rowCounts = make(map[opt.TableID]float64)
	}
	var err error
	var walk func(e *memo.SExpr)
	walk = func(e *memo.SExpr) {
		if err != nil {
			return
		}
		if scan, ok := e.Private().(*memo.ScanOp); ok {
			if _, ok := oc.rowCounts[scan.Table]; !ok {
				oc.rowCounts[scan.Table], err = oc.fetchRowCount(ctx, scan.Table)
			}
		}
		for i, n := 0, e.ChildCount(); i < n; i++ {
			walk(e.Child(i))
		}
	}
	walk(e)
	if err != nil {
		return err
	}
	oc.prefetched = true
	return nil
}

func (oc *OptimizeContext) fetchRowCount(ctx context.Context, tab opt.TableID) (float64, error) {
	if oc.Stats == nil || oc.Metadata == nil {
		return unknownRowCount, nil
	}
	id := oc.Metadata.TableMeta(tab).Table.ID()
	stat, err := oc.Stats.TableStatistic(ctx, id)
	if err != nil {
		return 0, errors.Wrapf(err, "fetching statistics for table %d", id)
	}
	return float64(stat.RowCount), nil
}

// RowCount returns the prefetched row count of the table. Tables that were not
// prefetched are assumed to have unknownRowCount rows.
func (oc *OptimizeContext) RowCount(tab opt.TableID) float64 {
	if n, ok := oc.rowCounts[tab]; ok {
		return n
	}
	return unknownRowCount
}

// EstimateRows returns a rough estimate of the number of rows the expression
// returns, based on the prefetched table statistics. It never blocks.
func (oc *OptimizeContext) EstimateRows(e *memo.SExpr) float64 {
	var rows float64
	input := func(i int) float64 { return oc.EstimateRows(e.Child(i)) }

	switch t := e.Private().(type) {
	case *memo.ScanOp:
		rows = oc.RowCount(t.Table)

	case *memo.FilterOp:
		rows = input(0) * filterSelectivity

	case *memo.JoinOp:
		left, right := input(0), input(1)
		switch t.Type {
		case memo.CrossJoin:
			rows = left * right
		case memo.InnerJoin:
			if t.On == nil || scalar.IsConstTrue(t.On) {
				rows = left * right
			} else {
				rows = max(left, right)
			}
		case memo.LeftJoin:
			rows = left
		default:
			rows = left * filterSelectivity
		}

	case *memo.AggregateOp:
		if t.GroupingCols.Empty() {
			rows = 1
		} else {
			rows = input(0) * filterSelectivity
		}

	case *memo.LimitOp:
		rows = max(input(0)-float64(t.Offset), 0)
		rows = min(rows, float64(t.Limit))

	case *memo.UnionAllOp:
		rows = input(0) + input(1)

	default:
		rows = input(0)
	}

	card := e.DeriveRelationalProp().Cardinality
	rows = max(rows, float64(card.Min))
	if !card.IsUnbounded() {
		rows = min(rows, float64(card.Max))
	}
	return rows
}

// filterSelectivity is the fraction of rows assumed to pass a filter.
const filterSelectivity = 1.0 / 3

// tracer returns the tracer of the run, or a no-op tracer if none is set.
func (oc *OptimizeContext) tracer() trace.Tracer {
	if oc.Tracer == nil {
		return trace.NewNoopTracerProvider().Tracer("")
	}
	return oc.Tracer
}
