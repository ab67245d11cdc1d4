// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the counters maintained by the optimizer. A Metrics instance may
// be shared by any number of concurrent optimizer runs.
type Metrics struct {
	// Runs counts calls to HeuristicOptimizer.Optimize.
	Runs prometheus.Counter

	// RuleApplications counts applied rules, labeled by rule name.
	RuleApplications *prometheus.CounterVec

	// BatchRounds observes the number of rounds each batch needed to reach a
	// fixpoint, labeled by batch name.
	BatchRounds *prometheus.HistogramVec

	// Failures counts aborted runs, labeled by error kind.
	Failures *prometheus.CounterVec
}

// NewMetrics returns a new set of unregistered metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sql",
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Number of heuristic optimizer runs.",
		}),
		RuleApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sql",
			Subsystem: "optimizer",
			Name:      "rule_applications_total",
			Help:      "Number of times each rewrite rule changed a plan.",
		}, []string{"rule"}),
		BatchRounds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sql",
			Subsystem: "optimizer",
			Name:      "batch_rounds",
			Help:      "Number of rounds needed by a rule batch to reach a fixpoint.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}, []string{"batch"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sql",
			Subsystem: "optimizer",
			Name:      "failures_total",
			Help:      "Number of optimizer runs that returned an error.",
		}, []string{"kind"}),
	}
}

// Register adds the metrics to the registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Runs, m.RuleApplications, m.BatchRounds, m.Failures} {
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "registering optimizer metrics")
		}
	}
	return nil
}

func (m *Metrics) recordFailure(err error) {
	if m == nil {
		return
	}
	kind := "internal"
	if re, ok := opt.GetRewriteError(err); ok {
		kind = re.Kind.String()
	}
	m.Failures.WithLabelValues(kind).Inc()
}
