package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/and161185/sable-sync/internal/errs"
	"github.com/and161185/sable-sync/internal/model"
)

// Metrics holds the per-operation collectors.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the client collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sable_sync",
				Name:      "remote_operations_total",
				Help:      "Remote store operations by kind and outcome.",
			},
			[]string{"op", "kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sable_sync",
				Name:      "remote_operation_duration_seconds",
				Help:      "Latency of remote store operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(m.ops, m.duration)
	return m
}

func (m *Metrics) observe(op string, kind model.Kind, failure errs.Kind, d time.Duration) {
	outcome := "ok"
	if failure != "" {
		outcome = string(failure)
	}
	m.ops.WithLabelValues(op, string(kind), outcome).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}
