package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exile",
			Subsystem: "mirror",
			Name:      "pushes_total",
			Help:      "Oplog rows pushed to the mirror, by outcome.",
		},
		[]string{"outcome"},
	)

	pushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "exile",
			Subsystem: "mirror",
			Name:      "push_duration_seconds",
			Help:      "Latency of a single row push.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	backlogRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exile",
			Subsystem: "mirror",
			Name:      "backlog_rows",
			Help:      "Journal rows still awaiting replication.",
		},
	)

	fullResyncsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exile",
			Subsystem: "mirror",
			Name:      "full_resyncs_total",
			Help:      "Completed full resync passes.",
		},
	)
)

const (
	outcomeOK        = "ok"
	outcomeRetry     = "retry"
	outcomePermanent = "permanent"
)
