package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exile",
		Subsystem: "ledger",
		Name:      "ops_total",
		Help:      "Committed ledger mutations by operation.",
	}, []string{"op"})

	opErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exile",
		Subsystem: "ledger",
		Name:      "op_errors_total",
		Help:      "Rejected or failed ledger mutations by operation.",
	}, []string{"op"})

	rankChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exile",
		Subsystem: "ledger",
		Name:      "rank_changes_total",
		Help:      "Rank transitions committed.",
	})

	membersTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exile",
		Subsystem: "ledger",
		Name:      "members_tracked",
		Help:      "Member records currently held in memory.",
	})
)
