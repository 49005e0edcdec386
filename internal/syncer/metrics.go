package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Records delivered to sync targets, by target and operation.",
	}, []string{"target", "op"})

	pushFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "sync",
		Name:      "failures_total",
		Help:      "Failed pushes, by target.",
	}, []string{"target"})
)
