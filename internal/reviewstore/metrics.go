package reviewstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "store",
		Name:      "writes_total",
		Help:      "Review rows written, by classification.",
	}, []string{"classification"})

	writeConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "store",
		Name:      "write_conflicts_total",
		Help:      "Optimistic version collisions observed by Upsert.",
	})

	busyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "store",
		Name:      "busy_total",
		Help:      "Writes that gave up on lock contention, by lock.",
	}, []string{"section"})

	historyRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "store",
		Name:      "history_rows_total",
		Help:      "Audit rows appended.",
	})
)
