package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "session",
		Name:      "candidates_total",
		Help:      "Candidates processed, by outcome.",
	}, []string{"outcome"})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "session",
		Name:      "batches_total",
		Help:      "Batches processed, by early-stop verdict.",
	}, []string{"verdict"})

	sessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "revtrack",
		Subsystem: "session",
		Name:      "finished_total",
		Help:      "Sessions finished, by terminal state and stop reason.",
	}, []string{"state", "stop_reason"})
)
