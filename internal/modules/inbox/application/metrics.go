package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sourceFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_source_fetch_total",
		Help: "Inbox source fetches by source and outcome.",
	}, []string{"source", "outcome"})

	markReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_mark_read_total",
		Help: "Inbox mark-read reconciliations by outcome.",
	}, []string{"outcome"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inbox_active_sessions",
		Help: "Number of live inbox sessions.",
	})
)
