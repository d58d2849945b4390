// Package metrics exposes the prometheus collectors shared by the engine and
// the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_bookings_total",
		Help: "Booking attempts by outcome (created, conflict, error).",
	}, []string{"outcome"})

	ConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_conflicts_total",
		Help: "Conflicts detected, by reason.",
	}, []string{"reason"})

	SlotQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_slot_queries_total",
		Help: "Availability grid computations served.",
	})

	ReadRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_read_retries_total",
		Help: "Transient read failures that triggered a retry.",
	})

	StaleSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_stale_pending_swept_total",
		Help: "PENDING appointments auto-rejected after their start passed.",
	})
)
