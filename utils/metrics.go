package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mia"

var (
	// BookingTransitions counts active-booking state changes.
	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "booking_transitions_total",
		Help:      "The total number of booking lifecycle transitions",
	}, []string{"from", "to"})

	// ChatRequests counts conversation turns by outcome.
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "chat_requests_total",
		Help:      "The total number of conversation turns",
	}, []string{"outcome"})

	ChatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "chat_backend_seconds",
		Help:      "Time taken by the conversational backend",
		Buckets:   prometheus.DefBuckets,
	})

	// Reconciliations counts payment reconciliation results.
	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "payment_reconciliations_total",
		Help:      "The total number of payment reconciliations",
	}, []string{"result"})
)
