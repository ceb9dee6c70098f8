// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EstimatesComputed counts calculator runs served by the API.
	EstimatesComputed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "slabquote",
		Name:      "estimates_computed_total",
		Help:      "Estimates computed by the API.",
	})

	// EstimateTotal observes quoted totals in dollars.
	EstimateTotal = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "slabquote",
		Name:      "estimate_total_dollars",
		Help:      "Quoted estimate totals.",
		Buckets:   prometheus.ExponentialBuckets(500, 2, 10),
	})

	// Proposals counts proposal attempts by provider and outcome
	// (ok, error, disabled).
	Proposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slabquote",
		Name:      "proposals_total",
		Help:      "Proposal generation attempts by outcome.",
	}, []string{"provider", "outcome"})

	// StoreErrors counts record store failures by operation.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slabquote",
		Name:      "store_errors_total",
		Help:      "Record store failures by operation.",
	}, []string{"op"})

	// HTTPRequests counts served requests by route pattern, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slabquote",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})
)
