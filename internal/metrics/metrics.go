// Package metrics exposes Prometheus counters for the generation flow.
// They land on the default registry and are served by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationTotal counts generation attempts by kind and how the
	// content was produced (provider or fallback).
	GenerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygen_generation_total",
		Help: "Generation requests by kind and content source.",
	}, []string{"kind", "via"})

	// DemoResponses counts 207 partial-success responses by kind.
	DemoResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygen_demo_responses_total",
		Help: "Partial-success (demo mode) responses by kind.",
	}, []string{"kind"})

	// StoreProbes counts liveness probe classifications.
	StoreProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studygen_store_probe_total",
		Help: "Store liveness probe results.",
	}, []string{"status"})
)
