// Package metrics exports request counters and gauges via
// prometheus/client_golang, following the coreStats pattern of
// registering a fixed set of named metrics once at startup,
// simplified here since UDA has no per-node/cluster dimension to tag
// metrics with.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nvidia-uda/uda/wire"
)

// Collector implements server.Recorder and client.Recorder, the two
// narrow seams that feed it observations without either package
// importing prometheus directly.
type Collector struct {
	requests    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	latency     *prometheus.HistogramVec
	handles     prometheus.Gauge
}

// New registers UDA's metrics against reg. Pass prometheus.NewRegistry()
// for an isolated registry in tests, or prometheus.DefaultRegisterer to
// expose them on the process-wide /metrics endpoint.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uda",
			Name:      "requests_total",
			Help:      "Total requests dispatched, by plugin.",
		}, []string{"plugin"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uda",
			Name:      "request_failures_total",
			Help:      "Requests that completed with a non-empty error stack, by plugin.",
		}, []string{"plugin"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "uda",
			Name:      "fingerprint_cache_hits_total",
			Help:      "GET requests served from the fingerprint cache without a server round trip.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "uda",
			Name:      "fingerprint_cache_misses_total",
			Help:      "GET requests that missed the fingerprint cache.",
		}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uda",
			Name:      "request_duration_seconds",
			Help:      "Request cycle latency, by plugin.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"plugin"}),
		handles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "uda",
			Name:      "handle_table_occupancy",
			Help:      "Slot count of the calling client's handle table, freed slots included, as of its last allocation.",
		}),
	}
}

// ObserveRequest records one completed request/response cycle.
func (c *Collector) ObserveRequest(pluginID wire.PluginID, cacheHit bool, failed bool, dur time.Duration) {
	label := pluginID.String()
	c.requests.WithLabelValues(label).Inc()
	if failed {
		c.failures.WithLabelValues(label).Inc()
	}
	if cacheHit {
		c.cacheHits.Inc()
	} else {
		c.cacheMisses.Inc()
	}
	c.latency.WithLabelValues(label).Observe(dur.Seconds())
}

// SetHandleCount reports the handle table's slot count (client.Client
// passes Table.Len, which includes freed slots, after each allocation).
func (c *Collector) SetHandleCount(n int) {
	c.handles.Set(float64(n))
}
