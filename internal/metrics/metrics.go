// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package metrics provides Prometheus metrics for the ingestion pipeline
// and the read API. Metric names are part of the operational contract;
// dashboards and alerts depend on them, so treat renames as breaking.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics.
var (
	// EventsReceived counts events received from the relay, by kind.
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_events_received_total",
			Help: "Total number of events received from the relay",
		},
		[]string{"kind"},
	)

	// EventsWritten counts events successfully written to ClickHouse.
	EventsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingestion_events_written_total",
			Help: "Total number of events written to ClickHouse",
		},
	)

	// BatchSize observes the size of each flushed batch.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestion_batch_size",
			Help:    "Number of events per flushed batch",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
		},
	)

	// WriteLatency observes the latency of ClickHouse batch inserts.
	WriteLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestion_clickhouse_write_latency_seconds",
			Help:    "Latency of ClickHouse batch inserts",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Lag tracks how far the oldest buffered event trails the current time.
	Lag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestion_lag_seconds",
			Help: "Seconds between now and the oldest buffered event's created_at",
		},
	)
)

// API metrics.
var (
	// APIRequests counts HTTP requests served, by method, path and status.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration observes HTTP request latency, by method and path.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// QueryDuration observes ClickHouse query latency on the read path,
	// by query name.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_clickhouse_query_duration_seconds",
			Help:    "ClickHouse query latency on the API read path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)
)

// RecordEventReceived increments the received counter for an event kind.
func RecordEventReceived(kind string) {
	EventsReceived.WithLabelValues(kind).Inc()
}

// RecordBatchWritten records a successful batch insert: the number of
// events written, the batch size distribution and the insert latency.
func RecordBatchWritten(count int, latency time.Duration) {
	EventsWritten.Add(float64(count))
	BatchSize.Observe(float64(count))
	WriteLatency.Observe(latency.Seconds())
}

// RecordLag sets the ingestion lag gauge.
func RecordLag(lag time.Duration) {
	Lag.Set(lag.Seconds())
}

// ResetLag zeroes the lag gauge, used when the buffer is empty.
func ResetLag() {
	Lag.Set(0)
}

// RecordAPIRequest records a completed HTTP request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequests.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordQuery records the latency of a named ClickHouse read query.
func RecordQuery(query string, duration time.Duration) {
	QueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}
