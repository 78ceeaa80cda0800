/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes prometheus metrics and OpenTelemetry tracing for
// the scanner process.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FilesScanned counts files that went through a full probe+write cycle.
	FilesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_scanner_files_scanned_total",
		Help: "Files fully scanned (probed and written to the catalog).",
	})

	// ScansSkipped counts no-op fast paths (unchanged size+mtime).
	ScansSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_scanner_scans_skipped_total",
		Help: "Scan events skipped because the change fingerprint matched.",
	})

	// ProbeFailures counts external tool failures by kind.
	ProbeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_scanner_probe_failures_total",
		Help: "External probe failures by kind.",
	}, []string{"kind"})

	// StoreConflicts counts optimistic-concurrency write rejections.
	StoreConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_scanner_store_conflicts_total",
		Help: "Catalog writes rejected by the revision guard.",
	})

	// IDCollisions counts events skipped because their id resolved to a
	// different path's entry.
	IDCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_scanner_id_collisions_total",
		Help: "Events skipped due to clip id collisions.",
	})

	// SweepDeletions counts entries removed by the sweep.
	SweepDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_scanner_sweep_deletions_total",
		Help: "Catalog entries deleted by the filesystem sweep.",
	})

	// CatalogEntries tracks the catalog size after each sweep.
	CatalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_scanner_catalog_entries",
		Help: "Catalog entry count observed at the last sweep.",
	})

	// APIRequestsTotal counts HTTP requests to the query surface.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grimnir_scanner_api_requests_total",
		Help: "HTTP requests by method, endpoint, and status.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grimnir_scanner_api_request_duration_seconds",
		Help:    "HTTP request duration by method, endpoint, and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_scanner_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Handler exposes the prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
