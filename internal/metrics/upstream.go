// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequestDuration tracks upstream gateway request latency.
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rec2g_upstream_request_duration_seconds",
		Help:    "Upstream gateway request latency, by operation and status code.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"op", "code"})

	// UpstreamRequestTotal counts upstream gateway requests by outcome.
	UpstreamRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_upstream_request_total",
		Help: "Total upstream gateway requests, by operation and result.",
	}, []string{"op", "result"})

	// CacheEventsTotal counts decoded-cast cache lookups by backend and event.
	CacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_cast_cache_events_total",
		Help: "Total decoded-cast cache events, by backend and event (hit, miss, error).",
	}, []string{"backend", "event"})

	// CatalogSessions tracks the number of sessions known to the catalog.
	CatalogSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rec2g_catalog_sessions",
		Help: "Current number of recording sessions in the catalog.",
	})

	// CatalogScanDuration tracks catalog rescans.
	CatalogScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rec2g_catalog_scan_duration_seconds",
		Help:    "Catalog scan duration, by result.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"result"})

	// ResumeOpsTotal counts resume store operations by op and result.
	ResumeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_resume_ops_total",
		Help: "Total resume position store operations, by op and result.",
	}, []string{"op", "result"})

	// ExportTotal counts cast exports by result.
	ExportTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_export_total",
		Help: "Total cast file exports, by result.",
	}, []string{"result"})
)

// RecordUpstreamRequest records one upstream request.
// A zero status means the request never produced a response.
func RecordUpstreamRequest(op string, status int, err error, duration time.Duration) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	UpstreamRequestDuration.WithLabelValues(op, code).Observe(duration.Seconds())

	result := "success"
	if err != nil {
		result = "failure"
	}
	UpstreamRequestTotal.WithLabelValues(op, result).Inc()
}

// RecordCacheEvent counts a cache lookup event.
func RecordCacheEvent(backend, event string) {
	CacheEventsTotal.WithLabelValues(backend, event).Inc()
}

// SetCatalogSessions sets the catalog session gauge.
func SetCatalogSessions(count float64) {
	CatalogSessions.Set(count)
}

// ObserveCatalogScan records one catalog scan.
func ObserveCatalogScan(success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	CatalogScanDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordResumeOp counts a resume store operation.
func RecordResumeOp(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ResumeOpsTotal.WithLabelValues(op, result).Inc()
}

// RecordExport counts one cast export.
func RecordExport(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ExportTotal.WithLabelValues(result).Inc()
}

