// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the rec2g application.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Source attributes
	SourceOpKey   = "source.op"
	SourceFileKey = "source.file"

	// Catalog scan attributes
	ScanIndexedKey  = "scan.indexed"
	ScanPrunedKey   = "scan.pruned"
	ScanErrorsKey   = "scan.errors"
	ScanDurationKey = "scan.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SourceAttributes creates span attributes for one artifact pull.
func SourceAttributes(op, file string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if op != "" {
		attrs = append(attrs, attribute.String(SourceOpKey, op))
	}
	if file != "" {
		attrs = append(attrs, attribute.String(SourceFileKey, file))
	}
	return attrs
}

// ScanAttributes creates catalog-scan span attributes.
func ScanAttributes(indexed, pruned, errors int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ScanIndexedKey, indexed),
		attribute.Int(ScanPrunedKey, pruned),
		attribute.Int(ScanErrorsKey, errors),
		attribute.Int64(ScanDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
