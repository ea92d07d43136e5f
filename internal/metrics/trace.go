package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecodeDuration tracks the time to decode and build one trace recording.
	DecodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rec2g_decode_duration_seconds",
		Help:    "Time to decode a binary trace and build its event stream.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"result"})

	// TraceChunksTotal counts decoded trace chunks by type.
	TraceChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_trace_chunks_total",
		Help: "Total decoded trace chunks, by chunk type.",
	}, []string{"type"})

	// TraceBytesTotal counts trace bytes consumed by the decoder.
	TraceBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rec2g_trace_bytes_total",
		Help: "Total trace bytes consumed by the decoder.",
	})

	// TraceTruncatedTotal counts decodes aborted on a truncated record.
	TraceTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rec2g_trace_truncated_total",
		Help: "Total trace decodes aborted on a truncated record.",
	})

	// CastEventsTotal counts emitted playback events by kind.
	CastEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_cast_events_total",
		Help: "Total emitted playback events, by event kind (o, i, r).",
	}, []string{"kind"})
)

// ObserveDecode records one decode+build run.
func ObserveDecode(success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	DecodeDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// AddTraceChunks adds decoded chunk counts for a chunk type.
func AddTraceChunks(chunkType string, n int) {
	if n <= 0 {
		return
	}
	TraceChunksTotal.WithLabelValues(chunkType).Add(float64(n))
}

// AddTraceBytes adds consumed trace bytes.
func AddTraceBytes(n int) {
	if n <= 0 {
		return
	}
	TraceBytesTotal.Add(float64(n))
}

// RecordTruncatedTrace counts a decode aborted on truncation.
func RecordTruncatedTrace() {
	TraceTruncatedTotal.Inc()
}

// AddCastEvents adds emitted event counts for an event kind.
func AddCastEvents(kind string, n int) {
	if n <= 0 {
		return
	}
	CastEventsTotal.WithLabelValues(kind).Add(float64(n))
}
