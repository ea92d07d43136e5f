// Package metrics provides Prometheus metrics for the rec2g playback service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Playback lifecycle metrics. Label sets stay low-cardinality:
// no session or playback IDs in labels.

var (
	// PlaybackActive tracks the number of live playback sessions.
	PlaybackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rec2g_playback_active",
		Help: "Current number of active playback sessions.",
	})

	// PlaybackStartTotal counts playback start attempts by kind and result.
	PlaybackStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_playback_start_total",
		Help: "Total playback start attempts, by recording kind and result.",
	}, []string{"kind", "result"})

	// PlaybackRejectTotal counts rejected playback starts by reason.
	PlaybackRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_playback_reject_total",
		Help: "Total rejected playback starts, by reason (capacity, rate).",
	}, []string{"reason"})

	// PlaybackExpiredTotal counts sessions evicted by the idle janitor.
	PlaybackExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rec2g_playback_expired_total",
		Help: "Total playback sessions evicted after idle timeout.",
	})

	// SegmentAdvanceTotal counts sequencer advances, split by wrap-around.
	SegmentAdvanceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_segment_advance_total",
		Help: "Total video segment advances, by wrap-around.",
	}, []string{"wrapped"})

	// SegmentStallTotal counts segment load failures that stalled playback.
	SegmentStallTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rec2g_segment_stall_total",
		Help: "Total segment load failures that left playback stalled.",
	})

	// FeedConnectionsActive tracks open event feed connections.
	FeedConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rec2g_feed_connections_active",
		Help: "Current number of open websocket event feeds.",
	})

	// FeedFramesTotal counts frames streamed over event feeds by kind.
	FeedFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rec2g_feed_frames_total",
		Help: "Total frames streamed over event feeds, by frame kind.",
	}, []string{"kind"})
)

// RecordPlaybackStart records a playback start attempt outcome.
func RecordPlaybackStart(kind string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	PlaybackStartTotal.WithLabelValues(kind, result).Inc()
}

// RecordPlaybackReject increments the rejection counter.
func RecordPlaybackReject(reason string) {
	PlaybackRejectTotal.WithLabelValues(reason).Inc()
}

// RecordPlaybackExpired increments the idle eviction counter.
func RecordPlaybackExpired() {
	PlaybackExpiredTotal.Inc()
}

// SetActivePlaybacks sets the active playback gauge.
func SetActivePlaybacks(count float64) {
	PlaybackActive.Set(count)
}

// IncActivePlaybacks increments the active playback gauge.
func IncActivePlaybacks() {
	PlaybackActive.Inc()
}

// DecActivePlaybacks decrements the active playback gauge.
func DecActivePlaybacks() {
	PlaybackActive.Dec()
}

// GetActivePlaybacks returns the current gauge value (for testing).
func GetActivePlaybacks() float64 {
	var m dto.Metric
	if err := PlaybackActive.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// RecordSegmentAdvance records a sequencer advance.
func RecordSegmentAdvance(wrapped bool) {
	label := "false"
	if wrapped {
		label = "true"
	}
	SegmentAdvanceTotal.WithLabelValues(label).Inc()
}

// RecordSegmentStall records a segment load failure.
func RecordSegmentStall() {
	SegmentStallTotal.Inc()
}

// IncFeedConnections increments the open feed gauge.
func IncFeedConnections() {
	FeedConnectionsActive.Inc()
}

// DecFeedConnections decrements the open feed gauge.
func DecFeedConnections() {
	FeedConnectionsActive.Dec()
}

// RecordFeedFrame counts a streamed feed frame.
func RecordFeedFrame(kind string) {
	FeedFramesTotal.WithLabelValues(kind).Inc()
}
