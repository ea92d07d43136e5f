package player

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/rec2g/internal/cast"
	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/source"
	tracefmt "github.com/ManuGH/rec2g/internal/trace"
)

// Observability Keys (Frozen)
const (
	AttrPlaybackID = "rec2g.playback.id"
	AttrSessionID  = "rec2g.playback.session_id"
	AttrKind       = "rec2g.playback.kind"
	AttrState      = "rec2g.playback.state"
	AttrSegments   = "rec2g.playback.segments"
	AttrProblem    = "rec2g.playback.problem"
)

// Frozen whitelist for enforcement. Any attribute outside this set is a
// contract violation and aborts the emit.
var allowedAttributes = map[string]bool{
	AttrPlaybackID: true,
	AttrSessionID:  true,
	AttrKind:       true,
	AttrState:      true,
	AttrSegments:   true,
	AttrProblem:    true,
}

// EmitPlaybackObs enforces the playback observability contract: it records
// the dispatch outcome on the OTel meter and annotates the current span with
// strictly whitelisted attributes. Exactly one of st and dispatchErr is set.
func EmitPlaybackObs(ctx context.Context, st *Status, dispatchErr error) {
	span := trace.SpanFromContext(ctx)

	// Runtime provider lookup, never bound at init time.
	meter := otel.GetMeterProvider().Meter("rec2g.playback")

	var attrs []attribute.KeyValue
	if dispatchErr != nil {
		code := problemCode(dispatchErr)
		problemTotal, _ := meter.Int64Counter("rec2g_playback_problem_total",
			metric.WithDescription("Total playback dispatch problems"))
		problemTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("code", code),
		))
		attrs = []attribute.KeyValue{
			attribute.String(AttrProblem, code),
		}
	} else {
		dispatchTotal, _ := meter.Int64Counter("rec2g_playback_dispatch_total",
			metric.WithDescription("Total playback dispatches"))
		dispatchTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(st.Kind)),
			attribute.String("state", string(st.State)),
		))
		attrs = []attribute.KeyValue{
			attribute.String(AttrPlaybackID, st.ID),
			attribute.String(AttrSessionID, st.SessionID),
			attribute.String(AttrKind, string(st.Kind)),
			attribute.String(AttrState, string(st.State)),
			attribute.Int(AttrSegments, st.SegmentCount),
		}
	}

	for _, kv := range attrs {
		if !allowedAttributes[string(kv.Key)] {
			log.L().Error().
				Str("key", string(kv.Key)).
				Msg("observability invariant violation: attribute not in whitelist")
			return
		}
	}

	span.SetAttributes(attrs...)
}

// StartPlaybackSpan wraps span creation for one dispatch.
func StartPlaybackSpan(ctx context.Context) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer("rec2g.playback")
	return tracer.Start(ctx, "rec2g.playback.dispatch")
}

// problemCode folds a dispatch failure into its stable problem code.
func problemCode(err error) string {
	var unsupported *UnsupportedFormatError
	var truncated *tracefmt.TruncatedRecordError
	switch {
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrEmptyRecording):
		return "empty_recording"
	case errors.As(err, &unsupported):
		return "unsupported_format"
	case errors.As(err, &truncated):
		return "truncated_trace"
	case errors.Is(err, cast.ErrMalformedChunk):
		return "malformed_trace"
	case errors.Is(err, source.ErrNotFound):
		return "not_found"
	case errors.Is(err, source.ErrForbidden):
		return "forbidden"
	case errors.Is(err, source.ErrUpstreamUnavailable), errors.Is(err, source.ErrUpstreamError):
		return "upstream_failure"
	default:
		return "internal"
	}
}
