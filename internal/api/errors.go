// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/rec2g/internal/cast"
	"github.com/ManuGH/rec2g/internal/export"
	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/player"
	"github.com/ManuGH/rec2g/internal/source"
	"github.com/ManuGH/rec2g/internal/trace"
)

// errorBody is the error envelope every handler writes. The code is a
// stable machine-readable string, the detail a human-readable line. The
// same shape is emitted by the 429 handler in the rate limit middleware.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers already sent, can't change status code
		log.L().Error().
			Err(err).
			Int("status", code).
			Msg("failed to encode JSON response")
	}
}

// writeError writes the error envelope with the given status and code.
func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{Error: code, Detail: detail})
}

// writeNotFound writes a 404 for an unknown playback id.
func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "playback_not_found", "no live playback with this id")
}

// writePlaybackError maps a dispatch or session error onto its status
// code and envelope. The mapping distinguishes caller mistakes (4xx),
// recordings that cannot be played (415/422), and upstream trouble (502).
func writePlaybackError(w http.ResponseWriter, err error) {
	status, code := classifyPlaybackError(err)
	writeError(w, status, code, publicDetail(err, status))
}

// classifyPlaybackError returns the HTTP status and stable error code
// for any error out of the playback path.
func classifyPlaybackError(err error) (int, string) {
	var unsupported *player.UnsupportedFormatError
	var truncated *trace.TruncatedRecordError

	switch {
	case errors.Is(err, source.ErrInvalidSessionID),
		errors.Is(err, source.ErrInvalidFileName):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, source.ErrNotFound):
		return http.StatusNotFound, "recording_not_found"
	case errors.Is(err, source.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, player.ErrCapacity):
		return http.StatusTooManyRequests, "capacity_exceeded"
	case errors.Is(err, player.ErrFeedActive):
		return http.StatusConflict, "feed_active"
	case errors.Is(err, player.ErrNotVideo):
		return http.StatusConflict, "not_video"
	case errors.Is(err, player.ErrNoDocument):
		return http.StatusConflict, "no_document"
	case errors.Is(err, export.ErrDisabled):
		return http.StatusConflict, "export_disabled"
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, player.ErrEmptyRecording):
		return http.StatusUnprocessableEntity, "empty_recording"
	case errors.As(err, &truncated),
		errors.Is(err, cast.ErrMalformedChunk):
		return http.StatusUnprocessableEntity, "malformed_recording"
	case errors.Is(err, source.ErrTooLarge):
		return http.StatusUnprocessableEntity, "artifact_too_large"
	case errors.Is(err, source.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, source.ErrUpstreamError),
		errors.Is(err, source.ErrBadResponse):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicDetail decides how much of the error reaches the client. Internal
// errors stay opaque; everything else is already a domain message without
// secrets or paths.
func publicDetail(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "an internal error occurred"
	}
	return err.Error()
}
