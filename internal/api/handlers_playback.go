// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/rec2g/internal/api/middleware"
	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/metrics"
	"github.com/ManuGH/rec2g/internal/player"
	"github.com/ManuGH/rec2g/internal/source"
)

// maxStartBodyBytes bounds the playback start request body. The body
// carries at most an upstream token.
const maxStartBodyBytes = 8 << 10

// playbackStatus is the wire form of a session snapshot.
type playbackStatus struct {
	PlaybackID   string    `json:"playbackId"`
	SessionID    string    `json:"sessionId"`
	Kind         string    `json:"kind"`
	State        string    `json:"state"`
	SegmentIndex int       `json:"segmentIndex"`
	SegmentCount int       `json:"segmentCount"`
	Segment      string    `json:"segment,omitempty"`
	Stalled      bool      `json:"stalled,omitempty"`
	StallReason  string    `json:"stallReason,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	Duration     float64   `json:"duration,omitempty"`
	Events       int       `json:"events,omitempty"`
	Offset       float64   `json:"offset,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func statusJSON(st player.Status) playbackStatus {
	return playbackStatus{
		PlaybackID:   st.ID,
		SessionID:    st.SessionID,
		Kind:         string(st.Kind),
		State:        string(st.State),
		SegmentIndex: st.SegmentIndex,
		SegmentCount: st.SegmentCount,
		Segment:      st.Segment,
		Stalled:      st.Stalled,
		StallReason:  st.StallReason,
		Width:        st.Width,
		Height:       st.Height,
		Duration:     st.Duration,
		Events:       st.Events,
		Offset:       st.Offset,
		CreatedAt:    st.CreatedAt,
	}
}

type startRequest struct {
	Token string `json:"token"`
}

// handlePlaybackStart dispatches a new playback for a recording session.
// POST /api/playback/{sessionID}
func (s *Server) handlePlaybackStart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := source.ValidateSessionID(sessionID); err != nil {
		writePlaybackError(w, err)
		return
	}

	if s.limiter != nil && !s.limiter.Allow(clientIP(r)) {
		metrics.RecordPlaybackReject("rate")
		writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
			"too many playback starts from this client")
		return
	}

	var req startRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be JSON")
		return
	}

	sess, err := s.dispatcher.Start(r.Context(), sessionID, req.Token)
	if err != nil {
		writePlaybackError(w, err)
		return
	}

	st := sess.Status()
	middleware.AddSpanAttributes(r,
		attribute.String(player.AttrPlaybackID, st.ID),
		attribute.String(player.AttrKind, string(st.Kind)),
	)
	writeJSON(w, http.StatusCreated, statusJSON(st))
}

// handlePlaybackStatus returns the snapshot of one live playback.
// GET /api/playback/{playbackID}
func (s *Server) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusJSON(sess.Status()))
}

// handlePlaybackClose ends a playback and persists its final position.
// DELETE /api/playback/{playbackID}
func (s *Server) handlePlaybackClose(w http.ResponseWriter, r *http.Request) {
	id, ok := playbackID(w, r)
	if !ok {
		return
	}
	if !s.dispatcher.Close(r.Context(), id) {
		writeNotFound(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type advanceRequest struct {
	Failed bool   `json:"failed"`
	Reason string `json:"reason"`
}

// handlePlaybackAdvance performs the end-of-segment transition, or marks
// the current segment stalled when the client reports a load failure.
// POST /api/playback/{playbackID}/advance
func (s *Server) handlePlaybackAdvance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	var req advanceRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "request body must be JSON")
		return
	}

	var st player.Status
	var err error
	if req.Failed {
		st, err = sess.MarkStalled(req.Reason)
	} else {
		st, err = sess.Advance()
	}
	if err != nil {
		writePlaybackError(w, err)
		return
	}

	if st.Stalled {
		log.WithComponentFromContext(r.Context(), "api").Warn().
			Str("event", "playback.stalled").
			Str("playback_id", st.ID).
			Int("segment_index", st.SegmentIndex).
			Str("reason", st.StallReason).
			Msg("segment playback stalled")
	}
	writeJSON(w, http.StatusOK, statusJSON(st))
}

// playbackID parses the playback id path parameter. The start and
// instance routes share one wildcard slot, so the parameter name is the
// same for both.
func playbackID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "playback id must be a uuid")
		return uuid.UUID{}, false
	}
	return id, true
}

// liveSession resolves the playback id parameter to a live session,
// writing the error response when it cannot.
func (s *Server) liveSession(w http.ResponseWriter, r *http.Request) (*player.Session, bool) {
	id, ok := playbackID(w, r)
	if !ok {
		return nil, false
	}
	sess, ok := s.dispatcher.Get(id)
	if !ok {
		writeNotFound(w)
		return nil, false
	}
	return sess, true
}

// decodeOptionalBody decodes a JSON body into dst, treating an absent or
// empty body as the zero value.
func decodeOptionalBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxStartBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
