// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/rec2g/internal/catalog"
	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/source"
)

const (
	defaultSessionsLimit = 50
	maxSessionsLimit     = 500
)

type sessionsPage struct {
	Sessions []catalog.Entry `json:"sessions"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// handleSessionsList pages through the catalog, newest first.
// GET /api/sessions?limit=&offset=
func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "session catalog is not configured")
		return
	}

	limit := queryInt(r, "limit", defaultSessionsLimit)
	if limit < 1 || limit > maxSessionsLimit {
		writeError(w, http.StatusBadRequest, "invalid_input", "limit must be between 1 and 500")
		return
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "offset must not be negative")
		return
	}

	entries, total, err := s.catalog.List(r.Context(), limit, offset)
	if err != nil {
		log.WithComponentFromContext(r.Context(), "api").Error().
			Err(err).
			Str("event", "catalog.list_failed").
			Msg("catalog listing failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog listing failed")
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, sessionsPage{
		Sessions: entries,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// handleSessionGet returns one catalog entry.
// GET /api/sessions/{sessionID}
func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog_unavailable", "session catalog is not configured")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := source.ValidateSessionID(sessionID); err != nil {
		writePlaybackError(w, err)
		return
	}

	entry, err := s.catalog.Get(r.Context(), sessionID)
	if err != nil {
		log.WithComponentFromContext(r.Context(), "api").Error().
			Err(err).
			Str("event", "catalog.get_failed").
			Str("session_id", sessionID).
			Msg("catalog lookup failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog lookup failed")
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "session_not_found", "no indexed recording with this id")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// queryInt parses an integer query parameter, falling back to def when
// the parameter is absent. A present but malformed value comes back as
// -1 so callers reject it.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
