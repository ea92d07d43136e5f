// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"

	"github.com/ManuGH/rec2g/internal/export"
)

// castContentType is the media type for asciicast v2 documents. There is
// no registered type; the x- prefix matches what terminal players accept.
const castContentType = "application/x-asciicast"

// handlePlaybackCast serves the canonical asciicast document of a trace
// playback as a download.
// GET /api/playback/{playbackID}/cast
func (s *Server) handlePlaybackCast(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	text, err := sess.Text()
	if err != nil {
		writePlaybackError(w, err)
		return
	}

	w.Header().Set("Content-Type", castContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(text)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+sess.SessionID+`.cast"`)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(text))
}

// handlePlaybackExport writes the canonical document to the export
// directory and reports the written path.
// POST /api/playback/{playbackID}/export
func (s *Server) handlePlaybackExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	if s.exporter == nil {
		writePlaybackError(w, export.ErrDisabled)
		return
	}

	text, err := sess.Text()
	if err != nil {
		writePlaybackError(w, err)
		return
	}

	path, err := s.exporter.Export(r.Context(), sess.SessionID, text)
	if err != nil {
		writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}
