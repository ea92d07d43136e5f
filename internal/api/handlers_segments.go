// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/player"
)

// handlePlaybackSegment serves the bytes of the indexed video segment.
// Local recordings are served from disk with range support; with an
// upstream source the bytes are fetched and relayed.
// GET /api/playback/{playbackID}/segments/{index}
func (s *Server) handlePlaybackSegment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "segment index must be a non-negative integer")
		return
	}

	fileName, err := sess.SegmentFile(index)
	if err != nil {
		if errors.Is(err, player.ErrNotVideo) {
			writePlaybackError(w, err)
			return
		}
		writeError(w, http.StatusNotFound, "segment_not_found", "no segment at this index")
		return
	}

	if s.fsSource != nil {
		s.serveLocalSegment(w, r, sess.SessionID, fileName)
		return
	}
	s.relaySegment(w, r, sess, fileName)
}

// serveLocalSegment serves a segment straight from the recording root.
// The source resolves the confined path; this layer adds caching
// validators and range handling.
func (s *Server) serveLocalSegment(w http.ResponseWriter, r *http.Request, sessionID, fileName string) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	path, err := s.fsSource.ArtifactPath(sessionID, fileName)
	if err != nil {
		writePlaybackError(w, err)
		return
	}

	f, err := os.Open(path) // #nosec G304 -- path confined by the source
	if err != nil {
		logger.Error().Err(err).Str("event", "segment.open_failed").Str("path", path).Msg("could not open segment")
		writeError(w, http.StatusInternalServerError, "internal_error", "could not open segment")
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to close segment file")
		}
	}()

	info, err := f.Stat()
	if err != nil {
		logger.Error().Err(err).Str("event", "segment.stat_failed").Str("path", path).Msg("could not stat segment")
		writeError(w, http.StatusInternalServerError, "internal_error", "could not stat segment")
		return
	}

	etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", segmentContentType(fileName))
	http.ServeContent(w, r, fileName, info.ModTime(), f)
}

// relaySegment fetches the segment from the upstream source and serves
// the bytes. ServeContent over the in-memory copy keeps range requests
// working for seeking players.
func (s *Server) relaySegment(w http.ResponseWriter, r *http.Request, sess *player.Session, fileName string) {
	body, err := s.src.Artifact(r.Context(), sess.SessionID, sess.Token(), fileName)
	if err != nil {
		writePlaybackError(w, err)
		return
	}
	w.Header().Set("Content-Type", segmentContentType(fileName))
	http.ServeContent(w, r, fileName, time.Time{}, bytes.NewReader(body))
}

// segmentContentType maps artifact extensions to media types. The system
// mime table is avoided on purpose: stripped containers map .ts and
// friends to surprising types or nothing at all.
func segmentContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".ogv":
		return "video/ogg"
	case ".mkv":
		return "video/x-matroska"
	case ".cast":
		return castContentType
	default:
		return "application/octet-stream"
	}
}
