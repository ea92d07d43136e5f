// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/metrics"
	"github.com/ManuGH/rec2g/internal/player"
)

const (
	// maxFeedFrameBytes bounds inbound control frames. Clients only send
	// small JSON control messages.
	maxFeedFrameBytes = 1 << 10

	// feedReadyTimeout is how long the server waits for the ready frame
	// before dropping the connection.
	feedReadyTimeout = 30 * time.Second

	// feedWriteTimeout applies per outbound frame.
	feedWriteTimeout = 10 * time.Second

	// feedIdleTimeout caps how long a connection may sit without any
	// inbound frame after the document has been delivered.
	feedIdleTimeout = 10 * time.Minute

	// feedLivenessInterval is how often the server checks whether the
	// playback still exists while the connection idles.
	feedLivenessInterval = 5 * time.Second
)

// feedFrame is the control frame shape in both directions. The server
// sends {"type":"done"}; clients send {"type":"ready"} and
// {"type":"pos","time":t}.
type feedFrame struct {
	Type string  `json:"type"`
	Time float64 `json:"time,omitempty"`
}

// handlePlaybackFeed streams the canonical document over a WebSocket.
// After the client's ready frame the server sends the header line, one
// frame per event line, then a done frame, and keeps the connection open
// for position reports.
// GET /api/playback/{playbackID}/feed
func (s *Server) handlePlaybackFeed(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.liveSession(w, r)
	if !ok {
		return
	}

	// Claim the single feed slot before upgrading so rejections are
	// plain HTTP responses, not close frames.
	if err := sess.BeginFeed(); err != nil {
		writePlaybackError(w, err)
		return
	}
	defer sess.EndFeed()

	lines, err := sess.Lines()
	if err != nil {
		writePlaybackError(w, err)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "feed")
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the handshake error response.
		logger.Warn().
			Str("event", "feed.upgrade_failed").
			Str("playback_id", sess.ID.String()).
			Err(err).
			Msg("websocket upgrade failed")
		return
	}
	defer conn.Close() // #nosec G104

	metrics.IncFeedConnections()
	defer metrics.DecFeedConnections()

	conn.SetReadLimit(maxFeedFrameBytes)
	if !awaitReady(conn) {
		logger.Warn().
			Str("event", "feed.no_ready").
			Str("playback_id", sess.ID.String()).
			Msg("client never sent ready frame")
		return
	}

	if err := s.streamDocument(conn, lines); err != nil {
		logger.Warn().
			Str("event", "feed.stream_failed").
			Str("playback_id", sess.ID.String()).
			Err(err).
			Msg("document stream aborted")
		return
	}

	logger.Info().
		Str("event", "feed.delivered").
		Str("playback_id", sess.ID.String()).
		Int("frames", len(lines)).
		Msg("document delivered to renderer")

	s.feedPositionLoop(r, conn, sess)
}

// awaitReady blocks until the client sends its ready frame. Anything
// else on the wire before ready is a protocol violation.
func awaitReady(conn *websocket.Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(feedReadyTimeout))
	var frame feedFrame
	if err := conn.ReadJSON(&frame); err != nil {
		return false
	}
	if frame.Type != "ready" {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected ready frame")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(feedWriteTimeout))
		return false
	}
	return true
}

// streamDocument sends the header line, then each event line as its own
// text frame, then the done frame.
func (s *Server) streamDocument(conn *websocket.Conn, lines []string) error {
	for i, line := range lines {
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return err
		}
		if i == 0 {
			metrics.RecordFeedFrame("header")
		} else {
			metrics.RecordFeedFrame("event")
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	if err := conn.WriteJSON(feedFrame{Type: "done"}); err != nil {
		return err
	}
	metrics.RecordFeedFrame("done")
	return nil
}

// feedPositionLoop consumes position frames until the client disconnects
// or the playback is deleted. Deleting the playback closes the feed from
// the server side.
func (s *Server) feedPositionLoop(r *http.Request, conn *websocket.Conn, sess *player.Session) {
	frames := make(chan feedFrame)
	go func() {
		defer close(frames)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(feedIdleTimeout))
			var frame feedFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			select {
			case frames <- frame:
			case <-r.Context().Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(feedLivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if frame.Type == "pos" {
				s.dispatcher.RecordProgress(r.Context(), sess, frame.Time)
			}
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
		if _, live := s.dispatcher.Get(sess.ID); !live {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "playback closed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(feedWriteTimeout))
			return
		}
	}
}

// upgrader builds the WebSocket upgrader with the same origin policy as
// the CORS middleware.
func (s *Server) upgrader() websocket.Upgrader {
	allowed := s.currentConfig().AllowedOrigins
	return websocket.Upgrader{
		ReadBufferSize:  4 << 10,
		WriteBufferSize: 4 << 10,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowed)
		},
	}
}

// originAllowed mirrors the CORS middleware policy: no Origin header
// passes, "*" in the list allows everything, an empty list falls back to
// the local development origins, otherwise exact match.
func originAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return true
	}
	if len(allowedOrigins) == 0 {
		switch origin {
		case "http://localhost:3000", "http://localhost:8080", "http://localhost:5173",
			"http://127.0.0.1:3000", "http://127.0.0.1:8080":
			return true
		}
		return false
	}
	for _, a := range allowedOrigins {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
