// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/rec2g/internal/player"
)

// memPositions is an in-memory PositionStore that signals every write.
type memPositions struct {
	mu   sync.Mutex
	m    map[string]player.Position
	puts chan player.Position
}

func newMemPositions() *memPositions {
	return &memPositions{
		m:    make(map[string]player.Position),
		puts: make(chan player.Position, 16),
	}
}

func (s *memPositions) Put(_ context.Context, pos player.Position) error {
	s.mu.Lock()
	s.m[pos.SessionID] = pos
	s.mu.Unlock()
	select {
	case s.puts <- pos:
	default:
	}
	return nil
}

func (s *memPositions) Get(_ context.Context, sessionID string) (player.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.m[sessionID]
	return pos, ok, nil
}

func (s *memPositions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionID)
	return nil
}

func dialFeed(t *testing.T, srv *httptest.Server, playbackID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/playback/" + playbackID + "/feed"
	return websocket.DefaultDialer.Dial(u, nil)
}

func readTextFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	return string(data)
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func TestFeedStreamsDocumentAndRecordsPosition(t *testing.T) {
	positions := newMemPositions()
	env := newTestEnv(t, testEnvOpts{positions: positions})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	st := startPlayback(t, env, env.traceID)

	conn, _, err := dialFeed(t, ts, st.PlaybackID)
	require.NoError(t, err)
	defer conn.Close()

	sendFrame(t, conn, feedFrame{Type: "ready"})

	var header map[string]any
	require.NoError(t, json.Unmarshal([]byte(readTextFrame(t, conn)), &header))
	assert.EqualValues(t, 2, header["version"])
	assert.EqualValues(t, 80, header["width"])
	assert.EqualValues(t, 24, header["height"])

	var text strings.Builder
	for i := 0; i < 2; i++ {
		var event []any
		require.NoError(t, json.Unmarshal([]byte(readTextFrame(t, conn)), &event))
		require.Len(t, event, 3)
		assert.Equal(t, "o", event[1])
		data, ok := event[2].(string)
		require.True(t, ok, "event payload must be a string")
		text.WriteString(data)
	}
	assert.Equal(t, "hello world\r\n", text.String())

	var done feedFrame
	require.NoError(t, json.Unmarshal([]byte(readTextFrame(t, conn)), &done))
	assert.Equal(t, "done", done.Type)

	sendFrame(t, conn, feedFrame{Type: "pos", Time: 0.2})
	select {
	case pos := <-positions.puts:
		assert.Equal(t, env.traceID, pos.SessionID)
		assert.InDelta(t, 0.2, pos.OffsetSeconds, 1e-9)
	case <-time.After(5 * time.Second):
		t.Fatal("position frame was never persisted")
	}
}

func TestFeedRejectsSecondConnection(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	st := startPlayback(t, env, env.traceID)

	first, _, err := dialFeed(t, ts, st.PlaybackID)
	require.NoError(t, err)
	defer first.Close()

	_, resp, err := dialFeed(t, ts, st.PlaybackID)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFeedSlotFreedAfterDisconnect(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	st := startPlayback(t, env, env.traceID)

	first, _, err := dialFeed(t, ts, st.PlaybackID)
	require.NoError(t, err)
	first.Close()

	require.Eventually(t, func() bool {
		conn, resp, err := dialFeed(t, ts, st.PlaybackID)
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return false
		}
		conn.Close()
		return true
	}, 5*time.Second, 50*time.Millisecond, "feed slot never freed")
}

func TestFeedOnVideoPlaybackConflicts(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	st := startPlayback(t, env, env.videoID)

	_, resp, err := dialFeed(t, ts, st.PlaybackID)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var eb errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&eb))
	assert.Equal(t, "no_document", eb.Error)
}

func TestFeedUnknownPlaybackNotFound(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	_, resp, err := dialFeed(t, ts, "b4a41d2c-96b8-4a8f-9b39-8757a70e8ebe")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFeedRequiresReadyFrame(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	st := startPlayback(t, env, env.traceID)

	conn, _, err := dialFeed(t, ts, st.PlaybackID)
	require.NoError(t, err)
	defer conn.Close()

	sendFrame(t, conn, feedFrame{Type: "pos", Time: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestFeedClosesWhenPlaybackEnds(t *testing.T) {
	env := newTestEnv(t, testEnvOpts{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	st := startPlayback(t, env, env.traceID)

	conn, _, err := dialFeed(t, ts, st.PlaybackID)
	require.NoError(t, err)
	defer conn.Close()

	sendFrame(t, conn, feedFrame{Type: "ready"})
	for {
		var done feedFrame
		if json.Unmarshal([]byte(readTextFrame(t, conn)), &done) == nil && done.Type == "done" {
			break
		}
	}

	rr := doRequest(t, env.handler, http.MethodDelete, "/api/playback/"+st.PlaybackID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// Any client frame after the close triggers the liveness check.
	sendFrame(t, conn, feedFrame{Type: "pos", Time: 0.1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
