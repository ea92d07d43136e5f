// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/rec2g/internal/cast"
	"github.com/ManuGH/rec2g/internal/metrics"
)

// State is the top-level playback machine state. A session leaves
// Uninitialized exactly once, into the state its classification selected,
// and never moves between the two playing states.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateVideoPlaying  State = "video_playing"
	StateTracePlaying  State = "trace_playing"
)

// ErrNotVideo rejects segment operations on a session without segments.
var ErrNotVideo = errors.New("player: session has no video segments")

// ErrNoDocument rejects document operations on a video session.
var ErrNoDocument = errors.New("player: session has no canonical document")

// ErrFeedActive rejects a second concurrent renderer feed on one session.
var ErrFeedActive = errors.New("player: renderer feed already attached")

// Session is one operator playback of one recording. All mutable state is
// private to the session; concurrent sessions never share anything.
type Session struct {
	ID        uuid.UUID
	SessionID string
	Kind      Kind
	CreatedAt time.Time

	// token is the upstream access token from the start request, held for
	// follow-up artifact fetches. Never logged, never serialized.
	token string

	mu         sync.Mutex
	state      State
	seq        *Sequencer
	text       string
	header     cast.Header
	eventCount int
	progress   float64
	feedActive bool
	lastSeen   time.Time
}

// Status is an immutable snapshot of a session for state reporting.
type Status struct {
	ID           string
	SessionID    string
	Kind         Kind
	State        State
	SegmentIndex int
	SegmentCount int
	Segment      string
	Stalled      bool
	StallReason  string
	Width        int
	Height       int
	Duration     float64
	Events       int
	Offset       float64
	CreatedAt    time.Time
}

// Status returns a point-in-time snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// snapshot builds a Status. Callers must hold s.mu.
func (s *Session) snapshot() Status {
	st := Status{
		ID:        s.ID.String(),
		SessionID: s.SessionID,
		Kind:      s.Kind,
		State:     s.state,
		Width:     s.header.Width,
		Height:    s.header.Height,
		Duration:  s.header.Duration,
		Events:    s.eventCount,
		Offset:    s.progress,
		CreatedAt: s.CreatedAt,
	}
	if s.seq != nil {
		st.SegmentIndex, st.Segment = s.seq.Current()
		st.SegmentCount = s.seq.Len()
		stalled, cause := s.seq.Stalled()
		st.Stalled = stalled
		if cause != nil {
			st.StallReason = cause.Error()
		}
	}
	return st
}

// Advance performs the end-of-segment transition for a video session and
// returns the resulting state. A stalled session does not move; the stall is
// visible in the returned status.
func (s *Session) Advance() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == nil {
		return Status{}, ErrNotVideo
	}
	s.lastSeen = time.Now()
	if stalled, _ := s.seq.Stalled(); stalled {
		return s.snapshot(), nil
	}
	_, wrapped := s.seq.Advance()
	metrics.RecordSegmentAdvance(wrapped)
	return s.snapshot(), nil
}

// MarkStalled records a segment load failure reported by the client. The
// sequencer stays on the failed segment; stalls are never retried.
func (s *Session) MarkStalled(cause string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == nil {
		return Status{}, ErrNotVideo
	}
	s.lastSeen = time.Now()
	if cause == "" {
		cause = "segment load failed"
	}
	if stalled, _ := s.seq.Stalled(); !stalled {
		s.seq.Stall(errors.New(cause))
		metrics.RecordSegmentStall()
	}
	return s.snapshot(), nil
}

// SegmentFile returns the artifact name stored at index for a video session.
func (s *Session) SegmentFile(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == nil {
		return "", ErrNotVideo
	}
	s.lastSeen = time.Now()
	return s.seq.Segment(index)
}

// Text returns the canonical document body of a trace or cast session.
func (s *Session) Text() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateTracePlaying {
		return "", ErrNoDocument
	}
	s.lastSeen = time.Now()
	return s.text, nil
}

// Lines returns the canonical document split into feed frames: the header
// line first, then one line per event.
func (s *Session) Lines() ([]string, error) {
	text, err := s.Text()
	if err != nil {
		return nil, err
	}
	return cast.SplitLines(text), nil
}

// BeginFeed claims the session's single renderer feed slot.
func (s *Session) BeginFeed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedActive {
		return ErrFeedActive
	}
	s.feedActive = true
	s.lastSeen = time.Now()
	return nil
}

// EndFeed releases the renderer feed slot.
func (s *Session) EndFeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedActive = false
	s.lastSeen = time.Now()
}

// SetProgress records the renderer's reported playback offset in seconds.
func (s *Session) SetProgress(offset float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= 0 {
		s.progress = offset
	}
	s.lastSeen = time.Now()
}

// Token returns the upstream access token captured at start.
func (s *Session) Token() string {
	return s.token
}

// Position captures the session's resumable offset for the position store.
func (s *Session) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := Position{
		SessionID:     s.SessionID,
		Kind:          s.Kind,
		OffsetSeconds: s.progress,
		UpdatedAt:     time.Now(),
	}
	if s.seq != nil {
		pos.SegmentIndex, _ = s.seq.Current()
	}
	return pos
}

// touch marks activity for the idle janitor.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// lastActive returns the most recent activity timestamp.
func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
