// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player owns the playback state machine: classification of a
// recording into its playback path, the per-session video segment
// sequencer, and the registry of live playback sessions.
//
// One dispatch fetches the recording manifest, classifies it by the first
// listed artifact, and prepares the session for its path: video sessions get
// a sequencer over the full segment list, trace sessions get the decoded
// canonical document, cast sessions carry the fetched bytes unchanged. The
// path is decided once; a session never switches paths. All per-playback
// state lives in the session, so concurrent playbacks never interact.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/rec2g/internal/cache"
	"github.com/ManuGH/rec2g/internal/cast"
	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/metrics"
	"github.com/ManuGH/rec2g/internal/source"
	"github.com/ManuGH/rec2g/internal/trace"
)

// Registry and cache defaults applied by New.
const (
	DefaultMaxSessions   = 32
	DefaultSessionTTL    = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultCacheTTL      = time.Hour
)

// Position is the stored playback offset of one recording session: the
// segment index for video playbacks, the elapsed offset in seconds for
// trace and cast playbacks.
type Position struct {
	SessionID     string    `json:"sessionId"`
	Kind          Kind      `json:"kind"`
	SegmentIndex  int       `json:"segmentIndex"`
	OffsetSeconds float64   `json:"offsetSeconds"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PositionStore persists playback positions across restarts. Resume is
// best-effort: implementations report errors, the dispatcher logs them and
// plays from the start. A store never blocks playback.
type PositionStore interface {
	Put(ctx context.Context, pos Position) error
	Get(ctx context.Context, sessionID string) (Position, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// Config wires the dispatcher's collaborators.
type Config struct {
	Source source.Source

	// Cache holds decoded canonical documents; nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration

	// Positions is the optional resume store; nil disables resume.
	Positions PositionStore

	MaxSessions   int // <0 uncapped, 0 default
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// Dispatcher starts playback sessions and owns the registry of live ones.
type Dispatcher struct {
	src       source.Source
	cache     cache.Cache
	cacheTTL  time.Duration
	positions PositionStore
	registry  *Registry
}

// New creates a dispatcher over the given source.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Source == nil {
		return nil, errors.New("player: source is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewNoOpCache()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	d := &Dispatcher{
		src:       cfg.Source,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		positions: cfg.Positions,
		registry:  NewRegistry(cfg.MaxSessions, cfg.SessionTTL, cfg.SweepInterval),
	}
	d.registry.OnExpire(func(s *Session) {
		d.persistPosition(context.Background(), s)
	})
	return d, nil
}

// Start dispatches one playback: fetch the manifest once, classify by the
// first artifact, prepare the selected path, and register the session.
// A fetch or decode failure halts the dispatch; nothing is retried.
func (d *Dispatcher) Start(ctx context.Context, sessionID, token string) (*Session, error) {
	if d.registry.AtCapacity() {
		metrics.RecordPlaybackReject("capacity")
		EmitPlaybackObs(ctx, nil, ErrCapacity)
		return nil, ErrCapacity
	}

	s, err := d.dispatch(ctx, sessionID, token)
	if err != nil {
		if errors.Is(err, ErrCapacity) {
			metrics.RecordPlaybackReject("capacity")
		} else {
			metrics.RecordPlaybackStart(startKind(s), false)
		}
		EmitPlaybackObs(ctx, nil, err)
		return nil, err
	}

	st := s.Status()
	metrics.RecordPlaybackStart(string(s.Kind), true)
	EmitPlaybackObs(ctx, &st, nil)
	log.WithComponentFromContext(ctx, "player").Info().
		Str("event", "playback.started").
		Str("playback_id", st.ID).
		Str("session_id", st.SessionID).
		Str("kind", string(st.Kind)).
		Str("state", string(st.State)).
		Int("segments", st.SegmentCount).
		Int("events", st.Events).
		Msg("playback session started")
	return s, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, sessionID, token string) (*Session, error) {
	manifest, err := d.src.Manifest(ctx, sessionID, token)
	if err != nil {
		return nil, fmt.Errorf("player: manifest for %s: %w", sessionID, err)
	}

	files := manifest.FileNames()
	kind, err := Classify(files)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:        uuid.New(),
		SessionID: sessionID,
		Kind:      kind,
		CreatedAt: now,
		token:     token,
		state:     StateUninitialized,
		lastSeen:  now,
	}

	switch kind {
	case KindVideo:
		err = d.prepareVideo(ctx, s, files)
	case KindTrace:
		err = d.prepareTrace(ctx, s, files[0])
	case KindCast:
		err = d.prepareCast(ctx, s, files[0])
	}
	if err != nil {
		return s, err
	}

	if err := d.registry.Add(s); err != nil {
		return s, err
	}
	return s, nil
}

// prepareVideo sets up the segment sequencer over the full file list.
func (d *Dispatcher) prepareVideo(ctx context.Context, s *Session, files []string) error {
	seq, err := NewSequencer(files)
	if err != nil {
		return err
	}
	if pos, ok := d.loadPosition(ctx, s.SessionID); ok && pos.Kind == KindVideo {
		// A stale index from a shrunken recording falls back to the start.
		_ = seq.Seek(pos.SegmentIndex)
	}
	s.seq = seq
	s.state = StateVideoPlaying
	return nil
}

// prepareTrace fetches the trace artifact, decodes it, and builds the
// canonical document, consulting the document cache first.
func (d *Dispatcher) prepareTrace(ctx context.Context, s *Session, fileName string) error {
	text, header, events, err := d.traceDocument(ctx, s.SessionID, s.token, fileName)
	if err != nil {
		return err
	}
	s.text = text
	s.header = header
	s.eventCount = events
	s.state = StateTracePlaying
	if pos, ok := d.loadPosition(ctx, s.SessionID); ok && pos.Kind == s.Kind {
		s.progress = pos.OffsetSeconds
	}
	return nil
}

// prepareCast fetches an already-canonical document and carries it
// unchanged; there is no decode step on this path.
func (d *Dispatcher) prepareCast(ctx context.Context, s *Session, fileName string) error {
	raw, err := d.src.Artifact(ctx, s.SessionID, s.token, fileName)
	if err != nil {
		return fmt.Errorf("player: artifact %s: %w", fileName, err)
	}
	s.text = string(raw)
	s.header, s.eventCount = summarizeDocument(s.text)
	s.state = StateTracePlaying
	if pos, ok := d.loadPosition(ctx, s.SessionID); ok && pos.Kind == s.Kind {
		s.progress = pos.OffsetSeconds
	}
	return nil
}

// traceDocument returns the canonical document for a trace artifact, either
// from the cache or by fetch + decode + build. A cache hit skips the
// artifact fetch entirely.
func (d *Dispatcher) traceDocument(ctx context.Context, sessionID, token, fileName string) (string, cast.Header, int, error) {
	key := documentCacheKey(sessionID, fileName)
	if v, ok := d.cache.Get(key); ok {
		if text, ok := v.(string); ok && text != "" {
			header, events := summarizeDocument(text)
			return text, header, events, nil
		}
	}

	raw, err := d.src.Artifact(ctx, sessionID, token, fileName)
	if err != nil {
		return "", cast.Header{}, 0, fmt.Errorf("player: artifact %s: %w", fileName, err)
	}

	started := time.Now()
	chunks, err := trace.Decode(raw)
	if err != nil {
		metrics.ObserveDecode(false, time.Since(started))
		var trunc *trace.TruncatedRecordError
		if errors.As(err, &trunc) {
			metrics.RecordTruncatedTrace()
		}
		return "", cast.Header{}, 0, fmt.Errorf("player: decode %s: %w", fileName, err)
	}

	doc, err := cast.BuildChunks(chunks)
	if err != nil {
		metrics.ObserveDecode(false, time.Since(started))
		return "", cast.Header{}, 0, fmt.Errorf("player: build %s: %w", fileName, err)
	}
	metrics.ObserveDecode(true, time.Since(started))
	metrics.AddTraceBytes(len(raw))
	countChunks(chunks)
	countEvents(doc.Events)

	text, err := doc.Text()
	if err != nil {
		return "", cast.Header{}, 0, fmt.Errorf("player: serialize %s: %w", fileName, err)
	}

	d.cache.Set(key, text, d.cacheTTL)
	return text, doc.Header, len(doc.Events), nil
}

// Get returns a live session by playback id.
func (d *Dispatcher) Get(id uuid.UUID) (*Session, bool) {
	return d.registry.Get(id)
}

// Len returns the number of live sessions.
func (d *Dispatcher) Len() int {
	return d.registry.Len()
}

// Close ends a playback session, persisting its final position.
func (d *Dispatcher) Close(ctx context.Context, id uuid.UUID) bool {
	s, ok := d.registry.Remove(id)
	if !ok {
		return false
	}
	d.persistPosition(ctx, s)
	log.WithComponentFromContext(ctx, "player").Info().
		Str("event", "playback.closed").
		Str("playback_id", s.ID.String()).
		Str("session_id", s.SessionID).
		Msg("playback session closed")
	return true
}

// RecordProgress stores a renderer-reported offset on the session and in the
// position store.
func (d *Dispatcher) RecordProgress(ctx context.Context, s *Session, offset float64) {
	s.SetProgress(offset)
	d.persistPosition(ctx, s)
}

// Shutdown persists every live session's position and stops the registry.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	for _, s := range d.registry.Sessions() {
		d.persistPosition(ctx, s)
	}
	d.registry.Stop()
}

func (d *Dispatcher) loadPosition(ctx context.Context, sessionID string) (Position, bool) {
	if d.positions == nil {
		return Position{}, false
	}
	pos, ok, err := d.positions.Get(ctx, sessionID)
	if err != nil {
		log.WithComponentFromContext(ctx, "player").Warn().
			Err(err).
			Str("event", "resume.load.failed").
			Str("session_id", sessionID).
			Msg("resume position unavailable, starting from the beginning")
		return Position{}, false
	}
	return pos, ok
}

func (d *Dispatcher) persistPosition(ctx context.Context, s *Session) {
	if d.positions == nil {
		return
	}
	if err := d.positions.Put(ctx, s.Position()); err != nil {
		log.WithComponentFromContext(ctx, "player").Warn().
			Err(err).
			Str("event", "resume.save.failed").
			Str("session_id", s.SessionID).
			Msg("resume position not persisted")
	}
}

// documentCacheKey names a cached canonical document.
func documentCacheKey(sessionID, fileName string) string {
	return "cast:" + sessionID + ":" + fileName
}

// summarizeDocument extracts header fields and the event count from a
// canonical document body. The parse is tolerant: a malformed header leaves
// the zero value, since pass-through documents are served either way.
func summarizeDocument(text string) (cast.Header, int) {
	lines := cast.SplitLines(text)
	if len(lines) == 0 {
		return cast.Header{}, 0
	}
	var h cast.Header
	_ = json.Unmarshal([]byte(lines[0]), &h)
	return h, len(lines) - 1
}

// startKind labels a failed start for metrics; classification may not have
// happened yet.
func startKind(s *Session) string {
	if s == nil || s.Kind == "" {
		return "unknown"
	}
	return string(s.Kind)
}

func countChunks(chunks []trace.Chunk) {
	counts := make(map[string]int, 4)
	for _, c := range chunks {
		counts[c.Type.Kind()]++
	}
	for label, n := range counts {
		metrics.AddTraceChunks(label, n)
	}
}

func countEvents(events []cast.Event) {
	counts := make(map[string]int, 3)
	for _, e := range events {
		counts[string(e.Kind)]++
	}
	for kind, n := range counts {
		metrics.AddCastEvents(kind, n)
	}
}
