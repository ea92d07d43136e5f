// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resume

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/rec2g/internal/player"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePosition() player.Position {
	return player.Position{
		SessionID:     "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		Kind:          player.KindVideo,
		SegmentIndex:  2,
		OffsetSeconds: 12.5,
		UpdatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := samplePosition()

	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, found, err := s.Get(ctx, want.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected stored position to be found")
	}
	if got.SessionID != want.SessionID {
		t.Fatalf("session id mismatch: got=%q want=%q", got.SessionID, want.SessionID)
	}
	if got.Kind != want.Kind {
		t.Fatalf("kind mismatch: got=%q want=%q", got.Kind, want.Kind)
	}
	if got.SegmentIndex != want.SegmentIndex {
		t.Fatalf("segment index mismatch: got=%d want=%d", got.SegmentIndex, want.SegmentIndex)
	}
	if got.OffsetSeconds != want.OffsetSeconds {
		t.Fatalf("offset mismatch: got=%v want=%v", got.OffsetSeconds, want.OffsetSeconds)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("updated at mismatch: got=%v want=%v", got.UpdatedAt, want.UpdatedAt)
	}
}

func TestGetMissingReportsNotFound(t *testing.T) {
	s := newTestStore(t)

	pos, found, err := s.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected missing key to report found=false")
	}
	if pos != (player.Position{}) {
		t.Fatalf("expected zero position, got %+v", pos)
	}
}

func TestPutReplacesPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := samplePosition()
	if err := s.Put(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	second := first
	second.SegmentIndex = 5
	second.OffsetSeconds = 0
	if err := s.Put(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, found, err := s.Get(ctx, first.SessionID)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.SegmentIndex != 5 {
		t.Fatalf("segment index mismatch: got=%d want=5", got.SegmentIndex)
	}
}

func TestDeleteRemovesPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pos := samplePosition()

	if err := s.Put(ctx, pos); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, pos.SessionID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, err := s.Get(ctx, pos.SessionID); err != nil || found {
		t.Fatalf("expected position gone: found=%v err=%v", found, err)
	}

	// Deleting a missing key stays silent.
	if err := s.Delete(ctx, pos.SessionID); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestPutRejectsEmptySessionID(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put(context.Background(), player.Position{}); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestReopenKeepsPositions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	pos := samplePosition()

	s, err := Open(dir, time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Put(ctx, pos); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(dir, time.Hour)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, found, err := reopened.Get(ctx, pos.SessionID)
	if err != nil || !found {
		t.Fatalf("get after reopen: found=%v err=%v", found, err)
	}
	if got.SegmentIndex != pos.SegmentIndex {
		t.Fatalf("segment index mismatch: got=%d want=%d", got.SegmentIndex, pos.SegmentIndex)
	}
}

func TestHealthCheckFailsAfterClose(t *testing.T) {
	s, err := Open(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check on open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail on closed store")
	}
}
