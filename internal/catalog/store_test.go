// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustUpsert(t *testing.T, s *Store, e Entry) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := s.Upsert(ctx, tx, e); err != nil {
		_ = tx.Rollback()
		t.Fatalf("upsert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestStoreUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := Entry{
		SessionID:       "3fa85f64-5717-4562-b3fc-2c963f66afa6",
		StartTime:       1700000000,
		DurationSeconds: 42,
		FileCount:       3,
		FirstFile:       "session-0.webm",
		Kind:            "video",
		IndexedAt:       time.Now().UTC().Truncate(time.Second),
	}
	mustUpsert(t, s, want)

	got, err := s.Get(ctx, want.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if got.Kind != "video" || got.FileCount != 3 || got.FirstFile != "session-0.webm" {
		t.Fatalf("entry mismatch: %+v", got)
	}
	if !got.IndexedAt.Equal(want.IndexedAt) {
		t.Fatalf("indexed at mismatch: got=%v want=%v", got.IndexedAt, want.IndexedAt)
	}

	missing, err := s.Get(ctx, "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing entry, got %+v", missing)
	}
}

func TestStoreUpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := "3fa85f64-5717-4562-b3fc-2c963f66afa6"

	mustUpsert(t, s, Entry{SessionID: id, Kind: "video", FileCount: 1, IndexedAt: time.Now()})
	mustUpsert(t, s, Entry{SessionID: id, Kind: "trace", FileCount: 2, IndexedAt: time.Now()})

	got, err := s.Get(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("get: entry=%v err=%v", got, err)
	}
	if got.Kind != "trace" || got.FileCount != 2 {
		t.Fatalf("expected second upsert to win, got %+v", got)
	}

	total, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("count mismatch: got=%d want=1", total)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	ids := []string{
		"11111111-1111-4111-8111-111111111111",
		"22222222-2222-4222-8222-222222222222",
		"33333333-3333-4333-8333-333333333333",
	}
	for i, id := range ids {
		mustUpsert(t, s, Entry{
			SessionID: id,
			StartTime: int64(1700000000 + i*100),
			Kind:      "video",
			IndexedAt: now,
		})
	}

	entries, total, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("total mismatch: got=%d want=3", total)
	}
	if len(entries) != 2 {
		t.Fatalf("page size mismatch: got=%d want=2", len(entries))
	}
	if entries[0].SessionID != ids[2] || entries[1].SessionID != ids[1] {
		t.Fatalf("expected newest first, got %q then %q", entries[0].SessionID, entries[1].SessionID)
	}

	rest, _, err := s.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(rest) != 1 || rest[0].SessionID != ids[0] {
		t.Fatalf("offset page mismatch: %+v", rest)
	}
}
