// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/metrics"
	"github.com/ManuGH/rec2g/internal/player"
	"github.com/ManuGH/rec2g/internal/source"
	"github.com/ManuGH/rec2g/internal/telemetry"
)

// DefaultScanInterval is how often the loop rescans without a change
// signal from the watcher.
const DefaultScanInterval = 5 * time.Minute

// dirtyPollInterval bounds how stale a watcher-signalled change can be
// before the loop notices it.
const dirtyPollInterval = 10 * time.Second

// Scanner indexes the recordings root into the catalog store.
type Scanner struct {
	store *Store
	src   *source.FS

	mu       sync.Mutex
	lastScan time.Time
	lastErr  string
}

// NewScanner creates a scanner over the filesystem source.
func NewScanner(store *Store, src *source.FS) *Scanner {
	return &Scanner{store: store, src: src}
}

// LastScan reports when the last successful pass finished and the error
// of the most recent pass, empty when it succeeded. Readiness probes
// read this without blocking a running scan.
func (sc *Scanner) LastScan() (time.Time, string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastScan, sc.lastErr
}

func (sc *Scanner) recordOutcome(err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err != nil {
		sc.lastErr = err.Error()
		return
	}
	sc.lastScan = time.Now()
	sc.lastErr = ""
}

// ScanResult summarizes one scan pass.
type ScanResult struct {
	Started  time.Time
	Finished time.Time
	Indexed  int
	Pruned   int
	Errors   int
}

// Scan walks the recordings root, upserts every readable session and
// prunes sessions that vanished from disk. A session whose manifest is
// unreadable keeps its previous catalog row; only directories actually
// gone from disk are pruned. One transaction per pass.
func (sc *Scanner) Scan(ctx context.Context) (result *ScanResult, err error) {
	start := time.Now()
	result = &ScanResult{Started: start}
	defer func() { metrics.ObserveCatalogScan(err == nil, time.Since(start)) }()
	defer func() {
		// A cancelled pass says nothing about catalog health.
		if !errors.Is(err, context.Canceled) {
			sc.recordOutcome(err)
		}
	}()

	ctx, span := telemetry.Tracer("rec2g.catalog").Start(ctx, "rec2g.catalog.scan")
	defer func() {
		span.SetAttributes(telemetry.ScanAttributes(
			result.Indexed, result.Pruned, result.Errors, time.Since(start).Milliseconds())...)
		if err != nil {
			span.SetAttributes(telemetry.ErrorAttributes(err, "scan")...)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	logger := log.WithComponent("catalog")

	ids, err := sc.src.Sessions(ctx)
	if err != nil {
		return result, fmt.Errorf("list sessions: %w", err)
	}
	onDisk := make(map[string]bool, len(ids))
	for _, id := range ids {
		onDisk[id] = true
	}

	tx, err := sc.store.BeginTx(ctx)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	scanTime := time.Now()
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		m, merr := sc.src.Manifest(ctx, id, "")
		if merr != nil {
			result.Errors++
			logger.Warn().
				Err(merr).
				Str("session_id", id).
				Str("event", "catalog.manifest_unreadable").
				Msg("skipping session")
			continue
		}

		names := m.FileNames()
		kind := "unknown"
		if k, cerr := player.Classify(names); cerr == nil {
			kind = string(k)
		}
		firstFile := ""
		if len(names) > 0 {
			firstFile = names[0]
		}

		entry := Entry{
			SessionID:       id,
			StartTime:       m.StartTime,
			DurationSeconds: m.Duration,
			FileCount:       len(names),
			FirstFile:       firstFile,
			Kind:            kind,
			IndexedAt:       scanTime,
		}
		if uerr := sc.store.Upsert(ctx, tx, entry); uerr != nil {
			result.Errors++
			logger.Warn().
				Err(uerr).
				Str("session_id", id).
				Str("event", "catalog.upsert_failed").
				Msg("skipping session")
			continue
		}
		result.Indexed++
	}

	existing, err := sc.store.SessionIDs(ctx, tx)
	if err != nil {
		return result, fmt.Errorf("list indexed sessions: %w", err)
	}
	for _, id := range existing {
		if onDisk[id] {
			continue
		}
		if derr := sc.store.Delete(ctx, tx, id); derr != nil {
			result.Errors++
			continue
		}
		result.Pruned++
	}

	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit tx: %w", err)
	}
	committed = true

	if total, cerr := sc.store.Count(ctx); cerr == nil {
		metrics.SetCatalogSessions(float64(total))
	}

	result.Finished = time.Now()
	logger.Info().
		Int("indexed", result.Indexed).
		Int("pruned", result.Pruned).
		Int("errors", result.Errors).
		Dur("elapsed", result.Finished.Sub(start)).
		Str("event", "catalog.scan_complete").
		Msg("catalog scan complete")
	return result, nil
}

// RunLoop rescans on a fixed interval, or sooner when the watcher saw
// changes. It returns when ctx is cancelled. A nil watcher leaves only
// the interval trigger.
func (sc *Scanner) RunLoop(ctx context.Context, interval time.Duration, w *Watcher) {
	if interval <= 0 {
		interval = DefaultScanInterval
	}

	full := time.NewTicker(interval)
	defer full.Stop()
	poll := time.NewTicker(dirtyPollInterval)
	defer poll.Stop()

	// Initial pass so listings work right after boot.
	sc.runScan(ctx, w)

	for {
		select {
		case <-ctx.Done():
			return
		case <-full.C:
			sc.runScan(ctx, w)
		case <-poll.C:
			if w != nil && w.ConsumeDirty() {
				sc.runScan(ctx, w)
			}
		}
	}
}

func (sc *Scanner) runScan(ctx context.Context, w *Watcher) {
	if _, err := sc.Scan(ctx); err != nil && ctx.Err() == nil {
		log.WithComponent("catalog").Warn().
			Err(err).
			Str("event", "catalog.scan_failed").
			Msg("catalog scan failed")
	}
	// The pass covered whatever made the root dirty.
	if w != nil {
		w.ConsumeDirty()
	}
}
