// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resume persists playback positions so a viewer can pick a
// recording back up where they left off. Positions live in an embedded
// Badger database keyed by session ID, and every entry carries a TTL so
// abandoned recordings age out on their own.
//
// The store is best-effort by contract: callers log failures and keep
// playing. Nothing in the playback path blocks on this package.
package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ManuGH/rec2g/internal/metrics"
	"github.com/ManuGH/rec2g/internal/player"
)

const keyPrefix = "pos:"

// DefaultTTL bounds how long a stored position outlives its last update.
const DefaultTTL = 30 * 24 * time.Hour

// Store is a Badger-backed position store.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) the position database at dir. A ttl <= 0
// falls back to DefaultTTL.
func Open(dir string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("resume: open %s: %w", dir, err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close releases the database. The store must not be used afterwards.
func (s *Store) Close() error { return s.db.Close() }

// Put stores pos under its session ID, replacing any previous position.
func (s *Store) Put(ctx context.Context, pos player.Position) (err error) {
	defer func() { metrics.RecordResumeOp("put", err) }()

	if pos.SessionID == "" {
		return fmt.Errorf("resume: empty session id")
	}
	buf, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("resume: encode %s: %w", pos.SessionID, err)
	}
	key := []byte(keyPrefix + pos.SessionID)
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// Get returns the stored position for sessionID. A missing or expired
// key reports found=false with a nil error.
func (s *Store) Get(ctx context.Context, sessionID string) (pos player.Position, found bool, err error) {
	defer func() { metrics.RecordResumeOp("get", err) }()

	key := []byte(keyPrefix + sessionID)
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pos)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return player.Position{}, false, nil
		}
		return player.Position{}, false, fmt.Errorf("resume: get %s: %w", sessionID, err)
	}
	return pos, true, nil
}

// Delete removes the stored position for sessionID. Deleting a missing
// key is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) (err error) {
	defer func() { metrics.RecordResumeOp("delete", err) }()

	key := []byte(keyPrefix + sessionID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// HealthCheck verifies the database still accepts transactions.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

var _ player.PositionStore = (*Store)(nil)
