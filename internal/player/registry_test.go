// SPDX-License-Identifier: MIT

package player

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testSession() *Session {
	return &Session{
		ID:        uuid.New(),
		SessionID: testRecordingID,
		Kind:      KindVideo,
		CreatedAt: time.Now(),
		state:     StateVideoPlaying,
		lastSeen:  time.Now(),
	}
}

func TestRegistryCapacity(t *testing.T) {
	r := NewRegistry(2, 0, 0)

	first, second := testSession(), testSession()
	require.NoError(t, r.Add(first))
	require.NoError(t, r.Add(second))

	if err := r.Add(testSession()); !errors.Is(err, ErrCapacity) {
		t.Fatalf("error mismatch: got=%v want=%v", err, ErrCapacity)
	}
	require.True(t, r.AtCapacity())

	// Removing one frees a slot.
	_, ok := r.Remove(first.ID)
	require.True(t, ok)
	require.NoError(t, r.Add(testSession()))
	require.Equal(t, 2, r.Len())
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry(0, 0, 0)
	if _, ok := r.Get(uuid.New()); ok {
		t.Fatal("Get returned a session for an unknown id")
	}
	if _, ok := r.Remove(uuid.New()); ok {
		t.Fatal("Remove returned a session for an unknown id")
	}
}

func TestRegistryReapsIdleSessions(t *testing.T) {
	r := NewRegistry(0, time.Minute, 0)

	var hooks atomic.Int32
	r.OnExpire(func(*Session) { hooks.Add(1) })

	fresh, idle := testSession(), testSession()
	require.NoError(t, r.Add(fresh))
	require.NoError(t, r.Add(idle))

	idle.mu.Lock()
	idle.lastSeen = time.Now().Add(-2 * time.Minute)
	idle.mu.Unlock()

	if reaped := r.reapExpired(); reaped != 1 {
		t.Fatalf("reaped: got=%d want=1", reaped)
	}
	require.Equal(t, int32(1), hooks.Load())
	require.Equal(t, 1, r.Len())

	if _, ok := r.Get(idle.ID); ok {
		t.Fatal("idle session still retrievable after reap")
	}
	if _, ok := r.Get(fresh.ID); !ok {
		t.Fatal("fresh session reaped")
	}
}

func TestRegistryGetKeepsSessionAlive(t *testing.T) {
	r := NewRegistry(0, time.Minute, 0)

	s := testSession()
	require.NoError(t, r.Add(s))

	s.mu.Lock()
	s.lastSeen = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	// Get refreshes the activity timestamp before the next sweep runs.
	_, ok := r.Get(s.ID)
	require.True(t, ok)

	if reaped := r.reapExpired(); reaped != 0 {
		t.Fatalf("reaped: got=%d want=0", reaped)
	}
}

func TestRegistryJanitorRuns(t *testing.T) {
	r := NewRegistry(0, 20*time.Millisecond, 10*time.Millisecond)
	defer r.Stop()

	s := testSession()
	s.mu.Lock()
	s.lastSeen = time.Now().Add(-time.Minute)
	s.mu.Unlock()
	require.NoError(t, r.Add(s))

	require.Eventually(t, func() bool {
		return r.Len() == 0
	}, 2*time.Second, 10*time.Millisecond, "janitor never reaped the idle session")
}
