// SPDX-License-Identifier: MIT

package player

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/metrics"
)

// ErrCapacity rejects playback starts past the configured concurrency cap.
var ErrCapacity = errors.New("player: playback capacity reached")

// Registry tracks live playback sessions behind one lock. An idle janitor
// reaps sessions with no activity for longer than the TTL so abandoned
// playbacks do not pin memory forever.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	max      int
	ttl      time.Duration
	onExpire func(*Session)

	janitor *registryJanitor
}

// NewRegistry creates a registry. max <= 0 disables the concurrency cap;
// ttl <= 0 or sweepInterval <= 0 disables the idle janitor.
func NewRegistry(max int, ttl, sweepInterval time.Duration) *Registry {
	r := &Registry{
		sessions: make(map[uuid.UUID]*Session),
		max:      max,
		ttl:      ttl,
	}

	if ttl > 0 && sweepInterval > 0 {
		r.janitor = &registryJanitor{
			interval: sweepInterval,
			stop:     make(chan struct{}),
		}
		go r.janitor.run(r)
	}

	return r
}

// OnExpire registers a hook the janitor invokes for each reaped session,
// outside the registry lock. Used to persist final playback positions.
func (r *Registry) OnExpire(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = fn
}

// AtCapacity reports whether a new session would exceed the cap. Starts use
// it as a cheap pre-check; Add re-checks under the lock.
func (r *Registry) AtCapacity() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.max > 0 && len(r.sessions) >= r.max
}

// Add registers a session, enforcing the concurrency cap.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		return ErrCapacity
	}
	r.sessions[s.ID] = s
	metrics.IncActivePlaybacks()
	return nil
}

// Get returns a live session and marks it active.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

// Remove unregisters a session and returns it.
func (r *Registry) Remove(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if ok {
		metrics.DecActivePlaybacks()
	}
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of all live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// reapExpired removes sessions idle past the TTL and runs the expire hook
// for each. Returns the number of reaped sessions.
func (r *Registry) reapExpired() int {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.lastActive().Before(cutoff) {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	hook := r.onExpire
	r.mu.Unlock()

	for _, s := range expired {
		metrics.DecActivePlaybacks()
		metrics.RecordPlaybackExpired()
		log.WithComponent("player").Info().
			Str("event", "playback.expired").
			Str("playback_id", s.ID.String()).
			Str("session_id", s.SessionID).
			Str("kind", string(s.Kind)).
			Msg("idle playback session expired")
		if hook != nil {
			hook(s)
		}
	}
	return len(expired)
}

// Stop stops the janitor goroutine.
func (r *Registry) Stop() {
	if r.janitor != nil {
		r.janitor.stop <- struct{}{}
	}
}

// registryJanitor reaps idle sessions on a fixed interval.
type registryJanitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *registryJanitor) run(r *Registry) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reapExpired()
		case <-j.stop:
			return
		}
	}
}
