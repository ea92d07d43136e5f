// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errProbe = errors.New("upstream unreachable")

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 3, 30*time.Second, WithClock(clock))

	fail := func() error { return errProbe }

	for i := 0; i < 2; i++ {
		err := cb.Execute(fail)
		assert.ErrorIs(t, err, errProbe)
	}
	assert.Equal(t, string(StateClosed), cb.State(), "below threshold stays closed")

	assert.ErrorIs(t, cb.Execute(fail), errProbe)
	assert.Equal(t, string(StateOpen), cb.State())

	// Open circuit rejects without running the function.
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 3, 30*time.Second, WithClock(clock))

	fail := func() error { return errProbe }
	ok := func() error { return nil }

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	_ = cb.Execute(ok)
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)

	assert.Equal(t, string(StateClosed), cb.State(), "success resets the consecutive count")

	_ = cb.Execute(fail)
	assert.Equal(t, string(StateOpen), cb.State())
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))

	_ = cb.Execute(func() error { return errProbe })
	assert.Equal(t, string(StateOpen), cb.State())

	// Before the reset timeout the circuit still rejects.
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	clock.now = clock.now.Add(11 * time.Second)

	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, string(StateClosed), cb.State())
}

func TestCircuitBreaker_HalfOpenProbeReopens(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))

	_ = cb.Execute(func() error { return errProbe })
	assert.Equal(t, string(StateOpen), cb.State())

	clock.now = clock.now.Add(11 * time.Second)

	assert.ErrorIs(t, cb.Execute(func() error { return errProbe }), errProbe)
	assert.Equal(t, string(StateOpen), cb.State(), "failed probe re-opens")

	// The new open window starts at the probe failure.
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreaker_PanicCountsAsFailure(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 2, 30*time.Second, WithClock(clock), WithPanicRecovery(true))

	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, string(StateClosed), cb.State())

	_ = cb.Execute(func() error { return errProbe })
	assert.Equal(t, string(StateOpen), cb.State(), "panic plus error reaches the threshold")
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("test", 0, 0)
	assert.Equal(t, 3, cb.threshold)
	assert.Equal(t, 30*time.Second, cb.resetTimeout)
	assert.Equal(t, string(StateClosed), cb.State())
}
