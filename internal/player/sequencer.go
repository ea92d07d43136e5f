// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "fmt"

// Sequencer walks the ordered segment list of one video playback. Every
// playback session constructs its own sequencer and its index starts at the
// first artifact; nothing is shared between sessions or dispatch branches.
//
// Sequencer itself is not synchronized; Session serializes all access.
type Sequencer struct {
	segments []string
	index    int
	stalled  bool
	stallErr error
}

// NewSequencer builds a sequencer over a non-empty ordered segment list,
// positioned at the first segment.
func NewSequencer(segments []string) (*Sequencer, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyRecording
	}
	return &Sequencer{segments: append([]string(nil), segments...)}, nil
}

// Current returns the active segment index and reference.
func (s *Sequencer) Current() (int, string) {
	return s.index, s.segments[s.index]
}

// Len returns the number of segments.
func (s *Sequencer) Len() int {
	return len(s.segments)
}

// Segment returns the reference stored at index.
func (s *Sequencer) Segment(index int) (string, error) {
	if index < 0 || index >= len(s.segments) {
		return "", fmt.Errorf("player: segment index %d out of range [0,%d)", index, len(s.segments))
	}
	return s.segments[index], nil
}

// Advance performs the end-of-segment transition: move to the next index,
// wrapping to index 0 after the last segment so playback loops continuously.
// A stalled sequencer stays on its segment. wrapped reports whether this
// step crossed the end of the list.
func (s *Sequencer) Advance() (index int, wrapped bool) {
	if s.stalled {
		return s.index, false
	}
	s.index++
	if s.index >= len(s.segments) {
		s.index = 0
		return s.index, true
	}
	return s.index, false
}

// Seek positions the sequencer on index. Used to restore a stored playback
// position before the first segment is served.
func (s *Sequencer) Seek(index int) error {
	if index < 0 || index >= len(s.segments) {
		return fmt.Errorf("player: segment index %d out of range [0,%d)", index, len(s.segments))
	}
	s.index = index
	return nil
}

// Stall pins the sequencer on its current segment after a load failure.
// Stalls are never retried; the playback stays here until it is closed.
func (s *Sequencer) Stall(err error) {
	s.stalled = true
	s.stallErr = err
}

// Stalled reports whether the sequencer is stalled and on what cause.
func (s *Sequencer) Stalled() (bool, error) {
	return s.stalled, s.stallErr
}
