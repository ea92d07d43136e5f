// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package source resolves recording manifests and artifact bytes,
// either from the upstream gateway over HTTP or from a local
// recording root. Failures are final at this layer; callers decide
// whether an operation is worth repeating.
package source

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// FileEntry is one artifact listed in a recording manifest. Only the
// file name and list position carry playback semantics; the timing
// fields are catalog metadata.
type FileEntry struct {
	FileName  string `json:"fileName"`
	StartTime int64  `json:"startTime"`
	Duration  int64  `json:"duration"`
}

// Manifest is the recording.json document describing one session.
type Manifest struct {
	SessionID string      `json:"sessionId"`
	StartTime int64       `json:"startTime"`
	Duration  int64       `json:"duration"`
	Files     []FileEntry `json:"files"`
}

// FileNames returns the artifact names in manifest order.
func (m *Manifest) FileNames() []string {
	names := make([]string, len(m.Files))
	for i, f := range m.Files {
		names[i] = f.FileName
	}
	return names
}

// Source resolves a session's manifest and artifact bytes. The token
// is forwarded to backends that authenticate pulls; local backends
// ignore it.
type Source interface {
	Manifest(ctx context.Context, sessionID, token string) (*Manifest, error)
	Artifact(ctx context.Context, sessionID, token, fileName string) ([]byte, error)
}

// ValidateSessionID checks that a session identifier is a UUID before
// it is used to build paths or URLs.
func ValidateSessionID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return ErrInvalidSessionID
	}
	return nil
}

// ValidateFileName checks that an artifact name from a manifest or a
// request is a bare file name: no separators, no traversal, no NULs,
// nothing that could address outside the session.
func ValidateFileName(name string) error {
	if strings.IndexByte(name, 0x00) >= 0 {
		return ErrInvalidFileName
	}
	// Compatibility normalization folds lookalike dot and slash forms
	// before the traversal checks.
	folded := norm.NFKC.String(name)
	for _, s := range []string{name, folded} {
		switch {
		case s == "" || s == "." || s == "..":
			return ErrInvalidFileName
		case strings.ContainsAny(s, `/\`):
			return ErrInvalidFileName
		case strings.Contains(s, ".."):
			return ErrInvalidFileName
		}
	}
	return nil
}
