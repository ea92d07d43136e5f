// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	platformfs "github.com/ManuGH/rec2g/internal/platform/fs"
)

// FS serves recordings from a local root laid out as
// {root}/{sessionID}/recording.json plus artifact files. Session
// directories are named by UUID; everything else in the root is
// ignored.
type FS struct {
	root string
}

// NewFS returns a filesystem source rooted at dir. The root must
// exist; artifacts inside it may come and go.
func NewFS(dir string) (*FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("recordings root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("recordings root is not a directory: %s", dir)
	}
	return &FS{root: dir}, nil
}

// Root returns the recording root directory.
func (s *FS) Root() string {
	return s.root
}

// Manifest reads and decodes {root}/{sessionID}/recording.json.
// The token is ignored; local access needs none.
func (s *FS) Manifest(ctx context.Context, sessionID, _ string) (*Manifest, error) {
	body, err := s.read(ctx, sessionID, manifestName)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadResponse, manifestName, err)
	}
	if m.SessionID == "" {
		m.SessionID = sessionID
	}
	return &m, nil
}

// Artifact reads {root}/{sessionID}/{fileName}.
func (s *FS) Artifact(ctx context.Context, sessionID, _ string, fileName string) ([]byte, error) {
	if err := ValidateFileName(fileName); err != nil {
		return nil, err
	}
	return s.read(ctx, sessionID, fileName)
}

// ArtifactPath resolves {root}/{sessionID}/{fileName} to a confined
// absolute path without reading it. Callers use it to serve the bytes
// directly, with range requests handled by the HTTP layer.
func (s *FS) ArtifactPath(sessionID, fileName string) (string, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	if err := ValidateFileName(fileName); err != nil {
		return "", err
	}

	path, err := platformfs.ConfineRelPath(s.root, filepath.Join(sessionID, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidFileName, err)
	}
	if err := platformfs.IsRegularFile(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return path, nil
}

// Sessions lists the session IDs present under the root, in directory
// order. Entries that are not UUID-named directories are skipped.
func (s *FS) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list recordings root: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if ValidateSessionID(e.Name()) != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

// HealthCheck reports whether the recording root is still readable.
func (s *FS) HealthCheck(_ context.Context) error {
	_, err := os.ReadDir(s.root)
	return err
}

func (s *FS) read(ctx context.Context, sessionID, fileName string) ([]byte, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := platformfs.ConfineRelPath(s.root, filepath.Join(sessionID, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFileName, err)
	}
	if err := platformfs.IsRegularFile(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	body, err := os.ReadFile(path) // #nosec G304 -- path confined above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(body) > maxArtifactBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}
