// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package export writes canonical asciicast documents to disk so other
// tools can replay them without going through the service.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/rec2g/internal/log"
	"github.com/ManuGH/rec2g/internal/metrics"
	"github.com/ManuGH/rec2g/internal/source"
)

// ErrDisabled reports that no export directory is configured.
var ErrDisabled = errors.New("export: no export directory configured")

// Exporter writes .cast files below a fixed directory.
type Exporter struct {
	dir string
}

// New returns an Exporter rooted at dir. An empty dir disables exports.
func New(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Enabled reports whether the exporter has a target directory.
func (e *Exporter) Enabled() bool {
	return e != nil && e.dir != ""
}

// Export writes text to {dir}/{sessionID}.cast, replacing any previous
// export atomically. It returns the written path.
func (e *Exporter) Export(ctx context.Context, sessionID, text string) (path string, err error) {
	if !e.Enabled() {
		return "", ErrDisabled
	}
	defer func() { metrics.RecordExport(err) }()

	if err := source.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}

	path = filepath.Join(e.dir, sessionID+".cast")

	// renameio handles: temp file creation, fsync, atomic rename, cleanup on error
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return "", fmt.Errorf("export: create pending cast file: %w", err)
	}
	defer func() {
		if cerr := pendingFile.Cleanup(); cerr != nil {
			log.FromContext(ctx).Debug().Err(cerr).Msg("cleanup pending cast file")
		}
	}()

	if _, err := pendingFile.WriteString(text); err != nil {
		return "", fmt.Errorf("export: write cast data: %w", err)
	}

	// CloseAtomicallyReplace: fsync + rename (durable + atomic)
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("export: atomically replace cast file: %w", err)
	}

	log.WithComponentFromContext(ctx, "export").Info().
		Str("session_id", sessionID).
		Str("path", path).
		Msg("cast exported")
	return path, nil
}
