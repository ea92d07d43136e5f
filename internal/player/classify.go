package player

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Kind selects the playback path for a recording. It is decided exactly once
// per playback, from the first listed artifact, and never changes afterwards.
type Kind string

const (
	// KindVideo plays container segments back-to-back through the sequencer.
	KindVideo Kind = "video"
	// KindTrace decodes a binary terminal trace into the canonical stream.
	KindTrace Kind = "trace"
	// KindCast serves an already-canonical event stream unchanged.
	KindCast Kind = "cast"
)

// videoExtensions lists the container suffixes the video path accepts.
var videoExtensions = map[string]bool{
	"webm": true,
	"mp4":  true,
	"m4v":  true,
	"ogv":  true,
	"mkv":  true,
}

const (
	extTrace = "trp"
	extCast  = "cast"
)

// ErrEmptyRecording reports a manifest that lists no artifacts. No playback
// path exists for such a recording.
var ErrEmptyRecording = errors.New("player: recording lists no artifacts")

// UnsupportedFormatError reports an artifact whose extension maps to no
// playback path. It is fatal for the dispatch; there is no fallback path.
type UnsupportedFormatError struct {
	FileName  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("player: unsupported recording format: %q has no extension", e.FileName)
	}
	return fmt.Sprintf("player: unsupported recording format %q (%s)", e.Extension, e.FileName)
}

// Classify decides the playback path for an ordered artifact list. Only the
// first artifact's extension is consulted; a mixed list follows the path of
// its first entry.
func Classify(files []string) (Kind, error) {
	if len(files) == 0 {
		return "", ErrEmptyRecording
	}
	return ClassifyFile(files[0])
}

// ClassifyFile maps a single artifact name to its playback kind by extension.
func ClassifyFile(fileName string) (Kind, error) {
	ext := extensionOf(fileName)
	switch {
	case videoExtensions[ext]:
		return KindVideo, nil
	case ext == extTrace:
		return KindTrace, nil
	case ext == extCast:
		return KindCast, nil
	default:
		return "", &UnsupportedFormatError{FileName: fileName, Extension: ext}
	}
}

func extensionOf(fileName string) string {
	ext := path.Ext(strings.TrimSpace(fileName))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
