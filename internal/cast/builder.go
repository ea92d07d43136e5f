// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cast

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ManuGH/rec2g/internal/trace"
)

// delayDivisor converts raw chunk delays to seconds. The recorded fields
// behave like milliseconds under this divisor; if the format's producer ever
// confirms microsecond units, this single constant changes.
const delayDivisor = 1000.0

// ErrMalformedChunk marks a chunk whose payload cannot carry what its type
// requires (e.g. a resize without full geometry). It fails the whole build.
var ErrMalformedChunk = errors.New("cast: malformed chunk payload")

// Build decodes a raw trace buffer and assembles the canonical document in a
// single synchronous pass. All state lives in the call frame; concurrent
// builds never interact.
func Build(buf []byte) (*Document, error) {
	chunks, err := trace.Decode(buf)
	if err != nil {
		return nil, err
	}
	return BuildChunks(chunks)
}

// BuildChunks assembles the canonical document from a decoded chunk sequence.
//
// Timing: every chunk advances the clock by its delay, whatever its type.
// The first resize chunk seeds the header geometry and emits no event;
// later resizes surface as "r" events. Setup chunks are parsed for
// completeness but deliberately produce no output. Unknown chunk types
// advance time silently.
func BuildChunks(chunks []trace.Chunk) (*Document, error) {
	doc := &Document{Header: Header{Version: Version}}

	var (
		elapsed     float64
		geometrySet bool
	)

	for i, chunk := range chunks {
		elapsed += float64(chunk.Delay) / delayDivisor

		switch chunk.Type {
		case trace.ChunkOutput:
			doc.Events = append(doc.Events, Event{Time: elapsed, Kind: Output, Data: decodeText(chunk.Payload)})
		case trace.ChunkInput:
			doc.Events = append(doc.Events, Event{Time: elapsed, Kind: Input, Data: decodeText(chunk.Payload)})
		case trace.ChunkResize:
			width, height, rerr := trace.ParseResize(chunk.Payload)
			if rerr != nil {
				return nil, fmt.Errorf("%w: resize chunk %d: %v", ErrMalformedChunk, i, rerr)
			}
			if !geometrySet {
				doc.Header.Width = int(width)
				doc.Header.Height = int(height)
				geometrySet = true
				continue
			}
			doc.Events = append(doc.Events, Event{Time: elapsed, Kind: Resize, Data: fmt.Sprintf("%dx%d", width, height)})
		case trace.ChunkSetup:
			// Environment metadata: never surfaced as playback events.
			trace.ParseSetup(chunk.Payload)
		default:
			// Reserved type: time advances, nothing is emitted.
		}
	}

	doc.Header.Duration = elapsed
	return doc, nil
}

// decodeText converts payload bytes to text, replacing invalid UTF-8
// sequences instead of failing; recorded terminal streams routinely carry
// partial multi-byte sequences at chunk boundaries.
func decodeText(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}
	return strings.ToValidUTF8(string(payload), string(utf8.RuneError))
}
