// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cast

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ManuGH/rec2g/internal/trace"
)

// Encode renders a document back into the binary trace wire form: a leading
// resize record carrying the header geometry, then one record per event with
// delta-encoded delays. It is the inverse of Build up to floating-point
// rounding of event times and exists for fixtures and round-trip checks.
func Encode(doc *Document) ([]byte, error) {
	var (
		buf  []byte
		err  error
		prev float64
	)

	if doc.Header.Width > 0 || doc.Header.Height > 0 {
		payload := trace.AppendResizePayload(nil, uint16(doc.Header.Width), uint16(doc.Header.Height))
		if buf, err = trace.AppendRecord(buf, 0, trace.ChunkResize, payload); err != nil {
			return nil, err
		}
	}

	for i, ev := range doc.Events {
		if ev.Time < prev {
			return nil, fmt.Errorf("cast: event %d time %v before %v", i, ev.Time, prev)
		}
		delay := uint32(math.Round((ev.Time - prev) * delayDivisor))
		prev = ev.Time

		var (
			typ     trace.ChunkType
			payload []byte
		)
		switch ev.Kind {
		case Output:
			typ, payload = trace.ChunkOutput, []byte(ev.Data)
		case Input:
			typ, payload = trace.ChunkInput, []byte(ev.Data)
		case Resize:
			width, height, perr := parseGeometry(ev.Data)
			if perr != nil {
				return nil, fmt.Errorf("cast: event %d: %w", i, perr)
			}
			typ, payload = trace.ChunkResize, trace.AppendResizePayload(nil, width, height)
		default:
			return nil, fmt.Errorf("cast: event %d has unknown kind %q", i, ev.Kind)
		}

		if buf, err = trace.AppendRecord(buf, delay, typ, payload); err != nil {
			return nil, fmt.Errorf("cast: event %d: %w", i, err)
		}
	}

	return buf, nil
}

// parseGeometry splits a "<width>x<height>" resize payload string.
func parseGeometry(data string) (uint16, uint16, error) {
	w, h, ok := strings.Cut(data, "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid geometry %q", data)
	}
	width, err := strconv.ParseUint(w, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid geometry width %q: %w", data, err)
	}
	height, err := strconv.ParseUint(h, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid geometry height %q: %w", data, err)
	}
	return uint16(width), uint16(height), nil
}
