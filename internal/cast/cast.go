// SPDX-License-Identifier: MIT

// Package cast builds and serializes the canonical terminal event stream
// (asciicast v2): one JSON header line followed by one JSON array line per
// event. This is the format handed to terminal renderers.
package cast

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Version is the asciicast format version emitted in every header.
const Version = 2

// EventKind tags an event line. The values are the wire tags themselves.
type EventKind string

const (
	Output EventKind = "o"
	Input  EventKind = "i"
	Resize EventKind = "r"
)

// Event is one timed entry of the canonical stream. Time is absolute elapsed
// seconds since the start of the recording; the sequence is non-decreasing.
type Event struct {
	Time float64
	Kind EventKind
	Data string
}

// MarshalJSON encodes the event as the canonical [time, kind, data] triple.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{e.Time, string(e.Kind), e.Data})
}

// UnmarshalJSON decodes a canonical [time, kind, data] triple.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw [3]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var kind, text string
	if err := json.Unmarshal(raw[0], &e.Time); err != nil {
		return fmt.Errorf("cast: event time: %w", err)
	}
	if err := json.Unmarshal(raw[1], &kind); err != nil {
		return fmt.Errorf("cast: event kind: %w", err)
	}
	if err := json.Unmarshal(raw[2], &text); err != nil {
		return fmt.Errorf("cast: event data: %w", err)
	}
	e.Kind = EventKind(kind)
	e.Data = text
	return nil
}

// Header is the first line of a canonical document. Width and height come
// from the first resize chunk of the source trace and are set exactly once.
type Header struct {
	Version  int     `json:"version"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
}

// Document is one complete canonical event stream.
type Document struct {
	Header Header
	Events []Event
}

// WriteTo serializes the document: header line, then one line per event.
// HTML escaping is disabled so terminal escape sequences survive verbatim.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(d.Header); err != nil {
		return cw.n, fmt.Errorf("cast: encode header: %w", err)
	}
	for i := range d.Events {
		if err := enc.Encode(d.Events[i]); err != nil {
			return cw.n, fmt.Errorf("cast: encode event %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Text renders the document to its canonical string form.
func (d *Document) Text() (string, error) {
	var sb strings.Builder
	if _, err := d.WriteTo(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Lines returns the canonical lines without trailing newlines: header first,
// then one entry per event. Used by the renderer feed, which frames each
// line individually.
func (d *Document) Lines() ([]string, error) {
	text, err := d.Text()
	if err != nil {
		return nil, err
	}
	return SplitLines(text), nil
}

// SplitLines splits a canonical document body into its non-empty lines. It
// works on pass-through bytes as well as generated documents, without
// interpreting the content.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
