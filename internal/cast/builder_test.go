// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cast

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ManuGH/rec2g/internal/trace"
)

func mustRecord(t *testing.T, delay uint32, typ trace.ChunkType, payload []byte) []byte {
	t.Helper()
	buf, err := trace.AppendRecord(nil, delay, typ, payload)
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	return buf
}

func TestBuildEmptyBuffer(t *testing.T) {
	doc, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil) error = %v", err)
	}
	if doc.Header.Duration != 0 {
		t.Errorf("Duration = %v, want 0", doc.Header.Duration)
	}
	if len(doc.Events) != 0 {
		t.Errorf("Events = %d, want 0", len(doc.Events))
	}
	if doc.Header.Version != Version {
		t.Errorf("Version = %d, want %d", doc.Header.Version, Version)
	}
}

func TestBuildFirstResizeSetsGeometryWithoutEvent(t *testing.T) {
	var buf []byte
	buf = append(buf, mustRecord(t, 0, trace.ChunkResize, trace.AppendResizePayload(nil, 80, 24))...)
	buf = append(buf, mustRecord(t, 500, trace.ChunkResize, trace.AppendResizePayload(nil, 100, 30))...)

	doc, err := Build(buf)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if doc.Header.Width != 80 || doc.Header.Height != 24 {
		t.Errorf("header geometry = %dx%d, want 80x24", doc.Header.Width, doc.Header.Height)
	}
	want := []Event{{Time: 0.5, Kind: Resize, Data: "100x30"}}
	if diff := cmp.Diff(want, doc.Events, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if doc.Header.Duration != 0.5 {
		t.Errorf("Duration = %v, want 0.5", doc.Header.Duration)
	}
}

func TestBuildOutputAndInputEvents(t *testing.T) {
	var buf []byte
	buf = append(buf, mustRecord(t, 0, trace.ChunkResize, trace.AppendResizePayload(nil, 80, 24))...)
	buf = append(buf, mustRecord(t, 100, trace.ChunkOutput, []byte("$ "))...)
	buf = append(buf, mustRecord(t, 250, trace.ChunkInput, []byte("ls\r"))...)
	buf = append(buf, mustRecord(t, 50, trace.ChunkOutput, []byte("bin\r\n"))...)

	doc, err := Build(buf)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []Event{
		{Time: 0.1, Kind: Output, Data: "$ "},
		{Time: 0.35, Kind: Input, Data: "ls\r"},
		{Time: 0.4, Kind: Output, Data: "bin\r\n"},
	}
	if diff := cmp.Diff(want, doc.Events, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if math.Abs(doc.Header.Duration-0.4) > 1e-9 {
		t.Errorf("Duration = %v, want 0.4", doc.Header.Duration)
	}
}

func TestBuildTimesAreNonDecreasing(t *testing.T) {
	var buf []byte
	buf = append(buf, mustRecord(t, 0, trace.ChunkOutput, []byte("a"))...)
	buf = append(buf, mustRecord(t, 0, trace.ChunkOutput, []byte("b"))...)
	buf = append(buf, mustRecord(t, 10, trace.ChunkSetup, nil)...)
	buf = append(buf, mustRecord(t, 0, trace.ChunkOutput, []byte("c"))...)
	buf = append(buf, mustRecord(t, 3, trace.ChunkType(42), []byte{1, 2})...)
	buf = append(buf, mustRecord(t, 0, trace.ChunkInput, []byte("d"))...)

	doc, err := Build(buf)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	prev := 0.0
	for i, ev := range doc.Events {
		if ev.Time < prev {
			t.Errorf("event %d time %v < previous %v", i, ev.Time, prev)
		}
		prev = ev.Time
	}
	// Ties keep insertion order.
	if doc.Events[0].Data != "a" || doc.Events[1].Data != "b" {
		t.Error("tied events must keep file order")
	}
}

func TestBuildSetupAndUnknownAdvanceTimeSilently(t *testing.T) {
	setup := trace.AppendSetupPayload(nil, []trace.SetupRecord{{Tag: 1, Value: 2}, {Tag: 3, Value: 4}})

	var buf []byte
	buf = append(buf, mustRecord(t, 1000, trace.ChunkSetup, setup)...)
	buf = append(buf, mustRecord(t, 2000, trace.ChunkType(0xBEEF), []byte("ignored"))...)
	buf = append(buf, mustRecord(t, 0, trace.ChunkOutput, []byte("x"))...)

	doc, err := Build(buf)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(doc.Events) != 1 {
		t.Fatalf("events = %d, want 1 (setup/unknown must not emit)", len(doc.Events))
	}
	if doc.Events[0].Time != 3.0 {
		t.Errorf("event time = %v, want 3.0 (setup+unknown delays must advance the clock)", doc.Events[0].Time)
	}
	if doc.Header.Duration != 3.0 {
		t.Errorf("Duration = %v, want 3.0", doc.Header.Duration)
	}
}

func TestBuildInvalidUTF8IsReplaced(t *testing.T) {
	payload := []byte{0x68, 0x69, 0xff, 0xfe, 0x21} // "hi" + invalid pair + "!"
	buf := mustRecord(t, 0, trace.ChunkOutput, payload)

	doc, err := Build(buf)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	got := doc.Events[0].Data
	if got == string(payload) {
		t.Error("invalid UTF-8 should have been replaced")
	}
	for _, r := range got {
		if r == 0xFFFD {
			return
		}
	}
	t.Errorf("expected replacement rune in %q", got)
}

func TestBuildTruncatedBufferFails(t *testing.T) {
	full := mustRecord(t, 10, trace.ChunkOutput, []byte("payload"))

	doc, err := Build(full[:len(full)-2])
	var trunc *trace.TruncatedRecordError
	if !errors.As(err, &trunc) {
		t.Fatalf("Build() error = %v, want TruncatedRecordError", err)
	}
	if doc != nil {
		t.Error("Build() must not return a partial document on truncation")
	}
}

func TestBuildShortResizePayloadFails(t *testing.T) {
	buf := mustRecord(t, 0, trace.ChunkResize, []byte{80, 0})

	doc, err := Build(buf)
	if !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("Build() error = %v, want ErrMalformedChunk", err)
	}
	if doc != nil {
		t.Error("Build() must not return a partial document for malformed resize")
	}
}

func TestEncodeBuildRoundTrip(t *testing.T) {
	orig := &Document{
		Header: Header{Version: Version, Width: 120, Height: 40},
		Events: []Event{
			{Time: 0.25, Kind: Output, Data: "hello"},
			{Time: 0.25, Kind: Input, Data: "y"},
			{Time: 1.5, Kind: Resize, Data: "132x43"},
			{Time: 2.75, Kind: Output, Data: "bye\r\n"},
		},
	}

	wire, err := Encode(orig)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	rebuilt, err := Build(wire)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if rebuilt.Header.Width != 120 || rebuilt.Header.Height != 40 {
		t.Errorf("header geometry = %dx%d, want 120x40", rebuilt.Header.Width, rebuilt.Header.Height)
	}
	if diff := cmp.Diff(orig.Events, rebuilt.Events, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("round-trip events mismatch (-want +got):\n%s", diff)
	}
	if math.Abs(rebuilt.Header.Duration-2.75) > 1e-6 {
		t.Errorf("Duration = %v, want 2.75", rebuilt.Header.Duration)
	}
}

func TestEncodeRejectsDecreasingTimes(t *testing.T) {
	doc := &Document{
		Header: Header{Version: Version, Width: 80, Height: 24},
		Events: []Event{
			{Time: 2, Kind: Output, Data: "a"},
			{Time: 1, Kind: Output, Data: "b"},
		},
	}
	if _, err := Encode(doc); err == nil {
		t.Error("Encode() should reject out-of-order event times")
	}
}
