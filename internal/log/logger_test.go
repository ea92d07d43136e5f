// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithComponentField(t *testing.T) {
	var buf bytes.Buffer
	base = zerolog.New(&buf).With().Timestamp().Str("service", "rec2g").Logger()
	defer Configure(Config{})

	WithComponent("decoder").Info().Str("event", "test.emitted").Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["component"] != "decoder" {
		t.Errorf("expected component=decoder, got %v", entry["component"])
	}
	if entry["service"] != "rec2g" {
		t.Errorf("expected service=rec2g, got %v", entry["service"])
	}
	if entry["event"] != "test.emitted" {
		t.Errorf("expected event=test.emitted, got %v", entry["event"])
	}
}

func TestConfigureIsIdempotent(t *testing.T) {
	// Configure runs through sync.Once; a second call must not replace the
	// base logger or panic.
	Configure(Config{Level: "debug"})
	first := Base()
	Configure(Config{Level: "error"})
	second := Base()

	if first.GetLevel() != second.GetLevel() {
		t.Error("Configure must not reconfigure the base logger on repeat calls")
	}
}
