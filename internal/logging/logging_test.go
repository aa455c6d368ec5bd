package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewJSONIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(&buf, "debug", "json"), "turn")
	l.Info().Str("session_id", "s1").Msg("call_started")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if line["component"] != "turn" || line["session_id"] != "s1" || line["message"] != "call_started" {
		t.Fatalf("unexpected log line: %+v", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "json")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filtering failed: %q", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if got := ParseLevel("nonsense"); got != zerolog.InfoLevel {
		t.Fatalf("ParseLevel(nonsense) = %v, want info", got)
	}
	if got := ParseLevel(" DEBUG "); got != zerolog.DebugLevel {
		t.Fatalf("ParseLevel(DEBUG) = %v, want debug", got)
	}
}
