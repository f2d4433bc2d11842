package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.InfoLevel)
	t.Cleanup(func() { InitLogging("release") })

	Info().Str("event_id", "evt-1").Msg("Purchase credited")
	Debug().Msg("hidden")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "Purchase credited" || entry["event_id"] != "evt-1" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestPrintfHelpers(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.DebugLevel)
	t.Cleanup(func() { InitLogging("release") })

	Warnf("Failed to delete %d users.", 2)

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if entry["message"] != "Failed to delete 2 users." || entry["level"] != "warn" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
