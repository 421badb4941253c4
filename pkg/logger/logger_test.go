package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLevelsAndFormats(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "fold", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1:\n%s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["msg"] != "shown" || entry["fold"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()
	New(&buf, "nonsense", "text").Debug("dropped")
	if buf.Len() != 0 {
		t.Errorf("unknown level should default to info, got %q", buf.String())
	}
}

func TestRunID(t *testing.T) {
	ctx := context.Background()
	if RunID(ctx) != "" {
		t.Error("empty context has a run id")
	}
	ctx = WithRunID(ctx, "abc123")
	if got := RunID(ctx); got != "abc123" {
		t.Errorf("RunID = %q", got)
	}
}
