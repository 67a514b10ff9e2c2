package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("reconcile done", "unpriced", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug to be filtered, got %d lines", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["msg"] != "reconcile done" || entry["unpriced"] != float64(2) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("loaded", "events", 3)
	if !strings.Contains(buf.String(), "events=3") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected level error")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected format error")
	}
}
