package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewTagsAdapterName(t *testing.T) {
	var buf bytes.Buffer
	log := New("hub", "info", &buf)
	log.Info("started", "direction", "NEST_TO_TVB")

	out := buf.String()
	if !strings.Contains(out, "adapter=hub") {
		t.Errorf("output missing adapter tag: %q", out)
	}
	if !strings.Contains(out, "direction=NEST_TO_TVB") {
		t.Errorf("output missing attribute: %q", out)
	}
}

func TestTraceLoggerDisabledAtInfo(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "hub", "info")
	if tl != nil {
		t.Fatal("trace logger created at info level")
	}

	// Nil receiver must be usable.
	tl.Event("window", map[string]any{"n": 1})
	tl.Close()

	if _, err := os.Stat(filepath.Join(dir, "hub.trace.jsonl")); !os.IsNotExist(err) {
		t.Error("trace file created at info level")
	}
}

func TestTraceLoggerWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "simulator", "debug")
	if tl == nil {
		t.Fatal("trace logger not created at debug level")
	}
	defer tl.Close()

	tl.Event("window", map[string]any{"index": 0, "rate_hz": 12.5})
	tl.Event("window", map[string]any{"index": 1, "rate_hz": 13.0})
	tl.Close()

	f, err := os.Open(filepath.Join(dir, "simulator.trace.jsonl"))
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	defer f.Close()

	var count int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %d not valid JSON: %v", count, err)
		}
		if entry["kind"] != "window" {
			t.Errorf("line %d kind = %v", count, entry["kind"])
		}
		if _, ok := entry["time"]; !ok {
			t.Errorf("line %d missing time", count)
		}
		count++
	}
	if count != 2 {
		t.Errorf("trace lines = %d, want 2", count)
	}
}
