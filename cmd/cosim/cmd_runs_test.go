package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/multiscale-cosim/cosim-adapters/internal/store"
)

func seedRegistry(t *testing.T, base string) {
	t.Helper()
	registry, err := store.Open(filepath.Join(base, "registry.db"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	defer registry.Close()

	ctx := context.Background()
	run := store.Run{
		ID:        "exp1-hub-spikes_to_rates",
		Kind:      "hub",
		Direction: "spikes_to_rates",
		PID:       1234,
		StartedAt: time.Now(),
	}
	if err := registry.RecordStart(ctx, run); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	if err := registry.RecordStop(ctx, run.ID, store.StatusCompleted); err != nil {
		t.Fatalf("RecordStop: %v", err)
	}
	sample := store.Sample{
		RunID:      run.ID,
		SampledAt:  time.Now(),
		CPUSeconds: 0.25,
		RSSBytes:   1 << 20,
	}
	if err := registry.AddSample(ctx, sample); err != nil {
		t.Fatalf("AddSample: %v", err)
	}
}

func TestRunsCommandListsRuns(t *testing.T) {
	isolateHome(t)
	base := t.TempDir()
	seedRegistry(t, base)

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"runs", "--results", base})
	if err := root.Execute(); err != nil {
		t.Fatalf("runs: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "exp1-hub-spikes_to_rates") || !strings.Contains(out, "completed") {
		t.Errorf("runs output missing the recorded run:\n%s", out)
	}
}

func TestRunsCommandJSON(t *testing.T) {
	isolateHome(t)
	base := t.TempDir()
	seedRegistry(t, base)

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"runs", "--results", base, "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d runs, want 1", len(out))
	}
	if out[0]["id"] != "exp1-hub-spikes_to_rates" || out[0]["status"] != store.StatusCompleted {
		t.Errorf("run record = %v", out[0])
	}
}

func TestRunsCommandShowsSamples(t *testing.T) {
	isolateHome(t)
	base := t.TempDir()
	seedRegistry(t, base)

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"runs", "--results", base, "--run", "exp1-hub-spikes_to_rates"})
	if err := root.Execute(); err != nil {
		t.Fatalf("runs --run: %v", err)
	}
	if !strings.Contains(buf.String(), "CPU_SECONDS") {
		t.Errorf("samples output missing header:\n%s", buf.String())
	}
}

func TestRunsCommandUnknownRun(t *testing.T) {
	isolateHome(t)
	base := t.TempDir()
	seedRegistry(t, base)

	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"runs", "--results", base, "--run", "nope"})
	if err := root.Execute(); err == nil {
		t.Error("unknown run ID accepted")
	}
}
