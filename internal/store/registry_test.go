package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordStartAndStop(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	run := Run{
		ID:        "hub-1",
		Kind:      "hub",
		Direction: "NEST_TO_TVB",
		PID:       1234,
		StartedAt: time.Now(),
	}
	if err := r.RecordStart(ctx, run); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	got, err := r.GetRun(ctx, "hub-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("run not found after RecordStart")
	}
	if got.Status != StatusRunning || got.Direction != "NEST_TO_TVB" || got.PID != 1234 {
		t.Errorf("run = %+v", got)
	}
	if got.StoppedAt != nil {
		t.Error("StoppedAt set on running run")
	}

	if err := r.RecordStop(ctx, "hub-1", StatusCompleted); err != nil {
		t.Fatalf("RecordStop: %v", err)
	}
	got, err = r.GetRun(ctx, "hub-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != StatusCompleted || got.StoppedAt == nil {
		t.Errorf("stopped run = %+v", got)
	}
}

func TestRecordStartRequiresID(t *testing.T) {
	r := openTestRegistry(t)
	if err := r.RecordStart(context.Background(), Run{Kind: "hub"}); err == nil {
		t.Error("RecordStart accepted empty ID")
	}
}

func TestRecordStopUnknownRun(t *testing.T) {
	r := openTestRegistry(t)
	if err := r.RecordStop(context.Background(), "ghost", StatusFailed); err == nil {
		t.Error("RecordStop accepted unknown run")
	}
}

func TestGetRunMissing(t *testing.T) {
	r := openTestRegistry(t)
	got, err := r.GetRun(context.Background(), "absent")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("GetRun = %+v, want nil", got)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		run := Run{ID: id, Kind: "simulator", PID: i, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := r.RecordStart(ctx, run); err != nil {
			t.Fatalf("RecordStart(%s): %v", id, err)
		}
	}

	runs, err := r.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len = %d, want 3", len(runs))
	}
	if runs[0].ID != "c" || runs[2].ID != "a" {
		t.Errorf("order = %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestSamples(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	run := Run{ID: "sim-1", Kind: "simulator", PID: 7, StartedAt: time.Now()}
	if err := r.RecordStart(ctx, run); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	base := time.Now()
	for i := 0; i < 3; i++ {
		s := Sample{
			RunID:      "sim-1",
			SampledAt:  base.Add(time.Duration(i) * time.Second),
			CPUSeconds: float64(i) * 0.5,
			RSSBytes:   int64(1 << 20 * (i + 1)),
		}
		if err := r.AddSample(ctx, s); err != nil {
			t.Fatalf("AddSample: %v", err)
		}
	}

	samples, err := r.Samples(ctx, "sim-1")
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("len = %d, want 3", len(samples))
	}
	if samples[0].CPUSeconds != 0 || samples[2].RSSBytes != 3<<20 {
		t.Errorf("samples = %+v", samples)
	}
}

func TestSampleForeignKey(t *testing.T) {
	r := openTestRegistry(t)
	s := Sample{RunID: "nobody", SampledAt: time.Now()}
	if err := r.AddSample(context.Background(), s); err == nil {
		t.Error("AddSample accepted sample for unknown run")
	}
}
