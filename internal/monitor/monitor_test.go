package monitor

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/multiscale-cosim/cosim-adapters/internal/store"
)

type captureRecorder struct {
	mu      sync.Mutex
	samples []store.Sample
}

func (c *captureRecorder) AddSample(ctx context.Context, s store.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, s)
	return nil
}

func (c *captureRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadSelfUsage(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("procfs sampling is linux-only")
	}

	usage, err := ReadSelfUsage()
	if err != nil {
		t.Fatalf("ReadSelfUsage: %v", err)
	}
	if usage.RSSBytes <= 0 {
		t.Errorf("RSSBytes = %d, want > 0", usage.RSSBytes)
	}
	if usage.CPUSeconds < 0 {
		t.Errorf("CPUSeconds = %v, want >= 0", usage.CPUSeconds)
	}
}

func TestMonitorCollectsUntilCancelled(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("procfs sampling is linux-only")
	}

	rec := &captureRecorder{}
	m := New("run-1", 20*time.Millisecond, rec, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for rec.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("collected %d samples before deadline", rec.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, s := range rec.samples {
		if s.RunID != "run-1" {
			t.Errorf("sample %d run ID = %q", i, s.RunID)
		}
		if s.RSSBytes <= 0 {
			t.Errorf("sample %d RSS = %d", i, s.RSSBytes)
		}
	}
}
