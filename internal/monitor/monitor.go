// Package monitor samples the resource usage of the running adapter process
// and records it through the run registry. It is started only when the
// Application Companion enables monitoring for the run.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/multiscale-cosim/cosim-adapters/internal/store"
)

// Recorder receives collected samples. *store.Registry implements it.
type Recorder interface {
	AddSample(ctx context.Context, s store.Sample) error
}

// Usage is one point-in-time resource observation.
type Usage struct {
	CPUSeconds float64
	RSSBytes   int64
}

// Monitor periodically samples the current process.
type Monitor struct {
	runID    string
	interval time.Duration
	rec      Recorder
	log      *slog.Logger
}

// New creates a monitor for the given run.
func New(runID string, interval time.Duration, rec Recorder, log *slog.Logger) *Monitor {
	return &Monitor{runID: runID, interval: interval, rec: rec, log: log}
}

// Run samples until ctx is cancelled; cancellation is the normal way to
// stop monitoring and yields a nil error. Unreadable samples are logged
// and skipped, not fatal.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			usage, err := ReadSelfUsage()
			if err != nil {
				m.log.Debug("resource sample unavailable", "error", err)
				continue
			}
			sample := store.Sample{
				RunID:      m.runID,
				SampledAt:  time.Now(),
				CPUSeconds: usage.CPUSeconds,
				RSSBytes:   usage.RSSBytes,
			}
			if err := m.rec.AddSample(ctx, sample); err != nil {
				m.log.Warn("failed to record resource sample", "error", err)
			}
		}
	}
}
