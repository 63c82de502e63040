// Package results manages the shared on-disk layout of a co-simulation run.
// One process (the spikes-to-rates hub, historically) creates the layout;
// everyone else waits for it to appear before writing into it.
package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Subdirectories of a run's results base path.
const (
	LogsDir       = "logs"
	FiguresDir    = "figures"
	PortInfoDir   = "port_info"
	MonitoringDir = "monitoring"
)

// Layout addresses the result directories of one run.
type Layout struct {
	base string
}

// NewLayout returns a Layout rooted at base. Nothing is created.
func NewLayout(base string) Layout {
	return Layout{base: base}
}

// Base returns the root of the layout.
func (l Layout) Base() string { return l.base }

// Logs returns the directory for operational and trace logs.
func (l Layout) Logs() string { return filepath.Join(l.base, LogsDir) }

// Figures returns the directory for post-processing output.
func (l Layout) Figures() string { return filepath.Join(l.base, FiguresDir) }

// PortInfo returns the directory holding endpoint discovery files.
func (l Layout) PortInfo() string { return filepath.Join(l.base, PortInfoDir) }

// Monitoring returns the directory for resource usage data.
func (l Layout) Monitoring() string { return filepath.Join(l.base, MonitoringDir) }

// Ensure creates the full layout. It is idempotent.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.base, l.Logs(), l.Figures(), l.PortInfo(), l.Monitoring()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("results: creating %s: %w", dir, err)
		}
	}
	return nil
}

// Exists reports whether the layout has been fully created.
func (l Layout) Exists() bool {
	for _, dir := range []string{l.Logs(), l.Figures(), l.PortInfo(), l.Monitoring()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// Wait polls until another process has created the layout, or ctx is done.
func (l Layout) Wait(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Exists() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("results: waiting for layout at %s: %w", l.base, ctx.Err())
		case <-ticker.C:
		}
	}
}

// PortInfoPath returns the discovery file path for the named endpoint.
func (l Layout) PortInfoPath(name string) string {
	return filepath.Join(l.PortInfo(), name+".json")
}
