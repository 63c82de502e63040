package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/multiscale-cosim/cosim-adapters/internal/logging"
	"github.com/multiscale-cosim/cosim-adapters/internal/payload"
	"github.com/multiscale-cosim/cosim-adapters/internal/results"
	"github.com/multiscale-cosim/cosim-adapters/internal/science"
	"github.com/multiscale-cosim/cosim-adapters/internal/store"
)

// adapterSettings is the decoded form of the argv payload block every
// adapter process receives from the Application Companion: run settings,
// log settings, and the science-parameter file path, in that order.
type adapterSettings struct {
	Run    payload.RunSettings
	Log    payload.LogSettings
	Params science.Parameters
	Layout results.Layout
}

// decodeAdapterSettings decodes and validates the three payload arguments.
// Any blob that does not match its schema exactly is rejected here, before
// a value from it is used.
func decodeAdapterSettings(runArg, logArg, sciArg string) (adapterSettings, error) {
	var s adapterSettings

	if err := payload.Decode(runArg, &s.Run); err != nil {
		return s, fmt.Errorf("run settings: %w", err)
	}
	if err := s.Run.Validate(); err != nil {
		return s, err
	}
	if s.Run.RunID == "" {
		s.Run.RunID = uuid.NewString()
	}

	if err := payload.Decode(logArg, &s.Log); err != nil {
		return s, fmt.Errorf("log settings: %w", err)
	}
	if s.Log.Level == "" {
		s.Log.Level = s.Run.LogLevel
	}

	var sciPath string
	if err := payload.Decode(sciArg, &sciPath); err != nil {
		return s, fmt.Errorf("science parameter path: %w", err)
	}
	params, err := science.Load(sciPath)
	if err != nil {
		return s, err
	}
	s.Params = params

	s.Layout = results.NewLayout(s.Run.ResultsDir)
	return s, nil
}

// traceLevel returns the level the trace logger should be opened at: the
// log level, forced down to trace when the payload enables tracing.
func (s adapterSettings) traceLevel() string {
	if s.Log.TraceEnabled {
		return "trace"
	}
	return s.Log.Level
}

// openLogging builds the stderr logger and the trace logger for an
// adapter process. stdout stays reserved for the steering handshake.
func (s adapterSettings) openLogging(name string) (*slog.Logger, *logging.TraceLogger) {
	log := logging.New(name, s.Log.Level, os.Stderr)
	trace := logging.NewTraceLogger(s.Layout.Logs(), name, s.traceLevel())
	return log, trace
}

// openRegistry opens the run registry under the run's results directory.
func (s adapterSettings) openRegistry() (*store.Registry, error) {
	return store.Open(filepath.Join(s.Run.ResultsDir, "registry.db"))
}

// newRun builds the registry record for this adapter process. The record
// ID extends the run ID with the process role, so the hub managers and the
// simulator of one run register side by side.
func (s adapterSettings) newRun(kind, suffix string) store.Run {
	id := s.Run.RunID + "-" + kind
	if suffix != "" {
		id += "-" + suffix
	}
	return store.Run{
		ID:        id,
		Kind:      kind,
		Direction: suffix,
		PID:       os.Getpid(),
		StartedAt: time.Now(),
	}
}
