// Package logging provides leveled logging for the adapter processes.
// Operational output goes to a leveled slog.Logger on stderr (stdout is
// reserved for the steering handshake); at debug level and below, exchange
// events are additionally traced to a JSONL file under the run's logs
// directory.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug used for per-window
// exchange traffic.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a level name to a slog.Level. Supported values are
// "info", "debug" and "trace" (case-insensitive); anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// New creates a leveled slog.Logger writing to w, tagged with the adapter
// name so interleaved hub and simulator output stays attributable.
func New(name, level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts)).With("adapter", name)
}

// TraceLogger appends structured exchange events to a JSONL file. It is
// safe for concurrent use, and a nil *TraceLogger is valid: every method is
// a no-op on a nil receiver.
type TraceLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewTraceLogger opens dir/<name>.trace.jsonl for append when the level
// enables tracing ("debug" or "trace"). At "info" it returns nil, as does
// any open failure; callers use the nil-safe methods unconditionally.
func NewTraceLogger(dir, name, level string) *TraceLogger {
	if ParseLevel(level) >= slog.LevelInfo {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, name+".trace.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return &TraceLogger{file: f}
}

// Event writes one trace record as a JSONL line, adding kind and a UTC
// timestamp. The caller's map is not mutated.
func (tl *TraceLogger) Event(kind string, fields map[string]any) {
	if tl == nil || tl.file == nil {
		return
	}

	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["kind"] = kind
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	tl.mu.Lock()
	defer tl.mu.Unlock()
	_, _ = tl.file.Write(data)
}

// Close closes the underlying file. Safe on a nil receiver.
func (tl *TraceLogger) Close() {
	if tl == nil || tl.file == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.file.Close()
	tl.file = nil
}
