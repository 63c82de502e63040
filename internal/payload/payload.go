// Package payload encodes and decodes the configuration blobs passed on the
// command line by the Application Companion. A payload is standard base64
// wrapping a JSON document; decoding is strict, so a blob that does not match
// the expected schema is rejected before any of its values are used.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// RunSettings carries the per-run configuration handed to an adapter process.
type RunSettings struct {
	RunID             string `json:"run_id"`
	ResultsDir        string `json:"results_dir"`
	LogLevel          string `json:"log_level"`
	MonitoringEnabled bool   `json:"monitoring_enabled"`
}

// LogSettings carries the logging configuration for an adapter process.
type LogSettings struct {
	Level        string `json:"level"`
	TraceEnabled bool   `json:"trace_enabled"`
}

// EndpointInfo describes one hub endpoint handed to the simulator adapter:
// the exchange direction it serves and the address the adapter should dial.
type EndpointInfo struct {
	Direction string `json:"direction"`
	Address   string `json:"address"`
}

// Decode unpacks a base64(JSON) payload into v. Unknown fields, trailing
// data, and type mismatches are all errors; a payload either matches the
// target schema exactly or is rejected.
func Decode(s string, v any) error {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("payload: invalid base64: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("payload: schema mismatch: %w", err)
	}
	// A valid payload is exactly one JSON document.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("payload: trailing data after document")
	}
	return nil
}

// Encode packs v as base64(JSON). Inverse of Decode.
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("payload: encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Validate checks the fields an adapter cannot run without.
func (s RunSettings) Validate() error {
	if s.ResultsDir == "" {
		return fmt.Errorf("payload: run settings: results_dir is required")
	}
	return nil
}

// Validate checks that the endpoint record is complete.
func (e EndpointInfo) Validate() error {
	if e.Direction == "" {
		return fmt.Errorf("payload: endpoint: direction is required")
	}
	if e.Address == "" {
		return fmt.Errorf("payload: endpoint: address is required")
	}
	return nil
}
