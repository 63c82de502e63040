// Package steering implements the lifecycle protocol spoken with the parent
// Application Companion process: a one-line JSON handshake on stdout after
// initialization, then steering commands read one per line from stdin.
package steering

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Command is a lifecycle instruction from the parent orchestrator.
type Command int

const (
	CommandUnknown Command = iota
	CommandInit
	CommandStart
	CommandEnd
)

// String returns the wire name of the command.
func (c Command) String() string {
	switch c {
	case CommandInit:
		return "INIT"
	case CommandStart:
		return "START"
	case CommandEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// ParseCommand maps a wire name to a Command. Leading and trailing
// whitespace is ignored; anything else is an error.
func ParseCommand(s string) (Command, error) {
	switch strings.TrimSpace(s) {
	case "INIT":
		return CommandInit, nil
	case "START":
		return CommandStart, nil
	case "END":
		return CommandEnd, nil
	default:
		return CommandUnknown, fmt.Errorf("steering: unknown command: %q", strings.TrimSpace(s))
	}
}

// Handshake is the response to INIT. The parent reads it from stdout via a
// pipe and expects exactly these keys.
type Handshake struct {
	PID                  int     `json:"PID"`
	LocalMinimumStepSize float64 `json:"LOCAL_MINIMUM_STEP_SIZE"`
}

// Write emits the handshake as a single line on w.
func (h Handshake) Write(w io.Writer) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("steering: marshal handshake: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("steering: write handshake: %w", err)
	}
	return nil
}

// Session reads steering commands from a parent process.
type Session struct {
	scanner *bufio.Scanner
}

// NewSession wraps r (normally stdin) for command reading.
func NewSession(r io.Reader) *Session {
	return &Session{scanner: bufio.NewScanner(r)}
}

// Next blocks until the parent sends the next command line. io.EOF is
// returned when the parent closes the pipe without a further command.
func (s *Session) Next() (Command, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return CommandUnknown, fmt.Errorf("steering: read command: %w", err)
		}
		return CommandUnknown, io.EOF
	}
	return ParseCommand(s.scanner.Text())
}
