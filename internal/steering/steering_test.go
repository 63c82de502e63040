package steering

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    Command
		wantErr bool
	}{
		{"INIT", CommandInit, false},
		{"START", CommandStart, false},
		{"END", CommandEnd, false},
		{"  START\n", CommandStart, false},
		{"start", CommandUnknown, true},
		{"STOP", CommandUnknown, true},
		{"", CommandUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// The parent process parses this line verbatim; the key names and the
// single-line framing are part of the contract.
func TestHandshakeFormat(t *testing.T) {
	var buf bytes.Buffer
	h := Handshake{PID: 4242, LocalMinimumStepSize: 0.05}
	if err := h.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := buf.String()
	want := `{"PID":4242,"LOCAL_MINIMUM_STEP_SIZE":0.05}` + "\n"
	if got != want {
		t.Errorf("handshake = %q, want %q", got, want)
	}
}

func TestSessionNext(t *testing.T) {
	s := NewSession(strings.NewReader("START\nEND\n"))

	cmd, err := s.Next()
	if err != nil || cmd != CommandStart {
		t.Fatalf("first Next = %v, %v; want START", cmd, err)
	}
	cmd, err = s.Next()
	if err != nil || cmd != CommandEnd {
		t.Fatalf("second Next = %v, %v; want END", cmd, err)
	}
	if _, err = s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after close = %v, want io.EOF", err)
	}
}

func TestSessionNextUnknown(t *testing.T) {
	s := NewSession(strings.NewReader("REWIND\n"))
	cmd, err := s.Next()
	if err == nil {
		t.Fatal("Next accepted unknown command")
	}
	if cmd != CommandUnknown {
		t.Errorf("cmd = %v, want CommandUnknown", cmd)
	}
}
