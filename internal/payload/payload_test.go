package payload

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := RunSettings{
		RunID:             "r-42",
		ResultsDir:        "/tmp/results",
		LogLevel:          "debug",
		MonitoringEnabled: true,
	}

	blob, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var out RunSettings
	if err := Decode(blob, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestDecodeRejectsInvalidBase64(t *testing.T) {
	var out RunSettings
	err := Decode("not base64 at all!!", &out)
	if err == nil {
		t.Fatal("Decode accepted invalid base64")
	}
	if !strings.Contains(err.Error(), "base64") {
		t.Errorf("error = %v, want base64 error", err)
	}
}

func TestDecodeRejectsMismatchedSchema(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"unknown field", `{"results_dir":"/tmp","intruder":1}`},
		{"wrong type", `{"monitoring_enabled":"yes"}`},
		{"not an object", `[1,2,3]`},
		{"trailing document", `{"results_dir":"/tmp"} {"results_dir":"/o"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := base64.StdEncoding.EncodeToString([]byte(tt.json))
			var out RunSettings
			if err := Decode(blob, &out); err == nil {
				t.Errorf("Decode accepted %s", tt.json)
			}
		})
	}
}

func TestDecodeEndpointList(t *testing.T) {
	blob, err := Encode([]EndpointInfo{
		{Direction: "NEST_TO_TVB", Address: "127.0.0.1:9001"},
		{Direction: "TVB_TO_NEST", Address: "127.0.0.1:9002"},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var out []EndpointInfo
	if err := Decode(blob, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Direction != "NEST_TO_TVB" || out[1].Address != "127.0.0.1:9002" {
		t.Errorf("decoded %+v", out)
	}
}

func TestValidate(t *testing.T) {
	if err := (RunSettings{}).Validate(); err == nil {
		t.Error("empty RunSettings validated")
	}
	if err := (RunSettings{ResultsDir: "/tmp"}).Validate(); err != nil {
		t.Errorf("valid RunSettings rejected: %v", err)
	}
	if err := (EndpointInfo{Direction: "NEST_TO_TVB"}).Validate(); err == nil {
		t.Error("endpoint without address validated")
	}
	if err := (EndpointInfo{Direction: "NEST_TO_TVB", Address: "h:1"}).Validate(); err != nil {
		t.Errorf("valid endpoint rejected: %v", err)
	}
}
