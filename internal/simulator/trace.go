package simulator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes the trace as a header row followed by one row per
// synchronization window: time_ms,node_0,node_1,...
func (t *Trace) WriteCSV(w io.Writer) error {
	if len(t.TimesMs) != len(t.States) {
		return fmt.Errorf("simulator: trace has %d times but %d states", len(t.TimesMs), len(t.States))
	}
	cw := csv.NewWriter(w)

	nodes := 0
	if len(t.States) > 0 {
		nodes = len(t.States[0])
	}
	header := make([]string, 0, nodes+1)
	header = append(header, "time_ms")
	for i := 0; i < nodes; i++ {
		header = append(header, fmt.Sprintf("node_%d", i))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("simulator: write trace header: %w", err)
	}

	row := make([]string, nodes+1)
	for i, tm := range t.TimesMs {
		if len(t.States[i]) != nodes {
			return fmt.Errorf("simulator: window %d has %d nodes, want %d", i, len(t.States[i]), nodes)
		}
		row[0] = strconv.FormatFloat(tm, 'g', -1, 64)
		for j, v := range t.States[i] {
			row[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("simulator: write trace row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
