// Package wire frames the data exchanged between the simulators and the
// inter-scale hub. Each direction is a stream of Arrow IPC record batches
// over a byte stream (normally a TCP connection): one batch per
// synchronization window, empty batches included, so window boundaries
// survive the transport.
package wire

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// SpikeEvent is one spike emitted by the spiking side.
type SpikeEvent struct {
	SenderID int32
	TimeMs   float64
}

// RateSample is the firing rate of one proxy node over one window.
type RateSample struct {
	NodeID  int32
	RateHz  float64
	StartMs float64
	EndMs   float64
}

var (
	spikeSchema = arrow.NewSchema([]arrow.Field{
		{Name: "sender_id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "time_ms", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	rateSchema = arrow.NewSchema([]arrow.Field{
		{Name: "node_id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "rate_hz", Type: arrow.PrimitiveTypes.Float64},
		{Name: "start_ms", Type: arrow.PrimitiveTypes.Float64},
		{Name: "end_ms", Type: arrow.PrimitiveTypes.Float64},
	}, nil)
)

// SpikeWriter writes spike batches to a stream.
type SpikeWriter struct {
	w   *ipc.Writer
	mem memory.Allocator
}

// NewSpikeWriter wraps w in an Arrow IPC stream of spike batches.
func NewSpikeWriter(w io.Writer) *SpikeWriter {
	mem := memory.NewGoAllocator()
	return &SpikeWriter{
		w:   ipc.NewWriter(w, ipc.WithSchema(spikeSchema), ipc.WithAllocator(mem)),
		mem: mem,
	}
}

// Write emits one window's spikes as a single batch. events may be empty.
func (sw *SpikeWriter) Write(events []SpikeEvent) error {
	b := array.NewRecordBuilder(sw.mem, spikeSchema)
	defer b.Release()

	ids := b.Field(0).(*array.Int32Builder)
	times := b.Field(1).(*array.Float64Builder)
	for _, ev := range events {
		ids.Append(ev.SenderID)
		times.Append(ev.TimeMs)
	}

	rec := b.NewRecord()
	defer rec.Release()
	if err := sw.w.Write(rec); err != nil {
		return fmt.Errorf("wire: write spike batch: %w", err)
	}
	return nil
}

// Close terminates the stream. The peer's reader observes io.EOF.
func (sw *SpikeWriter) Close() error {
	return sw.w.Close()
}

// SpikeReader reads spike batches from a stream.
type SpikeReader struct {
	r *ipc.Reader
}

// NewSpikeReader wraps r. It blocks until the stream schema arrives and
// rejects streams that do not carry spike batches.
func NewSpikeReader(r io.Reader) (*SpikeReader, error) {
	ir, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("wire: open spike stream: %w", err)
	}
	if !ir.Schema().Equal(spikeSchema) {
		ir.Release()
		return nil, fmt.Errorf("wire: unexpected schema %s on spike stream", ir.Schema())
	}
	return &SpikeReader{r: ir}, nil
}

// Read returns the next window's spikes. io.EOF marks a cleanly closed
// stream. An empty slice is a valid window with no spikes.
func (sr *SpikeReader) Read() ([]SpikeEvent, error) {
	if !sr.r.Next() {
		if err := sr.r.Err(); err != nil {
			return nil, fmt.Errorf("wire: read spike batch: %w", err)
		}
		return nil, io.EOF
	}

	rec := sr.r.Record()
	ids := rec.Column(0).(*array.Int32)
	times := rec.Column(1).(*array.Float64)

	events := make([]SpikeEvent, rec.NumRows())
	for i := range events {
		events[i] = SpikeEvent{SenderID: ids.Value(i), TimeMs: times.Value(i)}
	}
	return events, nil
}

// Release frees the reader's resources.
func (sr *SpikeReader) Release() {
	sr.r.Release()
}

// RateWriter writes rate batches to a stream.
type RateWriter struct {
	w   *ipc.Writer
	mem memory.Allocator
}

// NewRateWriter wraps w in an Arrow IPC stream of rate batches.
func NewRateWriter(w io.Writer) *RateWriter {
	mem := memory.NewGoAllocator()
	return &RateWriter{
		w:   ipc.NewWriter(w, ipc.WithSchema(rateSchema), ipc.WithAllocator(mem)),
		mem: mem,
	}
}

// Write emits one window's rates as a single batch.
func (rw *RateWriter) Write(samples []RateSample) error {
	b := array.NewRecordBuilder(rw.mem, rateSchema)
	defer b.Release()

	nodes := b.Field(0).(*array.Int32Builder)
	rates := b.Field(1).(*array.Float64Builder)
	starts := b.Field(2).(*array.Float64Builder)
	ends := b.Field(3).(*array.Float64Builder)
	for _, s := range samples {
		nodes.Append(s.NodeID)
		rates.Append(s.RateHz)
		starts.Append(s.StartMs)
		ends.Append(s.EndMs)
	}

	rec := b.NewRecord()
	defer rec.Release()
	if err := rw.w.Write(rec); err != nil {
		return fmt.Errorf("wire: write rate batch: %w", err)
	}
	return nil
}

// Close terminates the stream.
func (rw *RateWriter) Close() error {
	return rw.w.Close()
}

// RateReader reads rate batches from a stream.
type RateReader struct {
	r *ipc.Reader
}

// NewRateReader wraps r, blocking until the stream schema arrives.
func NewRateReader(r io.Reader) (*RateReader, error) {
	ir, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("wire: open rate stream: %w", err)
	}
	if !ir.Schema().Equal(rateSchema) {
		ir.Release()
		return nil, fmt.Errorf("wire: unexpected schema %s on rate stream", ir.Schema())
	}
	return &RateReader{r: ir}, nil
}

// Read returns the next window's rates. io.EOF marks a cleanly closed
// stream.
func (rr *RateReader) Read() ([]RateSample, error) {
	if !rr.r.Next() {
		if err := rr.r.Err(); err != nil {
			return nil, fmt.Errorf("wire: read rate batch: %w", err)
		}
		return nil, io.EOF
	}

	rec := rr.r.Record()
	nodes := rec.Column(0).(*array.Int32)
	rates := rec.Column(1).(*array.Float64)
	starts := rec.Column(2).(*array.Float64)
	ends := rec.Column(3).(*array.Float64)

	samples := make([]RateSample, rec.NumRows())
	for i := range samples {
		samples[i] = RateSample{
			NodeID:  nodes.Value(i),
			RateHz:  rates.Value(i),
			StartMs: starts.Value(i),
			EndMs:   ends.Value(i),
		}
	}
	return samples, nil
}

// Release frees the reader's resources.
func (rr *RateReader) Release() {
	rr.r.Release()
}
