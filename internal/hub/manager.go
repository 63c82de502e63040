package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/multiscale-cosim/cosim-adapters/internal/logging"
	"github.com/multiscale-cosim/cosim-adapters/internal/results"
	"github.com/multiscale-cosim/cosim-adapters/internal/science"
	"github.com/multiscale-cosim/cosim-adapters/internal/transform"
	"github.com/multiscale-cosim/cosim-adapters/internal/wire"
)

// Manager runs one direction of the inter-scale exchange. Bind reserves the
// endpoints, Start serves a full exchange session (blocking until the
// sending peer closes its stream), Stop aborts a running session.
type Manager interface {
	Bind() error
	Start(ctx context.Context) error
	Stop() error
	Direction() Direction
	ReceiveAddr() string
	SendAddr() string
}

// Options configures a manager.
type Options struct {
	Layout   results.Layout
	BindHost string
	Params   science.Parameters
	Log      *slog.Logger
	Trace    *logging.TraceLogger
}

// NewManager selects the manager implementation for a direction.
func NewManager(d Direction, opts Options) (Manager, error) {
	switch d {
	case SpikesToRates:
		return NewSpikesToRatesManager(opts), nil
	case RatesToSpikes:
		return NewRatesToSpikesManager(opts), nil
	default:
		return nil, fmt.Errorf("hub: no manager for direction %d", d)
	}
}

// PortInfo is the endpoint discovery record a manager publishes under the
// run's port_info directory.
type PortInfo struct {
	Direction      string `json:"direction"`
	ReceiveAddress string `json:"receive_address"`
	SendAddress    string `json:"send_address"`
	PID            int    `json:"pid"`
}

// ReadPortInfo loads a discovery record written by a hub manager.
func ReadPortInfo(path string) (PortInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PortInfo{}, fmt.Errorf("hub: reading port info %s: %w", path, err)
	}
	var info PortInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return PortInfo{}, fmt.Errorf("hub: parsing port info %s: %w", path, err)
	}
	return info, nil
}

// Populations derives the spiking population blocks from the science
// parameters. Parameters are validated on load, so the two ID lists are
// the same length here.
func Populations(p science.Parameters) []transform.Population {
	pops := make([]transform.Population, len(p.ProxyNodeIDs))
	for i, node := range p.ProxyNodeIDs {
		pops[i] = transform.Population{
			NodeID:      int32(node),
			FirstNeuron: int32(p.FirstNeuronIDs[i]),
			Size:        int32(p.PopulationSize),
		}
	}
	return pops
}

// endpoints holds the shared listener plumbing of both managers.
type endpoints struct {
	opts Options
	dir  Direction

	mu     sync.Mutex
	recvLn net.Listener
	sendLn net.Listener
	cancel context.CancelFunc
}

// Bind reserves both TCP endpoints on ephemeral ports. Idempotent.
func (e *endpoints) Bind() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recvLn != nil {
		return nil
	}

	addr := net.JoinHostPort(e.opts.BindHost, "0")
	recvLn, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("hub: bind receive endpoint: %w", err)
	}
	sendLn, err := net.Listen("tcp", addr)
	if err != nil {
		recvLn.Close()
		return fmt.Errorf("hub: bind send endpoint: %w", err)
	}
	e.recvLn = recvLn
	e.sendLn = sendLn
	return nil
}

// Direction returns the direction this manager serves.
func (e *endpoints) Direction() Direction { return e.dir }

// ReceiveAddr returns the bound receive address, or "" before Bind.
func (e *endpoints) ReceiveAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recvLn == nil {
		return ""
	}
	return e.recvLn.Addr().String()
}

// SendAddr returns the bound send address, or "" before Bind.
func (e *endpoints) SendAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sendLn == nil {
		return ""
	}
	return e.sendLn.Addr().String()
}

// Stop aborts a running session and releases the endpoints.
func (e *endpoints) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.recvLn != nil {
		e.recvLn.Close()
	}
	if e.sendLn != nil {
		e.sendLn.Close()
	}
	return nil
}

// publish writes the discovery record for this manager's endpoints.
func (e *endpoints) publish() error {
	info := PortInfo{
		Direction:      e.dir.String(),
		ReceiveAddress: e.ReceiveAddr(),
		SendAddress:    e.SendAddr(),
		PID:            os.Getpid(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("hub: marshal port info: %w", err)
	}
	path := e.opts.Layout.PortInfoPath(e.dir.EndpointName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("hub: write port info: %w", err)
	}
	e.opts.Log.Info("endpoints published",
		"direction", e.dir.String(),
		"receive", info.ReceiveAddress,
		"send", info.SendAddress)
	return nil
}

// acceptPair waits for one peer on each endpoint. Cancelling ctx closes the
// listeners, which unblocks the pending accepts.
func (e *endpoints) acceptPair(ctx context.Context) (recv, send net.Conn, err error) {
	g, gctx := errgroup.WithContext(ctx)
	accepted := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			e.mu.Lock()
			if e.recvLn != nil {
				e.recvLn.Close()
			}
			if e.sendLn != nil {
				e.sendLn.Close()
			}
			e.mu.Unlock()
		case <-accepted:
		}
	}()

	g.Go(func() error {
		c, aerr := e.recvLn.Accept()
		if aerr != nil {
			return fmt.Errorf("hub: accept on receive endpoint: %w", aerr)
		}
		recv = c
		return nil
	})
	g.Go(func() error {
		c, aerr := e.sendLn.Accept()
		if aerr != nil {
			return fmt.Errorf("hub: accept on send endpoint: %w", aerr)
		}
		send = c
		return nil
	})

	err = g.Wait()
	close(accepted)
	if err != nil {
		if recv != nil {
			recv.Close()
		}
		if send != nil {
			send.Close()
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}
	return recv, send, nil
}

// session wires ctx cancellation to the connections so blocked reads and
// writes abort, and remembers the cancel for Stop.
func (e *endpoints) session(ctx context.Context, recv, send net.Conn) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			recv.Close()
			send.Close()
		case <-done:
		}
	}()
	return ctx, func() {
		close(done)
		cancel()
		recv.Close()
		send.Close()
	}
}

// SpikesToRatesManager receives spike batches from the spiking side,
// pivots them into population rate waves, and sends those to the rate
// side. It owns the shared result layout: it creates the directories the
// other processes of the run wait for.
type SpikesToRatesManager struct {
	endpoints
}

// NewSpikesToRatesManager builds the manager; endpoints are reserved on
// Bind or Start.
func NewSpikesToRatesManager(opts Options) *SpikesToRatesManager {
	return &SpikesToRatesManager{endpoints: endpoints{opts: opts, dir: SpikesToRates}}
}

// Start serves one exchange session. It returns when the spiking peer
// closes its stream, or with an error on transport failure or Stop.
func (m *SpikesToRatesManager) Start(ctx context.Context) error {
	if err := m.opts.Layout.Ensure(); err != nil {
		return err
	}
	if err := m.Bind(); err != nil {
		return err
	}
	if err := m.publish(); err != nil {
		return err
	}

	recvConn, sendConn, err := m.acceptPair(ctx)
	if err != nil {
		return err
	}
	ctx, finish := m.session(ctx, recvConn, sendConn)
	defer finish()

	reader, err := wire.NewSpikeReader(recvConn)
	if err != nil {
		return err
	}
	defer reader.Release()
	writer := wire.NewRateWriter(sendConn)

	pops := Populations(m.opts.Params)
	syncMs := m.opts.Params.SynchronizationTimeMs
	width := m.opts.Params.SpikeWindowMs

	for window := 0; ; window++ {
		events, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		start := float64(window) * syncMs
		samples := transform.SpikesToRates(events, pops, start, start+syncMs, width)
		m.opts.Trace.Event("pivot", map[string]any{
			"direction": m.dir.String(),
			"window":    window,
			"spikes":    len(events),
			"samples":   len(samples),
		})
		if err := writer.Write(samples); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("hub: close rate stream: %w", err)
	}
	m.opts.Log.Info("exchange finished", "direction", m.dir.String())
	return nil
}

// RatesToSpikesManager receives rate waves from the rate side, generates
// Poisson spike trains from them, and sends those to the spiking side. It
// waits for the spikes-to-rates manager to create the shared layout before
// publishing its endpoints.
type RatesToSpikesManager struct {
	endpoints
}

// NewRatesToSpikesManager builds the manager; endpoints are reserved on
// Bind or Start.
func NewRatesToSpikesManager(opts Options) *RatesToSpikesManager {
	return &RatesToSpikesManager{endpoints: endpoints{opts: opts, dir: RatesToSpikes}}
}

// Start serves one exchange session. It returns when the rate peer closes
// its stream, or with an error on transport failure or Stop.
func (m *RatesToSpikesManager) Start(ctx context.Context) error {
	if err := m.opts.Layout.Wait(ctx); err != nil {
		return err
	}
	if err := m.Bind(); err != nil {
		return err
	}
	if err := m.publish(); err != nil {
		return err
	}

	recvConn, sendConn, err := m.acceptPair(ctx)
	if err != nil {
		return err
	}
	ctx, finish := m.session(ctx, recvConn, sendConn)
	defer finish()

	reader, err := wire.NewRateReader(recvConn)
	if err != nil {
		return err
	}
	defer reader.Release()
	writer := wire.NewSpikeWriter(sendConn)

	pops := Populations(m.opts.Params)
	gen := transform.NewGenerator(m.opts.Params.Seed)

	for window := 0; ; window++ {
		samples, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		spikes := gen.RatesToSpikes(samples, pops)
		m.opts.Trace.Event("pivot", map[string]any{
			"direction": m.dir.String(),
			"window":    window,
			"samples":   len(samples),
			"spikes":    len(spikes),
		})
		if err := writer.Write(spikes); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("hub: close spike stream: %w", err)
	}
	m.opts.Log.Info("exchange finished", "direction", m.dir.String())
	return nil
}
