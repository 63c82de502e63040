// Package simulator implements the rate-simulator action adapter: it
// configures the rate model from the science parameters, connects to both
// inter-scale hub endpoints, and drives the cosimulation loop under the
// INIT/START/END steering lifecycle.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/multiscale-cosim/cosim-adapters/internal/config"
	"github.com/multiscale-cosim/cosim-adapters/internal/hub"
	"github.com/multiscale-cosim/cosim-adapters/internal/logging"
	"github.com/multiscale-cosim/cosim-adapters/internal/model"
	"github.com/multiscale-cosim/cosim-adapters/internal/payload"
	"github.com/multiscale-cosim/cosim-adapters/internal/results"
	"github.com/multiscale-cosim/cosim-adapters/internal/science"
	"github.com/multiscale-cosim/cosim-adapters/internal/wire"
)

// Adapter sequences the simulator side of a co-simulation run.
type Adapter struct {
	params  science.Parameters
	layout  results.Layout
	netCfg  config.NetworkConfig
	log     *slog.Logger
	trace   *logging.TraceLogger
	network *model.Network

	// toSpiking carries coupling rates to the rates-to-spikes hub;
	// fromSpiking carries population rates back from the spikes-to-rates
	// hub.
	toSpiking   net.Conn
	fromSpiking net.Conn
	rateWriter  *wire.RateWriter
	rateReader  *wire.RateReader
}

// New builds an adapter. Nothing is connected until Init.
func New(params science.Parameters, layout results.Layout, netCfg config.NetworkConfig,
	log *slog.Logger, trace *logging.TraceLogger) *Adapter {
	return &Adapter{
		params: params,
		layout: layout,
		netCfg: netCfg,
		log:    log,
		trace:  trace,
	}
}

// dialEndpoint dials addr, retrying with backoff until the hub endpoint
// accepts or the configured connect deadline passes. The hub processes are
// launched in parallel with the simulator, so the first attempts routinely
// race the hub's bind.
func (a *Adapter) dialEndpoint(ctx context.Context, addr string) (net.Conn, error) {
	var conn net.Conn
	b := retry.NewFibonacci(100 * time.Millisecond)
	err := retry.Do(ctx, retry.WithMaxDuration(a.netCfg.ConnectDeadline, b), func(ctx context.Context) error {
		c, err := net.DialTimeout("tcp", addr, a.netCfg.DialTimeout)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("simulator: connecting to hub at %s: %w", addr, err)
	}
	return conn, nil
}

// Init executes the INIT steering command: configure the model, connect to
// both hub endpoints, and return the local minimum step size in seconds
// for the steering handshake.
func (a *Adapter) Init(ctx context.Context, endpoints []payload.EndpointInfo) (float64, error) {
	var toSpikingAddr, fromSpikingAddr string
	for _, ep := range endpoints {
		if err := ep.Validate(); err != nil {
			return 0, err
		}
		d, err := hub.ParseDirectionName(ep.Direction)
		if err != nil {
			return 0, err
		}
		switch d {
		case hub.SpikesToRates:
			fromSpikingAddr = ep.Address
		case hub.RatesToSpikes:
			toSpikingAddr = ep.Address
		}
	}
	if fromSpikingAddr == "" || toSpikingAddr == "" {
		return 0, fmt.Errorf("simulator: need endpoints for both directions, got %d records", len(endpoints))
	}

	network, err := model.New(model.Config{
		Nodes:      a.params.RegionCount,
		DtMs:       a.params.IntegrationStepMs,
		Coupling:   a.params.CouplingStrength,
		ProxyNodes: a.params.ProxyNodeIDs,
	})
	if err != nil {
		return 0, err
	}
	a.network = network

	if a.toSpiking, err = a.dialEndpoint(ctx, toSpikingAddr); err != nil {
		return 0, err
	}
	if a.fromSpiking, err = a.dialEndpoint(ctx, fromSpikingAddr); err != nil {
		a.toSpiking.Close()
		return 0, err
	}
	a.rateWriter = wire.NewRateWriter(a.toSpiking)
	// The rate reader is opened lazily in Run: its constructor blocks on
	// the stream schema, which the hub only sends with the first batch.

	a.log.Info("initialized",
		"regions", a.params.RegionCount,
		"windows", a.params.WindowCount(),
		"to_spiking", toSpikingAddr,
		"from_spiking", fromSpikingAddr)
	return a.params.SynchronizationTimeMs / 1000.0, nil
}

// Trace is the recorded simulation output: one state row per
// synchronization window.
type Trace struct {
	TimesMs []float64
	States  [][]float64
}

// Run executes the START steering command: the cosimulation loop. Each
// window it sends the proxy nodes' coupling rates toward the spiking side,
// receives the spiking side's population rates, and advances the model
// with those rates as proxy input.
func (a *Adapter) Run(ctx context.Context) (*Trace, error) {
	if a.network == nil {
		return nil, fmt.Errorf("simulator: not initialized")
	}

	windows := a.params.WindowCount()
	syncMs := a.params.SynchronizationTimeMs
	trace := &Trace{
		TimesMs: make([]float64, 0, windows),
		States:  make([][]float64, 0, windows),
	}

	// Abort blocked exchanges if the run is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			a.toSpiking.Close()
			a.fromSpiking.Close()
		case <-done:
		}
	}()

	for w := 0; w < windows; w++ {
		start := a.network.TimeMs()
		end := start + syncMs

		// Send this window's coupling rates.
		rates := a.network.CouplingRates(a.params.FiringRateScale)
		samples := make([]wire.RateSample, 0, len(rates))
		for _, id := range a.params.ProxyNodeIDs {
			samples = append(samples, wire.RateSample{
				NodeID:  int32(id),
				RateHz:  rates[id],
				StartMs: start,
				EndMs:   end,
			})
		}
		if err := a.rateWriter.Write(samples); err != nil {
			return nil, a.runErr(ctx, err)
		}

		// Receive the spiking side's rates for the same window.
		if a.rateReader == nil {
			r, err := wire.NewRateReader(a.fromSpiking)
			if err != nil {
				return nil, a.runErr(ctx, err)
			}
			a.rateReader = r
		}
		incoming, err := a.rateReader.Read()
		if err != nil {
			return nil, a.runErr(ctx, err)
		}
		proxyInput := meanRateByNode(incoming)

		state := a.network.Advance(syncMs, proxyInput)
		trace.TimesMs = append(trace.TimesMs, a.network.TimeMs())
		trace.States = append(trace.States, state)

		a.trace.Event("window", map[string]any{
			"window":   w,
			"sent":     len(samples),
			"received": len(incoming),
			"time_ms":  a.network.TimeMs(),
		})
	}

	// Closing the outgoing stream tells the rates-to-spikes hub the run
	// is over; the spiking side winds down from there.
	if err := a.rateWriter.Close(); err != nil {
		return nil, fmt.Errorf("simulator: close rate stream: %w", err)
	}
	a.log.Info("simulation finished", "windows", windows, "time_ms", a.network.TimeMs())
	return trace, nil
}

func (a *Adapter) runErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// meanRateByNode averages the incoming rate slices per node, yielding the
// proxy input for one synchronization window.
func meanRateByNode(samples []wire.RateSample) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, s := range samples {
		sums[int(s.NodeID)] += s.RateHz
		counts[int(s.NodeID)]++
	}
	out := make(map[int]float64, len(sums))
	for id, sum := range sums {
		out[id] = sum / float64(counts[id])
	}
	return out
}

// End executes the END steering command: persist the recorded trace under
// figures/ and release the connections.
func (a *Adapter) End(trace *Trace) error {
	defer func() {
		if a.rateReader != nil {
			a.rateReader.Release()
		}
		if a.toSpiking != nil {
			a.toSpiking.Close()
		}
		if a.fromSpiking != nil {
			a.fromSpiking.Close()
		}
	}()

	if trace == nil {
		return fmt.Errorf("simulator: no trace to post-process")
	}

	path := filepath.Join(a.layout.Figures(), "trace.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("simulator: create %s: %w", path, err)
	}
	defer f.Close()

	if err := trace.WriteCSV(f); err != nil {
		return err
	}
	a.log.Info("trace written", "path", path, "windows", len(trace.TimesMs))
	return nil
}
