package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/multiscale-cosim/cosim-adapters/internal/config"
	"github.com/multiscale-cosim/cosim-adapters/internal/logging"
	"github.com/multiscale-cosim/cosim-adapters/internal/monitor"
	"github.com/multiscale-cosim/cosim-adapters/internal/payload"
	"github.com/multiscale-cosim/cosim-adapters/internal/simulator"
	"github.com/multiscale-cosim/cosim-adapters/internal/steering"
	"github.com/multiscale-cosim/cosim-adapters/internal/store"
)

func newSimulatorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulator <run-settings> <log-settings> <science-path> <endpoints>",
		Short: "Run the rate-simulator adapter",
		Long: `Run the rate-simulator endpoint of a co-simulation.

The arguments are four base64(JSON) payloads from the Application
Companion; the last one lists the hub endpoints to dial. After
initialization the adapter prints a one-line handshake with its PID and
local minimum step size on stdout, then reads one steering command from
stdin: START runs the simulation to completion, anything else aborts
with exit code 1.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulator(cmd.Context(), cmd, args)
		},
	}
}

func runSimulator(ctx context.Context, cmd *cobra.Command, args []string) error {
	settings, err := decodeAdapterSettings(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	var endpoints []payload.EndpointInfo
	if err := payload.Decode(args[3], &endpoints); err != nil {
		return fmt.Errorf("endpoints: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, trace := settings.openLogging("simulator")
	defer trace.Close()

	// The spikes-to-rates hub creates the shared layout.
	if err := settings.Layout.Wait(ctx); err != nil {
		return err
	}

	registry, err := settings.openRegistry()
	if err != nil {
		return err
	}
	defer registry.Close()

	run := settings.newRun("simulator", "")
	if err := registry.RecordStart(ctx, run); err != nil {
		return err
	}

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	if settings.Run.MonitoringEnabled {
		mon := monitor.New(run.ID, cfg.Monitoring.SampleInterval, registry, log)
		go mon.Run(monCtx)
	}

	err = steerSimulator(ctx, cmd, settings, endpoints, cfg, log, trace)
	stopMonitor()

	status := store.StatusCompleted
	if err != nil {
		status = store.StatusFailed
	}
	if stopErr := registry.RecordStop(context.Background(), run.ID, status); stopErr != nil {
		log.Warn("failed to record run stop", "error", stopErr)
	}
	return err
}

// steerSimulator runs the INIT/START/END lifecycle against the parent
// process: initialize, hand back the handshake on stdout, then act on one
// steering command from stdin.
func steerSimulator(ctx context.Context, cmd *cobra.Command, settings adapterSettings,
	endpoints []payload.EndpointInfo, cfg *config.Config,
	log *slog.Logger, trace *logging.TraceLogger) error {

	adapter := simulator.New(settings.Params, settings.Layout, cfg.Network, log, trace)
	minStep, err := adapter.Init(ctx, endpoints)
	if err != nil {
		return err
	}

	handshake := steering.Handshake{PID: os.Getpid(), LocalMinimumStepSize: minStep}
	if err := handshake.Write(cmd.OutOrStdout()); err != nil {
		return err
	}

	session := steering.NewSession(cmd.InOrStdin())
	command, err := session.Next()
	if err != nil {
		return fmt.Errorf("steering: %w", err)
	}
	if command != steering.CommandStart {
		return fmt.Errorf("steering: expected START, got %s", command)
	}

	result, err := adapter.Run(ctx)
	if err != nil {
		return err
	}
	return adapter.End(result)
}
