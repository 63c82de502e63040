package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/multiscale-cosim/cosim-adapters/internal/config"
	"github.com/multiscale-cosim/cosim-adapters/internal/hub"
	"github.com/multiscale-cosim/cosim-adapters/internal/monitor"
	"github.com/multiscale-cosim/cosim-adapters/internal/store"
)

func newHubCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hub <direction-code> <run-settings> <log-settings> <science-path>",
		Short: "Run one inter-scale hub manager",
		Long: `Run the inter-scale data-exchange hub for one direction.

The arguments are the positional payload block passed by the Application
Companion: the direction code (1 = spikes to rates, 2 = rates to spikes)
followed by three base64(JSON) payloads. The manager binds its two TCP
endpoints, publishes them under port_info/, and relays record batches
between the simulators until its receive stream ends.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHub(cmd.Context(), cmd, args)
		},
	}
}

func runHub(ctx context.Context, cmd *cobra.Command, args []string) error {
	dir, err := hub.ParseDirectionCode(args[0])
	if err != nil {
		return err
	}
	settings, err := decodeAdapterSettings(args[1], args[2], args[3])
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	name := "hub-" + dir.EndpointName()
	log, trace := settings.openLogging(name)
	defer trace.Close()

	// The spikes-to-rates manager owns the shared layout; the other
	// direction (and the registry below) must wait for it to appear.
	if dir == hub.SpikesToRates {
		if err := settings.Layout.Ensure(); err != nil {
			return err
		}
	} else {
		if err := settings.Layout.Wait(ctx); err != nil {
			return err
		}
	}

	registry, err := settings.openRegistry()
	if err != nil {
		return err
	}
	defer registry.Close()

	run := settings.newRun("hub", dir.EndpointName())
	if err := registry.RecordStart(ctx, run); err != nil {
		return err
	}

	monCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	if settings.Run.MonitoringEnabled {
		mon := monitor.New(run.ID, cfg.Monitoring.SampleInterval, registry, log)
		go mon.Run(monCtx)
	}

	manager, err := hub.NewManager(dir, hub.Options{
		Layout:   settings.Layout,
		BindHost: cfg.Network.BindHost,
		Params:   settings.Params,
		Log:      log,
		Trace:    trace,
	})
	if err != nil {
		return err
	}
	if err := manager.Bind(); err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"direction":       dir.String(),
			"receive_address": manager.ReceiveAddr(),
			"send_address":    manager.SendAddr(),
		})
	}
	log.Info("hub manager starting",
		"direction", dir.String(),
		"receive", manager.ReceiveAddr(),
		"send", manager.SendAddr())

	err = manager.Start(ctx)
	stopMonitor()

	status := store.StatusCompleted
	if err != nil {
		status = store.StatusFailed
	}
	if stopErr := registry.RecordStop(context.Background(), run.ID, status); stopErr != nil {
		log.Warn("failed to record run stop", "error", stopErr)
	}
	if err != nil {
		return fmt.Errorf("hub %s: %w", dir.EndpointName(), err)
	}
	log.Info("hub manager finished", "direction", dir.String())
	return nil
}
