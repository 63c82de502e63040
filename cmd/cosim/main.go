package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/multiscale-cosim/cosim-adapters/internal/config"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cosim",
		Short: "Co-simulation adapters for multiscale brain simulation",
		Long: `cosim hosts the action adapters of a multiscale co-simulation run:
the inter-scale data-exchange hub and the rate-simulator endpoint, both
steered by a parent Application Companion process.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for orchestrator consumption)")
	rootCmd.PersistentFlags().String("results", "", "Base results directory (default from configuration)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newHubCmd(),
		newSimulatorCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "cosim version %s\n", version)
			}
		},
	}
}

// resultsDir resolves the base results directory: the --results flag when
// set, otherwise the configured default.
func resultsDir(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("results"); dir != "" {
		return dir, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Results, nil
}
