package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/multiscale-cosim/cosim-adapters/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded adapter runs",
		Long: `List the adapter runs recorded in the run registry under the results
directory, newest first. With --run, show the resource usage samples
collected for that run instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resultsDir(cmd)
			if err != nil {
				return err
			}
			dbPath := filepath.Join(base, "registry.db")
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				return fmt.Errorf("no run registry at %s", dbPath)
			}

			registry, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer registry.Close()

			jsonOut, _ := cmd.Flags().GetBool("json")
			runID, _ := cmd.Flags().GetString("run")
			if runID != "" {
				return showSamples(cmd, registry, runID, jsonOut)
			}
			return showRuns(cmd, registry, jsonOut)
		},
	}
	cmd.Flags().String("run", "", "Show resource samples for this run ID")
	return cmd
}

func showRuns(cmd *cobra.Command, registry *store.Registry, jsonOut bool) error {
	runs, err := registry.ListRuns(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOut {
		type runOut struct {
			ID        string     `json:"id"`
			Kind      string     `json:"kind"`
			Direction string     `json:"direction,omitempty"`
			PID       int        `json:"pid"`
			Status    string     `json:"status"`
			StartedAt time.Time  `json:"started_at"`
			StoppedAt *time.Time `json:"stopped_at,omitempty"`
		}
		out := make([]runOut, len(runs))
		for i, r := range runs {
			out[i] = runOut{r.ID, r.Kind, r.Direction, r.PID, r.Status, r.StartedAt, r.StoppedAt}
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tDIRECTION\tPID\tSTATUS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Kind, r.Direction, r.PID, r.Status,
			r.StartedAt.Local().Format(time.RFC3339))
	}
	return w.Flush()
}

func showSamples(cmd *cobra.Command, registry *store.Registry, runID string, jsonOut bool) error {
	run, err := registry.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("unknown run: %s", runID)
	}
	samples, err := registry.Samples(cmd.Context(), runID)
	if err != nil {
		return err
	}

	if jsonOut {
		type sampleOut struct {
			SampledAt  time.Time `json:"sampled_at"`
			CPUSeconds float64   `json:"cpu_seconds"`
			RSSBytes   int64     `json:"rss_bytes"`
		}
		out := make([]sampleOut, len(samples))
		for i, s := range samples {
			out[i] = sampleOut{s.SampledAt, s.CPUSeconds, s.RSSBytes}
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	}

	if len(samples) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No samples for %s.\n", runID)
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SAMPLED\tCPU_SECONDS\tRSS_BYTES")
	for _, s := range samples {
		fmt.Fprintf(w, "%s\t%.3f\t%d\n",
			s.SampledAt.Local().Format(time.RFC3339), s.CPUSeconds, s.RSSBytes)
	}
	return w.Flush()
}
