package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/multiscale-cosim/cosim-adapters/internal/results"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Create the result directory layout",
		Long: `Create the result directory layout (logs/, figures/, port_info/,
monitoring/) under the given base path, or under the configured results
directory when no path is given. Safe to run on an existing layout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := ""
			if len(args) == 1 {
				base = args[0]
			} else {
				var err error
				if base, err = resultsDir(cmd); err != nil {
					return err
				}
			}

			layout := results.NewLayout(base)
			if err := layout.Ensure(); err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "initialized",
					"path":   layout.Base(),
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", layout.Base())
			}
			return nil
		},
	}
}
