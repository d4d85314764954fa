package main

import (
	"github.com/spf13/cobra"

	"harvestdash/internal/render"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Print the inferred type of every sheet",
		Long: `Fetch the configured source once and print each sheet with the
classification the metric aggregators will use for it. Useful when a
sheet is missing from the dashboard totals.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := fetchOnce(cmd.Context())
			if err != nil {
				return err
			}
			return render.New(cmd.OutOrStdout()).Classification(v.Dashboard.Sheets)
		},
	}
}
