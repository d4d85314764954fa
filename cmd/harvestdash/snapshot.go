package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"harvestdash/internal/log"
	"harvestdash/internal/refresh"
	"harvestdash/internal/render"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func snapshotCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch once and print the dashboard",
		Long: `Run a single refresh cycle, retries and fallback included, and print the
assembled dashboard. The exit status is non-zero only when nothing at all
could be shown; a cached or demo dashboard is printed with its status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != formatTable && format != formatJSON {
				return fmt.Errorf("invalid format %q: must be %s or %s", format, formatTable, formatJSON)
			}
			v, err := fetchOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printDashboard(cmd.OutOrStdout(), v, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, json)")
	return cmd
}

// fetchOnce runs one refresh cycle against the configured source. A
// fetch failure is logged; the fallback view is still returned.
func fetchOnce(ctx context.Context) (*refresh.View, error) {
	cfg, logger := appCfg, appLogger

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer p.close(logger)

	v, err := p.driver(cfg, logger).RunOnce(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Fetch failed, showing fallback",
			log.NewFields().WithOperation(log.OpFetch).WithError(err).ToSlice()...)
		if v == nil || v.Snapshot.IsZero() {
			return nil, fmt.Errorf("no dashboard available: %w", err)
		}
	}
	return v, nil
}

func printDashboard(w io.Writer, v *refresh.View, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v.Dashboard)
	}
	return render.New(w).Dashboard(v.Dashboard)
}
