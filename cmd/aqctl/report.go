package main

import (
	"fmt"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/dataset"
	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/bobby-s-dev/airquality-aggregator/internal/services"
	"github.com/spf13/cobra"
)

var (
	reportStart string
	reportEnd   string
	reportRows  bool
)

type report struct {
	*models.Dashboard
	Observations []models.LabeledObservation `json:"observations,omitempty"`
}

var reportCmd = &cobra.Command{
	Use:   "report [sources...]",
	Short: "Print the dashboard for a date range as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := optionalDate("start", reportStart)
		if err != nil {
			return err
		}
		end, err := optionalDate("end", reportEnd)
		if err != nil {
			return err
		}

		logger := newLogger()
		defer logger.Sync()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		loader, err := dataset.NewLoaderFromConfig(cfg, args, logger)
		if err != nil {
			return err
		}

		agg := services.NewAggregator(cfg, loader, logger)
		if err := agg.Reload(cmd.Context()); err != nil {
			return err
		}
		r, err := agg.ResolveRange(start, end)
		if err != nil {
			return err
		}
		d, err := agg.GetDashboard(cmd.Context(), r.Start, r.End)
		if err != nil {
			return err
		}

		out := report{Dashboard: d}
		if reportRows {
			out.Observations = d.TopRows
		}
		return writeJSON(cmd.OutOrStdout(), out)
	},
}

func optionalDate(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &t, nil
}

func init() {
	reportCmd.Flags().StringVar(&reportStart, "start", "", "range start, YYYY-MM-DD or RFC3339 (default: first timestamp)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "range end, YYYY-MM-DD or RFC3339 (default: last timestamp)")
	reportCmd.Flags().BoolVar(&reportRows, "rows", false, "include the labelled rows of the top station")
	rootCmd.AddCommand(reportCmd)
}
