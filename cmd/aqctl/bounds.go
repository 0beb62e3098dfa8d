package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var boundsJSON bool

var boundsCmd = &cobra.Command{
	Use:   "bounds [sources...]",
	Short: "Print the dataset's time bounds and stations",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		ds, err := loadDataset(cmd.Context(), cmd, args, logger)
		if err != nil {
			return err
		}
		min, max, _ := ds.Bounds()
		stations := ds.Stations()

		if boundsJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"version":  ds.Version,
				"rows":     ds.Len(),
				"first":    min,
				"last":     max,
				"stations": stations,
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Rows:     %d\n", ds.Len())
		fmt.Fprintf(w, "First:    %s\n", min.Format(time.DateTime))
		fmt.Fprintf(w, "Last:     %s\n", max.Format(time.DateTime))
		fmt.Fprintf(w, "Stations: %d\n", len(stations))
		for _, s := range stations {
			fmt.Fprintf(w, "- %s\n", s)
		}
		return nil
	},
}

func init() {
	boundsCmd.Flags().BoolVar(&boundsJSON, "json", false, "print JSON instead of text")
	rootCmd.AddCommand(boundsCmd)
}
