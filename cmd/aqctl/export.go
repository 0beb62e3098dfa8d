package main

import (
	"fmt"

	"github.com/bobby-s-dev/airquality-aggregator/internal/store"
	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export [sources...]",
	Short: "Write the cleaned dataset to a SQLite snapshot",
	Long: `export loads and cleans the sources and writes the result to a SQLite file.
The snapshot can be used as a source later and loads to the same dataset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOut == "" {
			return fmt.Errorf("--out is required")
		}

		logger := newLogger()
		defer logger.Sync()

		ds, err := loadDataset(cmd.Context(), cmd, args, logger)
		if err != nil {
			return err
		}

		st, err := store.Open(exportOut)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SaveDataset(cmd.Context(), ds); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d rows (version %s) to %s\n", ds.Len(), ds.Version, st.Path())
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "snapshot file to write")
	rootCmd.AddCommand(exportCmd)
}
