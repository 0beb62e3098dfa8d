package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bobby-s-dev/airquality-aggregator/internal/config"
	"github.com/bobby-s-dev/airquality-aggregator/internal/dataset"
	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags (override the environment when set)
	debug        bool
	flagEncoding string
	flagSheet    string
	flagOutliers []string
)

var rootCmd = &cobra.Command{
	Use:   "aqctl",
	Short: "Load, clean and aggregate hourly air-quality data",
	Long: `aqctl loads station CSV, XLSX or SQLite snapshot sources, imputes missing
values and prints the same aggregates the server exposes. Sources default to
DATA_SOURCES when no arguments are given.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagEncoding, "encoding", "", "source text encoding, e.g. gbk (overrides SOURCE_ENCODING)")
	rootCmd.PersistentFlags().StringVar(&flagSheet, "sheet", "", "XLSX sheet name (overrides XLSX_SHEET)")
	rootCmd.PersistentFlags().StringSliceVar(&flagOutliers, "outliers", nil, "measures to mask IQR outliers on (overrides OUTLIER_COLUMNS)")
}

func newLogger() *zap.Logger {
	if debug {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := zapConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadConfig reads the environment and applies CLI overrides. The CLI never
// writes the server snapshot as a side effect.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("encoding") {
		cfg.Data.Encoding = flagEncoding
	}
	if f.Changed("sheet") {
		cfg.Data.Sheet = flagSheet
	}
	if f.Changed("outliers") {
		cfg.Data.OutlierColumns = flagOutliers
	}
	cfg.Data.SnapshotPath = ""
	return cfg, nil
}

func loadDataset(ctx context.Context, cmd *cobra.Command, args []string, logger *zap.Logger) (*models.Dataset, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	loader, err := dataset.NewLoaderFromConfig(cfg, args, logger)
	if err != nil {
		return nil, err
	}
	return loader.Load(ctx)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
