// Package dataset loads air-quality sources into a cleaned, immutable dataset.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoObservations is returned when every source is empty.
var ErrNoObservations = errors.New("no observations in sources")

type Options struct {
	// OutlierColumns enables IQR outlier masking on the listed measures, in order.
	OutlierColumns []models.Measure
}

// Loader resolves its configured sources and builds a fresh dataset on each Load.
type Loader struct {
	specs   []string
	resolve ResolveOptions
	opts    Options
	logger  *zap.Logger
}

func NewLoader(specs []string, resolve ResolveOptions, opts Options, logger *zap.Logger) *Loader {
	return &Loader{
		specs:   specs,
		resolve: resolve,
		opts:    opts,
		logger:  logger,
	}
}

// Specs returns the configured source paths and URLs.
func (l *Loader) Specs() []string {
	return l.specs
}

func (l *Loader) Load(ctx context.Context) (*models.Dataset, error) {
	sources, err := ResolveSources(l.specs, l.resolve)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ds, err := LoadAndClean(ctx, sources, l.opts, l.logger)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Dataset loaded",
		zap.String("version", ds.Version),
		zap.Int("sources", len(sources)),
		zap.Int("rows", ds.Len()),
		zap.Duration("duration", time.Since(start)))
	return ds, nil
}

// LoadAndClean concatenates sources in the given order, imputes missing values
// with column means and projects the result. Any failure aborts the whole load.
func LoadAndClean(ctx context.Context, sources []Source, opts Options, logger *zap.Logger) (*models.Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var records []rawRecord
	names := make([]string, 0, len(sources))

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		table, err := src.Table(ctx)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", src.Name(), err)
		}

		recs, err := decodeTable(src.Name(), table)
		if err != nil {
			return nil, err
		}

		logger.Debug("Source decoded",
			zap.String("source", src.Name()),
			zap.Int("rows", len(recs)))

		records = append(records, recs...)
		names = append(names, src.Name())
	}

	if len(records) == 0 {
		return nil, ErrNoObservations
	}

	means := imputeMeans(records)
	for _, m := range models.Measures {
		if _, ok := means[string(m)]; !ok {
			return nil, &models.SchemaError{Column: string(m), Reason: "no non-null values for column"}
		}
	}

	ds := &models.Dataset{
		Version:      uuid.NewString(),
		LoadedAt:     time.Now(),
		Sources:      names,
		ColumnMeans:  means,
		Observations: project(records),
	}

	for _, m := range opts.OutlierColumns {
		removed, err := MaskOutliers(ds, m)
		if err != nil {
			return nil, err
		}
		logger.Info("Outliers masked",
			zap.String("measure", string(m)),
			zap.Int("removed", removed),
			zap.Int("remaining", ds.Len()))
	}

	return ds, nil
}

// imputeMeans computes the mean of every numeric column over all records, then
// replaces each missing value with its column mean. Columns with no values are
// left out of the returned table.
func imputeMeans(records []rawRecord) map[string]float64 {
	means := make(map[string]float64, len(NumericColumns))
	column := make([]float64, len(records))

	for c, name := range NumericColumns {
		for i := range records {
			column[i] = records[i].values[c]
		}
		mean, n := Mean(column)
		if n == 0 {
			continue
		}
		means[name] = mean

		for i := range records {
			if math.IsNaN(records[i].values[c]) {
				records[i].values[c] = mean
			}
		}
	}
	return means
}

func project(records []rawRecord) []models.Observation {
	idx := make(map[models.Measure]int, len(models.Measures))
	for _, m := range models.Measures {
		idx[m] = columnIndex(string(m))
	}

	out := make([]models.Observation, len(records))
	for i, r := range records {
		out[i] = models.Observation{Station: r.station, Timestamp: r.at}
		for _, m := range models.Measures {
			out[i].Set(m, r.values[idx[m]])
		}
	}
	return out
}
