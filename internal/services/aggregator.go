package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/config"
	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/bobby-s-dev/airquality-aggregator/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrNotLoaded is returned before the first successful load.
	ErrNotLoaded = errors.New("dataset not loaded")
	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("invalid date range")
)

// DatasetLoader builds a fresh dataset from the configured sources.
type DatasetLoader interface {
	Load(ctx context.Context) (*models.Dataset, error)
}

// Aggregator owns the current dataset and serves memoized dashboards from it.
// A reload builds the new dataset off to the side and swaps it in whole.
type Aggregator struct {
	loader       DatasetLoader
	cache        *DashboardCache
	logger       *zap.Logger
	snapshotPath string

	mu           sync.RWMutex
	dataset      *models.Dataset
	lastLoadTime time.Time
	lastLoadErr  error
	loadCount    int
	failureCount int
	buildCount   int

	reloadMu sync.Mutex
}

func NewAggregator(cfg *config.Config, loader DatasetLoader, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		loader:       loader,
		cache:        NewDashboardCache(cfg.Cache.Duration, cfg.Cache.MaxSize, logger),
		logger:       logger,
		snapshotPath: cfg.Data.SnapshotPath,
	}
}

// Reload loads the sources again. On failure the previous dataset stays in place.
func (a *Aggregator) Reload(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	startTime := time.Now()
	ds, err := a.loader.Load(ctx)

	a.mu.Lock()
	a.lastLoadTime = time.Now()
	a.lastLoadErr = err
	if err != nil {
		a.failureCount++
		a.mu.Unlock()
		a.logger.Error("Dataset reload failed",
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err))
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	a.dataset = ds
	a.loadCount++
	a.mu.Unlock()

	a.cache.Purge()

	a.logger.Info("Dataset published",
		zap.String("version", ds.Version),
		zap.Int("rows", ds.Len()),
		zap.Duration("duration", time.Since(startTime)))

	if a.snapshotPath != "" {
		if err := a.writeSnapshot(ctx, ds); err != nil {
			a.logger.Warn("Failed to write snapshot",
				zap.String("path", a.snapshotPath),
				zap.Error(err))
		}
	}
	return nil
}

func (a *Aggregator) writeSnapshot(ctx context.Context, ds *models.Dataset) error {
	st, err := store.Open(a.snapshotPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveDataset(ctx, ds)
}

// Dataset returns the current dataset; it must be treated as read-only.
func (a *Aggregator) Dataset() (*models.Dataset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.dataset == nil {
		return nil, ErrNotLoaded
	}
	return a.dataset, nil
}

// ResolveRange fills missing bounds with the dataset's first and last timestamps.
func (a *Aggregator) ResolveRange(start, end *time.Time) (models.DateRange, error) {
	ds, err := a.Dataset()
	if err != nil {
		return models.DateRange{}, err
	}
	min, max, ok := ds.Bounds()
	if !ok {
		return models.DateRange{}, &models.EmptyRangeError{Reason: "dataset is empty"}
	}

	r := models.DateRange{Start: min, End: max}
	if start != nil {
		r.Start = start.UTC()
	}
	if end != nil {
		r.End = end.UTC()
	}
	if r.End.Before(r.Start) {
		return r, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange,
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return r, nil
}

// GetDashboard returns the dashboard for (start, end), computing it once per
// dataset version and range.
func (a *Aggregator) GetDashboard(ctx context.Context, start, end time.Time) (*models.Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := a.Dataset()
	if err != nil {
		return nil, err
	}

	if cached, ok := a.cache.Get(ds.Version, start, end); ok {
		a.logger.Debug("Cache hit for dashboard",
			zap.Time("start", start),
			zap.Time("end", end))
		return cached, nil
	}

	dashboard, err := BuildDashboard(ds, start, end)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.buildCount++
	a.mu.Unlock()

	a.cache.Set(ds.Version, start, end, dashboard)
	return dashboard, nil
}

// Cache exposes the dashboard cache for scheduled cleanup.
func (a *Aggregator) Cache() *DashboardCache {
	return a.cache
}

func (a *Aggregator) GetLastLoadTime() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastLoadTime
}

func (a *Aggregator) GetStats() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]interface{}{
		"last_load_time":   a.lastLoadTime,
		"load_count":       a.loadCount,
		"failure_count":    a.failureCount,
		"dashboard_builds": a.buildCount,
		"cache_stats":      a.cache.GetStats(),
	}
	if a.dataset != nil {
		stats["dataset_version"] = a.dataset.Version
		stats["rows"] = a.dataset.Len()
	}
	if a.lastLoadErr != nil {
		stats["last_error"] = a.lastLoadErr.Error()
	}
	return stats
}
