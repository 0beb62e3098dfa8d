package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobby-s-dev/airquality-aggregator/internal/config"
	"github.com/bobby-s-dev/airquality-aggregator/internal/models"
	"github.com/bobby-s-dev/airquality-aggregator/internal/store"
	"go.uber.org/zap/zaptest"
)

type fakeLoader struct {
	datasets []*models.Dataset
	err      error
	calls    int
}

func (f *fakeLoader) Load(ctx context.Context) (*models.Dataset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ds := f.datasets[0]
	if len(f.datasets) > 1 {
		f.datasets = f.datasets[1:]
	}
	return ds, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Cache.Duration = time.Minute
	cfg.Cache.MaxSize = 8
	return cfg
}

func newTestAggregator(t *testing.T, loader DatasetLoader) *Aggregator {
	t.Helper()
	return NewAggregator(testConfig(), loader, zaptest.NewLogger(t))
}

func TestAggregator_NotLoaded(t *testing.T) {
	a := newTestAggregator(t, &fakeLoader{err: errors.New("boom")})

	if err := a.Reload(context.Background()); err == nil {
		t.Fatal("Expected reload error")
	}
	if _, err := a.GetDashboard(context.Background(), day0, day0.Add(time.Hour)); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}
	if stats := a.GetStats(); stats["failure_count"] != 1 {
		t.Errorf("Expected failure_count 1, got %v", stats["failure_count"])
	}
}

func TestAggregator_MemoizesPerRange(t *testing.T) {
	loader := &fakeLoader{datasets: []*models.Dataset{{Version: "v1", Observations: twoStations()}}}
	a := newTestAggregator(t, loader)
	if err := a.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	ctx := context.Background()
	first, err := a.GetDashboard(ctx, day0, day0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetDashboard failed: %v", err)
	}
	second, err := a.GetDashboard(ctx, day0, day0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetDashboard failed: %v", err)
	}
	if first != second {
		t.Error("Expected the memoized dashboard for an identical range")
	}

	if _, err := a.GetDashboard(ctx, day0, day0.Add(2*time.Hour+30*time.Minute)); err != nil {
		t.Fatalf("GetDashboard failed: %v", err)
	}
	if builds := a.GetStats()["dashboard_builds"]; builds != 2 {
		t.Errorf("Expected 2 builds, got %v", builds)
	}
}

func TestAggregator_ReloadInvalidatesCache(t *testing.T) {
	loader := &fakeLoader{datasets: []*models.Dataset{
		{Version: "v1", Observations: twoStations()},
		{Version: "v2", Observations: []models.Observation{obs("Z", 1, 9)}},
	}}
	a := newTestAggregator(t, loader)
	ctx := context.Background()

	if err := a.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	before, _ := a.GetDashboard(ctx, day0, day0.Add(24*time.Hour))

	if err := a.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	after, err := a.GetDashboard(ctx, day0, day0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetDashboard failed: %v", err)
	}

	if before.TopStation != "B" || after.TopStation != "Z" {
		t.Errorf("Expected B then Z, got %s then %s", before.TopStation, after.TopStation)
	}
}

func TestAggregator_FailedReloadKeepsDataset(t *testing.T) {
	loader := &fakeLoader{datasets: []*models.Dataset{{Version: "v1", Observations: twoStations()}}}
	a := newTestAggregator(t, loader)
	ctx := context.Background()
	if err := a.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	loader.err = errors.New("disk gone")
	if err := a.Reload(ctx); err == nil {
		t.Fatal("Expected reload error")
	}

	ds, err := a.Dataset()
	if err != nil || ds.Version != "v1" {
		t.Errorf("Expected v1 to remain published, got %v, %v", ds, err)
	}
}

func TestAggregator_ResolveRange(t *testing.T) {
	loader := &fakeLoader{datasets: []*models.Dataset{{Version: "v1", Observations: twoStations()}}}
	a := newTestAggregator(t, loader)
	if err := a.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	r, err := a.ResolveRange(nil, nil)
	if err != nil {
		t.Fatalf("ResolveRange failed: %v", err)
	}
	if !r.Start.Equal(day0.Add(time.Hour)) || !r.End.Equal(day0.Add(3*time.Hour)) {
		t.Errorf("Expected dataset bounds, got %v - %v", r.Start, r.End)
	}

	end := day0
	if _, err := a.ResolveRange(nil, &end); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange when end is before start, got %v", err)
	}
}

func TestAggregator_WritesSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Data.SnapshotPath = filepath.Join(t.TempDir(), "snap.db")
	loader := &fakeLoader{datasets: []*models.Dataset{{Version: "v1", Observations: twoStations()}}}
	a := NewAggregator(cfg, loader, zaptest.NewLogger(t))

	if err := a.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	st, err := store.Open(cfg.Data.SnapshotPath)
	if err != nil {
		t.Fatalf("Failed to open snapshot: %v", err)
	}
	defer st.Close()
	records, err := st.Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 7 {
		t.Errorf("Expected header + 6 rows, got %d", len(records))
	}
}
