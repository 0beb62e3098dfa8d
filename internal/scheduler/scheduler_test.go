package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type countingReloader struct {
	mu    sync.Mutex
	calls int
}

func (r *countingReloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func (r *countingReloader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type countingCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCleaner) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&countingReloader{}, nil, "every now and then", "", zaptest.NewLogger(t))
	if err := s.Start(); err == nil {
		t.Error("Expected error for an invalid cron spec")
	}
}

func TestScheduler_RunsJobs(t *testing.T) {
	reloader := &countingReloader{}
	cleaner := &countingCleaner{}
	s := NewScheduler(reloader, cleaner, "@every 1s", "@every 1s", zaptest.NewLogger(t))

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return reloader.Calls() > 0 })
	waitFor(t, func() bool {
		cleaner.mu.Lock()
		defer cleaner.mu.Unlock()
		return cleaner.calls > 0
	})

	status := s.GetStatus()
	if status["running"] != true {
		t.Errorf("Expected running scheduler, got %v", status)
	}
}

func TestScheduler_ForceRun(t *testing.T) {
	reloader := &countingReloader{}
	s := NewScheduler(reloader, nil, "", "", zaptest.NewLogger(t))

	s.ForceRun()

	waitFor(t, func() bool { return reloader.Calls() == 1 })
	s.Stop() // not started; must be a no-op
}

func TestWatchDirs(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.csv")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs := WatchDirs([]string{dir, file, "https://example.com/a.csv", ""})
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Expected only %s, got %v", dir, dirs)
	}
}

func TestWatcher_DebouncesReloads(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "snap.db")
	reloader := &countingReloader{}

	w, err := NewWatcher([]string{dir}, reloader, 100*time.Millisecond, []string{snapshot}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// ignored paths and unrelated files do not count
	for _, name := range []string{"snap.db", "notes.md", ".hidden.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(dir, "PRSA_Dongsi.csv"), []byte("station\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return reloader.Calls() == 1 })
	time.Sleep(300 * time.Millisecond)
	if got := reloader.Calls(); got != 1 {
		t.Errorf("Expected a single debounced reload, got %d", got)
	}
}
