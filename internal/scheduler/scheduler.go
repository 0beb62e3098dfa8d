package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reloader rebuilds the published dataset.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Cleaner drops expired cache entries.
type Cleaner interface {
	Cleanup() int
}

type Scheduler struct {
	reloader       Reloader
	cleaner        Cleaner
	logger         *zap.Logger
	cron           *cron.Cron
	reloadSchedule string
	cleanupSpec    string
	reloadTimeout  time.Duration

	mu      sync.Mutex
	running bool
	lastRun time.Time
	reloads int
}

func NewScheduler(reloader Reloader, cleaner Cleaner, reloadSchedule, cleanupSchedule string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reloader:       reloader,
		cleaner:        cleaner,
		logger:         logger,
		cron:           cron.New(),
		reloadSchedule: reloadSchedule,
		cleanupSpec:    cleanupSchedule,
		reloadTimeout:  5 * time.Minute,
	}
}

// Start registers the configured jobs and starts the cron runner. Empty schedules
// are skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if s.reloadSchedule != "" {
		if _, err := s.cron.AddFunc(s.reloadSchedule, s.runReload); err != nil {
			return fmt.Errorf("invalid reload schedule %q: %w", s.reloadSchedule, err)
		}
	}
	if s.cleanupSpec != "" && s.cleaner != nil {
		if _, err := s.cron.AddFunc(s.cleanupSpec, s.runCleanup); err != nil {
			return fmt.Errorf("invalid cache cleanup schedule %q: %w", s.cleanupSpec, err)
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started",
		zap.String("reload_schedule", s.reloadSchedule),
		zap.String("cleanup_schedule", s.cleanupSpec),
		zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

func (s *Scheduler) runReload() {
	s.mu.Lock()
	s.lastRun = time.Now()
	s.reloads++
	s.mu.Unlock()

	startTime := time.Now()
	s.logger.Info("Starting scheduled dataset reload")

	ctx, cancel := context.WithTimeout(context.Background(), s.reloadTimeout)
	defer cancel()

	if err := s.reloader.Reload(ctx); err != nil {
		s.logger.Error("Scheduled dataset reload failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
		return
	}
	s.logger.Info("Scheduled dataset reload completed",
		zap.Duration("duration", time.Since(startTime)))
}

func (s *Scheduler) runCleanup() {
	if removed := s.cleaner.Cleanup(); removed > 0 {
		s.logger.Debug("Scheduled cache cleanup", zap.Int("removed", removed))
	}
}

// Stop halts the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// ForceRun triggers a reload outside the schedule.
func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering dataset reload")
	go s.runReload()
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":          s.running,
		"reload_schedule":  s.reloadSchedule,
		"cleanup_schedule": s.cleanupSpec,
		"last_run":         s.lastRun,
		"reloads":          s.reloads,
	}
	if s.running {
		var next time.Time
		for _, e := range s.cron.Entries() {
			if next.IsZero() || e.Next.Before(next) {
				next = e.Next
			}
		}
		status["next_run"] = next
	}
	return status
}
