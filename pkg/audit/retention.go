package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionScheduler prunes old entries on a cron schedule.
type RetentionScheduler struct {
	pruner        Pruner
	schedule      string
	retentionDays int
	cron          *cron.Cron
	now           func() time.Time
	mu            sync.Mutex
	logger        *slog.Logger
	running       bool
}

// NewRetentionScheduler creates a scheduler that removes entries older than
// retentionDays. A zero retention keeps entries forever.
func NewRetentionScheduler(pruner Pruner, schedule string, retentionDays int) *RetentionScheduler {
	return &RetentionScheduler{
		pruner:        pruner,
		schedule:      schedule,
		retentionDays: retentionDays,
		cron:          cron.New(),
		now:           time.Now,
		logger:        slog.Default().With("component", "audit.retention"),
	}
}

// Start schedules pruning. It does nothing when the schedule is empty or
// retention is disabled, and stops when ctx is cancelled.
func (s *RetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.retentionDays <= 0 {
		s.logger.Info("audit retention disabled")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.PruneNow(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("audit retention scheduler started",
		"schedule", s.schedule,
		"retention_days", s.retentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// PruneNow runs one pruning cycle and returns the number of deleted entries.
func (s *RetentionScheduler) PruneNow(ctx context.Context) int64 {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.pruner.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("audit pruning failed", "error", err)
		return 0
	}
	if deleted > 0 {
		s.logger.Info("audit pruning completed", "deleted_count", deleted)
	}
	return deleted
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("audit retention scheduler stopped")
	}
}

// IsRunning reports whether pruning is scheduled.
func (s *RetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
