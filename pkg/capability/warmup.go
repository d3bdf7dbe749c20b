package capability

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Warm refreshes every model in models and returns how many probes ran.
// It stops early when ctx is cancelled.
func (d *Detector) Warm(ctx context.Context, models []string) int {
	n := 0
	for _, model := range models {
		if ctx.Err() != nil {
			break
		}
		if _, err := d.Refresh(ctx, model); err != nil {
			d.logger.Warn("capability warm-up skipped model", "model", model, "error", err)
			continue
		}
		n++
	}
	return n
}

// Scheduler re-probes configured models on a cron schedule.
type Scheduler struct {
	detector *Detector
	models   func() []string
	cron     *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a warm-up scheduler. models is called on every run
// so configuration reloads are picked up.
func NewScheduler(d *Detector, schedule string, models func() []string) (*Scheduler, error) {
	s := &Scheduler{
		detector: d,
		models:   models,
		cron:     cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid warm-up schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the scheduler. Runs are cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running warm-up to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	n := s.detector.Warm(ctx, s.models())
	s.detector.logger.Info("capability warm-up finished", "probed", n)
}
