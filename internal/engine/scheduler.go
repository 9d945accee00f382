package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper is implemented by stores that need periodic expired-key cleanup.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Scheduler manages the periodic warmap tick and the player scan cadence.
// The player scan runs on its own entry so a slow profile crawl never
// delays the next tick.
type Scheduler struct {
	cron    *cron.Cron
	engine  *Engine
	sweeper Sweeper
	log     *slog.Logger
}

// NewScheduler creates a Scheduler that runs engine tasks on a schedule.
// sweeper may be nil for stores that expire keys themselves.
func NewScheduler(
	eng *Engine,
	tickInterval time.Duration,
	playerScanInterval time.Duration,
	sweeper Sweeper,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		engine:  eng,
		sweeper: sweeper,
		log:     log,
	}

	if _, err := c.AddFunc("@every "+tickInterval.String(), s.runTick); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc("@every "+playerScanInterval.String(), s.runPlayerScan); err != nil {
		return nil, err
	}

	if sweeper != nil {
		if _, err := c.AddFunc("@every 1h", s.runSweep); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runTick() {
	ctx := context.Background()
	if err := s.engine.RunTick(ctx); err != nil {
		s.log.Error("scheduled tick failed", "error", err)
	}
}

func (s *Scheduler) runPlayerScan() {
	ctx := context.Background()
	if err := s.engine.RunPlayerScan(ctx); err != nil {
		s.log.Error("scheduled player scan failed", "error", err)
	}
}

func (s *Scheduler) runSweep() {
	ctx := context.Background()
	swept, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error("kv sweep failed", "error", err)
		return
	}
	s.log.Info("kv sweep complete", "deleted", swept)
}
