// Package scheduler runs the background jobs of the wagering engine:
//  1. syncLoop    – pulls the statistics feed every Sync.Interval.
//  2. kickoffLoop – moves events whose kick-off has passed to LIVE.
//
// Each job runs under a named lock so that only one replica executes it.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/lock"
	"github.com/evetabi/furbito/internal/service"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────────────────────────────────────
// Jobs: the slices of the services the scheduler drives
// ──────────────────────────────────────────────────────────────────────────────

// Syncer runs one feed synchronisation. Implemented by service.SyncService.
type Syncer interface {
	Run(ctx context.Context) (*service.SyncReport, error)
}

// Starter transitions due events. Implemented by service.EventService.
type Starter interface {
	StartDueEvents(ctx context.Context) (int, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler owns the job loops. Run blocks until ctx is cancelled.
type Scheduler struct {
	syncer  Syncer
	starter Starter
	locker  lock.Locker
	cfg     config.SyncConfig
	log     *zap.Logger
}

// NewScheduler creates a Scheduler. A nil syncer disables the sync loop.
func NewScheduler(syncer Syncer, starter Starter, locker lock.Locker, cfg config.SyncConfig, log *zap.Logger) *Scheduler {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		syncer:  syncer,
		starter: starter,
		locker:  locker,
		cfg:     cfg,
		log:     log.With(zap.String("component", "scheduler")),
	}
}

// Run launches the loops and waits for them to stop.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if s.syncer != nil && s.cfg.Enabled && s.cfg.Interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, "sync", s.cfg.Interval, true, s.syncOnce)
		}()
	}
	if s.starter != nil && s.cfg.KickoffInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, "kickoff", s.cfg.KickoffInterval, false, s.kickoffOnce)
		}()
	}
	s.log.Info("scheduler started",
		zap.Duration("sync_interval", s.cfg.Interval),
		zap.Duration("kickoff_interval", s.cfg.KickoffInterval))
	wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

// loop calls job every interval until ctx is done. With immediate the first
// run happens at once.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, immediate bool, job func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if immediate {
		s.runLocked(ctx, name, job)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLocked(ctx, name, job)
		}
	}
}

// runLocked runs job while holding the job's lock. A lock held elsewhere
// skips the run.
func (s *Scheduler) runLocked(ctx context.Context, name string, job func(context.Context) error) {
	defer s.recoverAndLog(name)

	ttl := s.cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	unlock, err := s.locker.Acquire(ctx, "job:"+name, ttl)
	if errors.Is(err, lock.ErrLockHeld) {
		s.log.Debug("job lock held elsewhere; skipping", zap.String("job", name))
		return
	}
	if err != nil {
		s.log.Warn("job lock unavailable", zap.String("job", name), zap.Error(err))
		return
	}
	defer unlock()

	if err := job(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
	}
}

func (s *Scheduler) syncOnce(ctx context.Context) error {
	_, err := s.syncer.Run(ctx)
	return err
}

func (s *Scheduler) kickoffOnce(ctx context.Context) error {
	n, err := s.starter.StartDueEvents(ctx)
	if n > 0 {
		s.log.Info("events kicked off", zap.Int("count", n))
	}
	return err
}

// recoverAndLog is deferred around each job run so a panic only loses that
// run.
func (s *Scheduler) recoverAndLog(job string) {
	if r := recover(); r != nil {
		s.log.Error("PANIC recovered in scheduler job", zap.String("job", job), zap.Any("panic", r))
	}
}
