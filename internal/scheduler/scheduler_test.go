package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/lock"
	"github.com/evetabi/furbito/internal/scheduler"
	"github.com/evetabi/furbito/internal/service"
)

type countingSyncer struct{ runs atomic.Int32 }

func (s *countingSyncer) Run(context.Context) (*service.SyncReport, error) {
	s.runs.Add(1)
	return &service.SyncReport{}, errors.New("feed timeout")
}

type panickyStarter struct{ calls atomic.Int32 }

func (s *panickyStarter) StartDueEvents(context.Context) (int, error) {
	if s.calls.Add(1) == 1 {
		panic("boom")
	}
	return 1, nil
}

func fastConfig() config.SyncConfig {
	return config.SyncConfig{
		Enabled:         true,
		Interval:        10 * time.Millisecond,
		KickoffInterval: 10 * time.Millisecond,
		LockTTL:         time.Second,
	}
}

func runFor(t *testing.T, s *scheduler.Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(d + 2*time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestScheduler_RunsJobsAndSurvivesPanics(t *testing.T) {
	syncer, starter := &countingSyncer{}, &panickyStarter{}
	s := scheduler.NewScheduler(syncer, starter, lock.NewLocal(), fastConfig(), nil)

	runFor(t, s, 120*time.Millisecond)

	if n := syncer.runs.Load(); n < 2 {
		t.Errorf("sync ran %d times, want repeated runs despite errors", n)
	}
	if n := starter.calls.Load(); n < 2 {
		t.Errorf("kickoff ran %d times, want runs after the first panicked", n)
	}
}

func TestScheduler_SkipsWhileLockHeld(t *testing.T) {
	locker := lock.NewLocal()
	unlock, err := locker.Acquire(context.Background(), "job:sync", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	syncer, starter := &countingSyncer{}, &panickyStarter{}
	s := scheduler.NewScheduler(syncer, starter, locker, fastConfig(), nil)
	runFor(t, s, 60*time.Millisecond)

	if n := syncer.runs.Load(); n != 0 {
		t.Errorf("sync ran %d times while another holder had the lock", n)
	}
	if n := starter.calls.Load(); n == 0 {
		t.Error("kickoff never ran; its lock is independent")
	}
}

func TestScheduler_NilSyncerDisablesSync(t *testing.T) {
	starter := &panickyStarter{}
	cfg := fastConfig()
	cfg.Enabled = false
	s := scheduler.NewScheduler(nil, starter, nil, cfg, nil)
	runFor(t, s, 40*time.Millisecond)
	if starter.calls.Load() == 0 {
		t.Error("kickoff loop did not run")
	}
}
