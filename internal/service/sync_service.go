package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// fixtureWindow is how far a stored kick-off may drift from the feed's and
// still be the same fixture.
const fixtureWindow = 2 * time.Hour

// SyncReport summarises one feed synchronisation.
type SyncReport struct {
	Players  int `json:"players"`  // players upserted
	Created  int `json:"created"`  // events created from fixtures
	Repriced int `json:"repriced"` // open events re-priced
	Resolved int `json:"resolved"` // events resolved from final scores
	Failed   int `json:"failed"`
}

// SyncService pulls the statistics feed into the store: squads become
// players, upcoming fixtures become events and final scores resolve the
// matching events.
type SyncService struct {
	store  store.Store
	events *EventService
	feed   feed.Provider
	cfg    config.SyncConfig
	hooks
}

// NewSyncService creates a SyncService.
func NewSyncService(st store.Store, es *EventService, fp feed.Provider, cfg config.SyncConfig, h Hooks) *SyncService {
	return &SyncService{store: st, events: es, feed: fp, cfg: cfg, hooks: newHooks(h, "sync")}
}

// Run performs one synchronisation. Failures on single fixtures are logged
// and returned joined; the rest of the feed is still applied.
func (s *SyncService) Run(ctx context.Context) (*SyncReport, error) {
	snap, err := s.feed.Snapshot(ctx)
	if err != nil {
		s.metrics.SyncRun("failed")
		return nil, fmt.Errorf("sync.Run: snapshot: %w", err)
	}

	var rep SyncReport
	var errs []error

	n, err := s.upsertSquads(ctx, snap)
	rep.Players = n
	if err != nil {
		rep.Failed++
		errs = append(errs, err)
	}

	now := s.now()
	horizon := now.Add(s.cfg.FixtureHorizon)
	for _, f := range snap.Fixtures {
		if err := s.applyFixture(ctx, f, now, horizon, &rep); err != nil {
			rep.Failed++
			s.log.Warn("fixture sync failed",
				zap.String("home", f.Home),
				zap.String("away", f.Away),
				zap.Time("starts_at", f.StartsAt),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s vs %s: %w", f.Home, f.Away, err))
		}
	}

	result := "ok"
	if len(errs) > 0 {
		result = "partial"
	}
	s.metrics.SyncRun(result)
	s.log.Info("sync finished",
		zap.Int("players", rep.Players),
		zap.Int("created", rep.Created),
		zap.Int("repriced", rep.Repriced),
		zap.Int("resolved", rep.Resolved),
		zap.Int("failed", rep.Failed))
	return &rep, errors.Join(errs...)
}

// upsertSquads writes every squad, one transaction per team.
func (s *SyncService) upsertSquads(ctx context.Context, snap *feed.Snapshot) (int, error) {
	now := s.now()
	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for team := range snap.Squads {
		players := snap.Players(team, now)
		g.Go(func() error {
			err := s.store.InTx(gctx, func(tx store.Tx) error {
				for _, p := range players {
					if err := tx.UpsertPlayer(gctx, p); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("sync.upsertSquads: %s: %w", team, err)
			}
			count.Add(int64(len(players)))
			return nil
		})
	}
	err := g.Wait()
	return int(count.Load()), err
}

func (s *SyncService) applyFixture(ctx context.Context, f feed.Fixture, now, horizon time.Time, rep *SyncReport) error {
	home, away := strings.TrimSpace(f.Home), strings.TrimSpace(f.Away)
	if home == "" || away == "" || f.StartsAt.IsZero() {
		return nil
	}
	ev, err := s.store.FindEventByTeams(ctx, home, away, f.StartsAt.Add(-fixtureWindow), f.StartsAt.Add(fixtureWindow))
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		ev = nil
	case err != nil:
		return err
	}

	if score, final := f.Final(); final {
		if ev == nil || ev.Status == domain.EventCompleted || ev.Status == domain.EventCancelled {
			return nil
		}
		if _, err := s.events.ResolveEvent(ctx, ev.ID, ResolveEventRequest{HomeGoals: score.Home, AwayGoals: score.Away}); err != nil {
			return err
		}
		rep.Resolved++
		return nil
	}

	if ev != nil {
		if !ev.AcceptsBets(now) {
			return nil
		}
		if _, err := s.events.RegenerateOdds(ctx, ev.ID); err != nil {
			return err
		}
		rep.Repriced++
		return nil
	}

	if !f.StartsAt.After(now) || f.StartsAt.After(horizon) {
		return nil
	}
	if _, err := s.events.CreateEvent(ctx, CreateEventRequest{HomeTeam: home, AwayTeam: away, StartsAt: f.StartsAt}); err != nil {
		return err
	}
	rep.Created++
	return nil
}
