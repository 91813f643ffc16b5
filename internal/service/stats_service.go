package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/odds"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTopPlayers is the leaderboard size when the caller gives none.
const DefaultTopPlayers = 10

// PlayerStats is a player's record with the rates and quotes derived from it.
type PlayerStats struct {
	*domain.Player
	GoalRate   float64         `json:"goal_rate"`
	AssistRate float64         `json:"assist_rate"`
	GoalOdds   decimal.Decimal `json:"goal_odds"`
	AssistOdds decimal.Decimal `json:"assist_odds"`
}

// Standing is a league table row.
type Standing struct {
	Position int `json:"position"`
	domain.TeamStats
	GoalDifference int `json:"goal_difference"`
}

// StatsService serves read-only player and league statistics: player
// leaderboards and squads from the store, standings and results from the
// feed.
type StatsService struct {
	store  store.Reader
	pricer *odds.Pricer
	feed   feed.Provider
}

// NewStatsService creates a StatsService. A nil pricer uses the defaults.
func NewStatsService(r store.Reader, pricer *odds.Pricer, fp feed.Provider) *StatsService {
	if pricer == nil {
		pricer = odds.Default()
	}
	return &StatsService{store: r, pricer: pricer, feed: fp}
}

// ──────────────────────────────────────────────────────────────────────────────
// Players
// ──────────────────────────────────────────────────────────────────────────────

// TopScorers returns up to n players with the most goals. Ties go to the
// player with fewer matches.
func (s *StatsService) TopScorers(ctx context.Context, n int) ([]*domain.Player, error) {
	return s.top(ctx, "TopScorers", n, func(p *domain.Player) int { return p.Goals })
}

// TopAssisters returns up to n players with the most assists.
func (s *StatsService) TopAssisters(ctx context.Context, n int) ([]*domain.Player, error) {
	return s.top(ctx, "TopAssisters", n, func(p *domain.Player) int { return p.Assists })
}

func (s *StatsService) top(ctx context.Context, op string, n int, count func(*domain.Player) int) ([]*domain.Player, error) {
	if n <= 0 {
		n = DefaultTopPlayers
	}
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats_service.%s: %w", op, err)
	}
	players = slices.DeleteFunc(players, func(p *domain.Player) bool { return count(p) == 0 })
	slices.SortStableFunc(players, func(a, b *domain.Player) int {
		if c := cmp.Compare(count(b), count(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.MatchesPlayed, b.MatchesPlayed)
	})
	if len(players) > n {
		players = players[:n]
	}
	return players, nil
}

// Squad returns a team's players ordered by name.
func (s *StatsService) Squad(ctx context.Context, team string) ([]*domain.Player, error) {
	players, err := s.store.ListPlayersByTeam(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("stats_service.Squad: %w", err)
	}
	return players, nil
}

// Teams returns the distinct teams with stored players, sorted.
func (s *StatsService) Teams(ctx context.Context) ([]string, error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats_service.Teams: %w", err)
	}
	teams := make([]string, 0, len(players))
	for _, p := range players {
		teams = append(teams, p.Team)
	}
	slices.Sort(teams)
	return slices.Compact(teams), nil
}

// PlayerStats returns a player's rates and the quotes a new goal or assist
// market would open at.
func (s *StatsService) PlayerStats(ctx context.Context, id uuid.UUID) (*PlayerStats, error) {
	p, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PlayerStats{
		Player:     p,
		GoalRate:   odds.GoalRate(p),
		AssistRate: odds.AssistRate(p),
		GoalOdds:   s.pricer.ProbabilityToOdds(s.pricer.GoalProbability(p)),
		AssistOdds: s.pricer.ProbabilityToOdds(s.pricer.AssistProbability(p)),
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// League
// ──────────────────────────────────────────────────────────────────────────────

// Standings returns the league table ordered by points, then goal
// difference, then goals scored.
func (s *StatsService) Standings(ctx context.Context) ([]Standing, error) {
	snap, err := s.snapshot(ctx, "Standings")
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(snap.Standings))
	for _, t := range snap.Standings {
		out = append(out, Standing{TeamStats: t, GoalDifference: t.GoalsFor - t.GoalsAgainst})
	}
	slices.SortStableFunc(out, func(a, b Standing) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		if c := cmp.Compare(b.GoalDifference, a.GoalDifference); c != 0 {
			return c
		}
		return cmp.Compare(b.GoalsFor, a.GoalsFor)
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out, nil
}

// Results returns the fixtures with a final score, most recent first.
func (s *StatsService) Results(ctx context.Context) ([]feed.Fixture, error) {
	snap, err := s.snapshot(ctx, "Results")
	if err != nil {
		return nil, err
	}
	var out []feed.Fixture
	for _, f := range snap.Fixtures {
		if _, ok := f.Final(); ok {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b feed.Fixture) int { return b.StartsAt.Compare(a.StartsAt) })
	return out, nil
}

func (s *StatsService) snapshot(ctx context.Context, op string) (*feed.Snapshot, error) {
	if s.feed == nil {
		return nil, fmt.Errorf("stats_service.%s: no feed configured", op)
	}
	snap, err := s.feed.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats_service.%s: %w", op, err)
	}
	return snap, nil
}
