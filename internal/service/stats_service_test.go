package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/odds"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/store"
	"github.com/evetabi/furbito/internal/store/memstore"
	"github.com/google/uuid"
)

func seedPlayers(t *testing.T, st *memstore.Store, players ...*domain.Player) {
	t.Helper()
	ctx := context.Background()
	err := st.InTx(ctx, func(tx store.Tx) error {
		for _, p := range players {
			if err := tx.UpsertPlayer(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("UpsertPlayer: %v", err)
	}
}

func names(players []*domain.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.Name)
	}
	return out
}

func equalNames(got []*domain.Player, want ...string) bool {
	g := names(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestStatsService_Players(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	veteran := &domain.Player{Name: "Veterano", Team: "Leones", Goals: 7, Assists: 1, MatchesPlayed: 12, MatchesStarted: 12}
	seedPlayers(t, st,
		veteran,
		&domain.Player{Name: "Pibe", Team: "Leones", Goals: 7, MatchesPlayed: 10, MatchesStarted: 4},
		&domain.Player{Name: "Enganche", Team: "Halcones", Assists: 4, MatchesPlayed: 8, MatchesStarted: 8},
	)
	s := service.NewStatsService(st, nil, nil)

	scorers, err := s.TopScorers(ctx, 0)
	if err != nil {
		t.Fatalf("TopScorers: %v", err)
	}
	if !equalNames(scorers, "Pibe", "Veterano") {
		t.Errorf("top scorers = %v, want Pibe then Veterano", names(scorers))
	}
	if scorers, _ = s.TopScorers(ctx, 1); !equalNames(scorers, "Pibe") {
		t.Errorf("top 1 scorer = %v, want Pibe", names(scorers))
	}
	assisters, err := s.TopAssisters(ctx, 5)
	if err != nil {
		t.Fatalf("TopAssisters: %v", err)
	}
	if !equalNames(assisters, "Enganche", "Veterano") {
		t.Errorf("top assisters = %v, want Enganche then Veterano", names(assisters))
	}

	teams, err := s.Teams(ctx)
	if err != nil {
		t.Fatalf("Teams: %v", err)
	}
	if len(teams) != 2 || teams[0] != "Halcones" || teams[1] != "Leones" {
		t.Errorf("teams = %v", teams)
	}
	squad, err := s.Squad(ctx, "Leones")
	if err != nil {
		t.Fatalf("Squad: %v", err)
	}
	if !equalNames(squad, "Pibe", "Veterano") {
		t.Errorf("squad = %v, want Pibe and Veterano by name", names(squad))
	}

	ps, err := s.PlayerStats(ctx, veteran.ID)
	if err != nil {
		t.Fatalf("PlayerStats: %v", err)
	}
	p := odds.Default()
	if ps.GoalRate != 7.0/12 || ps.AssistRate != 1.0/12 {
		t.Errorf("rates = %v/%v, want 7/12 and 1/12", ps.GoalRate, ps.AssistRate)
	}
	if want := p.ProbabilityToOdds(p.GoalProbability(ps.Player)); !ps.GoalOdds.Equal(want) {
		t.Errorf("goal odds = %s, want %s", ps.GoalOdds, want)
	}
	if !ps.AssistOdds.GreaterThan(ps.GoalOdds) {
		t.Errorf("assist odds %s should be longer than goal odds %s", ps.AssistOdds, ps.GoalOdds)
	}
	if _, err := s.PlayerStats(ctx, uuid.New()); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("unknown player: err = %v, want ErrPlayerNotFound", err)
	}
}

func TestStatsService_League(t *testing.T) {
	ctx := context.Background()
	one, three := 1, 3
	snap := &feed.Snapshot{
		Standings: []domain.TeamStats{
			{Team: "Halcones", Points: 9, GoalsFor: 8, GoalsAgainst: 22},
			{Team: "Leones", Points: 30, GoalsFor: 25, GoalsAgainst: 10},
			{Team: "Tigres", Points: 30, GoalsFor: 30, GoalsAgainst: 15},
			{Team: "Pumas", Points: 30, GoalsFor: 20, GoalsAgainst: 10},
		},
		Fixtures: []feed.Fixture{
			{Home: "Leones", Away: "Tigres", StartsAt: time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC), HomeGoals: &one, AwayGoals: &one},
			{Home: "Pumas", Away: "Halcones", StartsAt: time.Date(2026, 9, 8, 18, 0, 0, 0, time.UTC), HomeGoals: &three, AwayGoals: &one},
			{Home: "Tigres", Away: "Pumas", StartsAt: time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC)},
		},
	}
	s := service.NewStatsService(memstore.New(), nil, feed.Static{S: snap})

	table, err := s.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	// Points, then goal difference, then goals scored.
	want := []string{"Tigres", "Leones", "Pumas", "Halcones"}
	for i, row := range table {
		if row.Team != want[i] || row.Position != i+1 {
			t.Errorf("row %d = %s at %d, want %s", i, row.Team, row.Position, want[i])
		}
	}
	if table[3].GoalDifference != -14 {
		t.Errorf("Halcones goal difference = %d, want -14", table[3].GoalDifference)
	}

	results, err := s.Results(ctx)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 2 || results[0].Home != "Pumas" || results[1].Home != "Leones" {
		t.Errorf("results = %+v, want the two played fixtures, newest first", results)
	}

	if _, err := service.NewStatsService(memstore.New(), nil, feed.Static{}).Standings(ctx); err == nil {
		t.Error("Standings without a snapshot did not error")
	}
	if _, err := service.NewStatsService(memstore.New(), nil, nil).Results(ctx); err == nil {
		t.Error("Results without a feed did not error")
	}
}
