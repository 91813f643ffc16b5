package odds_test

import (
	"math"
	"testing"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/odds"
)

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestGoalProbability(t *testing.T) {
	p := odds.Default()

	approx(t, "no matches", p.GoalProbability(&domain.Player{}), 0.02)
	approx(t, "scoreless regular", p.GoalProbability(&domain.Player{MatchesPlayed: 5}), 0.03)
	approx(t, "bench scorer", p.GoalProbability(&domain.Player{Goals: 2, MatchesPlayed: 5}), 0.4*0.5)
	approx(t, "ever-present", p.GoalProbability(&domain.Player{Goals: 5, MatchesPlayed: 10, MatchesStarted: 10}), 0.5*1.2)
	approx(t, "prolific, capped", p.GoalProbability(&domain.Player{Goals: 12, MatchesPlayed: 10, MatchesStarted: 10}), 0.85)
}

func TestAssistProbability(t *testing.T) {
	p := odds.Default()
	approx(t, "no assists", p.AssistProbability(&domain.Player{MatchesPlayed: 4}), 0.02)
	approx(t, "half starter", p.AssistProbability(&domain.Player{Assists: 2, MatchesPlayed: 10, MatchesStarted: 5}), 0.2*1.0)
}

func TestCardProbabilities(t *testing.T) {
	p := odds.Default()
	approx(t, "yellow clean", p.YellowProbability(&domain.Player{MatchesPlayed: 6}), 0.05)
	approx(t, "yellow rate", p.YellowProbability(&domain.Player{MatchesPlayed: 10, YellowCards: 3}), 0.3)
	approx(t, "red clean", p.RedProbability(&domain.Player{MatchesPlayed: 10, YellowCards: 5}), 0.02) // 0.0105 clamped
	approx(t, "red rate", p.RedProbability(&domain.Player{MatchesPlayed: 10, YellowCards: 5, RedCards: 1}), 0.1*1.05)
}

func TestFirstScorerProbability(t *testing.T) {
	p := odds.Default()
	a := &domain.Player{Goals: 6, MatchesPlayed: 10}
	b := &domain.Player{Goals: 4, MatchesPlayed: 10}
	field := []*domain.Player{a, b}

	approx(t, "share", p.FirstScorerProbability(a, field), 0.6*0.7)

	blank := []*domain.Player{{MatchesPlayed: 3}, {MatchesPlayed: 3}, {MatchesPlayed: 3}, {MatchesPlayed: 3}}
	approx(t, "uniform", p.FirstScorerProbability(blank[0], blank), 0.25*0.7)
}

func TestEligibility(t *testing.T) {
	if odds.OffersYellow(&domain.Player{MatchesPlayed: 2}) {
		t.Error("yellow offered to a player with two clean matches")
	}
	if !odds.OffersYellow(&domain.Player{MatchesPlayed: 1, YellowCards: 1}) {
		t.Error("yellow not offered to a booked player")
	}
	if odds.OffersRed(&domain.Player{MatchesPlayed: 20, YellowCards: 2}) {
		t.Error("red offered without a disciplinary record")
	}
	if !odds.OffersGoalAndAssist(&domain.Player{Goals: 2, Assists: 2}) {
		t.Error("goal-and-assist not offered")
	}
}

func TestTopScorers(t *testing.T) {
	players := []*domain.Player{
		{Name: "a", Goals: 1, MatchesPlayed: 10},
		{Name: "b", Goals: 9, MatchesPlayed: 10},
		{Name: "c", Goals: 5, MatchesPlayed: 10},
	}
	top := odds.TopScorers(players, 2)
	if len(top) != 2 || top[0].Name != "b" || top[1].Name != "c" {
		t.Fatalf("TopScorers = %v", []string{top[0].Name, top[1].Name})
	}
	if players[0].Name != "a" {
		t.Error("input slice was reordered")
	}
}
