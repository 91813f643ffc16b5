package odds_test

import (
	"math"
	"testing"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/odds"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProbabilityToOdds(t *testing.T) {
	cases := []struct {
		prob float64
		want string
	}{
		{0.5, "1.84"},
		{0.3, "3.07"},  // 1/0.3 × 0.92 = 3.0666…
		{0.01, "46"},   // clamped to MinProb
		{0, "46"},      // non-positive treated as MinProb
		{0.9, "1.1"},   // clamped to MaxProb, then to MinOdds
		{0.25, "3.68"}, // exact
	}
	for _, tc := range cases {
		got := odds.ProbabilityToOdds(tc.prob)
		if !got.Equal(d(tc.want)) {
			t.Errorf("ProbabilityToOdds(%v) = %s, want %s", tc.prob, got, tc.want)
		}
	}
}

func TestTradable(t *testing.T) {
	p := odds.Default()
	if p.Tradable(d("1.01")) {
		t.Error("1.01 must not be tradable")
	}
	if !p.Tradable(d("1.02")) {
		t.Error("1.02 must be tradable")
	}
}

func TestPoissonOver(t *testing.T) {
	cases := []struct {
		lambda, line, want float64
	}{
		{1, 0.5, 1 - math.Exp(-1)},
		{2.5, 2.5, 1 - math.Exp(-2.5)*(1+2.5+3.125)},
		{0, 0.5, 0},
		{1.7, -1, 1},
	}
	for _, tc := range cases {
		got := odds.PoissonOver(tc.lambda, tc.line)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("PoissonOver(%v, %v) = %v, want %v", tc.lambda, tc.line, got, tc.want)
		}
	}
}

func TestLadderMonotonic(t *testing.T) {
	p := odds.Default()
	for _, lambda := range []float64{0.3, 0.9, 1.6, 2.7, 3.4, 5.0} {
		rungs := p.Ladder(lambda, odds.Lines(9.5))
		if len(rungs) != 10 {
			t.Fatalf("λ=%v: got %d rungs, want 10", lambda, len(rungs))
		}

		var overs, unders []decimal.Decimal
		for _, r := range rungs {
			if r.OverOK {
				overs = append(overs, r.Over)
			}
			if r.UnderOK {
				unders = append(unders, r.Under)
			}
		}
		for i := 1; i < len(overs); i++ {
			if !overs[i].GreaterThan(overs[i-1]) {
				t.Errorf("λ=%v: over odds not increasing: %s then %s", lambda, overs[i-1], overs[i])
			}
		}
		for i := 1; i < len(unders); i++ {
			if !unders[i].LessThan(unders[i-1]) {
				t.Errorf("λ=%v: under odds not decreasing: %s then %s", lambda, unders[i-1], unders[i])
			}
		}
	}
}

func TestLadderNudgesAndSuppresses(t *testing.T) {
	rungs := odds.Default().Ladder(0.5, odds.Lines(3.5))

	// Under 1.5 and under 2.5 both clamp to 1.10; the second is nudged to
	// 1.05 and under 3.5 falls to 1.00, which is suppressed.
	if !rungs[1].Under.Equal(d("1.10")) {
		t.Fatalf("rung 1 under = %s, want 1.10", rungs[1].Under)
	}
	if !rungs[2].Under.Equal(d("1.05")) || !rungs[2].UnderOK {
		t.Fatalf("rung 2 under = %s (ok=%v), want 1.05", rungs[2].Under, rungs[2].UnderOK)
	}
	if !rungs[3].Under.Equal(d("1.00")) || rungs[3].UnderOK {
		t.Fatalf("rung 3 under = %s (ok=%v), want suppressed 1.00", rungs[3].Under, rungs[3].UnderOK)
	}
	// Over 2.5 and over 3.5 both hit the 46.00 cap.
	if !rungs[3].Over.Equal(d("46.05")) {
		t.Fatalf("rung 3 over = %s, want 46.05", rungs[3].Over)
	}
}

func TestStrength(t *testing.T) {
	best := domain.TeamStats{Points: 30, Played: 10, GoalsFor: 30, GoalsAgainst: 0}
	if got := odds.Strength(best); math.Abs(got-1) > 1e-9 {
		t.Errorf("Strength(best) = %v, want 1", got)
	}
	if got := odds.Strength(domain.TeamStats{}); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("Strength(unplayed) = %v, want 0.3", got)
	}
	worst := domain.TeamStats{Points: 0, Played: 10, GoalsFor: 0, GoalsAgainst: 40}
	if got := odds.Strength(worst); got != 0.1 {
		t.Errorf("Strength(worst) = %v, want floor 0.1", got)
	}
}

func TestMatchProbabilities(t *testing.T) {
	even := odds.MatchProbabilities(domain.TeamStats{}, domain.TeamStats{})
	if math.Abs(even.Draw-0.35) > 1e-9 || math.Abs(even.Home-even.Away) > 1e-9 {
		t.Errorf("even match = %+v", even)
	}

	strong := domain.TeamStats{Points: 27, Played: 10, GoalsFor: 28, GoalsAgainst: 5}
	weak := domain.TeamStats{Points: 4, Played: 10, GoalsFor: 6, GoalsAgainst: 25}
	m := odds.MatchProbabilities(strong, weak)
	if sum := m.Home + m.Draw + m.Away; math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %v", sum)
	}
	if m.Home <= m.Away {
		t.Errorf("stronger home side should be favoured: %+v", m)
	}
	if m.Draw < 0.15 || m.Draw > 0.35 {
		t.Errorf("draw %v out of range", m.Draw)
	}
	if math.Abs(m.HomeNoDraw()+m.AwayNoDraw()-1) > 1e-9 {
		t.Errorf("draw-no-bet does not sum to 1")
	}
}

func TestBothTeamsScore(t *testing.T) {
	if got := odds.BothTeamsScore(0, 0); got != 0.10 {
		t.Errorf("BTTS(0,0) = %v, want 0.10", got)
	}
	if got := odds.BothTeamsScore(10, 10); got != 0.90 {
		t.Errorf("BTTS(10,10) = %v, want 0.90", got)
	}
	want := (1 - math.Exp(-1.2)) * (1 - math.Exp(-0.8))
	if got := odds.BothTeamsScore(1.2, 0.8); math.Abs(got-want) > 1e-12 {
		t.Errorf("BTTS(1.2,0.8) = %v, want %v", got, want)
	}
}

func TestExpectedGoals(t *testing.T) {
	home := domain.TeamStats{Played: 10, GoalsFor: 20, GoalsAgainst: 10}
	away := domain.TeamStats{Played: 5, GoalsFor: 5, GoalsAgainst: 10}
	lh, la := odds.ExpectedGoals(home, away)
	if lh != 2 || la != 1 {
		t.Errorf("ExpectedGoals = %v, %v; want 2, 1", lh, la)
	}
}
