package odds

import (
	"math"

	"github.com/evetabi/furbito/internal/domain"
)

// Weights of the team strength composite.
const (
	weightPoints  = 0.40
	weightGoalDif = 0.30
	weightOffense = 0.15
	weightDefense = 0.15

	strengthFloor = 0.1

	drawMax       = 0.35
	drawMin       = 0.15
	drawGapFactor = 5.0

	bttsMin = 0.10
	bttsMax = 0.90
)

// perGame divides by the matches played, treating a team without matches as
// having played one so every rate is zero.
func perGame(v int, played int) float64 {
	return float64(v) / float64(max(1, played))
}

// Strength is the weighted composite used for match-result pricing:
// points per game, normalised goal difference per game, offence and defence.
// A team that has not played yet scores 0.3.
func Strength(s domain.TeamStats) float64 {
	ppg := perGame(s.Points, s.Played) / 3
	gd := clamp((perGame(s.GoalsFor-s.GoalsAgainst, s.Played)+3)/6, 0, 1)
	offense := math.Min(perGame(s.GoalsFor, s.Played)/3, 1)
	defense := 1 - math.Min(perGame(s.GoalsAgainst, s.Played)/3, 1)

	v := weightPoints*clamp(ppg, 0, 1) + weightGoalDif*gd + weightOffense*offense + weightDefense*defense
	return math.Max(strengthFloor, v)
}

// MatchProbs are the normalised fair probabilities of the 1X2 market.
type MatchProbs struct {
	Home, Draw, Away float64
}

// HomeOrDraw is the fair probability of 1X.
func (m MatchProbs) HomeOrDraw() float64 { return m.Home + m.Draw }

// DrawOrAway is the fair probability of X2.
func (m MatchProbs) DrawOrAway() float64 { return m.Draw + m.Away }

// HomeOrAway is the fair probability of 12.
func (m MatchProbs) HomeOrAway() float64 { return m.Home + m.Away }

// HomeNoDraw is the fair probability of the home side in draw-no-bet.
func (m MatchProbs) HomeNoDraw() float64 {
	if m.Home+m.Away == 0 {
		return 0.5
	}
	return m.Home / (m.Home + m.Away)
}

// AwayNoDraw is the fair probability of the away side in draw-no-bet.
func (m MatchProbs) AwayNoDraw() float64 { return 1 - m.HomeNoDraw() }

// MatchProbabilities derives 1X2 probabilities from both strengths. The draw
// is likelier the closer the teams are; the rest is split by relative
// strength and the three are normalised to sum to 1.
func MatchProbabilities(home, away domain.TeamStats) MatchProbs {
	sh, sa := Strength(home), Strength(away)
	gap := math.Abs(sh - sa)
	draw := clamp(drawMax/(1+drawGapFactor*gap), drawMin, drawMax)

	rest := 1 - draw
	ph := rest * sh / (sh + sa)
	pa := rest * sa / (sh + sa)

	total := ph + draw + pa
	return MatchProbs{Home: ph / total, Draw: draw / total, Away: pa / total}
}

// ExpectedGoals returns the Poisson means for each side: the average of the
// team's scoring rate and the opponent's conceding rate.
func ExpectedGoals(home, away domain.TeamStats) (lambdaHome, lambdaAway float64) {
	lambdaHome = (perGame(home.GoalsFor, home.Played) + perGame(away.GoalsAgainst, away.Played)) / 2
	lambdaAway = (perGame(away.GoalsFor, away.Played) + perGame(home.GoalsAgainst, home.Played)) / 2
	return lambdaHome, lambdaAway
}

// BothTeamsScore is P(home ≥ 1)·P(away ≥ 1) under independent Poisson
// scoring, clamped to [0.10, 0.90].
func BothTeamsScore(lambdaHome, lambdaAway float64) float64 {
	p := (1 - math.Exp(-lambdaHome)) * (1 - math.Exp(-lambdaAway))
	return clamp(p, bttsMin, bttsMax)
}
