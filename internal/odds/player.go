package odds

import (
	"math"
	"sort"

	"github.com/evetabi/furbito/internal/domain"
)

const (
	reliableMatches     = 3   // below this a blank record is not trusted
	confidenceMatches   = 10  // matches needed for full confidence
	scorelessGoalFloor  = 1.5 // × MinProb for scoreless regulars
	yellowBaseRate      = 0.05
	redBaseRate         = 0.01
	firstScorerDiscount = 0.7
	goalAssistDiscount  = 0.8

	// FirstScorerPerTeam is how many candidates each side contributes to the
	// first-scorer field.
	FirstScorerPerTeam = 5
	// GoalAndAssistLimit caps the goal-and-assist market.
	GoalAndAssistLimit = 10
)

// GoalRate is goals per match played, 0 for a player without matches.
func GoalRate(p *domain.Player) float64 {
	if p.MatchesPlayed == 0 {
		return 0
	}
	return float64(p.Goals) / float64(p.MatchesPlayed)
}

// AssistRate is assists per match played.
func AssistRate(p *domain.Player) float64 {
	if p.MatchesPlayed == 0 {
		return 0
	}
	return float64(p.Assists) / float64(p.MatchesPlayed)
}

// frequency scales a per-match rate by sample confidence and by how often
// the player starts (0.8 for a bench player up to 1.2 for an ever-present).
func frequency(count int, p *domain.Player) float64 {
	m := float64(p.MatchesPlayed)
	rate := float64(count) / m
	confidence := math.Min(1, m/confidenceMatches)
	starting := 1.0
	if p.MatchesStarted > 0 {
		starting = 0.8 + 0.4*float64(p.MatchesStarted)/m
	}
	return rate * confidence * starting
}

// GoalProbability estimates the chance that the player scores.
func (pr *Pricer) GoalProbability(p *domain.Player) float64 {
	if p.MatchesPlayed == 0 {
		return pr.cfg.MinProb
	}
	prob := frequency(p.Goals, p)
	if p.Goals == 0 && p.MatchesPlayed >= reliableMatches {
		prob = pr.cfg.MinProb * scorelessGoalFloor
	}
	return pr.ClampProb(prob)
}

// AssistProbability estimates the chance that the player assists.
func (pr *Pricer) AssistProbability(p *domain.Player) float64 {
	if p.MatchesPlayed == 0 {
		return pr.cfg.MinProb
	}
	prob := frequency(p.Assists, p)
	if p.Assists == 0 && p.MatchesPlayed >= reliableMatches {
		prob = pr.cfg.MinProb
	}
	return pr.ClampProb(prob)
}

// YellowProbability estimates the chance of a booking.
func (pr *Pricer) YellowProbability(p *domain.Player) float64 {
	if p.MatchesPlayed == 0 {
		return pr.cfg.MinProb
	}
	if p.YellowCards == 0 {
		return pr.ClampProb(yellowBaseRate)
	}
	return pr.ClampProb(float64(p.YellowCards) / float64(p.MatchesPlayed))
}

// RedProbability estimates the chance of a sending-off. A yellow-card habit
// raises it by up to 10 % per match.
func (pr *Pricer) RedProbability(p *domain.Player) float64 {
	if p.MatchesPlayed == 0 {
		return pr.cfg.MinProb
	}
	m := float64(p.MatchesPlayed)
	yellowFactor := 1 + 0.1*float64(min(p.YellowCards, 10))/m
	if p.RedCards == 0 {
		return pr.ClampProb(redBaseRate * yellowFactor)
	}
	return pr.ClampProb(float64(p.RedCards) / m * yellowFactor)
}

// FirstScorerProbability is the player's share of the field's summed goal
// rate, discounted. A field without goals is shared uniformly.
func (pr *Pricer) FirstScorerProbability(p *domain.Player, field []*domain.Player) float64 {
	if len(field) == 0 {
		return pr.cfg.MinProb
	}
	var total float64
	for _, c := range field {
		total += GoalRate(c)
	}
	var prob float64
	if total > 0 {
		prob = GoalRate(p) / total
	} else {
		prob = 1 / float64(len(field))
	}
	return pr.ClampProb(prob * firstScorerDiscount)
}

// GoalAndAssistProbability treats goal and assist as independent and
// discounts the product.
func (pr *Pricer) GoalAndAssistProbability(p *domain.Player) float64 {
	return pr.ClampProb(pr.GoalProbability(p) * pr.AssistProbability(p) * goalAssistDiscount)
}

// ──────────────────────────────────────────────────────────────────────────────
// Eligibility
// ──────────────────────────────────────────────────────────────────────────────

// OffersYellow reports whether a yellow-card market is offered for p.
func OffersYellow(p *domain.Player) bool {
	return p.MatchesPlayed >= reliableMatches || p.YellowCards > 0
}

// OffersRed reports whether a red-card market is offered for p.
func OffersRed(p *domain.Player) bool {
	return p.RedCards > 0 || p.YellowCards >= 3
}

// OffersGoalAndAssist reports whether p qualifies for goal-and-assist.
func OffersGoalAndAssist(p *domain.Player) bool {
	return p.Goals >= 2 && p.Assists >= 2
}

// TopScorers returns up to n players ordered by goal rate, best first. The
// input is not modified.
func TopScorers(players []*domain.Player, n int) []*domain.Player {
	return topBy(players, n, GoalRate)
}

// TopContributors returns up to n players ordered by goal rate plus assist
// rate.
func TopContributors(players []*domain.Player, n int) []*domain.Player {
	return topBy(players, n, func(p *domain.Player) float64 { return GoalRate(p) + AssistRate(p) })
}

func topBy(players []*domain.Player, n int, score func(*domain.Player) float64) []*domain.Player {
	out := make([]*domain.Player, len(players))
	copy(out, players)
	sort.SliceStable(out, func(i, j int) bool { return score(out[i]) > score(out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
