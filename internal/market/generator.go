// Package market builds the priced outcome set of an event from team and
// player statistics.
package market

import (
	"fmt"
	"strings"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/odds"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Goal-line ranges.
const (
	MaxTotalLine = 9.5
	MaxTeamLine  = 6.5
)

// Generator produces outcomes for an event. It is pure: nothing is
// persisted and the same statistics always yield the same quotes.
type Generator struct {
	pricer *odds.Pricer
}

// NewGenerator returns a Generator pricing with p (odds.Default() when nil).
func NewGenerator(p *odds.Pricer) *Generator {
	if p == nil {
		p = odds.Default()
	}
	return &Generator{pricer: p}
}

// Pricer exposes the pricing constants in use.
func (g *Generator) Pricer() *odds.Pricer { return g.pricer }

// ──────────────────────────────────────────────────────────────────────────────
// Team markets
// ──────────────────────────────────────────────────────────────────────────────

// TeamMarkets prices match winner, double chance, draw-no-bet, the total and
// per-team goal ladders and both-teams-to-score. Derived markets come from
// the same normalised 1X2 probabilities.
func (g *Generator) TeamMarkets(ev *domain.Event, home, away domain.TeamStats) []*domain.Outcome {
	b := builder{ev: ev, pricer: g.pricer}

	m := odds.MatchProbabilities(home, away)
	b.add(domain.MatchWinner(), domain.SelHome, "1", m.Home)
	b.add(domain.MatchWinner(), domain.SelDraw, "X", m.Draw)
	b.add(domain.MatchWinner(), domain.SelAway, "2", m.Away)

	b.add(domain.DoubleChance(), domain.SelHomeDraw, "1X", m.HomeOrDraw())
	b.add(domain.DoubleChance(), domain.SelDrawAway, "X2", m.DrawOrAway())
	b.add(domain.DoubleChance(), domain.SelHomeAway, "12", m.HomeOrAway())

	b.add(domain.DrawNoBet(), domain.SelHome, "1 (Sin Empate)", m.HomeNoDraw())
	b.add(domain.DrawNoBet(), domain.SelAway, "2 (Sin Empate)", m.AwayNoDraw())

	lh, la := odds.ExpectedGoals(home, away)
	b.ladder(lh+la, MaxTotalLine, domain.TotalGoals)
	b.ladder(lh, MaxTeamLine, func(d domain.Direction) domain.MarketCategory { return domain.TeamGoals(ev.HomeTeam, d) })
	b.ladder(la, MaxTeamLine, func(d domain.Direction) domain.MarketCategory { return domain.TeamGoals(ev.AwayTeam, d) })

	btts := odds.BothTeamsScore(lh, la)
	b.add(domain.BothTeamsScore(), domain.SelYes, "Sí", btts)
	b.add(domain.BothTeamsScore(), domain.SelNo, "No", 1-btts)

	return b.out
}

// ──────────────────────────────────────────────────────────────────────────────
// Player markets
// ──────────────────────────────────────────────────────────────────────────────

// PlayerMarkets prices goal, assist, card, first-scorer and goal-and-assist
// outcomes for both squads.
func (g *Generator) PlayerMarkets(ev *domain.Event, homeSquad, awaySquad []*domain.Player) []*domain.Outcome {
	b := builder{ev: ev, pricer: g.pricer}
	all := append(append([]*domain.Player{}, homeSquad...), awaySquad...)

	for _, p := range all {
		b.addPlayer(domain.PlayerGoal(p.ID.String()), p, "Gol de "+p.Name, g.pricer.GoalProbability(p))
	}
	for _, p := range all {
		b.addPlayer(domain.PlayerAssist(p.ID.String()), p, "Asistencia de "+p.Name, g.pricer.AssistProbability(p))
	}
	for _, p := range all {
		if odds.OffersYellow(p) {
			b.addPlayer(domain.PlayerCard(domain.CardYellow), p, "Tarjeta amarilla para "+p.Name, g.pricer.YellowProbability(p))
		}
	}
	for _, p := range all {
		if odds.OffersRed(p) {
			b.addPlayer(domain.PlayerCard(domain.CardRed), p, "Tarjeta roja para "+p.Name, g.pricer.RedProbability(p))
		}
	}

	field := append(odds.TopScorers(homeSquad, odds.FirstScorerPerTeam), odds.TopScorers(awaySquad, odds.FirstScorerPerTeam)...)
	for _, p := range field {
		b.addPlayer(domain.FirstScorer(), p, p.Name+" primer goleador", g.pricer.FirstScorerProbability(p, field))
	}

	var contributors []*domain.Player
	for _, p := range all {
		if odds.OffersGoalAndAssist(p) {
			contributors = append(contributors, p)
		}
	}
	for _, p := range odds.TopContributors(contributors, odds.GoalAndAssistLimit) {
		b.addPlayer(domain.GoalAndAssist(p.ID.String()), p, p.Name+" marca y asiste", g.pricer.GoalAndAssistProbability(p))
	}

	return b.out
}

// PlayerQuote re-prices a single player outcome from fresh statistics. ok is
// false for markets that depend on the whole field (first scorer) and for
// non-player outcomes.
func (g *Generator) PlayerQuote(o *domain.Outcome, p *domain.Player) (quote decimal.Decimal, ok bool) {
	var prob float64
	switch o.Kind {
	case domain.KindPlayerGoal:
		prob = g.pricer.GoalProbability(p)
	case domain.KindPlayerAssist:
		prob = g.pricer.AssistProbability(p)
	case domain.KindPlayerCard:
		if o.Subject == domain.CardRed {
			prob = g.pricer.RedProbability(p)
		} else {
			prob = g.pricer.YellowProbability(p)
		}
	case domain.KindGoalAndAssist:
		prob = g.pricer.GoalAndAssistProbability(p)
	default:
		return decimal.Zero, false
	}
	quote = g.pricer.ProbabilityToOdds(prob)
	return quote, g.pricer.Tradable(quote)
}

// ──────────────────────────────────────────────────────────────────────────────
// Keys
// ──────────────────────────────────────────────────────────────────────────────

// Key identifies an outcome within its event independently of its id and
// price, so a regenerated outcome can be matched with the stored one.
func Key(o *domain.Outcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%s|%s", o.Kind, o.Subject, o.Direction, o.Selection)
	if o.Line != nil {
		sb.WriteString("|" + o.Line.String())
	}
	if o.PlayerID != nil {
		sb.WriteString("|" + o.PlayerID.String())
	}
	return sb.String()
}

// ──────────────────────────────────────────────────────────────────────────────
// builder
// ──────────────────────────────────────────────────────────────────────────────

type builder struct {
	ev     *domain.Event
	pricer *odds.Pricer
	out    []*domain.Outcome
}

func (b *builder) newOutcome(cat domain.MarketCategory, sel, desc string, quote decimal.Decimal) *domain.Outcome {
	o := &domain.Outcome{
		ID:             uuid.New(),
		EventID:        b.ev.ID,
		Description:    desc,
		MarketCategory: cat,
		Selection:      sel,
		Odds:           quote,
		Status:         domain.OutcomePending,
	}
	b.out = append(b.out, o)
	return o
}

func (b *builder) add(cat domain.MarketCategory, sel, desc string, prob float64) {
	quote := b.pricer.ProbabilityToOdds(prob)
	if !b.pricer.Tradable(quote) {
		return
	}
	b.newOutcome(cat, sel, desc, quote)
}

func (b *builder) addPlayer(cat domain.MarketCategory, p *domain.Player, desc string, prob float64) {
	quote := b.pricer.ProbabilityToOdds(prob)
	if !b.pricer.Tradable(quote) {
		return
	}
	id := p.ID
	b.newOutcome(cat, desc, desc, quote).PlayerID = &id
}

func (b *builder) ladder(lambda, maxLine float64, cat func(domain.Direction) domain.MarketCategory) {
	for _, r := range b.pricer.Ladder(lambda, odds.Lines(maxLine)) {
		line := decimal.NewFromFloat(r.Line)
		if r.OverOK {
			desc := "Más de " + line.String()
			b.newOutcome(cat(domain.DirectionOver), desc, desc, r.Over).Line = &line
		}
		if r.UnderOK {
			desc := "Menos de " + line.String()
			b.newOutcome(cat(domain.DirectionUnder), desc, desc, r.Under).Line = &line
		}
	}
}
