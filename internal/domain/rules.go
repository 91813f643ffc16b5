package domain

import (
	"github.com/shopspring/decimal"
)

// Selection codes of the score-based markets.
const (
	SelHome     = "1"
	SelDraw     = "X"
	SelAway     = "2"
	SelHomeDraw = "1X"
	SelDrawAway = "X2"
	SelHomeAway = "12"
	SelYes      = "Sí"
	SelNo       = "No"
)

// ──────────────────────────────────────────────────────────────────────────────
// Conflicts
// ──────────────────────────────────────────────────────────────────────────────

// CheckConflicts returns ErrConflictingSelections when two outcomes of the
// same event cannot share a bet.
func CheckConflicts(outcomes []*Outcome) error {
	for i := 0; i < len(outcomes); i++ {
		for j := i + 1; j < len(outcomes); j++ {
			a, b := outcomes[i], outcomes[j]
			if a.EventID != b.EventID {
				continue
			}
			if a.MarketCategory.ConflictsWith(b.MarketCategory) {
				return ErrConflictingSelections
			}
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolution
// ──────────────────────────────────────────────────────────────────────────────

// ResolveOutcome evaluates a score-based outcome against the final score.
// ok is false for player markets, team markets naming neither side and
// malformed outcomes; those are left for an operator to settle.
func ResolveOutcome(o *Outcome, e *Event, s Score) (status OutcomeStatus, ok bool) {
	switch o.Kind {
	case KindMatchWinner:
		switch o.Selection {
		case SelHome:
			return wonIf(s.Home > s.Away), true
		case SelDraw:
			return wonIf(s.Home == s.Away), true
		case SelAway:
			return wonIf(s.Away > s.Home), true
		}

	case KindDoubleChance:
		switch o.Selection {
		case SelHomeDraw:
			return wonIf(s.Home >= s.Away), true
		case SelDrawAway:
			return wonIf(s.Away >= s.Home), true
		case SelHomeAway:
			return wonIf(s.Home != s.Away), true
		}

	case KindDrawNoBet:
		if s.Home == s.Away {
			return OutcomeVoid, true
		}
		switch o.Selection {
		case SelHome:
			return wonIf(s.Home > s.Away), true
		case SelAway:
			return wonIf(s.Away > s.Home), true
		}

	case KindTotalGoals:
		return resolveLine(o, s.Total())

	case KindTeamGoals:
		switch o.Subject {
		case e.HomeTeam:
			return resolveLine(o, s.Home)
		case e.AwayTeam:
			return resolveLine(o, s.Away)
		}

	case KindBothTeamsScore:
		both := s.Home >= 1 && s.Away >= 1
		switch o.Selection {
		case SelYes:
			return wonIf(both), true
		case SelNo:
			return wonIf(!both), true
		}
	}
	return "", false
}

// resolveLine applies the strict over/under rule: landing exactly on the
// line loses both sides.
func resolveLine(o *Outcome, goals int) (OutcomeStatus, bool) {
	if o.Line == nil {
		return "", false
	}
	g := decimal.NewFromInt(int64(goals))
	switch o.Direction {
	case DirectionOver:
		return wonIf(g.GreaterThan(*o.Line)), true
	case DirectionUnder:
		return wonIf(g.LessThan(*o.Line)), true
	}
	return "", false
}

func wonIf(cond bool) OutcomeStatus {
	if cond {
		return OutcomeWon
	}
	return OutcomeLost
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────────────────────────────────

// Settlement is the result of evaluating a bet against its outcomes.
// Winnings is nil while the bet is PENDING.
type Settlement struct {
	Status   BetStatus
	Winnings *decimal.Decimal
}

// Leg is one selection of a bet at settlement time: the outcome's current
// result and the odds the bet was placed at.
type Leg struct {
	Status OutcomeStatus
	Odds   decimal.Decimal
}

// Evaluate derives a bet's status and winnings from its legs. A LOST leg
// decides the bet even while siblings are pending. VOID legs count as odds
// 1.00.
func Evaluate(stake decimal.Decimal, legs []Leg) Settlement {
	comboOdds := decimal.NewFromInt(1)
	pending, allVoid := false, true
	for _, l := range legs {
		switch l.Status {
		case OutcomeLost:
			zero := decimal.Zero
			return Settlement{Status: BetLost, Winnings: &zero}
		case OutcomePending:
			pending = true
			allVoid = false
		case OutcomeWon:
			comboOdds = comboOdds.Mul(l.Odds)
			allVoid = false
		}
	}
	if pending {
		return Settlement{Status: BetPending}
	}
	if allVoid {
		refund := stake
		return Settlement{Status: BetVoid, Winnings: &refund}
	}
	w := stake.Mul(comboOdds).Round(2)
	return Settlement{Status: BetWon, Winnings: &w}
}

// MonetaryEffect is the amount a settled state has credited to the owner:
// winnings for WON, the stake for VOID, nothing otherwise.
func MonetaryEffect(status BetStatus, winnings *decimal.Decimal, stake decimal.Decimal) decimal.Decimal {
	switch status {
	case BetWon:
		if winnings == nil {
			return decimal.Zero
		}
		return *winnings
	case BetVoid:
		return stake
	}
	return decimal.Zero
}
