package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// BetStatus represents the current state of a user's bet.
type BetStatus string

const (
	BetPending   BetStatus = "PENDING"   // at least one selection unresolved
	BetWon       BetStatus = "WON"       // every selection WON or VOID, not all VOID
	BetLost      BetStatus = "LOST"      // at least one selection LOST
	BetVoid      BetStatus = "VOID"      // every selection VOID; stake refunded
	BetCancelled BetStatus = "CANCELLED" // withdrawn by the user; terminal
)

// ──────────────────────────────────────────────────────────────────────────────
// Bet
// ──────────────────────────────────────────────────────────────────────────────

// Bet is a single or combo wager. OutcomeIDs keeps the order in which the
// selections were placed and Quotes the odds each one was taken at.
// VoidedBy is set when a cancelled event voided the bet; such a bet is final.
type Bet struct {
	ID         uuid.UUID                     `json:"id"                        db:"id"`
	UserID     uuid.UUID                     `json:"user_id"                   db:"user_id"`
	OutcomeIDs []uuid.UUID                   `json:"outcome_ids"               db:"-"`
	Quotes     map[uuid.UUID]decimal.Decimal `json:"-"                         db:"-"`
	Amount     decimal.Decimal               `json:"amount"                    db:"amount"`
	Status     BetStatus                     `json:"status"                    db:"status"`
	Winnings   *decimal.Decimal              `json:"winnings"                  db:"winnings"`
	VoidedBy   *uuid.UUID                    `json:"voided_by_event,omitempty" db:"voided_by_event"`
	PlacedAt   time.Time                     `json:"placed_at"                 db:"placed_at"`
	SettledAt  *time.Time                    `json:"settled_at"                db:"settled_at"`
}

// IsPending returns true while the bet can still be cancelled or settled.
func (b *Bet) IsPending() bool {
	return b.Status == BetPending
}

// IsFinal reports whether settlement may no longer change the bet.
func (b *Bet) IsFinal() bool {
	return b.Status == BetCancelled || b.VoidedBy != nil
}

// IsCombo reports whether the bet spans more than one selection.
func (b *Bet) IsCombo() bool {
	return len(b.OutcomeIDs) > 1
}

// Quote returns the odds the bet took on o. Bets recorded without a quote
// fall back to the outcome's current odds.
func (b *Bet) Quote(o *Outcome) decimal.Decimal {
	if q, ok := b.Quotes[o.ID]; ok {
		return q
	}
	return o.Odds
}

// Legs pairs each outcome's current result with the quote taken on it.
func (b *Bet) Legs(outcomes []*Outcome) []Leg {
	legs := make([]Leg, 0, len(outcomes))
	for _, o := range outcomes {
		legs = append(legs, Leg{Status: o.Status, Odds: b.Quote(o)})
	}
	return legs
}

// ──────────────────────────────────────────────────────────────────────────────
// BetDetail: read model for bet history
// ──────────────────────────────────────────────────────────────────────────────

// BetSelection is one leg of a bet as shown to its owner. Odds is the quote
// taken at placement.
type BetSelection struct {
	OutcomeID   uuid.UUID       `json:"outcome_id"`
	EventID     uuid.UUID       `json:"event_id"`
	EventName   string          `json:"event_name"`
	Group       string          `json:"group"`
	Description string          `json:"description"`
	Odds        decimal.Decimal `json:"odds"`
	Status      OutcomeStatus   `json:"status"`
}

// BetDetail is the API view of a bet with its selections expanded.
type BetDetail struct {
	*Bet
	TotalOdds  decimal.Decimal `json:"total_odds"`
	Selections []BetSelection  `json:"selections"`
}

// NewBetDetail builds the read model. outcomes and events are looked up by
// id; selections whose outcome is missing are skipped.
func NewBetDetail(b *Bet, outcomes map[uuid.UUID]*Outcome, events map[uuid.UUID]*Event) BetDetail {
	d := BetDetail{Bet: b, TotalOdds: decimal.NewFromInt(1), Selections: make([]BetSelection, 0, len(b.OutcomeIDs))}
	for _, id := range b.OutcomeIDs {
		o, ok := outcomes[id]
		if !ok {
			continue
		}
		sel := BetSelection{
			OutcomeID:   o.ID,
			EventID:     o.EventID,
			Group:       o.Group(),
			Description: o.Description,
			Odds:        b.Quote(o),
			Status:      o.Status,
		}
		if e, ok := events[o.EventID]; ok {
			sel.EventName = e.Name
		}
		d.TotalOdds = d.TotalOdds.Mul(sel.Odds)
		d.Selections = append(d.Selections, sel)
	}
	d.TotalOdds = d.TotalOdds.Round(2)
	return d
}

// PotentialWinnings is the payout if every selection wins at its quote.
func (d BetDetail) PotentialWinnings() decimal.Decimal {
	return d.Amount.Mul(d.TotalOdds).Round(2)
}

// ──────────────────────────────────────────────────────────────────────────────
// Event results: who bet on an event and how it went
// ──────────────────────────────────────────────────────────────────────────────

// BetSummary is a compact public view of a bet.
type BetSummary struct {
	ID                uuid.UUID       `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	PotentialWinnings decimal.Decimal `json:"potential_winnings"`
	Status            BetStatus       `json:"status"`
	Outcomes          []string        `json:"outcomes"`
}

// EventBettor groups one user's bets on an event. TotalWon counts WON bets
// only.
type EventBettor struct {
	UserID       uuid.UUID       `json:"user_id"`
	Username     string          `json:"username"`
	TotalWagered decimal.Decimal `json:"total_wagered"`
	TotalWon     decimal.Decimal `json:"total_won"`
	Bets         []BetSummary    `json:"bets"`
}

// Summary builds the compact view of d.
func (d BetDetail) Summary() BetSummary {
	s := BetSummary{
		ID:                d.ID,
		Amount:            d.Amount,
		PotentialWinnings: d.PotentialWinnings(),
		Status:            d.Status,
		Outcomes:          make([]string, 0, len(d.Selections)),
	}
	for _, sel := range d.Selections {
		s.Outcomes = append(s.Outcomes, sel.EventName+": "+sel.Description)
	}
	return s
}
