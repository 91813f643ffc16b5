// Package domain defines the core business entities, the market taxonomy and
// the pure wagering rules (conflicts, resolution, settlement) of the platform.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Event
// ──────────────────────────────────────────────────────────────────────────────

// EventStatus represents the lifecycle state of a sporting event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "UPCOMING"  // accepting bets until kick-off
	EventLive      EventStatus = "LIVE"      // kicked off, awaiting a result
	EventFinished  EventStatus = "FINISHED"  // played, result not yet applied
	EventCompleted EventStatus = "COMPLETED" // resolved; outcomes carry results
	EventCancelled EventStatus = "CANCELLED" // called off; pending bets voided
)

// Event is a scheduled match between two teams.
type Event struct {
	ID        uuid.UUID   `json:"id"         db:"id"`
	Name      string      `json:"name"       db:"name"`
	HomeTeam  string      `json:"home_team"  db:"home_team"`
	AwayTeam  string      `json:"away_team"  db:"away_team"`
	StartsAt  time.Time   `json:"starts_at"  db:"starts_at"`
	Status    EventStatus `json:"status"     db:"status"`
	HomeGoals *int        `json:"home_goals" db:"home_goals"`
	AwayGoals *int        `json:"away_goals" db:"away_goals"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// EventName renders the canonical "Home vs Away" display name.
func EventName(home, away string) string {
	return strings.TrimSpace(home) + " vs " + strings.TrimSpace(away)
}

// SplitEventName extracts the teams from a "Home vs Away" name.
func SplitEventName(name string) (home, away string, ok bool) {
	home, away, ok = strings.Cut(name, " vs ")
	home, away = strings.TrimSpace(home), strings.TrimSpace(away)
	return home, away, ok && home != "" && away != ""
}

// AcceptsBets reports whether bets may still be placed on the event at now.
func (e *Event) AcceptsBets(now time.Time) bool {
	if e.Status == EventCancelled || e.Status == EventCompleted {
		return false
	}
	return now.Before(e.StartsAt)
}

// HasStarted reports whether the scheduled kick-off is at or before now.
func (e *Event) HasStarted(now time.Time) bool {
	return !now.Before(e.StartsAt)
}

// Score returns the recorded final score, if any.
func (e *Event) Score() (Score, bool) {
	if e.HomeGoals == nil || e.AwayGoals == nil {
		return Score{}, false
	}
	return Score{Home: *e.HomeGoals, Away: *e.AwayGoals}, true
}

// Score is a final match result.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Total returns the goals scored by both sides.
func (s Score) Total() int { return s.Home + s.Away }

// ──────────────────────────────────────────────────────────────────────────────
// Outcome
// ──────────────────────────────────────────────────────────────────────────────

// OutcomeStatus represents the result state of a single bettable proposition.
type OutcomeStatus string

const (
	OutcomePending OutcomeStatus = "PENDING"
	OutcomeWon     OutcomeStatus = "WON"
	OutcomeLost    OutcomeStatus = "LOST"
	OutcomeVoid    OutcomeStatus = "VOID"
)

// IsResolved reports whether s is a terminal result (WON, LOST or VOID).
func (s OutcomeStatus) IsResolved() bool {
	return s == OutcomeWon || s == OutcomeLost || s == OutcomeVoid
}

// MinOdds is the lowest quote an outcome may carry.
var MinOdds = decimal.RequireFromString("1.01")

// Outcome is a single priced proposition tied to an event.
type Outcome struct {
	ID          uuid.UUID `json:"id"          db:"id"`
	EventID     uuid.UUID `json:"event_id"    db:"event_id"`
	Description string    `json:"description" db:"description"`
	MarketCategory
	Selection string           `json:"selection"           db:"selection"`
	Line      *decimal.Decimal `json:"line,omitempty"      db:"line"`
	PlayerID  *uuid.UUID       `json:"player_id,omitempty" db:"player_id"`
	Odds      decimal.Decimal  `json:"odds"                db:"odds"`
	Status    OutcomeStatus    `json:"status"              db:"status"`
	CreatedAt time.Time        `json:"created_at"          db:"created_at"`
}

// Group returns the market-group label of the outcome.
func (o *Outcome) Group() string {
	return o.Label()
}

// OutcomeView is the API-safe view that carries the group label.
type OutcomeView struct {
	*Outcome
	Group string `json:"group"`
}

// ToView converts an Outcome into its response form.
func (o *Outcome) ToView() OutcomeView {
	return OutcomeView{Outcome: o, Group: o.Group()}
}

// EventDetail bundles an event with its outcomes for read endpoints.
type EventDetail struct {
	*Event
	Outcomes []OutcomeView `json:"outcomes"`
}
