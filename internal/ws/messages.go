// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines the structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeOddsUpdate    MsgType = "odds_update"
	MsgTypeEventCreated  MsgType = "event_created"
	MsgTypeEventResolved MsgType = "event_resolved"
	MsgTypeEventCanceled MsgType = "event_cancelled"
	MsgTypeBetSettled    MsgType = "bet_settled"
	MsgTypeError         MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// OddsUpdateMessage: broadcast after an event's prices change.
// ──────────────────────────────────────────────────────────────────────────────

// OddsQuote is one re-priced outcome.
type OddsQuote struct {
	OutcomeID uuid.UUID       `json:"outcome_id"`
	Odds      decimal.Decimal `json:"odds"`
}

// OddsUpdateMessage carries the new quotes of one event.
type OddsUpdateMessage struct {
	Type      MsgType     `json:"type"`
	EventID   uuid.UUID   `json:"event_id"`
	Quotes    []OddsQuote `json:"quotes"`
	Timestamp time.Time   `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// EventMessage: broadcast on event lifecycle transitions.
// ──────────────────────────────────────────────────────────────────────────────

// EventMessage tells clients an event was created, resolved or cancelled.
type EventMessage struct {
	Type      MsgType            `json:"type"`
	EventID   uuid.UUID          `json:"event_id"`
	Name      string             `json:"name"`
	Status    domain.EventStatus `json:"status"`
	HomeGoals *int               `json:"home_goals,omitempty"`
	AwayGoals *int               `json:"away_goals,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// BetSettledMessage: sent to the bet owner only.
// ──────────────────────────────────────────────────────────────────────────────

// BetSettledMessage reports a settlement status change.
type BetSettledMessage struct {
	Type      MsgType          `json:"type"`
	BetID     uuid.UUID        `json:"bet_id"`
	Status    domain.BetStatus `json:"status"`
	Winnings  *decimal.Decimal `json:"winnings"`
	Timestamp time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage: sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
