// Package events publishes domain events (bet placed, bet settled, event
// resolved) for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event types.
const (
	TypeBetPlaced     = "bet.placed"
	TypeBetCancelled  = "bet.cancelled"
	TypeBetSettled    = "bet.settled"
	TypeEventCreated  = "event.created"
	TypeEventResolved = "event.resolved"
	TypeEventCanceled = "event.cancelled"
)

// Envelope is the wire form of every published event.
type Envelope struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// BetPlaced is published after a placement commits.
type BetPlaced struct {
	BetID      uuid.UUID       `json:"bet_id"`
	UserID     uuid.UUID       `json:"user_id"`
	OutcomeIDs []uuid.UUID     `json:"outcome_ids"`
	Amount     decimal.Decimal `json:"amount"`
}

// BetSettled is published when settlement changes a bet's status.
type BetSettled struct {
	BetID    uuid.UUID        `json:"bet_id"`
	UserID   uuid.UUID        `json:"user_id"`
	From     string           `json:"from"`
	To       string           `json:"to"`
	Winnings *decimal.Decimal `json:"winnings"`
}

// EventChanged is published for event lifecycle transitions.
type EventChanged struct {
	EventID   uuid.UUID `json:"event_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	HomeGoals *int      `json:"home_goals,omitempty"`
	AwayGoals *int      `json:"away_goals,omitempty"`
}

// Publisher emits domain events. Implementations must not block for long;
// callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, key string, eventType string, payload any) error
	Close() error
}

// ──────────────────────────────────────────────────────────────────────────────
// Kafka
// ──────────────────────────────────────────────────────────────────────────────

// KafkaPublisher writes JSON envelopes to one topic, keyed by aggregate id.
type KafkaPublisher struct {
	w *kafka.Writer
}

// NewKafkaPublisher creates an asynchronous writer for brokers (comma
// separated). Delivery errors are logged through log.
func NewKafkaPublisher(brokers, topic string, log *zap.Logger) *KafkaPublisher {
	log = log.With(zap.String("component", "kafka"))
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Warn(fmt.Sprintf(msg, args...))
		}),
	}}
}

// Publish enqueues one event.
func (p *KafkaPublisher) Publish(ctx context.Context, key, eventType string, payload any) error {
	b, err := Marshal(eventType, payload, time.Now().UTC())
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Marshal encodes an Envelope.
func Marshal(eventType string, payload any, at time.Time) ([]byte, error) {
	b, err := json.Marshal(Envelope{Type: eventType, At: at, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	return b, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Nop
// ──────────────────────────────────────────────────────────────────────────────

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
func (Nop) Close() error { return nil }
