// Package service holds the wagering engine: placement and cancellation,
// settlement, event administration, accounts and the feed sync. Services
// run every money movement inside a store transaction and fan out side
// effects (events, notifications, websocket pushes) only after commit.
package service

import (
	"context"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/events"
	"github.com/evetabi/furbito/internal/metrics"
	"github.com/evetabi/furbito/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// Broadcaster is the minimal interface the services need from the WS hub.
// Implemented by ws.Hub.
type Broadcaster interface {
	BroadcastOdds(eventID uuid.UUID, outcomes []*domain.Outcome)
	BroadcastEvent(e *domain.Event)
	SendBetSettled(userID, betID uuid.UUID, status domain.BetStatus, winnings *decimal.Decimal)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastOdds(uuid.UUID, []*domain.Outcome) {}
func (nopBroadcaster) BroadcastEvent(*domain.Event) {}
func (nopBroadcaster) SendBetSettled(uuid.UUID, uuid.UUID, domain.BetStatus, *decimal.Decimal) {}

// ──────────────────────────────────────────────────────────────────────────────
// Hooks
// ──────────────────────────────────────────────────────────────────────────────

// Hooks carries the post-commit collaborators shared by every service. Nil
// fields fall back to no-ops, so tests only set what they assert on.
type Hooks struct {
	Publisher events.Publisher
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Clock     func() time.Time
}

type hooks struct {
	pub     events.Publisher
	notify  notify.Notifier
	metrics *metrics.Metrics
	log     *zap.Logger
	clock   func() time.Time
}

func newHooks(h Hooks, component string) hooks {
	out := hooks{
		pub:     h.Publisher,
		notify:  h.Notifier,
		metrics: h.Metrics,
		log:     h.Log,
		clock:   h.Clock,
	}
	if out.pub == nil {
		out.pub = events.Nop{}
	}
	if out.notify == nil {
		out.notify = notify.Nop{}
	}
	if out.log == nil {
		out.log = zap.NewNop()
	}
	out.log = out.log.With(zap.String("component", component))
	if out.clock == nil {
		out.clock = time.Now
	}
	return out
}

func (h hooks) now() time.Time { return h.clock().UTC() }

// publish emits a domain event; failures are logged and otherwise ignored.
func (h hooks) publish(ctx context.Context, key uuid.UUID, eventType string, payload any) {
	if err := h.pub.Publish(ctx, key.String(), eventType, payload); err != nil {
		h.log.Warn("publish failed", zap.String("type", eventType), zap.Stringer("key", key), zap.Error(err))
	}
}
