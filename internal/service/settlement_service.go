package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/events"
	"github.com/evetabi/furbito/internal/ledger"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettleReport summarises one settlement run.
type SettleReport struct {
	Bets    int `json:"bets"`    // affected bets examined
	Changed int `json:"changed"` // bets whose status or winnings moved
	Failed  int `json:"failed"`  // bets left untouched by an error
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService re-evaluates bets after outcome statuses change. Every
// bet is settled in its own transaction: it reverses whatever its previous
// state had credited and applies the effect of the new state, so running it
// twice over the same statuses changes nothing.
type SettlementService struct {
	store       store.Store
	broadcaster Broadcaster
	hooks
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(st store.Store, h Hooks) *SettlementService {
	return &SettlementService{
		store:       st,
		broadcaster: nopBroadcaster{},
		hooks:       newHooks(h, "settlement"),
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *SettlementService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// settled describes a committed change to one bet.
type settled struct {
	bet  *domain.Bet
	from domain.BetStatus
}

// SettleOutcomes settles every non-cancelled bet selecting any of
// outcomeIDs. A failing bet is logged and skipped; the failures are returned
// joined after every other bet has been processed.
func (s *SettlementService) SettleOutcomes(ctx context.Context, outcomeIDs []uuid.UUID) (SettleReport, error) {
	report, err := s.settleAll(ctx, outcomeIDs, nil)
	if err != nil {
		return report, fmt.Errorf("settlement.SettleOutcomes: %w", err)
	}
	return report, nil
}

// VoidEventBets settles the bets selecting any of the cancelled event's
// outcomes. A bet still PENDING is voided whole: its stake is refunded and
// it is closed against later corrections of its other selections. Bets
// already decided are re-evaluated as usual.
func (s *SettlementService) VoidEventBets(ctx context.Context, eventID uuid.UUID, outcomeIDs []uuid.UUID) (SettleReport, error) {
	report, err := s.settleAll(ctx, outcomeIDs, &eventID)
	if err != nil {
		return report, fmt.Errorf("settlement.VoidEventBets: %w", err)
	}
	return report, nil
}

func (s *SettlementService) settleAll(ctx context.Context, outcomeIDs []uuid.UUID, cancelled *uuid.UUID) (SettleReport, error) {
	var report SettleReport
	if len(outcomeIDs) == 0 {
		return report, nil
	}
	betIDs, err := s.store.ListBetIDsByOutcomes(ctx, outcomeIDs)
	if err != nil {
		return report, fmt.Errorf("list bets: %w", err)
	}
	report.Bets = len(betIDs)

	var errs []error
	for _, id := range betIDs {
		res, err := s.settleBet(ctx, id, cancelled)
		if err != nil {
			report.Failed++
			s.metrics.SettlementFailed()
			s.log.Error("bet settlement failed", zap.Stringer("bet_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("bet %s: %w", id, err))
			continue
		}
		if res == nil {
			continue
		}
		report.Changed++
		s.afterSettle(ctx, res)
	}
	return report, errors.Join(errs...)
}

// settleBet evaluates one bet under its row lock at the odds it was placed
// at. With cancelled set, a PENDING bet is voided by that event instead. It
// returns nil when the bet is final or already reflects its outcomes.
func (s *SettlementService) settleBet(ctx context.Context, betID uuid.UUID, cancelled *uuid.UUID) (*settled, error) {
	var res *settled
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		bet, err := tx.LockBet(ctx, betID)
		if err != nil {
			return fmt.Errorf("lock bet: %w", err)
		}
		if bet.IsFinal() {
			return nil
		}

		var next domain.Settlement
		if cancelled != nil && bet.Status == domain.BetPending {
			refund := bet.Amount
			next = domain.Settlement{Status: domain.BetVoid, Winnings: &refund}
			bet.VoidedBy = cancelled
		} else {
			outcomes, err := tx.ListOutcomesByIDs(ctx, bet.OutcomeIDs)
			if err != nil {
				return fmt.Errorf("load outcomes: %w", err)
			}
			next = domain.Evaluate(bet.Amount, bet.Legs(outcomes))
			if next.Status == bet.Status && sameAmount(next.Winnings, bet.Winnings) {
				return nil
			}
		}

		// Undo the previous state, then apply the new one.
		if prev := domain.MonetaryEffect(bet.Status, bet.Winnings, bet.Amount); prev.IsPositive() {
			if _, err := ledger.Reverse(ctx, tx, bet.UserID, prev, &bet.ID, "Reversión de liquidación"); err != nil {
				return fmt.Errorf("reverse: %w", err)
			}
		}
		if eff := domain.MonetaryEffect(next.Status, next.Winnings, bet.Amount); eff.IsPositive() {
			kind, desc := domain.EntryPayout, "Apuesta ganada"
			if next.Status == domain.BetVoid {
				kind, desc = domain.EntryRefund, "Apuesta anulada"
			}
			if _, err := ledger.Credit(ctx, tx, bet.UserID, eff, kind, &bet.ID, desc); err != nil {
				return fmt.Errorf("credit: %w", err)
			}
		}

		from := bet.Status
		bet.Status = next.Status
		bet.Winnings = next.Winnings
		bet.SettledAt = nil
		if next.Status != domain.BetPending {
			now := s.now()
			bet.SettledAt = &now
		}
		if err := tx.UpdateBetSettlement(ctx, bet); err != nil {
			return fmt.Errorf("update bet: %w", err)
		}
		res = &settled{bet: bet, from: from}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// afterSettle fans out a committed change. Only status transitions reach
// the user; a winnings-only correction is published but not notified.
func (s *SettlementService) afterSettle(ctx context.Context, r *settled) {
	b := r.bet
	s.publish(ctx, b.ID, events.TypeBetSettled, events.BetSettled{
		BetID:    b.ID,
		UserID:   b.UserID,
		From:     string(r.from),
		To:       string(b.Status),
		Winnings: b.Winnings,
	})
	if r.from == b.Status {
		return
	}
	s.metrics.BetSettled(string(b.Status))
	s.broadcaster.SendBetSettled(b.UserID, b.ID, b.Status, b.Winnings)
	subject, body := settlementMessage(b)
	s.notify.Notify(ctx, b.UserID, subject, body)
	s.log.Info("bet settled",
		zap.Stringer("bet_id", b.ID),
		zap.String("from", string(r.from)),
		zap.String("to", string(b.Status)))
}

func settlementMessage(b *domain.Bet) (subject, body string) {
	switch b.Status {
	case domain.BetWon:
		return "¡Apuesta ganada!", fmt.Sprintf("Tu apuesta de %s ha ganado %s.", b.Amount.StringFixed(2), b.Winnings.StringFixed(2))
	case domain.BetLost:
		return "Apuesta perdida", fmt.Sprintf("Tu apuesta de %s no ha resultado ganadora.", b.Amount.StringFixed(2))
	case domain.BetVoid:
		return "Apuesta anulada", fmt.Sprintf("Se te han devuelto %s.", b.Amount.StringFixed(2))
	}
	return "Apuesta reabierta", "Un resultado de tu apuesta ha sido corregido y vuelve a estar pendiente."
}

func sameAmount(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
