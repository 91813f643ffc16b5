package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/events"
	"github.com/evetabi/furbito/internal/ledger"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request types
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBetRequest is the body of POST /api/bets. Amount is validated by the
// service so every caller gets the same error.
type PlaceBetRequest struct {
	OutcomeIDs []uuid.UUID     `json:"outcome_ids"`
	Amount     decimal.Decimal `json:"amount"`
}

// ──────────────────────────────────────────────────────────────────────────────
// BetService
// ──────────────────────────────────────────────────────────────────────────────

// BetService orchestrates bet placement and cancellation. The stake debit
// and the bet row are written in the same transaction.
type BetService struct {
	store store.Store
	cfg   *config.Config
	hooks
}

// NewBetService creates a BetService.
func NewBetService(st store.Store, cfg *config.Config, h Hooks) *BetService {
	return &BetService{store: st, cfg: cfg, hooks: newHooks(h, "bet_service")}
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet validates the selection, debits the stake and records the bet.
// Checks run in a fixed order and each failure has its own error; nothing is
// written unless every check passes.
func (s *BetService) PlaceBet(ctx context.Context, userID uuid.UUID, req PlaceBetRequest) (*domain.BetDetail, error) {
	// ── 1. Input validation ──────────────────────────────────────────────────
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	ids := dedupe(req.OutcomeIDs)
	if len(ids) == 0 {
		return nil, domain.ErrNoOutcomes
	}

	now := s.now()
	bet := &domain.Bet{
		ID:         uuid.New(),
		UserID:     userID,
		OutcomeIDs: ids,
		Amount:     amount,
		Status:     domain.BetPending,
		PlacedAt:   now,
	}

	var (
		outcomes map[uuid.UUID]*domain.Outcome
		evs      map[uuid.UUID]*domain.Event
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		// ── 2. Load selections ───────────────────────────────────────────────
		var err error
		outcomes, err = outcomesByID(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(outcomes) != len(ids) {
			return domain.ErrOutcomeNotFound
		}
		ordered := make([]*domain.Outcome, 0, len(ids))
		for _, id := range ids {
			ordered = append(ordered, outcomes[id])
		}

		// ── 3. Events open, outcomes pending ─────────────────────────────────
		// The shared event locks hold off resolution and cancellation until
		// this bet has committed.
		evs, err = sharedEvents(ctx, tx, ordered)
		if err != nil {
			return err
		}
		for _, o := range ordered {
			if !evs[o.EventID].AcceptsBets(now) {
				return domain.ErrEventClosed
			}
		}
		for _, o := range ordered {
			if o.Status != domain.OutcomePending {
				return domain.ErrOutcomeNotPending
			}
		}

		// ── 4. Conflicts ─────────────────────────────────────────────────────
		if err := domain.CheckConflicts(ordered); err != nil {
			return err
		}

		// ── 5. Debit under the user lock ─────────────────────────────────────
		if _, err := ledger.Debit(ctx, tx, userID, amount, domain.EntryStake, &bet.ID, "Apuesta realizada"); err != nil {
			return err
		}

		// ── 6. Persist the bet at the quoted odds ────────────────────────────
		bet.Quotes = make(map[uuid.UUID]decimal.Decimal, len(ordered))
		for _, o := range ordered {
			bet.Quotes[o.ID] = o.Odds
		}
		if err := tx.CreateBet(ctx, bet); err != nil {
			return fmt.Errorf("bet_service.PlaceBet: create bet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// ── 7. Post-commit side effects ──────────────────────────────────────────
	s.metrics.BetPlaced(amount)
	s.publish(ctx, bet.ID, events.TypeBetPlaced, events.BetPlaced{
		BetID:      bet.ID,
		UserID:     userID,
		OutcomeIDs: ids,
		Amount:     amount,
	})
	s.log.Info("bet placed",
		zap.Stringer("bet_id", bet.ID),
		zap.Stringer("user_id", userID),
		zap.Int("selections", len(ids)),
		zap.String("amount", amount.StringFixed(2)))

	detail := domain.NewBetDetail(bet, outcomes, evs)
	return &detail, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// CancelBet
// ──────────────────────────────────────────────────────────────────────────────

// CancelBet withdraws a pending bet and refunds its stake. Every event of
// the bet must start after now + the configured cutoff. A cancelled bet is
// terminal and settlement never touches it again.
func (s *BetService) CancelBet(ctx context.Context, betID, userID uuid.UUID) (*domain.Bet, error) {
	now := s.now()
	var bet *domain.Bet
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		bet, err = tx.LockBet(ctx, betID)
		if err != nil {
			return err
		}
		if bet.UserID != userID {
			return domain.ErrNotBetOwner
		}
		if !bet.IsPending() {
			return domain.ErrBetNotPending
		}

		outcomes, err := tx.ListOutcomesByIDs(ctx, bet.OutcomeIDs)
		if err != nil {
			return fmt.Errorf("bet_service.CancelBet: load outcomes: %w", err)
		}
		evs, err := eventsOf(ctx, tx, outcomes)
		if err != nil {
			return err
		}
		deadline := now.Add(s.cfg.Engine.CancelCutoff)
		for _, e := range evs {
			if !e.StartsAt.After(deadline) {
				return domain.ErrCancelWindowClosed
			}
		}

		if _, err := ledger.Credit(ctx, tx, bet.UserID, bet.Amount, domain.EntryRefund, &bet.ID, "Apuesta cancelada"); err != nil {
			return err
		}
		bet.Status = domain.BetCancelled
		bet.Winnings = nil
		bet.SettledAt = &now
		if err := tx.UpdateBetSettlement(ctx, bet); err != nil {
			return fmt.Errorf("bet_service.CancelBet: update bet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BetCancelled()
	s.publish(ctx, bet.ID, events.TypeBetCancelled, events.BetSettled{
		BetID:  bet.ID,
		UserID: bet.UserID,
		From:   string(domain.BetPending),
		To:     string(domain.BetCancelled),
	})
	s.log.Info("bet cancelled", zap.Stringer("bet_id", bet.ID), zap.Stringer("user_id", bet.UserID))
	return bet, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetBet returns one of the user's bets. Other users' bets are reported as
// not found.
func (s *BetService) GetBet(ctx context.Context, betID, userID uuid.UUID) (*domain.BetDetail, error) {
	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.UserID != userID {
		return nil, domain.ErrBetNotFound
	}
	details, err := betDetails(ctx, s.store, []*domain.Bet{bet})
	if err != nil {
		return nil, fmt.Errorf("bet_service.GetBet: %w", err)
	}
	return &details[0], nil
}

// ListUserBets returns the user's bets, newest first.
func (s *BetService) ListUserBets(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.BetDetail, error) {
	bets, err := s.store.ListBetsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bet_service.ListUserBets: %w", err)
	}
	details, err := betDetails(ctx, s.store, bets)
	if err != nil {
		return nil, fmt.Errorf("bet_service.ListUserBets: %w", err)
	}
	return details, nil
}

// PublicUserBets returns any user's bets, newest first. Bets carry no
// account data, so they can be shown to other players.
func (s *BetService) PublicUserBets(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.BetDetail, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.ListUserBets(ctx, userID, limit, offset)
}

// EventResults groups the non-cancelled bets touching an event by user,
// biggest winners first.
func (s *BetService) EventResults(ctx context.Context, eventID uuid.UUID) ([]domain.EventBettor, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	outcomes, err := s.store.ListOutcomesByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("bet_service.EventResults: list outcomes: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(outcomes))
	for _, o := range outcomes {
		ids = append(ids, o.ID)
	}
	betIDs, err := s.store.ListBetIDsByOutcomes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("bet_service.EventResults: list bets: %w", err)
	}
	bets := make([]*domain.Bet, 0, len(betIDs))
	for _, id := range betIDs {
		b, err := s.store.GetBet(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("bet_service.EventResults: %w", err)
		}
		if b.Status != domain.BetCancelled {
			bets = append(bets, b)
		}
	}
	details, err := betDetails(ctx, s.store, bets)
	if err != nil {
		return nil, fmt.Errorf("bet_service.EventResults: %w", err)
	}

	byUser := make(map[uuid.UUID]*domain.EventBettor)
	for _, d := range details {
		r, ok := byUser[d.UserID]
		if !ok {
			u, err := s.store.GetUser(ctx, d.UserID)
			if err != nil {
				return nil, fmt.Errorf("bet_service.EventResults: %w", err)
			}
			r = &domain.EventBettor{UserID: u.ID, Username: u.Username}
			byUser[d.UserID] = r
		}
		r.TotalWagered = r.TotalWagered.Add(d.Amount)
		if d.Status == domain.BetWon && d.Winnings != nil {
			r.TotalWon = r.TotalWon.Add(*d.Winnings)
		}
		r.Bets = append(r.Bets, d.Summary())
	}

	out := make([]domain.EventBettor, 0, len(byUser))
	for _, r := range byUser {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b domain.EventBettor) int {
		if c := b.TotalWon.Cmp(a.TotalWon); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// dedupe drops repeated ids, keeping first occurrences in order.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func outcomesByID(ctx context.Context, r store.Reader, ids []uuid.UUID) (map[uuid.UUID]*domain.Outcome, error) {
	list, err := r.ListOutcomesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}
	m := make(map[uuid.UUID]*domain.Outcome, len(list))
	for _, o := range list {
		m[o.ID] = o
	}
	return m, nil
}

// eventsOf loads the distinct events behind outcomes.
func eventsOf(ctx context.Context, r store.Reader, outcomes []*domain.Outcome) (map[uuid.UUID]*domain.Event, error) {
	m := make(map[uuid.UUID]*domain.Event)
	for _, o := range outcomes {
		if _, ok := m[o.EventID]; ok {
			continue
		}
		e, err := r.GetEvent(ctx, o.EventID)
		if err != nil {
			return nil, err
		}
		m[e.ID] = e
	}
	return m, nil
}

// sharedEvents is eventsOf under shared row locks.
func sharedEvents(ctx context.Context, tx store.Tx, outcomes []*domain.Outcome) (map[uuid.UUID]*domain.Event, error) {
	m := make(map[uuid.UUID]*domain.Event)
	for _, o := range outcomes {
		if _, ok := m[o.EventID]; ok {
			continue
		}
		e, err := tx.ShareEvent(ctx, o.EventID)
		if err != nil {
			return nil, err
		}
		m[e.ID] = e
	}
	return m, nil
}

// betDetails expands bets with one outcome query and one lookup per event.
func betDetails(ctx context.Context, r store.Reader, bets []*domain.Bet) ([]domain.BetDetail, error) {
	var ids []uuid.UUID
	for _, b := range bets {
		ids = append(ids, b.OutcomeIDs...)
	}
	outcomes, err := outcomesByID(ctx, r, dedupe(ids))
	if err != nil {
		return nil, err
	}
	list := make([]*domain.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		list = append(list, o)
	}
	evs, err := eventsOf(ctx, r, list)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BetDetail, 0, len(bets))
	for _, b := range bets {
		out = append(out, domain.NewBetDetail(b, outcomes, evs))
	}
	return out, nil
}
