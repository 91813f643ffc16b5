package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const betColumns = `id, user_id, amount, status, winnings, voided_by_event, placed_at, settled_at`

// BetRepository handles all database operations for Bets and their selections.
type BetRepository struct {
	q sqlx.ExtContext
}

// NewBetRepository creates a BetRepository on a DB or an open Tx.
func NewBetRepository(q sqlx.ExtContext) *BetRepository {
	return &BetRepository{q: q}
}

// CreateBet inserts the bet and one bet_outcomes row per selection, keeping
// the slip order in position and the quoted odds. Must run inside a transaction.
func (r *BetRepository) CreateBet(ctx context.Context, b *domain.Bet) error {
	query := `
		INSERT INTO bets
			(id, user_id, amount, status, winnings, placed_at, settled_at)
		VALUES
			(:id, :user_id, :amount, :status, :winnings, :placed_at, :settled_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, b); err != nil {
		return fmt.Errorf("bet_repo.CreateBet: %w", err)
	}
	for i, oid := range b.OutcomeIDs {
		var quote *decimal.Decimal
		if q, ok := b.Quotes[oid]; ok {
			quote = &q
		}
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO bet_outcomes (bet_id, outcome_id, position, odds) VALUES ($1, $2, $3, $4)`,
			b.ID, oid, i, quote)
		if err != nil {
			return fmt.Errorf("bet_repo.CreateBet: selection %d: %w", i, err)
		}
	}
	return nil
}

// GetBet fetches a bet with its selections.
func (r *BetRepository) GetBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	return r.getOne(ctx, "GetBet", `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)
}

// LockBet reads the bet row FOR UPDATE.
func (r *BetRepository) LockBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	return r.getOne(ctx, "LockBet", `SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, id)
}

func (r *BetRepository) getOne(ctx context.Context, op, query string, id uuid.UUID) (*domain.Bet, error) {
	var b domain.Bet
	if err := sqlx.GetContext(ctx, r.q, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("bet_repo.%s: %w", op, err)
	}
	if err := r.loadSelections(ctx, []*domain.Bet{&b}); err != nil {
		return nil, fmt.Errorf("bet_repo.%s: %w", op, err)
	}
	return &b, nil
}

// ListBetsByUser returns a user's bets, newest first.
func (r *BetRepository) ListBetsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := sqlx.SelectContext(ctx, r.q, &bets,
		`SELECT `+betColumns+` FROM bets WHERE user_id = $1 ORDER BY placed_at DESC LIMIT $2 OFFSET $3`,
		userID, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.ListBetsByUser: %w", err)
	}
	if err := r.loadSelections(ctx, bets); err != nil {
		return nil, fmt.Errorf("bet_repo.ListBetsByUser: %w", err)
	}
	return bets, nil
}

// ListBetIDsByOutcomes returns the non-cancelled bets selecting any of ids.
func (r *BetRepository) ListBetIDsByOutcomes(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var betIDs []uuid.UUID
	err := sqlx.SelectContext(ctx, r.q, &betIDs, `
		SELECT DISTINCT b.id
		FROM bets b
		JOIN bet_outcomes bo ON bo.bet_id = b.id
		WHERE bo.outcome_id = ANY($1::uuid[])
		  AND b.status <> 'CANCELLED'
		ORDER BY b.id`,
		uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("bet_repo.ListBetIDsByOutcomes: %w", err)
	}
	return betIDs, nil
}

// UpdateBetSettlement persists status, winnings, voided_by_event and settled_at.
func (r *BetRepository) UpdateBetSettlement(ctx context.Context, b *domain.Bet) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE bets
		SET status          = $1,
		    winnings        = $2,
		    voided_by_event = $3,
		    settled_at      = $4
		WHERE id = $5`,
		string(b.Status), b.Winnings, b.VoidedBy, b.SettledAt, b.ID)
	if err != nil {
		return fmt.Errorf("bet_repo.UpdateBetSettlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBetNotFound
	}
	return nil
}

// BetTotalsByUser sums stake and payout of every settled bet per user.
func (r *BetRepository) BetTotalsByUser(ctx context.Context) ([]store.BetTotals, error) {
	var totals []store.BetTotals
	err := sqlx.SelectContext(ctx, r.q, &totals, `
		SELECT user_id,
		       SUM(amount)                AS staked,
		       SUM(COALESCE(winnings, 0)) AS returned
		FROM bets
		WHERE status IN ('WON', 'LOST', 'VOID')
		GROUP BY user_id
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.BetTotalsByUser: %w", err)
	}
	return totals, nil
}

type betSelectionRow struct {
	BetID     uuid.UUID           `db:"bet_id"`
	OutcomeID uuid.UUID           `db:"outcome_id"`
	Odds      decimal.NullDecimal `db:"odds"`
}

// loadSelections fills OutcomeIDs and Quotes for bets in one round trip.
func (r *BetRepository) loadSelections(ctx context.Context, bets []*domain.Bet) error {
	if len(bets) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(bets))
	byID := make(map[uuid.UUID]*domain.Bet, len(bets))
	for i, b := range bets {
		ids[i] = b.ID
		byID[b.ID] = b
	}
	var rows []betSelectionRow
	err := sqlx.SelectContext(ctx, r.q, &rows,
		`SELECT bet_id, outcome_id, odds FROM bet_outcomes WHERE bet_id = ANY($1::uuid[]) ORDER BY bet_id, position`,
		uuidArray(ids))
	if err != nil {
		return fmt.Errorf("load selections: %w", err)
	}
	for _, row := range rows {
		b, ok := byID[row.BetID]
		if !ok {
			continue
		}
		b.OutcomeIDs = append(b.OutcomeIDs, row.OutcomeID)
		if row.Odds.Valid {
			if b.Quotes == nil {
				b.Quotes = make(map[uuid.UUID]decimal.Decimal, 2)
			}
			b.Quotes[row.OutcomeID] = row.Odds.Decimal
		}
	}
	return nil
}
