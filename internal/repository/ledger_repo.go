package repository

import (
	"context"
	"fmt"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LedgerRepository persists the append-only balance movement log.
type LedgerRepository struct {
	q sqlx.ExtContext
}

// NewLedgerRepository creates a LedgerRepository on a DB or an open Tx.
func NewLedgerRepository(q sqlx.ExtContext) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// AppendLedger inserts one movement.
func (r *LedgerRepository) AppendLedger(ctx context.Context, e *domain.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries
			(id, user_id, kind, amount, balance_before, balance_after, ref_id, description, created_at)
		VALUES
			(:id, :user_id, :kind, :amount, :balance_before, :balance_after, :ref_id, :description, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, e); err != nil {
		return fmt.Errorf("ledger_repo.AppendLedger: %w", err)
	}
	return nil
}

// ListLedger returns a user's movements, newest first.
func (r *LedgerRepository) ListLedger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := sqlx.SelectContext(ctx, r.q, &entries, `
		SELECT * FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		userID, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("ledger_repo.ListLedger: %w", err)
	}
	return entries, nil
}
