package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// outcomeColumns excludes the seq ordering column.
const outcomeColumns = `id, event_id, description, market_kind, market_subject, market_direction,
	selection, line, player_id, odds, status, created_at`

// OutcomeRepository handles all database operations for Outcomes.
type OutcomeRepository struct {
	q sqlx.ExtContext
}

// NewOutcomeRepository creates an OutcomeRepository on a DB or an open Tx.
func NewOutcomeRepository(q sqlx.ExtContext) *OutcomeRepository {
	return &OutcomeRepository{q: q}
}

// CreateOutcome inserts a new outcome.
func (r *OutcomeRepository) CreateOutcome(ctx context.Context, o *domain.Outcome) error {
	query := `
		INSERT INTO outcomes (` + outcomeColumns + `)
		VALUES
			(:id, :event_id, :description, :market_kind, :market_subject, :market_direction,
			 :selection, :line, :player_id, :odds, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, o); err != nil {
		return fmt.Errorf("outcome_repo.CreateOutcome: %w", err)
	}
	return nil
}

// GetOutcome fetches an outcome by primary key.
func (r *OutcomeRepository) GetOutcome(ctx context.Context, id uuid.UUID) (*domain.Outcome, error) {
	var o domain.Outcome
	err := sqlx.GetContext(ctx, r.q, &o, `SELECT `+outcomeColumns+` FROM outcomes WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOutcomeNotFound
		}
		return nil, fmt.Errorf("outcome_repo.GetOutcome: %w", err)
	}
	return &o, nil
}

// ListOutcomesByEvent returns the event's outcomes in creation order.
func (r *OutcomeRepository) ListOutcomesByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Outcome, error) {
	var out []*domain.Outcome
	err := sqlx.SelectContext(ctx, r.q, &out,
		`SELECT `+outcomeColumns+` FROM outcomes WHERE event_id = $1 ORDER BY seq ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("outcome_repo.ListOutcomesByEvent: %w", err)
	}
	return out, nil
}

// ListOutcomesByIDs returns the outcomes among ids that exist.
func (r *OutcomeRepository) ListOutcomesByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Outcome, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*domain.Outcome
	err := sqlx.SelectContext(ctx, r.q, &out,
		`SELECT `+outcomeColumns+` FROM outcomes WHERE id = ANY($1::uuid[]) ORDER BY seq ASC`,
		uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("outcome_repo.ListOutcomesByIDs: %w", err)
	}
	return out, nil
}

// ListPendingOutcomesByPlayer returns the player's unresolved outcomes.
func (r *OutcomeRepository) ListPendingOutcomesByPlayer(ctx context.Context, playerID uuid.UUID) ([]*domain.Outcome, error) {
	var out []*domain.Outcome
	err := sqlx.SelectContext(ctx, r.q, &out,
		`SELECT `+outcomeColumns+` FROM outcomes WHERE player_id = $1 AND status = 'PENDING' ORDER BY seq ASC`,
		playerID)
	if err != nil {
		return nil, fmt.Errorf("outcome_repo.ListPendingOutcomesByPlayer: %w", err)
	}
	return out, nil
}

// OutcomeReferenced reports whether any bet selects the outcome.
func (r *OutcomeRepository) OutcomeReferenced(ctx context.Context, outcomeID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists,
		`SELECT EXISTS (SELECT 1 FROM bet_outcomes WHERE outcome_id = $1)`, outcomeID)
	if err != nil {
		return false, fmt.Errorf("outcome_repo.OutcomeReferenced: %w", err)
	}
	return exists, nil
}

// UpdateOutcomeStatus sets the result of an outcome.
func (r *OutcomeRepository) UpdateOutcomeStatus(ctx context.Context, id uuid.UUID, status domain.OutcomeStatus) error {
	return r.exec(ctx, "UpdateOutcomeStatus", `UPDATE outcomes SET status = $1 WHERE id = $2`, string(status), id)
}

// UpdateOutcomeOdds re-prices an outcome.
func (r *OutcomeRepository) UpdateOutcomeOdds(ctx context.Context, id uuid.UUID, odds decimal.Decimal) error {
	return r.exec(ctx, "UpdateOutcomeOdds", `UPDATE outcomes SET odds = $1 WHERE id = $2`, odds, id)
}

// DeleteOutcome removes an outcome row.
func (r *OutcomeRepository) DeleteOutcome(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "DeleteOutcome", `DELETE FROM outcomes WHERE id = $1`, id)
}

func (r *OutcomeRepository) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("outcome_repo.%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOutcomeNotFound
	}
	return nil
}

// uuidArray encodes ids as a text[] parameter for = ANY($n::uuid[]).
func uuidArray(ids []uuid.UUID) any {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	return pq.Array(s)
}
