package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// EventRepository handles all database operations for Events.
type EventRepository struct {
	q sqlx.ExtContext
}

// NewEventRepository creates an EventRepository on a DB or an open Tx.
func NewEventRepository(q sqlx.ExtContext) *EventRepository {
	return &EventRepository{q: q}
}

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events
			(id, name, home_team, away_team, starts_at, status, home_goals, away_goals, created_at)
		VALUES
			(:id, :name, :home_team, :away_team, :starts_at, :status, :home_goals, :away_goals, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, e); err != nil {
		return fmt.Errorf("event_repo.CreateEvent: %w", err)
	}
	return nil
}

// UpdateEvent persists status and score.
func (r *EventRepository) UpdateEvent(ctx context.Context, e *domain.Event) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE events SET status = $1, home_goals = $2, away_goals = $3 WHERE id = $4`,
		string(e.Status), e.HomeGoals, e.AwayGoals, e.ID)
	if err != nil {
		return fmt.Errorf("event_repo.UpdateEvent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// GetEvent fetches an event by primary key.
func (r *EventRepository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return r.getOne(ctx, "GetEvent", `SELECT * FROM events WHERE id = $1`, id)
}

// ShareEvent reads the event FOR SHARE, so a concurrent status change waits
// for the reading transaction to finish.
func (r *EventRepository) ShareEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return r.getOne(ctx, "ShareEvent", `SELECT * FROM events WHERE id = $1 FOR SHARE`, id)
}

func (r *EventRepository) getOne(ctx context.Context, op, query string, id uuid.UUID) (*domain.Event, error) {
	var e domain.Event
	if err := sqlx.GetContext(ctx, r.q, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("event_repo.%s: %w", op, err)
	}
	return &e, nil
}

// ListEvents returns events ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, f store.EventFilter) ([]*domain.Event, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if !f.StartsBefore.IsZero() {
		args = append(args, f.StartsBefore)
		where = append(where, fmt.Sprintf("starts_at < $%d", len(args)))
	}

	query := `SELECT * FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limitOrAll(f.Limit), f.Offset)
	query += fmt.Sprintf(` ORDER BY starts_at ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var events []*domain.Event
	if err := sqlx.SelectContext(ctx, r.q, &events, query, args...); err != nil {
		return nil, fmt.Errorf("event_repo.ListEvents: %w", err)
	}
	return events, nil
}

// FindEventByTeams looks up the fixture between home and away in a window.
func (r *EventRepository) FindEventByTeams(ctx context.Context, home, away string, from, to time.Time) (*domain.Event, error) {
	var e domain.Event
	err := sqlx.GetContext(ctx, r.q, &e, `
		SELECT * FROM events
		WHERE home_team = $1 AND away_team = $2 AND starts_at BETWEEN $3 AND $4
		ORDER BY starts_at ASC
		LIMIT 1`,
		home, away, from, to)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("event_repo.FindEventByTeams: %w", err)
	}
	return &e, nil
}
