package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PlayerRepository stores per-player season statistics.
type PlayerRepository struct {
	q sqlx.ExtContext
}

// NewPlayerRepository creates a PlayerRepository on a DB or an open Tx.
func NewPlayerRepository(q sqlx.ExtContext) *PlayerRepository {
	return &PlayerRepository{q: q}
}

// UpsertPlayer inserts or refreshes a player keyed by (team, name) and
// writes the stored id back into p.
func (r *PlayerRepository) UpsertPlayer(ctx context.Context, p *domain.Player) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO players
			(id, name, team, goals, assists, matches_played, matches_started, yellow_cards, red_cards, updated_at)
		VALUES
			(:id, :name, :team, :goals, :assists, :matches_played, :matches_started, :yellow_cards, :red_cards, :updated_at)
		ON CONFLICT (team, name) DO UPDATE SET
			goals           = EXCLUDED.goals,
			assists         = EXCLUDED.assists,
			matches_played  = EXCLUDED.matches_played,
			matches_started = EXCLUDED.matches_started,
			yellow_cards    = EXCLUDED.yellow_cards,
			red_cards       = EXCLUDED.red_cards,
			updated_at      = EXCLUDED.updated_at
		RETURNING id`
	query, args, err := sqlx.Named(query, p)
	if err != nil {
		return fmt.Errorf("player_repo.UpsertPlayer: bind: %w", err)
	}
	var id uuid.UUID
	if err := sqlx.GetContext(ctx, r.q, &id, r.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("player_repo.UpsertPlayer: %w", err)
	}
	p.ID = id
	return nil
}

// GetPlayer fetches a player by primary key.
func (r *PlayerRepository) GetPlayer(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	var p domain.Player
	if err := sqlx.GetContext(ctx, r.q, &p, `SELECT * FROM players WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("player_repo.GetPlayer: %w", err)
	}
	return &p, nil
}

// ListPlayersByTeam returns a squad ordered by name.
func (r *PlayerRepository) ListPlayersByTeam(ctx context.Context, team string) ([]*domain.Player, error) {
	var players []*domain.Player
	err := sqlx.SelectContext(ctx, r.q, &players,
		`SELECT * FROM players WHERE team = $1 ORDER BY name ASC`, team)
	if err != nil {
		return nil, fmt.Errorf("player_repo.ListPlayersByTeam: %w", err)
	}
	return players, nil
}

// ListPlayers returns every player ordered by team and name.
func (r *PlayerRepository) ListPlayers(ctx context.Context) ([]*domain.Player, error) {
	var players []*domain.Player
	err := sqlx.SelectContext(ctx, r.q, &players, `SELECT * FROM players ORDER BY team ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("player_repo.ListPlayers: %w", err)
	}
	return players, nil
}
