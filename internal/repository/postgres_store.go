package repository

import (
	"context"
	"fmt"

	"github.com/evetabi/furbito/internal/store"
	"github.com/jmoiron/sqlx"
)

// queries bundles every repository over one executor so the bundle as a
// whole satisfies store.Reader and store.Tx.
type queries struct {
	*UserRepository
	*EventRepository
	*OutcomeRepository
	*BetRepository
	*LedgerRepository
	*PlayerRepository
}

func newQueries(q sqlx.ExtContext) queries {
	return queries{
		UserRepository:    NewUserRepository(q),
		EventRepository:   NewEventRepository(q),
		OutcomeRepository: NewOutcomeRepository(q),
		BetRepository:     NewBetRepository(q),
		LedgerRepository:  NewLedgerRepository(q),
		PlayerRepository:  NewPlayerRepository(q),
	}
}

// PostgresStore implements store.Store on a PostgreSQL pool.
type PostgresStore struct {
	queries
	db *sqlx.DB
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{queries: newQueries(db), db: db}
}

// pgTx is a store.Tx bound to one *sqlx.Tx.
type pgTx struct {
	queries
}

// InTx runs fn inside a database transaction. Any error from fn rolls back.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres_store.InTx: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&pgTx{queries: newQueries(tx)}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres_store.InTx: commit: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ store.Store = (*PostgresStore)(nil)
	_ store.Tx    = (*pgTx)(nil)
)
