// Package store defines the unit-of-work contract the engine runs against.
// Implementations must give InTx serialisable semantics for the rows they
// lock and must roll back every write when fn returns an error.
package store

import (
	"context"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventFilter narrows ListEvents. Zero fields do not filter.
type EventFilter struct {
	Statuses     []domain.EventStatus
	StartsBefore time.Time
	Limit        int
	Offset       int
}

// BetTotals sums a user's settled (WON, LOST, VOID) bets. Returned counts
// winnings and refunds.
type BetTotals struct {
	UserID   uuid.UUID       `db:"user_id"`
	Staked   decimal.Decimal `db:"staked"`
	Returned decimal.Decimal `db:"returned"`
}

// Reader is the read side shared by the store and its transactions. Single
// lookups return the matching domain not-found error.
type Reader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error)

	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]*domain.Event, error)
	// FindEventByTeams returns the event between home and away starting in
	// [from, to], or domain.ErrEventNotFound.
	FindEventByTeams(ctx context.Context, home, away string, from, to time.Time) (*domain.Event, error)

	GetOutcome(ctx context.Context, id uuid.UUID) (*domain.Outcome, error)
	ListOutcomesByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Outcome, error)
	// ListOutcomesByIDs returns the outcomes that exist, in no particular order.
	ListOutcomesByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Outcome, error)
	ListPendingOutcomesByPlayer(ctx context.Context, playerID uuid.UUID) ([]*domain.Outcome, error)
	// OutcomeReferenced reports whether any bet, in any status, selects the outcome.
	OutcomeReferenced(ctx context.Context, outcomeID uuid.UUID) (bool, error)

	GetBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
	ListBetsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error)
	// ListBetIDsByOutcomes returns the non-cancelled bets selecting any of ids.
	ListBetIDsByOutcomes(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	BetTotalsByUser(ctx context.Context) ([]BetTotals, error)

	ListLedger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)

	GetPlayer(ctx context.Context, id uuid.UUID) (*domain.Player, error)
	ListPlayersByTeam(ctx context.Context, team string) ([]*domain.Player, error)
	ListPlayers(ctx context.Context) ([]*domain.Player, error)
}

// Tx is an open unit of work.
type Tx interface {
	Reader

	// LockUser reads the user row under an exclusive lock held until the
	// transaction ends.
	LockUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	AppendLedger(ctx context.Context, e *domain.LedgerEntry) error
	// CreateUser returns domain.ErrUsernameTaken or domain.ErrEmailTaken on
	// uniqueness violations.
	CreateUser(ctx context.Context, u *domain.User) error
	// SetTelegramChat links (or, with nil, unlinks) the notification chat.
	SetTelegramChat(ctx context.Context, id uuid.UUID, chatID *int64) error
	SetUserActive(ctx context.Context, id uuid.UUID, active bool) error
	SetUserRole(ctx context.Context, id uuid.UUID, role domain.UserRole) error
	SetLastSpin(ctx context.Context, id uuid.UUID, at time.Time) error

	CreateEvent(ctx context.Context, e *domain.Event) error
	// ShareEvent reads the event under a shared lock, so a concurrent
	// UpdateEvent waits until this transaction ends.
	ShareEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	// UpdateEvent persists status and score.
	UpdateEvent(ctx context.Context, e *domain.Event) error

	CreateOutcome(ctx context.Context, o *domain.Outcome) error
	UpdateOutcomeStatus(ctx context.Context, id uuid.UUID, status domain.OutcomeStatus) error
	UpdateOutcomeOdds(ctx context.Context, id uuid.UUID, odds decimal.Decimal) error
	DeleteOutcome(ctx context.Context, id uuid.UUID) error

	CreateBet(ctx context.Context, b *domain.Bet) error
	// LockBet reads the bet under an exclusive lock.
	LockBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
	// UpdateBetSettlement persists status, winnings, voided_by_event and
	// settled_at.
	UpdateBetSettlement(ctx context.Context, b *domain.Bet) error

	// UpsertPlayer inserts or updates by (team, name) and sets p.ID to the
	// stored id.
	UpsertPlayer(ctx context.Context, p *domain.Player) error
}

// Store opens units of work.
type Store interface {
	Reader
	// InTx runs fn in a transaction, committing when it returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
