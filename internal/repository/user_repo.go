package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// UserRepository handles all database operations for Users.
type UserRepository struct {
	q sqlx.ExtContext
}

// NewUserRepository creates a UserRepository on a DB or an open Tx.
func NewUserRepository(q sqlx.ExtContext) *UserRepository {
	return &UserRepository{q: q}
}

// CreateUser inserts a new user row.
func (r *UserRepository) CreateUser(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users
			(id, email, username, password_hash, role, balance, telegram_chat_id, is_active, created_at, updated_at)
		VALUES
			(:id, :email, :username, :password_hash, :role, :balance, :telegram_chat_id, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, u); err != nil {
		// Unique constraint violations surface as domain errors
		if isUniqueViolation(err, "users_email_key") {
			return domain.ErrEmailTaken
		}
		if isUniqueViolation(err, "users_username_key") {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("user_repo.CreateUser: %w", err)
	}
	return nil
}

// GetUser fetches a user by primary key.
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "GetUser", `SELECT * FROM users WHERE id = $1`, id)
}

// GetUserByEmail fetches a user by email (case-insensitive).
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "GetUserByEmail", `SELECT * FROM users WHERE lower(email) = lower($1)`, email)
}

// LockUser reads the user row FOR UPDATE. Only meaningful inside a Tx.
func (r *UserRepository) LockUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "LockUser", `SELECT * FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *UserRepository) getOne(ctx context.Context, op, query string, arg any) (*domain.User, error) {
	var u domain.User
	if err := sqlx.GetContext(ctx, r.q, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.%s: %w", op, err)
	}
	return &u, nil
}

// ListUsers returns users, newest first.
func (r *UserRepository) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	var users []*domain.User
	err := sqlx.SelectContext(ctx, r.q, &users,
		`SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("user_repo.ListUsers: %w", err)
	}
	return users, nil
}

// UpdateBalance overwrites the balance of a locked user row.
func (r *UserRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET balance = $1, updated_at = now() WHERE id = $2`,
		balance, id)
	if err != nil {
		return fmt.Errorf("user_repo.UpdateBalance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetTelegramChat links or unlinks the user's notification chat.
func (r *UserRepository) SetTelegramChat(ctx context.Context, id uuid.UUID, chatID *int64) error {
	return r.exec(ctx, "SetTelegramChat",
		`UPDATE users SET telegram_chat_id = $1, updated_at = now() WHERE id = $2`, chatID, id)
}

// SetUserActive enables or disables login for the user.
func (r *UserRepository) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.exec(ctx, "SetUserActive",
		`UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2`, active, id)
}

// SetUserRole grants or revokes back-office access.
func (r *UserRepository) SetUserRole(ctx context.Context, id uuid.UUID, role domain.UserRole) error {
	return r.exec(ctx, "SetUserRole",
		`UPDATE users SET role = $1, updated_at = now() WHERE id = $2`, role, id)
}

// SetLastSpin records when the user last spun the reward wheel.
func (r *UserRepository) SetLastSpin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, "SetLastSpin",
		`UPDATE users SET last_spin_at = $1, updated_at = now() WHERE id = $2`, at, id)
}

func (r *UserRepository) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("user_repo.%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// isUniqueViolation checks whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505) on the given constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}

// limitOrAll maps a non-positive limit to no limit (LIMIT NULL).
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
