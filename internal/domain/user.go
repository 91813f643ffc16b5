package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// UserRole
// ──────────────────────────────────────────────────────────────────────────────

// UserRole controls access to the back-office.
type UserRole string

const (
	RoleUser  UserRole = "user"  // standard bettor
	RoleAdmin UserRole = "admin" // event administration, corrections
)

// IsAdmin returns true only for the admin role.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin
}

// ──────────────────────────────────────────────────────────────────────────────
// User
// ──────────────────────────────────────────────────────────────────────────────

// DefaultOpeningBalance is credited to every new account.
var DefaultOpeningBalance = decimal.NewFromInt(100)

// User is the domain entity for registered accounts. Balance is only ever
// changed through the ledger while the row is locked.
type User struct {
	ID             uuid.UUID       `json:"id"               db:"id"`
	Email          string          `json:"email"            db:"email"`
	Username       string          `json:"username"         db:"username"`
	PasswordHash   string          `json:"-"                db:"password_hash"` // never serialised
	Role           UserRole        `json:"role"             db:"role"`
	Balance        decimal.Decimal `json:"balance"          db:"balance"`
	TelegramChatID *int64          `json:"telegram_chat_id" db:"telegram_chat_id"`
	IsActive       bool            `json:"is_active"        db:"is_active"`
	LastSpinAt     *time.Time      `json:"last_spin_at"     db:"last_spin_at"`
	CreatedAt      time.Time       `json:"created_at"       db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"       db:"updated_at"`
}

// PublicProfile returns a user view safe to expose via API (no password hash).
type PublicProfile struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	Role      UserRole        `json:"role"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToPublicProfile converts a User to its public-safe representation.
func (u *User) ToPublicProfile() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		Balance:   u.Balance,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger entries
// ──────────────────────────────────────────────────────────────────────────────

// EntryKind enumerates balance movements for auditing.
type EntryKind string

const (
	EntryBonus      EntryKind = "bonus"      // opening balance, daily spin
	EntryStake      EntryKind = "stake"      // debit on placement
	EntryRefund     EntryKind = "refund"     // cancellation or VOID settlement
	EntryPayout     EntryKind = "payout"     // WON settlement
	EntryReversal   EntryKind = "reversal"   // undo of a previous settlement
	EntryAdjustment EntryKind = "adjustment" // operator correction
)

// LedgerEntry is an immutable audit record for every balance change. Amount
// is signed: debits are negative.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	UserID        uuid.UUID       `json:"user_id"        db:"user_id"`
	Kind          EntryKind       `json:"kind"           db:"kind"`
	Amount        decimal.Decimal `json:"amount"         db:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"  db:"balance_after"`
	RefID         *uuid.UUID      `json:"ref_id"         db:"ref_id"` // bet id, when any
	Description   string          `json:"description"    db:"description"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Ranking
// ──────────────────────────────────────────────────────────────────────────────

// RankingEntry is one row of the public leaderboard. Profit is the sum of
// returns minus stakes over settled bets.
type RankingEntry struct {
	Position int             `json:"position"`
	UserID   uuid.UUID       `json:"user_id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
	Staked   decimal.Decimal `json:"staked"`
	Returned decimal.Decimal `json:"returned"`
	Profit   decimal.Decimal `json:"profit"`
}

// Identity is the caller an access token speaks for.
type Identity struct {
	UserID uuid.UUID
	Role   UserRole
}
