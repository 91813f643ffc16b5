// Package ledger is the only code path that changes a user's balance. Every
// movement locks the user row, reads the balance, writes the new balance
// and appends an audit entry, all inside the caller's transaction.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Accounts is the slice of a store transaction the ledger needs.
type Accounts interface {
	LockUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	AppendLedger(ctx context.Context, e *domain.LedgerEntry) error
}

// Movement describes one signed balance change.
type Movement struct {
	Kind        domain.EntryKind
	Amount      decimal.Decimal // negative for debits
	RefID       *uuid.UUID
	Description string
	// RequireFunds rejects the movement with ErrInsufficientFunds when the
	// locked balance cannot cover a debit. Settlement reversals leave it
	// unset and may take a balance below zero.
	RequireFunds bool
}

// Apply locks userID, applies m and records the ledger entry. A zero
// movement is a no-op and returns a nil entry.
func Apply(ctx context.Context, acc Accounts, userID uuid.UUID, m Movement) (*domain.LedgerEntry, error) {
	if m.Amount.IsZero() {
		return nil, nil
	}

	u, err := acc.LockUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Apply: lock user: %w", err)
	}

	if m.RequireFunds && m.Amount.IsNegative() && u.Balance.LessThan(m.Amount.Neg()) {
		return nil, domain.ErrInsufficientFunds
	}

	after := u.Balance.Add(m.Amount)
	if err := acc.UpdateBalance(ctx, userID, after); err != nil {
		return nil, fmt.Errorf("ledger.Apply: update balance: %w", err)
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Kind:          m.Kind,
		Amount:        m.Amount,
		BalanceBefore: u.Balance,
		BalanceAfter:  after,
		RefID:         m.RefID,
		Description:   m.Description,
		CreatedAt:     time.Now().UTC(),
	}
	if err := acc.AppendLedger(ctx, entry); err != nil {
		return nil, fmt.Errorf("ledger.Apply: append entry: %w", err)
	}
	return entry, nil
}

// Debit takes amount from the user, failing when the balance is short.
func Debit(ctx context.Context, acc Accounts, userID uuid.UUID, amount decimal.Decimal, kind domain.EntryKind, ref *uuid.UUID, desc string) (*domain.LedgerEntry, error) {
	return Apply(ctx, acc, userID, Movement{Kind: kind, Amount: amount.Neg(), RefID: ref, Description: desc, RequireFunds: true})
}

// Credit gives amount to the user.
func Credit(ctx context.Context, acc Accounts, userID uuid.UUID, amount decimal.Decimal, kind domain.EntryKind, ref *uuid.UUID, desc string) (*domain.LedgerEntry, error) {
	return Apply(ctx, acc, userID, Movement{Kind: kind, Amount: amount, RefID: ref, Description: desc})
}

// Reverse takes back a previously credited amount without a funds check.
func Reverse(ctx context.Context, acc Accounts, userID uuid.UUID, amount decimal.Decimal, ref *uuid.UUID, desc string) (*domain.LedgerEntry, error) {
	return Apply(ctx, acc, userID, Movement{Kind: domain.EntryReversal, Amount: amount.Neg(), RefID: ref, Description: desc})
}
