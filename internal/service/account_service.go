package service

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/ledger"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdjustBalanceRequest is an operator correction. Amount is signed.
type AdjustBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" binding:"required"`
}

// LinkTelegramRequest links a chat for notifications; a nil ChatID unlinks.
type LinkTelegramRequest struct {
	ChatID *int64 `json:"chat_id"`
}

// SpinStatus tells whether the reward wheel can be spun. NextSpinAt is set
// only while the cooldown runs.
type SpinStatus struct {
	CanSpin    bool       `json:"can_spin"`
	NextSpinAt *time.Time `json:"next_spin_at"`
}

// SpinResult is the outcome of one reward spin.
type SpinResult struct {
	Reward     decimal.Decimal `json:"reward"`
	NewBalance decimal.Decimal `json:"new_balance"`
	NextSpinAt time.Time       `json:"next_spin_at"`
}

// AccountService exposes balances, the ledger, the leaderboard and the
// reward wheel, and lets operators adjust or deactivate accounts.
type AccountService struct {
	store store.Store
	cfg   *config.Config
	hooks
}

// NewAccountService creates an AccountService.
func NewAccountService(st store.Store, cfg *config.Config, h Hooks) *AccountService {
	return &AccountService{store: st, cfg: cfg, hooks: newHooks(h, "account_service")}
}

// Balance returns the user's current balance.
func (s *AccountService) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Balance, nil
}

// History returns the user's ledger entries, newest first.
func (s *AccountService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	entries, err := s.store.ListLedger(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("account_service.History: %w", err)
	}
	return entries, nil
}

// AdjustBalance applies a signed operator correction. A debit cannot take
// the balance below zero.
func (s *AccountService) AdjustBalance(ctx context.Context, userID uuid.UUID, req AdjustBalanceRequest) (*domain.LedgerEntry, error) {
	amount := req.Amount.Round(2)
	if amount.IsZero() {
		return nil, domain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}

	var entry *domain.LedgerEntry
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		entry, err = ledger.Apply(ctx, tx, userID, ledger.Movement{
			Kind:         domain.EntryAdjustment,
			Amount:       amount,
			Description:  reason,
			RequireFunds: true,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("balance adjusted",
		zap.Stringer("user_id", userID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("reason", reason))
	return entry, nil
}

// ListUsers returns accounts for the back-office.
func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]domain.PublicProfile, error) {
	users, err := s.store.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("account_service.ListUsers: %w", err)
	}
	out := make([]domain.PublicProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToPublicProfile())
	}
	return out, nil
}

// SetActive enables or disables an account.
func (s *AccountService) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.SetUserActive(ctx, userID, active)
	})
	if err != nil {
		return err
	}
	s.log.Info("account status changed", zap.Stringer("user_id", userID), zap.Bool("active", active))
	return nil
}

// SetRole changes the user's role.
func (s *AccountService) SetRole(ctx context.Context, userID uuid.UUID, role domain.UserRole) error {
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.SetUserRole(ctx, userID, role)
	})
	if err != nil {
		return err
	}
	s.log.Info("account role changed", zap.Stringer("user_id", userID), zap.String("role", string(role)))
	return nil
}

// PromoteByEmail grants the admin role to the account registered with email.
func (s *AccountService) PromoteByEmail(ctx context.Context, email string) (*domain.PublicProfile, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if err := s.SetRole(ctx, u.ID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	u.Role = domain.RoleAdmin
	p := u.ToPublicProfile()
	return &p, nil
}

// Profile returns a user's public profile together with recent ledger
// entries.
func (s *AccountService) Profile(ctx context.Context, userID uuid.UUID, entries int) (*domain.PublicProfile, []*domain.LedgerEntry, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.History(ctx, userID, entries, 0)
	if err != nil {
		return nil, nil, err
	}
	p := u.ToPublicProfile()
	return &p, history, nil
}

// LinkTelegram stores the chat that receives the user's notifications.
func (s *AccountService) LinkTelegram(ctx context.Context, userID uuid.UUID, req LinkTelegramRequest) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.SetTelegramChat(ctx, userID, req.ChatID)
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Ranking
// ──────────────────────────────────────────────────────────────────────────────

// Ranking returns every non-admin account ordered by balance, highest first,
// with stake and return totals over its settled bets.
func (s *AccountService) Ranking(ctx context.Context) ([]domain.RankingEntry, error) {
	users, err := s.store.ListUsers(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("account_service.Ranking: list users: %w", err)
	}
	totals, err := s.store.BetTotalsByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("account_service.Ranking: bet totals: %w", err)
	}
	byUser := make(map[uuid.UUID]store.BetTotals, len(totals))
	for _, t := range totals {
		byUser[t.UserID] = t
	}

	out := make([]domain.RankingEntry, 0, len(users))
	for _, u := range users {
		if u.Role.IsAdmin() {
			continue
		}
		t := byUser[u.ID]
		out = append(out, domain.RankingEntry{
			UserID:   u.ID,
			Username: u.Username,
			Balance:  u.Balance,
			Staked:   t.Staked,
			Returned: t.Returned,
			Profit:   t.Returned.Sub(t.Staked),
		})
	}
	slices.SortStableFunc(out, func(a, b domain.RankingEntry) int {
		if c := b.Balance.Cmp(a.Balance); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reward wheel
// ──────────────────────────────────────────────────────────────────────────────

// SpinStatus reports whether the user may spin now.
func (s *AccountService) SpinStatus(ctx context.Context, userID uuid.UUID) (*SpinStatus, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, ok := s.nextSpin(u)
	if ok {
		return &SpinStatus{CanSpin: true}, nil
	}
	return &SpinStatus{NextSpinAt: &next}, nil
}

// Spin credits a random whole reward in [SpinMin, SpinMax] as a bonus entry
// and starts the cooldown. The cooldown is checked under the user lock, so
// concurrent spins pay once.
func (s *AccountService) Spin(ctx context.Context, userID uuid.UUID) (*SpinResult, error) {
	rules := s.cfg.Engine
	reward := decimal.NewFromInt(int64(rules.SpinMin + rand.IntN(rules.SpinMax-rules.SpinMin+1)))
	now := s.now()

	var res *SpinResult
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if next, ok := s.nextSpin(u); !ok {
			return fmt.Errorf("%w (next spin at %s)", domain.ErrSpinCooldown, next.Format(time.RFC3339))
		}
		entry, err := ledger.Credit(ctx, tx, userID, reward, domain.EntryBonus, nil, "Premio de la ruleta")
		if err != nil {
			return err
		}
		if err := tx.SetLastSpin(ctx, userID, now); err != nil {
			return fmt.Errorf("account_service.Spin: %w", err)
		}
		res = &SpinResult{Reward: reward, NewBalance: entry.BalanceAfter, NextSpinAt: now.Add(rules.SpinCooldown)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reward spin", zap.Stringer("user_id", userID), zap.String("reward", reward.StringFixed(2)))
	return res, nil
}

// nextSpin returns when u may spin next and whether that moment has come.
func (s *AccountService) nextSpin(u *domain.User) (time.Time, bool) {
	if u.LastSpinAt == nil {
		return time.Time{}, true
	}
	next := u.LastSpinAt.Add(s.cfg.Engine.SpinCooldown)
	return next, !s.now().Before(next)
}
