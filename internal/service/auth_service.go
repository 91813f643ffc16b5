package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/ledger"
	"github.com/evetabi/furbito/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ──────────────────────────────────────────────────────────────────────────────

// RegisterRequest contains the fields required to create a new user account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// AuthResponse is returned on successful registration or login.
type AuthResponse struct {
	User         domain.PublicProfile `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
}

// TokenPair holds both tokens returned by generateTokenPair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ──────────────────────────────────────────────────────────────────────────────
// JWT claims
// ──────────────────────────────────────────────────────────────────────────────

// Token types carried in AppClaims.TokenType.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// AppClaims extends jwt.RegisteredClaims with application-specific fields.
type AppClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	TokenType string `json:"type"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthService
// ──────────────────────────────────────────────────────────────────────────────

// AuthService handles user registration, login, and JWT token operations.
// Access and refresh tokens are signed with separate secrets.
type AuthService struct {
	store store.Store
	cfg   *config.Config
	hooks
}

// NewAuthService creates an AuthService.
func NewAuthService(st store.Store, cfg *config.Config, h Hooks) *AuthService {
	return &AuthService{store: st, cfg: cfg, hooks: newHooks(h, "auth_service")}
}

// ──────────────────────────────────────────────────────────────────────────────
// Register
// ──────────────────────────────────────────────────────────────────────────────

// Register creates an account and credits the opening balance as a bonus
// ledger entry. The user row and the bonus are written in one transaction.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("auth_service.Register: hash: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	bonus := s.openingBalance()

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		entry, err := ledger.Credit(ctx, tx, user.ID, bonus, domain.EntryBonus, nil, "Saldo inicial")
		if err != nil {
			return fmt.Errorf("auth_service.Register: bonus: %w", err)
		}
		if entry != nil {
			user.Balance = entry.BalanceAfter
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.generateTokenPair(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("auth_service.Register: tokens: %w", err)
	}
	s.log.Info("user registered", zap.Stringer("user_id", user.ID), zap.String("username", user.Username))
	return &AuthResponse{User: user.ToPublicProfile(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *AuthService) openingBalance() decimal.Decimal {
	if s.cfg == nil || s.cfg.Engine.OpeningBalance <= 0 {
		return domain.DefaultOpeningBalance
	}
	return decimal.NewFromFloat(s.cfg.Engine.OpeningBalance).Round(2)
}

// ──────────────────────────────────────────────────────────────────────────────
// Login
// ──────────────────────────────────────────────────────────────────────────────

// Login validates credentials and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Same error as a bad password so accounts cannot be enumerated.
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth_service.Login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	pair, err := s.generateTokenPair(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("auth_service.Login: tokens: %w", err)
	}
	return &AuthResponse{User: user.ToPublicProfile(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// RefreshToken
// ──────────────────────────────────────────────────────────────────────────────

// RefreshToken validates a refresh token and issues a new token pair.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parseToken(refreshToken, s.cfg.JWT.RefreshSecret)
	if err != nil || claims.TokenType != TokenRefresh {
		return nil, domain.ErrTokenInvalid
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	pair, err := s.generateTokenPair(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("auth_service.RefreshToken: %w", err)
	}
	return &pair, nil
}

// Profile returns the caller's public profile.
func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*domain.PublicProfile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.ToPublicProfile()
	return &p, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Token helpers
// ──────────────────────────────────────────────────────────────────────────────

// generateTokenPair creates a signed access token (AccessTTL) and a signed
// refresh token (RefreshTTL) for the given user.
func (s *AuthService) generateTokenPair(userID uuid.UUID, role string) (TokenPair, error) {
	now := s.now()

	access, err := s.sign(AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTTL)),
		},
		Role:      role,
		TokenType: TokenAccess,
	}, s.cfg.JWT.AccessSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.sign(AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.RefreshTTL)),
			ID:        uuid.NewString(),
		},
		TokenType: TokenRefresh,
	}, s.cfg.JWT.RefreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) sign(c AppClaims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// parseToken validates the token signature, algorithm, and expiry.
func (s *AuthService) parseToken(tokenString, secret string) (*AppClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.clock))
	if err != nil || !tok.Valid {
		return nil, domain.ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// ParseAccessToken verifies an access token. Refresh tokens are rejected.
func (s *AuthService) ParseAccessToken(tokenString string) (*AppClaims, error) {
	claims, err := s.parseToken(tokenString, s.cfg.JWT.AccessSecret)
	if err != nil || claims.TokenType != TokenAccess {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// Authenticate resolves an access token to the caller it was issued to.
func (s *AuthService) Authenticate(tokenString string) (domain.Identity, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return domain.Identity{}, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	return domain.Identity{UserID: id, Role: domain.UserRole(claims.Role)}, nil
}
