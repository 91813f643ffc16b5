package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/service"
)

func TestRegister_CreditsOpeningBonus(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()

	res, err := e.auth.Register(ctx, service.RegisterRequest{Username: " Rocio ", Email: "Rocio@Example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Email != "rocio@example.com" || res.User.Username != "Rocio" {
		t.Errorf("profile = %+v, want normalised email and username", res.User)
	}
	if !res.User.Balance.Equal(dec("100")) {
		t.Errorf("balance = %s, want 100", res.User.Balance)
	}
	hist, err := e.accounts.History(ctx, res.User.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Kind != domain.EntryBonus || !hist[0].Amount.Equal(dec("100")) {
		t.Errorf("history = %+v, want a single 100 bonus", hist)
	}

	_, err = e.auth.Register(ctx, service.RegisterRequest{Username: "otra", Email: "rocio@example.com", Password: "password123"})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("duplicate email: err = %v, want ErrEmailTaken", err)
	}
}

func TestLoginAndTokens(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	if _, err := e.auth.Register(ctx, service.RegisterRequest{Username: "marta", Email: "marta@example.com", Password: "password123"}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.auth.Login(ctx, "marta@example.com", "wrong-pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("bad password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := e.auth.Login(ctx, "nadie@example.com", "password123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}

	res, err := e.auth.Login(ctx, "marta@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := e.auth.ParseAccessToken(res.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != res.User.ID.String() || claims.Role != string(domain.RoleUser) {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := e.auth.ParseAccessToken(res.RefreshToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
	if _, err := e.auth.RefreshToken(ctx, res.AccessToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
	pair, err := e.auth.RefreshToken(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if _, err := e.auth.ParseAccessToken(pair.AccessToken); err != nil {
		t.Errorf("refreshed access token invalid: %v", err)
	}

	// Suspension blocks both login and refresh.
	if err := e.accounts.SetActive(ctx, res.User.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := e.auth.Login(ctx, "marta@example.com", "password123"); !errors.Is(err, domain.ErrUserInactive) {
		t.Errorf("suspended login: err = %v, want ErrUserInactive", err)
	}
	if _, err := e.auth.RefreshToken(ctx, pair.RefreshToken); !errors.Is(err, domain.ErrUserInactive) {
		t.Errorf("suspended refresh: err = %v, want ErrUserInactive", err)
	}
}

func TestAccessTokenExpires(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	res, err := e.auth.Register(ctx, service.RegisterRequest{Username: "lucia", Email: "lucia@example.com", Password: "password123"})
	if err != nil {
		t.Fatal(err)
	}
	e.skew = e.cfg.JWT.AccessTTL + time.Second
	if _, err := e.auth.ParseAccessToken(res.AccessToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expired token: err = %v, want ErrTokenInvalid", err)
	}
}
