package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/market"
	"github.com/evetabi/furbito/internal/odds"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// engine is the service graph over an in-memory store.
type engine struct {
	cfg        *config.Config
	store      *memstore.Store
	notes      *recordingNotifier
	auth       *service.AuthService
	bets       *service.BetService
	events     *service.EventService
	accounts   *service.AccountService
	settlement *service.SettlementService
	skew       time.Duration // added to the wall clock seen by the services
}

func newEngine(t *testing.T, fp feed.Provider) *engine {
	t.Helper()
	cfg := config.Defaults()
	cfg.JWT.AccessSecret = "svc-access-secret-abcdefghijklmnop"
	cfg.JWT.RefreshSecret = "svc-refresh-secret-abcdefghijklmnop"

	e := &engine{cfg: &cfg, store: memstore.New(), notes: &recordingNotifier{}}
	h := service.Hooks{
		Notifier: e.notes,
		Clock:    func() time.Time { return time.Now().Add(e.skew) },
	}
	e.settlement = service.NewSettlementService(e.store, h)
	e.auth = service.NewAuthService(e.store, &cfg, h)
	e.bets = service.NewBetService(e.store, &cfg, h)
	e.events = service.NewEventService(e.store, market.NewGenerator(odds.Default()), fp, e.settlement, h)
	e.accounts = service.NewAccountService(e.store, &cfg, h)
	return e
}

// user registers a fresh account holding the opening balance.
func (e *engine) user(t *testing.T) uuid.UUID {
	t.Helper()
	name := "apostador-" + uuid.NewString()[:8]
	res, err := e.auth.Register(context.Background(), service.RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return res.User.ID
}

// event creates an event kicking off after d.
func (e *engine) event(t *testing.T, home, away string, d time.Duration) uuid.UUID {
	t.Helper()
	ev, err := e.events.CreateEvent(context.Background(), service.CreateEventRequest{
		HomeTeam: home,
		AwayTeam: away,
		StartsAt: time.Now().Add(d),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return ev.ID
}

// outcome adds a manually priced match-winner selection.
func (e *engine) outcome(t *testing.T, eventID uuid.UUID, sel, quote string) uuid.UUID {
	t.Helper()
	o, err := e.events.AddOutcome(context.Background(), eventID, service.AddOutcomeRequest{
		Description: sel,
		Group:       "Ganador del Partido",
		Odds:        dec(quote),
	})
	if err != nil {
		t.Fatalf("AddOutcome %s: %v", sel, err)
	}
	return o.ID
}

func (e *engine) place(t *testing.T, userID uuid.UUID, amount string, ids ...uuid.UUID) *domain.BetDetail {
	t.Helper()
	b, err := e.bets.PlaceBet(context.Background(), userID, service.PlaceBetRequest{OutcomeIDs: ids, Amount: dec(amount)})
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	return b
}

func (e *engine) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	return u.Balance
}

func (e *engine) wantBalance(t *testing.T, userID uuid.UUID, want string) {
	t.Helper()
	if got := e.balance(t, userID); !got.Equal(dec(want)) {
		t.Errorf("balance = %s, want %s", got.StringFixed(2), want)
	}
}

func (e *engine) bet(t *testing.T, id uuid.UUID) *domain.Bet {
	t.Helper()
	b, err := e.store.GetBet(context.Background(), id)
	if err != nil {
		t.Fatalf("GetBet: %v", err)
	}
	return b
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ uuid.UUID, subject, _ string) {
	n.mu.Lock()
	n.sent = append(n.sent, subject)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
