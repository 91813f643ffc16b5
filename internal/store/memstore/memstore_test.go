package memstore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/store"
	"github.com/evetabi/furbito/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func seedUser(t *testing.T, s *memstore.Store, email string) uuid.UUID {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Email: email, Username: email, Role: domain.RoleUser, Balance: decimal.NewFromInt(50), IsActive: true}
	if err := s.InTx(context.Background(), func(tx store.Tx) error { return tx.CreateUser(context.Background(), u) }); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u.ID
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	id := seedUser(t, s, "ana@example.com")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateBalance(ctx, id, decimal.NewFromInt(10)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx = %v, want boom", err)
	}
	u, err := s.GetUser(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !u.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance = %s after rollback, want 50", u.Balance)
	}
}

func TestInTx_FaultAbortsUnit(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	id := seedUser(t, s, "ana@example.com")

	injected := errors.New("disk full")
	s.SetFault(func(op string, _ uuid.UUID) error {
		if op == "AppendLedger" {
			return injected
		}
		return nil
	})
	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateBalance(ctx, id, decimal.NewFromInt(0)); err != nil {
			return err
		}
		return tx.AppendLedger(ctx, &domain.LedgerEntry{ID: uuid.New(), UserID: id})
	})
	if !errors.Is(err, injected) {
		t.Fatalf("InTx = %v, want injected fault", err)
	}
	s.SetFault(nil)

	u, _ := s.GetUser(ctx, id)
	if !u.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance = %s, the faulted unit must not commit", u.Balance)
	}
	entries, err := s.ListLedger(ctx, id, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("ledger has %d entries, want none", len(entries))
	}
}

func TestCreateUser_UniqueEmail(t *testing.T) {
	s := memstore.New()
	seedUser(t, s, "ana@example.com")
	dup := &domain.User{ID: uuid.New(), Email: "ANA@example.com", Username: "otra"}
	err := s.InTx(context.Background(), func(tx store.Tx) error { return tx.CreateUser(context.Background(), dup) })
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	id := seedUser(t, s, "ana@example.com")

	u, err := s.GetUser(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	u.Balance = decimal.NewFromInt(1_000_000)

	again, _ := s.GetUser(ctx, id)
	if !again.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("mutating a read leaked into the store: %s", again.Balance)
	}
	if _, err := s.GetUser(ctx, uuid.New()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown user: err = %v", err)
	}
}

func TestBetTotalsByUser_CountsSettledBetsOnly(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	ana, beto := seedUser(t, s, "ana@example.com"), seedUser(t, s, "beto@example.com")

	twenty := decimal.NewFromInt(20)
	five := decimal.NewFromInt(5)
	bets := []*domain.Bet{
		{ID: uuid.New(), UserID: ana, Amount: decimal.NewFromInt(10), Status: domain.BetWon, Winnings: &twenty},
		{ID: uuid.New(), UserID: ana, Amount: decimal.NewFromInt(5), Status: domain.BetVoid, Winnings: &five},
		{ID: uuid.New(), UserID: ana, Amount: decimal.NewFromInt(50), Status: domain.BetPending},
		{ID: uuid.New(), UserID: beto, Amount: decimal.NewFromInt(30), Status: domain.BetLost},
		{ID: uuid.New(), UserID: beto, Amount: decimal.NewFromInt(7), Status: domain.BetCancelled},
	}
	err := s.InTx(ctx, func(tx store.Tx) error {
		for _, b := range bets {
			if err := tx.CreateBet(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	totals, err := s.BetTotalsByUser(ctx)
	if err != nil {
		t.Fatalf("BetTotalsByUser: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("totals for %d users, want 2", len(totals))
	}
	for _, tot := range totals {
		switch tot.UserID {
		case ana:
			if !tot.Staked.Equal(decimal.NewFromInt(15)) || !tot.Returned.Equal(decimal.NewFromInt(25)) {
				t.Errorf("ana = %s staked, %s returned, want 15 and 25", tot.Staked, tot.Returned)
			}
		case beto:
			if !tot.Staked.Equal(decimal.NewFromInt(30)) || !tot.Returned.IsZero() {
				t.Errorf("beto = %s staked, %s returned, want 30 and 0", tot.Staked, tot.Returned)
			}
		default:
			t.Errorf("unexpected user %s", tot.UserID)
		}
	}
}

func TestCreateBet_KeepsQuotesPrivate(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	uid := seedUser(t, s, "ana@example.com")
	oid := uuid.New()
	b := &domain.Bet{
		ID:         uuid.New(),
		UserID:     uid,
		OutcomeIDs: []uuid.UUID{oid},
		Quotes:     map[uuid.UUID]decimal.Decimal{oid: decimal.RequireFromString("2.00")},
		Amount:     decimal.NewFromInt(10),
		Status:     domain.BetPending,
	}
	if err := s.InTx(ctx, func(tx store.Tx) error { return tx.CreateBet(ctx, b) }); err != nil {
		t.Fatal(err)
	}
	b.Quotes[oid] = decimal.RequireFromString("9.99")

	got, err := s.GetBet(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if q := got.Quotes[oid]; !q.Equal(decimal.RequireFromString("2.00")) {
		t.Errorf("stored quote = %s, want 2.00", q)
	}
}

func TestSetLastSpinAndPlayers(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	uid := seedUser(t, s, "ana@example.com")
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := tx.SetLastSpin(ctx, uid, at); err != nil {
			return err
		}
		for _, p := range []*domain.Player{
			{Name: "Zurdo", Team: "Leones"},
			{Name: "Arquero", Team: "Leones"},
			{Name: "Nueve", Team: "Halcones"},
		} {
			if err := tx.UpsertPlayer(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	u, _ := s.GetUser(ctx, uid)
	if u.LastSpinAt == nil || !u.LastSpinAt.Equal(at) {
		t.Errorf("LastSpinAt = %v, want %s", u.LastSpinAt, at)
	}
	players, err := s.ListPlayers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, p := range players {
		got = append(got, p.Team+"/"+p.Name)
	}
	if want := "Halcones/Nueve Leones/Arquero Leones/Zurdo"; strings.Join(got, " ") != want {
		t.Errorf("players = %v, want %s", got, want)
	}
}
