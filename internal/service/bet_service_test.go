package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/service"
	"github.com/google/uuid"
)

// TestPlaceBet_CheckOrder feeds requests that violate several preconditions
// at once; the earliest check must be the one reported.
func TestPlaceBet_CheckOrder(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	uid := e.user(t)

	open := e.event(t, "Leones", "Halcones", 24*time.Hour)
	home := e.outcome(t, open, "1", "2.00")
	draw := e.outcome(t, open, "X", "3.20")

	closed := e.event(t, "Tigres", "Pumas", 24*time.Hour)
	closedHome := e.outcome(t, closed, "1", "1.90")
	closedAway := e.outcome(t, closed, "2", "2.10")
	if _, err := e.events.CancelEvent(ctx, closed); err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}

	cases := []struct {
		name   string
		ids    []uuid.UUID
		amount string
		want   error
	}{
		{"zero amount beats unknown outcome", []uuid.UUID{uuid.New()}, "0", domain.ErrInvalidAmount},
		{"negative amount", []uuid.UUID{home}, "-5", domain.ErrInvalidAmount},
		{"no outcomes", nil, "10", domain.ErrNoOutcomes},
		{"unknown outcome", []uuid.UUID{home, uuid.New()}, "10", domain.ErrOutcomeNotFound},
		{"closed event beats conflict", []uuid.UUID{closedHome, closedAway}, "10", domain.ErrEventClosed},
		{"conflict beats funds", []uuid.UUID{home, draw}, "1000", domain.ErrConflictingSelections},
		{"insufficient funds", []uuid.UUID{home}, "100.01", domain.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.bets.PlaceBet(ctx, uid, service.PlaceBetRequest{OutcomeIDs: tc.ids, Amount: dec(tc.amount)})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	// None of the failures moved money or left a bet behind.
	e.wantBalance(t, uid, "100")
	bets, err := e.bets.ListUserBets(ctx, uid, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(bets) != 0 {
		t.Errorf("%d bets stored after failed placements, want 0", len(bets))
	}
}

func TestPlaceBet_StartedEventRejected(t *testing.T) {
	e := newEngine(t, feed.Static{})
	uid := e.user(t)
	ev := e.event(t, "Leones", "Halcones", time.Hour)
	o := e.outcome(t, ev, "1", "2.00")

	e.skew = 2 * time.Hour
	_, err := e.bets.PlaceBet(context.Background(), uid, service.PlaceBetRequest{OutcomeIDs: []uuid.UUID{o}, Amount: dec("5")})
	if !errors.Is(err, domain.ErrEventClosed) {
		t.Fatalf("err = %v, want ErrEventClosed", err)
	}
}

// TestPlaceBet_RacesResolution places bets while the event is resolved. A
// bet either commits before resolution and is settled, or is turned away.
func TestPlaceBet_RacesResolution(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		uid := e.user(t)
		ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
		o := e.outcome(t, ev, "1", "2.00")

		var (
			wg     sync.WaitGroup
			placed *domain.BetDetail
			err    error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			placed, err = e.bets.PlaceBet(ctx, uid, service.PlaceBetRequest{OutcomeIDs: []uuid.UUID{o}, Amount: dec("10")})
		}()
		go func() {
			defer wg.Done()
			if _, err := e.events.ResolveEvent(ctx, ev, service.ResolveEventRequest{HomeGoals: 1}); err != nil {
				t.Errorf("round %d: ResolveEvent: %v", round, err)
			}
		}()
		wg.Wait()

		switch {
		case err == nil:
			if got := e.bet(t, placed.ID).Status; got != domain.BetWon {
				t.Fatalf("round %d: bet placed before resolution is %s, want WON", round, got)
			}
			e.wantBalance(t, uid, "110")
		case errors.Is(err, domain.ErrEventClosed):
			e.wantBalance(t, uid, "100")
		default:
			t.Fatalf("round %d: PlaceBet: %v", round, err)
		}
	}
}

func TestPlaceBet_ReadsEventsUnderSharedLock(t *testing.T) {
	e := newEngine(t, feed.Static{})
	uid := e.user(t)
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	o := e.outcome(t, ev, "1", "2.00")

	locked := errors.New("event locked")
	e.store.SetFault(func(op string, id uuid.UUID) error {
		if op == "ShareEvent" && id == ev {
			return locked
		}
		return nil
	})
	_, err := e.bets.PlaceBet(context.Background(), uid, service.PlaceBetRequest{OutcomeIDs: []uuid.UUID{o}, Amount: dec("10")})
	if !errors.Is(err, locked) {
		t.Fatalf("err = %v, want the shared read to fail placement", err)
	}
	e.store.SetFault(nil)
	e.wantBalance(t, uid, "100")
}

func TestPlaceBet_DuplicateSelectionsCollapse(t *testing.T) {
	e := newEngine(t, feed.Static{})
	uid := e.user(t)
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	o := e.outcome(t, ev, "1", "2.00")

	b := e.place(t, uid, "10", o, o)
	if len(b.Selections) != 1 {
		t.Errorf("selections = %d, want 1", len(b.Selections))
	}
	e.wantBalance(t, uid, "90")
}

// TestPlaceBet_NoDoubleSpend races two placements that each need the whole
// balance. Exactly one may win.
func TestPlaceBet_NoDoubleSpend(t *testing.T) {
	e := newEngine(t, feed.Static{})
	uid := e.user(t)
	evA := e.event(t, "Leones", "Halcones", 24*time.Hour)
	evB := e.event(t, "Tigres", "Pumas", 24*time.Hour)
	picks := []uuid.UUID{e.outcome(t, evA, "1", "2.00"), e.outcome(t, evB, "1", "2.00")}

	const rounds = 20
	for round := 0; round < rounds; round++ {
		var (
			wg   sync.WaitGroup
			errs = make([]error, len(picks))
		)
		for i, id := range picks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = e.bets.PlaceBet(context.Background(), uid, service.PlaceBetRequest{
					OutcomeIDs: []uuid.UUID{id},
					Amount:     dec("100"),
				})
			}()
		}
		wg.Wait()

		ok, short := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientFunds):
				short++
			default:
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		if ok != 1 || short != 1 {
			t.Fatalf("round %d: %d succeeded, %d short; want 1 and 1", round, ok, short)
		}
		if bal := e.balance(t, uid); !bal.IsZero() {
			t.Fatalf("round %d: balance = %s, want 0", round, bal)
		}

		// Refill for the next round.
		if _, err := e.accounts.AdjustBalance(context.Background(), uid, service.AdjustBalanceRequest{
			Amount: dec("100"),
			Reason: "test refill",
		}); err != nil {
			t.Fatalf("refill: %v", err)
		}
	}
}

func TestCancelBet(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	owner, other := e.user(t), e.user(t)

	later := e.event(t, "Leones", "Halcones", 48*time.Hour)
	soon := e.event(t, "Tigres", "Pumas", 30*time.Minute)
	oLater := e.outcome(t, later, "1", "2.00")
	oSoon := e.outcome(t, soon, "1", "2.00")

	single := e.place(t, owner, "10", oLater)
	combo := e.place(t, owner, "10", oLater, oSoon)
	e.wantBalance(t, owner, "80")

	if _, err := e.bets.CancelBet(ctx, single.ID, other); !errors.Is(err, domain.ErrNotBetOwner) {
		t.Errorf("cancel by another user: err = %v, want ErrNotBetOwner", err)
	}
	if _, err := e.bets.CancelBet(ctx, combo.ID, owner); !errors.Is(err, domain.ErrCancelWindowClosed) {
		t.Errorf("cancel with a leg kicking off soon: err = %v, want ErrCancelWindowClosed", err)
	}

	b, err := e.bets.CancelBet(ctx, single.ID, owner)
	if err != nil {
		t.Fatalf("CancelBet: %v", err)
	}
	if b.Status != domain.BetCancelled {
		t.Errorf("status = %s, want CANCELLED", b.Status)
	}
	e.wantBalance(t, owner, "90")

	if _, err := e.bets.CancelBet(ctx, single.ID, owner); !errors.Is(err, domain.ErrBetNotPending) {
		t.Errorf("second cancel: err = %v, want ErrBetNotPending", err)
	}
	e.wantBalance(t, owner, "90")
}

func TestGetBet_HidesOtherUsersBets(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	owner, other := e.user(t), e.user(t)
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	b := e.place(t, owner, "10", e.outcome(t, ev, "1", "2.00"))

	got, err := e.bets.GetBet(ctx, b.ID, owner)
	if err != nil {
		t.Fatalf("GetBet owner: %v", err)
	}
	if len(got.Selections) != 1 || got.Selections[0].EventName != "Leones vs Halcones" {
		t.Errorf("selections = %+v", got.Selections)
	}
	if _, err := e.bets.GetBet(ctx, b.ID, other); !errors.Is(err, domain.ErrBetNotFound) {
		t.Errorf("GetBet other user: err = %v, want ErrBetNotFound", err)
	}
}

func TestPublicUserBets(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	owner, viewer := e.user(t), e.user(t)
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	b := e.place(t, owner, "10", e.outcome(t, ev, "1", "2.00"))

	bets, err := e.bets.PublicUserBets(ctx, owner, 10, 0)
	if err != nil {
		t.Fatalf("PublicUserBets: %v", err)
	}
	if len(bets) != 1 || bets[0].ID != b.ID {
		t.Fatalf("bets = %+v, want the owner's bet", bets)
	}
	sum := bets[0].Summary()
	if !sum.PotentialWinnings.Equal(dec("20")) || len(sum.Outcomes) != 1 || sum.Outcomes[0] != "Leones vs Halcones: 1" {
		t.Errorf("summary = %+v", sum)
	}

	if bets, err := e.bets.PublicUserBets(ctx, viewer, 10, 0); err != nil || len(bets) != 0 {
		t.Errorf("viewer bets = %d, %v, want none", len(bets), err)
	}
	if _, err := e.bets.PublicUserBets(ctx, uuid.New(), 10, 0); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown user: err = %v, want ErrUserNotFound", err)
	}
}

func TestEventResults(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	lucky, unlucky, quitter := e.user(t), e.user(t), e.user(t)
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	home, draw, away := e.outcome(t, ev, "1", "2.00"), e.outcome(t, ev, "X", "3.00"), e.outcome(t, ev, "2", "4.00")

	e.place(t, lucky, "10", home)
	e.place(t, lucky, "5", draw)
	e.place(t, unlucky, "30", away)
	withdrawn := e.place(t, quitter, "5", home)
	if _, err := e.bets.CancelBet(ctx, withdrawn.ID, quitter); err != nil {
		t.Fatalf("CancelBet: %v", err)
	}
	if _, err := e.events.ResolveEvent(ctx, ev, service.ResolveEventRequest{HomeGoals: 2, AwayGoals: 1}); err != nil {
		t.Fatalf("ResolveEvent: %v", err)
	}

	res, err := e.bets.EventResults(ctx, ev)
	if err != nil {
		t.Fatalf("EventResults: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("results list %d users, want 2 (cancelled bets excluded)", len(res))
	}
	first, second := res[0], res[1]
	if first.UserID != lucky || !first.TotalWagered.Equal(dec("15")) || !first.TotalWon.Equal(dec("20")) || len(first.Bets) != 2 {
		t.Errorf("first = %+v, want lucky with 15 wagered and 20 won", first)
	}
	if second.UserID != unlucky || !second.TotalWon.IsZero() || second.Bets[0].Status != domain.BetLost {
		t.Errorf("second = %+v, want unlucky with nothing won", second)
	}

	if _, err := e.bets.EventResults(ctx, uuid.New()); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("unknown event: err = %v, want ErrEventNotFound", err)
	}
}
