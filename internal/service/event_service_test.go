package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
)

func standings() *feed.Snapshot {
	return &feed.Snapshot{
		Standings: []domain.TeamStats{
			{Team: "Leones", Points: 28, Played: 10, GoalsFor: 24, GoalsAgainst: 6},
			{Team: "Halcones", Points: 6, Played: 10, GoalsFor: 7, GoalsAgainst: 21},
		},
	}
}

func findOutcome(t *testing.T, d *domain.EventDetail, kind domain.MarketKind, sel string) domain.OutcomeView {
	t.Helper()
	for _, o := range d.Outcomes {
		if o.Kind == kind && o.Selection == sel {
			return o
		}
	}
	t.Fatalf("no %s/%s outcome among %d", kind, sel, len(d.Outcomes))
	return domain.OutcomeView{}
}

func TestCreateEvent_FeedDownStillCreates(t *testing.T) {
	e := newEngine(t, feed.Static{})
	d, err := e.events.CreateEvent(context.Background(), service.CreateEventRequest{
		Name:     "Leones vs Halcones",
		StartsAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if d.Status != domain.EventUpcoming || d.HomeTeam != "Leones" || d.AwayTeam != "Halcones" {
		t.Errorf("event = %+v", d.Event)
	}
	if len(d.Outcomes) != 0 {
		t.Errorf("outcomes = %d, want none without statistics", len(d.Outcomes))
	}
}

func TestCreateEvent_GeneratesTeamMarkets(t *testing.T) {
	e := newEngine(t, feed.Static{S: standings()})
	d, err := e.events.CreateEvent(context.Background(), service.CreateEventRequest{
		HomeTeam: "Leones",
		AwayTeam: "Halcones",
		StartsAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	home := findOutcome(t, d, domain.KindMatchWinner, domain.SelHome)
	away := findOutcome(t, d, domain.KindMatchWinner, domain.SelAway)
	if !home.Odds.LessThan(away.Odds) {
		t.Errorf("stronger home side priced %s, away %s; want home shorter", home.Odds, away.Odds)
	}
	findOutcome(t, d, domain.KindBothTeamsScore, domain.SelYes)
	for _, o := range d.Outcomes {
		if o.Status != domain.OutcomePending {
			t.Errorf("outcome %s created as %s", o.Description, o.Status)
		}
		if o.Odds.LessThan(domain.MinOdds) {
			t.Errorf("outcome %s priced %s below the minimum", o.Description, o.Odds)
		}
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	cases := []service.CreateEventRequest{
		{Name: "Leones", StartsAt: time.Now().Add(time.Hour)},
		{HomeTeam: "Leones", StartsAt: time.Now().Add(time.Hour)},
		{HomeTeam: "Leones", AwayTeam: "Halcones", StartsAt: time.Now().Add(-time.Minute)},
	}
	for i, req := range cases {
		if _, err := e.events.CreateEvent(ctx, req); !errors.Is(err, domain.ErrInvalidEvent) {
			t.Errorf("case %d: err = %v, want ErrInvalidEvent", i, err)
		}
	}
}

// TestRegenerateOdds_OnlyPendingOutcomesMove re-prices after the standings
// change; a resolved outcome keeps its quote.
func TestRegenerateOdds_OnlyPendingOutcomesMove(t *testing.T) {
	snap := standings()
	e := newEngine(t, feed.Static{S: snap})
	ctx := context.Background()

	d, err := e.events.CreateEvent(ctx, service.CreateEventRequest{
		HomeTeam: "Leones", AwayTeam: "Halcones", StartsAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	settled := findOutcome(t, d, domain.KindMatchWinner, domain.SelHome)
	correct(t, e, settled.ID, domain.OutcomeWon)
	before := findOutcome(t, d, domain.KindMatchWinner, domain.SelAway)

	// The sides swap form.
	snap.Standings[0], snap.Standings[1] = domain.TeamStats{Team: "Leones", Points: 6, Played: 10, GoalsFor: 7, GoalsAgainst: 21},
		domain.TeamStats{Team: "Halcones", Points: 28, Played: 10, GoalsFor: 24, GoalsAgainst: 6}

	res, err := e.events.RegenerateOdds(ctx, d.ID)
	if err != nil {
		t.Fatalf("RegenerateOdds: %v", err)
	}
	if res.Repriced == 0 {
		t.Error("nothing re-priced after the standings changed")
	}
	if res.Removed != 0 {
		t.Errorf("removed %d team outcomes, want 0", res.Removed)
	}

	after, err := e.events.GetEvent(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	got := findOutcome(t, after, domain.KindMatchWinner, domain.SelHome)
	if got.Status != domain.OutcomeWon || !got.Odds.Equal(settled.Odds) {
		t.Errorf("resolved outcome now %s @ %s, want WON @ %s", got.Status, got.Odds, settled.Odds)
	}
	if moved := findOutcome(t, after, domain.KindMatchWinner, domain.SelAway); moved.Odds.Equal(before.Odds) {
		t.Errorf("pending away outcome still @ %s", moved.Odds)
	}
}

func TestRegenerateOdds_ClosedEvent(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	resolve(t, e, ev, 0, 0)
	if _, err := e.events.RegenerateOdds(context.Background(), ev); !errors.Is(err, domain.ErrEventClosed) {
		t.Errorf("err = %v, want ErrEventClosed", err)
	}
}

func TestRecalculatePlayerOdds(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()

	p := &domain.Player{Name: "Goleador", Team: "Leones", Goals: 3, MatchesPlayed: 10, MatchesStarted: 10}
	if err := e.store.InTx(ctx, func(tx store.Tx) error { return tx.UpsertPlayer(ctx, p) }); err != nil {
		t.Fatal(err)
	}
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	d, err := e.events.GetEvent(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	goal := findOutcome(t, d, domain.KindPlayerGoal, "Gol de Goleador")

	p.Goals = 12
	if err := e.store.InTx(ctx, func(tx store.Tx) error { return tx.UpsertPlayer(ctx, p) }); err != nil {
		t.Fatal(err)
	}
	n, err := e.events.RecalculatePlayerOdds(ctx, p.ID)
	if err != nil {
		t.Fatalf("RecalculatePlayerOdds: %v", err)
	}
	if n == 0 {
		t.Fatal("no outcomes re-quoted")
	}
	o, err := e.store.GetOutcome(ctx, goal.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !o.Odds.LessThan(goal.Odds) {
		t.Errorf("goal quote %s -> %s; a prolific scorer should shorten", goal.Odds, o.Odds)
	}

	if _, err := e.events.RecalculatePlayerOdds(ctx, uuid.New()); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("unknown player: err = %v, want ErrPlayerNotFound", err)
	}
}

func TestAddOutcome(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)

	over, err := e.events.AddOutcome(ctx, ev, service.AddOutcomeRequest{
		Description: "Más de 2.5", Group: "Goles - Más de", Odds: dec("1.85"),
	})
	if err != nil {
		t.Fatalf("AddOutcome over: %v", err)
	}
	if over.Line == nil || !over.Line.Equal(dec("2.5")) {
		t.Errorf("line = %v, want 2.5", over.Line)
	}

	cases := []struct {
		name string
		req  service.AddOutcomeRequest
		want error
	}{
		{"odds below minimum", service.AddOutcomeRequest{Description: "1", Group: "Ganador del Partido", Odds: dec("1.00")}, domain.ErrInvalidOdds},
		{"unknown group", service.AddOutcomeRequest{Description: "1", Group: "Córners", Odds: dec("2")}, domain.ErrValidation},
		{"over without line", service.AddOutcomeRequest{Description: "Más", Group: "Goles - Más de", Odds: dec("2")}, domain.ErrValidation},
		{"team not in event", service.AddOutcomeRequest{Description: "Más de 0.5", Group: "Goles - Tigres - Más de", Odds: dec("2")}, domain.ErrValidation},
		{"duplicate", service.AddOutcomeRequest{Description: "Más de 2.5", Group: "Goles - Más de", Odds: dec("1.90")}, domain.ErrDuplicateMarket},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.events.AddOutcome(ctx, ev, tc.req); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSetOutcomeOdds(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	uid := e.user(t)
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	o := e.outcome(t, ev, "1", "2.00")
	b := e.place(t, uid, "10", o)

	updated, err := e.events.SetOutcomeOdds(ctx, o, dec("1.20"))
	if err != nil {
		t.Fatalf("SetOutcomeOdds: %v", err)
	}
	if !updated.Odds.Equal(dec("1.20")) {
		t.Errorf("outcome odds = %s, want 1.20", updated.Odds)
	}
	got, err := e.bets.GetBet(ctx, b.ID, uid)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Selections[0].Odds.Equal(dec("2.00")) || !got.TotalOdds.Equal(dec("2.00")) {
		t.Errorf("bet shows %s (total %s), want the placement quote 2.00", got.Selections[0].Odds, got.TotalOdds)
	}
	if _, err := e.events.SetOutcomeOdds(ctx, o, dec("0.90")); !errors.Is(err, domain.ErrInvalidOdds) {
		t.Errorf("err = %v, want ErrInvalidOdds", err)
	}

	// A later bet takes the new quote; each settles at its own.
	late := e.place(t, uid, "10", o)
	resolve(t, e, ev, 1, 0)
	if w := e.bet(t, b.ID).Winnings; w == nil || !w.Equal(dec("20")) {
		t.Errorf("early bet winnings = %v, want 20.00", w)
	}
	if w := e.bet(t, late.ID).Winnings; w == nil || !w.Equal(dec("12")) {
		t.Errorf("late bet winnings = %v, want 12.00", w)
	}
	e.wantBalance(t, uid, "112")
}

func TestCancelEvent_VoidsEveryPendingBet(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	uid := e.user(t)
	evA := e.event(t, "Leones", "Halcones", 24*time.Hour)
	evB := e.event(t, "Tigres", "Pumas", 24*time.Hour)
	oA := e.outcome(t, evA, "1", "2.00")
	oB := e.outcome(t, evB, "2", "3.00")

	single := e.place(t, uid, "10", oA)
	combo := e.place(t, uid, "20", oA, oB)
	other := e.place(t, uid, "5", oB)
	e.wantBalance(t, uid, "65")

	res, err := e.events.CancelEvent(ctx, evA)
	if err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}
	if res.Event.Status != domain.EventCancelled || res.Resolved != 1 {
		t.Errorf("cancel result = %s, %d voided", res.Event.Status, res.Resolved)
	}
	for name, id := range map[string]uuid.UUID{"single": single.ID, "combo": combo.ID} {
		got := e.bet(t, id)
		if got.Status != domain.BetVoid || got.Winnings == nil || !got.Winnings.Equal(got.Amount) {
			t.Errorf("%s = %s/%v, want VOID with the stake returned", name, got.Status, got.Winnings)
		}
		if got.VoidedBy == nil || *got.VoidedBy != evA {
			t.Errorf("%s voided by %v, want %s", name, got.VoidedBy, evA)
		}
	}
	if got := e.bet(t, other.ID).Status; got != domain.BetPending {
		t.Errorf("bet on the other event = %s, want PENDING", got)
	}
	e.wantBalance(t, uid, "95")

	// The voided combo stays closed when its other leg is decided.
	resolve(t, e, evB, 0, 1)
	if got := e.bet(t, combo.ID); got.Status != domain.BetVoid || !got.Winnings.Equal(dec("20")) {
		t.Errorf("combo after the other leg won = %s/%v, want VOID/20", got.Status, got.Winnings)
	}
	if got := e.bet(t, other.ID).Status; got != domain.BetWon {
		t.Errorf("bet on the other event = %s, want WON", got)
	}
	e.wantBalance(t, uid, "110")

	if _, err := e.events.CancelEvent(ctx, evA); err != nil {
		t.Fatalf("repeat CancelEvent: %v", err)
	}
	e.wantBalance(t, uid, "110")

	if _, err := e.events.ResolveEvent(ctx, evA, service.ResolveEventRequest{}); !errors.Is(err, domain.ErrEventCancelled) {
		t.Errorf("resolve cancelled event: err = %v, want ErrEventCancelled", err)
	}
}

func TestDeleteOutcome(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	uid := e.user(t)
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	free := e.outcome(t, ev, "X", "3.00")
	used := e.outcome(t, ev, "1", "2.00")
	e.place(t, uid, "5", used)

	if err := e.events.DeleteOutcome(ctx, used); !errors.Is(err, domain.ErrOutcomeInUse) {
		t.Errorf("delete referenced: err = %v, want ErrOutcomeInUse", err)
	}
	if err := e.events.DeleteOutcome(ctx, free); err != nil {
		t.Fatalf("DeleteOutcome: %v", err)
	}
	if _, err := e.store.GetOutcome(ctx, free); !errors.Is(err, domain.ErrOutcomeNotFound) {
		t.Errorf("deleted outcome still readable: %v", err)
	}
}

func TestCloneEvent(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	ev := e.event(t, "Leones", "Halcones", 24*time.Hour)
	o := e.outcome(t, ev, "1", "2.00")
	correct(t, e, o, domain.OutcomeWon)

	next := time.Now().Add(7 * 24 * time.Hour)
	c, err := e.events.CloneEvent(ctx, ev, service.CloneEventRequest{StartsAt: &next})
	if err != nil {
		t.Fatalf("CloneEvent: %v", err)
	}
	if c.ID == ev || c.Name != "Leones vs Halcones" || len(c.Outcomes) != 1 {
		t.Fatalf("clone = %+v", c.Event)
	}
	if c.Outcomes[0].Status != domain.OutcomePending || !c.Outcomes[0].Odds.Equal(dec("2.00")) {
		t.Errorf("cloned outcome = %s @ %s, want PENDING @ 2.00", c.Outcomes[0].Status, c.Outcomes[0].Odds)
	}
}

func TestStartDueEvents(t *testing.T) {
	e := newEngine(t, feed.Static{})
	ctx := context.Background()
	ev := e.event(t, "Leones", "Halcones", time.Hour)
	e.event(t, "Tigres", "Pumas", 5*time.Hour)

	e.skew = 2 * time.Hour
	n, err := e.events.StartDueEvents(ctx)
	if err != nil {
		t.Fatalf("StartDueEvents: %v", err)
	}
	if n != 1 {
		t.Errorf("started %d events, want 1", n)
	}
	got, err := e.store.GetEvent(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.EventLive {
		t.Errorf("status = %s, want LIVE", got.Status)
	}
	if n, _ := e.events.StartDueEvents(ctx); n != 0 {
		t.Errorf("second pass started %d, want 0", n)
	}
}
