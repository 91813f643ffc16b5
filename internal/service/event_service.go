package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/events"
	"github.com/evetabi/furbito/internal/feed"
	"github.com/evetabi/furbito/internal/market"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ──────────────────────────────────────────────────────────────────────────────

// CreateEventRequest creates an event. Teams may be given explicitly or as a
// "Home vs Away" name.
type CreateEventRequest struct {
	Name        string    `json:"name"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	StartsAt    time.Time `json:"starts_at"    binding:"required"`
	NotifyUsers bool      `json:"notify_users"`
}

// CloneEventRequest copies an event's outcomes onto a new fixture. A nil
// StartsAt keeps the source kick-off.
type CloneEventRequest struct {
	StartsAt *time.Time `json:"starts_at"`
}

// AddOutcomeRequest adds a manually priced outcome. Group is the market
// label shown to users; Line is required for over/under groups unless the
// description ends in the line.
type AddOutcomeRequest struct {
	Description string           `json:"description" binding:"required"`
	Group       string           `json:"group"       binding:"required"`
	Odds        decimal.Decimal  `json:"odds"`
	Line        *decimal.Decimal `json:"line"`
}

// ResolveEventRequest carries a final score.
type ResolveEventRequest struct {
	HomeGoals int `json:"home_goals"`
	AwayGoals int `json:"away_goals"`
}

// RegenerateResult counts what a regeneration changed.
type RegenerateResult struct {
	Repriced int `json:"repriced"`
	Created  int `json:"created"`
	Removed  int `json:"removed"`
}

// ResolveResult reports a resolution and the settlement it triggered.
type ResolveResult struct {
	Event      *domain.Event `json:"event"`
	Resolved   int           `json:"resolved"` // outcomes whose status changed
	Settlement SettleReport  `json:"settlement"`
}

// ──────────────────────────────────────────────────────────────────────────────
// EventService
// ──────────────────────────────────────────────────────────────────────────────

// EventService administers events and their outcomes: creation with
// generated markets, manual outcomes, re-pricing, resolution, corrections
// and cancellation. Every status change is followed by settlement of the
// affected bets.
type EventService struct {
	store       store.Store
	gen         *market.Generator
	feed        feed.Provider
	settlement  *SettlementService
	broadcaster Broadcaster
	hooks
}

// NewEventService creates an EventService.
func NewEventService(st store.Store, gen *market.Generator, fp feed.Provider, settlement *SettlementService, h Hooks) *EventService {
	return &EventService{
		store:       st,
		gen:         gen,
		feed:        fp,
		settlement:  settlement,
		broadcaster: nopBroadcaster{},
		hooks:       newHooks(h, "event_service"),
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (s *EventService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// ListEvents returns events matching f, soonest first.
func (s *EventService) ListEvents(ctx context.Context, f store.EventFilter) ([]*domain.Event, error) {
	evs, err := s.store.ListEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("event_service.ListEvents: %w", err)
	}
	return evs, nil
}

// GetEvent returns an event with its outcomes in creation order.
func (s *EventService) GetEvent(ctx context.Context, id uuid.UUID) (*domain.EventDetail, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	outcomes, err := s.store.ListOutcomesByEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("event_service.GetEvent: %w", err)
	}
	return detailOf(e, outcomes), nil
}

func detailOf(e *domain.Event, outcomes []*domain.Outcome) *domain.EventDetail {
	d := &domain.EventDetail{Event: e, Outcomes: make([]domain.OutcomeView, 0, len(outcomes))}
	for _, o := range outcomes {
		d.Outcomes = append(d.Outcomes, o.ToView())
	}
	return d
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateEvent / CloneEvent
// ──────────────────────────────────────────────────────────────────────────────

// CreateEvent stores a new UPCOMING event with its generated markets. Feed
// or pricing problems are logged and the event is created with whatever
// markets could be priced.
func (s *EventService) CreateEvent(ctx context.Context, req CreateEventRequest) (*domain.EventDetail, error) {
	// ── 1. Input validation ──────────────────────────────────────────────────
	home, away := strings.TrimSpace(req.HomeTeam), strings.TrimSpace(req.AwayTeam)
	if home == "" || away == "" {
		var ok bool
		if home, away, ok = domain.SplitEventName(req.Name); !ok {
			return nil, domain.ErrInvalidEvent
		}
	}
	now := s.now()
	if !req.StartsAt.After(now) {
		return nil, domain.ErrInvalidEvent
	}

	ev := &domain.Event{
		ID:        uuid.New(),
		Name:      domain.EventName(home, away),
		HomeTeam:  home,
		AwayTeam:  away,
		StartsAt:  req.StartsAt.UTC(),
		Status:    domain.EventUpcoming,
		CreatedAt: now,
	}

	// ── 2. Price markets ─────────────────────────────────────────────────────
	snap := s.snapshot(ctx)
	outcomes := s.generate(ctx, s.store, ev, snap)

	// ── 3. Persist ───────────────────────────────────────────────────────────
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateEvent(ctx, ev); err != nil {
			return fmt.Errorf("event_service.CreateEvent: create event: %w", err)
		}
		for _, o := range outcomes {
			if err := tx.CreateOutcome(ctx, o); err != nil {
				return fmt.Errorf("event_service.CreateEvent: create outcome: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// ── 4. Post-commit side effects ──────────────────────────────────────────
	s.metrics.OutcomesPriced("create", len(outcomes))
	s.eventChanged(ctx, ev, events.TypeEventCreated)
	s.log.Info("event created",
		zap.Stringer("event_id", ev.ID),
		zap.String("name", ev.Name),
		zap.Int("outcomes", len(outcomes)))
	if req.NotifyUsers {
		s.notifyAll(ctx, "Nuevo evento: "+ev.Name,
			"Ya puedes apostar. Comienza el "+ev.StartsAt.Format("02/01/2006 15:04")+" UTC.")
	}
	return detailOf(ev, outcomes), nil
}

// CloneEvent creates a new event for the same teams and copies the source's
// outcomes with their quotes, all PENDING.
func (s *EventService) CloneEvent(ctx context.Context, eventID uuid.UUID, req CloneEventRequest) (*domain.EventDetail, error) {
	src, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	startsAt := src.StartsAt
	if req.StartsAt != nil {
		startsAt = req.StartsAt.UTC()
	}
	if !startsAt.After(now) {
		return nil, domain.ErrInvalidEvent
	}
	srcOutcomes, err := s.store.ListOutcomesByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event_service.CloneEvent: list outcomes: %w", err)
	}

	ev := &domain.Event{
		ID:        uuid.New(),
		Name:      src.Name,
		HomeTeam:  src.HomeTeam,
		AwayTeam:  src.AwayTeam,
		StartsAt:  startsAt,
		Status:    domain.EventUpcoming,
		CreatedAt: now,
	}
	outcomes := make([]*domain.Outcome, 0, len(srcOutcomes))
	for _, o := range srcOutcomes {
		c := *o
		c.ID = uuid.New()
		c.EventID = ev.ID
		c.Status = domain.OutcomePending
		c.CreatedAt = now
		outcomes = append(outcomes, &c)
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateEvent(ctx, ev); err != nil {
			return fmt.Errorf("event_service.CloneEvent: create event: %w", err)
		}
		for _, o := range outcomes {
			if err := tx.CreateOutcome(ctx, o); err != nil {
				return fmt.Errorf("event_service.CloneEvent: create outcome: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.eventChanged(ctx, ev, events.TypeEventCreated)
	s.log.Info("event cloned", zap.Stringer("source_id", src.ID), zap.Stringer("event_id", ev.ID))
	return detailOf(ev, outcomes), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Manual outcomes
// ──────────────────────────────────────────────────────────────────────────────

// AddOutcome adds an operator-priced outcome to an open event.
func (s *EventService) AddOutcome(ctx context.Context, eventID uuid.UUID, req AddOutcomeRequest) (*domain.Outcome, error) {
	// ── 1. Input validation ──────────────────────────────────────────────────
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	odds := req.Odds.Round(2)
	if odds.LessThan(domain.MinOdds) {
		return nil, domain.ErrInvalidOdds
	}
	cat, err := domain.ParseLabel(req.Group)
	if err != nil {
		return nil, err
	}

	o := &domain.Outcome{
		ID:             uuid.New(),
		EventID:        eventID,
		Description:    desc,
		MarketCategory: cat,
		Selection:      desc,
		Odds:           odds,
		Status:         domain.OutcomePending,
		CreatedAt:      s.now(),
	}
	if cat.Direction != domain.DirectionNone {
		line, ok := lineOf(req.Line, desc)
		if !ok {
			return nil, fmt.Errorf("%w: over/under outcomes need a line", domain.ErrValidation)
		}
		o.Line = &line
	}

	// ── 2. Persist ───────────────────────────────────────────────────────────
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.Status == domain.EventCompleted || ev.Status == domain.EventCancelled {
			return domain.ErrEventClosed
		}
		if cat.Kind == domain.KindTeamGoals && cat.Subject != ev.HomeTeam && cat.Subject != ev.AwayTeam {
			return fmt.Errorf("%w: team %q does not play in %s", domain.ErrValidation, cat.Subject, ev.Name)
		}
		existing, err := tx.ListOutcomesByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("event_service.AddOutcome: list outcomes: %w", err)
		}
		key := market.Key(o)
		for _, e := range existing {
			if market.Key(e) == key {
				return domain.ErrDuplicateMarket
			}
		}
		if err := tx.CreateOutcome(ctx, o); err != nil {
			return fmt.Errorf("event_service.AddOutcome: create outcome: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastOdds(eventID, []*domain.Outcome{o})
	s.log.Info("outcome added", zap.Stringer("event_id", eventID), zap.Stringer("outcome_id", o.ID), zap.String("group", o.Group()))
	return o, nil
}

// lineOf takes the explicit line or the trailing number of the description
// ("Más de 2.5").
func lineOf(explicit *decimal.Decimal, desc string) (decimal.Decimal, bool) {
	if explicit != nil {
		return *explicit, explicit.IsPositive()
	}
	fields := strings.Fields(desc)
	if len(fields) == 0 {
		return decimal.Zero, false
	}
	line, err := decimal.NewFromString(strings.ReplaceAll(fields[len(fields)-1], ",", "."))
	if err != nil || !line.IsPositive() {
		return decimal.Zero, false
	}
	return line, true
}

// DeleteOutcome removes a PENDING outcome that no bet references.
func (s *EventService) DeleteOutcome(ctx context.Context, outcomeID uuid.UUID) error {
	return s.store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOutcome(ctx, outcomeID)
		if err != nil {
			return err
		}
		if o.Status != domain.OutcomePending {
			return domain.ErrOutcomeNotPending
		}
		used, err := tx.OutcomeReferenced(ctx, outcomeID)
		if err != nil {
			return fmt.Errorf("event_service.DeleteOutcome: %w", err)
		}
		if used {
			return domain.ErrOutcomeInUse
		}
		if err := tx.DeleteOutcome(ctx, outcomeID); err != nil {
			return fmt.Errorf("event_service.DeleteOutcome: %w", err)
		}
		return nil
	})
}

// SetOutcomeOdds re-quotes a PENDING outcome by hand. Bets already placed
// settle at the odds they were placed at.
func (s *EventService) SetOutcomeOdds(ctx context.Context, outcomeID uuid.UUID, odds decimal.Decimal) (*domain.Outcome, error) {
	odds = odds.Round(2)
	if odds.LessThan(domain.MinOdds) {
		return nil, domain.ErrInvalidOdds
	}
	var o *domain.Outcome
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if o, err = tx.GetOutcome(ctx, outcomeID); err != nil {
			return err
		}
		if o.Status != domain.OutcomePending {
			return domain.ErrOutcomeNotPending
		}
		o.Odds = odds
		if err := tx.UpdateOutcomeOdds(ctx, outcomeID, odds); err != nil {
			return fmt.Errorf("event_service.SetOutcomeOdds: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.broadcaster.BroadcastOdds(o.EventID, []*domain.Outcome{o})
	return o, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Re-pricing
// ──────────────────────────────────────────────────────────────────────────────

// RegenerateOdds re-prices an event from fresh statistics. Only PENDING
// outcomes change: matching outcomes are re-quoted in place, new markets
// are added and player outcomes that are no longer offered are removed
// unless a bet references them. Placed bets keep their quotes.
func (s *EventService) RegenerateOdds(ctx context.Context, eventID uuid.UUID) (*RegenerateResult, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status == domain.EventCompleted || ev.Status == domain.EventCancelled {
		return nil, domain.ErrEventClosed
	}
	snap := s.snapshot(ctx)

	var (
		res     RegenerateResult
		changed []*domain.Outcome
	)
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		fresh := s.generate(ctx, tx, ev, snap)
		existing, err := tx.ListOutcomesByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("event_service.RegenerateOdds: list outcomes: %w", err)
		}
		stored := make(map[string]*domain.Outcome, len(existing))
		for _, o := range existing {
			stored[market.Key(o)] = o
		}

		offered := make(map[string]bool, len(fresh))
		for _, f := range fresh {
			key := market.Key(f)
			offered[key] = true
			old, ok := stored[key]
			if !ok {
				if err := tx.CreateOutcome(ctx, f); err != nil {
					return fmt.Errorf("event_service.RegenerateOdds: create outcome: %w", err)
				}
				res.Created++
				changed = append(changed, f)
				continue
			}
			if old.Status != domain.OutcomePending || old.Odds.Equal(f.Odds) {
				continue
			}
			if err := tx.UpdateOutcomeOdds(ctx, old.ID, f.Odds); err != nil {
				return fmt.Errorf("event_service.RegenerateOdds: update odds: %w", err)
			}
			old.Odds = f.Odds
			res.Repriced++
			changed = append(changed, old)
		}

		// A feed outage must not wipe the player board, so removals only
		// happen against a full regeneration.
		if snap == nil {
			return nil
		}
		for key, old := range stored {
			if offered[key] || !old.Kind.IsPlayerMarket() || old.Status != domain.OutcomePending {
				continue
			}
			used, err := tx.OutcomeReferenced(ctx, old.ID)
			if err != nil {
				return fmt.Errorf("event_service.RegenerateOdds: %w", err)
			}
			if used {
				continue
			}
			if err := tx.DeleteOutcome(ctx, old.ID); err != nil {
				return fmt.Errorf("event_service.RegenerateOdds: delete outcome: %w", err)
			}
			res.Removed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OutcomesPriced("regenerate", res.Repriced+res.Created)
	if len(changed) > 0 {
		s.broadcaster.BroadcastOdds(eventID, changed)
	}
	s.log.Info("odds regenerated",
		zap.Stringer("event_id", eventID),
		zap.Int("repriced", res.Repriced),
		zap.Int("created", res.Created),
		zap.Int("removed", res.Removed))
	return &res, nil
}

// RecalculatePlayerOdds re-quotes the PENDING outcomes of one player on
// events still open for betting. First-scorer outcomes depend on the whole
// field and are left to RegenerateOdds. It returns the number re-quoted.
func (s *EventService) RecalculatePlayerOdds(ctx context.Context, playerID uuid.UUID) (int, error) {
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	byEvent := make(map[uuid.UUID][]*domain.Outcome)
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		outcomes, err := tx.ListPendingOutcomesByPlayer(ctx, playerID)
		if err != nil {
			return fmt.Errorf("event_service.RecalculatePlayerOdds: %w", err)
		}
		open := make(map[uuid.UUID]bool)
		for _, o := range outcomes {
			accepts, seen := open[o.EventID]
			if !seen {
				ev, err := tx.GetEvent(ctx, o.EventID)
				if err != nil {
					return err
				}
				accepts = ev.AcceptsBets(now)
				open[o.EventID] = accepts
			}
			if !accepts {
				continue
			}
			quote, ok := s.gen.PlayerQuote(o, p)
			if !ok || quote.Equal(o.Odds) {
				continue
			}
			if err := tx.UpdateOutcomeOdds(ctx, o.ID, quote); err != nil {
				return fmt.Errorf("event_service.RecalculatePlayerOdds: %w", err)
			}
			o.Odds = quote
			byEvent[o.EventID] = append(byEvent[o.EventID], o)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for eventID, outcomes := range byEvent {
		n += len(outcomes)
		s.broadcaster.BroadcastOdds(eventID, outcomes)
	}
	s.metrics.OutcomesPriced("player", n)
	s.log.Info("player odds recalculated", zap.Stringer("player_id", playerID), zap.Int("outcomes", n))
	return n, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolution
// ──────────────────────────────────────────────────────────────────────────────

// ResolveEvent records the final score, resolves score-based outcomes and
// settles every bet on the event. The first resolution only touches PENDING
// outcomes, so earlier manual results stand. Resolving a COMPLETED event
// again re-evaluates every score-based outcome against the new score.
// Player markets are always left to CorrectOutcome.
func (s *EventService) ResolveEvent(ctx context.Context, eventID uuid.UUID, req ResolveEventRequest) (*ResolveResult, error) {
	if req.HomeGoals < 0 || req.AwayGoals < 0 {
		return nil, domain.ErrInvalidScore
	}
	score := domain.Score{Home: req.HomeGoals, Away: req.AwayGoals}

	var (
		ev       *domain.Event
		resolved int
		settle   []uuid.UUID
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if ev, err = tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		if ev.Status == domain.EventCancelled {
			return domain.ErrEventCancelled
		}
		redo := ev.Status == domain.EventCompleted

		ev.HomeGoals, ev.AwayGoals = &score.Home, &score.Away
		ev.Status = domain.EventCompleted
		if err := tx.UpdateEvent(ctx, ev); err != nil {
			return fmt.Errorf("event_service.ResolveEvent: update event: %w", err)
		}

		outcomes, err := tx.ListOutcomesByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("event_service.ResolveEvent: list outcomes: %w", err)
		}
		for _, o := range outcomes {
			if !redo && o.Status != domain.OutcomePending {
				settle = append(settle, o.ID)
				continue
			}
			status, ok := domain.ResolveOutcome(o, ev, score)
			if !ok {
				if o.Status.IsResolved() {
					settle = append(settle, o.ID)
				}
				continue
			}
			settle = append(settle, o.ID)
			if status == o.Status {
				continue
			}
			if err := tx.UpdateOutcomeStatus(ctx, o.ID, status); err != nil {
				return fmt.Errorf("event_service.ResolveEvent: update outcome: %w", err)
			}
			resolved++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.EventResolved()
	s.eventChanged(ctx, ev, events.TypeEventResolved)
	s.log.Info("event resolved",
		zap.Stringer("event_id", eventID),
		zap.Int("home_goals", score.Home),
		zap.Int("away_goals", score.Away),
		zap.Int("outcomes", resolved))

	// Settling every resolved outcome, changed or not, lets a repeat call
	// finish bets a previous run failed on.
	report, err := s.settlement.SettleOutcomes(ctx, settle)
	res := &ResolveResult{Event: ev, Resolved: resolved, Settlement: report}
	if err != nil {
		return res, fmt.Errorf("event_service.ResolveEvent: settle: %w", err)
	}
	return res, nil
}

// CorrectOutcome sets an outcome's result by hand (player markets, or a
// wrong automatic result) and re-settles every bet that selects it. The
// bets are settled even when the status is unchanged.
func (s *EventService) CorrectOutcome(ctx context.Context, outcomeID uuid.UUID, status domain.OutcomeStatus) (*domain.Outcome, SettleReport, error) {
	if !status.IsResolved() {
		return nil, SettleReport{}, domain.ErrInvalidStatus
	}
	var o *domain.Outcome
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if o, err = tx.GetOutcome(ctx, outcomeID); err != nil {
			return err
		}
		ev, err := tx.GetEvent(ctx, o.EventID)
		if err != nil {
			return err
		}
		if ev.Status == domain.EventCancelled {
			return domain.ErrEventCancelled
		}
		if o.Status == status {
			return nil
		}
		o.Status = status
		if err := tx.UpdateOutcomeStatus(ctx, outcomeID, status); err != nil {
			return fmt.Errorf("event_service.CorrectOutcome: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, SettleReport{}, err
	}

	s.log.Info("outcome corrected", zap.Stringer("outcome_id", outcomeID), zap.String("status", string(status)))
	report, err := s.settlement.SettleOutcomes(ctx, []uuid.UUID{outcomeID})
	if err != nil {
		return o, report, fmt.Errorf("event_service.CorrectOutcome: settle: %w", err)
	}
	return o, report, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// CancelEvent calls an event off: every PENDING outcome becomes VOID and
// every PENDING bet touching the event, combos included, is voided with its
// stake refunded. Cancelling a cancelled event only re-runs settlement.
func (s *EventService) CancelEvent(ctx context.Context, eventID uuid.UUID) (*ResolveResult, error) {
	var (
		ev     *domain.Event
		voided int
		settle []uuid.UUID
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if ev, err = tx.GetEvent(ctx, eventID); err != nil {
			return err
		}
		if ev.Status == domain.EventCompleted {
			return fmt.Errorf("%w: event is already resolved", domain.ErrState)
		}
		ev.Status = domain.EventCancelled
		if err := tx.UpdateEvent(ctx, ev); err != nil {
			return fmt.Errorf("event_service.CancelEvent: update event: %w", err)
		}
		outcomes, err := tx.ListOutcomesByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("event_service.CancelEvent: list outcomes: %w", err)
		}
		for _, o := range outcomes {
			settle = append(settle, o.ID)
			if o.Status != domain.OutcomePending {
				continue
			}
			if err := tx.UpdateOutcomeStatus(ctx, o.ID, domain.OutcomeVoid); err != nil {
				return fmt.Errorf("event_service.CancelEvent: void outcome: %w", err)
			}
			voided++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.eventChanged(ctx, ev, events.TypeEventCanceled)
	s.log.Info("event cancelled", zap.Stringer("event_id", eventID), zap.Int("voided", voided))

	report, err := s.settlement.VoidEventBets(ctx, eventID, settle)
	res := &ResolveResult{Event: ev, Resolved: voided, Settlement: report}
	if err != nil {
		return res, fmt.Errorf("event_service.CancelEvent: settle: %w", err)
	}
	return res, nil
}

// StartDueEvents moves UPCOMING events whose kick-off has passed to LIVE.
// Betting closes on the clock regardless; the status is for display.
func (s *EventService) StartDueEvents(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.ListEvents(ctx, store.EventFilter{
		Statuses:     []domain.EventStatus{domain.EventUpcoming},
		StartsBefore: now,
	})
	if err != nil {
		return 0, fmt.Errorf("event_service.StartDueEvents: %w", err)
	}
	n := 0
	for _, e := range due {
		err := s.store.InTx(ctx, func(tx store.Tx) error {
			cur, err := tx.GetEvent(ctx, e.ID)
			if err != nil {
				return err
			}
			if cur.Status != domain.EventUpcoming || !cur.HasStarted(now) {
				return errSkip
			}
			cur.Status = domain.EventLive
			*e = *cur
			return tx.UpdateEvent(ctx, cur)
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("event_service.StartDueEvents: %w", err)
		}
		n++
		s.broadcaster.BroadcastEvent(e)
	}
	return n, nil
}

// errSkip aborts a unit of work that found nothing to do.
var errSkip = errors.New("skip")

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// snapshot reads the feed, returning nil on failure.
func (s *EventService) snapshot(ctx context.Context) *feed.Snapshot {
	if s.feed == nil {
		return nil
	}
	snap, err := s.feed.Snapshot(ctx)
	if err != nil {
		s.log.Warn("feed unavailable; team markets skipped", zap.Error(err))
		return nil
	}
	return snap
}

// generate prices an event. Team markets need the feed's standings; a team
// missing from them is priced as a newcomer with no record. Player markets
// use the stored squads. A nil snapshot skips the team markets.
func (s *EventService) generate(ctx context.Context, r store.Reader, ev *domain.Event, snap *feed.Snapshot) []*domain.Outcome {
	var out []*domain.Outcome
	if snap != nil {
		home, err := snap.Team(ev.HomeTeam)
		if err != nil {
			s.log.Info("team not in standings", zap.String("team", ev.HomeTeam))
			home = domain.TeamStats{Team: ev.HomeTeam}
		}
		away, err := snap.Team(ev.AwayTeam)
		if err != nil {
			s.log.Info("team not in standings", zap.String("team", ev.AwayTeam))
			away = domain.TeamStats{Team: ev.AwayTeam}
		}
		out = append(out, s.gen.TeamMarkets(ev, home, away)...)
	}

	homeSquad, err := r.ListPlayersByTeam(ctx, ev.HomeTeam)
	if err != nil {
		s.log.Warn("load squad failed", zap.String("team", ev.HomeTeam), zap.Error(err))
	}
	awaySquad, err := r.ListPlayersByTeam(ctx, ev.AwayTeam)
	if err != nil {
		s.log.Warn("load squad failed", zap.String("team", ev.AwayTeam), zap.Error(err))
	}
	if len(homeSquad)+len(awaySquad) > 0 {
		out = append(out, s.gen.PlayerMarkets(ev, homeSquad, awaySquad)...)
	}

	now := s.now()
	for _, o := range out {
		o.CreatedAt = now
	}
	return out
}

func (s *EventService) eventChanged(ctx context.Context, ev *domain.Event, eventType string) {
	s.publish(ctx, ev.ID, eventType, events.EventChanged{
		EventID:   ev.ID,
		Name:      ev.Name,
		Status:    string(ev.Status),
		HomeGoals: ev.HomeGoals,
		AwayGoals: ev.AwayGoals,
	})
	s.broadcaster.BroadcastEvent(ev)
}

// notifyAll sends the same message to every active user.
func (s *EventService) notifyAll(ctx context.Context, subject, body string) {
	users, err := s.store.ListUsers(ctx, 0, 0)
	if err != nil {
		s.log.Warn("list users for notification failed", zap.Error(err))
		return
	}
	for _, u := range users {
		if u.IsActive {
			s.notify.Notify(ctx, u.ID, subject, body)
		}
	}
}
