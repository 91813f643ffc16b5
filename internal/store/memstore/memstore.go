// Package memstore is an in-memory store.Store. Transactions are fully
// serialised and work on a private copy of the data that replaces the
// committed copy only on success, so a failed unit of work leaves nothing
// behind. It backs the engine tests and the server's -memory mode.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FaultFunc may fail a write; op names the Tx method.
type FaultFunc func(op string, id uuid.UUID) error

type data struct {
	users    map[uuid.UUID]domain.User
	events   map[uuid.UUID]domain.Event
	outcomes map[uuid.UUID]domain.Outcome
	bets     map[uuid.UUID]domain.Bet
	players  map[uuid.UUID]domain.Player
	ledger   []domain.LedgerEntry

	seq  map[uuid.UUID]int64 // outcome insertion order
	next int64
}

func newData() *data {
	return &data{
		users:    map[uuid.UUID]domain.User{},
		events:   map[uuid.UUID]domain.Event{},
		outcomes: map[uuid.UUID]domain.Outcome{},
		bets:     map[uuid.UUID]domain.Bet{},
		players:  map[uuid.UUID]domain.Player{},
		seq:      map[uuid.UUID]int64{},
	}
}

func (d *data) clone() *data {
	return &data{
		users:    cloneMap(d.users),
		events:   cloneMap(d.events),
		outcomes: cloneMap(d.outcomes),
		bets:     cloneMap(d.bets),
		players:  cloneMap(d.players),
		ledger:   slices.Clone(d.ledger),
		seq:      cloneMap(d.seq),
		next:     d.next,
	}
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Store
// ──────────────────────────────────────────────────────────────────────────────

// Store implements store.Store in memory.
type Store struct {
	txMu sync.Mutex // one writer at a time

	mu    sync.RWMutex // guards d and fault
	d     *data
	fault FaultFunc
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{d: newData()}
}

// SetFault installs fn to fail selected writes; nil removes it.
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	s.fault = fn
	s.mu.Unlock()
}

func (s *Store) snapshot() view {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{d: s.d}
}

// InTx implements store.Store.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work, fault := s.d.clone(), s.fault
	s.mu.RUnlock()

	if err := fn(&tx{view: view{d: work}, fault: fault}); err != nil {
		return err
	}

	s.mu.Lock()
	s.d = work
	s.mu.Unlock()
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.snapshot().GetUser(ctx, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.snapshot().GetUserByEmail(ctx, email)
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return s.snapshot().ListUsers(ctx, limit, offset)
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return s.snapshot().GetEvent(ctx, id)
}

func (s *Store) ListEvents(ctx context.Context, f store.EventFilter) ([]*domain.Event, error) {
	return s.snapshot().ListEvents(ctx, f)
}

func (s *Store) FindEventByTeams(ctx context.Context, home, away string, from, to time.Time) (*domain.Event, error) {
	return s.snapshot().FindEventByTeams(ctx, home, away, from, to)
}

func (s *Store) GetOutcome(ctx context.Context, id uuid.UUID) (*domain.Outcome, error) {
	return s.snapshot().GetOutcome(ctx, id)
}

func (s *Store) ListOutcomesByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Outcome, error) {
	return s.snapshot().ListOutcomesByEvent(ctx, eventID)
}

func (s *Store) ListOutcomesByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Outcome, error) {
	return s.snapshot().ListOutcomesByIDs(ctx, ids)
}

func (s *Store) ListPendingOutcomesByPlayer(ctx context.Context, playerID uuid.UUID) ([]*domain.Outcome, error) {
	return s.snapshot().ListPendingOutcomesByPlayer(ctx, playerID)
}

func (s *Store) OutcomeReferenced(ctx context.Context, outcomeID uuid.UUID) (bool, error) {
	return s.snapshot().OutcomeReferenced(ctx, outcomeID)
}

func (s *Store) GetBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	return s.snapshot().GetBet(ctx, id)
}

func (s *Store) ListBetsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	return s.snapshot().ListBetsByUser(ctx, userID, limit, offset)
}

func (s *Store) ListBetIDsByOutcomes(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return s.snapshot().ListBetIDsByOutcomes(ctx, ids)
}

func (s *Store) ListLedger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	return s.snapshot().ListLedger(ctx, userID, limit, offset)
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*domain.Player, error) {
	return s.snapshot().GetPlayer(ctx, id)
}

func (s *Store) ListPlayersByTeam(ctx context.Context, team string) ([]*domain.Player, error) {
	return s.snapshot().ListPlayersByTeam(ctx, team)
}

func (s *Store) ListPlayers(ctx context.Context) ([]*domain.Player, error) {
	return s.snapshot().ListPlayers(ctx)
}

func (s *Store) BetTotalsByUser(ctx context.Context) ([]store.BetTotals, error) {
	return s.snapshot().BetTotalsByUser(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// view: reads over one copy of the data
// ──────────────────────────────────────────────────────────────────────────────

type view struct {
	d *data
}

func (v view) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := v.d.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (v view) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range v.d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (v view) ListUsers(_ context.Context, limit, offset int) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(v.d.users))
	for _, u := range v.d.users {
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (v view) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	e, ok := v.d.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return &e, nil
}

func (v view) ListEvents(_ context.Context, f store.EventFilter) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, e := range v.d.events {
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status) {
			continue
		}
		if !f.StartsBefore.IsZero() && !e.StartsAt.Before(f.StartsBefore) {
			continue
		}
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (v view) FindEventByTeams(_ context.Context, home, away string, from, to time.Time) (*domain.Event, error) {
	for _, e := range v.d.events {
		if e.HomeTeam == home && e.AwayTeam == away && !e.StartsAt.Before(from) && !e.StartsAt.After(to) {
			return &e, nil
		}
	}
	return nil, domain.ErrEventNotFound
}

func (v view) GetOutcome(_ context.Context, id uuid.UUID) (*domain.Outcome, error) {
	o, ok := v.d.outcomes[id]
	if !ok {
		return nil, domain.ErrOutcomeNotFound
	}
	return &o, nil
}

func (v view) ListOutcomesByEvent(_ context.Context, eventID uuid.UUID) ([]*domain.Outcome, error) {
	var out []*domain.Outcome
	for _, o := range v.d.outcomes {
		if o.EventID == eventID {
			out = append(out, &o)
		}
	}
	v.sortOutcomes(out)
	return out, nil
}

func (v view) ListOutcomesByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.Outcome, error) {
	out := make([]*domain.Outcome, 0, len(ids))
	for _, id := range ids {
		if o, ok := v.d.outcomes[id]; ok {
			out = append(out, &o)
		}
	}
	return out, nil
}

func (v view) ListPendingOutcomesByPlayer(_ context.Context, playerID uuid.UUID) ([]*domain.Outcome, error) {
	var out []*domain.Outcome
	for _, o := range v.d.outcomes {
		if o.Status == domain.OutcomePending && o.PlayerID != nil && *o.PlayerID == playerID {
			out = append(out, &o)
		}
	}
	v.sortOutcomes(out)
	return out, nil
}

func (v view) OutcomeReferenced(_ context.Context, outcomeID uuid.UUID) (bool, error) {
	for _, b := range v.d.bets {
		if slices.Contains(b.OutcomeIDs, outcomeID) {
			return true, nil
		}
	}
	return false, nil
}

func (v view) GetBet(_ context.Context, id uuid.UUID) (*domain.Bet, error) {
	b, ok := v.d.bets[id]
	if !ok {
		return nil, domain.ErrBetNotFound
	}
	return copyBet(b), nil
}

func (v view) ListBetsByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	var out []*domain.Bet
	for _, b := range v.d.bets {
		if b.UserID == userID {
			out = append(out, copyBet(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return page(out, limit, offset), nil
}

func (v view) ListBetIDsByOutcomes(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, b := range v.d.bets {
		if b.Status == domain.BetCancelled {
			continue
		}
		for _, id := range ids {
			if slices.Contains(b.OutcomeIDs, id) {
				out = append(out, b.ID)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (v view) BetTotalsByUser(_ context.Context) ([]store.BetTotals, error) {
	byUser := make(map[uuid.UUID]*store.BetTotals)
	for _, b := range v.d.bets {
		if b.Status != domain.BetWon && b.Status != domain.BetLost && b.Status != domain.BetVoid {
			continue
		}
		t, ok := byUser[b.UserID]
		if !ok {
			t = &store.BetTotals{UserID: b.UserID}
			byUser[b.UserID] = t
		}
		t.Staked = t.Staked.Add(b.Amount)
		if b.Winnings != nil {
			t.Returned = t.Returned.Add(*b.Winnings)
		}
	}
	out := make([]store.BetTotals, 0, len(byUser))
	for _, t := range byUser {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}

func (v view) ListLedger(_ context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	for i := len(v.d.ledger) - 1; i >= 0; i-- {
		if e := v.d.ledger[i]; e.UserID == userID {
			out = append(out, &e)
		}
	}
	return page(out, limit, offset), nil
}

func (v view) GetPlayer(_ context.Context, id uuid.UUID) (*domain.Player, error) {
	p, ok := v.d.players[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &p, nil
}

func (v view) ListPlayersByTeam(_ context.Context, team string) ([]*domain.Player, error) {
	var out []*domain.Player
	for _, p := range v.d.players {
		if strings.EqualFold(p.Team, team) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v view) ListPlayers(_ context.Context) ([]*domain.Player, error) {
	out := make([]*domain.Player, 0, len(v.d.players))
	for _, p := range v.d.players {
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// tx: writes against the private copy
// ──────────────────────────────────────────────────────────────────────────────

type tx struct {
	view
	fault FaultFunc
}

func (t *tx) check(op string, id uuid.UUID) error {
	if t.fault == nil {
		return nil
	}
	return t.fault(op, id)
}

func (t *tx) LockUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := t.check("LockUser", id); err != nil {
		return nil, err
	}
	return t.GetUser(ctx, id)
}

func (t *tx) UpdateBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal) error {
	if err := t.check("UpdateBalance", id); err != nil {
		return err
	}
	u, ok := t.d.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Balance = balance
	u.UpdatedAt = time.Now().UTC()
	t.d.users[id] = u
	return nil
}

func (t *tx) AppendLedger(_ context.Context, e *domain.LedgerEntry) error {
	if err := t.check("AppendLedger", e.UserID); err != nil {
		return err
	}
	t.d.ledger = append(t.d.ledger, *e)
	return nil
}

func (t *tx) CreateUser(_ context.Context, u *domain.User) error {
	if err := t.check("CreateUser", u.ID); err != nil {
		return err
	}
	for _, existing := range t.d.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return domain.ErrUsernameTaken
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrEmailTaken
		}
	}
	t.d.users[u.ID] = *u
	return nil
}

func (t *tx) SetTelegramChat(_ context.Context, id uuid.UUID, chatID *int64) error {
	return t.updateUser("SetTelegramChat", id, func(u *domain.User) { u.TelegramChatID = chatID })
}

func (t *tx) SetUserActive(_ context.Context, id uuid.UUID, active bool) error {
	return t.updateUser("SetUserActive", id, func(u *domain.User) { u.IsActive = active })
}

func (t *tx) SetUserRole(_ context.Context, id uuid.UUID, role domain.UserRole) error {
	return t.updateUser("SetUserRole", id, func(u *domain.User) { u.Role = role })
}

func (t *tx) SetLastSpin(_ context.Context, id uuid.UUID, at time.Time) error {
	return t.updateUser("SetLastSpin", id, func(u *domain.User) { u.LastSpinAt = &at })
}

func (t *tx) updateUser(op string, id uuid.UUID, fn func(*domain.User)) error {
	if err := t.check(op, id); err != nil {
		return err
	}
	u, ok := t.d.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	t.d.users[id] = u
	return nil
}

func (t *tx) CreateEvent(_ context.Context, e *domain.Event) error {
	if err := t.check("CreateEvent", e.ID); err != nil {
		return err
	}
	t.d.events[e.ID] = *e
	return nil
}

func (t *tx) ShareEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	if err := t.check("ShareEvent", id); err != nil {
		return nil, err
	}
	return t.GetEvent(ctx, id)
}

func (t *tx) UpdateEvent(_ context.Context, e *domain.Event) error {
	if err := t.check("UpdateEvent", e.ID); err != nil {
		return err
	}
	cur, ok := t.d.events[e.ID]
	if !ok {
		return domain.ErrEventNotFound
	}
	cur.Status, cur.HomeGoals, cur.AwayGoals = e.Status, e.HomeGoals, e.AwayGoals
	t.d.events[e.ID] = cur
	return nil
}

func (t *tx) CreateOutcome(_ context.Context, o *domain.Outcome) error {
	if err := t.check("CreateOutcome", o.ID); err != nil {
		return err
	}
	if _, ok := t.d.events[o.EventID]; !ok {
		return domain.ErrEventNotFound
	}
	t.d.outcomes[o.ID] = *o
	t.d.next++
	t.d.seq[o.ID] = t.d.next
	return nil
}

func (t *tx) UpdateOutcomeStatus(_ context.Context, id uuid.UUID, status domain.OutcomeStatus) error {
	if err := t.check("UpdateOutcomeStatus", id); err != nil {
		return err
	}
	o, ok := t.d.outcomes[id]
	if !ok {
		return domain.ErrOutcomeNotFound
	}
	o.Status = status
	t.d.outcomes[id] = o
	return nil
}

func (t *tx) UpdateOutcomeOdds(_ context.Context, id uuid.UUID, odds decimal.Decimal) error {
	if err := t.check("UpdateOutcomeOdds", id); err != nil {
		return err
	}
	o, ok := t.d.outcomes[id]
	if !ok {
		return domain.ErrOutcomeNotFound
	}
	o.Odds = odds
	t.d.outcomes[id] = o
	return nil
}

func (t *tx) DeleteOutcome(_ context.Context, id uuid.UUID) error {
	if err := t.check("DeleteOutcome", id); err != nil {
		return err
	}
	if _, ok := t.d.outcomes[id]; !ok {
		return domain.ErrOutcomeNotFound
	}
	delete(t.d.outcomes, id)
	delete(t.d.seq, id)
	return nil
}

func (t *tx) CreateBet(_ context.Context, b *domain.Bet) error {
	if err := t.check("CreateBet", b.ID); err != nil {
		return err
	}
	t.d.bets[b.ID] = *copyBet(*b)
	return nil
}

func (t *tx) LockBet(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	if err := t.check("LockBet", id); err != nil {
		return nil, err
	}
	return t.GetBet(ctx, id)
}

func (t *tx) UpdateBetSettlement(_ context.Context, b *domain.Bet) error {
	if err := t.check("UpdateBetSettlement", b.ID); err != nil {
		return err
	}
	cur, ok := t.d.bets[b.ID]
	if !ok {
		return domain.ErrBetNotFound
	}
	cur.Status, cur.Winnings, cur.VoidedBy, cur.SettledAt = b.Status, b.Winnings, b.VoidedBy, b.SettledAt
	t.d.bets[b.ID] = cur
	return nil
}

func (t *tx) UpsertPlayer(_ context.Context, p *domain.Player) error {
	if err := t.check("UpsertPlayer", p.ID); err != nil {
		return err
	}
	for id, existing := range t.d.players {
		if strings.EqualFold(existing.Team, p.Team) && strings.EqualFold(existing.Name, p.Name) {
			p.ID = id
			break
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.UpdatedAt = time.Now().UTC()
	t.d.players[p.ID] = *p
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// helpers
// ──────────────────────────────────────────────────────────────────────────────

func copyBet(b domain.Bet) *domain.Bet {
	b.OutcomeIDs = slices.Clone(b.OutcomeIDs)
	b.Quotes = maps.Clone(b.Quotes)
	return &b
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (v view) sortOutcomes(out []*domain.Outcome) {
	sort.Slice(out, func(i, j int) bool { return v.d.seq[out[i].ID] < v.d.seq[out[j].ID] })
}
