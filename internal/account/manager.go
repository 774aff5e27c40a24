// Package account routes engine operations to the correct balance for a
// user's active trading context (individual vs. collection) and owns the
// in-memory session state those operations mutate.
//
// The in-memory state is authoritative. Trades mutate it synchronously
// under one mutex, then persistence is dispatched as a detached task so
// storage latency never gates execution. A crash between mutation and
// persistence can lose the most recent trade; Flush exists for callers
// that need the write to land (shutdown, tests).
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinsim/trade-engine/internal/engine"
	"github.com/coinsim/trade-engine/internal/ledger"
	"github.com/coinsim/trade-engine/internal/metrics"
	"github.com/coinsim/trade-engine/internal/model"
	"github.com/coinsim/trade-engine/internal/price"
	"github.com/coinsim/trade-engine/internal/store"
	"github.com/coinsim/trade-engine/internal/symbol"
)

// DefaultStartingBalance seeds new balances when none is configured.
var DefaultStartingBalance = decimal.NewFromInt(100000)

const persistTimeout = 5 * time.Second

// Accounts is the per-user session state: one persistent individual
// balance, lazily loaded collection balances, and the active context.
// Only SwitchContext changes Active.
type Accounts struct {
	Individual  *model.Balance
	Collections map[string]*model.Balance
	Active      model.TradingContext
	Baselines   map[string]*model.BaselineSnapshot // contextKey → rollover baseline
}

// Snapshot is the read view of one balance handed to the API layer:
// a deep copy plus derived totals and day change.
type Snapshot struct {
	UserID    string               `json:"user_id"`
	Context   model.TradingContext `json:"context"`
	Balance   *model.Balance       `json:"balance"`
	Totals    ledger.Totals        `json:"totals"`
	DayChange ledger.DayChange     `json:"day_change"`
}

// Manager serializes all engine operations (the single-writer model) and
// resolves the active balance per operation — never cached across calls,
// so a context switch between two operations is always observed.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	exec     *engine.Executor
	prices   *price.Book
	users    map[string]*Accounts
	starting decimal.Decimal
	wg       sync.WaitGroup
}

// NewManager creates a manager. Non-positive startingBalance falls back
// to DefaultStartingBalance.
func NewManager(st store.Store, exec *engine.Executor, book *price.Book, startingBalance decimal.Decimal) *Manager {
	if startingBalance.LessThanOrEqual(decimal.Zero) {
		startingBalance = DefaultStartingBalance
	}
	return &Manager{
		store:    st,
		exec:     exec,
		prices:   book,
		users:    make(map[string]*Accounts),
		starting: startingBalance,
	}
}

// getOrCreate loads or seeds the session state for a user. A transient
// load failure is returned, never papered over with a fresh seed: the
// seed's next persist would overwrite the user's real stored balance.
// Caller must hold m.mu.
func (m *Manager) getOrCreate(ctx context.Context, userID string) (*Accounts, error) {
	if a, ok := m.users[userID]; ok {
		return a, nil
	}

	a := &Accounts{
		Collections: make(map[string]*model.Balance),
		Active:      model.Individual(),
		Baselines:   make(map[string]*model.BaselineSnapshot),
	}

	key := model.Individual().Key()
	b, err := m.store.GetBalance(ctx, userID, key)
	switch {
	case err == nil:
		a.Individual = b
	case errors.Is(err, store.ErrNotFound):
		a.Individual = model.NewBalance(m.starting)
		m.persistBalance(userID, key, a.Individual)
	default:
		return nil, fmt.Errorf("account: load balance for %s: %w", userID, err)
	}

	if snap, err := m.store.GetBaseline(ctx, userID, key); err == nil {
		a.Baselines[key] = snap
	}

	m.users[userID] = a
	return a, nil
}

// resolveActive returns the balance for the active context. Absent
// collection balances fall back to the individual balance (documented
// fallback, not an error). Caller must hold m.mu.
func resolveActive(a *Accounts) (*model.Balance, string) {
	if a.Active.Type == model.ContextCollection {
		if b, ok := a.Collections[a.Active.CollectionID]; ok {
			return b, a.Active.Key()
		}
	}
	return a.Individual, model.Individual().Key()
}

// SwitchContext changes the active context for a user. Switching never
// mutates any balance; for a collection not yet seen this session, the
// balance is loaded from the store or seeded lazily with the starting
// cash.
func (m *Manager) SwitchContext(ctx context.Context, userID string, tc model.TradingContext) error {
	if userID == "" {
		return engine.NotAuthenticated()
	}
	if tc.Type != model.ContextIndividual && tc.Type != model.ContextCollection {
		return errors.New("account: unknown context type " + tc.Type)
	}
	if tc.Type == model.ContextCollection && tc.CollectionID == "" {
		return errors.New("account: collection context requires collection_id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	if tc.Type == model.ContextCollection {
		if _, ok := a.Collections[tc.CollectionID]; !ok {
			key := tc.Key()
			b, err := m.store.GetBalance(ctx, userID, key)
			switch {
			case err == nil:
				a.Collections[tc.CollectionID] = b
			case errors.Is(err, store.ErrNotFound):
				b = model.NewBalance(m.starting)
				a.Collections[tc.CollectionID] = b
				m.persistBalance(userID, key, b)
			default:
				return fmt.Errorf("account: load collection balance for %s: %w", userID, err)
			}

			if snap, err := m.store.GetBaseline(ctx, userID, key); err == nil {
				a.Baselines[key] = snap
			}
		}
	}

	a.Active = tc
	slog.Info("context switched", "user", userID, "context", tc.Key())
	return nil
}

// SubmitOrder resolves the active balance for the user and executes the
// order against it. The in-memory mutation is synchronous; persistence
// of the updated balance and the completed-order record is dispatched
// detached. Returns the immutable order record and the recomputed totals.
func (m *Manager) SubmitOrder(ctx context.Context, userID string, order model.Order) (*model.CompletedOrder, ledger.Totals, error) {
	if userID == "" {
		return nil, ledger.Totals{}, engine.NotAuthenticated()
	}

	// Market order: an omitted price executes at the current book price.
	if !order.Price.IsPositive() {
		if canon, err := symbol.Parse(order.Symbol); err == nil {
			if p, ok := m.prices.Get(canon); ok {
				order.Price = p
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getOrCreate(ctx, userID)
	if err != nil {
		return nil, ledger.Totals{}, err
	}
	bal, key := resolveActive(a)

	co, err := m.exec.Execute(bal, order)
	if err != nil {
		if r := engine.AsRejection(err); r != nil {
			metrics.OrderRejections.WithLabelValues(string(r.Kind)).Inc()
		}
		return nil, ledger.Totals{}, err
	}

	co.UserID = userID
	co.ContextKey = key

	totals := ledger.Aggregate(bal)

	metrics.OrdersTotal.WithLabelValues(co.Type, co.Status).Inc()
	slog.Info("order executed",
		"order_id", co.ID,
		"user", userID,
		"context", key,
		"type", co.Type,
		"symbol", co.Symbol,
		"amount", co.Amount.String(),
		"total", co.Total.String(),
		"portfolio_value", totals.TotalPortfolioValue.String(),
	)

	m.persistBalance(userID, key, bal)
	m.persistOrder(co)

	return co, totals, nil
}

// Snapshot returns the read view of the user's active balance.
func (m *Manager) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	if userID == "" {
		return nil, engine.NotAuthenticated()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	bal, key := resolveActive(a)

	totals := ledger.Aggregate(bal)
	return &Snapshot{
		UserID:    userID,
		Context:   a.Active,
		Balance:   bal.Clone(),
		Totals:    totals,
		DayChange: ledger.ChangeSince(totals, a.Baselines[key]),
	}, nil
}

// History returns the user's completed orders, oldest first.
func (m *Manager) History(ctx context.Context, userID string) ([]model.CompletedOrder, error) {
	if userID == "" {
		return nil, engine.NotAuthenticated()
	}
	return m.store.GetOrdersByUser(ctx, userID)
}

// UpdatePrice records a market-wide price and propagates it to every
// loaded balance holding the symbol, across all users and contexts.
// Returns the canonical symbol and the number of balances touched.
func (m *Manager) UpdatePrice(sym string, p decimal.Decimal) (string, int, error) {
	canon, err := symbol.Parse(sym)
	if err != nil {
		return "", 0, err
	}
	if p.LessThanOrEqual(decimal.Zero) {
		return "", 0, errors.New("account: price must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prices.Set(canon, p)

	touched := 0
	for userID, a := range m.users {
		touched += m.repriceBalance(userID, model.Individual().Key(), a.Individual, canon, p)
		for id, b := range a.Collections {
			touched += m.repriceBalance(userID, model.Collection(id).Key(), b, canon, p)
		}
	}

	metrics.PriceUpdates.Inc()
	return canon, touched, nil
}

// repriceBalance updates one balance's view of a symbol price and
// schedules persistence if it actually holds the asset.
// Caller must hold m.mu.
func (m *Manager) repriceBalance(userID, key string, b *model.Balance, sym string, p decimal.Decimal) int {
	if _, ok := b.Holdings[sym]; !ok {
		return 0
	}
	ledger.SetCurrentPrice(b, sym, p)
	m.persistBalance(userID, key, b)
	return 1
}

// RollBaselines snapshots the current totals of every loaded balance as
// the new day-change baseline. Invoked by the daily rollover scheduler
// and by the external rollover hook. Returns the number of baselines
// taken.
func (m *Manager) RollBaselines() int {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	taken := 0
	for userID, a := range m.users {
		taken += m.rollOne(userID, model.Individual().Key(), a.Individual, a, now)
		for id, b := range a.Collections {
			taken += m.rollOne(userID, model.Collection(id).Key(), b, a, now)
		}
	}

	slog.Info("daily baselines rolled", "count", taken)
	return taken
}

// rollOne records one balance's baseline. Caller must hold m.mu.
func (m *Manager) rollOne(userID, key string, b *model.Balance, a *Accounts, now time.Time) int {
	snap := &model.BaselineSnapshot{
		UserID:              userID,
		ContextKey:          key,
		TotalPortfolioValue: ledger.Aggregate(b).TotalPortfolioValue,
		TakenAt:             now,
	}
	a.Baselines[key] = snap

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.store.SaveBaseline(ctx, snap); err != nil {
			metrics.PersistFailures.Inc()
			slog.Error("baseline persist failed", "user", userID, "context", key, "err", err)
		}
	}()
	return 1
}

// Flush blocks until all dispatched persistence tasks complete. The
// durability point for shutdown and for callers that need the last
// write to land before proceeding.
func (m *Manager) Flush() {
	m.wg.Wait()
}

// persistBalance dispatches a detached save of a balance snapshot.
// Failures are logged, never rolled back (accepted inconsistency window).
// Caller must hold m.mu.
func (m *Manager) persistBalance(userID, key string, b *model.Balance) {
	snap := b.Clone()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.store.SaveBalance(ctx, userID, key, snap); err != nil {
			metrics.PersistFailures.Inc()
			slog.Error("balance persist failed", "user", userID, "context", key, "err", err)
		}
	}()
}

// persistOrder dispatches a detached append to the trade history.
func (m *Manager) persistOrder(co *model.CompletedOrder) {
	record := *co
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.store.InsertOrder(ctx, &record); err != nil {
			metrics.PersistFailures.Inc()
			slog.Error("order persist failed", "order_id", record.ID, "err", err)
		}
	}()
}
