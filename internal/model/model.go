// Package model defines the core domain types shared across the trade engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order types.
const (
	OrderTypeBuy  = "buy"
	OrderTypeSell = "sell"
)

// Trading context types.
const (
	ContextIndividual = "individual"
	ContextCollection = "collection"
)

// Holding is a position in one asset: quantity held plus cost basis and
// the latest known market price. Value and P&L are projections computed
// on read, never stored, so they cannot drift from the inputs.
type Holding struct {
	Symbol          string          `json:"symbol"` // canonical uppercase ticker
	Name            string          `json:"name,omitempty"`
	Image           string          `json:"image,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"` // volume-weighted entry
	CurrentPrice    decimal.Decimal `json:"current_price"`
}

// ValueInUSD returns the mark-to-market value of the holding.
func (h *Holding) ValueInUSD() decimal.Decimal {
	return h.Amount.Mul(h.CurrentPrice)
}

// ProfitLoss returns unrealized P&L against the average entry price.
func (h *Holding) ProfitLoss() decimal.Decimal {
	return h.CurrentPrice.Sub(h.AverageBuyPrice).Mul(h.Amount)
}

// ProfitLossPercentage returns unrealized P&L as a percentage of the
// average entry price. Zero entry price yields 0.
func (h *Holding) ProfitLossPercentage() decimal.Decimal {
	if h.AverageBuyPrice.IsZero() {
		return decimal.Zero
	}
	return h.CurrentPrice.Sub(h.AverageBuyPrice).
		Div(h.AverageBuyPrice).
		Mul(decimal.NewFromInt(100))
}

// Balance is the full financial state for one trading context: free cash
// plus holdings. Cash is a plain field rather than a special holding so
// portfolio totals cannot double count it.
type Balance struct {
	UsdtBalance     decimal.Decimal     `json:"usdt_balance"`
	Holdings        map[string]*Holding `json:"holdings"` // canonical uppercase symbol → holding
	StartingBalance decimal.Decimal     `json:"starting_balance"`
	CreatedAt       time.Time           `json:"created_at"`
}

// NewBalance seeds a fresh balance with the given starting cash and no
// holdings. StartingBalance is the baseline for total P&L percentage.
func NewBalance(startingCash decimal.Decimal) *Balance {
	return &Balance{
		UsdtBalance:     startingCash,
		Holdings:        make(map[string]*Holding),
		StartingBalance: startingCash,
		CreatedAt:       time.Now().UTC(),
	}
}

// Clone returns a deep copy. Used to hand snapshots across the
// persistence boundary without exposing live engine state.
func (b *Balance) Clone() *Balance {
	c := *b
	c.Holdings = make(map[string]*Holding, len(b.Holdings))
	for sym, h := range b.Holdings {
		hc := *h
		c.Holdings[sym] = &hc
	}
	return &c
}

// TradingContext selects which balance an operation targets: the
// individual account or one collection. Exactly one is active per user
// session; switching never mutates either balance.
type TradingContext struct {
	Type         string `json:"type"` // "individual" or "collection"
	CollectionID string `json:"collection_id,omitempty"`
}

// Individual is the initial context for every session.
func Individual() TradingContext {
	return TradingContext{Type: ContextIndividual}
}

// Collection returns the context targeting one collection's balance.
func Collection(id string) TradingContext {
	return TradingContext{Type: ContextCollection, CollectionID: id}
}

// Key returns the storage key for the context's balance:
// "individual" or "collection:{id}".
func (c TradingContext) Key() string {
	if c.Type == ContextCollection {
		return ContextCollection + ":" + c.CollectionID
	}
	return ContextIndividual
}

// Order is a buy/sell request. Total is informational from the client;
// the executor recomputes it as amount × price.
type Order struct {
	Type   string          `json:"type"` // "buy" or "sell"
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"` // quantity, > 0
	Price  decimal.Decimal `json:"price"`  // unit price at execution
	Total  decimal.Decimal `json:"total"`
}

// CompletedOrder is an immutable record of an executed order. Once
// created these are appended to the trade history, never modified.
type CompletedOrder struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	ContextKey    string          `json:"context_key" db:"context_key"`
	Type          string          `json:"type" db:"type"`
	Symbol        string          `json:"symbol" db:"symbol"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Total         decimal.Decimal `json:"total" db:"total"`
	Status        string          `json:"status" db:"status"` // always "completed"
	ExecutedPrice decimal.Decimal `json:"executed_price" db:"executed_price"`
	ExecutedAt    time.Time       `json:"executed_at" db:"executed_at"`
	Image         string          `json:"image,omitempty" db:"image"` // display only
}

// BaselineSnapshot records a balance's total at the last daily rollover.
// Day-over-day change is computed against it.
type BaselineSnapshot struct {
	UserID              string          `json:"user_id" db:"user_id"`
	ContextKey          string          `json:"context_key" db:"context_key"`
	TotalPortfolioValue decimal.Decimal `json:"total_portfolio_value" db:"total_portfolio_value"`
	TakenAt             time.Time       `json:"taken_at" db:"taken_at"`
}
