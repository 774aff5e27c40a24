// Package engine implements the trade executor: validation and atomic
// application of a single buy/sell order against one balance.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coinsim/trade-engine/internal/ledger"
	"github.com/coinsim/trade-engine/internal/model"
	"github.com/coinsim/trade-engine/internal/symbol"
)

// DefaultMinOrderAmount is the minimum order quantity when none is
// configured.
var DefaultMinOrderAmount = decimal.RequireFromString("0.1")

// Executor validates and applies orders. Validation runs to completion
// before any mutation, so a rejected order leaves the balance untouched
// and a successful one applies both legs as a single unit.
type Executor struct {
	// MinAmount is the minimum order quantity.
	MinAmount decimal.Decimal

	// MaxPositionValue caps a single holding's notional (amount × price)
	// after a buy. Zero means unlimited.
	MaxPositionValue decimal.Decimal
}

// NewExecutor creates an executor with the given minimum order quantity.
// Non-positive minAmount falls back to DefaultMinOrderAmount.
func NewExecutor(minAmount decimal.Decimal) *Executor {
	if minAmount.LessThanOrEqual(decimal.Zero) {
		minAmount = DefaultMinOrderAmount
	}
	return &Executor{MinAmount: minAmount}
}

// Execute validates order against b and, on success, applies the holding
// leg and the cash leg and returns the immutable completed-order record.
// The first failing check wins; failures are *Rejection values and leave
// b unchanged. Total is recomputed as amount × price — the client-supplied
// field is informational only.
func (e *Executor) Execute(b *model.Balance, order model.Order) (*model.CompletedOrder, error) {
	// 1. Symbol must resolve to a canonical ticker.
	sym, err := symbol.Parse(order.Symbol)
	if err != nil {
		return nil, reject(KindInvalidSymbol,
			"Unknown asset. Check the symbol and try again.",
			"unresolvable symbol %q", order.Symbol)
	}

	// 2. Minimum order size.
	if order.Amount.LessThan(e.MinAmount) {
		return nil, reject(KindBelowMinimum,
			"Order amount is below the minimum of "+e.MinAmount.String()+".",
			"amount %s below minimum %s", order.Amount, e.MinAmount)
	}

	// 3. Price must be positive to form a valid notional; a zero or
	// negative price would corrupt the cost basis.
	if !order.Price.IsPositive() {
		return nil, reject(KindInvalidOrder,
			"Order price must be positive.",
			"non-positive price %s", order.Price)
	}

	total := order.Amount.Mul(order.Price)

	switch order.Type {
	case model.OrderTypeSell:
		// 4. Must hold enough of the asset to dispose.
		h, ok := b.Holdings[sym]
		if !ok || h.Amount.LessThan(order.Amount) {
			held := decimal.Zero
			if ok {
				held = h.Amount
			}
			return nil, reject(KindInsufficientHolding,
				"You don't hold enough "+sym+" for this sale.",
				"sell %s %s exceeds held %s", order.Amount, sym, held)
		}

		ledger.Apply(b, sym, order.Amount.Neg(), order.Price)
		b.UsdtBalance = b.UsdtBalance.Add(total)

	case model.OrderTypeBuy:
		// 5. Cash must cover the purchase.
		if b.UsdtBalance.LessThan(total) {
			return nil, reject(KindInsufficientCash,
				"Insufficient USDT balance for this purchase.",
				"buy total %s exceeds cash %s", total, b.UsdtBalance)
		}

		// Optional pre-trade cap on single-position notional.
		if e.MaxPositionValue.IsPositive() {
			notional := total
			if h, ok := b.Holdings[sym]; ok {
				notional = notional.Add(h.Amount.Mul(order.Price))
			}
			if notional.GreaterThan(e.MaxPositionValue) {
				return nil, reject(KindPositionLimit,
					"This order would exceed the maximum position size for "+sym+".",
					"position notional %s exceeds cap %s", notional, e.MaxPositionValue)
			}
		}

		ledger.Apply(b, sym, order.Amount, order.Price)
		b.UsdtBalance = b.UsdtBalance.Sub(total)

	default:
		return nil, reject(KindInvalidOrder,
			"Unsupported order type.",
			"order type %q is not buy or sell", order.Type)
	}

	return &model.CompletedOrder{
		ID:            uuid.New().String(),
		Type:          order.Type,
		Symbol:        sym,
		Amount:        order.Amount,
		Total:         total,
		Status:        "completed",
		ExecutedPrice: order.Price,
		ExecutedAt:    time.Now().UTC(),
	}, nil
}
