// Package ledger implements the holding ledger and balance aggregation:
// per-symbol position bookkeeping with volume-weighted cost basis, and
// pure derivations of portfolio totals and day-over-day change.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/coinsim/trade-engine/internal/model"
)

// Apply adjusts the holding for sym by amountDelta at unitPrice.
//
// Acquiring (amountDelta > 0) recomputes the volume-weighted average
// entry price:
//
//	newAvg = (oldAmount*oldAvg + delta*unitPrice) / (oldAmount + delta)
//
// A holding previously sold down to exactly zero keeps its stale average,
// but the formula resets it naturally on the next acquire because
// oldAmount is zero.
//
// Disposing (amountDelta < 0) leaves the average untouched; only
// unrealized P&L against the current average is recomputed on read.
// The executor enforces that disposals never exceed the held amount,
// not the ledger.
func Apply(b *model.Balance, sym string, amountDelta, unitPrice decimal.Decimal) {
	h, ok := b.Holdings[sym]
	if !ok {
		h = &model.Holding{Symbol: sym}
		b.Holdings[sym] = h
	}

	if amountDelta.IsPositive() {
		newAmount := h.Amount.Add(amountDelta)
		oldCost := h.Amount.Mul(h.AverageBuyPrice)
		addedCost := amountDelta.Mul(unitPrice)
		h.AverageBuyPrice = oldCost.Add(addedCost).Div(newAmount)
		h.Amount = newAmount
	} else {
		h.Amount = h.Amount.Add(amountDelta)
	}

	// Trades happen at the latest market price.
	h.CurrentPrice = unitPrice
}

// SetCurrentPrice updates the market price of sym, independent of any
// trade. No-op if the symbol is not held.
func SetCurrentPrice(b *model.Balance, sym string, price decimal.Decimal) {
	if h, ok := b.Holdings[sym]; ok {
		h.CurrentPrice = price
	}
}
