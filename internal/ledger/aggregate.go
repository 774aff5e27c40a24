package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/coinsim/trade-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Totals is the aggregated view of one balance. All fields are derived;
// callers must not treat them as authoritative state.
type Totals struct {
	TotalPortfolioValue decimal.Decimal `json:"total_portfolio_value"`
	TotalPnL            decimal.Decimal `json:"total_pnl"`
	TotalPnLPercentage  decimal.Decimal `json:"total_pnl_percentage"`
}

// DayChange compares current totals to the last daily rollover baseline.
type DayChange struct {
	ChangeValue      decimal.Decimal `json:"change_value"`
	ChangePercentage decimal.Decimal `json:"change_percentage"`
}

// Aggregate computes portfolio totals from cash plus holdings. Pure
// function: calling it twice on an unchanged balance yields identical
// results. Cash is counted once via UsdtBalance; holdings are summed at
// their current market price.
func Aggregate(b *model.Balance) Totals {
	total := b.UsdtBalance
	for _, h := range b.Holdings {
		total = total.Add(h.ValueInUSD())
	}

	pnl := total.Sub(b.StartingBalance)

	pct := decimal.Zero
	if !b.StartingBalance.IsZero() {
		pct = pnl.Div(b.StartingBalance).Mul(hundred)
	}

	return Totals{
		TotalPortfolioValue: total,
		TotalPnL:            pnl,
		TotalPnLPercentage:  pct,
	}
}

// ChangeSince computes day-over-day change against a rollover baseline.
// A nil or zero-valued baseline yields zero change.
func ChangeSince(t Totals, baseline *model.BaselineSnapshot) DayChange {
	if baseline == nil || baseline.TotalPortfolioValue.IsZero() {
		return DayChange{ChangeValue: decimal.Zero, ChangePercentage: decimal.Zero}
	}

	delta := t.TotalPortfolioValue.Sub(baseline.TotalPortfolioValue)
	return DayChange{
		ChangeValue:      delta,
		ChangePercentage: delta.Div(baseline.TotalPortfolioValue).Mul(hundred),
	}
}
