// Package price maintains the market-wide price book: the latest known
// unit price per asset symbol, fed by the external market-data collaborator.
package price

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Book holds current market prices keyed by canonical uppercase symbol.
// Prices are market-wide: one book serves every user and context.
type Book struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewBook creates an empty price book.
func NewBook() *Book {
	return &Book{prices: make(map[string]decimal.Decimal)}
}

// Set records the latest market price for sym.
func (b *Book) Set(sym string, p decimal.Decimal) {
	b.mu.Lock()
	b.prices[sym] = p
	b.mu.Unlock()
}

// Get returns the latest price for sym and whether one is known.
func (b *Book) Get(sym string) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.prices[sym]
	return p, ok
}

// All returns a copy of the current price table.
func (b *Book) All() map[string]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(b.prices))
	for sym, p := range b.prices {
		out[sym] = p
	}
	return out
}
