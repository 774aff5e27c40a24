// Package store defines the persistence interface for the trade engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/coinsim/trade-engine/internal/model"
)

// ErrNotFound distinguishes absence from failure. First-time balance and
// baseline reads are expected to miss.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Writes are dispatched by the
// account manager after the in-memory mutation (optimistic persistence).
type Store interface {
	// --- Balances (one per user per trading context) ---

	// SaveBalance upserts the balance snapshot for one context.
	SaveBalance(ctx context.Context, userID, contextKey string, b *model.Balance) error

	// GetBalance retrieves a balance snapshot, or ErrNotFound.
	GetBalance(ctx context.Context, userID, contextKey string) (*model.Balance, error)

	// --- Immutable trade history ---

	// InsertOrder appends a completed-order record.
	InsertOrder(ctx context.Context, o *model.CompletedOrder) error

	// GetOrdersByUser returns all completed orders for a user, oldest first.
	GetOrdersByUser(ctx context.Context, userID string) ([]model.CompletedOrder, error)

	// --- Daily rollover baselines ---

	// SaveBaseline upserts the day-change baseline for one context.
	SaveBaseline(ctx context.Context, s *model.BaselineSnapshot) error

	// GetBaseline retrieves the current baseline, or ErrNotFound.
	GetBaseline(ctx context.Context, userID, contextKey string) (*model.BaselineSnapshot, error)
}
