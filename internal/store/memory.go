package store

import (
	"context"
	"sort"
	"sync"

	"github.com/coinsim/trade-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	balances  map[string]*model.Balance          // userID|contextKey
	orders    []model.CompletedOrder
	baselines map[string]*model.BaselineSnapshot // userID|contextKey
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:  make(map[string]*model.Balance),
		baselines: make(map[string]*model.BaselineSnapshot),
	}
}

func balanceKey(userID, contextKey string) string {
	return userID + "|" + contextKey
}

func (s *MemoryStore) SaveBalance(_ context.Context, userID, contextKey string, b *model.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.balances[balanceKey(userID, contextKey)] = b.Clone()
	return nil
}

func (s *MemoryStore) GetBalance(_ context.Context, userID, contextKey string) (*model.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[balanceKey(userID, contextKey)]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (s *MemoryStore) InsertOrder(_ context.Context, o *model.CompletedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = append(s.orders, *o)
	return nil
}

func (s *MemoryStore) GetOrdersByUser(_ context.Context, userID string) ([]model.CompletedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.CompletedOrder
	for _, o := range s.orders {
		if o.UserID == userID {
			result = append(result, o)
		}
	}
	// Detached persistence gives no insertion-order guarantee; sort by
	// execution time to honor the oldest-first contract.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ExecutedAt.Before(result[j].ExecutedAt)
	})
	return result, nil
}

func (s *MemoryStore) SaveBaseline(_ context.Context, snap *model.BaselineSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *snap
	s.baselines[balanceKey(snap.UserID, snap.ContextKey)] = &copy
	return nil
}

func (s *MemoryStore) GetBaseline(_ context.Context, userID, contextKey string) (*model.BaselineSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.baselines[balanceKey(userID, contextKey)]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *snap
	return &copy, nil
}
