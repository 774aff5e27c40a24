package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinsim/trade-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh or invalidate the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh/invalidate cache) ---

func (s *CachedStore) SaveBalance(ctx context.Context, userID, contextKey string, b *model.Balance) error {
	if err := s.primary.SaveBalance(ctx, userID, contextKey, b); err != nil {
		return err
	}
	s.cacheBalance(ctx, userID, contextKey, b)
	return nil
}

func (s *CachedStore) InsertOrder(ctx context.Context, o *model.CompletedOrder) error {
	if err := s.primary.InsertOrder(ctx, o); err != nil {
		return err
	}
	// Invalidate history cache; next read re-populates.
	s.rdb.Del(ctx, ordersKey(o.UserID))
	return nil
}

func (s *CachedStore) SaveBaseline(ctx context.Context, snap *model.BaselineSnapshot) error {
	if err := s.primary.SaveBaseline(ctx, snap); err != nil {
		return err
	}
	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, baselineKey(snap.UserID, snap.ContextKey), data, s.ttl)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetBalance(ctx context.Context, userID, contextKey string) (*model.Balance, error) {
	data, err := s.rdb.Get(ctx, cacheBalanceKey(userID, contextKey)).Bytes()
	if err == nil {
		var b model.Balance
		if json.Unmarshal(data, &b) == nil {
			return &b, nil
		}
	}

	// Cache miss: read from primary.
	b, err := s.primary.GetBalance(ctx, userID, contextKey)
	if err != nil {
		return nil, err
	}

	s.cacheBalance(ctx, userID, contextKey, b)
	return b, nil
}

func (s *CachedStore) GetOrdersByUser(ctx context.Context, userID string) ([]model.CompletedOrder, error) {
	data, err := s.rdb.Get(ctx, ordersKey(userID)).Bytes()
	if err == nil {
		var orders []model.CompletedOrder
		if json.Unmarshal(data, &orders) == nil {
			return orders, nil
		}
	}

	// Cache miss.
	orders, err := s.primary.GetOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(orders); err == nil {
		s.rdb.Set(ctx, ordersKey(userID), data, s.ttl)
	}
	return orders, nil
}

func (s *CachedStore) GetBaseline(ctx context.Context, userID, contextKey string) (*model.BaselineSnapshot, error) {
	data, err := s.rdb.Get(ctx, baselineKey(userID, contextKey)).Bytes()
	if err == nil {
		var snap model.BaselineSnapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	snap, err := s.primary.GetBaseline(ctx, userID, contextKey)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, baselineKey(userID, contextKey), data, s.ttl)
	}
	return snap, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheBalance(ctx context.Context, userID, contextKey string, b *model.Balance) {
	if data, err := json.Marshal(b); err == nil {
		s.rdb.Set(ctx, cacheBalanceKey(userID, contextKey), data, s.ttl)
	}
}

func cacheBalanceKey(uid, ck string) string { return fmt.Sprintf("balance:%s:%s", uid, ck) }
func ordersKey(uid string) string           { return fmt.Sprintf("orders:%s", uid) }
func baselineKey(uid, ck string) string     { return fmt.Sprintf("baseline:%s:%s", uid, ck) }
