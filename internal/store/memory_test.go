package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/coinsim/trade-engine/internal/model"
	"github.com/coinsim/trade-engine/internal/store"
)

func TestGetOrdersByUser_OldestFirst(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	second := model.CompletedOrder{ID: "o2", UserID: "u1", Symbol: "BTC", ExecutedAt: base.Add(time.Second)}
	first := model.CompletedOrder{ID: "o1", UserID: "u1", Symbol: "BTC", ExecutedAt: base}
	other := model.CompletedOrder{ID: "o3", UserID: "u2", Symbol: "ETH", ExecutedAt: base}

	// Writes land out of order; reads must still be oldest first.
	for _, o := range []model.CompletedOrder{second, other, first} {
		o := o
		if err := ms.InsertOrder(ctx, &o); err != nil {
			t.Fatalf("insert %s failed: %v", o.ID, err)
		}
	}

	orders, err := ms.GetOrdersByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders for u1, got %d", len(orders))
	}
	if orders[0].ID != "o1" || orders[1].ID != "o2" {
		t.Errorf("expected oldest first [o1 o2], got [%s %s]", orders[0].ID, orders[1].ID)
	}
}
