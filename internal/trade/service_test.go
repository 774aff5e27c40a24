package trade_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/coinsim/trade-engine/internal/account"
	"github.com/coinsim/trade-engine/internal/engine"
	"github.com/coinsim/trade-engine/internal/model"
	"github.com/coinsim/trade-engine/internal/price"
	"github.com/coinsim/trade-engine/internal/store"
	"github.com/coinsim/trade-engine/internal/trade"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*account.Manager, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	exec := engine.NewExecutor(d(0.1))
	book := price.NewBook()
	accounts := account.NewManager(ms, exec, book, d(100000))
	svc := trade.NewService(accounts, book, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/orders", svc.SubmitOrder)
	r.Get("/api/v1/orders/{userID}", svc.GetHistory)
	r.Get("/api/v1/balance/{userID}", svc.GetBalance)
	r.Get("/api/v1/balance/{userID}/holdings", svc.GetHoldings)
	r.Post("/api/v1/context", svc.SwitchContext)
	r.Post("/api/v1/prices", svc.UpdatePrice)
	r.Post("/api/v1/rollover", svc.Rollover)

	return accounts, r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func submitOrder(t *testing.T, router chi.Router, req trade.OrderRequest) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, "POST", "/api/v1/orders", req)
}

// --- Order submission ---

func TestSubmitOrder_Buy(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(1), Price: d(50000),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp trade.OrderResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Order.ID == "" {
		t.Error("expected non-empty order id")
	}
	if resp.Order.Status != "completed" {
		t.Errorf("expected status=completed, got %s", resp.Order.Status)
	}
	if !resp.Order.Total.Equal(d(50000)) {
		t.Errorf("expected total=50000, got %s", resp.Order.Total)
	}
	if !resp.Totals.TotalPortfolioValue.Equal(d(100000)) {
		t.Errorf("expected portfolio=100000, got %s", resp.Totals.TotalPortfolioValue)
	}
}

func TestSubmitOrder_InsufficientCash(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(10), Price: d(50000),
	})

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for insufficient cash, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitOrder_InsufficientHolding(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "sell", Symbol: "BTC", Amount: d(1), Price: d(50000),
	})

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for unheld sell, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitOrder_BelowMinimum(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(0.01), Price: d(50000),
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for below-minimum, got %d", w.Code)
	}
}

func TestSubmitOrder_InvalidSymbol(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "no such coin", Amount: d(1), Price: d(10),
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid symbol, got %d", w.Code)
	}
}

func TestSubmitOrder_Unauthenticated(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		Type: "buy", Symbol: "BTC", Amount: d(1), Price: d(50000),
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing user, got %d", w.Code)
	}
}

func TestSubmitOrder_InvalidType(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "hold", Symbol: "BTC", Amount: d(1), Price: d(50000),
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid type, got %d", w.Code)
	}
}

// --- Context routing ---

func TestSwitchContext_RoutesOrders(t *testing.T) {
	_, router := newTestEnv(t)

	// Trade individually.
	submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(1), Price: d(50000),
	})

	// Switch to collection c1.
	w := doJSON(t, router, "POST", "/api/v1/context", trade.ContextRequest{
		UserID: "user1", Type: "collection", CollectionID: "c1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("switch failed: %d %s", w.Code, w.Body.String())
	}

	// The collection balance is fresh: an oversized sell is rejected there.
	w = submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "sell", Symbol: "BTC", Amount: d(0.5), Price: d(50000),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 selling BTC in fresh collection, got %d", w.Code)
	}

	// Balance endpoint reflects the active collection context.
	w = doJSON(t, router, "GET", "/api/v1/balance/user1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance failed: %d", w.Code)
	}
	var snap account.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.Context.Key() != "collection:c1" {
		t.Errorf("expected collection:c1, got %s", snap.Context.Key())
	}
	if len(snap.Balance.Holdings) != 0 {
		t.Errorf("fresh collection should hold nothing, got %d holdings", len(snap.Balance.Holdings))
	}
}

func TestSwitchContext_InvalidType(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/context", trade.ContextRequest{
		UserID: "user1", Type: "guild", CollectionID: "c1",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown context type, got %d", w.Code)
	}
}

// --- Balance and holdings reads ---

func TestGetHoldings_DerivedFields(t *testing.T) {
	_, router := newTestEnv(t)

	submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(2), Price: d(50000),
	})
	doJSON(t, router, "POST", "/api/v1/prices", trade.PriceRequest{Symbol: "BTC", Price: d(60000)})

	w := doJSON(t, router, "GET", "/api/v1/balance/user1/holdings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("holdings failed: %d", w.Code)
	}

	var holdings []trade.HoldingView
	json.Unmarshal(w.Body.Bytes(), &holdings)

	if len(holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(holdings))
	}
	h := holdings[0]
	if h.Symbol != "BTC" {
		t.Errorf("expected BTC, got %s", h.Symbol)
	}
	if !h.ValueInUSD.Equal(d(120000)) {
		t.Errorf("expected value=120000, got %s", h.ValueInUSD)
	}
	if !h.ProfitLoss.Equal(d(20000)) {
		t.Errorf("expected pnl=20000, got %s", h.ProfitLoss)
	}
	if !h.ProfitLossPercentage.Equal(d(20)) {
		t.Errorf("expected pnl pct=20, got %s", h.ProfitLossPercentage)
	}
}

func TestGetBalance_Empty(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/balance/newuser", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snap account.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if !snap.Balance.UsdtBalance.Equal(d(100000)) {
		t.Errorf("fresh balance should seed 100000, got %s", snap.Balance.UsdtBalance)
	}
	if !snap.Totals.TotalPnL.IsZero() {
		t.Errorf("fresh balance pnl should be 0, got %s", snap.Totals.TotalPnL)
	}
}

func TestSubmitOrder_MarketOrderFillsFromBook(t *testing.T) {
	_, router := newTestEnv(t)

	doJSON(t, router, "POST", "/api/v1/prices", trade.PriceRequest{Symbol: "BTC", Price: d(50000)})

	// No price in the request: the book quote fills it.
	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(1),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var resp trade.OrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Order.ExecutedPrice.Equal(d(50000)) {
		t.Errorf("executed price=%s, want book price 50000", resp.Order.ExecutedPrice)
	}
}

func TestSubmitOrder_MarketOrderWithoutQuote(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "ETH", Amount: d(1),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for market order with no quote, got %d", w.Code)
	}
}

func TestSubmitOrder_NegativePrice(t *testing.T) {
	_, router := newTestEnv(t)

	w := submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(1), Price: d(-5),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative price, got %d", w.Code)
	}
}

// --- Price feed ---

func TestUpdatePrice_InvalidPrice(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/prices", trade.PriceRequest{Symbol: "BTC", Price: d(-1)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative price, got %d", w.Code)
	}
}

// --- History and rollover ---

func TestGetHistory(t *testing.T) {
	accounts, router := newTestEnv(t)

	submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(1), Price: d(50000),
	})
	submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "sell", Symbol: "BTC", Amount: d(0.5), Price: d(60000),
	})
	accounts.Flush()

	w := doJSON(t, router, "GET", "/api/v1/orders/user1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history failed: %d", w.Code)
	}

	var orders []model.CompletedOrder
	json.Unmarshal(w.Body.Bytes(), &orders)
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].Type != "buy" || orders[1].Type != "sell" {
		t.Errorf("unexpected order types: %s, %s", orders[0].Type, orders[1].Type)
	}
}

func TestGetHistory_Empty(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/orders/nobody", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var orders []model.CompletedOrder
	json.Unmarshal(w.Body.Bytes(), &orders)
	if len(orders) != 0 {
		t.Errorf("expected 0 orders, got %d", len(orders))
	}
}

func TestRollover_SetsDayChangeBaseline(t *testing.T) {
	_, router := newTestEnv(t)

	submitOrder(t, router, trade.OrderRequest{
		UserID: "user1", Type: "buy", Symbol: "BTC", Amount: d(1), Price: d(50000),
	})

	w := doJSON(t, router, "POST", "/api/v1/rollover", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rollover failed: %d", w.Code)
	}
	var resp map[string]int
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["baselines"] != 1 {
		t.Errorf("expected 1 baseline, got %d", resp["baselines"])
	}

	// Price moves after the rollover; day change reflects it.
	doJSON(t, router, "POST", "/api/v1/prices", trade.PriceRequest{Symbol: "BTC", Price: d(55000)})

	w = doJSON(t, router, "GET", "/api/v1/balance/user1", nil)
	var snap account.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snap)

	if !snap.DayChange.ChangeValue.Equal(d(5000)) {
		t.Errorf("expected day change=5000, got %s", snap.DayChange.ChangeValue)
	}
	if !snap.DayChange.ChangePercentage.Equal(d(5)) {
		t.Errorf("expected day change pct=5, got %s", snap.DayChange.ChangePercentage)
	}
}
