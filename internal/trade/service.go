// Package trade provides the HTTP handlers for order submission, balance
// and holdings reads, context switching, price feed ingestion, trade
// history, and the daily rollover hook.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/coinsim/trade-engine/internal/account"
	"github.com/coinsim/trade-engine/internal/engine"
	"github.com/coinsim/trade-engine/internal/ledger"
	"github.com/coinsim/trade-engine/internal/metrics"
	"github.com/coinsim/trade-engine/internal/model"
	"github.com/coinsim/trade-engine/internal/price"
)

// Service handles the trade-engine API. All engine state lives in the
// injected account.Manager; handlers hold no balance references of
// their own.
type Service struct {
	accounts *account.Manager
	prices   *price.Book
	wsHub    *WSHub // optional WebSocket hub for notifications
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket notifications are not needed.
func NewService(accounts *account.Manager, book *price.Book, hub *WSHub) *Service {
	return &Service{
		accounts: accounts,
		prices:   book,
		wsHub:    hub,
	}
}

// --- Request/Response types ---

// OrderRequest is the JSON body for POST /orders.
type OrderRequest struct {
	UserID string          `json:"user_id"`
	Type   string          `json:"type"` // "buy" or "sell"
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
	Total  decimal.Decimal `json:"total"` // informational; recomputed server-side
}

// OrderResponse is returned from POST /orders.
type OrderResponse struct {
	Order  *model.CompletedOrder `json:"order"`
	Totals ledger.Totals         `json:"totals"`
}

// ContextRequest is the JSON body for POST /context.
type ContextRequest struct {
	UserID       string `json:"user_id"`
	Type         string `json:"type"` // "individual" or "collection"
	CollectionID string `json:"collection_id,omitempty"`
}

// PriceRequest is the JSON body for POST /prices.
type PriceRequest struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// HoldingView is one holding with its derived fields materialized for
// the response.
type HoldingView struct {
	Symbol               string          `json:"symbol"`
	Name                 string          `json:"name,omitempty"`
	Image                string          `json:"image,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	AverageBuyPrice      decimal.Decimal `json:"average_buy_price"`
	CurrentPrice         decimal.Decimal `json:"current_price"`
	ValueInUSD           decimal.Decimal `json:"value_in_usd"`
	ProfitLoss           decimal.Decimal `json:"profit_loss"`
	ProfitLossPercentage decimal.Decimal `json:"profit_loss_percentage"`
}

// --- HTTP Handlers ---

// SubmitOrder handles POST /api/v1/orders
// Executes a buy/sell against the user's active-context balance.
func (s *Service) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Type != model.OrderTypeBuy && req.Type != model.OrderTypeSell {
		writeError(w, "type must be buy or sell", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	// An omitted price means a market order; the engine fills it from
	// the price book. Negative prices are never meaningful.
	if req.Price.IsNegative() {
		writeError(w, "price cannot be negative", http.StatusBadRequest)
		return
	}

	start := time.Now()
	co, totals, err := s.accounts.SubmitOrder(r.Context(), req.UserID, model.Order{
		Type:   req.Type,
		Symbol: req.Symbol,
		Amount: req.Amount,
		Price:  req.Price,
		Total:  req.Total,
	})
	if err != nil {
		s.rejectOrder(w, req, err)
		return
	}
	metrics.OrderLatency.WithLabelValues(co.Type).Observe(time.Since(start).Seconds())

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    NotifySuccess,
			Event:   "order_executed",
			Message: co.Type + " " + co.Amount.String() + " " + co.Symbol + " completed",
			UserID:  co.UserID,
			Symbol:  co.Symbol,
			Price:   co.ExecutedPrice.String(),
			OrderID: co.ID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(OrderResponse{Order: co, Totals: totals})
}

// rejectOrder maps an order failure to its HTTP status and broadcasts
// the advisory error notification.
func (s *Service) rejectOrder(w http.ResponseWriter, req OrderRequest, err error) {
	rej := engine.AsRejection(err)
	if rej == nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusBadRequest
	switch rej.Kind {
	case engine.KindInsufficientHolding, engine.KindInsufficientCash, engine.KindPositionLimit:
		status = http.StatusConflict
	case engine.KindNotAuthenticated:
		status = http.StatusUnauthorized
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    NotifyError,
			Event:   "order_rejected",
			Message: rej.UserMessage,
			UserID:  req.UserID,
			Symbol:  req.Symbol,
		})
	}

	writeError(w, rej.UserMessage, status)
}

// GetBalance handles GET /api/v1/balance/{userID}
// Returns the active-context balance with totals and day change.
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	snap, err := s.accounts.Snapshot(r.Context(), userID)
	if err != nil {
		if rej := engine.AsRejection(err); rej != nil {
			writeError(w, rej.UserMessage, http.StatusUnauthorized)
			return
		}
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// GetHoldings handles GET /api/v1/balance/{userID}/holdings
// Returns the active-context holdings with derived P&L, sorted by value.
func (s *Service) GetHoldings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	snap, err := s.accounts.Snapshot(r.Context(), userID)
	if err != nil {
		if rej := engine.AsRejection(err); rej != nil {
			writeError(w, rej.UserMessage, http.StatusUnauthorized)
			return
		}
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}

	holdings := make([]HoldingView, 0, len(snap.Balance.Holdings))
	for _, h := range snap.Balance.Holdings {
		holdings = append(holdings, HoldingView{
			Symbol:               h.Symbol,
			Name:                 h.Name,
			Image:                h.Image,
			Amount:               h.Amount,
			AverageBuyPrice:      h.AverageBuyPrice,
			CurrentPrice:         h.CurrentPrice,
			ValueInUSD:           h.ValueInUSD(),
			ProfitLoss:           h.ProfitLoss(),
			ProfitLossPercentage: h.ProfitLossPercentage(),
		})
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].ValueInUSD.GreaterThan(holdings[j].ValueInUSD)
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(holdings)
}

// SwitchContext handles POST /api/v1/context
// Changes the user's active trading context.
func (s *Service) SwitchContext(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tc := model.TradingContext{Type: req.Type, CollectionID: req.CollectionID}
	if err := s.accounts.SwitchContext(r.Context(), req.UserID, tc); err != nil {
		if rej := engine.AsRejection(err); rej != nil {
			writeError(w, rej.UserMessage, http.StatusUnauthorized)
			return
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"active_context": tc.Key()})
}

// UpdatePrice handles POST /api/v1/prices
// Ingests one market price update from the price-feed collaborator.
func (s *Service) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, touched, err := s.accounts.UpdatePrice(req.Symbol, req.Price)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    NotifyInfo,
			Event:   "price_update",
			Message: sym + " @ " + req.Price.String(),
			Symbol:  sym,
			Price:   req.Price.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"symbol":           sym,
		"price":            req.Price,
		"balances_updated": touched,
	})
}

// ListPrices handles GET /api/v1/prices
// Returns the current market price table.
func (s *Service) ListPrices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.prices.All())
}

// GetHistory handles GET /api/v1/orders/{userID}
// Returns the user's completed orders, oldest first.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	orders, err := s.accounts.History(r.Context(), userID)
	if err != nil {
		if rej := engine.AsRejection(err); rej != nil {
			writeError(w, rej.UserMessage, http.StatusUnauthorized)
			return
		}
		writeError(w, "failed to load trade history", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []model.CompletedOrder{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// Rollover handles POST /api/v1/rollover
// External scheduler hook: snapshots current totals as the new
// day-change baselines.
func (s *Service) Rollover(w http.ResponseWriter, r *http.Request) {
	count := s.accounts.RollBaselines()
	metrics.BaselineRollovers.Inc()

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    NotifyInfo,
			Event:   "baselines_rolled",
			Message: "daily balance baselines updated",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"baselines": count})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
