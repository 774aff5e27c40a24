package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coinsim/trade-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary scalars are stored as NUMERIC for exact decimal precision;
// the holdings map is stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SaveBalance(ctx context.Context, userID, contextKey string, b *model.Balance) error {
	holdings, err := json.Marshal(b.Holdings)
	if err != nil {
		return fmt.Errorf("marshal holdings: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO balances (user_id, context_key, usdt_balance, holdings, starting_balance, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4::JSONB, $5::NUMERIC, $6)
		 ON CONFLICT (user_id, context_key)
		 DO UPDATE SET usdt_balance = EXCLUDED.usdt_balance,
		               holdings = EXCLUDED.holdings`,
		userID, contextKey,
		b.UsdtBalance.String(), holdings, b.StartingBalance.String(),
		b.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetBalance(ctx context.Context, userID, contextKey string) (*model.Balance, error) {
	var b model.Balance
	var usdt, starting string
	var holdings []byte

	err := s.pool.QueryRow(ctx,
		`SELECT usdt_balance::TEXT, holdings, starting_balance::TEXT, created_at
		 FROM balances WHERE user_id = $1 AND context_key = $2`,
		userID, contextKey).
		Scan(&usdt, &holdings, &starting, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get balance %s/%s: %w", userID, contextKey, err)
	}

	b.UsdtBalance, _ = decimal.NewFromString(usdt)
	b.StartingBalance, _ = decimal.NewFromString(starting)

	b.Holdings = make(map[string]*model.Holding)
	if err := json.Unmarshal(holdings, &b.Holdings); err != nil {
		return nil, fmt.Errorf("unmarshal holdings %s/%s: %w", userID, contextKey, err)
	}

	return &b, nil
}

func (s *PostgresStore) InsertOrder(ctx context.Context, o *model.CompletedOrder) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, user_id, context_key, type, symbol, amount, total, status, executed_price, executed_at, image)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9::NUMERIC, $10, $11)`,
		o.ID, o.UserID, o.ContextKey, o.Type, o.Symbol,
		o.Amount.String(), o.Total.String(), o.Status,
		o.ExecutedPrice.String(), o.ExecutedAt, o.Image,
	)
	return err
}

func (s *PostgresStore) GetOrdersByUser(ctx context.Context, userID string) ([]model.CompletedOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, context_key, type, symbol,
		        amount::TEXT, total::TEXT, status, executed_price::TEXT, executed_at, image
		 FROM orders WHERE user_id = $1 ORDER BY executed_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.CompletedOrder
	for rows.Next() {
		var o model.CompletedOrder
		var amountS, totalS, priceS string

		if err := rows.Scan(&o.ID, &o.UserID, &o.ContextKey, &o.Type, &o.Symbol,
			&amountS, &totalS, &o.Status, &priceS, &o.ExecutedAt, &o.Image); err != nil {
			return nil, err
		}

		o.Amount, _ = decimal.NewFromString(amountS)
		o.Total, _ = decimal.NewFromString(totalS)
		o.ExecutedPrice, _ = decimal.NewFromString(priceS)

		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) SaveBaseline(ctx context.Context, snap *model.BaselineSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO baselines (user_id, context_key, total_portfolio_value, taken_at)
		 VALUES ($1, $2, $3::NUMERIC, $4)
		 ON CONFLICT (user_id, context_key)
		 DO UPDATE SET total_portfolio_value = EXCLUDED.total_portfolio_value,
		               taken_at = EXCLUDED.taken_at`,
		snap.UserID, snap.ContextKey, snap.TotalPortfolioValue.String(), snap.TakenAt,
	)
	return err
}

func (s *PostgresStore) GetBaseline(ctx context.Context, userID, contextKey string) (*model.BaselineSnapshot, error) {
	var snap model.BaselineSnapshot
	var totalS string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, context_key, total_portfolio_value::TEXT, taken_at
		 FROM baselines WHERE user_id = $1 AND context_key = $2`,
		userID, contextKey).
		Scan(&snap.UserID, &snap.ContextKey, &totalS, &snap.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get baseline %s/%s: %w", userID, contextKey, err)
	}

	snap.TotalPortfolioValue, _ = decimal.NewFromString(totalS)
	return &snap, nil
}
