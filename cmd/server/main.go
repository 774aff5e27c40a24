package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/coinsim/trade-engine/internal/account"
	"github.com/coinsim/trade-engine/internal/engine"
	"github.com/coinsim/trade-engine/internal/metrics"
	"github.com/coinsim/trade-engine/internal/price"
	"github.com/coinsim/trade-engine/internal/rollover"
	"github.com/coinsim/trade-engine/internal/store"
	"github.com/coinsim/trade-engine/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Engine configuration ---
	startingBalance := decimalEnv("STARTING_BALANCE", account.DefaultStartingBalance)
	minOrderAmount := decimalEnv("MIN_ORDER_AMOUNT", engine.DefaultMinOrderAmount)

	exec := engine.NewExecutor(minOrderAmount)
	book := price.NewBook()
	accounts := account.NewManager(st, exec, book, startingBalance)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Daily rollover scheduler ---
	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	sched := rollover.NewScheduler(time.Local)
	go sched.Run(schedCtx, func() {
		accounts.RollBaselines()
		metrics.BaselineRollovers.Inc()
	})

	// --- Trade service ---
	tradeSvc := trade.NewService(accounts, book, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for app cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"trade-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time notifications.
		r.Get("/ws", wsHub.HandleWS)

		// Order submission and history.
		r.Post("/orders", tradeSvc.SubmitOrder)
		r.Get("/orders/{userID}", tradeSvc.GetHistory)

		// Balance and holdings reads.
		r.Get("/balance/{userID}", tradeSvc.GetBalance)
		r.Get("/balance/{userID}/holdings", tradeSvc.GetHoldings)

		// Trading context.
		r.Post("/context", tradeSvc.SwitchContext)

		// Market price feed.
		r.Get("/prices", tradeSvc.ListPrices)
		r.Post("/prices", tradeSvc.UpdatePrice)

		// Daily rollover hook for external schedulers.
		r.Post("/rollover", tradeSvc.Rollover)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trade-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trade-engine...")
	stopSched()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	// Let pending balance/order writes land before exit.
	accounts.Flush()
	fmt.Println("trade-engine stopped")
}

// decimalEnv reads a decimal environment variable, falling back on
// absence or parse failure.
func decimalEnv(name string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		slog.Warn("invalid decimal env, using default", "name", name, "value", v)
		return fallback
	}
	return d
}
