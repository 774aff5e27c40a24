// Package metrics provides Prometheus instrumentation for the trade engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersTotal counts executed orders, partitioned by type and status.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsim_orders_total",
		Help: "Total number of orders executed",
	}, []string{"type", "status"})

	// OrderRejections counts orders rejected by validation, by kind.
	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsim_order_rejections_total",
		Help: "Orders rejected by the trade executor",
	}, []string{"kind"})

	// OrderLatency tracks end-to-end order submission latency.
	OrderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinsim_order_latency_seconds",
		Help:    "Order submission latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// PriceUpdates counts market price feed updates applied.
	PriceUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinsim_price_updates_total",
		Help: "Market price updates applied",
	})

	// PersistFailures counts detached persistence tasks that failed.
	// The in-memory state is kept; these indicate a durability gap.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinsim_persist_failures_total",
		Help: "Asynchronous persistence failures",
	})

	// BaselineRollovers counts daily baseline snapshot runs.
	BaselineRollovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinsim_baseline_rollovers_total",
		Help: "Daily balance baseline rollovers executed",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinsim_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsim_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinsim_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
