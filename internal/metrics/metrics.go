// Package metrics provides Prometheus instrumentation for the order API.
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
	// PriceReadsTotal counts price resolutions, partitioned by winning tier.
	PriceReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnetico_price_reads_total",
		Help: "Total price resolutions by winning tier",
	}, []string{"tier"})

	// PriceUpdatesTotal counts successful price updates by source.
	PriceUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnetico_price_updates_total",
		Help: "Total successful price updates",
	}, []string{"source"})

	// PriceUpdateFailures counts rejected or failed price updates.
	PriceUpdateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnetico_price_update_failures_total",
		Help: "Price updates rejected by validation or failed in storage",
	}, []string{"reason"})

	// OrdersTotal counts order-intake outcomes.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnetico_orders_total",
		Help: "Total orders by outcome",
	}, []string{"status"})

	// OrderPhotos observes the photo count per accepted order.
	OrderPhotos = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "magnetico_order_photos",
		Help:    "Photos per accepted order",
		Buckets: []float64{4, 6, 8, 10, 12, 15},
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "magnetico_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "magnetico_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// WebSocketClients tracks connected price-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "magnetico_websocket_clients",
		Help: "Number of connected price-feed WebSocket clients",
	})
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
