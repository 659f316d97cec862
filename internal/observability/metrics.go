package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout and payment outcomes used as metric labels.
const (
	ResultCommitted         = "committed"
	ResultInsufficientStock = "insufficient_stock"
	ResultRejected          = "rejected"
	ResultFailed            = "failed"
)

// Metrics collects the Prometheus metrics of the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	checkouts       *prometheus.CounterVec
	revenue         *prometheus.CounterVec
	payments        *prometheus.CounterVec
	collected       prometheus.Counter
}

// NewMetrics initialises the registry with HTTP and domain metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadesk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pharmadesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadesk_checkouts_total",
		Help: "Checkout commits by payment method and result.",
	}, []string{"payment_method", "result"})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadesk_checkout_revenue_minor_total",
		Help: "Committed sale totals in minor currency units.",
	}, []string{"payment_method"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmadesk_debt_payments_total",
		Help: "Debt payment attempts by result.",
	}, []string{"result"})
	collected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pharmadesk_debt_collected_minor_total",
		Help: "Debt payments applied in minor currency units.",
	})
	registry.MustRegister(requests, duration, checkouts, revenue, payments, collected)
	for _, method := range []string{"cash", "card", "credit_sale"} {
		checkouts.WithLabelValues(method, ResultCommitted)
		revenue.WithLabelValues(method)
	}
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		checkouts:       checkouts,
		revenue:         revenue,
		payments:        payments,
		collected:       collected,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveCheckout counts a commit attempt. total is only added for committed sales.
func (m *Metrics) ObserveCheckout(method, result string, total int64) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(method, result).Inc()
	if result == ResultCommitted && total > 0 {
		m.revenue.WithLabelValues(method).Add(float64(total))
	}
}

// ObservePayment counts a debt payment attempt.
func (m *Metrics) ObservePayment(result string, amount int64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(result).Inc()
	if result == ResultCommitted && amount > 0 {
		m.collected.Add(float64(amount))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
