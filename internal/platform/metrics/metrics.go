// Package metrics exposes Prometheus collectors for HTTP traffic and
// pharmacy business events. All observe methods are nil-safe.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pharmadesk"

// HTTPMetrics counts and times requests by route template.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Middleware records every request. Unmatched routes are labelled "unmatched"
// to keep label cardinality bounded.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.Observe(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}

// BusinessMetrics tracks sales, payments and stock alerts.
type BusinessMetrics struct {
	sales    *prometheus.CounterVec
	revenue  *prometheus.CounterVec
	payments *prometheus.CounterVec
	lowStock prometheus.Counter
	invoices *prometheus.CounterVec
}

func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	m := &BusinessMetrics{
		sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pos",
			Name:      "sales_total",
			Help:      "POS sales by payment method and outcome",
		}, []string{"payment_method", "status"}),
		revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pos",
			Name:      "revenue_total",
			Help:      "Payable amount of completed sales",
		}, []string{"currency"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_total",
			Help:      "Subscription payment attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		lowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "low_stock_events_total",
			Help:      "Writes that left a medicine at or below its reorder level",
		}),
		invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "invoices_total",
			Help:      "Invoices created by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sales, m.revenue, m.payments, m.lowStock, m.invoices)
	return m
}

func (m *BusinessMetrics) ObserveSale(paymentMethod, status, currency string, payable float64) {
	if m == nil {
		return
	}
	m.sales.WithLabelValues(paymentMethod, status).Inc()
	if status == "completed" && payable > 0 {
		m.revenue.WithLabelValues(currency).Add(payable)
	}
}

func (m *BusinessMetrics) ObservePayment(provider string, success bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	m.payments.WithLabelValues(provider, outcome).Inc()
}

func (m *BusinessMetrics) ObserveLowStock() {
	if m == nil {
		return
	}
	m.lowStock.Inc()
}

func (m *BusinessMetrics) ObserveInvoice(status string) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
