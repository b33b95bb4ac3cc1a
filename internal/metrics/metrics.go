package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry          *prometheus.Registry
	Checkouts         *prometheus.CounterVec
	CheckoutLatencyMS *prometheus.HistogramVec
	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	checkoutLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_ms",
		Help:      "Checkout latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"outcome"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		checkouts, checkoutLatency, requests, latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:          registry,
		Checkouts:         checkouts,
		CheckoutLatencyMS: checkoutLatency,
		Requests:          requests,
		LatencyMS:         latency,
	}
}

// ObserveCheckout is safe on a nil receiver.
func (m *Metrics) ObserveCheckout(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
	m.CheckoutLatencyMS.WithLabelValues(outcome).Observe(float64(d.Microseconds()) / 1000)
}

func (m *Metrics) ObserveRequest(handler string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(d.Microseconds()) / 1000)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
