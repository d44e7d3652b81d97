// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "library"

type Collector struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	RateLimitHits    *prometheus.CounterVec

	// Borrowing lifecycle
	BorrowingsCreated  prometheus.Counter
	BorrowingsReturned prometheus.Counter
	OutOfInventory     prometheus.Counter

	// Payments
	CheckoutSessions *prometheus.CounterVec
	PaymentsPaid     *prometheus.CounterVec

	// Notifications
	NotificationsSent    *prometheus.CounterVec
	NotificationsDropped prometheus.Counter
	OverdueBorrowings    prometheus.Gauge
}

// New builds a collector on its own registry, so several can coexist in tests.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),

		BorrowingsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "borrowings_created_total",
			Help:      "Borrowings created",
		}),
		BorrowingsReturned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "borrowings_returned_total",
			Help:      "Borrowings returned",
		}),
		OutOfInventory: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "borrowings_out_of_inventory_total",
			Help:      "Borrow attempts rejected because no copy was left",
		}),

		CheckoutSessions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkout_sessions_total",
				Help:      "Checkout sessions requested from the payment provider",
			},
			[]string{"type", "result"},
		),
		PaymentsPaid: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_paid_total",
				Help:      "Payments moved to PAID",
			},
			[]string{"source"},
		),

		NotificationsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		),
		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the queue was full",
		}),
		OverdueBorrowings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_borrowings",
			Help:      "Overdue borrowings found by the last sweep",
		}),
	}
}

// TrackFeedClients exports the number of open staff feed websockets, read on every scrape.
func (c *Collector) TrackFeedClients(count func() int) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Open staff notification websocket connections",
		},
		func() float64 { return float64(count()) },
	))
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
