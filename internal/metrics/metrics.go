// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	OrdersConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_confirmed_total",
			Help: "Orders confirmed, by payment method",
		},
		[]string{"payment_method"},
	)

	OrdersCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Orders cancelled by their owner",
		},
	)

	OrdersReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_returned_total",
			Help: "Return requests accepted",
		},
	)

	StockConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_conflicts_total",
			Help: "Confirmations rejected because stock ran out",
		},
	)

	SagaCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Compensating actions run after a failed step",
		},
		[]string{"operation", "outcome"},
	)

	WalletCredits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_credits_total",
			Help: "Wallet credits applied, by source",
		},
		[]string{"source"},
	)

	DraftsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drafts_expired_total",
			Help: "Draft orders removed by the sweeper",
		},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events handed to Kafka, by result",
		},
		[]string{"result"},
	)
)
