// Package metrics 定义所有服务共用的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route and status code.",
	}, []string{"service", "method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "route"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of calls to other services.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"upstream", "method", "outcome"})

	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders successfully placed.",
	})

	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_rejected_total",
		Help:      "Order placements that failed, by reason.",
	}, []string{"reason"})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_cancelled_total",
		Help:      "Orders cancelled.",
	})

	StockMutationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_mutation_failures_total",
		Help:      "Remote stock mutations that failed, by phase.",
	}, []string{"phase"})

	Compensations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "saga_compensations_total",
		Help:      "Compensating stock increments executed after a partial placement.",
	})
)
