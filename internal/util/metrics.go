package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products listed",
	})

	ProductWritesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_writes_failed_total",
		Help: "Total number of failed product writes",
	}, []string{"reason"})

	SyncEventsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_events_applied_total",
		Help: "Change-feed events applied to the reactive store",
	}, []string{"collection", "op"})

	SyncEventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_events_dropped_total",
		Help: "Change-feed events dropped by the epoch guard",
	})

	SyncSnapshotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_snapshot_latency_seconds",
		Help:    "Latency of the initial snapshot fetch",
		Buckets: prometheus.DefBuckets,
	})

	SyncSnapshotFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_snapshot_failed_total",
		Help: "Failed initial snapshot fetches",
	}, []string{"collection"})

	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_started_total",
		Help: "Total number of sessions established",
	})

	SessionsEndedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_ended_total",
		Help: "Total number of sessions ended",
	})

	WSClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_clients_connected",
		Help: "Currently connected websocket clients",
	})

	ChangeEventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_events_published_total",
		Help: "Change events published to the feed",
	}, []string{"collection", "op"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
