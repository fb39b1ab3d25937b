package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Number of active gateway websocket connections",
		},
	)

	GatewayDisconnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_disconnections_total",
			Help: "Total number of gateway disconnections",
		},
		[]string{"reason"},
	)

	GatewayCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_commands_total",
			Help: "Total number of commands received by name",
		},
		[]string{"command"},
	)

	GatewayProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_processing_duration_seconds",
			Help:    "Time to process one inbound gateway message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	GatewayQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_queue_depth",
			Help: "Pending inbound messages per processor shard",
		},
		[]string{"shard"},
	)

	GatewayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Total number of gateway protocol errors",
		},
		[]string{"reason"},
	)
)
