// Package observability exposes the relay metrics to prometheus.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "The current number of registered sessions.",
	})
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sessions_total",
		Help: "The total number of sessions that reached the active state.",
	})
	SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_sessions_rejected_total",
		Help: "The total number of connections refused while connecting.",
	}, []string{"reason"})
	HandshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_handshake_failures_total",
		Help: "The total number of failed websocket upgrades.",
	})
	AcceptFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_accept_failures_total",
		Help: "The total number of accept errors caused by resource exhaustion.",
	})

	// Message metrics
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_received_total",
		Help: "The total number of frames read from sessions.",
	})
	MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_rejected_total",
		Help: "The total number of inbound messages dropped by validation.",
	}, []string{"reason"})
	MessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_published_total",
		Help: "The total number of messages accepted by the message bus.",
	})
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_deliveries_total",
		Help: "The total number of per-session deliveries by outcome.",
	}, []string{"outcome"})
	FanoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_fanout_duration_seconds",
		Help:    "Time spent fanning one message out to every session.",
		Buckets: prometheus.DefBuckets,
	})

	// Process metrics
	ProcessResidentMemory = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_process_resident_memory_bytes",
		Help: "Resident memory of the relay process.",
	})
	ProcessCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_process_cpu_percent",
		Help: "CPU usage of the relay process.",
	})
	WorkerRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_worker_restarts_total",
		Help: "The total number of supervised worker restarts.",
	}, []string{"worker"})
	ChannelLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_channel_length",
		Help: "Values waiting in an internal channel.",
	}, []string{"channel"})
	ChannelCapacity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_channel_capacity",
		Help: "Buffer size of an internal channel.",
	}, []string{"channel"})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
