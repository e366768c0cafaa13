package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quantdash"

// Metrics groups every collector the hub exports.
type Metrics struct {
	ConnectedClients  prometheus.Gauge
	SubscribedSymbols prometheus.Gauge
	Subscriptions     prometheus.Gauge
	Disconnects       *prometheus.CounterVec // reason

	MalformedMessages prometheus.Counter

	TicksReceived  prometheus.Counter
	TicksDelivered prometheus.Counter // ticks with at least one recipient
	FramesSent     prometheus.Counter
	SendFailures   prometheus.Counter
	StreamRestarts prometheus.Counter

	UpstreamErrors *prometheus.CounterVec // op
	FeedState      prometheus.Gauge

	HistoryRequests *prometheus.CounterVec // source
	QuotesPolled    prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		ConnectedClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "hub", Name: "connected_clients",
			Help: "Number of open downstream WebSocket clients.",
		}),
		SubscribedSymbols: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "hub", Name: "subscribed_symbols",
			Help: "Number of symbols with at least one subscriber.",
		}),
		Subscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "hub", Name: "subscriptions",
			Help: "Number of (client, symbol) subscription pairs.",
		}),
		Disconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hub", Name: "disconnects_total",
			Help: "Downstream client disconnects by reason.",
		}, []string{"reason"}),
		MalformedMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "hub", Name: "malformed_messages_total",
			Help: "Inbound client frames that were ignored.",
		}),
		TicksReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcaster", Name: "ticks_received_total",
			Help: "Ticks handed to the broadcaster.",
		}),
		TicksDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcaster", Name: "ticks_delivered_total",
			Help: "Ticks enqueued to at least one client.",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcaster", Name: "frames_enqueued_total",
			Help: "Outbound frames enqueued across all clients.",
		}),
		SendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcaster", Name: "send_failures_total",
			Help: "Enqueue failures that caused a client to be dropped.",
		}),
		StreamRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcaster", Name: "stream_restarts_total",
			Help: "Times the upstream tick stream ended and was reopened.",
		}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "feed", Name: "control_errors_total",
			Help: "Failed upstream subscribe/unsubscribe calls.",
		}, []string{"op"}),
		FeedState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "feed", Name: "state",
			Help: "Upstream session state (0=disconnected 1=connecting 2=connected 3=streaming 4=backoff).",
		}),
		HistoryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "history", Name: "requests_total",
			Help: "History lookups by the source that served them.",
		}, []string{"source"}),
		QuotesPolled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "poller", Name: "quotes_total",
			Help: "Quotes fetched by the fallback poller.",
		}),
	}
}

// Nop returns unregistered collectors for callers that do not export metrics.
func Nop() *Metrics {
	return New(nil)
}
