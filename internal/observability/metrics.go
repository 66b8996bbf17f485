package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PrimeBoard.
type Metrics struct {
	// --- Ingestion ---
	LogLinesReceived   prometheus.Counter
	EnvelopesIgnored   prometheus.Counter
	EventsParsed       *prometheus.CounterVec
	ParseMisses        prometheus.Counter
	MalformedEvents    prometheus.Counter
	UpstreamConnected  prometheus.Gauge
	UpstreamReconnects prometheus.Counter

	// --- Aggregation ---
	EventsApplied    *prometheus.CounterVec
	EventsRejected   *prometheus.CounterVec
	PrimeDiscoveries prometheus.Counter
	PrimeDuplicates  prometheus.Counter
	SeenSetSize      prometheus.Gauge

	// --- Broadcast ---
	SnapshotsPublished prometheus.Counter
	ViewersConnected   prometheus.Gauge
	ViewerSends        prometheus.Counter
	ViewersDropped     prometheus.Counter

	// --- Outbound relay ---
	OutboundPublished prometheus.Counter
	OutboundDrops     prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Ingestion
		LogLinesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_log_lines_received_total",
			Help: "Raw log lines received from the upstream feed",
		}),

		EnvelopesIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_envelopes_ignored_total",
			Help: "Inbound envelopes with no recognized notification shape",
		}),

		EventsParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prime_events_parsed_total",
			Help: "Log lines classified into a typed event",
		}, []string{"kind"}),

		ParseMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_parse_misses_total",
			Help: "Log lines matching no known pattern",
		}),

		MalformedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_malformed_events_total",
			Help: "Pattern matches dropped for an unparseable numeric field",
		}),

		UpstreamConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "prime_upstream_connected",
			Help: "1 while the upstream subscription is live",
		}),

		UpstreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_upstream_reconnects_total",
			Help: "Upstream reconnect attempts after a transport fault",
		}),

		// Aggregation
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prime_events_applied_total",
			Help: "Events successfully applied to the store",
		}, []string{"kind"}),

		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prime_events_rejected_total",
			Help: "Events rejected by store validation",
		}, []string{"kind"}),

		PrimeDiscoveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_discoveries_total",
			Help: "Distinct PrimeFound numbers reported",
		}),

		PrimeDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_duplicates_suppressed_total",
			Help: "PrimeFound redeliveries suppressed by the seen set",
		}),

		SeenSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "prime_seen_set_size",
			Help: "Current PrimeFound seen-set occupancy",
		}),

		// Broadcast
		SnapshotsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_snapshots_published_total",
			Help: "State snapshots handed to the broadcast hub",
		}),

		ViewersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "prime_viewers_connected",
			Help: "Currently connected viewers",
		}),

		ViewerSends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_viewer_sends_total",
			Help: "Snapshot frames queued to viewers",
		}),

		ViewersDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_viewers_dropped_total",
			Help: "Viewers removed after transport failure or close",
		}),

		// Outbound relay
		OutboundPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_outbound_published_total",
			Help: "Applied events relayed to NATS",
		}),

		OutboundDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prime_outbound_drops_total",
			Help: "Events dropped due to full outbound channel",
		}),
	}
}
