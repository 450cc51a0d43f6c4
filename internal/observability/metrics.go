package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for MemeLedger.
type Metrics struct {
	// --- Core Processing ---
	CoreEventsApplied  *prometheus.CounterVec
	CoreEventsRejected *prometheus.CounterVec
	CoreEventsFailed   *prometheus.CounterVec
	CoreEventDuration  *prometheus.HistogramVec
	CoreLastBlock      prometheus.Gauge

	// --- Data quality ---
	BalanceClamps      *prometheus.CounterVec
	UnknownTokenEvents *prometheus.CounterVec
	ZeroValueTransfers prometheus.Counter

	// --- Idempotency & Ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter
	DedupTier2Errors      prometheus.Counter
	EventOutOfOrder       *prometheus.CounterVec

	// --- Ingestion ---
	IngestMessages   *prometheus.CounterVec
	ChainPollLag     prometheus.Gauge
	WatchedAddresses *prometheus.GaugeVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in main and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025,
		0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	}

	return &Metrics{
		CoreEventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_core_events_applied_total",
			Help: "Events fully applied by the processor",
		}, []string{"event_type"}),

		CoreEventsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_core_events_rejected_total",
			Help: "Events skipped (duplicate, unknown entity, invalid)",
		}, []string{"event_type", "reason"}),

		CoreEventsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_core_events_failed_total",
			Help: "Events aborted by a fatal error",
		}, []string{"event_type"}),

		CoreEventDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memeledger_core_event_apply_duration_seconds",
			Help:    "Time to apply a single event including store I/O",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		CoreLastBlock: f.NewGauge(prometheus.GaugeOpts{
			Name: "memeledger_core_last_block",
			Help: "Highest block number applied",
		}),

		BalanceClamps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_balance_clamps_total",
			Help: "Balance updates floored at zero instead of going negative",
		}, []string{"entity", "cause"}),

		UnknownTokenEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_unknown_token_events_total",
			Help: "Events referencing a token that was never created",
		}, []string{"event_type"}),

		ZeroValueTransfers: f.NewCounter(prometheus.CounterOpts{
			Name: "memeledger_zero_value_transfers_total",
			Help: "Transfers skipped because value was zero",
		}),

		IdempotencyDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/store)",
		}, []string{"event_type", "tier"}),

		DedupLRUSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "memeledger_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "memeledger_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		DedupTier2Errors: f.NewCounter(prometheus.CounterOpts{
			Name: "memeledger_dedup_tier2_errors_total",
			Help: "Processed-store lookups that failed",
		}),

		EventOutOfOrder: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_out_of_order_events_total",
			Help: "Events that arrived behind an already applied (block, logIndex)",
		}, []string{"event_type"}),

		IngestMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_ingest_messages_total",
			Help: "Inbound messages by source and outcome",
		}, []string{"source", "outcome"}),

		ChainPollLag: f.NewGauge(prometheus.GaugeOpts{
			Name: "memeledger_chain_poll_lag_blocks",
			Help: "Chain head minus last polled block",
		}),

		WatchedAddresses: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memeledger_watched_addresses",
			Help: "Contracts being watched by kind",
		}, []string{"kind"}),

		QueryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memeledger_query_requests_total",
			Help: "Read API requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memeledger_query_duration_seconds",
			Help:    "Read API latency",
			Buckets: latencyBuckets,
		}, []string{"endpoint"}),
	}
}
