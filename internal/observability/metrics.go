// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Trading metrics
	QuotesRequested *prometheus.CounterVec
	SwapsExecuted   *prometheus.CounterVec
	SwapsFailed     *prometheus.CounterVec
	SwapDuration    prometheus.Histogram
	TradesPersisted *prometheus.CounterVec

	// Admission metrics
	RiskDenials      *prometheus.CounterVec
	RateLimitDenials *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	BreakerTrips     *prometheus.CounterVec

	// Discovery metrics
	PoolsDiscovered prometheus.Counter
	KnownPools      prometheus.Gauge
	PollErrors      prometheus.Counter
	PollDuration    prometheus.Histogram
	PollTriggers    prometheus.Counter

	// Provider metrics
	RPCCallLatency  *prometheus.HistogramVec
	RPCCallErrors   *prometheus.CounterVec
	MetadataLookups *prometheus.CounterVec
	Notifications   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSwap prometheus.Gauge
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered
// on the default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_swap_bot"
	}

	return &Metrics{
		// Trading metrics
		QuotesRequested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "quotes_total",
			Help:      "Total number of quote requests by result",
		}, []string{"result"}),
		SwapsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "swaps_executed_total",
			Help:      "Total number of confirmed swaps by source",
		}, []string{"source"}),
		SwapsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "swaps_failed_total",
			Help:      "Total number of failed swap attempts by source and stage",
		}, []string{"source", "stage"}),
		SwapDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "swap_duration_seconds",
			Help:      "Time from swap request to confirmation",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}),
		TradesPersisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "trades_persisted_total",
			Help:      "Total number of trade persistence attempts by status",
		}, []string{"status"}),

		// Admission metrics
		RiskDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "denials_total",
			Help:      "Total number of trades denied by the risk gate by check",
		}, []string{"check"}),
		RateLimitDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "denials_total",
			Help:      "Total number of requests denied by the local rate limiter by key",
		}, []string{"key"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		BreakerTrips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "trips_total",
			Help:      "Total number of transitions into the open state",
		}, []string{"name"}),

		// Discovery metrics
		PoolsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "pools_discovered_total",
			Help:      "Total number of new pools emitted by the market poller",
		}),
		KnownPools: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "known_pools",
			Help:      "Current size of the known pool set",
		}),
		PollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "poll_errors_total",
			Help:      "Total number of failed pool listings",
		}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "poll_duration_seconds",
			Help:      "Pool listing duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		PollTriggers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "log_triggers_total",
			Help:      "Total number of pool initialisation log lines seen",
		}),

		// Provider metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),
		MetadataLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "lookups_total",
			Help:      "Total number of metadata resolutions by outcome",
		}, []string{"outcome"}),
		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of notifications by kind and status",
		}, []string{"kind", "status"}),

		// Health metrics
		LastSuccessfulSwap: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_swap_timestamp",
			Help:      "Unix timestamp of last confirmed swap",
		}),
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful pool listing",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordQuote records a quote request outcome.
func RecordQuote(err error) {
	DefaultMetrics.QuotesRequested.WithLabelValues(status(err)).Inc()
}

// RecordSwap records a confirmed swap.
func RecordSwap(source string, elapsed time.Duration) {
	DefaultMetrics.SwapsExecuted.WithLabelValues(source).Inc()
	DefaultMetrics.SwapDuration.Observe(elapsed.Seconds())
	DefaultMetrics.LastSuccessfulSwap.SetToCurrentTime()
}

// RecordSwapFailure records a failed swap attempt at stage
// (quote, risk, swap, persist).
func RecordSwapFailure(source, stage string) {
	DefaultMetrics.SwapsFailed.WithLabelValues(source, stage).Inc()
}

// RecordTradePersisted records a trade write.
func RecordTradePersisted(err error) {
	DefaultMetrics.TradesPersisted.WithLabelValues(status(err)).Inc()
}

// RecordRiskDenial records a risk gate rejection by check code.
func RecordRiskDenial(check string) {
	DefaultMetrics.RiskDenials.WithLabelValues(check).Inc()
}

// RecordRateLimited records a local limiter denial.
func RecordRateLimited(key string) {
	DefaultMetrics.RateLimitDenials.WithLabelValues(key).Inc()
}

// SetBreakerState sets the state gauge; opened also counts a trip.
func SetBreakerState(name string, state int, opened bool) {
	DefaultMetrics.BreakerState.WithLabelValues(name).Set(float64(state))
	if opened {
		DefaultMetrics.BreakerTrips.WithLabelValues(name).Inc()
	}
}

// RecordPoll records one pool listing.
func RecordPoll(elapsed time.Duration, newPools, known int, err error) {
	DefaultMetrics.PollDuration.Observe(elapsed.Seconds())
	if err != nil {
		DefaultMetrics.PollErrors.Inc()
		return
	}
	DefaultMetrics.PoolsDiscovered.Add(float64(newPools))
	DefaultMetrics.KnownPools.Set(float64(known))
	DefaultMetrics.LastSuccessfulPoll.SetToCurrentTime()
}

// RecordPollTrigger records a log-driven poll wake-up.
func RecordPollTrigger() {
	DefaultMetrics.PollTriggers.Inc()
}

// RecordRPCCall records RPC call latency and failures.
func RecordRPCCall(method string, elapsed time.Duration, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordMetadataLookup records a metadata outcome (cache, source name, synthetic).
func RecordMetadataLookup(outcome string) {
	DefaultMetrics.MetadataLookups.WithLabelValues(outcome).Inc()
}

// RecordNotification records a notification attempt.
func RecordNotification(kind string, err error) {
	DefaultMetrics.Notifications.WithLabelValues(kind, status(err)).Inc()
}
