// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mode labels distinguish simulated from live activity.
const (
	ModeBacktest = "backtest"
	ModeLive     = "live"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestRunsTotal *prometheus.CounterVec
	BacktestDuration  prometheus.Histogram

	// Trading metrics, labelled by mode
	FillsTotal     *prometheus.CounterVec
	SignalsSkipped *prometheus.CounterVec
	RegimeChanges  *prometheus.CounterVec
	Equity         *prometheus.GaugeVec
	Drawdown       *prometheus.GaugeVec
	RiskLevel      *prometheus.GaugeVec

	// Live order metrics
	OrdersTotal      *prometheus.CounterVec
	OrderRejections  *prometheus.CounterVec
	BreakerState     prometheus.Gauge
	ReconcileDiffs   prometheus.Counter
	OrderSubmitDelay prometheus.Histogram

	// Feed metrics
	FeedMessages   *prometheus.CounterVec
	FeedDropped    *prometheus.CounterVec
	FeedReconnects prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "regime_trader"
	}

	return &Metrics{
		// Backtest metrics
		BacktestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"scenario", "status"}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),

		// Trading metrics
		FillsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "fills_total",
			Help:      "Total number of fills by mode and side",
		}, []string{"mode", "side"}),
		SignalsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "signals_skipped_total",
			Help:      "Total number of signals that produced no order, by reason",
		}, []string{"mode", "reason"}),
		RegimeChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "regime_changes_total",
			Help:      "Total number of detected regime transitions by target regime",
		}, []string{"mode", "to"}),
		Equity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "equity",
			Help:      "Current account equity",
		}, []string{"mode"}),
		Drawdown: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "drawdown_ratio",
			Help:      "Current drawdown from peak equity as a fraction",
		}, []string{"mode"}),
		RiskLevel: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "risk_level",
			Help:      "Drawdown risk level: 0 normal, 1 reduced, 2 safe",
		}, []string{"mode"}),

		// Live order metrics
		OrdersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "submitted_total",
			Help:      "Total number of order submissions by outcome",
		}, []string{"status"}),
		OrderRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "rejections_total",
			Help:      "Total number of rejected order attempts by symbol",
		}, []string{"symbol"}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "breaker_state",
			Help:      "Exchange circuit breaker state: 0 closed, 1 half-open, 2 open",
		}),
		ReconcileDiffs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "reconcile_mismatches_total",
			Help:      "Total number of position mismatches found during reconciliation",
		}),
		OrderSubmitDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "submit_latency_seconds",
			Help:      "Order submission latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Feed metrics
		FeedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of decoded feed messages by type",
		}, []string{"type"}),
		FeedDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_dropped_total",
			Help:      "Total number of feed messages dropped by reason",
		}, []string{"reason"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of websocket reconnect attempts",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBacktestRun records a finished backtest.
func RecordBacktestRun(scenario, status string, durationSeconds float64) {
	DefaultMetrics.BacktestRunsTotal.WithLabelValues(scenario, status).Inc()
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
}

// RecordFill increments the fills counter.
func RecordFill(mode, side string) {
	DefaultMetrics.FillsTotal.WithLabelValues(mode, side).Inc()
}

// RecordSkippedSignal increments the skipped signals counter.
func RecordSkippedSignal(mode, reason string) {
	DefaultMetrics.SignalsSkipped.WithLabelValues(mode, reason).Inc()
}

// RecordRegimeChange increments the regime change counter.
func RecordRegimeChange(mode, to string) {
	DefaultMetrics.RegimeChanges.WithLabelValues(mode, to).Inc()
}

// UpdateRisk sets the equity, drawdown and risk level gauges.
func UpdateRisk(mode string, equity, drawdown float64, level int) {
	DefaultMetrics.Equity.WithLabelValues(mode).Set(equity)
	DefaultMetrics.Drawdown.WithLabelValues(mode).Set(drawdown)
	DefaultMetrics.RiskLevel.WithLabelValues(mode).Set(float64(level))
}

// RecordOrder records an order submission outcome and its latency.
func RecordOrder(status string, seconds float64) {
	DefaultMetrics.OrdersTotal.WithLabelValues(status).Inc()
	DefaultMetrics.OrderSubmitDelay.Observe(seconds)
}

// RecordRejection increments the rejection counter for a symbol.
func RecordRejection(symbol string) {
	DefaultMetrics.OrderRejections.WithLabelValues(symbol).Inc()
}

// UpdateBreakerState sets the circuit breaker gauge.
func UpdateBreakerState(state int) {
	DefaultMetrics.BreakerState.Set(float64(state))
}

// RecordReconcileMismatch increments the reconciliation mismatch counter.
func RecordReconcileMismatch() {
	DefaultMetrics.ReconcileDiffs.Inc()
}

// RecordFeedMessage increments the decoded message counter.
func RecordFeedMessage(msgType string) {
	DefaultMetrics.FeedMessages.WithLabelValues(msgType).Inc()
}

// RecordFeedDropped increments the dropped message counter.
func RecordFeedDropped(reason string) {
	DefaultMetrics.FeedDropped.WithLabelValues(reason).Inc()
}

// RecordFeedReconnect increments the reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
