package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TradeMetrics aggregates the engine-wide counters. All methods are nil-safe
// so callers can hold a nil receiver when metrics are disabled.
type TradeMetrics struct {
	swapsExecuted  *prometheus.CounterVec
	swapsRejected  *prometheus.CounterVec
	feesCollected  prometheus.Counter
	liquidityOps   *prometheus.CounterVec
	tierChanges    prometheus.Counter
	batchesSettled *prometheus.CounterVec
	batchOpsFailed prometheus.Counter
}

var (
	tradeOnce     sync.Once
	tradeRegistry *TradeMetrics
)

// Trade returns the process-wide trade metrics, registering them on first use.
func Trade() *TradeMetrics {
	tradeOnce.Do(func() {
		tradeRegistry = &TradeMetrics{
			swapsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "swaptrade_swaps_executed_total",
				Help: "Count of settled swaps by pricing source.",
			}, []string{"source"}),
			swapsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "swaptrade_swaps_rejected_total",
				Help: "Count of rejected swaps by reason.",
			}, []string{"reason"}),
			feesCollected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "swaptrade_fees_collected_total",
				Help: "Cumulative fee units withheld from swap inputs.",
			}),
			liquidityOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "swaptrade_liquidity_ops_total",
				Help: "Count of liquidity operations by kind.",
			}, []string{"op"}),
			tierChanges: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "swaptrade_tier_changes_total",
				Help: "Count of trades that moved an account between tiers.",
			}),
			batchesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "swaptrade_batches_settled_total",
				Help: "Count of settled batches by mode and outcome.",
			}, []string{"mode", "outcome"}),
			batchOpsFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "swaptrade_batch_ops_failed_total",
				Help: "Count of individual batch operations that failed.",
			}),
		}
		prometheus.MustRegister(
			tradeRegistry.swapsExecuted,
			tradeRegistry.swapsRejected,
			tradeRegistry.feesCollected,
			tradeRegistry.liquidityOps,
			tradeRegistry.tierChanges,
			tradeRegistry.batchesSettled,
			tradeRegistry.batchOpsFailed,
		)
	})
	return tradeRegistry
}

func (m *TradeMetrics) ObserveSwap(source string, fee float64) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	m.swapsExecuted.WithLabelValues(source).Inc()
	if fee > 0 {
		m.feesCollected.Add(fee)
	}
}

func (m *TradeMetrics) ObserveSwapRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.swapsRejected.WithLabelValues(reason).Inc()
}

func (m *TradeMetrics) ObserveLiquidityOp(op string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.liquidityOps.WithLabelValues(op).Inc()
}

func (m *TradeMetrics) ObserveTierChange() {
	if m == nil {
		return
	}
	m.tierChanges.Inc()
}

func (m *TradeMetrics) ObserveBatch(mode, outcome string, failedOps uint32) {
	if m == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.batchesSettled.WithLabelValues(mode, outcome).Inc()
	if failedOps > 0 {
		m.batchOpsFailed.Add(float64(failedOps))
	}
}
