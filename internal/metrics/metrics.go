// Package metrics exposes engine counters and gauges to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"swapledger/internal/model"
)

const (
	namespace = "swapledger"
	subsystem = "engine"
)

// Metrics holds the engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	OperationsTotal     *prometheus.CounterVec
	SwapVolume          *prometheus.CounterVec
	SwapFees            *prometheus.CounterVec
	ProtocolFees        *prometheus.CounterVec
	RateLimitExceeds    *prometheus.CounterVec
	InvariantViolations prometheus.Counter
	BatchSize           *prometheus.HistogramVec
	PoolReserves        *prometheus.GaugeVec
	LPTokenSupply       *prometheus.GaugeVec
	Paused              prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Engine operations by name and outcome",
			},
			[]string{"operation", "status"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "swap_volume_total",
				Help:      "Swap input volume in base units",
			},
			[]string{"pool_id", "token_in"},
		),
		SwapFees: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "swap_fees_total",
				Help:      "Swap fees retained by pools",
			},
			[]string{"pool_id", "token"},
		),
		ProtocolFees: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "protocol_fees_total",
				Help:      "Fees moved into protocol accumulators",
			},
			[]string{"pool_id", "token"},
		),
		RateLimitExceeds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rate_limit_exceeded_total",
				Help:      "Calls rejected by the rate limiter",
			},
			[]string{"class"},
		),
		InvariantViolations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invariant_violations_total",
				Help:      "Operations rolled back by an invariant check",
			},
		),
		BatchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "batch_size",
				Help:      "Operations per batch call",
				Buckets:   []float64{1, 2, 3, 5, 8, 10},
			},
			[]string{"mode"},
		),
		PoolReserves: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pool_reserves",
				Help:      "Current pool reserves",
			},
			[]string{"pool_id", "token"},
		),
		LPTokenSupply: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lp_token_supply",
				Help:      "Outstanding LP tokens per pool",
			},
			[]string{"pool_id"},
		),
		Paused: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "paused",
				Help:      "1 while trading is paused",
			},
		),
	}
}

// ObserveOperation counts an operation outcome.
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(op, status).Inc()
}

// ObserveSwap records one pool hop and the protocol share taken from it.
func (m *Metrics) ObserveSwap(hop model.SwapHop, protocolFee int64) {
	if m == nil {
		return
	}
	id := poolLabel(hop.PoolID)
	m.SwapVolume.WithLabelValues(id, string(hop.TokenIn)).Add(float64(hop.AmountIn))
	m.SwapFees.WithLabelValues(id, string(hop.TokenIn)).Add(float64(hop.FeeAmount))
	if protocolFee > 0 {
		m.ProtocolFees.WithLabelValues(id, string(hop.TokenIn)).Add(float64(protocolFee))
	}
}

// ObserveRateLimited counts a rejected call.
func (m *Metrics) ObserveRateLimited(class model.OpClass) {
	if m == nil {
		return
	}
	m.RateLimitExceeds.WithLabelValues(string(class)).Inc()
}

// ObserveInvariantViolation counts a rolled back operation.
func (m *Metrics) ObserveInvariantViolation() {
	if m == nil {
		return
	}
	m.InvariantViolations.Inc()
}

// ObserveBatch records the size of a batch call.
func (m *Metrics) ObserveBatch(mode string, size int) {
	if m == nil {
		return
	}
	m.BatchSize.WithLabelValues(mode).Observe(float64(size))
}

// SetPools publishes reserve and supply gauges.
func (m *Metrics) SetPools(pools []*model.Pool) {
	if m == nil {
		return
	}
	for _, p := range pools {
		id := poolLabel(p.ID)
		m.PoolReserves.WithLabelValues(id, string(p.TokenA)).Set(float64(p.ReserveA))
		m.PoolReserves.WithLabelValues(id, string(p.TokenB)).Set(float64(p.ReserveB))
		m.LPTokenSupply.WithLabelValues(id).Set(float64(p.TotalLPTokens))
	}
}

// SetPaused publishes the pause flag.
func (m *Metrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.Paused.Set(1)
		return
	}
	m.Paused.Set(0)
}

func poolLabel(id model.PoolID) string {
	return strconv.FormatUint(uint64(id), 10)
}
