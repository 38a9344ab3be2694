package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dnmmMetricsOnce sync.Once
	dnmmRegistry    *DNMMMetrics
)

// DNMMMetrics bundles collectors for the oracle-guided dynamic market maker.
type DNMMMetrics struct {
	quotes        *prometheus.CounterVec
	quoteLatency  *prometheus.HistogramVec
	feeBps        *prometheus.HistogramVec
	aomqActivated *prometheus.CounterVec
	divergence    *prometheus.CounterVec
}

// DNMM returns the singleton metrics registry for the dnmmd pricing service.
func DNMM() *DNMMMetrics {
	dnmmMetricsOnce.Do(func() {
		dnmmRegistry = &DNMMMetrics{
			quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "dnmm",
				Name:      "quotes_total",
				Help:      "Count of quote/swap requests segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			quoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nhb",
				Subsystem: "dnmm",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for dnmm pricing operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			feeBps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nhb",
				Subsystem: "dnmm",
				Name:      "fee_bps",
				Help:      "Distribution of the fee, in basis points, on quoted and settled swaps.",
				Buckets:   []float64{5, 10, 15, 25, 50, 75, 100, 150, 250, 500},
			}, []string{"reason"}),
			aomqActivated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "dnmm",
				Name:      "aomq_activations_total",
				Help:      "Count of AOMQ micro-quote clamp activations segmented by trigger.",
			}, []string{"trigger"}),
			divergence: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhb",
				Subsystem: "dnmm",
				Name:      "divergence_outcomes_total",
				Help:      "Count of oracle divergence gate outcomes segmented by tier.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			dnmmRegistry.quotes,
			dnmmRegistry.quoteLatency,
			dnmmRegistry.feeBps,
			dnmmRegistry.aomqActivated,
			dnmmRegistry.divergence,
		)
	})
	return dnmmRegistry
}

// Observe records the execution metrics for a pricing operation.
func (m *DNMMMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.quotes.WithLabelValues(op, outcome).Inc()
	m.quoteLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordFee records the fee, in bps, applied to a settled swap.
func (m *DNMMMetrics) RecordFee(reason string, feeBps uint32) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unknown"
	}
	m.feeBps.WithLabelValues(reason).Observe(float64(feeBps))
}

// RecordAomqActivation increments the AOMQ activation counter for a trigger.
func (m *DNMMMetrics) RecordAomqActivation(trigger string) {
	if m == nil {
		return
	}
	if trigger = strings.TrimSpace(trigger); trigger == "" {
		trigger = "unknown"
	}
	m.aomqActivated.WithLabelValues(trigger).Inc()
}

// RecordDivergence increments the divergence outcome counter for a tier.
func (m *DNMMMetrics) RecordDivergence(outcome string) {
	if m == nil {
		return
	}
	if outcome = strings.TrimSpace(outcome); outcome == "" {
		outcome = "unknown"
	}
	m.divergence.WithLabelValues(outcome).Inc()
}
