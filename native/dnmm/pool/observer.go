package pool

import (
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/oracle"
	"nhbchain/native/dnmm/pricing"
	"nhbchain/observability"
)

// EventKind tags the minimum event set from spec.md §6.
type EventKind string

const (
	EventSwapExecuted             EventKind = "SwapExecuted"
	EventTargetBaseXstarUpdated   EventKind = "TargetBaseXstarUpdated"
	EventManualRebalanceExecuted  EventKind = "ManualRebalanceExecuted"
	EventDivergenceHaircut        EventKind = "DivergenceHaircut"
	EventDivergenceRejected       EventKind = "DivergenceRejected"
	EventAomqActivated            EventKind = "AomqActivated"
	EventPreviewSnapshotRefreshed EventKind = "PreviewSnapshotRefreshed"
	EventConfidenceDebug          EventKind = "ConfidenceDebug"
	EventQuoteFilled              EventKind = "QuoteFilled"
)

// Event is the payload passed to an Observer. Only the fields relevant to
// Kind are populated; the rest are zero values.
type Event struct {
	Kind EventKind
	TS   time.Time

	Taker     string
	IsBaseIn  bool
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	MidWad    *uint256.Int
	FeeBps    uint32
	IsPartial bool
	Reason    oracle.Reason

	OldTargetBase *uint256.Int
	NewTargetBase *uint256.Int

	Caller string
	Price  *uint256.Int

	DeltaBps uint32

	AomqTrigger      pricing.AOMQTrigger
	AomqQuoteNotional *uint256.Int

	SnapshotTS  uint64
	Regime      oracle.Regime
	Confidence  pricing.QuoteResult
}

// Observer receives Pool lifecycle events. Constructed once at NewPool time,
// matching oracle.Manager's construction-time WithLogger/WithPublisher
// options rather than a mutable subscriber list.
type Observer interface {
	Emit(Event)
}

// NoopObserver discards every event; used when the caller wires no sink.
type NoopObserver struct{}

// Emit implements Observer.
func (NoopObserver) Emit(Event) {}

// SlogObserver logs every event as a structured slog record, mirroring
// services/swapd/stable's slog.Error/InfoContext usage.
type SlogObserver struct {
	Logger *slog.Logger
}

// Emit implements Observer.
func (o SlogObserver) Emit(ev Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dnmm event",
		slog.String("kind", string(ev.Kind)),
		slog.String("taker", ev.Taker),
		slog.Bool("is_base_in", ev.IsBaseIn),
		slog.Uint64("fee_bps", uint64(ev.FeeBps)),
		slog.Bool("is_partial", ev.IsPartial),
		slog.String("reason", string(ev.Reason)),
		slog.Uint64("delta_bps", uint64(ev.DeltaBps)),
	)
}

// MetricsObserver records swap/quote events into the shared Prometheus
// registry via observability.DNMM()'s counter/histogram shape.
type MetricsObserver struct{}

// Emit implements Observer.
func (MetricsObserver) Emit(ev Event) {
	metrics := observability.DNMM()
	switch ev.Kind {
	case EventSwapExecuted, EventQuoteFilled:
		metrics.RecordFee(string(ev.Reason), ev.FeeBps)
	case EventAomqActivated:
		metrics.RecordAomqActivation(string(ev.AomqTrigger))
	case EventDivergenceHaircut:
		metrics.RecordDivergence("haircut")
	case EventDivergenceRejected:
		metrics.RecordDivergence("reject")
	}
}

// MultiObserver fans a single event out to every wrapped Observer.
type MultiObserver []Observer

// Emit implements Observer.
func (m MultiObserver) Emit(ev Event) {
	for _, o := range m {
		if o != nil {
			o.Emit(ev)
		}
	}
}
