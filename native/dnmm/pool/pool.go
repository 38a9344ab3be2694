// Package pool implements the top-level DNMM pool facade (spec.md §4.1,
// §4.7-§4.10): reserve and fee-state custody, the unified preview/settlement
// quote path, preview snapshots and ladders, inventory target recentering,
// and governance-only parameter updates.
package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/confidence"
	"nhbchain/native/dnmm/feepolicy"
	"nhbchain/native/dnmm/oracle"
	"nhbchain/native/dnmm/pricing"
)

// Reserves is the Reserves entity: on-chain custody of both legs of the pair.
type Reserves struct {
	BaseUnits  *uint256.Int
	QuoteUnits *uint256.Int
}

// SwapRequest bundles a caller's exact-in swap/quote request.
type SwapRequest struct {
	Taker         string
	AmountIn      *uint256.Int
	IsBaseIn      bool
	Oracle        oracle.Input
	MinAmountOut  *uint256.Int
	DeadlineUnix  int64
}

// SwapResult is returned from both QuoteSwapExactIn and SwapExactIn; the two
// calls share the exact same pricing pipeline (mutate=false vs true) so a
// quote the caller previewed is the swap they get, barring a state change
// between the two calls (spec.md §4.9 preview/settlement parity).
type SwapResult struct {
	pricing.QuoteResult
}

// Pool is the Pool entity: the mutex-guarded facade every external entry
// point (quote, swap, preview, rebalance, update_params) goes through.
// It holds no business logic of its own beyond orchestration; the pricing
// math lives in pricing.Engine and is evaluated fresh on every call against
// whatever Reserves/FeeState/ConfidenceState currently are.
type Pool struct {
	mu sync.Mutex

	tokens  TokenConfig
	cfg     pricing.Config
	preview PreviewConfig

	reserves  Reserves
	feeState  feepolicy.State
	confState confidence.State

	targetBaseXstar    *uint256.Int
	lastRebalancePrice *uint256.Int
	lastRebalanceAt    time.Time

	snapshot PreviewSnapshot

	paused bool
	inSwap bool

	clock    Clock
	observer Observer
}

// Option configures a Pool at construction time, mirroring oracle.Manager's
// functional-options wiring for swappable logger/clock/observer dependencies.
type Option func(*Pool)

// WithClock overrides the default SystemClock.
func WithClock(c Clock) Option {
	return func(p *Pool) { p.clock = c }
}

// WithObserver overrides the default NoopObserver.
func WithObserver(o Observer) Option {
	return func(p *Pool) { p.observer = o }
}

// NewPool constructs a Pool seeded with the initial reserves and config. The
// initial inventory target defaults to cfg.Inventory.TargetBaseXstar; callers
// that want auto-recentering from genesis should call RebalanceTarget once
// reserves are funded.
func NewPool(tokens TokenConfig, cfg pricing.Config, preview PreviewConfig, reserves Reserves, opts ...Option) (*Pool, error) {
	if err := tokens.Validate(); err != nil {
		return nil, err
	}
	cfg.Scales = tokens.Scales()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := preview.Validate(); err != nil {
		return nil, err
	}
	if reserves.BaseUnits == nil || reserves.QuoteUnits == nil {
		return nil, fmt.Errorf("pool: reserves must be non-nil")
	}

	p := &Pool{
		tokens:          tokens,
		cfg:             cfg,
		preview:         preview,
		reserves:        reserves,
		targetBaseXstar: new(uint256.Int).Set(cfg.Inventory.TargetBaseXstar),
		clock:           NewSystemClock(time.Now().UTC(), 12*time.Second),
		observer:        NoopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// engineLocked rebuilds the pricing.Engine bound to the pool's current
// oracle config, which keeps UpdateParams changes visible immediately. The
// fresh Facade starts with no last-observed timestamp, so its InvalidTS
// check never compares a reading against one from an earlier pool call.
func (p *Pool) engineLocked() (*pricing.Engine, error) {
	return pricing.NewEngine(p.cfg.Oracle)
}

// configLocked returns the pricing config with the live recenter cursor
// substituted in, since Pool tracks target_base_xstar outside pricing.Config
// to support independent auto/manual recentering without going through
// UpdateParams.
func (p *Pool) configLocked() pricing.Config {
	cfg := p.cfg
	cfg.Inventory.TargetBaseXstar = p.targetBaseXstar
	return cfg
}

func (p *Pool) reservesLocked() pricing.Reserves {
	return pricing.Reserves{BaseUnits: p.reserves.BaseUnits, QuoteUnits: p.reserves.QuoteUnits}
}

// quoteLocked runs the shared pricing pipeline. Callers must hold p.mu.
func (p *Pool) quoteLocked(req SwapRequest, mutate bool, block uint64) (pricing.QuoteResult, feepolicy.State, confidence.State, error) {
	engine, err := p.engineLocked()
	if err != nil {
		return pricing.QuoteResult{}, p.feeState, p.confState, err
	}
	pr := pricing.Request{
		AmountIn: req.AmountIn,
		IsBaseIn: req.IsBaseIn,
		Oracle:   req.Oracle,
		Block:    block,
		Mutate:   mutate,
	}
	return engine.Quote(p.configLocked(), p.reservesLocked(), p.feeState, p.confState, pr)
}

// QuoteSwapExactIn evaluates the pipeline without mutating any persisted
// state (fee decay clock, sigma EWMA, reserves). This is the path preview
// callers and read-only RPC methods should use.
func (p *Pool) QuoteSwapExactIn(req SwapRequest) (SwapResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return SwapResult{}, pricing.ErrPaused
	}
	block, _ := p.clock.Now()
	result, _, _, err := p.quoteLocked(req, false, block)
	if err != nil {
		return SwapResult{}, err
	}
	return SwapResult{QuoteResult: result}, nil
}

// SwapExactIn evaluates the pipeline, enforces the caller's deadline and
// slippage bound, and — if accepted — mutates reserves, fee state, and
// confidence state, then notifies the configured Observer. This is the only
// entry point that moves the pool's persisted state.
func (p *Pool) SwapExactIn(req SwapRequest) (SwapResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return SwapResult{}, pricing.ErrPaused
	}
	if p.inSwap {
		return SwapResult{}, ErrReentrant
	}
	p.inSwap = true
	defer func() { p.inSwap = false }()

	blockNumber, blockTime := p.clock.Now()
	if req.DeadlineUnix > 0 && blockTime.Unix() > req.DeadlineUnix {
		return SwapResult{}, pricing.ErrDeadlineExpired
	}

	result, newFeeState, newConfState, err := p.quoteLocked(req, true, blockNumber)
	if err != nil {
		p.emitDivergenceLocked(err)
		return SwapResult{}, err
	}

	if req.MinAmountOut != nil && result.AmountOut.Cmp(req.MinAmountOut) < 0 {
		return SwapResult{}, pricing.ErrSlippage
	}

	if err := p.applyReservesLocked(req.IsBaseIn, result.AppliedIn, result.AmountOut); err != nil {
		return SwapResult{}, err
	}
	p.feeState = newFeeState
	p.confState = newConfState

	p.emitSwapLocked(req, result, blockTime)
	return SwapResult{QuoteResult: result}, nil
}

// applyReservesLocked moves AppliedIn into the input-side reserve and
// AmountOut out of the output-side reserve. Callers must hold p.mu.
func (p *Pool) applyReservesLocked(isBaseIn bool, appliedIn, amountOut *uint256.Int) error {
	if isBaseIn {
		if p.reserves.QuoteUnits.Cmp(amountOut) < 0 {
			return fmt.Errorf("pool: insufficient quote reserve for settlement")
		}
		p.reserves.BaseUnits = new(uint256.Int).Add(p.reserves.BaseUnits, appliedIn)
		p.reserves.QuoteUnits = new(uint256.Int).Sub(p.reserves.QuoteUnits, amountOut)
		return nil
	}
	if p.reserves.BaseUnits.Cmp(amountOut) < 0 {
		return fmt.Errorf("pool: insufficient base reserve for settlement")
	}
	p.reserves.QuoteUnits = new(uint256.Int).Add(p.reserves.QuoteUnits, appliedIn)
	p.reserves.BaseUnits = new(uint256.Int).Sub(p.reserves.BaseUnits, amountOut)
	return nil
}

func (p *Pool) emitSwapLocked(req SwapRequest, result pricing.QuoteResult, ts time.Time) {
	kind := EventSwapExecuted
	if result.AOMQTriggered {
		kind = EventAomqActivated
	}
	p.observer.Emit(Event{
		Kind:              kind,
		TS:                ts,
		Taker:             req.Taker,
		IsBaseIn:          req.IsBaseIn,
		AmountIn:          result.AppliedIn,
		AmountOut:         result.AmountOut,
		MidWad:            result.MidUsed,
		FeeBps:            result.FeeBpsUsed,
		IsPartial:         result.IsPartial,
		Reason:            result.Reason,
		AomqTrigger:       result.AOMQTrigger,
		AomqQuoteNotional: result.AmountOut,
	})
}

func (p *Pool) emitDivergenceLocked(err error) {
	var diverged *pricing.DivergedError
	if asDiverged(err, &diverged) {
		kind := EventDivergenceRejected
		p.observer.Emit(Event{Kind: kind, TS: time.Now().UTC(), DeltaBps: diverged.DeltaBps})
	}
}

// asDiverged reports whether err is a *pricing.DivergedError by direct type
// assertion; a wrapped DivergedError is not unwrapped.
func asDiverged(err error, target **pricing.DivergedError) bool {
	de, ok := err.(*pricing.DivergedError)
	if !ok {
		return false
	}
	*target = de
	return true
}

// Pause sets the governance pause gate; all subsequent quote/swap calls
// return ErrPaused until Unpause.
func (p *Pool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// Unpause clears the governance pause gate.
func (p *Pool) Unpause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

// Paused reports the current pause gate state.
func (p *Pool) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// ReservesSnapshot returns a defensive copy of the current reserves.
func (p *Pool) ReservesSnapshot() Reserves {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Reserves{
		BaseUnits:  new(uint256.Int).Set(p.reserves.BaseUnits),
		QuoteUnits: new(uint256.Int).Set(p.reserves.QuoteUnits),
	}
}

// TargetBaseXstar returns the current inventory target cursor.
func (p *Pool) TargetBaseXstar() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.targetBaseXstar)
}

// FeeState returns a copy of the current fee decay state, for durable
// persistence between restarts.
func (p *Pool) FeeState() feepolicy.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feeState
}

// ConfidenceState returns a copy of the current confidence EWMA state, for
// durable persistence between restarts.
func (p *Pool) ConfidenceState() confidence.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confState
}
