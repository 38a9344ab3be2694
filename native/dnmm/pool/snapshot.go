package pool

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/fixedpoint"
	"nhbchain/native/dnmm/oracle"
	"nhbchain/native/dnmm/pricing"
)

// PreviewSnapshot is the PreviewSnapshot entity (spec.md §4.9): a cached
// read of the last resolved oracle state, refreshed at most once per
// SnapshotCooldown so preview_ladder calls during a burst of RPC traffic
// don't each re-run oracle resolution.
type PreviewSnapshot struct {
	TSUnix        int64
	MidWad        *uint256.Int
	SpreadBps     uint32
	SigmaBps      uint64
	DivergenceBps uint32
	Regime        oracle.Regime
	FeeStateCopy  uint32 // LastFeeBps at capture time
}

// RefreshPreviewSnapshot resolves the oracle once (no reserve/fee-state
// mutation) and, if the cooldown has elapsed, replaces the cached snapshot.
// Within the cooldown window the existing snapshot is returned unchanged.
func (p *Pool) RefreshPreviewSnapshot(in oracle.Input) (PreviewSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := in.BlockTimestamp
	if now.IsZero() {
		_, now = p.clock.Now()
	}
	if p.snapshot.MidWad != nil && now.Sub(time.Unix(p.snapshot.TSUnix, 0)) < p.preview.SnapshotCooldown {
		return p.snapshot, nil
	}

	engine, err := p.engineLocked()
	if err != nil {
		return PreviewSnapshot{}, err
	}
	probe := pricing.Request{
		AmountIn: uint256.NewInt(0),
		IsBaseIn: true,
		Oracle:   in,
		Mutate:   false,
	}
	result, _, _, err := engine.Quote(p.configLocked(), p.reservesLocked(), p.feeState, p.confState, probe)
	if err != nil {
		return PreviewSnapshot{}, err
	}

	snap := PreviewSnapshot{
		TSUnix:        now.Unix(),
		MidWad:        result.MidUsed,
		SpreadBps:     result.ConfidenceDebug.ConfSpread,
		SigmaBps:      result.ConfidenceDebug.SigmaBps,
		DivergenceBps: result.DivergenceDeltaBps,
		FeeStateCopy:  p.feeState.LastFeeBps,
	}
	p.snapshot = snap
	p.observer.Emit(Event{Kind: EventPreviewSnapshotRefreshed, TS: now, SnapshotTS: uint64(now.Unix())})
	return snap, nil
}

// LadderRung is one row of a preview_ladder response: the fee a taker would
// see quoting AmountIn of the given side, evaluated against the oracle input
// passed to PreviewLadder (not the cached snapshot's mid).
type LadderRung struct {
	AmountIn  *uint256.Int
	IsBaseIn  bool
	FeeBps    uint32
	AmountOut *uint256.Int
	Clamped   bool
}

// PreviewLadder computes a size ladder (spec.md §4.9) around s0OverrideWad
// (or the configured S0NotionalWad if nil), pricing each rung against the
// caller-supplied oracle input in. The cached snapshot only gates the call
// (it must exist and, with RevertOnStale, be within MaxAge); its mid and
// other fields are not used for pricing. It never touches persisted
// fee/confidence state: every rung is a fresh Mutate=false pipeline pass.
func (p *Pool) PreviewLadder(rungsBps []uint32, s0OverrideWad *uint256.Int, in oracle.Input) ([]LadderRung, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snapshot.MidWad == nil {
		return nil, fmt.Errorf("pool: preview snapshot not yet populated")
	}
	if p.preview.RevertOnStale {
		_, now := p.clock.Now()
		if now.Sub(time.Unix(p.snapshot.TSUnix, 0)) > p.preview.MaxAge {
			return nil, fmt.Errorf("pool: preview snapshot stale")
		}
	}

	s0 := p.cfg.Maker.S0NotionalWad
	if s0OverrideWad != nil && !s0OverrideWad.IsZero() {
		s0 = s0OverrideWad
	}

	engine, err := p.engineLocked()
	if err != nil {
		return nil, err
	}
	cfg := p.configLocked()
	reserves := p.reservesLocked()

	out := make([]LadderRung, 0, len(rungsBps))
	for _, pctBps := range rungsBps {
		notionalWad, err := fixedpoint.MulDivDown(s0, uint256.NewInt(uint64(pctBps)), uint256.NewInt(10_000))
		if err != nil {
			return nil, err
		}
		baseUnits, err := p.tokens.Scales().WadToBase(notionalWad)
		if err != nil {
			return nil, err
		}
		req := pricing.Request{AmountIn: baseUnits, IsBaseIn: true, Oracle: in, Mutate: false}
		result, _, _, err := engine.Quote(cfg, reserves, p.feeState, p.confState, req)
		if err != nil {
			return nil, err
		}
		out = append(out, LadderRung{
			AmountIn:  baseUnits,
			IsBaseIn:  true,
			FeeBps:    result.FeeBpsUsed,
			AmountOut: result.AmountOut,
			Clamped:   result.IsPartial,
		})
	}
	return out, nil
}

// RebalanceTarget recomputes target_base_xstar as floor((total_notional/2) /
// mid) (spec.md §4.8). auto=true enforces the drift threshold and cooldown
// gates; auto=false (a governance manual call) bypasses both.
func (p *Pool) RebalanceTarget(midWad *uint256.Int, auto bool) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if midWad == nil || midWad.IsZero() {
		return nil, fmt.Errorf("pool: mid_wad must be > 0")
	}

	_, now := p.clock.Now()
	if auto {
		if !p.cfg.Flags.EnableAutoRecenter {
			return nil, fmt.Errorf("pool: auto recenter disabled")
		}
		if p.lastRebalancePrice != nil {
			deltaBps, err := fixedpoint.ToBps(fixedpoint.AbsDiff(midWad, p.lastRebalancePrice), p.lastRebalancePrice)
			if err != nil {
				return nil, err
			}
			thresholdBps := p.cfg.Inventory.RecenterThresholdPct * 100
			if deltaBps < thresholdBps {
				return nil, &RecenterError{Err: ErrRecenterThreshold, DeltaBps: deltaBps, ThresholdBps: thresholdBps}
			}
		}
		if !p.lastRebalanceAt.IsZero() && now.Sub(p.lastRebalanceAt) < p.preview.SnapshotCooldown {
			return nil, ErrRecenterCooldown
		}
	}

	baseWad, err := p.tokens.Scales().BaseToWad(p.reserves.BaseUnits)
	if err != nil {
		return nil, err
	}
	baseNotionalWad, err := fixedpoint.WadMulDown(baseWad, midWad)
	if err != nil {
		return nil, err
	}
	quoteWad, err := p.tokens.Scales().QuoteToWad(p.reserves.QuoteUnits)
	if err != nil {
		return nil, err
	}
	totalWad := new(uint256.Int).Add(baseNotionalWad, quoteWad)
	halfWad := new(uint256.Int).Div(totalWad, uint256.NewInt(2))
	targetBaseWad, err := fixedpoint.WadDivDown(halfWad, midWad)
	if err != nil {
		return nil, err
	}
	newTarget, err := p.tokens.Scales().WadToBase(targetBaseWad)
	if err != nil {
		return nil, err
	}

	old := p.targetBaseXstar
	p.targetBaseXstar = newTarget
	p.lastRebalancePrice = new(uint256.Int).Set(midWad)
	p.lastRebalanceAt = now

	kind := EventManualRebalanceExecuted
	if auto {
		kind = EventTargetBaseXstarUpdated
	}
	p.observer.Emit(Event{
		Kind:          kind,
		TS:            now,
		OldTargetBase: old,
		NewTargetBase: new(uint256.Int).Set(newTarget),
		MidWad:        midWad,
	})
	return new(uint256.Int).Set(newTarget), nil
}
