// Package feepolicy implements the pure, stateful fee function described in
// spec.md §4.4: a per-block decay toward a calm floor, composed with
// confidence/inventory/size/LVR terms and clamped to [base_bps, cap_bps].
package feepolicy

import "fmt"

// State is the FeeState entity.
type State struct {
	LastBlock  uint64
	LastFeeBps uint32
}

// Config is the FeeConfig entity.
type Config struct {
	BaseBps uint32
	CapBps  uint32

	AlphaConfNum uint32
	AlphaConfDen uint32

	BetaInvDevNum uint32
	BetaInvDevDen uint32

	DecayPctPerBlock uint32 // 0..100

	GammaSizeLinBps  uint32
	GammaSizeQuadBps uint32
	SizeFeeCapBps    uint32

	KappaLVRBps uint32

	EnableSizeFee bool
	EnableLVRFee  bool
}

// Validate checks the invariants in the data model.
func (c Config) Validate() error {
	if c.BaseBps > c.CapBps {
		return fmt.Errorf("feepolicy: base_bps must be <= cap_bps")
	}
	if c.AlphaConfDen == 0 || c.BetaInvDevDen == 0 {
		return fmt.Errorf("feepolicy: denominators must be nonzero")
	}
	if c.DecayPctPerBlock > 100 {
		return fmt.Errorf("feepolicy: decay_pct_per_block must be <= 100")
	}
	return nil
}

// Inputs bundles the per-request signal values the fee composition consumes.
type Inputs struct {
	ConfBps   uint32
	InvDevBps uint32
	SizeBps   uint32
	LVRBps    uint32
	Block     uint64
}

// Preview computes (fee_bps, new_state) without requiring the caller to
// decide whether this is a state-mutating call; the caller only persists
// new_state on swap/refresh paths (spec.md §4.4 step 4).
func Preview(prev State, cfg Config, in Inputs) (uint32, State) {
	decayed := decay(prev, cfg, in.Block)
	raw := compose(cfg, in)

	fee := raw
	if decayed > fee {
		fee = decayed
	}
	if fee < cfg.BaseBps {
		fee = cfg.BaseBps
	}
	if fee > cfg.CapBps {
		fee = cfg.CapBps
	}

	newState := State{LastBlock: in.Block, LastFeeBps: fee}
	return fee, newState
}

// decay computes the decayed floor: last_fee - last_fee*min(100,
// decay_pct_per_block*(now-last_block))/100.
func decay(prev State, cfg Config, block uint64) uint32 {
	if prev.LastBlock == 0 && prev.LastFeeBps == 0 {
		return cfg.BaseBps
	}
	if block <= prev.LastBlock {
		return prev.LastFeeBps
	}
	elapsed := block - prev.LastBlock
	decayPct := uint64(cfg.DecayPctPerBlock) * elapsed
	if decayPct > 100 {
		decayPct = 100
	}
	reduction := (uint64(prev.LastFeeBps) * decayPct) / 100
	decayed := uint64(prev.LastFeeBps) - reduction
	if decayed < uint64(cfg.BaseBps) {
		decayed = uint64(cfg.BaseBps)
	}
	return uint32(decayed)
}

// compose computes the raw additive fee from its terms.
func compose(cfg Config, in Inputs) uint32 {
	raw := uint64(cfg.BaseBps)
	raw += (uint64(cfg.AlphaConfNum) * uint64(in.ConfBps)) / uint64(cfg.AlphaConfDen)
	raw += (uint64(cfg.BetaInvDevNum) * uint64(in.InvDevBps)) / uint64(cfg.BetaInvDevDen)

	if cfg.EnableSizeFee {
		size := uint64(cfg.GammaSizeLinBps)*uint64(in.SizeBps) + uint64(cfg.GammaSizeQuadBps)*uint64(in.SizeBps)*uint64(in.SizeBps)
		size /= 10_000
		if cfg.SizeFeeCapBps > 0 && size > uint64(cfg.SizeFeeCapBps) {
			size = uint64(cfg.SizeFeeCapBps)
		}
		raw += size
	}

	if cfg.EnableLVRFee {
		raw += (uint64(cfg.KappaLVRBps) * uint64(in.LVRBps)) / 10_000
	}

	if raw > uint64(cfg.CapBps) {
		raw = uint64(cfg.CapBps)
	}
	return uint32(raw)
}

// LVREstimator is a pluggable closure returning a non-negative LVR estimate
// in bps, per the open-question decision in SPEC_FULL.md §12.2.
type LVREstimator func(sigmaBps uint64, spreadBps uint32) uint32

// ZeroLVREstimator is the default no-op estimator used when enable_lvr_fee
// is false or no estimator is configured.
func ZeroLVREstimator(uint64, uint32) uint32 { return 0 }

// SigmaProportionalLVREstimator is a reference estimator: LVR scales
// linearly with recent volatility (sigma), capped at 10_000 bps. Nothing in
// this module installs it; cmd/dnmmd configures ZeroLVREstimator.
func SigmaProportionalLVREstimator(sigmaBps uint64, _ uint32) uint32 {
	if sigmaBps > 10_000 {
		return 10_000
	}
	return uint32(sigmaBps)
}
