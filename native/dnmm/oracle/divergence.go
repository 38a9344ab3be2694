package oracle

import (
	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/fixedpoint"
)

// DivergenceOutcome tags the divergence-gate tier a quote fell into.
type DivergenceOutcome uint8

const (
	// DivergenceAccept means the gate passed the mid through unchanged.
	DivergenceAccept DivergenceOutcome = iota
	// DivergenceHaircut means a soft-divergence fee haircut applies.
	DivergenceHaircut
	// DivergenceAOMQ means the soft-divergence tier routes into AOMQ with
	// trigger SOFT.
	DivergenceAOMQ
	// DivergenceReject means the hard cap was exceeded; the request fails.
	DivergenceReject
)

// DivergenceResult is the outcome of the divergence gate for one reading.
type DivergenceResult struct {
	DeltaBps   uint32
	Outcome    DivergenceOutcome
	HaircutBps uint32
}

// Divergence computes the inter-source delta (in bps, relative to the lower
// of the two mids) and applies the monotone tier ladder from spec.md §4.2.
// When the facade's primary-derived reading carries no secondary mid, the
// gate always accepts (there is nothing to cross-check against).
func Divergence(cfg Config, primaryMidWad *uint256.Int, reading Reading) (DivergenceResult, error) {
	if reading.SecondaryMidWad == nil || primaryMidWad == nil || primaryMidWad.IsZero() || reading.SecondaryMidWad.IsZero() {
		return DivergenceResult{Outcome: DivergenceAccept}, nil
	}
	lower := primaryMidWad
	if reading.SecondaryMidWad.Cmp(lower) < 0 {
		lower = reading.SecondaryMidWad
	}
	delta := fixedpoint.AbsDiff(primaryMidWad, reading.SecondaryMidWad)
	deltaBps, err := fixedpoint.ToBps(delta, lower)
	if err != nil {
		return DivergenceResult{}, err
	}

	if !cfg.EnableSoftDivergence {
		if deltaBps > cfg.DivergenceBps {
			return DivergenceResult{DeltaBps: deltaBps, Outcome: DivergenceReject}, nil
		}
		return DivergenceResult{DeltaBps: deltaBps, Outcome: DivergenceAccept}, nil
	}

	switch {
	case deltaBps <= cfg.DivergenceAcceptBps:
		return DivergenceResult{DeltaBps: deltaBps, Outcome: DivergenceAccept}, nil
	case deltaBps <= cfg.DivergenceSoftBps:
		haircut := cfg.HaircutMinBps
		span := cfg.DivergenceSoftBps - cfg.DivergenceAcceptBps
		if span > 0 {
			extra := (cfg.HaircutSlopeBps * (deltaBps - cfg.DivergenceAcceptBps)) / span
			haircut += extra
		}
		return DivergenceResult{DeltaBps: deltaBps, Outcome: DivergenceHaircut, HaircutBps: haircut}, nil
	case deltaBps <= cfg.DivergenceHardBps:
		return DivergenceResult{DeltaBps: deltaBps, Outcome: DivergenceAOMQ}, nil
	default:
		return DivergenceResult{DeltaBps: deltaBps, Outcome: DivergenceReject}, nil
	}
}
