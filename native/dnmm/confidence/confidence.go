// Package confidence implements the sigma EWMA and the weighted confidence
// blend described in spec.md §4.3.
package confidence

import (
	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/fixedpoint"
	"nhbchain/native/dnmm/oracle"
)

// State is the ConfidenceState entity: an EWMA of squared (here: absolute)
// block-to-block mid returns, updated at most once per block.
type State struct {
	SigmaBps         uint64
	LastObservedMid  *uint256.Int
	LastBlock        uint64
}

// Weights configures the confidence blend.
type Weights struct {
	Spread    uint32 // bps of weight applied to spread_bps
	Sigma     uint32 // bps of weight applied to sigma_bps
	Secondary uint32 // bps of weight applied to the secondary-source confidence, strict regime only
}

// Components is the debug decomposition of the confidence blend (spec.md
// §4.3). The pricing engine returns it on every QuoteResult as
// ConfidenceDebug; FeatureFlags.DebugEmit does not gate it and no pool event
// carries it.
type Components struct {
	ConfSpread    uint32
	ConfSigma     uint32
	ConfSecondary uint32
	ConfBlended   uint32
	SigmaBps      uint64
}

// UpdateSigma advances the EWMA at most once per block. lambdaBps is
// sigma_ewma_lambda_bps (0..10000); the update is a no-op if block equals
// state.LastBlock (already consulted this block).
func UpdateSigma(state State, block uint64, currentMidWad *uint256.Int, lambdaBps uint32) State {
	if block == state.LastBlock && state.LastBlock != 0 {
		return state
	}
	if state.LastObservedMid == nil || state.LastObservedMid.IsZero() || currentMidWad == nil {
		return State{SigmaBps: state.SigmaBps, LastObservedMid: currentMidWad, LastBlock: block}
	}
	retBps, err := fixedpoint.ToBps(fixedpoint.AbsDiff(currentMidWad, state.LastObservedMid), state.LastObservedMid)
	if err != nil {
		retBps = 0
	}
	lambda := uint64(lambdaBps)
	newSigma := (lambda*state.SigmaBps + (10_000-lambda)*uint64(retBps)) / 10_000
	return State{SigmaBps: newSigma, LastObservedMid: currentMidWad, LastBlock: block}
}

// Blend computes the blended confidence in bps per spec.md §4.3.
func Blend(blendOn bool, weights Weights, spreadBps uint32, sigmaBps uint64, reading oracle.Reading, capSpot, capStrict uint32) Components {
	cap := capSpot
	if reading.Regime == oracle.RegimeFallback {
		cap = capStrict
	}

	if !blendOn {
		blended := fixedpoint.MinUint32(spreadBps, cap)
		return Components{ConfSpread: spreadBps, ConfBlended: blended, SigmaBps: sigmaBps}
	}

	confSpread := weightedBps(weights.Spread, spreadBps)
	confSigma := weightedBps(weights.Sigma, uint32(sigmaBps))
	var confSecondary uint32
	if reading.Regime == oracle.RegimeFallback {
		confSecondary = weightedBps(weights.Secondary, reading.SecondaryConfBps)
	}

	sum := confSpread + confSigma + confSecondary
	blended := fixedpoint.ClampBps(sum, 0, cap)

	return Components{
		ConfSpread:    confSpread,
		ConfSigma:     confSigma,
		ConfSecondary: confSecondary,
		ConfBlended:   blended,
		SigmaBps:      sigmaBps,
	}
}

func weightedBps(weightBps, valueBps uint32) uint32 {
	return uint32((uint64(weightBps) * uint64(valueBps)) / 10_000)
}
