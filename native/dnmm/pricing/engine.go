package pricing

import (
	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/confidence"
	"nhbchain/native/dnmm/feepolicy"
	"nhbchain/native/dnmm/fixedpoint"
	"nhbchain/native/dnmm/inventory"
	"nhbchain/native/dnmm/oracle"
)

// Reserves is the subset of the Reserves entity the pricing engine needs.
type Reserves struct {
	BaseUnits  *uint256.Int
	QuoteUnits *uint256.Int
}

// Request bundles one quote/swap call's inputs.
type Request struct {
	AmountIn   *uint256.Int
	IsBaseIn   bool
	Oracle     oracle.Input
	Block      uint64
	Mutate     bool
}

// QuoteResult is the QuoteResult value returned to callers (spec.md §4.6 step 9).
type QuoteResult struct {
	MidUsed      *uint256.Int
	FeeBpsUsed   uint32
	AmountOut    *uint256.Int
	AppliedIn    *uint256.Int
	IsPartial    bool
	UsedFallback bool
	Reason       oracle.Reason

	AOMQTriggered bool
	AOMQTrigger   AOMQTrigger

	DivergenceOutcome oracle.DivergenceOutcome
	DivergenceDeltaBps uint32

	ConfidenceDebug confidence.Components
}

// Engine evaluates the end-to-end pricing pipeline (spec.md §4.6) given an
// explicit, caller-owned state snapshot. It holds no fee or confidence state
// itself (its oracle Facade only tracks the latest block timestamp seen) —
// the caller (Pool) decides whether to persist the returned FeeState/
// ConfidenceState, which is what makes preview/settlement parity (spec.md
// §4.9) hold by construction.
type Engine struct {
	oracleFacade *oracle.Facade
}

// NewEngine constructs an Engine bound to the supplied oracle configuration.
func NewEngine(cfg oracle.Config) (*Engine, error) {
	facade, err := oracle.NewFacade(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{oracleFacade: facade}, nil
}

// Quote runs the full pipeline. feeState/confState are the caller's current
// persisted state; the returned states are what the caller should persist
// if, and only if, req.Mutate is true.
func (e *Engine) Quote(
	cfg Config,
	reserves Reserves,
	feeState feepolicy.State,
	confState confidence.State,
	req Request,
) (QuoteResult, feepolicy.State, confidence.State, error) {
	reading, err := e.oracleFacade.Resolve(req.Oracle)
	if err != nil {
		return QuoteResult{}, feeState, confState, err
	}

	divResult, err := oracle.Divergence(cfg.Oracle, reading.MidWad, reading)
	if err != nil {
		return QuoteResult{}, feeState, confState, err
	}
	if divResult.Outcome == oracle.DivergenceReject {
		cap := cfg.Oracle.DivergenceHardBps
		if !cfg.Oracle.EnableSoftDivergence {
			cap = cfg.Oracle.DivergenceBps
		}
		return QuoteResult{}, feeState, confState, &DivergedError{DeltaBps: divResult.DeltaBps, CapBps: cap}
	}

	usedFallback := reading.Reason != oracle.ReasonNone

	newConfState := confState
	if req.Mutate {
		newConfState = confidence.UpdateSigma(confState, req.Block, reading.MidWad, cfg.Oracle.SigmaEWMALambdaBps)
	}
	sigmaBps := confState.SigmaBps
	if req.Mutate {
		sigmaBps = newConfState.SigmaBps
	}

	confComponents := confidence.Blend(cfg.Flags.BlendOn, cfg.Blend, reading.SpreadBps, sigmaBps, reading, cfg.Oracle.ConfCapBpsSpot, cfg.Oracle.ConfCapBpsStrict)

	devBps, baseHeavy, err := inventory.SignedDeviation(reserves.BaseUnits, reserves.QuoteUnits, cfg.Inventory.TargetBaseXstar, reading.MidWad, cfg.Scales)
	if err != nil {
		return QuoteResult{}, feeState, confState, err
	}

	notionalWad, side, err := notionalOf(req, reading.MidWad, cfg.Scales)
	if err != nil {
		return QuoteResult{}, feeState, confState, err
	}
	sizeBps, err := fixedpoint.ToBps(notionalWad, cfg.Maker.S0NotionalWad)
	if err != nil {
		return QuoteResult{}, feeState, confState, err
	}

	lvrBps := uint32(0)
	if cfg.Flags.EnableLVRFee && cfg.LVREstimator != nil {
		lvrBps = cfg.LVREstimator(sigmaBps, reading.SpreadBps)
	}

	feeBps, newFeeState := feepolicy.Preview(feeState, cfg.Fee, feepolicy.Inputs{
		ConfBps:   confComponents.ConfBlended,
		InvDevBps: devBps,
		SizeBps:   sizeBps,
		LVRBps:    lvrBps,
		Block:     req.Block,
	})

	if cfg.Flags.EnableInvTilt {
		tiltBps := inventoryTiltBps(cfg.Inventory, devBps, confComponents.ConfBlended, reading.SpreadBps)
		feeBps = applyTilt(feeBps, tiltBps, req.IsBaseIn, baseHeavy)
	}
	if cfg.Flags.EnableBBOFloor {
		feeBps = applyBBOFloor(feeBps, cfg.Maker, reading.SpreadBps)
	}
	if divResult.Outcome == oracle.DivergenceHaircut {
		feeBps += divResult.HaircutBps
	}
	if feeBps > cfg.Fee.CapBps {
		feeBps = cfg.Fee.CapBps
	}

	outputReserve := reserves.QuoteUnits
	if side == inventory.SideQuoteIn {
		outputReserve = reserves.BaseUnits
	}
	solveResult, err := inventory.SolveExactIn(req.AmountIn, side, reading.MidWad, feeBps, outputReserve, cfg.Inventory.FloorBps, cfg.Scales)
	if err != nil {
		return QuoteResult{}, feeState, confState, err
	}

	reason := reading.Reason
	if solveResult.IsPartial {
		reason = oracle.ReasonFloor
	}

	result := QuoteResult{
		MidUsed:            reading.MidWad,
		FeeBpsUsed:         feeBps,
		AmountOut:          solveResult.AmountOut,
		AppliedIn:          solveResult.AppliedIn,
		IsPartial:          solveResult.IsPartial,
		UsedFallback:       usedFallback,
		Reason:             reason,
		DivergenceOutcome:  divResult.Outcome,
		DivergenceDeltaBps: divResult.DeltaBps,
		ConfidenceDebug:    confComponents,
	}

	triggered, trigger := aomqTriggered(
		cfg.Flags.EnableAOMQ,
		divResult.Outcome == oracle.DivergenceAOMQ,
		solveResult,
		outputReserve,
		cfg.Inventory.FloorBps,
		cfg.Aomq.FloorEpsilonBps,
		usedFallback,
	)
	if triggered {
		micro, microFee, err := clampToMicroQuote(cfg.Aomq, side, reading.MidWad, feeBps, cfg.Fee.CapBps, cfg.Scales)
		if err != nil {
			return QuoteResult{}, feeState, confState, err
		}
		result.AppliedIn = micro.AppliedIn
		result.AmountOut = micro.AmountOut
		result.IsPartial = true
		result.FeeBpsUsed = microFee
		result.AOMQTriggered = true
		result.AOMQTrigger = trigger
		result.Reason = oracle.ReasonAOMQ
	}

	if !req.Mutate {
		return result, feeState, confState, nil
	}
	return result, newFeeState, newConfState, nil
}

func notionalOf(req Request, midWad *uint256.Int, scales inventory.Scales) (*uint256.Int, inventory.Side, error) {
	if req.IsBaseIn {
		inWad, err := scales.BaseToWad(req.AmountIn)
		if err != nil {
			return nil, inventory.SideBaseIn, err
		}
		notional, err := fixedpoint.WadMulDown(inWad, midWad)
		return notional, inventory.SideBaseIn, err
	}
	inWad, err := scales.QuoteToWad(req.AmountIn)
	if err != nil {
		return nil, inventory.SideQuoteIn, err
	}
	return inWad, inventory.SideQuoteIn, nil
}
