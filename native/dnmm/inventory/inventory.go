// Package inventory implements scale conversion between token units and WAD,
// inventory deviation-from-target accounting, and the exact-in partial-fill
// solver that protects the floor on the output-side reserve.
package inventory

import (
	"fmt"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/fixedpoint"
)

// Scales describes the base-10 scaling factors that convert native token
// units into WAD (18 decimal) fixed point, for each leg of the pair. Both
// must be powers of ten.
type Scales struct {
	BaseScale  *uint256.Int
	QuoteScale *uint256.Int
}

// BaseToWad scales a native-unit base amount into WAD.
func (s Scales) BaseToWad(units *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.MulDivDown(units, fixedpoint.WAD, s.BaseScale)
}

// QuoteToWad scales a native-unit quote amount into WAD.
func (s Scales) QuoteToWad(units *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.MulDivDown(units, fixedpoint.WAD, s.QuoteScale)
}

// WadToBase converts a WAD amount back into base native units, rounding down.
func (s Scales) WadToBase(wad *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.MulDivDown(wad, s.BaseScale, fixedpoint.WAD)
}

// WadToQuote converts a WAD amount back into quote native units, rounding down.
func (s Scales) WadToQuote(wad *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.MulDivDown(wad, s.QuoteScale, fixedpoint.WAD)
}

// AvailableInventory returns reserve - floor(reserve*floor_bps/10_000), the
// largest amount of the reserve that may be drawn down while respecting the
// configured floor.
func AvailableInventory(reserve *uint256.Int, floorBps uint32) (*uint256.Int, error) {
	if floorBps == 0 {
		return new(uint256.Int).Set(reserve), nil
	}
	floor, err := fixedpoint.MulDivDown(reserve, uint256.NewInt(uint64(floorBps)), uint256.NewInt(fixedpoint.BpsDenom))
	if err != nil {
		return nil, err
	}
	if floor.Cmp(reserve) >= 0 {
		return uint256.NewInt(0), nil
	}
	return new(uint256.Int).Sub(reserve, floor), nil
}

// FloorAmount returns floor(reserve*floor_bps/10_000), the minimum balance
// that must remain in the reserve after any swap.
func FloorAmount(reserve *uint256.Int, floorBps uint32) (*uint256.Int, error) {
	return fixedpoint.MulDivDown(reserve, uint256.NewInt(uint64(floorBps)), uint256.NewInt(fixedpoint.BpsDenom))
}

// DeviationBps computes the inventory deviation-from-target in basis points:
// baseN = base_wad*mid/WAD; totalN = baseN+quote_wad; targetN = target_wad*mid/WAD;
// deviation = to_bps(|baseN-targetN|, totalN), with totalN==0 -> 0.
func DeviationBps(baseUnits, quoteUnits, targetBaseUnits *uint256.Int, midWad *uint256.Int, scales Scales) (uint32, error) {
	baseWad, err := scales.BaseToWad(baseUnits)
	if err != nil {
		return 0, err
	}
	quoteWad, err := scales.QuoteToWad(quoteUnits)
	if err != nil {
		return 0, err
	}
	targetWad, err := scales.BaseToWad(targetBaseUnits)
	if err != nil {
		return 0, err
	}
	baseN, err := fixedpoint.WadMulDown(baseWad, midWad)
	if err != nil {
		return 0, err
	}
	targetN, err := fixedpoint.WadMulDown(targetWad, midWad)
	if err != nil {
		return 0, err
	}
	totalN := new(uint256.Int).Add(baseN, quoteWad)
	if totalN.IsZero() {
		return 0, nil
	}
	diff := fixedpoint.AbsDiff(baseN, targetN)
	return fixedpoint.ToBps(diff, totalN)
}

// SignedDeviation reports whether the base-notional is above (true) or at/below
// (false) the target-notional, alongside the unsigned deviation in bps. Used
// by the inventory-tilt computation in the pricing engine to decide which
// side to widen.
func SignedDeviation(baseUnits, quoteUnits, targetBaseUnits *uint256.Int, midWad *uint256.Int, scales Scales) (devBps uint32, baseHeavy bool, err error) {
	devBps, err = DeviationBps(baseUnits, quoteUnits, targetBaseUnits, midWad, scales)
	if err != nil {
		return 0, false, err
	}
	baseWad, err := scales.BaseToWad(baseUnits)
	if err != nil {
		return 0, false, err
	}
	quoteWad, err := scales.QuoteToWad(quoteUnits)
	if err != nil {
		return 0, false, err
	}
	targetWad, err := scales.BaseToWad(targetBaseUnits)
	if err != nil {
		return 0, false, err
	}
	baseN, err := fixedpoint.WadMulDown(baseWad, midWad)
	if err != nil {
		return 0, false, err
	}
	targetN, err := fixedpoint.WadMulDown(targetWad, midWad)
	if err != nil {
		return 0, false, err
	}
	_ = quoteWad
	return devBps, baseN.Cmp(targetN) > 0, nil
}

// Side identifies which leg of the pair is being supplied as input.
type Side uint8

const (
	// SideBaseIn means the taker supplies base and receives quote.
	SideBaseIn Side = iota
	// SideQuoteIn means the taker supplies quote and receives base.
	SideQuoteIn
)

// SolveResult captures the outcome of the exact-in partial-fill solver.
type SolveResult struct {
	AppliedIn  *uint256.Int
	AmountOut  *uint256.Int
	IsPartial  bool
}

// ErrInventoryExhausted indicates the output-side reserve is already at or
// below its floor, so no input amount (however small) can be filled.
var ErrInventoryExhausted = fmt.Errorf("inventory: output reserve already at floor")

// SolveExactIn computes the largest input that keeps the output-side reserve
// at or above its floor, given a requested input, side, mid price, an
// already-determined fee in bps, and the floor/scale configuration.
//
// out = in * mid * (1 - fee) * scale_adj, clamped to available_out; the
// applied input is then back-solved from the clamped output so the solver
// never credits extra output. Ties round the applied input down.
func SolveExactIn(
	requestedIn *uint256.Int,
	side Side,
	midWad *uint256.Int,
	feeBps uint32,
	outputReserve *uint256.Int,
	floorBps uint32,
	scales Scales,
) (SolveResult, error) {
	available, err := AvailableInventory(outputReserve, floorBps)
	if err != nil {
		return SolveResult{}, err
	}
	if available.IsZero() {
		return SolveResult{}, ErrInventoryExhausted
	}

	feeFactor := new(uint256.Int).Sub(uint256.NewInt(fixedpoint.BpsDenom), uint256.NewInt(uint64(feeBps)))

	// fullOut: the output amount if the entire requested input were filled.
	fullOutWad, err := grossOutWad(requestedIn, side, midWad, feeFactor, scales)
	if err != nil {
		return SolveResult{}, err
	}
	fullOutUnits, err := toOutputUnits(fullOutWad, side, scales)
	if err != nil {
		return SolveResult{}, err
	}

	if fullOutUnits.Cmp(available) <= 0 {
		return SolveResult{AppliedIn: new(uint256.Int).Set(requestedIn), AmountOut: fullOutUnits, IsPartial: false}, nil
	}

	// Clamp to available and back-solve the applied input.
	appliedIn, err := backSolveIn(available, side, midWad, feeFactor, scales)
	if err != nil {
		return SolveResult{}, err
	}
	if appliedIn.Cmp(requestedIn) > 0 {
		appliedIn = new(uint256.Int).Set(requestedIn)
	}
	// Recompute the actual output for the (possibly rounded-down) applied
	// input so we never credit more than the floor allows.
	appliedOutWad, err := grossOutWad(appliedIn, side, midWad, feeFactor, scales)
	if err != nil {
		return SolveResult{}, err
	}
	appliedOutUnits, err := toOutputUnits(appliedOutWad, side, scales)
	if err != nil {
		return SolveResult{}, err
	}
	if appliedOutUnits.Cmp(available) > 0 {
		appliedOutUnits = new(uint256.Int).Set(available)
	}
	return SolveResult{AppliedIn: appliedIn, AmountOut: appliedOutUnits, IsPartial: true}, nil
}

func grossOutWad(inUnits *uint256.Int, side Side, midWad *uint256.Int, feeFactor *uint256.Int, scales Scales) (*uint256.Int, error) {
	var inWad *uint256.Int
	var err error
	if side == SideBaseIn {
		inWad, err = scales.BaseToWad(inUnits)
	} else {
		inWad, err = scales.QuoteToWad(inUnits)
	}
	if err != nil {
		return nil, err
	}
	var grossWad *uint256.Int
	if side == SideBaseIn {
		grossWad, err = fixedpoint.WadMulDown(inWad, midWad)
	} else {
		grossWad, err = fixedpoint.WadDivDown(inWad, midWad)
	}
	if err != nil {
		return nil, err
	}
	netWad, err := fixedpoint.MulDivDown(grossWad, feeFactor, uint256.NewInt(fixedpoint.BpsDenom))
	if err != nil {
		return nil, err
	}
	return netWad, nil
}

func toOutputUnits(outWad *uint256.Int, side Side, scales Scales) (*uint256.Int, error) {
	if side == SideBaseIn {
		return scales.WadToQuote(outWad)
	}
	return scales.WadToBase(outWad)
}

// backSolveIn inverts grossOutWad for a target output amount, rounding the
// applied input down so the solver never overshoots the floor.
func backSolveIn(targetOutUnits *uint256.Int, side Side, midWad *uint256.Int, feeFactor *uint256.Int, scales Scales) (*uint256.Int, error) {
	var targetOutWad *uint256.Int
	var err error
	if side == SideBaseIn {
		targetOutWad, err = scales.QuoteToWad(targetOutUnits)
	} else {
		targetOutWad, err = scales.BaseToWad(targetOutUnits)
	}
	if err != nil {
		return nil, err
	}
	if feeFactor.IsZero() {
		return uint256.NewInt(0), nil
	}
	grossWad, err := fixedpoint.MulDivDown(targetOutWad, uint256.NewInt(fixedpoint.BpsDenom), feeFactor)
	if err != nil {
		return nil, err
	}
	var inWad *uint256.Int
	if side == SideBaseIn {
		inWad, err = fixedpoint.WadDivDown(grossWad, midWad)
	} else {
		inWad, err = fixedpoint.WadMulDown(grossWad, midWad)
	}
	if err != nil {
		return nil, err
	}
	if side == SideBaseIn {
		return scales.WadToBase(inWad)
	}
	return scales.WadToQuote(inWad)
}
