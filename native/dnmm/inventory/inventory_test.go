package inventory

import (
	"testing"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/fixedpoint"
)

func unitScales() Scales {
	return Scales{BaseScale: fixedpoint.WAD, QuoteScale: fixedpoint.WAD}
}

func wad(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), fixedpoint.WAD)
}

func TestAvailableInventory(t *testing.T) {
	reserve := uint256.NewInt(100_000)
	available, err := AvailableInventory(reserve, 300) // 3%
	if err != nil {
		t.Fatalf("available inventory: %v", err)
	}
	if available.Uint64() != 97_000 {
		t.Fatalf("want 97000, got %d", available.Uint64())
	}
}

func TestAvailableInventoryZeroFloor(t *testing.T) {
	reserve := uint256.NewInt(42)
	available, err := AvailableInventory(reserve, 0)
	if err != nil {
		t.Fatalf("available inventory: %v", err)
	}
	if available.Uint64() != 42 {
		t.Fatalf("zero floor should return full reserve")
	}
}

func TestDeviationBpsBalanced(t *testing.T) {
	scales := unitScales()
	mid := fixedpoint.WAD // 1.0
	dev, err := DeviationBps(wad(100), wad(100), wad(100), mid, scales)
	if err != nil {
		t.Fatalf("deviation: %v", err)
	}
	if dev != 0 {
		t.Fatalf("balanced inventory should be zero deviation, got %d", dev)
	}
}

func TestDeviationBpsSkewed(t *testing.T) {
	scales := unitScales()
	mid := fixedpoint.WAD
	// base=60, quote=40, target=50 at mid 1.0: baseN=60 totalN=100 targetN=50
	// deviation = |60-50|/100 = 1000bps
	dev, err := DeviationBps(wad(60), wad(40), wad(50), mid, scales)
	if err != nil {
		t.Fatalf("deviation: %v", err)
	}
	if dev != 1000 {
		t.Fatalf("want 1000 bps, got %d", dev)
	}
}

func TestDeviationBpsZeroTotal(t *testing.T) {
	scales := unitScales()
	mid := fixedpoint.WAD
	dev, err := DeviationBps(wad(0), wad(0), wad(0), mid, scales)
	if err != nil {
		t.Fatalf("deviation: %v", err)
	}
	if dev != 0 {
		t.Fatalf("zero total notional should yield zero deviation")
	}
}

func TestSolveExactInFullFill(t *testing.T) {
	scales := unitScales()
	mid := fixedpoint.WAD
	result, err := SolveExactIn(uint256.NewInt(10), SideBaseIn, mid, 15, uint256.NewInt(10_000_000), 300, scales)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if result.IsPartial {
		t.Fatalf("expected full fill")
	}
	// 10 * 1.0 * (1-0.0015) = 9.985 -> floor to 9 (integer units, no decimals in this scale)
	if result.AmountOut.Uint64() != 9 {
		t.Fatalf("want amount_out=9, got %d", result.AmountOut.Uint64())
	}
}

func TestSolveExactInFloorPartial(t *testing.T) {
	// 0-decimal base, 6-decimal quote: 150 base at mid 1.0 is worth 150_000_000
	// quote units, more than the 97_000_000 left above the floor.
	scales := Scales{BaseScale: uint256.NewInt(1), QuoteScale: uint256.NewInt(1_000_000)}
	mid := fixedpoint.WAD
	// compact pool: base=1000, quote=100_000_000, floor=300bps -> available_out = quote*(1-0.03)
	outputReserve := uint256.NewInt(100_000_000)
	result, err := SolveExactIn(uint256.NewInt(150), SideBaseIn, mid, 0, outputReserve, 300, scales)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !result.IsPartial {
		t.Fatalf("expected partial fill")
	}
	available, _ := AvailableInventory(outputReserve, 300)
	if result.AmountOut.Cmp(available) > 0 {
		t.Fatalf("amount_out must not exceed available inventory")
	}
}

func TestSolveExactInExhausted(t *testing.T) {
	scales := unitScales()
	mid := fixedpoint.WAD
	// floor_bps=10000 means entire reserve is the floor: nothing available.
	_, err := SolveExactIn(uint256.NewInt(10), SideBaseIn, mid, 0, uint256.NewInt(1000), 10000, scales)
	if err != ErrInventoryExhausted {
		t.Fatalf("expected ErrInventoryExhausted, got %v", err)
	}
}
