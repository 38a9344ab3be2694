package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestMulDivDownRoundsTowardZero(t *testing.T) {
	x := uint256.NewInt(10)
	y := uint256.NewInt(3)
	d := uint256.NewInt(3)
	got, err := MulDivDown(x, y, d)
	if err != nil {
		t.Fatalf("mul_div_down failed: %v", err)
	}
	if got.Uint64() != 10 {
		t.Fatalf("want 10, got %d", got.Uint64())
	}

	// 10*1/3 = 3.33 -> floor 3
	got, err = MulDivDown(uint256.NewInt(10), uint256.NewInt(1), uint256.NewInt(3))
	if err != nil {
		t.Fatalf("mul_div_down failed: %v", err)
	}
	if got.Uint64() != 3 {
		t.Fatalf("want 3, got %d", got.Uint64())
	}
}

func TestMulDivUpRoundsAway(t *testing.T) {
	got, err := MulDivUp(uint256.NewInt(10), uint256.NewInt(1), uint256.NewInt(3))
	if err != nil {
		t.Fatalf("mul_div_up failed: %v", err)
	}
	if got.Uint64() != 4 {
		t.Fatalf("want 4, got %d", got.Uint64())
	}
}

func TestMulDivDivisionByZero(t *testing.T) {
	if _, err := MulDivDown(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0)); err == nil {
		t.Fatalf("expected division by zero error")
	}
}

func TestWadMulDivRoundTrip(t *testing.T) {
	oneAndHalf := new(uint256.Int).Mul(WAD, uint256.NewInt(3))
	oneAndHalf.Div(oneAndHalf, uint256.NewInt(2)) // 1.5 WAD

	two := new(uint256.Int).Mul(WAD, uint256.NewInt(2))
	got, err := WadMulDown(oneAndHalf, two)
	if err != nil {
		t.Fatalf("wad_mul_down: %v", err)
	}
	want := new(uint256.Int).Mul(WAD, uint256.NewInt(3))
	if got.Cmp(want) != 0 {
		t.Fatalf("want %s, got %s", want, got)
	}
}

func TestAbsDiffUnsigned(t *testing.T) {
	a := uint256.NewInt(5)
	b := uint256.NewInt(9)
	if AbsDiff(a, b).Uint64() != 4 {
		t.Fatalf("abs_diff(5,9) should be 4")
	}
	if AbsDiff(b, a).Uint64() != 4 {
		t.Fatalf("abs_diff(9,5) should be 4")
	}
}

func TestToBpsZeroBase(t *testing.T) {
	got, err := ToBps(uint256.NewInt(100), uint256.NewInt(0))
	if err != nil {
		t.Fatalf("to_bps zero base should not error: %v", err)
	}
	if got != 0 {
		t.Fatalf("to_bps zero base should be zero, got %d", got)
	}
}

func TestToBpsBasic(t *testing.T) {
	// 2000/10000 of base = 2000 bps... but formula is x*10000/base.
	got, err := ToBps(uint256.NewInt(2000), uint256.NewInt(10000))
	if err != nil {
		t.Fatalf("to_bps: %v", err)
	}
	if got != 2000 {
		t.Fatalf("want 2000 bps, got %d", got)
	}
}

func TestClampBps(t *testing.T) {
	if ClampBps(5, 10, 20) != 10 {
		t.Fatalf("clamp below lo failed")
	}
	if ClampBps(25, 10, 20) != 20 {
		t.Fatalf("clamp above hi failed")
	}
	if ClampBps(15, 10, 20) != 15 {
		t.Fatalf("clamp within range should be unchanged")
	}
}
