// Package fixedpoint implements the 18-decimal WAD fixed-point arithmetic
// used throughout the DNMM pricing and settlement pipeline. All prices,
// percentages, and notional values pass through these helpers so rounding
// direction is always explicit at the call site.
package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// WAD is the fixed-point scale: 18 decimal places.
var WAD = uint256.NewInt(1_000_000_000_000_000_000)

// BpsDenom is the basis-point denominator (100% == 10_000 bps).
const BpsDenom = 10_000

var bpsDenomBig = uint256.NewInt(BpsDenom)

// MulDivDown computes floor(x*y/d) using a 512-bit intermediate product so
// no overflow can occur for any combination of 256-bit inputs.
func MulDivDown(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, fmt.Errorf("fixedpoint: division by zero")
	}
	prod := new(big.Int).Mul(x.ToBig(), y.ToBig())
	q := new(big.Int).Div(prod, d.ToBig())
	out, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fmt.Errorf("fixedpoint: mul_div_down overflow")
	}
	return out, nil
}

// MulDivUp computes ceil(x*y/d) using a 512-bit intermediate product.
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, fmt.Errorf("fixedpoint: division by zero")
	}
	prod := new(big.Int).Mul(x.ToBig(), y.ToBig())
	q, r := new(big.Int).QuoRem(prod, d.ToBig(), new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	out, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fmt.Errorf("fixedpoint: mul_div_up overflow")
	}
	return out, nil
}

// WadMulDown multiplies two WAD-scaled values and rounds the result down.
func WadMulDown(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDivDown(x, y, WAD)
}

// WadMulUp multiplies two WAD-scaled values and rounds the result up.
func WadMulUp(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDivUp(x, y, WAD)
}

// WadDivDown divides two WAD-scaled values and rounds the result down.
func WadDivDown(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDivDown(x, WAD, y)
}

// WadDivUp divides two WAD-scaled values and rounds the result up.
func WadDivUp(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDivUp(x, WAD, y)
}

// AbsDiff returns max(a,b) - min(a,b) for unsigned operands.
func AbsDiff(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) >= 0 {
		return new(uint256.Int).Sub(a, b)
	}
	return new(uint256.Int).Sub(b, a)
}

// ToBps computes floor(x*10_000/base), saturating at zero when base is zero.
func ToBps(x, base *uint256.Int) (uint32, error) {
	if base == nil || base.IsZero() {
		return 0, nil
	}
	out, err := MulDivDown(x, bpsDenomBig, base)
	if err != nil {
		return 0, err
	}
	if !out.IsUint64() || out.Uint64() > 0xFFFFFFFF {
		return 0, fmt.Errorf("fixedpoint: bps value exceeds uint32 range")
	}
	return uint32(out.Uint64()), nil
}

// FromUint64 is a convenience constructor for literal WAD/bps values in
// tests and config decoding.
func FromUint64(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// ClampBps clamps v into [lo, hi], all expressed in basis points.
func ClampBps(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MinUint32 returns the smaller of a and b.
func MinUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// MaxUint32 returns the larger of a and b.
func MaxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
