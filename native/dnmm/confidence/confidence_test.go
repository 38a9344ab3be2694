package confidence

import (
	"testing"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/fixedpoint"
	"nhbchain/native/dnmm/oracle"
)

func wad(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), fixedpoint.WAD)
}

func TestUpdateSigmaFirstObservation(t *testing.T) {
	state := State{}
	next := UpdateSigma(state, 1, wad(1), 8000)
	if next.SigmaBps != 0 {
		t.Fatalf("first observation should not move sigma, got %d", next.SigmaBps)
	}
	if next.LastBlock != 1 {
		t.Fatalf("last block should update")
	}
}

func TestUpdateSigmaOncePerBlock(t *testing.T) {
	state := State{SigmaBps: 10, LastObservedMid: wad(1), LastBlock: 5}
	next := UpdateSigma(state, 5, wad(2), 8000)
	if next.SigmaBps != 10 {
		t.Fatalf("sigma should not update twice in the same block")
	}
}

func TestUpdateSigmaEWMA(t *testing.T) {
	state := State{SigmaBps: 0, LastObservedMid: wad(1), LastBlock: 1}
	// price moves from 1.0 to 1.01 (100bps return)
	moved := new(uint256.Int).Div(new(uint256.Int).Mul(wad(1), uint256.NewInt(10100)), uint256.NewInt(10000))
	next := UpdateSigma(state, 2, moved, 8000) // lambda=0.8
	want := uint64((8000*0 + 2000*100) / 10000)
	if next.SigmaBps != want {
		t.Fatalf("want sigma=%d, got %d", want, next.SigmaBps)
	}
}

func TestBlendOff(t *testing.T) {
	c := Blend(false, Weights{}, 300, 50, oracle.Reading{}, 500, 1500)
	if c.ConfBlended != 300 {
		t.Fatalf("blend off should pass through min(spread,cap), got %d", c.ConfBlended)
	}
}

func TestBlendOnClampsToCap(t *testing.T) {
	weights := Weights{Spread: 10_000, Sigma: 10_000, Secondary: 10_000}
	c := Blend(true, weights, 1000, 1000, oracle.Reading{Regime: oracle.RegimeSpot}, 500, 1500)
	if c.ConfBlended != 500 {
		t.Fatalf("blend should clamp to spot cap 500, got %d", c.ConfBlended)
	}
}

func TestBlendOnStrictRegimeIncludesSecondary(t *testing.T) {
	weights := Weights{Spread: 5000, Sigma: 0, Secondary: 10_000}
	reading := oracle.Reading{Regime: oracle.RegimeFallback, SecondaryConfBps: 100}
	c := Blend(true, weights, 200, 0, reading, 500, 1500)
	if c.ConfSecondary != 100 {
		t.Fatalf("expected secondary confidence contribution of 100, got %d", c.ConfSecondary)
	}
}
