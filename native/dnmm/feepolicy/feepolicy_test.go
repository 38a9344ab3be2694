package feepolicy

import "testing"

func calmConfig() Config {
	return Config{
		BaseBps:       15,
		CapBps:        150,
		AlphaConfNum:  60,
		AlphaConfDen:  100,
		BetaInvDevNum: 10,
		BetaInvDevDen: 100,
		DecayPctPerBlock: 20,
	}
}

func TestCalmPricingFee(t *testing.T) {
	cfg := calmConfig()
	fee, _ := Preview(State{}, cfg, Inputs{ConfBps: 0, InvDevBps: 0, Block: 1})
	if fee != 15 {
		t.Fatalf("calm pricing should yield base fee 15, got %d", fee)
	}
}

func TestCapEnvelope(t *testing.T) {
	cfg := calmConfig()
	fee, _ := Preview(State{}, cfg, Inputs{ConfBps: 10_000, InvDevBps: 10_000, Block: 1})
	if fee < cfg.BaseBps || fee > cfg.CapBps {
		t.Fatalf("fee %d outside [%d,%d]", fee, cfg.BaseBps, cfg.CapBps)
	}
	if fee != cfg.CapBps {
		t.Fatalf("extreme inputs should clamp to cap, got %d", fee)
	}
}

func TestFeeMonotonicInSpread(t *testing.T) {
	cfg := calmConfig()
	feeLow, _ := Preview(State{}, cfg, Inputs{ConfBps: 50, Block: 1})
	feeHigh, _ := Preview(State{}, cfg, Inputs{ConfBps: 500, Block: 1})
	if feeHigh < feeLow {
		t.Fatalf("fee should be non-decreasing in confidence: low=%d high=%d", feeLow, feeHigh)
	}
}

func TestFeeMonotonicInInventoryDeviation(t *testing.T) {
	cfg := calmConfig()
	feeLow, _ := Preview(State{}, cfg, Inputs{InvDevBps: 100, Block: 1})
	feeHigh, _ := Preview(State{}, cfg, Inputs{InvDevBps: 2000, Block: 1})
	if feeHigh < feeLow {
		t.Fatalf("fee should be non-decreasing in inventory deviation: low=%d high=%d", feeLow, feeHigh)
	}
}

func TestFeeDecayConvergesToBase(t *testing.T) {
	cfg := calmConfig()
	_, state := Preview(State{}, cfg, Inputs{ConfBps: 400, Block: 1})
	if state.LastFeeBps <= cfg.BaseBps {
		t.Fatalf("spike should push fee above base")
	}
	last := state.LastFeeBps
	for block := uint64(2); block <= 20; block++ {
		fee, next := Preview(state, cfg, Inputs{ConfBps: 0, InvDevBps: 0, Block: block})
		maxDrop := (uint64(last) * uint64(cfg.DecayPctPerBlock)) / 100
		if uint64(last)-uint64(fee) > maxDrop {
			t.Fatalf("block %d: fee dropped more than decay_pct_per_block allows (last=%d fee=%d maxDrop=%d)", block, last, fee, maxDrop)
		}
		last = fee
		state = next
	}
	if last != cfg.BaseBps {
		t.Fatalf("fee should converge to base within bounded blocks, got %d", last)
	}
}

func TestInventoryDeviationContribution(t *testing.T) {
	cfg := calmConfig()
	fee, _ := Preview(State{}, cfg, Inputs{InvDevBps: 2000, Block: 1})
	// raw = 15 + 10*2000/100 = 15+200 = 215, clamped to cap=150
	if fee != cfg.CapBps {
		t.Fatalf("expected clamp to cap 150, got %d", fee)
	}
}

func TestSizeFeeSkippedUnlessEnabled(t *testing.T) {
	cfg := calmConfig()
	cfg.GammaSizeLinBps = 500
	fee, _ := Preview(State{}, cfg, Inputs{SizeBps: 1000, Block: 1})
	if fee != cfg.BaseBps {
		t.Fatalf("size fee should be skipped when disabled, got %d", fee)
	}
	cfg.EnableSizeFee = true
	fee2, _ := Preview(State{}, cfg, Inputs{SizeBps: 1000, Block: 1})
	if fee2 <= cfg.BaseBps {
		t.Fatalf("size fee should apply once enabled")
	}
}

func TestLVRFeeSkippedUnlessEnabled(t *testing.T) {
	cfg := calmConfig()
	cfg.KappaLVRBps = 5000
	fee, _ := Preview(State{}, cfg, Inputs{LVRBps: 100, Block: 1})
	if fee != cfg.BaseBps {
		t.Fatalf("lvr fee should be skipped when disabled, got %d", fee)
	}
	cfg.EnableLVRFee = true
	fee2, _ := Preview(State{}, cfg, Inputs{LVRBps: 100, Block: 1})
	if fee2 <= cfg.BaseBps {
		t.Fatalf("lvr fee should apply once enabled")
	}
}
