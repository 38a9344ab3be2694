package pricing

import (
	"testing"
	"time"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/confidence"
	"nhbchain/native/dnmm/feepolicy"
	"nhbchain/native/dnmm/fixedpoint"
	"nhbchain/native/dnmm/inventory"
	"nhbchain/native/dnmm/oracle"
)

func wad(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), fixedpoint.WAD)
}

func unitScales() inventory.Scales {
	return inventory.Scales{BaseScale: fixedpoint.WAD, QuoteScale: fixedpoint.WAD}
}

func baseTestConfig() Config {
	return Config{
		Oracle: oracle.Config{
			MaxAge:               5 * time.Second,
			StallWindow:          30 * time.Second,
			ConfCapBpsSpot:       500,
			ConfCapBpsStrict:     1500,
			DivergenceBps:        200,
			DivergenceAcceptBps:  50,
			DivergenceSoftBps:    150,
			DivergenceHardBps:    200,
			HaircutMinBps:        5,
			HaircutSlopeBps:      20,
			AllowEMAFallback:     true,
			EnableSoftDivergence: true,
		},
		Fee: feepolicy.Config{
			BaseBps:          15,
			CapBps:           150,
			AlphaConfNum:     60,
			AlphaConfDen:     100,
			BetaInvDevNum:    10,
			BetaInvDevDen:    100,
			DecayPctPerBlock: 20,
		},
		Inventory: InventoryConfig{
			TargetBaseXstar: uint256.NewInt(100_000),
			FloorBps:        300,
		},
		Maker: MakerConfig{
			S0NotionalWad: wad(1_000),
		},
		Aomq: AomqConfig{
			MinQuoteNotional:   uint256.NewInt(10),
			EmergencySpreadBps: 100,
			FloorEpsilonBps:    50,
		},
		Flags:  FeatureFlags{},
		Scales: unitScales(),
	}
}

func primaryInput(mid uint64, spreadBps uint32, ts time.Time) oracle.Input {
	in := oracle.Input{BlockTimestamp: ts}
	in.Primary.Mid = &oracle.PrimaryMid{Mid: wad(mid), Age: time.Second}
	in.Primary.Book = &oracle.PrimaryBook{Bid: wad(mid), Ask: wad(mid), SpreadBps: spreadBps, Age: time.Second}
	return in
}

func TestCalmPricingScenario(t *testing.T) {
	cfg := baseTestConfig()
	engine, err := NewEngine(cfg.Oracle)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	reserves := Reserves{BaseUnits: uint256.NewInt(100_000), QuoteUnits: uint256.NewInt(10_000_000)}

	req := Request{
		AmountIn: uint256.NewInt(10),
		IsBaseIn: true,
		Oracle:   primaryInput(1, 0, time.Unix(1000, 0)),
		Block:    1,
		Mutate:   true,
	}
	result, _, _, err := engine.Quote(cfg, reserves, feepolicy.State{}, confidence.State{}, req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.FeeBpsUsed != 15 {
		t.Fatalf("want fee 15, got %d", result.FeeBpsUsed)
	}
	if result.AmountOut.Uint64() != 9 {
		t.Fatalf("want amount_out=9, got %d", result.AmountOut.Uint64())
	}
}

func TestEMAFallbackScenario(t *testing.T) {
	cfg := baseTestConfig()
	engine, _ := NewEngine(cfg.Oracle)
	reserves := Reserves{BaseUnits: uint256.NewInt(100_000), QuoteUnits: uint256.NewInt(10_000_000)}

	in := oracle.Input{BlockTimestamp: time.Unix(1000, 0)}
	in.Primary.Mid = &oracle.PrimaryMid{Mid: wad(1), Age: time.Second}
	in.Primary.Book = &oracle.PrimaryBook{Bid: wad(1), Ask: wad(1), SpreadBps: 1000, Age: time.Second}
	in.Primary.EMA = &oracle.PrimaryEMA{Mid: wad(1), Age: 10 * time.Second}

	req := Request{AmountIn: uint256.NewInt(10), IsBaseIn: true, Oracle: in, Block: 1, Mutate: true}
	result, _, _, err := engine.Quote(cfg, reserves, feepolicy.State{}, confidence.State{}, req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.Reason != oracle.ReasonEMA || !result.UsedFallback {
		t.Fatalf("expected EMA fallback, got %v", result.Reason)
	}
}

func TestHardDivergenceRejects(t *testing.T) {
	cfg := baseTestConfig()
	engine, _ := NewEngine(cfg.Oracle)
	reserves := Reserves{BaseUnits: uint256.NewInt(100_000), QuoteUnits: uint256.NewInt(10_000_000)}

	in := primaryInput(1, 0, time.Unix(1000, 0))
	secMid := new(uint256.Int).Div(new(uint256.Int).Mul(wad(1), uint256.NewInt(11200)), uint256.NewInt(10000))
	in.Secondary = &oracle.SecondaryReading{
		Base:  oracle.SecondaryLeg{Mid: secMid, ConfBps: 10, Age: time.Second},
		Quote: oracle.SecondaryLeg{Mid: wad(1), ConfBps: 10, Age: time.Second},
	}

	req := Request{AmountIn: uint256.NewInt(10), IsBaseIn: true, Oracle: in, Block: 1, Mutate: true}
	_, _, _, err := engine.Quote(cfg, reserves, feepolicy.State{}, confidence.State{}, req)
	diverged, ok := err.(*DivergedError)
	if !ok {
		t.Fatalf("expected DivergedError, got %v", err)
	}
	if diverged.CapBps != cfg.Oracle.DivergenceHardBps {
		t.Fatalf("unexpected cap %d", diverged.CapBps)
	}
}

func TestFloorPartialFillScenario(t *testing.T) {
	cfg := baseTestConfig()
	cfg.Inventory.FloorBps = 300
	cfg.Inventory.TargetBaseXstar = uint256.NewInt(1_000)
	engine, _ := NewEngine(cfg.Oracle)
	reserves := Reserves{BaseUnits: uint256.NewInt(1_000), QuoteUnits: uint256.NewInt(100_000_000)}

	req := Request{AmountIn: uint256.NewInt(150_000_000), IsBaseIn: true, Oracle: primaryInput(1, 0, time.Unix(1000, 0)), Block: 1, Mutate: true}
	result, _, _, err := engine.Quote(cfg, reserves, feepolicy.State{}, confidence.State{}, req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !result.IsPartial {
		t.Fatalf("expected partial fill")
	}
	if result.Reason != oracle.ReasonFloor {
		t.Fatalf("expected FLOOR reason, got %v", result.Reason)
	}
	available, _ := inventory.AvailableInventory(reserves.QuoteUnits, cfg.Inventory.FloorBps)
	if result.AmountOut.Cmp(available) > 0 {
		t.Fatalf("amount_out must not exceed floor-respecting availability")
	}
}

func TestAOMQNearFloorScenario(t *testing.T) {
	cfg := baseTestConfig()
	cfg.Flags.EnableAOMQ = true
	cfg.Inventory.FloorBps = 300
	engine, _ := NewEngine(cfg.Oracle)
	// quote reserve already essentially at the floor band for a large base-in swap
	reserves := Reserves{BaseUnits: uint256.NewInt(100_000), QuoteUnits: uint256.NewInt(1_030)}

	req := Request{AmountIn: uint256.NewInt(40_000), IsBaseIn: true, Oracle: primaryInput(1, 0, time.Unix(1000, 0)), Block: 1, Mutate: true}
	result, _, _, err := engine.Quote(cfg, reserves, feepolicy.State{}, confidence.State{}, req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !result.AOMQTriggered {
		t.Fatalf("expected AOMQ to trigger near floor")
	}
	if result.FeeBpsUsed < cfg.Aomq.EmergencySpreadBps {
		t.Fatalf("AOMQ fee should be >= emergency_spread_bps, got %d", result.FeeBpsUsed)
	}
	if result.AOMQTrigger != AOMQTriggerFloor {
		t.Fatalf("expected FLOOR trigger, got %v", result.AOMQTrigger)
	}
}

func TestPreviewSettlementParity(t *testing.T) {
	cfg := baseTestConfig()
	engine, _ := NewEngine(cfg.Oracle)
	reserves := Reserves{BaseUnits: uint256.NewInt(100_000), QuoteUnits: uint256.NewInt(10_000_000)}
	in := primaryInput(1, 50, time.Unix(1000, 0))

	previewReq := Request{AmountIn: uint256.NewInt(25), IsBaseIn: true, Oracle: in, Block: 7, Mutate: false}
	swapReq := previewReq
	swapReq.Mutate = true

	feeState := feepolicy.State{LastBlock: 5, LastFeeBps: 40}
	confState := confidence.State{SigmaBps: 10, LastObservedMid: wad(1), LastBlock: 5}

	previewResult, _, _, err := engine.Quote(cfg, reserves, feeState, confState, previewReq)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	swapResult, _, _, err := engine.Quote(cfg, reserves, feeState, confState, swapReq)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}

	if previewResult.MidUsed.Cmp(swapResult.MidUsed) != 0 ||
		previewResult.FeeBpsUsed != swapResult.FeeBpsUsed ||
		previewResult.AmountOut.Cmp(swapResult.AmountOut) != 0 ||
		previewResult.Reason != swapResult.Reason ||
		previewResult.IsPartial != swapResult.IsPartial {
		t.Fatalf("preview/settlement parity violated: preview=%+v swap=%+v", previewResult, swapResult)
	}
}

func TestRecenterTargetComputation(t *testing.T) {
	// mid drifts 1.0 -> 1.15; reserves 10_000/10_000_000 whole tokens at 18 decimals
	// target = floor(((10000*1.15+10000000)/2)/1.15) = 4_352_826.0869... tokens
	base := wad(10_000)
	quote := wad(10_000_000)
	mid := new(uint256.Int).Div(new(uint256.Int).Mul(fixedpoint.WAD, uint256.NewInt(115)), uint256.NewInt(100))
	scales := unitScales()

	baseN, err := fixedpoint.WadMulDown(base, mid)
	if err != nil {
		t.Fatalf("baseN: %v", err)
	}
	total := new(uint256.Int).Add(baseN, quote)
	half := new(uint256.Int).Div(total, uint256.NewInt(2))
	targetWad, err := fixedpoint.WadDivDown(half, mid)
	if err != nil {
		t.Fatalf("targetWad: %v", err)
	}
	targetBase, err := scales.WadToBase(targetWad)
	if err != nil {
		t.Fatalf("targetBase: %v", err)
	}
	want := new(uint256.Int)
	if err := want.SetFromDecimal("4352826086956521739130434"); err != nil {
		t.Fatalf("want: %v", err)
	}
	if targetBase.Cmp(want) != 0 {
		t.Fatalf("expected target %s, got %s", want, targetBase)
	}
}
