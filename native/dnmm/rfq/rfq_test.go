package rfq

import (
	"bytes"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/feepolicy"
	"nhbchain/native/dnmm/fixedpoint"
	"nhbchain/native/dnmm/oracle"
	"nhbchain/native/dnmm/pool"
	"nhbchain/native/dnmm/pricing"
)

func wad(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), fixedpoint.WAD)
}

func mustMakerKey(t *testing.T) ([20]byte, func([]byte) []byte) {
	t.Helper()
	seed := bytes.Repeat([]byte{7}, 32)
	key, err := ethcrypto.ToECDSA(seed)
	if err != nil {
		t.Fatalf("derive maker key: %v", err)
	}
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)
	var out [20]byte
	copy(out[:], addr[:])
	signFn := func(hash []byte) []byte {
		sig, err := ethcrypto.Sign(hash, key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return sig
	}
	return out, signFn
}

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	tokens := pool.TokenConfig{BaseScale: fixedpoint.WAD, QuoteScale: fixedpoint.WAD, BaseDecimals: 18, QuoteDecimals: 18}
	cfg := pricing.Config{
		Oracle: oracle.Config{
			MaxAge: 5 * time.Second, StallWindow: 30 * time.Second,
			ConfCapBpsSpot: 500, ConfCapBpsStrict: 1500, DivergenceBps: 200,
		},
		Fee: feepolicy.Config{BaseBps: 15, CapBps: 150, AlphaConfNum: 60, AlphaConfDen: 100, BetaInvDevNum: 10, BetaInvDevDen: 100, DecayPctPerBlock: 20},
		Inventory: pricing.InventoryConfig{TargetBaseXstar: uint256.NewInt(100_000), FloorBps: 300},
		Maker:     pricing.MakerConfig{S0NotionalWad: wad(1_000)},
		Aomq:      pricing.AomqConfig{MinQuoteNotional: uint256.NewInt(10), EmergencySpreadBps: 100, FloorEpsilonBps: 50},
	}
	reserves := pool.Reserves{BaseUnits: uint256.NewInt(100_000), QuoteUnits: uint256.NewInt(10_000_000)}
	p, err := pool.NewPool(tokens, cfg, pool.PreviewConfig{MaxAge: 30 * time.Second, SnapshotCooldown: 5 * time.Second}, reserves)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return p
}

func primaryInput(mid uint64, ts time.Time) oracle.Input {
	in := oracle.Input{BlockTimestamp: ts}
	in.Primary.Mid = &oracle.PrimaryMid{Mid: wad(mid), Age: time.Second}
	in.Primary.Book = &oracle.PrimaryBook{Bid: wad(mid), Ask: wad(mid), SpreadBps: 0, Age: time.Second}
	return in
}

func TestVerifyAndSwapAcceptsValidQuote(t *testing.T) {
	makerAddr, sign := mustMakerKey(t)
	p := newTestPool(t)
	engine := NewEngine(ethcommon.BytesToAddress(makerAddr[:]))

	now := time.Unix(1000, 0)
	q := Quote{
		Domain: DomainV1, Pair: "BASE/QUOTE", Taker: "alice",
		IsBaseIn: true, AmountIn: uint256.NewInt(10), MinAmountOut: uint256.NewInt(1),
		MidWad: wad(1), FeeBps: 15, ExpiryUnix: now.Add(time.Minute).Unix(),
	}
	q.Salt[0] = 1

	sig := sign(q.Hash())
	req := pool.SwapRequest{Oracle: primaryInput(1, now)}
	result, err := engine.VerifyAndSwap(p, q, sig, now, req)
	if err != nil {
		t.Fatalf("verify and swap: %v", err)
	}
	if result.AmountOut.IsZero() {
		t.Fatalf("expected nonzero amount out")
	}
}

func TestVerifyAndSwapRejectsReplay(t *testing.T) {
	makerAddr, sign := mustMakerKey(t)
	p := newTestPool(t)
	engine := NewEngine(ethcommon.BytesToAddress(makerAddr[:]))

	now := time.Unix(1000, 0)
	q := Quote{
		Domain: DomainV1, Pair: "BASE/QUOTE", Taker: "alice",
		IsBaseIn: true, AmountIn: uint256.NewInt(10), MinAmountOut: uint256.NewInt(1),
		MidWad: wad(1), FeeBps: 15, ExpiryUnix: now.Add(time.Minute).Unix(),
	}
	q.Salt[0] = 2
	sig := sign(q.Hash())
	req := pool.SwapRequest{Oracle: primaryInput(1, now)}

	if _, err := engine.VerifyAndSwap(p, q, sig, now, req); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	if _, err := engine.VerifyAndSwap(p, q, sig, now, req); err != ErrSaltAlreadyUsed {
		t.Fatalf("expected replay rejection, got %v", err)
	}
}

func TestVerifyAndSwapRejectsExpired(t *testing.T) {
	makerAddr, sign := mustMakerKey(t)
	p := newTestPool(t)
	engine := NewEngine(ethcommon.BytesToAddress(makerAddr[:]))

	now := time.Unix(1000, 0)
	q := Quote{
		Domain: DomainV1, Pair: "BASE/QUOTE", Taker: "alice",
		IsBaseIn: true, AmountIn: uint256.NewInt(10), MinAmountOut: uint256.NewInt(1),
		MidWad: wad(1), FeeBps: 15, ExpiryUnix: now.Add(-time.Minute).Unix(),
	}
	q.Salt[0] = 3
	sig := sign(q.Hash())
	req := pool.SwapRequest{Oracle: primaryInput(1, now)}

	if _, err := engine.VerifyAndSwap(p, q, sig, now, req); err != ErrExpired {
		t.Fatalf("expected expiry rejection, got %v", err)
	}
}

func TestVerifyAndSwapRejectsTamperedSignature(t *testing.T) {
	makerAddr, sign := mustMakerKey(t)
	p := newTestPool(t)
	engine := NewEngine(ethcommon.BytesToAddress(makerAddr[:]))

	now := time.Unix(1000, 0)
	q := Quote{
		Domain: DomainV1, Pair: "BASE/QUOTE", Taker: "alice",
		IsBaseIn: true, AmountIn: uint256.NewInt(10), MinAmountOut: uint256.NewInt(1),
		MidWad: wad(1), FeeBps: 15, ExpiryUnix: now.Add(time.Minute).Unix(),
	}
	q.Salt[0] = 4
	sig := sign(q.Hash())
	sig[0] ^= 0xFF
	req := pool.SwapRequest{Oracle: primaryInput(1, now)}

	if _, err := engine.VerifyAndSwap(p, q, sig, now, req); err != ErrInvalidSignature {
		t.Fatalf("expected invalid signature rejection, got %v", err)
	}
}
