package rfq

import (
	"fmt"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nhbchain/native/dnmm/pool"
)

var (
	// ErrSaltAlreadyUsed is returned by SaltStore.MarkUsed and propagated as
	// a replay rejection from VerifyAndSwap.
	ErrSaltAlreadyUsed = fmt.Errorf("rfq: salt already used")
	// ErrExpired is returned when block time has passed the quote's expiry.
	ErrExpired = fmt.Errorf("rfq: quote expired")
	// ErrInvalidSignature is returned when the recovered signer does not
	// match the configured maker address.
	ErrInvalidSignature = fmt.Errorf("rfq: invalid signature")
)

// Verifier recovers the signing address from a (hash, signature) pair,
// matching native/swap/engine.go's PriceProofEngine.Verify recovery step
// (ethcrypto.SigToPub + PubkeyToAddress) rather than inventing a new scheme.
type Verifier struct {
	MakerAddress ethcommon.Address
}

// Verify checks sig against hash and compares the recovered address to the
// configured maker.
func (v Verifier) Verify(hash []byte, sig []byte) error {
	if len(sig) != 65 {
		return ErrInvalidSignature
	}
	pubKey, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return ErrInvalidSignature
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey)
	if recovered != v.MakerAddress {
		return ErrInvalidSignature
	}
	return nil
}

// Engine ties a Verifier and SaltStore to a pool, exposing the single
// verify-and-swap entry point taker clients call.
type Engine struct {
	Verifier  Verifier
	SaltStore SaltStore
}

// NewEngine constructs an Engine bound to the given maker address, with an
// in-memory SaltStore. Call WithSaltStore-style field assignment before use
// if a durable store is required.
func NewEngine(makerAddress ethcommon.Address) *Engine {
	return &Engine{
		Verifier:  Verifier{MakerAddress: makerAddress},
		SaltStore: NewMemorySaltStore(),
	}
}

// VerifyAndSwap validates the quote's domain/expiry, the maker's signature,
// and single-use salt, then redeems it against p via SwapExactIn with
// min_amount_out enforced from the signed quote. Slippage/deadline/pause
// checks are still performed by the pool itself; this layer only adds the
// signature and replay checks spec.md §4.10 requires before a quote is
// allowed to touch the pool at all.
func (e *Engine) VerifyAndSwap(p *pool.Pool, q Quote, sig []byte, now time.Time, req pool.SwapRequest) (pool.SwapResult, error) {
	if err := q.Validate(); err != nil {
		return pool.SwapResult{}, err
	}
	if now.Unix() > q.ExpiryUnix {
		return pool.SwapResult{}, ErrExpired
	}
	if err := e.Verifier.Verify(q.Hash(), sig); err != nil {
		return pool.SwapResult{}, err
	}
	if err := e.SaltStore.MarkUsed(q.Salt); err != nil {
		return pool.SwapResult{}, err
	}

	req.AmountIn = q.AmountIn
	req.IsBaseIn = q.IsBaseIn
	req.MinAmountOut = q.MinAmountOut
	req.DeadlineUnix = q.ExpiryUnix
	req.Taker = q.Taker

	return p.SwapExactIn(req)
}
