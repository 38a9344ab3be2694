// Package rfq implements the maker-signed request-for-quote envelope
// (spec.md §4.10): a domain-separated, single-use quote a maker signs
// off-chain and a taker redeems against the pool within the quote's TTL and
// slippage bound.
package rfq

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DomainV1 is the domain-separation tag mixed into every RFQQuote hash,
// following native/swap's VoucherDomainV1 convention of a versioned,
// all-caps domain string baked into the signed payload.
const DomainV1 = "NHB_DNMM_RFQ_V1"

// Quote is the RFQQuote entity: a maker-signed, single-use exact-in quote.
type Quote struct {
	Domain       string
	ChainID      uint64
	Pair         string
	Taker        string
	IsBaseIn     bool
	AmountIn     *uint256.Int
	MinAmountOut *uint256.Int
	MidWad       *uint256.Int
	FeeBps       uint32
	Salt         [32]byte
	ExpiryUnix   int64
}

// Hash reconstructs the canonical digest a maker signs, mirroring
// native/swap's VoucherV1.Hash pipe-joined-field-then-keccak256 shape.
func (q Quote) Hash() []byte {
	amountIn := "0"
	if q.AmountIn != nil {
		amountIn = q.AmountIn.String()
	}
	minOut := "0"
	if q.MinAmountOut != nil {
		minOut = q.MinAmountOut.String()
	}
	mid := "0"
	if q.MidWad != nil {
		mid = q.MidWad.String()
	}
	payload := fmt.Sprintf("%s|chain=%d|pair=%s|taker=%s|base_in=%t|amount_in=%s|min_out=%s|mid=%s|fee_bps=%d|salt=%s|exp=%d",
		strings.TrimSpace(q.Domain),
		q.ChainID,
		strings.TrimSpace(q.Pair),
		strings.TrimSpace(q.Taker),
		q.IsBaseIn,
		amountIn,
		minOut,
		mid,
		q.FeeBps,
		hex.EncodeToString(q.Salt[:]),
		q.ExpiryUnix,
	)
	return ethcrypto.Keccak256([]byte(payload))
}

// Validate checks the envelope invariants independent of signature/salt
// state: domain tag, nonzero amount, sane expiry.
func (q Quote) Validate() error {
	if !strings.EqualFold(strings.TrimSpace(q.Domain), DomainV1) {
		return fmt.Errorf("rfq: domain mismatch")
	}
	if q.AmountIn == nil || q.AmountIn.IsZero() {
		return fmt.Errorf("rfq: amount_in must be > 0")
	}
	if q.ExpiryUnix <= 0 {
		return fmt.Errorf("rfq: expiry required")
	}
	return nil
}
