// Package oracle canonicalizes readings from the two configured price
// sources — a primary low-latency feed (book/mid/EMA) and a secondary
// wide-coverage feed (used for cross-checking and fallback) — into a single
// `{mid_wad, age_sec, spread_bps, confidence_bps, ok}` reading, and computes
// inter-source divergence.
package oracle

import (
	"time"

	"github.com/holiman/uint256"
)

// Reason identifies which source (or fallback tier) produced the selected mid.
type Reason string

const (
	// ReasonNone indicates the primary mid validated directly.
	ReasonNone Reason = "NONE"
	// ReasonEMA indicates the primary's EMA endpoint was used as a fallback.
	ReasonEMA Reason = "EMA"
	// ReasonSecondary indicates the secondary feed supplied the mid under the
	// strict confidence cap regime.
	ReasonSecondary Reason = "PYTH"
	// ReasonFloor indicates the inventory solver clamped the fill to the
	// output-side floor independent of any AOMQ activation.
	ReasonFloor Reason = "FLOOR"
	// ReasonAOMQ indicates the AOMQ clamp overrode the settled amounts.
	ReasonAOMQ Reason = "AOMQ"
)

// Regime tags the freshness/fallback state a reading was produced under; it
// drives which confidence cap applies (spot vs strict) and feeds AOMQ's
// FALLBACK trigger.
type Regime uint8

const (
	// RegimeSpot is the normal, primary-book-validated regime.
	RegimeSpot Regime = iota
	// RegimeFallback is any EMA or secondary-sourced regime.
	RegimeFallback
)

// PrimaryMid is the primary feed's headline mid-price endpoint.
type PrimaryMid struct {
	Mid *uint256.Int
	Age time.Duration
}

// PrimaryBook is the primary feed's top-of-book endpoint.
type PrimaryBook struct {
	Bid       *uint256.Int
	Ask       *uint256.Int
	SpreadBps uint32
	Age       time.Duration
}

// PrimaryEMA is the primary feed's exponential-moving-average endpoint, used
// as a fallback when the spot book/mid fail freshness or validity checks.
type PrimaryEMA struct {
	Mid *uint256.Int
	Age time.Duration
}

// SecondaryLeg is one leg (base or quote, each vs. a common numeraire) of the
// secondary wide-coverage feed's pair reading.
type SecondaryLeg struct {
	Mid     *uint256.Int
	ConfBps uint32
	Age     time.Duration
}

// SecondaryReading bundles both legs of the secondary feed's pair quote.
type SecondaryReading struct {
	Base  SecondaryLeg
	Quote SecondaryLeg
}

// Input bundles a single request's raw readings from both sources. Any zero
// value is treated as "not supplied" by the selection algorithm.
type Input struct {
	Primary struct {
		Mid  *PrimaryMid
		Book *PrimaryBook
		EMA  *PrimaryEMA
	}
	Secondary *SecondaryReading
	// BlockTimestamp is the caller-observed wall/block time used for the
	// timestamp-monotonicity guard.
	BlockTimestamp time.Time
}

// Reading is the canonicalized output of the selection algorithm: a single
// safe mid with its provenance, spread, and confidence inputs.
type Reading struct {
	MidWad        *uint256.Int
	AgeSec        uint64
	SpreadBps     uint32
	ConfidenceBps uint32
	OK            bool
	Reason        Reason
	Regime        Regime

	// SecondaryMidWad, when non-nil, is the secondary feed's pair mid used
	// for the divergence gate even when the primary mid was selected.
	SecondaryMidWad *uint256.Int
	SecondaryConfBps uint32
}
