package oracle

import (
	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/fixedpoint"
)

// Facade canonicalizes raw multi-source readings into a single safe mid,
// enforcing per-source freshness/confidence caps and exposing the
// inter-source divergence used by the pricing engine's divergence gate.
type Facade struct {
	cfg Config

	lastObservedUnixSec int64
}

// NewFacade constructs a Facade from a validated Config.
func NewFacade(cfg Config) (*Facade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Facade{cfg: cfg}, nil
}

// Config returns the facade's active configuration.
func (f *Facade) Config() Config { return f.cfg }

// Resolve runs the selection algorithm (spec.md §4.2) against the supplied
// input, returning a canonicalized Reading.
func (f *Facade) Resolve(in Input) (Reading, error) {
	blockTS := in.BlockTimestamp.Unix()
	if f.lastObservedUnixSec != 0 && blockTS < f.lastObservedUnixSec {
		return Reading{}, ErrInvalidTS
	}
	if blockTS > f.lastObservedUnixSec {
		f.lastObservedUnixSec = blockTS
	}

	reading, err := f.selectMid(in)
	if err != nil {
		return Reading{}, err
	}

	// Attach the secondary pair mid (if available) for the divergence gate,
	// regardless of which source was ultimately selected.
	if in.Secondary != nil {
		secMid, secConf, ok := secondaryPairMid(*in.Secondary)
		if ok {
			reading.SecondaryMidWad = secMid
			reading.SecondaryConfBps = secConf
		}
	}
	return reading, nil
}

func (f *Facade) selectMid(in Input) (Reading, error) {
	// Step 1: primary mid + book both fresh and the book validates.
	if in.Primary.Mid != nil && in.Primary.Book != nil {
		midFresh := in.Primary.Mid.Age <= f.cfg.MaxAge
		bookFresh := in.Primary.Book.Age <= f.cfg.MaxAge
		if midFresh && bookFresh {
			book := in.Primary.Book
			if book.Bid != nil && book.Ask != nil && book.Bid.Cmp(book.Ask) > 0 {
				return Reading{}, ErrInvalidOrderbook
			}
			if book.SpreadBps <= f.cfg.ConfCapBpsSpot {
				return Reading{
					MidWad:        new(uint256.Int).Set(in.Primary.Mid.Mid),
					AgeSec:        uint64(in.Primary.Mid.Age.Seconds()),
					SpreadBps:     book.SpreadBps,
					ConfidenceBps: fixedpoint.MinUint32(book.SpreadBps, f.cfg.ConfCapBpsSpot),
					OK:            true,
					Reason:        ReasonNone,
					Regime:        RegimeSpot,
				}, nil
			}
		}
	}

	// Step 2: EMA fallback.
	if f.cfg.AllowEMAFallback && in.Primary.EMA != nil {
		if in.Primary.EMA.Age <= f.cfg.MaxAge+f.cfg.StallWindow {
			spread := uint32(0)
			if in.Primary.Book != nil {
				spread = in.Primary.Book.SpreadBps
			}
			return Reading{
				MidWad:        new(uint256.Int).Set(in.Primary.EMA.Mid),
				AgeSec:        uint64(in.Primary.EMA.Age.Seconds()),
				SpreadBps:     spread,
				ConfidenceBps: fixedpoint.MinUint32(spread, f.cfg.ConfCapBpsStrict),
				OK:            true,
				Reason:        ReasonEMA,
				Regime:        RegimeFallback,
			}, nil
		}
	}

	// Step 3: secondary fallback, strict-cap regime.
	if in.Secondary != nil {
		sec := *in.Secondary
		if sec.Base.Age <= f.cfg.MaxAge && sec.Quote.Age <= f.cfg.MaxAge &&
			sec.Base.ConfBps <= f.cfg.ConfCapBpsStrict && sec.Quote.ConfBps <= f.cfg.ConfCapBpsStrict {
			mid, conf, ok := secondaryPairMid(sec)
			if ok {
				age := sec.Base.Age
				if sec.Quote.Age > age {
					age = sec.Quote.Age
				}
				return Reading{
					MidWad:        mid,
					AgeSec:        uint64(age.Seconds()),
					SpreadBps:     0,
					ConfidenceBps: fixedpoint.MinUint32(conf, f.cfg.ConfCapBpsStrict),
					OK:            true,
					Reason:        ReasonSecondary,
					Regime:        RegimeFallback,
				}, nil
			}
		}
	}

	// Step 4: fail.
	return Reading{}, ErrOracleStale
}

// secondaryPairMid derives a base/quote cross mid from two secondary legs
// quoted against a common numeraire (e.g. both vs. USD).
func secondaryPairMid(sec SecondaryReading) (*uint256.Int, uint32, bool) {
	if sec.Base.Mid == nil || sec.Quote.Mid == nil || sec.Quote.Mid.IsZero() {
		return nil, 0, false
	}
	mid, err := fixedpoint.WadDivDown(sec.Base.Mid, sec.Quote.Mid)
	if err != nil {
		return nil, 0, false
	}
	conf := fixedpoint.MaxUint32(sec.Base.ConfBps, sec.Quote.ConfBps)
	return mid, conf, true
}
