package oracle

import (
	"fmt"
	"time"
)

// Config captures the OracleConfig entity from the data model: freshness
// windows, confidence caps, divergence tiers, and blend weights.
type Config struct {
	MaxAge      time.Duration
	StallWindow time.Duration

	ConfCapBpsSpot   uint32
	ConfCapBpsStrict uint32

	// DivergenceBps is the legacy single hard cap, used when
	// EnableSoftDivergence is false.
	DivergenceBps uint32

	// Tiered divergence, used when EnableSoftDivergence is true.
	DivergenceAcceptBps uint32
	DivergenceSoftBps   uint32
	DivergenceHardBps   uint32

	HaircutMinBps   uint32
	HaircutSlopeBps uint32

	AllowEMAFallback bool

	// Blend weights (bps of weight per bps of input; see confidence package).
	WeightSpreadBps uint32
	WeightSigmaBps  uint32
	WeightSecondaryBps uint32

	SigmaEWMALambdaBps uint32

	EnableSoftDivergence bool
}

// Validate checks the monotone ordering and cap invariants in the data model.
func (c Config) Validate() error {
	if c.ConfCapBpsSpot > 10_000 || c.ConfCapBpsStrict > 10_000 {
		return fmt.Errorf("oracle: confidence caps must be <= 10000 bps")
	}
	if c.DivergenceBps > 10_000 {
		return fmt.Errorf("oracle: divergence_bps must be <= 10000 bps")
	}
	if c.EnableSoftDivergence {
		if !(c.DivergenceAcceptBps <= c.DivergenceSoftBps && c.DivergenceSoftBps <= c.DivergenceHardBps) {
			return fmt.Errorf("oracle: divergence tiers must satisfy accept <= soft <= hard")
		}
		if c.DivergenceHardBps > 10_000 {
			return fmt.Errorf("oracle: divergence_hard_bps must be <= 10000 bps")
		}
	}
	if c.SigmaEWMALambdaBps > 10_000 {
		return fmt.Errorf("oracle: sigma_ewma_lambda_bps must be <= 10000 bps")
	}
	return nil
}
