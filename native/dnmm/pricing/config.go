// Package pricing implements the top-level pricing engine (spec.md §4.6):
// oracle selection, confidence blend, fee policy, inventory tilt, BBO floor,
// divergence handling, the inventory solver, and the AOMQ clamp regime.
package pricing

import (
	"fmt"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/confidence"
	"nhbchain/native/dnmm/feepolicy"
	"nhbchain/native/dnmm/inventory"
	"nhbchain/native/dnmm/oracle"
)

// InventoryConfig is the InventoryConfig entity.
type InventoryConfig struct {
	TargetBaseXstar      *uint256.Int
	FloorBps             uint32
	RecenterThresholdPct uint32

	TiltInvTiltBpsPer1Pct uint32
	TiltInvTiltMaxBps     uint32
	TiltConfWeightBps     uint32
	TiltSpreadWeightBps   uint32
}

// Validate checks the floor invariant.
func (c InventoryConfig) Validate() error {
	if c.FloorBps > 10_000 {
		return fmt.Errorf("pricing: floor_bps must be <= 10000")
	}
	return nil
}

// MakerConfig is the MakerConfig entity.
type MakerConfig struct {
	S0NotionalWad  *uint256.Int
	TTLMs          uint32
	AlphaBBOBps    uint32
	BetaFloorBps   uint32
}

// Validate checks s0_notional > 0.
func (c MakerConfig) Validate() error {
	if c.S0NotionalWad == nil || c.S0NotionalWad.IsZero() {
		return fmt.Errorf("pricing: s0_notional_wad must be > 0")
	}
	return nil
}

// AomqConfig is the AomqConfig entity.
type AomqConfig struct {
	MinQuoteNotional   *uint256.Int
	EmergencySpreadBps uint32
	FloorEpsilonBps    uint32
}

// Validate checks epsilon_bps <= 10000.
func (c AomqConfig) Validate() error {
	if c.FloorEpsilonBps > 10_000 {
		return fmt.Errorf("pricing: floor_epsilon_bps must be <= 10000")
	}
	return nil
}

// FeatureFlags is the FeatureFlags entity; flip-only via update_params.
type FeatureFlags struct {
	BlendOn              bool
	EnableSoftDivergence bool
	EnableSizeFee        bool
	EnableBBOFloor       bool
	EnableInvTilt        bool
	EnableAOMQ           bool
	EnableRebates        bool
	EnableAutoRecenter   bool
	EnableLVRFee         bool
	DebugEmit            bool
}

// Config aggregates every parameter block the pricing engine consults.
type Config struct {
	Oracle      oracle.Config
	Fee         feepolicy.Config
	Inventory   InventoryConfig
	Maker       MakerConfig
	Aomq        AomqConfig
	Flags       FeatureFlags
	Blend       confidence.Weights
	Scales      inventory.Scales
	LVREstimator feepolicy.LVREstimator
}

// Validate validates every embedded config block.
func (c Config) Validate() error {
	if err := c.Oracle.Validate(); err != nil {
		return err
	}
	if err := c.Fee.Validate(); err != nil {
		return err
	}
	if err := c.Inventory.Validate(); err != nil {
		return err
	}
	if err := c.Maker.Validate(); err != nil {
		return err
	}
	if err := c.Aomq.Validate(); err != nil {
		return err
	}
	return nil
}
