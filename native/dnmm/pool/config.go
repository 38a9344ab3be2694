package pool

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/inventory"
)

// TokenConfig is the TokenConfig entity: immutable base/quote scaling.
type TokenConfig struct {
	BaseScale     *uint256.Int
	QuoteScale    *uint256.Int
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// Scales projects the token config onto the inventory package's Scales type.
func (c TokenConfig) Scales() inventory.Scales {
	return inventory.Scales{BaseScale: c.BaseScale, QuoteScale: c.QuoteScale}
}

// Validate checks the scales are configured and nonzero.
func (c TokenConfig) Validate() error {
	if c.BaseScale == nil || c.BaseScale.IsZero() || c.QuoteScale == nil || c.QuoteScale.IsZero() {
		return fmt.Errorf("pool: base_scale and quote_scale must be nonzero")
	}
	return nil
}

// PreviewConfig is the PreviewConfig entity governing snapshot freshness.
type PreviewConfig struct {
	MaxAge             time.Duration
	SnapshotCooldown   time.Duration
	RevertOnStale      bool
	EnablePreviewFresh bool
}

// Validate checks the cooldown-vs-max-age invariant.
func (c PreviewConfig) Validate() error {
	if c.SnapshotCooldown > c.MaxAge {
		return fmt.Errorf("pool: snapshot_cooldown_sec must be <= max_age_sec")
	}
	return nil
}

// secondsToDuration converts a governance-submitted seconds field into a
// time.Duration; update_params fragments carry plain integers, not Go
// duration strings.
func secondsToDuration(sec uint32) time.Duration {
	return time.Duration(sec) * time.Second
}

// uint256FromUint64 lifts a governance-submitted integer into the uint256
// domain the pricing/inventory packages consume everywhere else.
func uint256FromUint64(v uint64) *uint256.Int {
	return new(uint256.Int).SetUint64(v)
}
