package pricing

// inventoryTiltBps computes the signed fee tilt magnitude (spec.md §4.5):
// tilt_bps = clamp(inv_tilt_bps_per_1pct * dev_pct, -max, max), then scaled
// by the confidence/spread weights so the tilt only bites meaningfully when
// the oracle is already uncertain or the book is already wide.
func inventoryTiltBps(cfg InventoryConfig, devBps uint32, confBps, spreadBps uint32) int32 {
	devPct := int64(devBps) / 100
	raw := int64(cfg.TiltInvTiltBpsPer1Pct) * devPct
	maxBps := int64(cfg.TiltInvTiltMaxBps)
	if raw > maxBps {
		raw = maxBps
	}
	if raw < -maxBps {
		raw = -maxBps
	}

	weight := (int64(cfg.TiltConfWeightBps)*int64(confBps) + int64(cfg.TiltSpreadWeightBps)*int64(spreadBps)) / 20_000
	if weight > 10_000 {
		weight = 10_000
	}
	scaled := (raw * weight) / 10_000
	return int32(scaled)
}

// applyTilt widens the side that would deepen the inventory imbalance and
// tightens the side that rebalances it. baseHeavy indicates the pool already
// holds more base-notional than target.
func applyTilt(feeBps uint32, tiltBps int32, isBaseIn, baseHeavy bool) uint32 {
	if tiltBps == 0 {
		return feeBps
	}
	// A base-in swap adds more base to the pool; if the pool is already
	// base-heavy, that deepens the imbalance and should be widened.
	deepensImbalance := (isBaseIn && baseHeavy) || (!isBaseIn && !baseHeavy)
	delta := tiltBps
	if !deepensImbalance {
		delta = -delta
	}
	signed := int64(feeBps) + int64(delta)
	if signed < 0 {
		return 0
	}
	return uint32(signed)
}
