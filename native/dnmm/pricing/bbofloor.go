package pricing

// applyBBOFloor enforces fee_bps >= beta_floor_bps + alpha_bbo_bps*spread_bps/10000
// (spec.md §4.5), ensuring the fee always exceeds a spread-proportional
// threshold when the book is wide.
func applyBBOFloor(feeBps uint32, maker MakerConfig, spreadBps uint32) uint32 {
	floor := maker.BetaFloorBps + (maker.AlphaBBOBps*spreadBps)/10_000
	if feeBps < floor {
		return floor
	}
	return feeBps
}
