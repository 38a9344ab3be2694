package pricing

import "fmt"

// Fatal errors abort the request; no partial state is written (spec.md §7).
var (
	// ErrMidUnset mirrors oracle.ErrMidUnset at the engine boundary.
	ErrMidUnset = fmt.Errorf("pricing: mid unset")
	// ErrPaused is returned when the pool's governance-controlled pause gate is set.
	ErrPaused = fmt.Errorf("pricing: paused")
	// ErrDeadlineExpired is returned when block_ts > deadline_sec.
	ErrDeadlineExpired = fmt.Errorf("pricing: deadline expired")
	// ErrSlippage is returned when amount_out < min_amount_out.
	ErrSlippage = fmt.Errorf("pricing: slippage exceeded")
)

// DivergedError carries structured context for a hard-divergence rejection,
// re-exported from the oracle package so callers only need to import pricing.
type DivergedError struct {
	DeltaBps uint32
	CapBps   uint32
}

func (e *DivergedError) Error() string {
	return fmt.Sprintf("pricing: oracle diverged delta=%dbps cap=%dbps", e.DeltaBps, e.CapBps)
}

// PreviewSnapshotStaleError is raised only when revert_on_stale is set;
// otherwise the caller sees an advisory flag on the result.
type PreviewSnapshotStaleError struct {
	AgeSec    uint64
	MaxAgeSec uint64
}

func (e *PreviewSnapshotStaleError) Error() string {
	return fmt.Sprintf("pricing: preview snapshot stale age=%ds max_age=%ds", e.AgeSec, e.MaxAgeSec)
}
