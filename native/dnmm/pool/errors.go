package pool

import "fmt"

var (
	// ErrRecenterCooldown is returned when an auto-recenter attempt fires
	// before the configured cooldown has elapsed since the last one.
	ErrRecenterCooldown = fmt.Errorf("pool: recenter cooldown not elapsed")
	// ErrRecenterThreshold is returned when an auto-recenter attempt fires
	// but the observed mid has not drifted past the configured threshold.
	ErrRecenterThreshold = fmt.Errorf("pool: recenter threshold not met")
	// ErrUnknownTokenSide is returned when a request names neither base nor
	// quote as the input side.
	ErrUnknownTokenSide = fmt.Errorf("pool: unknown token side")
	// ErrReentrant guards against a swap re-entering the pool's
	// state-mutating path while one is already in flight on this goroutine
	// path; under Go's single-mutex model this only fires if a caller holds
	// a quote across two SwapExactIn calls without releasing it.
	ErrReentrant = fmt.Errorf("pool: reentrant call rejected")
)

// RecenterError wraps a recenter rejection with the observed values so
// callers (and the Observer event) can report why the cursor did not move.
type RecenterError struct {
	Err        error
	DeltaBps   uint32
	ThresholdBps uint32
}

func (e *RecenterError) Error() string {
	return fmt.Sprintf("pool: recenter rejected: %v (delta_bps=%d threshold_bps=%d)", e.Err, e.DeltaBps, e.ThresholdBps)
}

func (e *RecenterError) Unwrap() error { return e.Err }
