package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/pool"
)

func parseUint256(s string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("value required")
	}
	v := new(uint256.Int)
	if err := v.SetFromDecimal(trimmed); err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", trimmed, err)
	}
	return v, nil
}

func parseUint256Optional(s string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return parseUint256(s)
}

func stringOrZero(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseHexBytes(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("value required")
	}
	return hex.DecodeString(trimmed)
}

func parseSalt(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := parseHexBytes(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("salt must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func writeQuoteResult(w http.ResponseWriter, result pool.SwapResult) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"amount_out":           stringOrZero(result.AmountOut),
		"applied_in":           stringOrZero(result.AppliedIn),
		"mid_used":             stringOrZero(result.MidUsed),
		"fee_bps_used":         result.FeeBpsUsed,
		"is_partial":           result.IsPartial,
		"reason":               string(result.Reason),
		"aomq_triggered":       result.AOMQTriggered,
		"divergence_delta_bps": result.DivergenceDeltaBps,
	})
}
