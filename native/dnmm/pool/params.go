package pool

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// ParamKind identifies which configuration fragment a governance-only
// update_params call is replacing.
type ParamKind string

const (
	ParamKindFee       ParamKind = "FEE"
	ParamKindInventory ParamKind = "INVENTORY"
	ParamKindMaker     ParamKind = "MAKER"
	ParamKindOracle    ParamKind = "ORACLE"
	ParamKindAomq      ParamKind = "AOMQ"
	ParamKindPreview   ParamKind = "PREVIEW"
	ParamKindFeatures  ParamKind = "FEATURES"
)

// feeParamFragment mirrors native/swap's toml-tagged config-struct-per-concern
// approach: governance submits one TOML fragment per ParamKind rather than a
// single monolithic blob, so a bad fragment only rejects one concern.
type feeParamFragment struct {
	BaseBps          uint32 `toml:"BaseBps"`
	CapBps           uint32 `toml:"CapBps"`
	AlphaConfNum     uint32 `toml:"AlphaConfNum"`
	AlphaConfDen     uint32 `toml:"AlphaConfDen"`
	BetaInvDevNum    uint32 `toml:"BetaInvDevNum"`
	BetaInvDevDen    uint32 `toml:"BetaInvDevDen"`
	DecayPctPerBlock uint32 `toml:"DecayPctPerBlock"`
	GammaSizeLinBps  uint32 `toml:"GammaSizeLinBps"`
	GammaSizeQuadBps uint32 `toml:"GammaSizeQuadBps"`
	SizeFeeCapBps    uint32 `toml:"SizeFeeCapBps"`
	KappaLVRBps      uint32 `toml:"KappaLVRBps"`
}

type inventoryParamFragment struct {
	FloorBps              uint32 `toml:"FloorBps"`
	RecenterThresholdPct  uint32 `toml:"RecenterThresholdPct"`
	TiltInvTiltBpsPer1Pct uint32 `toml:"TiltInvTiltBpsPer1Pct"`
	TiltInvTiltMaxBps     uint32 `toml:"TiltInvTiltMaxBps"`
	TiltConfWeightBps     uint32 `toml:"TiltConfWeightBps"`
	TiltSpreadWeightBps   uint32 `toml:"TiltSpreadWeightBps"`
}

type makerParamFragment struct {
	TTLMs        uint32 `toml:"TTLMs"`
	AlphaBBOBps  uint32 `toml:"AlphaBBOBps"`
	BetaFloorBps uint32 `toml:"BetaFloorBps"`
}

type oracleParamFragment struct {
	MaxAgeSec            uint32 `toml:"MaxAgeSec"`
	StallWindowSec       uint32 `toml:"StallWindowSec"`
	ConfCapBpsSpot       uint32 `toml:"ConfCapBpsSpot"`
	ConfCapBpsStrict     uint32 `toml:"ConfCapBpsStrict"`
	DivergenceBps        uint32 `toml:"DivergenceBps"`
	DivergenceAcceptBps  uint32 `toml:"DivergenceAcceptBps"`
	DivergenceSoftBps    uint32 `toml:"DivergenceSoftBps"`
	DivergenceHardBps    uint32 `toml:"DivergenceHardBps"`
	HaircutMinBps        uint32 `toml:"HaircutMinBps"`
	HaircutSlopeBps      uint32 `toml:"HaircutSlopeBps"`
	AllowEMAFallback     bool   `toml:"AllowEMAFallback"`
	WeightSpreadBps      uint32 `toml:"WeightSpreadBps"`
	WeightSigmaBps       uint32 `toml:"WeightSigmaBps"`
	WeightSecondaryBps   uint32 `toml:"WeightSecondaryBps"`
	SigmaEWMALambdaBps   uint32 `toml:"SigmaEWMALambdaBps"`
	EnableSoftDivergence bool   `toml:"EnableSoftDivergence"`
}

type aomqParamFragment struct {
	MinQuoteNotionalUnits uint64 `toml:"MinQuoteNotionalUnits"`
	EmergencySpreadBps    uint32 `toml:"EmergencySpreadBps"`
	FloorEpsilonBps       uint32 `toml:"FloorEpsilonBps"`
}

type previewParamFragment struct {
	MaxAgeSec          uint32 `toml:"MaxAgeSec"`
	SnapshotCooldownSec uint32 `toml:"SnapshotCooldownSec"`
	RevertOnStale      bool   `toml:"RevertOnStale"`
	EnablePreviewFresh bool   `toml:"EnablePreviewFresh"`
}

type featuresParamFragment struct {
	BlendOn              bool `toml:"BlendOn"`
	EnableSoftDivergence bool `toml:"EnableSoftDivergence"`
	EnableSizeFee        bool `toml:"EnableSizeFee"`
	EnableBBOFloor       bool `toml:"EnableBBOFloor"`
	EnableInvTilt        bool `toml:"EnableInvTilt"`
	EnableAOMQ           bool `toml:"EnableAOMQ"`
	EnableRebates        bool `toml:"EnableRebates"`
	EnableAutoRecenter   bool `toml:"EnableAutoRecenter"`
	EnableLVRFee         bool `toml:"EnableLVRFee"`
	DebugEmit            bool `toml:"DebugEmit"`
}

// UpdateParams decodes a TOML fragment for the given kind and, if it
// validates, atomically replaces the corresponding config block. This is a
// governance-only entry: callers are expected to have already authorized the
// request (see services/dnmmd/server/auth.go) before reaching the pool.
func (p *Pool) UpdateParams(kind ParamKind, fragment []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch kind {
	case ParamKindFee:
		var frag feeParamFragment
		if _, err := toml.Decode(string(fragment), &frag); err != nil {
			return fmt.Errorf("pool: decode fee params: %w", err)
		}
		next := p.cfg.Fee
		next.BaseBps = frag.BaseBps
		next.CapBps = frag.CapBps
		next.AlphaConfNum = frag.AlphaConfNum
		next.AlphaConfDen = frag.AlphaConfDen
		next.BetaInvDevNum = frag.BetaInvDevNum
		next.BetaInvDevDen = frag.BetaInvDevDen
		next.DecayPctPerBlock = frag.DecayPctPerBlock
		next.GammaSizeLinBps = frag.GammaSizeLinBps
		next.GammaSizeQuadBps = frag.GammaSizeQuadBps
		next.SizeFeeCapBps = frag.SizeFeeCapBps
		next.KappaLVRBps = frag.KappaLVRBps
		if err := next.Validate(); err != nil {
			return err
		}
		p.cfg.Fee = next

	case ParamKindInventory:
		var frag inventoryParamFragment
		if _, err := toml.Decode(string(fragment), &frag); err != nil {
			return fmt.Errorf("pool: decode inventory params: %w", err)
		}
		next := p.cfg.Inventory
		next.FloorBps = frag.FloorBps
		next.RecenterThresholdPct = frag.RecenterThresholdPct
		next.TiltInvTiltBpsPer1Pct = frag.TiltInvTiltBpsPer1Pct
		next.TiltInvTiltMaxBps = frag.TiltInvTiltMaxBps
		next.TiltConfWeightBps = frag.TiltConfWeightBps
		next.TiltSpreadWeightBps = frag.TiltSpreadWeightBps
		if err := next.Validate(); err != nil {
			return err
		}
		p.cfg.Inventory = next

	case ParamKindMaker:
		var frag makerParamFragment
		if _, err := toml.Decode(string(fragment), &frag); err != nil {
			return fmt.Errorf("pool: decode maker params: %w", err)
		}
		next := p.cfg.Maker
		next.TTLMs = frag.TTLMs
		next.AlphaBBOBps = frag.AlphaBBOBps
		next.BetaFloorBps = frag.BetaFloorBps
		if err := next.Validate(); err != nil {
			return err
		}
		p.cfg.Maker = next

	case ParamKindOracle:
		var frag oracleParamFragment
		if _, err := toml.Decode(string(fragment), &frag); err != nil {
			return fmt.Errorf("pool: decode oracle params: %w", err)
		}
		next := p.cfg.Oracle
		next.MaxAge = secondsToDuration(frag.MaxAgeSec)
		next.StallWindow = secondsToDuration(frag.StallWindowSec)
		next.ConfCapBpsSpot = frag.ConfCapBpsSpot
		next.ConfCapBpsStrict = frag.ConfCapBpsStrict
		next.DivergenceBps = frag.DivergenceBps
		next.DivergenceAcceptBps = frag.DivergenceAcceptBps
		next.DivergenceSoftBps = frag.DivergenceSoftBps
		next.DivergenceHardBps = frag.DivergenceHardBps
		next.HaircutMinBps = frag.HaircutMinBps
		next.HaircutSlopeBps = frag.HaircutSlopeBps
		next.AllowEMAFallback = frag.AllowEMAFallback
		next.WeightSpreadBps = frag.WeightSpreadBps
		next.WeightSigmaBps = frag.WeightSigmaBps
		next.WeightSecondaryBps = frag.WeightSecondaryBps
		next.SigmaEWMALambdaBps = frag.SigmaEWMALambdaBps
		next.EnableSoftDivergence = frag.EnableSoftDivergence
		if err := next.Validate(); err != nil {
			return err
		}
		p.cfg.Oracle = next
		p.cfg.Blend.Spread = frag.WeightSpreadBps
		p.cfg.Blend.Sigma = frag.WeightSigmaBps
		p.cfg.Blend.Secondary = frag.WeightSecondaryBps

	case ParamKindAomq:
		var frag aomqParamFragment
		if _, err := toml.Decode(string(fragment), &frag); err != nil {
			return fmt.Errorf("pool: decode aomq params: %w", err)
		}
		next := p.cfg.Aomq
		next.EmergencySpreadBps = frag.EmergencySpreadBps
		next.FloorEpsilonBps = frag.FloorEpsilonBps
		next.MinQuoteNotional = uint256FromUint64(frag.MinQuoteNotionalUnits)
		if err := next.Validate(); err != nil {
			return err
		}
		p.cfg.Aomq = next

	case ParamKindPreview:
		var frag previewParamFragment
		if _, err := toml.Decode(string(fragment), &frag); err != nil {
			return fmt.Errorf("pool: decode preview params: %w", err)
		}
		next := PreviewConfig{
			MaxAge:             secondsToDuration(frag.MaxAgeSec),
			SnapshotCooldown:   secondsToDuration(frag.SnapshotCooldownSec),
			RevertOnStale:      frag.RevertOnStale,
			EnablePreviewFresh: frag.EnablePreviewFresh,
		}
		if err := next.Validate(); err != nil {
			return err
		}
		p.preview = next

	case ParamKindFeatures:
		var frag featuresParamFragment
		if _, err := toml.Decode(string(fragment), &frag); err != nil {
			return fmt.Errorf("pool: decode feature flags: %w", err)
		}
		p.cfg.Flags.BlendOn = frag.BlendOn
		p.cfg.Flags.EnableSoftDivergence = frag.EnableSoftDivergence
		p.cfg.Flags.EnableSizeFee = frag.EnableSizeFee
		p.cfg.Flags.EnableBBOFloor = frag.EnableBBOFloor
		p.cfg.Flags.EnableInvTilt = frag.EnableInvTilt
		p.cfg.Flags.EnableAOMQ = frag.EnableAOMQ
		p.cfg.Flags.EnableRebates = frag.EnableRebates
		p.cfg.Flags.EnableAutoRecenter = frag.EnableAutoRecenter
		p.cfg.Flags.EnableLVRFee = frag.EnableLVRFee
		p.cfg.Flags.DebugEmit = frag.DebugEmit
		p.cfg.Oracle.EnableSoftDivergence = frag.EnableSoftDivergence

	default:
		return fmt.Errorf("pool: unknown param kind %q", kind)
	}
	return nil
}
