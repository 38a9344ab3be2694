// Package config loads dnmmd's YAML runtime configuration, mirroring
// services/swapd/config's Duration-wrapper-and-defaults-then-validate shape.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to accept human-readable YAML strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "2m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for dnmmd.
type Config struct {
	ListenAddress string        `yaml:"listen"`
	DatabasePath  string        `yaml:"database"`
	Pair          PairConfig    `yaml:"pair"`
	Token         TokenConfig   `yaml:"token"`
	Pricing       PricingConfig `yaml:"pricing"`
	Preview       PreviewConfig `yaml:"preview"`
	Oracle        OracleFeed    `yaml:"oracle_feed"`
	Admin         AdminConfig   `yaml:"admin"`
	Maker         MakerIdentity `yaml:"maker"`
}

// PairConfig names the base/quote pair this pool instance serves.
type PairConfig struct {
	Base  string `yaml:"base"`
	Quote string `yaml:"quote"`
}

// TokenConfig mirrors pool.TokenConfig's YAML-facing shape.
type TokenConfig struct {
	BaseScale     string `yaml:"base_scale"`
	QuoteScale    string `yaml:"quote_scale"`
	BaseDecimals  uint8  `yaml:"base_decimals"`
	QuoteDecimals uint8  `yaml:"quote_decimals"`
}

// PricingConfig is the YAML-facing projection of pricing.Config; every field
// here round-trips through pool.UpdateParams's TOML fragments at runtime,
// this is only the genesis seed.
type PricingConfig struct {
	OracleMaxAge        Duration `yaml:"oracle_max_age"`
	OracleStallWindow   Duration `yaml:"oracle_stall_window"`
	ConfCapBpsSpot      uint32   `yaml:"conf_cap_bps_spot"`
	ConfCapBpsStrict    uint32   `yaml:"conf_cap_bps_strict"`
	DivergenceAcceptBps uint32   `yaml:"divergence_accept_bps"`
	DivergenceSoftBps   uint32   `yaml:"divergence_soft_bps"`
	DivergenceHardBps   uint32   `yaml:"divergence_hard_bps"`
	EnableSoftDivergence bool    `yaml:"enable_soft_divergence"`

	FeeBaseBps          uint32 `yaml:"fee_base_bps"`
	FeeCapBps           uint32 `yaml:"fee_cap_bps"`
	FeeDecayPctPerBlock uint32 `yaml:"fee_decay_pct_per_block"`

	InventoryFloorBps             uint32 `yaml:"inventory_floor_bps"`
	InventoryTargetBaseXstar      string `yaml:"inventory_target_base_xstar"`
	InventoryRecenterThresholdPct uint32 `yaml:"inventory_recenter_threshold_pct"`

	MakerS0Notional string `yaml:"maker_s0_notional"`

	EnableAutoRecenter bool `yaml:"enable_auto_recenter"`
	EnableAOMQ         bool `yaml:"enable_aomq"`
	EnableInvTilt      bool `yaml:"enable_inv_tilt"`
	EnableBBOFloor     bool `yaml:"enable_bbo_floor"`
}

// PreviewConfig mirrors pool.PreviewConfig's YAML-facing shape.
type PreviewConfig struct {
	MaxAge           Duration `yaml:"max_age"`
	SnapshotCooldown Duration `yaml:"snapshot_cooldown"`
	RevertOnStale    bool     `yaml:"revert_on_stale"`
}

// OracleFeed configures where dnmmd reads live primary/secondary prices from.
type OracleFeed struct {
	PollInterval Duration `yaml:"poll_interval"`
	Endpoint     string   `yaml:"endpoint"`
}

// MakerIdentity configures the RFQ signer this instance trusts.
type MakerIdentity struct {
	Address string `yaml:"address"`
}

// AdminConfig captures security settings for the governance API, mirroring
// services/swapd/config's AdminConfig exactly.
type AdminConfig struct {
	BearerToken     string         `yaml:"bearer_token"`
	BearerTokenFile string         `yaml:"bearer_token_file"`
	TLS             AdminTLSConfig `yaml:"tls"`
}

// AdminTLSConfig captures TLS key material configuration.
type AdminTLSConfig struct {
	Disable  bool   `yaml:"disable"`
	CertPath string `yaml:"cert"`
	KeyPath  string `yaml:"key"`
}

type loadOptions struct {
	allowInsecureBearerWithoutTLS bool
}

// Option customises behaviour when loading dnmmd configuration.
type Option func(*loadOptions)

// WithAllowInsecureBearerWithoutTLS permits bearer authentication without
// TLS; intended for development overrides only.
func WithAllowInsecureBearerWithoutTLS() Option {
	return func(o *loadOptions) {
		if o != nil {
			o.allowInsecureBearerWithoutTLS = true
		}
	}
}

// Load reads configuration from the supplied path.
func Load(path string, opts ...Option) (Config, error) {
	cfg := Config{}
	options := loadOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Admin.normalise(options.allowInsecureBearerWithoutTLS); err != nil {
		return cfg, fmt.Errorf("admin security: %w", err)
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "/var/data/dnmmd.sqlite"
	}
	if cfg.Token.BaseScale == "" {
		cfg.Token.BaseScale = "1000000000000000000"
	}
	if cfg.Token.QuoteScale == "" {
		cfg.Token.QuoteScale = "1000000000000000000"
	}
	if cfg.Pricing.OracleMaxAge.Duration == 0 {
		cfg.Pricing.OracleMaxAge.Duration = 5 * time.Second
	}
	if cfg.Pricing.OracleStallWindow.Duration == 0 {
		cfg.Pricing.OracleStallWindow.Duration = 30 * time.Second
	}
	if cfg.Pricing.FeeCapBps == 0 {
		cfg.Pricing.FeeCapBps = 150
	}
	if cfg.Preview.MaxAge.Duration == 0 {
		cfg.Preview.MaxAge.Duration = 30 * time.Second
	}
	if cfg.Preview.SnapshotCooldown.Duration == 0 {
		cfg.Preview.SnapshotCooldown.Duration = 5 * time.Second
	}
	if cfg.Oracle.PollInterval.Duration == 0 {
		cfg.Oracle.PollInterval.Duration = 3 * time.Second
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Pair.Base) == "" || strings.TrimSpace(cfg.Pair.Quote) == "" {
		return fmt.Errorf("pair.base and pair.quote must be configured")
	}
	if cfg.Pricing.FeeBaseBps > cfg.Pricing.FeeCapBps {
		return fmt.Errorf("pricing.fee_base_bps must be <= pricing.fee_cap_bps")
	}
	if strings.TrimSpace(cfg.Maker.Address) == "" {
		return fmt.Errorf("maker.address must be configured for RFQ signature verification")
	}
	return nil
}

func (a *AdminConfig) normalise(allowInsecureBearerWithoutTLS bool) error {
	if a == nil {
		return fmt.Errorf("admin configuration missing")
	}
	token := strings.TrimSpace(a.BearerToken)
	if path := strings.TrimSpace(a.BearerTokenFile); path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read bearer_token_file: %w", err)
		}
		token = strings.TrimSpace(string(contents))
	}
	a.BearerToken = token

	a.TLS.CertPath = strings.TrimSpace(a.TLS.CertPath)
	a.TLS.KeyPath = strings.TrimSpace(a.TLS.KeyPath)
	if a.TLS.CertPath == "" && a.TLS.KeyPath == "" {
		a.TLS.Disable = true
	}
	if a.TLS.Disable && token != "" && !allowInsecureBearerWithoutTLS {
		return fmt.Errorf("admin bearer_token requires TLS to be enabled")
	}
	if !a.TLS.Disable {
		if a.TLS.CertPath == "" {
			return fmt.Errorf("tls.cert must be configured when TLS is enabled")
		}
		if a.TLS.KeyPath == "" {
			return fmt.Errorf("tls.key must be configured when TLS is enabled")
		}
	}
	if a.BearerToken == "" {
		return fmt.Errorf("configure admin.bearer_token for governance authentication")
	}
	return nil
}
