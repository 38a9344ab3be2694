// Command dnmmd runs the oracle-guided dynamic market maker service for a
// single token pair: a quote/swap/RFQ HTTP surface, an oracle watcher that
// keeps preview state warm, and a governance API for live parameter tuning.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/confidence"
	"nhbchain/native/dnmm/feepolicy"
	"nhbchain/native/dnmm/fixedpoint"
	"nhbchain/native/dnmm/oracle"
	"nhbchain/native/dnmm/pool"
	"nhbchain/native/dnmm/pricing"
	"nhbchain/native/dnmm/rfq"
	"nhbchain/observability/logging"
	telemetry "nhbchain/observability/otel"
	"nhbchain/services/dnmmd/config"
	"nhbchain/services/dnmmd/server"
	"nhbchain/services/dnmmd/storage"
	"nhbchain/services/dnmmd/watcher"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func main() {
	var (
		cfgPath                       string
		allowInsecureBearerWithoutTLS bool
	)
	flag.StringVar(&cfgPath, "config", "services/dnmmd/config.yaml", "path to dnmmd configuration file")
	flag.BoolVar(&allowInsecureBearerWithoutTLS, "allow-insecure-bearer-without-tls", false, "allow admin bearer authentication without TLS (dev only)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NHB_ENV"))
	logger := logging.Setup("dnmmd", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "dnmmd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		logger.Error("dnmmd: init telemetry", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	var loadOptions []config.Option
	if allowInsecureBearerWithoutTLS {
		if env != "dev" {
			logger.Error("dnmmd: --allow-insecure-bearer-without-tls requires NHB_ENV=dev")
			os.Exit(1)
		}
		logger.Warn("dnmmd: allowing admin bearer token without TLS (development override)")
		loadOptions = append(loadOptions, config.WithAllowInsecureBearerWithoutTLS())
	}

	cfg, err := config.Load(cfgPath, loadOptions...)
	if err != nil {
		logger.Error("dnmmd: load config", "error", err.Error())
		os.Exit(1)
	}

	dsn, err := storage.FileDSN(cfg.DatabasePath)
	if err != nil {
		logger.Error("dnmmd: resolve storage DSN", "error", err.Error())
		os.Exit(1)
	}
	store, err := storage.Open(dsn)
	if err != nil {
		logger.Error("dnmmd: open storage", "error", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	p, err := buildPool(cfg, store, logger)
	if err != nil {
		logger.Error("dnmmd: build pool", "error", err.Error())
		os.Exit(1)
	}

	makerAddr := ethcommon.HexToAddress(strings.TrimSpace(cfg.Maker.Address))
	rfqEngine := rfq.NewEngine(makerAddr)
	rfqEngine.SaltStore = store

	authConfig := server.AuthConfig{
		BearerToken: cfg.Admin.BearerToken,
		AllowMTLS:   false,
	}
	authenticator, err := server.NewAuthenticator(authConfig)
	if err != nil {
		logger.Error("dnmmd: configure admin auth", "error", err.Error())
		os.Exit(1)
	}

	var tlsConfig *tls.Config
	if !cfg.Admin.TLS.Disable {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		TLS: server.TLSConfig{
			Disabled: cfg.Admin.TLS.Disable,
			CertFile: cfg.Admin.TLS.CertPath,
			KeyFile:  cfg.Admin.TLS.KeyPath,
			Config:   tlsConfig,
		},
	}, p, rfqEngine, store, logger, authenticator)
	if err != nil {
		logger.Error("dnmmd: server", "error", err.Error())
		os.Exit(1)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oracleWatcher := &watcher.OracleWatcher{
		Pool:         p,
		Source:       httpOracleSource{endpoint: cfg.Oracle.Endpoint},
		Interval:     cfg.Oracle.PollInterval.Duration,
		AutoRecenter: true,
		Logger:       logger,
	}
	go func() {
		if err := oracleWatcher.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dnmmd: oracle watcher exited", "error", err.Error())
			stop()
		}
	}()

	if err := srv.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dnmmd: http server error", "error", err.Error())
		os.Exit(1)
	}
}

// buildPool constructs the Pool from configuration, starting from empty
// reserves. Persisted fee and confidence state are not loaded, so the fee
// decay clock and the sigma EWMA start from zero after a restart.
func buildPool(cfg config.Config, store *storage.Storage, logger *slog.Logger) (*pool.Pool, error) {
	baseScale := new(uint256.Int)
	if err := baseScale.SetFromDecimal(cfg.Token.BaseScale); err != nil {
		return nil, err
	}
	quoteScale := new(uint256.Int)
	if err := quoteScale.SetFromDecimal(cfg.Token.QuoteScale); err != nil {
		return nil, err
	}
	tokens := pool.TokenConfig{
		BaseScale: baseScale, QuoteScale: quoteScale,
		BaseDecimals: cfg.Token.BaseDecimals, QuoteDecimals: cfg.Token.QuoteDecimals,
	}

	targetBaseXstar := new(uint256.Int)
	s0Notional := new(uint256.Int)
	if cfg.Pricing.InventoryTargetBaseXstar != "" {
		if err := targetBaseXstar.SetFromDecimal(cfg.Pricing.InventoryTargetBaseXstar); err != nil {
			return nil, err
		}
	}
	if cfg.Pricing.MakerS0Notional != "" {
		if err := s0Notional.SetFromDecimal(cfg.Pricing.MakerS0Notional); err != nil {
			return nil, err
		}
	} else {
		s0Notional = new(uint256.Int).Set(fixedpoint.WAD)
	}

	pricingCfg := pricing.Config{
		Oracle: oracle.Config{
			MaxAge: cfg.Pricing.OracleMaxAge.Duration, StallWindow: cfg.Pricing.OracleStallWindow.Duration,
			ConfCapBpsSpot: cfg.Pricing.ConfCapBpsSpot, ConfCapBpsStrict: cfg.Pricing.ConfCapBpsStrict,
			DivergenceBps: cfg.Pricing.DivergenceAcceptBps, DivergenceAcceptBps: cfg.Pricing.DivergenceAcceptBps,
			DivergenceSoftBps: cfg.Pricing.DivergenceSoftBps, DivergenceHardBps: cfg.Pricing.DivergenceHardBps,
			EnableSoftDivergence: cfg.Pricing.EnableSoftDivergence,
		},
		Fee: feepolicy.Config{
			BaseBps: cfg.Pricing.FeeBaseBps, CapBps: cfg.Pricing.FeeCapBps,
			AlphaConfNum: 60, AlphaConfDen: 100, BetaInvDevNum: 10, BetaInvDevDen: 100,
			DecayPctPerBlock: cfg.Pricing.FeeDecayPctPerBlock,
		},
		Inventory: pricing.InventoryConfig{
			TargetBaseXstar: targetBaseXstar, FloorBps: cfg.Pricing.InventoryFloorBps,
			RecenterThresholdPct: cfg.Pricing.InventoryRecenterThresholdPct,
		},
		Maker: pricing.MakerConfig{S0NotionalWad: s0Notional},
		Aomq:  pricing.AomqConfig{MinQuoteNotional: uint256.NewInt(1), EmergencySpreadBps: 100, FloorEpsilonBps: 50},
		Flags: pricing.FeatureFlags{
			EnableAutoRecenter: cfg.Pricing.EnableAutoRecenter, EnableAOMQ: cfg.Pricing.EnableAOMQ,
			EnableInvTilt: cfg.Pricing.EnableInvTilt, EnableBBOFloor: cfg.Pricing.EnableBBOFloor,
			BlendOn: true,
		},
		Blend:        confidence.Weights{Spread: 4000, Sigma: 4000, Secondary: 2000},
		LVREstimator: feepolicy.ZeroLVREstimator,
	}

	previewCfg := pool.PreviewConfig{
		MaxAge: cfg.Preview.MaxAge.Duration, SnapshotCooldown: cfg.Preview.SnapshotCooldown.Duration,
		RevertOnStale: cfg.Preview.RevertOnStale,
	}

	reserves := pool.Reserves{BaseUnits: uint256.NewInt(0), QuoteUnits: uint256.NewInt(0)}

	p, err := pool.NewPool(tokens, pricingCfg, previewCfg, reserves, pool.WithObserver(pool.SlogObserver{Logger: logger}))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if target, ok, err := store.LoadInventoryTarget(ctx); err == nil && ok && target.TargetBaseXstar != nil && !target.TargetBaseXstar.IsZero() {
		if _, err := p.RebalanceTarget(target.LastRebalancePrice, false); err != nil {
			logger.Warn("dnmmd: restore inventory target failed", "error", err.Error())
		}
	}

	return p, nil
}

// httpOracleSource is a placeholder watcher.Source that deployments wire up
// to their actual primary/secondary feed client; left unimplemented here
// since the transport is deployment-specific (REST poll, websocket, gRPC).
type httpOracleSource struct {
	endpoint string
}

func (s httpOracleSource) Fetch(ctx context.Context) (oracle.Input, error) {
	return oracle.Input{}, errors.New("dnmmd: configure an oracle source for " + s.endpoint)
}
