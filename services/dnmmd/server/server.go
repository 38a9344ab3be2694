// Package server hosts dnmmd's HTTP surface: public quote/swap/preview
// endpoints and a bearer/mTLS-guarded governance API, grounded on
// services/swapd/server's stdlib net/http + otelhttp instrumentation shape.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nhbchain/native/dnmm/oracle"
	"nhbchain/native/dnmm/pool"
	"nhbchain/native/dnmm/rfq"
	"nhbchain/observability"
	"nhbchain/services/dnmmd/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	TLS           TLSConfig
}

// TLSConfig describes TLS settings for the listener.
type TLSConfig struct {
	Disabled bool
	CertFile string
	KeyFile  string
	Config   *tls.Config
}

// Server hosts the quote/swap/preview/governance API for a single pool.
type Server struct {
	cfg     Config
	pool    *pool.Pool
	rfq     *rfq.Engine
	store   *storage.Storage
	logger  *slog.Logger
	admin   *Authenticator

	tls struct {
		disabled bool
		certFile string
		keyFile  string
		config   *tls.Config
	}
}

// New constructs a new HTTP server bound to the given pool.
func New(cfg Config, p *pool.Pool, rfqEngine *rfq.Engine, store *storage.Storage, logger *slog.Logger, admin *Authenticator) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pool required")
	}
	if admin == nil {
		return nil, fmt.Errorf("admin authenticator required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{cfg: cfg, pool: p, rfq: rfqEngine, store: store, logger: logger, admin: admin}
	srv.tls.disabled = cfg.TLS.Disabled
	srv.tls.certFile = strings.TrimSpace(cfg.TLS.CertFile)
	srv.tls.keyFile = strings.TrimSpace(cfg.TLS.KeyFile)
	srv.tls.config = cfg.TLS.Config
	return srv, nil
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	mux := http.NewServeMux()
	mux.Handle("/healthz", otelhttp.NewHandler(http.HandlerFunc(s.handleHealth), "dnmmd.health"))
	mux.Handle("/v1/quote", otelhttp.NewHandler(http.HandlerFunc(s.handleQuote), "dnmmd.quote"))
	mux.Handle("/v1/swap", otelhttp.NewHandler(http.HandlerFunc(s.handleSwap), "dnmmd.swap"))
	mux.Handle("/v1/rfq/swap", otelhttp.NewHandler(http.HandlerFunc(s.handleRFQSwap), "dnmmd.rfq_swap"))
	mux.Handle("/v1/preview/snapshot", otelhttp.NewHandler(http.HandlerFunc(s.handlePreviewSnapshot), "dnmmd.preview_snapshot"))
	mux.Handle("/v1/preview/ladder", otelhttp.NewHandler(http.HandlerFunc(s.handlePreviewLadder), "dnmmd.preview_ladder"))
	mux.Handle("/admin/rebalance", otelhttp.NewHandler(s.requireAdmin(http.HandlerFunc(s.handleRebalance)), "dnmmd.rebalance"))
	mux.Handle("/admin/update_params", otelhttp.NewHandler(s.requireAdmin(http.HandlerFunc(s.handleUpdateParams)), "dnmmd.update_params"))
	mux.Handle("/admin/pause", otelhttp.NewHandler(s.requireAdmin(http.HandlerFunc(s.handlePause)), "dnmmd.pause"))

	srv := &http.Server{Addr: s.cfg.ListenAddress, Handler: mux, TLSConfig: s.tls.config}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dnmmd: http server listening", "address", s.cfg.ListenAddress)
	var err error
	if s.tls.disabled {
		err = srv.ListenAndServe()
	} else {
		err = srv.ListenAndServeTLS(s.tls.certFile, s.tls.keyFile)
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	if s.admin == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
		})
	}
	return s.admin.Middleware(next)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// swapRequestDTO is the wire shape shared by /v1/quote and /v1/swap.
type swapRequestDTO struct {
	Taker        string       `json:"taker"`
	AmountIn     string       `json:"amount_in"`
	IsBaseIn     bool         `json:"is_base_in"`
	MinAmountOut string       `json:"min_amount_out"`
	DeadlineUnix int64        `json:"deadline_unix"`
	Oracle       oracleInput  `json:"oracle"`
}

// oracleInput is the wire shape for oracle.Input's primary-mid reading; the
// public quote/swap surface only accepts a primary mid/age pair, leaving
// book/EMA/secondary readings to the watcher-fed preview snapshot path.
type oracleInput struct {
	MidWad  string `json:"mid_wad"`
	AgeSec  int64  `json:"age_sec"`
}

func (dto swapRequestDTO) toSwapRequest(now time.Time) (pool.SwapRequest, error) {
	amountIn, err := parseUint256(dto.AmountIn)
	if err != nil {
		return pool.SwapRequest{}, fmt.Errorf("amount_in: %w", err)
	}
	minOut, err := parseUint256Optional(dto.MinAmountOut)
	if err != nil {
		return pool.SwapRequest{}, fmt.Errorf("min_amount_out: %w", err)
	}
	mid, err := parseUint256(dto.Oracle.MidWad)
	if err != nil {
		return pool.SwapRequest{}, fmt.Errorf("oracle.mid_wad: %w", err)
	}
	in := oracle.Input{BlockTimestamp: now}
	in.Primary.Mid = &oracle.PrimaryMid{Mid: mid, Age: time.Duration(dto.Oracle.AgeSec) * time.Second}
	in.Primary.Book = &oracle.PrimaryBook{Bid: mid, Ask: mid, SpreadBps: 0, Age: time.Duration(dto.Oracle.AgeSec) * time.Second}
	return pool.SwapRequest{
		Taker:        dto.Taker,
		AmountIn:     amountIn,
		IsBaseIn:     dto.IsBaseIn,
		Oracle:       in,
		MinAmountOut: minOut,
		DeadlineUnix: dto.DeadlineUnix,
	}, nil
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var dto swapRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	req, err := dto.toSwapRequest(time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	result, err := s.pool.QuoteSwapExactIn(req)
	observability.DNMM().Observe("quote", time.Since(start), err)
	if err != nil {
		s.logger.Warn("dnmmd: quote rejected", "error", err.Error())
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	recordSwapMetrics(result)
	writeQuoteResult(w, result)
}

// recordSwapMetrics feeds the dnmmd Prometheus registry from a quote or
// settled swap result: fee distribution, AOMQ clamp activations, and
// divergence gate outcomes.
func recordSwapMetrics(result pool.SwapResult) {
	metrics := observability.DNMM()
	metrics.RecordFee(string(result.Reason), result.FeeBpsUsed)
	if result.AOMQTriggered {
		metrics.RecordAomqActivation(string(result.AOMQTrigger))
	}
	metrics.RecordDivergence(divergenceOutcomeLabel(result.DivergenceOutcome))
}

func divergenceOutcomeLabel(outcome oracle.DivergenceOutcome) string {
	switch outcome {
	case oracle.DivergenceHaircut:
		return "HAIRCUT"
	case oracle.DivergenceAOMQ:
		return "AOMQ"
	case oracle.DivergenceReject:
		return "REJECT"
	default:
		return "ACCEPT"
	}
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var dto swapRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	req, err := dto.toSwapRequest(time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	result, err := s.pool.SwapExactIn(req)
	observability.DNMM().Observe("swap", time.Since(start), err)
	if err != nil {
		s.logger.Warn("dnmmd: swap rejected", "error", err.Error())
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	recordSwapMetrics(result)
	s.persistEngineState(r.Context())
	writeQuoteResult(w, result)
}

// persistEngineState snapshots the pool's fee-decay and confidence-EWMA
// state to storage; dnmmd does not read it back at startup. Failures are
// logged, never surfaced to the caller.
func (s *Server) persistEngineState(ctx context.Context) {
	if s.store == nil {
		return
	}
	fee := s.pool.FeeState()
	if err := s.store.SaveFeeState(ctx, storage.FeeStateRecord{FeeBps: fee.LastFeeBps, LastBlock: fee.LastBlock}); err != nil {
		s.logger.Warn("dnmmd: persist fee state failed", "error", err.Error())
	}
	conf := s.pool.ConfidenceState()
	if err := s.store.SaveConfidenceState(ctx, storage.ConfidenceStateRecord{EwmaSigmaBps: uint32(conf.SigmaBps), LastBlock: conf.LastBlock}); err != nil {
		s.logger.Warn("dnmmd: persist confidence state failed", "error", err.Error())
	}
}

type rfqSwapDTO struct {
	Quote     rfqQuoteDTO `json:"quote"`
	Signature string      `json:"signature"`
	Request   swapRequestDTO `json:"request"`
}

type rfqQuoteDTO struct {
	Domain       string `json:"domain"`
	ChainID      uint64 `json:"chain_id"`
	Pair         string `json:"pair"`
	Taker        string `json:"taker"`
	IsBaseIn     bool   `json:"is_base_in"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
	MidWad       string `json:"mid_wad"`
	FeeBps       uint32 `json:"fee_bps"`
	SaltHex      string `json:"salt"`
	ExpiryUnix   int64  `json:"expiry_unix"`
}

func (s *Server) handleRFQSwap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.rfq == nil {
		http.Error(w, "rfq not configured", http.StatusServiceUnavailable)
		return
	}
	var dto rfqSwapDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	amountIn, err := parseUint256(dto.Quote.AmountIn)
	if err != nil {
		http.Error(w, fmt.Sprintf("quote.amount_in: %v", err), http.StatusBadRequest)
		return
	}
	minOut, err := parseUint256(dto.Quote.MinAmountOut)
	if err != nil {
		http.Error(w, fmt.Sprintf("quote.min_amount_out: %v", err), http.StatusBadRequest)
		return
	}
	mid, err := parseUint256(dto.Quote.MidWad)
	if err != nil {
		http.Error(w, fmt.Sprintf("quote.mid_wad: %v", err), http.StatusBadRequest)
		return
	}
	salt, err := parseSalt(dto.Quote.SaltHex)
	if err != nil {
		http.Error(w, fmt.Sprintf("quote.salt: %v", err), http.StatusBadRequest)
		return
	}
	sig, err := parseHexBytes(dto.Signature)
	if err != nil {
		http.Error(w, fmt.Sprintf("signature: %v", err), http.StatusBadRequest)
		return
	}
	q := rfq.Quote{
		Domain: dto.Quote.Domain, ChainID: dto.Quote.ChainID, Pair: dto.Quote.Pair,
		Taker: dto.Quote.Taker, IsBaseIn: dto.Quote.IsBaseIn, AmountIn: amountIn,
		MinAmountOut: minOut, MidWad: mid, FeeBps: dto.Quote.FeeBps, Salt: salt,
		ExpiryUnix: dto.Quote.ExpiryUnix,
	}
	now := time.Now().UTC()
	req, err := dto.Request.toSwapRequest(now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	result, err := s.rfq.VerifyAndSwap(s.pool, q, sig, now, req)
	observability.DNMM().Observe("rfq_swap", time.Since(start), err)
	if err != nil {
		s.logger.Warn("dnmmd: rfq swap rejected", "error", err.Error())
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	recordSwapMetrics(result)
	s.persistEngineState(r.Context())
	writeQuoteResult(w, result)
}

func (s *Server) handlePreviewSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Oracle oracleInput `json:"oracle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	mid, err := parseUint256(body.Oracle.MidWad)
	if err != nil {
		http.Error(w, fmt.Sprintf("oracle.mid_wad: %v", err), http.StatusBadRequest)
		return
	}
	now := time.Now().UTC()
	in := oracle.Input{BlockTimestamp: now}
	in.Primary.Mid = &oracle.PrimaryMid{Mid: mid, Age: time.Duration(body.Oracle.AgeSec) * time.Second}
	in.Primary.Book = &oracle.PrimaryBook{Bid: mid, Ask: mid, SpreadBps: 0, Age: time.Duration(body.Oracle.AgeSec) * time.Second}
	snap, err := s.pool.RefreshPreviewSnapshot(in)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.store != nil {
		rec := storage.PreviewSnapshotRecord{
			TSUnix: snap.TSUnix, MidWad: snap.MidWad, SpreadBps: snap.SpreadBps,
			SigmaBps: uint32(snap.SigmaBps), DivergenceBps: snap.DivergenceBps, Regime: regimeLabel(snap.Regime),
		}
		if err := s.store.SavePreviewSnapshot(r.Context(), rec); err != nil {
			s.logger.Warn("dnmmd: persist preview snapshot failed", "error", err.Error())
		}
	}
	json.NewEncoder(w).Encode(map[string]any{
		"ts_unix":        snap.TSUnix,
		"mid_wad":        stringOrZero(snap.MidWad),
		"spread_bps":     snap.SpreadBps,
		"sigma_bps":      snap.SigmaBps,
		"divergence_bps": snap.DivergenceBps,
		"regime":         regimeLabel(snap.Regime),
	})
}

func (s *Server) handlePreviewLadder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		RungsBps      []uint32    `json:"rungs_bps"`
		S0OverrideWad string      `json:"s0_override_wad"`
		Oracle        oracleInput `json:"oracle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	override, err := parseUint256Optional(body.S0OverrideWad)
	if err != nil {
		http.Error(w, fmt.Sprintf("s0_override_wad: %v", err), http.StatusBadRequest)
		return
	}
	mid, err := parseUint256(body.Oracle.MidWad)
	if err != nil {
		http.Error(w, fmt.Sprintf("oracle.mid_wad: %v", err), http.StatusBadRequest)
		return
	}
	now := time.Now().UTC()
	in := oracle.Input{BlockTimestamp: now}
	in.Primary.Mid = &oracle.PrimaryMid{Mid: mid, Age: time.Duration(body.Oracle.AgeSec) * time.Second}
	in.Primary.Book = &oracle.PrimaryBook{Bid: mid, Ask: mid, SpreadBps: 0, Age: time.Duration(body.Oracle.AgeSec) * time.Second}
	rungs, err := s.pool.PreviewLadder(body.RungsBps, override, in)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := make([]map[string]any, 0, len(rungs))
	for _, rung := range rungs {
		out = append(out, map[string]any{
			"amount_in":  stringOrZero(rung.AmountIn),
			"is_base_in": rung.IsBaseIn,
			"fee_bps":    rung.FeeBps,
			"amount_out": stringOrZero(rung.AmountOut),
			"clamped":    rung.Clamped,
		})
	}
	json.NewEncoder(w).Encode(map[string]any{"rungs": out})
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		MidWad string `json:"mid_wad"`
		Auto   bool   `json:"auto"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	mid, err := parseUint256(body.MidWad)
	if err != nil {
		http.Error(w, fmt.Sprintf("mid_wad: %v", err), http.StatusBadRequest)
		return
	}
	target, err := s.pool.RebalanceTarget(mid, body.Auto)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.store != nil {
		rec := storage.InventoryTargetRecord{TargetBaseXstar: target, LastRebalancePrice: mid, LastRebalanceAt: time.Now().UTC()}
		if err := s.store.SaveInventoryTarget(r.Context(), rec); err != nil {
			s.logger.Warn("dnmmd: persist inventory target failed", "error", err.Error())
		}
	}
	json.NewEncoder(w).Encode(map[string]any{"target_base_xstar": stringOrZero(target)})
}

func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Kind     string `json:"kind"`
		Fragment string `json:"fragment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.pool.UpdateParams(pool.ParamKind(strings.ToUpper(strings.TrimSpace(body.Kind))), []byte(body.Fragment)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.store != nil {
		if err := s.store.RecordParamUpdate(r.Context(), body.Kind, []byte(body.Fragment), time.Now().UTC()); err != nil {
			s.logger.Warn("dnmmd: record param update failed", "error", err.Error())
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.pool.Pause()
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		s.pool.Unpause()
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]bool{"paused": s.pool.Paused()})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func regimeLabel(r oracle.Regime) string {
	if r == oracle.RegimeFallback {
		return "FALLBACK"
	}
	return "SPOT"
}
