// Package watcher polls the configured oracle feed on an interval and keeps
// the pool's preview snapshot (and, when enabled, its recenter target) warm
// without requiring an inbound quote/swap request to trigger a refresh,
// mirroring services/swapd/oracle.Manager's ticker-driven Run/Tick split.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nhbchain/native/dnmm/oracle"
	"nhbchain/native/dnmm/pool"
)

// Source resolves the current oracle.Input for the watched pair.
type Source interface {
	Fetch(ctx context.Context) (oracle.Input, error)
}

// SourceFunc adapts an ordinary function to Source.
type SourceFunc func(ctx context.Context) (oracle.Input, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context) (oracle.Input, error) {
	if f == nil {
		return oracle.Input{}, fmt.Errorf("watcher: source not configured")
	}
	return f(ctx)
}

// OracleWatcher periodically refreshes a Pool's preview snapshot from Source
// and, when AutoRecenter is set, attempts an auto-mode RebalanceTarget on
// every tick (gated internally by the pool's threshold/cooldown checks).
type OracleWatcher struct {
	Pool         *pool.Pool
	Source       Source
	Interval     time.Duration
	AutoRecenter bool
	Logger       *slog.Logger

	once sync.Once
}

// Run blocks, polling Source every Interval until ctx is cancelled.
func (w *OracleWatcher) Run(ctx context.Context) error {
	if w == nil || w.Pool == nil || w.Source == nil {
		return fmt.Errorf("watcher: not configured")
	}
	interval := w.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	w.once.Do(func() {
		logger.Info("dnmmd: oracle watcher started", "interval", interval.String())
	})
	for {
		if err := w.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("dnmmd: oracle watcher tick failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs a single poll-and-refresh cycle.
func (w *OracleWatcher) Tick(ctx context.Context) error {
	if w == nil || w.Pool == nil || w.Source == nil {
		return fmt.Errorf("watcher: not configured")
	}
	input, err := w.Source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch oracle input: %w", err)
	}
	snap, err := w.Pool.RefreshPreviewSnapshot(input)
	if err != nil {
		return fmt.Errorf("refresh preview snapshot: %w", err)
	}
	if w.AutoRecenter && snap.MidWad != nil {
		if _, err := w.Pool.RebalanceTarget(snap.MidWad, true); err != nil {
			logger := w.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Debug("dnmmd: auto recenter skipped", "error", err.Error())
		}
	}
	return nil
}
