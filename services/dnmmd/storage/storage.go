// Package storage persists dnmmd's durable state — fee/confidence state,
// the inventory recenter target, preview snapshots, RFQ salts, and a
// governance audit trail — to a local SQLite file, mirroring
// services/swapd/storage's glebarez/sqlite + database/sql shape.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/rfq"
)

// Storage wraps the dnmmd persistence layer.
type Storage struct {
	db *sql.DB
}

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("dnmmd storage path must be configured")

// Open initialises the backing store using a sqlite-compatible DSN.
func Open(path string) (*Storage, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS fee_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    fee_bps INTEGER NOT NULL,
    last_block INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS confidence_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    ewma_sigma_bps INTEGER NOT NULL,
    last_block INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory_target (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    target_base_xstar TEXT NOT NULL,
    last_rebalance_price TEXT NOT NULL,
    last_rebalance_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS preview_snapshot (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    ts_unix INTEGER NOT NULL,
    mid_wad TEXT NOT NULL,
    spread_bps INTEGER NOT NULL,
    sigma_bps INTEGER NOT NULL,
    divergence_bps INTEGER NOT NULL,
    regime TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rfq_salts (
    salt BLOB PRIMARY KEY,
    used_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS param_updates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    fragment TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_param_updates_applied_at ON param_updates(applied_at);
`

// FeeStateRecord captures the persisted fee decay state.
type FeeStateRecord struct {
	FeeBps    uint32
	LastBlock uint64
}

// SaveFeeState upserts the current fee decay state.
func (s *Storage) SaveFeeState(ctx context.Context, rec FeeStateRecord) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO fee_state(id, fee_bps, last_block, updated_at)
        VALUES(1, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(id) DO UPDATE SET
            fee_bps=excluded.fee_bps,
            last_block=excluded.last_block,
            updated_at=excluded.updated_at
    `, rec.FeeBps, rec.LastBlock)
	if err != nil {
		return fmt.Errorf("save fee state: %w", err)
	}
	return nil
}

// LoadFeeState returns the persisted fee decay state, if any.
func (s *Storage) LoadFeeState(ctx context.Context) (FeeStateRecord, bool, error) {
	if s == nil {
		return FeeStateRecord{}, false, fmt.Errorf("storage not configured")
	}
	row := s.db.QueryRowContext(ctx, `SELECT fee_bps, last_block FROM fee_state WHERE id = 1`)
	var rec FeeStateRecord
	if err := row.Scan(&rec.FeeBps, &rec.LastBlock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FeeStateRecord{}, false, nil
		}
		return FeeStateRecord{}, false, fmt.Errorf("query fee state: %w", err)
	}
	return rec, true, nil
}

// ConfidenceStateRecord captures the persisted sigma EWMA state.
type ConfidenceStateRecord struct {
	EwmaSigmaBps uint32
	LastBlock    uint64
}

// SaveConfidenceState upserts the current sigma EWMA state.
func (s *Storage) SaveConfidenceState(ctx context.Context, rec ConfidenceStateRecord) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO confidence_state(id, ewma_sigma_bps, last_block, updated_at)
        VALUES(1, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(id) DO UPDATE SET
            ewma_sigma_bps=excluded.ewma_sigma_bps,
            last_block=excluded.last_block,
            updated_at=excluded.updated_at
    `, rec.EwmaSigmaBps, rec.LastBlock)
	if err != nil {
		return fmt.Errorf("save confidence state: %w", err)
	}
	return nil
}

// LoadConfidenceState returns the persisted sigma EWMA state, if any.
func (s *Storage) LoadConfidenceState(ctx context.Context) (ConfidenceStateRecord, bool, error) {
	if s == nil {
		return ConfidenceStateRecord{}, false, fmt.Errorf("storage not configured")
	}
	row := s.db.QueryRowContext(ctx, `SELECT ewma_sigma_bps, last_block FROM confidence_state WHERE id = 1`)
	var rec ConfidenceStateRecord
	if err := row.Scan(&rec.EwmaSigmaBps, &rec.LastBlock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConfidenceStateRecord{}, false, nil
		}
		return ConfidenceStateRecord{}, false, fmt.Errorf("query confidence state: %w", err)
	}
	return rec, true, nil
}

// InventoryTargetRecord captures the persisted recenter target.
type InventoryTargetRecord struct {
	TargetBaseXstar    *uint256.Int
	LastRebalancePrice *uint256.Int
	LastRebalanceAt    time.Time
}

// SaveInventoryTarget upserts the persisted recenter target.
func (s *Storage) SaveInventoryTarget(ctx context.Context, rec InventoryTargetRecord) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	target := "0"
	if rec.TargetBaseXstar != nil {
		target = rec.TargetBaseXstar.String()
	}
	price := "0"
	if rec.LastRebalancePrice != nil {
		price = rec.LastRebalancePrice.String()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO inventory_target(id, target_base_xstar, last_rebalance_price, last_rebalance_at)
        VALUES(1, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            target_base_xstar=excluded.target_base_xstar,
            last_rebalance_price=excluded.last_rebalance_price,
            last_rebalance_at=excluded.last_rebalance_at
    `, target, price, rec.LastRebalanceAt.UTC())
	if err != nil {
		return fmt.Errorf("save inventory target: %w", err)
	}
	return nil
}

// LoadInventoryTarget returns the persisted recenter target, if any.
func (s *Storage) LoadInventoryTarget(ctx context.Context) (InventoryTargetRecord, bool, error) {
	if s == nil {
		return InventoryTargetRecord{}, false, fmt.Errorf("storage not configured")
	}
	row := s.db.QueryRowContext(ctx, `
        SELECT target_base_xstar, last_rebalance_price, last_rebalance_at
        FROM inventory_target WHERE id = 1
    `)
	var target, price string
	var rec InventoryTargetRecord
	if err := row.Scan(&target, &price, &rec.LastRebalanceAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return InventoryTargetRecord{}, false, nil
		}
		return InventoryTargetRecord{}, false, fmt.Errorf("query inventory target: %w", err)
	}
	rec.TargetBaseXstar = new(uint256.Int)
	if err := rec.TargetBaseXstar.SetFromDecimal(target); err != nil {
		return InventoryTargetRecord{}, false, fmt.Errorf("parse target_base_xstar: %w", err)
	}
	rec.LastRebalancePrice = new(uint256.Int)
	if err := rec.LastRebalancePrice.SetFromDecimal(price); err != nil {
		return InventoryTargetRecord{}, false, fmt.Errorf("parse last_rebalance_price: %w", err)
	}
	return rec, true, nil
}

// PreviewSnapshotRecord mirrors pool.PreviewSnapshot's persisted fields.
type PreviewSnapshotRecord struct {
	TSUnix        int64
	MidWad        *uint256.Int
	SpreadBps     uint32
	SigmaBps      uint32
	DivergenceBps uint32
	Regime        string
}

// SavePreviewSnapshot upserts the latest cached preview snapshot.
func (s *Storage) SavePreviewSnapshot(ctx context.Context, rec PreviewSnapshotRecord) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	mid := "0"
	if rec.MidWad != nil {
		mid = rec.MidWad.String()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO preview_snapshot(id, ts_unix, mid_wad, spread_bps, sigma_bps, divergence_bps, regime)
        VALUES(1, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            ts_unix=excluded.ts_unix,
            mid_wad=excluded.mid_wad,
            spread_bps=excluded.spread_bps,
            sigma_bps=excluded.sigma_bps,
            divergence_bps=excluded.divergence_bps,
            regime=excluded.regime
    `, rec.TSUnix, mid, rec.SpreadBps, rec.SigmaBps, rec.DivergenceBps, rec.Regime)
	if err != nil {
		return fmt.Errorf("save preview snapshot: %w", err)
	}
	return nil
}

// LoadPreviewSnapshot returns the cached preview snapshot, if any.
func (s *Storage) LoadPreviewSnapshot(ctx context.Context) (PreviewSnapshotRecord, bool, error) {
	if s == nil {
		return PreviewSnapshotRecord{}, false, fmt.Errorf("storage not configured")
	}
	row := s.db.QueryRowContext(ctx, `
        SELECT ts_unix, mid_wad, spread_bps, sigma_bps, divergence_bps, regime
        FROM preview_snapshot WHERE id = 1
    `)
	var rec PreviewSnapshotRecord
	var mid string
	if err := row.Scan(&rec.TSUnix, &mid, &rec.SpreadBps, &rec.SigmaBps, &rec.DivergenceBps, &rec.Regime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PreviewSnapshotRecord{}, false, nil
		}
		return PreviewSnapshotRecord{}, false, fmt.Errorf("query preview snapshot: %w", err)
	}
	rec.MidWad = new(uint256.Int)
	if err := rec.MidWad.SetFromDecimal(mid); err != nil {
		return PreviewSnapshotRecord{}, false, fmt.Errorf("parse mid_wad: %w", err)
	}
	return rec, true, nil
}

// MarkUsed records salt as redeemed, returning an error if it was already
// present. Implements rfq.SaltStore directly so *Storage can be assigned to
// rfq.Engine.SaltStore without an adapter.
func (s *Storage) MarkUsed(salt [32]byte) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	result, err := s.db.Exec(`
        INSERT INTO rfq_salts(salt, used_at)
        VALUES(?, CURRENT_TIMESTAMP)
        ON CONFLICT(salt) DO NOTHING
    `, salt[:])
	if err != nil {
		return fmt.Errorf("mark salt used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return rfq.ErrSaltAlreadyUsed
	}
	return nil
}

// RecordParamUpdate appends a governance change to the audit trail.
func (s *Storage) RecordParamUpdate(ctx context.Context, kind string, fragment []byte, appliedAt time.Time) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO param_updates(kind, fragment, applied_at)
        VALUES(?, ?, ?)
    `, kind, string(fragment), appliedAt.UTC())
	if err != nil {
		return fmt.Errorf("record param update: %w", err)
	}
	return nil
}
