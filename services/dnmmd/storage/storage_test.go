package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"nhbchain/native/dnmm/rfq"
)

func TestFeeStatePersistence(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	if _, ok, err := store.LoadFeeState(ctx); err != nil || ok {
		t.Fatalf("expected no fee state yet, got ok=%v err=%v", ok, err)
	}
	rec := FeeStateRecord{FeeBps: 42, LastBlock: 100}
	if err := store.SaveFeeState(ctx, rec); err != nil {
		t.Fatalf("save fee state: %v", err)
	}
	loaded, ok, err := store.LoadFeeState(ctx)
	if err != nil {
		t.Fatalf("load fee state: %v", err)
	}
	if !ok || loaded != rec {
		t.Fatalf("unexpected fee state: %+v", loaded)
	}
	rec.FeeBps = 55
	if err := store.SaveFeeState(ctx, rec); err != nil {
		t.Fatalf("update fee state: %v", err)
	}
	loaded, _, err = store.LoadFeeState(ctx)
	if err != nil {
		t.Fatalf("reload fee state: %v", err)
	}
	if loaded.FeeBps != 55 {
		t.Fatalf("expected updated fee bps, got %d", loaded.FeeBps)
	}
}

func TestConfidenceStatePersistence(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	rec := ConfidenceStateRecord{EwmaSigmaBps: 75, LastBlock: 10}
	if err := store.SaveConfidenceState(ctx, rec); err != nil {
		t.Fatalf("save confidence state: %v", err)
	}
	loaded, ok, err := store.LoadConfidenceState(ctx)
	if err != nil || !ok {
		t.Fatalf("load confidence state: ok=%v err=%v", ok, err)
	}
	if loaded != rec {
		t.Fatalf("unexpected confidence state: %+v", loaded)
	}
}

func TestInventoryTargetPersistence(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	rec := InventoryTargetRecord{
		TargetBaseXstar:    uint256.NewInt(123_456),
		LastRebalancePrice: uint256.NewInt(1_000_000),
		LastRebalanceAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
	if err := store.SaveInventoryTarget(ctx, rec); err != nil {
		t.Fatalf("save inventory target: %v", err)
	}
	loaded, ok, err := store.LoadInventoryTarget(ctx)
	if err != nil || !ok {
		t.Fatalf("load inventory target: ok=%v err=%v", ok, err)
	}
	if loaded.TargetBaseXstar.Cmp(rec.TargetBaseXstar) != 0 {
		t.Fatalf("unexpected target: %s", loaded.TargetBaseXstar)
	}
	if loaded.LastRebalancePrice.Cmp(rec.LastRebalancePrice) != 0 {
		t.Fatalf("unexpected last price: %s", loaded.LastRebalancePrice)
	}
	if !loaded.LastRebalanceAt.Equal(rec.LastRebalanceAt) {
		t.Fatalf("unexpected last rebalance time: %s", loaded.LastRebalanceAt)
	}
}

func TestPreviewSnapshotPersistence(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	rec := PreviewSnapshotRecord{
		TSUnix: 1_700_000_100, MidWad: uint256.NewInt(5_000), SpreadBps: 10,
		SigmaBps: 20, DivergenceBps: 5, Regime: "SPOT",
	}
	if err := store.SavePreviewSnapshot(ctx, rec); err != nil {
		t.Fatalf("save preview snapshot: %v", err)
	}
	loaded, ok, err := store.LoadPreviewSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("load preview snapshot: ok=%v err=%v", ok, err)
	}
	if loaded.TSUnix != rec.TSUnix || loaded.Regime != rec.Regime {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}
	if loaded.MidWad.Cmp(rec.MidWad) != 0 {
		t.Fatalf("unexpected mid: %s", loaded.MidWad)
	}
}

func TestMarkUsedRejectsReplay(t *testing.T) {
	store := openTestDB(t)
	var salt [32]byte
	salt[0] = 9
	if err := store.MarkUsed(salt); err != nil {
		t.Fatalf("first mark used: %v", err)
	}
	if err := store.MarkUsed(salt); !errors.Is(err, rfq.ErrSaltAlreadyUsed) {
		t.Fatalf("expected ErrSaltAlreadyUsed, got %v", err)
	}
}

func TestRecordParamUpdate(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	if err := store.RecordParamUpdate(ctx, "FEE", []byte("BaseBps = 15"), time.Unix(1_700_000_000, 0)); err != nil {
		t.Fatalf("record param update: %v", err)
	}
	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM param_updates WHERE kind = ?`, "FEE").Scan(&count); err != nil {
		t.Fatalf("count param updates: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one param update row, got %d", count)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, ErrPathRequired) {
		t.Fatalf("expected ErrPathRequired, got %v", err)
	}
}

func openTestDB(t *testing.T) *Storage {
	t.Helper()
	dir := t.TempDir()
	dsn, err := FileDSN(filepath.Join(dir, "dnmmd.sqlite"))
	if err != nil {
		t.Fatalf("build DSN: %v", err)
	}
	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
