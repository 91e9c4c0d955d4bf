package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigLoad_Defaults(t *testing.T) {
	// clear env vars
	_ = os.Unsetenv("LEDGER_HTTP_PORT")
	_ = os.Unsetenv("LEDGER_DATA_DIR")
	_ = os.Unsetenv("LEDGER_TRANSFER_FEE_PERCENT")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.HTTPPort != 8085 {
		t.Fatalf("unexpected default port: %d", cfg.HTTPPort)
	}
	if cfg.DataDir != "data" {
		t.Fatalf("unexpected resolved data dir: %q", cfg.DataDir)
	}
	if cfg.MirrorEnabled() {
		t.Fatalf("mirror should be disabled without a DSN")
	}
	if cfg.SnapshotInterval != 5*time.Minute {
		t.Fatalf("unexpected default snapshot interval: %v", cfg.SnapshotInterval)
	}
	if len(cfg.StreakTierBonuses) != 4 || cfg.StreakTierBonuses[3] != 2.0 {
		t.Fatalf("unexpected default streak bonuses: %v", cfg.StreakTierBonuses)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	_ = os.Setenv("LEDGER_SYNC_INTERVAL", "90s")
	_ = os.Setenv("LEDGER_MIRROR_DSN", "postgres://ledger:pw@localhost:5432/ledger")
	defer func() {
		_ = os.Unsetenv("LEDGER_SYNC_INTERVAL")
		_ = os.Unsetenv("LEDGER_MIRROR_DSN")
	}()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.SyncInterval != 90*time.Second {
		t.Fatalf("sync interval env override failed, got %v", cfg.SyncInterval)
	}
	if !cfg.MirrorEnabled() {
		t.Fatalf("mirror should be enabled when a DSN is set")
	}
}

func TestConfigLoad_RejectsBadFee(t *testing.T) {
	_ = os.Setenv("LEDGER_TRANSFER_FEE_PERCENT", "100")
	defer func() { _ = os.Unsetenv("LEDGER_TRANSFER_FEE_PERCENT") }()

	if _, err := New(); err == nil {
		t.Fatalf("expected error for 100%% transfer fee")
	}
}

func TestConfigLoad_RejectsBadCutover(t *testing.T) {
	_ = os.Setenv("LEDGER_LEGACY_CUTOVER", "01/10/2025")
	defer func() { _ = os.Unsetenv("LEDGER_LEGACY_CUTOVER") }()

	if _, err := New(); err == nil {
		t.Fatalf("expected error for malformed cutover date")
	}
}

func TestCutoverDate(t *testing.T) {
	cfg := NewForTesting()
	got := cfg.CutoverDate()
	if got.Year() != 2025 || got.Month() != time.October || got.Day() != 1 {
		t.Fatalf("unexpected cutover date: %v", got)
	}
}
