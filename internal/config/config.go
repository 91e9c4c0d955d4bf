package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the ledger service.
// Environment variables are parsed from the LEDGER_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8085"`

	// Local durable state. DataDir holds the JSON snapshot and the SQLite
	// journal; empty resolves to ./data.
	DataDir           string        `envconfig:"DATA_DIR" default:""`
	SnapshotInterval  time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"5m"`
	SnapshotThreshold int           `envconfig:"SNAPSHOT_THRESHOLD" default:"250"`

	// Remote mirror. Sync is disabled entirely when the DSN is empty.
	MirrorDSN        string        `envconfig:"MIRROR_DSN" default:""`
	SyncInterval     time.Duration `envconfig:"SYNC_INTERVAL" default:"1h"`
	SyncThreshold    int           `envconfig:"SYNC_THRESHOLD" default:"500"`
	SyncBatchSize    int           `envconfig:"SYNC_BATCH_SIZE" default:"200"`
	SyncTimeout      time.Duration `envconfig:"SYNC_TIMEOUT" default:"10s"`
	FullSyncInterval time.Duration `envconfig:"FULL_SYNC_INTERVAL" default:"12h"`

	// Inventory/booster expiry sweep cadence.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	// Progression data. Paths point at JSON definitions; empty uses the
	// compiled-in defaults. Members whose record predates the cutover stay
	// on the legacy curve forever.
	CatalogPath   string `envconfig:"CATALOG_PATH" default:""`
	CurvesPath    string `envconfig:"CURVES_PATH" default:""`
	LegacyCutover string `envconfig:"LEGACY_CUTOVER" default:"2025-10-01"`

	// Reward tuning. Balance values, not structure; see also the activity
	// reward table in internal/ledger.
	DailyXP           int64     `envconfig:"DAILY_XP" default:"50"`
	DailyGMP          int64     `envconfig:"DAILY_GMP" default:"200"`
	StreakTierBonuses []float64 `envconfig:"STREAK_TIER_BONUSES" default:"1.0,1.25,1.5,2.0"`

	TransferMinimum    int64 `envconfig:"TRANSFER_MINIMUM" default:"10"`
	TransferFeePercent int64 `envconfig:"TRANSFER_FEE_PERCENT" default:"5"`
}

// ResolveDefaults fills derived fields and validates ranges that envconfig
// cannot express.
func (c *Config) ResolveDefaults() error {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.TransferFeePercent < 0 || c.TransferFeePercent >= 100 {
		return fmt.Errorf("transfer fee percent must be in [0,100): %d", c.TransferFeePercent)
	}
	if c.TransferMinimum < 1 {
		return fmt.Errorf("transfer minimum must be positive: %d", c.TransferMinimum)
	}
	if len(c.StreakTierBonuses) != 4 {
		return fmt.Errorf("streak tier bonuses must list 4 values, got %d", len(c.StreakTierBonuses))
	}
	for _, b := range c.StreakTierBonuses {
		if b < 1.0 {
			return fmt.Errorf("streak tier bonus below 1.0: %v", b)
		}
	}
	if c.SnapshotThreshold < 1 || c.SyncThreshold < 1 || c.SyncBatchSize < 1 {
		return fmt.Errorf("snapshot/sync thresholds must be positive")
	}
	if _, err := time.Parse("2006-01-02", c.LegacyCutover); err != nil {
		return fmt.Errorf("legacy cutover is not a YYYY-MM-DD date: %q", c.LegacyCutover)
	}
	return nil
}

// New creates a Config from the environment. A .env file in the working
// directory is merged in first when present, matching how the bot deploys.
func New() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LEDGER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("data_dir", cfg.DataDir).
		Bool("mirror_enabled", cfg.MirrorEnabled()).
		Dur("snapshot_interval", cfg.SnapshotInterval).
		Dur("sync_interval", cfg.SyncInterval).
		Str("legacy_cutover", cfg.LegacyCutover).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config for tests. Callers point DataDir at a
// t.TempDir() before use.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:        EnvTesting,
		HTTPPort:           8085,
		SnapshotInterval:   50 * time.Millisecond,
		SnapshotThreshold:  4,
		SyncInterval:       50 * time.Millisecond,
		SyncThreshold:      4,
		SyncBatchSize:      50,
		SyncTimeout:        2 * time.Second,
		FullSyncInterval:   time.Hour,
		SweepInterval:      50 * time.Millisecond,
		LegacyCutover:      "2025-10-01",
		DailyXP:            50,
		DailyGMP:           200,
		StreakTierBonuses:  []float64{1.0, 1.25, 1.5, 2.0},
		TransferMinimum:    10,
		TransferFeePercent: 5,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// MirrorEnabled reports whether a remote mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return c.MirrorDSN != ""
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// CutoverDate returns the parsed legacy cutover. ResolveDefaults guarantees
// the parse succeeds.
func (c *Config) CutoverDate() time.Time {
	t, _ := time.Parse("2006-01-02", c.LegacyCutover)
	return t
}
