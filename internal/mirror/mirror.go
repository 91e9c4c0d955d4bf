// Package mirror replicates the local ledger to a remote Postgres copy.
// Replication is asynchronous and best effort: the journal is the outbox,
// the syncer drains it, and a mirror outage only grows the backlog. Nothing
// in this package can fail a local mutation.
package mirror

import (
	"context"
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// Backup kinds recorded in the mirror's history table.
const (
	BackupIncremental = "incremental"
	BackupFull        = "full_backup"
	BackupFullRankFix = "full_backup_with_rank_fix"
)

// Backup statuses.
const (
	BackupSuccess = "success"
	BackupPartial = "partial"
)

// BackupEntry is one row of the mirror's replication history.
type BackupEntry struct {
	ID          int64     `json:"id"`
	At          time.Time `json:"at"`
	Members     int       `json:"members"`
	Communities int       `json:"communities"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
}

// Mirror is the remote copy of the ledger. Upserts must be idempotent: the
// syncer re-pushes rows after crashes and overlapping full resyncs, and the
// newest write for a key always wins.
type Mirror interface {
	UpsertRecord(ctx context.Context, rec *model.MemberRecord) error
	UpsertTransaction(ctx context.Context, txn *model.TransactionRecord) error

	// LoadAll returns every mirrored record grouped by community. It backs
	// the degraded recovery path when the local snapshot and journal are
	// both gone.
	LoadAll(ctx context.Context) (map[string]map[string]*model.MemberRecord, error)

	RecordBackup(ctx context.Context, entry BackupEntry) error
	BackupHistory(ctx context.Context, limit int) ([]BackupEntry, error)

	Ping(ctx context.Context) error
	Close() error
}
