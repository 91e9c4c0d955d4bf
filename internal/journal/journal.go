// Package journal is the ledger's durable local log: a SQLite write-ahead
// file that records every committed mutation before it becomes visible, and
// doubles as the outbox the mirror syncer drains.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/r-ddle/exile-ledger/internal/model"
)

const dbFilename = "ledger.db"

// Row statuses for oplog entries.
const (
	statusPending = "pending"
	statusDone    = "done"
)

const metaSnapshotSeq = "snapshot_seq"

// Journal wraps the SQLite file. SQLite allows one writer; the single
// connection plus the write mutex in database/sql keeps appends serialized
// without busy errors.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the journal under dir and ensures the schema.
func Open(dir string, log zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "journal: create data dir")
	}
	path := filepath.Join(dir, dbFilename)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "journal: open")
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "journal: ping")
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "journal: ensure schema")
	}
	return &Journal{db: db, log: log}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Append durably records one committed mutation: the full post-mutation
// state of every touched record (two for transfers) plus, when the
// operation produced one, its transaction, all in a single SQLite
// transaction. The returned sequence is the highest oplog row id written.
// This is the commit point of every ledger mutation; a failure here means
// the mutation did not happen.
func (j *Journal) Append(ctx context.Context, recs []*model.MemberRecord, txn *model.TransactionRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, errors.New("journal: append with no records")
	}
	var txnJSON []byte
	if txn != nil {
		var err error
		if txnJSON, err = json.Marshal(txn); err != nil {
			return 0, errors.Wrap(err, "journal: marshal transaction")
		}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "journal: begin")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var seq int64
	for i, rec := range recs {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return 0, errors.Wrap(err, "journal: marshal record")
		}
		// The transaction rides on the first row only; one audit entry per
		// operation.
		rowTxn := txnJSON
		if i > 0 {
			rowTxn = nil
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO oplog (community_id, member_id, record, txn, status, next_attempt_at, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.CommunityID, rec.MemberID, string(recJSON), nullableString(rowTxn), statusPending, now.Unix(), now)
		if err != nil {
			return 0, errors.Wrap(err, "journal: append oplog")
		}
		if seq, err = res.LastInsertId(); err != nil {
			return 0, errors.Wrap(err, "journal: sequence")
		}
	}
	if txn != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transactions (tx_id, community_id, from_member, to_member, amount, fee, kind, note, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, txn.CommunityID, txn.From, txn.To, txn.Amount, txn.Fee, string(txn.Kind), txn.Note, txn.At.UTC())
		if err != nil {
			return 0, errors.Wrap(err, "journal: append transaction")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "journal: commit")
	}
	return seq, nil
}

// Replay returns the latest journaled record per key with sequence greater
// than afterSeq, along with the highest sequence seen. Rows that fail to
// decode are skipped with a warning; one bad row must not take down startup.
func (j *Journal) Replay(ctx context.Context, afterSeq int64) (map[model.Key]*model.MemberRecord, int64, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, record FROM oplog WHERE id > ? ORDER BY id ASC`, afterSeq)
	if err != nil {
		return nil, 0, errors.Wrap(err, "journal: replay query")
	}
	defer rows.Close()

	latest := make(map[model.Key]*model.MemberRecord)
	maxSeq := afterSeq
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, 0, errors.Wrap(err, "journal: replay scan")
		}
		if id > maxSeq {
			maxSeq = id
		}
		var rec model.MemberRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			j.log.Warn().Int64("seq", id).Err(err).Msg("skipping undecodable oplog row")
			continue
		}
		latest[rec.Key()] = &rec
	}
	return latest, maxSeq, rows.Err()
}

// PendingRow is one outbox entry leased for a mirror push.
type PendingRow struct {
	Seq    int64
	Key    model.Key
	Record *model.MemberRecord
	Txn    *model.TransactionRecord
}

// LeaseReady returns up to limit pending rows whose backoff window has
// elapsed, oldest first. Undecodable rows are marked failed so they back off
// instead of hot-looping.
func (j *Journal) LeaseReady(ctx context.Context, limit int) ([]PendingRow, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, community_id, member_id, record, txn
         FROM oplog
         WHERE status = ? AND next_attempt_at <= ?
         ORDER BY id ASC
         LIMIT ?`,
		statusPending, time.Now().UTC().Unix(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "journal: lease query")
	}
	defer rows.Close()

	var out []PendingRow
	var poison []int64
	for rows.Next() {
		var (
			r      PendingRow
			recRaw string
			txnRaw sql.NullString
		)
		if err := rows.Scan(&r.Seq, &r.Key.CommunityID, &r.Key.MemberID, &recRaw, &txnRaw); err != nil {
			return nil, errors.Wrap(err, "journal: lease scan")
		}
		var rec model.MemberRecord
		if err := json.Unmarshal([]byte(recRaw), &rec); err != nil {
			poison = append(poison, r.Seq)
			continue
		}
		r.Record = &rec
		if txnRaw.Valid && txnRaw.String != "" {
			var txn model.TransactionRecord
			if err := json.Unmarshal([]byte(txnRaw.String), &txn); err == nil {
				r.Txn = &txn
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "journal: lease rows")
	}
	for _, seq := range poison {
		j.log.Warn().Int64("seq", seq).Msg("poison oplog row, backing off")
		if err := j.MarkFailed(ctx, seq); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MarkDone flips rows to done after a successful mirror push.
func (j *Journal) MarkDone(ctx context.Context, seqs ...int64) error {
	if len(seqs) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "journal: mark done begin")
	}
	defer func() { _ = tx.Rollback() }()
	for _, seq := range seqs {
		if _, err := tx.ExecContext(ctx, `UPDATE oplog SET status = ? WHERE id = ?`, statusDone, seq); err != nil {
			return errors.Wrap(err, "journal: mark done")
		}
	}
	return errors.Wrap(tx.Commit(), "journal: mark done commit")
}

// MarkFailed bumps the attempt count and schedules the next try with
// exponential backoff capped at five minutes.
func (j *Journal) MarkFailed(ctx context.Context, seq int64) error {
	var attempts int64
	if err := j.db.QueryRowContext(ctx, `SELECT attempt_count FROM oplog WHERE id = ?`, seq).Scan(&attempts); err != nil {
		return errors.Wrap(err, "journal: mark failed read")
	}
	delay := int64(1) << uint(min(attempts+1, 8))
	if delay > 300 {
		delay = 300
	}
	_, err := j.db.ExecContext(ctx,
		`UPDATE oplog SET attempt_count = attempt_count + 1, next_attempt_at = ? WHERE id = ?`,
		time.Now().UTC().Unix()+delay, seq)
	return errors.Wrap(err, "journal: mark failed")
}

// MarkDoneThrough flips every pending row at or below seq to done. Used
// after a full resync, which supersedes any older incremental backlog.
func (j *Journal) MarkDoneThrough(ctx context.Context, seq int64) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE oplog SET status = ? WHERE id <= ? AND status = ?`, statusDone, seq, statusPending)
	return errors.Wrap(err, "journal: mark done through")
}

// PendingCount reports how many rows await a mirror push.
func (j *Journal) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM oplog WHERE status = ?`, statusPending).Scan(&n)
	return n, errors.Wrap(err, "journal: pending count")
}

// MaxSeq returns the highest oplog sequence, 0 when empty.
func (j *Journal) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := j.db.QueryRowContext(ctx, `SELECT MAX(id) FROM oplog`).Scan(&seq)
	if err != nil {
		return 0, errors.Wrap(err, "journal: max seq")
	}
	return seq.Int64, nil
}

// SnapshotSeq returns the sequence of the last durable snapshot.
func (j *Journal) SnapshotSeq(ctx context.Context) (int64, error) {
	var raw string
	err := j.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaSnapshotSeq).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "journal: snapshot seq")
	}
	var seq int64
	if _, err := fmt.Sscan(raw, &seq); err != nil {
		return 0, nil
	}
	return seq, nil
}

// Checkpoint records that a snapshot covering all state through seq was
// written, then drops synced oplog rows the snapshot made redundant.
// Pending rows are kept whatever their age; the mirror still needs them.
func (j *Journal) Checkpoint(ctx context.Context, seq int64) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "journal: checkpoint begin")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaSnapshotSeq, fmt.Sprint(seq)); err != nil {
		return errors.Wrap(err, "journal: checkpoint meta")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM oplog WHERE id <= ? AND status = ?`, seq, statusDone); err != nil {
		return errors.Wrap(err, "journal: checkpoint trim")
	}
	return errors.Wrap(tx.Commit(), "journal: checkpoint commit")
}

// RecentTransactions lists a member's audit entries, newest first.
func (j *Journal) RecentTransactions(ctx context.Context, key model.Key, limit int) ([]model.TransactionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT tx_id, community_id, from_member, to_member, amount, fee, kind, note, created_at
         FROM transactions
         WHERE community_id = ? AND (to_member = ? OR from_member = ?)
         ORDER BY created_at DESC
         LIMIT ?`,
		key.CommunityID, key.MemberID, key.MemberID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "journal: transactions query")
	}
	defer rows.Close()

	var out []model.TransactionRecord
	for rows.Next() {
		var (
			t          model.TransactionRecord
			from, note sql.NullString
			kind       string
		)
		if err := rows.Scan(&t.ID, &t.CommunityID, &from, &t.To, &t.Amount, &t.Fee, &kind, &note, &t.At); err != nil {
			return nil, errors.Wrap(err, "journal: transactions scan")
		}
		t.From = from.String
		t.Note = note.String
		t.Kind = model.TransactionKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
