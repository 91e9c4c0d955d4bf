package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/model"
)

const dateLayout = "2006-01-02"

// PostgresMirror implements Mirror over a Postgres database using the pgx
// stdlib driver.
type PostgresMirror struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open connects to the mirror database and ensures the schema exists.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresMirror, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "mirror: open")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "mirror: ping")
	}
	m := &PostgresMirror{db: db, log: log}
	if err := m.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *PostgresMirror) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS member_data (
			community_id TEXT NOT NULL,
			member_id    TEXT NOT NULL,
			xp           BIGINT NOT NULL DEFAULT 0,
			gmp          BIGINT NOT NULL DEFAULT 0,
			rank         TEXT NOT NULL DEFAULT '',
			curve_epoch  TEXT NOT NULL DEFAULT 'standard',
			last_daily   DATE,
			daily_streak   INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			messages_sent      BIGINT NOT NULL DEFAULT 0,
			voice_minutes      BIGINT NOT NULL DEFAULT 0,
			reactions_given    BIGINT NOT NULL DEFAULT 0,
			reactions_received BIGINT NOT NULL DEFAULT 0,
			tactical_words     BIGINT NOT NULL DEFAULT 0,
			verified   BOOLEAN NOT NULL DEFAULT FALSE,
			bio        TEXT NOT NULL DEFAULT '',
			boosters   JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (community_id, member_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_member_data_xp
			ON member_data (community_id, xp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_member_data_gmp
			ON member_data (community_id, gmp DESC)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			entry_id     TEXT PRIMARY KEY,
			community_id TEXT NOT NULL,
			member_id    TEXT NOT NULL,
			item_id      TEXT NOT NULL,
			status       TEXT NOT NULL,
			acquired_at  TIMESTAMPTZ NOT NULL,
			activated_at TIMESTAMPTZ,
			expires_at   TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_member
			ON inventory (community_id, member_id)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			tx_id        TEXT PRIMARY KEY,
			community_id TEXT NOT NULL,
			from_member  TEXT,
			to_member    TEXT NOT NULL,
			amount       BIGINT NOT NULL,
			fee          BIGINT NOT NULL DEFAULT 0,
			kind         TEXT NOT NULL,
			note         TEXT,
			created_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_member
			ON transactions (community_id, to_member, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS backup_history (
			id              SERIAL PRIMARY KEY,
			backup_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			member_count    INTEGER NOT NULL DEFAULT 0,
			community_count INTEGER NOT NULL DEFAULT 0,
			kind            TEXT NOT NULL,
			status          TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "mirror: ensure schema")
		}
	}
	return nil
}

// UpsertRecord writes the full state of one member record: the member row
// plus one inventory row per owned entry, committed together. The newest
// write wins; created_at is kept from the first insert. Inventory rows are
// never deleted, matching the local append-only lifecycle.
func (m *PostgresMirror) UpsertRecord(ctx context.Context, rec *model.MemberRecord) error {
	boosters, err := jsonOr(rec.Boosters, "{}")
	if err != nil {
		return errors.Wrap(err, "mirror: encode boosters")
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "mirror: upsert begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO member_data (
			community_id, member_id, xp, gmp, rank, curve_epoch, last_daily,
			daily_streak, longest_streak, messages_sent, voice_minutes,
			reactions_given, reactions_received, tactical_words, verified,
			bio, boosters, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		          $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (community_id, member_id) DO UPDATE SET
			xp = EXCLUDED.xp,
			gmp = EXCLUDED.gmp,
			rank = EXCLUDED.rank,
			curve_epoch = EXCLUDED.curve_epoch,
			last_daily = EXCLUDED.last_daily,
			daily_streak = EXCLUDED.daily_streak,
			longest_streak = EXCLUDED.longest_streak,
			messages_sent = EXCLUDED.messages_sent,
			voice_minutes = EXCLUDED.voice_minutes,
			reactions_given = EXCLUDED.reactions_given,
			reactions_received = EXCLUDED.reactions_received,
			tactical_words = EXCLUDED.tactical_words,
			verified = EXCLUDED.verified,
			bio = EXCLUDED.bio,
			boosters = EXCLUDED.boosters,
			updated_at = EXCLUDED.updated_at`,
		rec.CommunityID, rec.MemberID, rec.XP, rec.GMP, rec.Rank,
		string(rec.CurveEpoch), dateOrNull(rec.LastDaily),
		rec.DailyStreak, rec.LongestStreak, rec.MessagesSent,
		rec.VoiceMinutes, rec.ReactionsGiven, rec.ReactionsReceived,
		rec.TacticalWords, rec.Verified, rec.Bio, boosters,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC()); err != nil {
		return errors.Wrap(err, "mirror: upsert record")
	}

	for i := range rec.Inventory {
		e := &rec.Inventory[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inventory (
				entry_id, community_id, member_id, item_id,
				status, acquired_at, activated_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (entry_id) DO UPDATE SET
				status = EXCLUDED.status,
				activated_at = EXCLUDED.activated_at,
				expires_at = EXCLUDED.expires_at`,
			e.ID, rec.CommunityID, rec.MemberID, e.ItemID,
			string(e.Status), e.AcquiredAt.UTC(),
			timeOrNull(e.ActivatedAt), timeOrNull(e.ExpiresAt)); err != nil {
			return errors.Wrap(err, "mirror: upsert inventory entry")
		}
	}
	return errors.Wrap(tx.Commit(), "mirror: upsert commit")
}

// UpsertTransaction writes one audit entry. Transactions are write-once, so
// a replayed push is a no-op.
func (m *PostgresMirror) UpsertTransaction(ctx context.Context, txn *model.TransactionRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO transactions (
			tx_id, community_id, from_member, to_member,
			amount, fee, kind, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_id) DO NOTHING`,
		txn.ID, txn.CommunityID, nullIfEmpty(txn.From), txn.To,
		txn.Amount, txn.Fee, string(txn.Kind), nullIfEmpty(txn.Note),
		txn.At.UTC())
	return errors.Wrap(err, "mirror: upsert transaction")
}

// LoadAll reads every mirrored record, inventory rows included. Rows with
// an undecodable boosters column are skipped with a warning; a degraded
// rebuild should recover as much as it can rather than fail outright.
func (m *PostgresMirror) LoadAll(ctx context.Context) (map[string]map[string]*model.MemberRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT community_id, member_id, xp, gmp, rank, curve_epoch,
		       last_daily, daily_streak, longest_streak, messages_sent,
		       voice_minutes, reactions_given, reactions_received,
		       tactical_words, verified, bio, boosters,
		       created_at, updated_at
		FROM member_data
		ORDER BY community_id, member_id`)
	if err != nil {
		return nil, errors.Wrap(err, "mirror: load query")
	}
	defer rows.Close()

	state := make(map[string]map[string]*model.MemberRecord)
	for rows.Next() {
		var (
			rec       model.MemberRecord
			epoch     string
			lastDaily sql.NullTime
			boosters  []byte
		)
		if err := rows.Scan(
			&rec.CommunityID, &rec.MemberID, &rec.XP, &rec.GMP, &rec.Rank,
			&epoch, &lastDaily, &rec.DailyStreak, &rec.LongestStreak,
			&rec.MessagesSent, &rec.VoiceMinutes, &rec.ReactionsGiven,
			&rec.ReactionsReceived, &rec.TacticalWords, &rec.Verified,
			&rec.Bio, &boosters, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "mirror: load scan")
		}
		rec.CurveEpoch = model.Epoch(epoch)
		if lastDaily.Valid {
			rec.LastDaily = lastDaily.Time.UTC().Format(dateLayout)
		}
		if len(boosters) > 0 {
			if err := json.Unmarshal(boosters, &rec.Boosters); err != nil {
				m.log.Warn().Str("member", rec.Key().String()).Err(err).
					Msg("skipping record with undecodable boosters")
				continue
			}
		}
		community := state[rec.CommunityID]
		if community == nil {
			community = make(map[string]*model.MemberRecord)
			state[rec.CommunityID] = community
		}
		community[rec.MemberID] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "mirror: load rows")
	}
	if err := m.attachInventory(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// attachInventory joins inventory rows back onto their records in
// acquisition order. Rows whose member row was skipped are dropped.
func (m *PostgresMirror) attachInventory(ctx context.Context, state map[string]map[string]*model.MemberRecord) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT entry_id, community_id, member_id, item_id,
		       status, acquired_at, activated_at, expires_at
		FROM inventory
		ORDER BY acquired_at, entry_id`)
	if err != nil {
		return errors.Wrap(err, "mirror: inventory query")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e           model.InventoryEntry
			communityID string
			memberID    string
			status      string
			activatedAt sql.NullTime
			expiresAt   sql.NullTime
		)
		if err := rows.Scan(&e.ID, &communityID, &memberID, &e.ItemID,
			&status, &e.AcquiredAt, &activatedAt, &expiresAt); err != nil {
			return errors.Wrap(err, "mirror: inventory scan")
		}
		rec := state[communityID][memberID]
		if rec == nil {
			continue
		}
		e.Status = model.EntryStatus(status)
		e.AcquiredAt = e.AcquiredAt.UTC()
		if activatedAt.Valid {
			t := activatedAt.Time.UTC()
			e.ActivatedAt = &t
		}
		if expiresAt.Valid {
			t := expiresAt.Time.UTC()
			e.ExpiresAt = &t
		}
		rec.Inventory = append(rec.Inventory, e)
	}
	return errors.Wrap(rows.Err(), "mirror: inventory rows")
}

// RecordBackup appends one replication history row.
func (m *PostgresMirror) RecordBackup(ctx context.Context, entry BackupEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO backup_history (backup_at, member_count, community_count, kind, status)
		VALUES ($1, $2, $3, $4, $5)`,
		at, entry.Members, entry.Communities, entry.Kind, entry.Status)
	return errors.Wrap(err, "mirror: record backup")
}

// BackupHistory lists replication history rows, newest first.
func (m *PostgresMirror) BackupHistory(ctx context.Context, limit int) ([]BackupEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, backup_at, member_count, community_count, kind, status
		FROM backup_history
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "mirror: history query")
	}
	defer rows.Close()

	var out []BackupEntry
	for rows.Next() {
		var e BackupEntry
		if err := rows.Scan(&e.ID, &e.At, &e.Members, &e.Communities, &e.Kind, &e.Status); err != nil {
			return nil, errors.Wrap(err, "mirror: history scan")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "mirror: history rows")
}

// Ping verifies the connection is alive.
func (m *PostgresMirror) Ping(ctx context.Context) error {
	return errors.Wrap(m.db.PingContext(ctx), "mirror: ping")
}

// Close closes the underlying pool.
func (m *PostgresMirror) Close() error { return m.db.Close() }

// IsPermanent reports whether a push failed in a way retries cannot fix:
// malformed data (class 22), constraint violations (class 23), or schema
// drift (class 42). Everything else is treated as transient.
func IsPermanent(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, class := range []string{"22", "23", "42"} {
		if strings.HasPrefix(pgErr.Code, class) {
			return true
		}
	}
	return false
}

// dateOrNull converts a YYYY-MM-DD wire date into a DATE parameter. Blank
// or malformed dates map to NULL; a bad date must never block replication.
func dateOrNull(s string) interface{} {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return nil
	}
	return s
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func timeOrNull(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// jsonOr marshals v for a JSONB column, replacing Go's "null" for nil
// slices and maps with the given empty collection literal.
func jsonOr(v interface{}, empty string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte(empty), nil
	}
	return b, nil
}
