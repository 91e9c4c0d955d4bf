package journal

import "database/sql"

// ensureSchema creates the journal tables if they do not exist.
//
// oplog is both the crash-recovery log and the mirror outbox: every committed
// mutation appends one row carrying the full post-mutation record, and the
// syncer flips rows to done once the remote mirror has them. transactions is
// the append-only audit trail; rows there are never updated or deleted.
func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS oplog (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            community_id TEXT NOT NULL,
            member_id TEXT NOT NULL,
            record TEXT NOT NULL,
            txn TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            attempt_count INTEGER NOT NULL DEFAULT 0,
            next_attempt_at INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS oplog_ready_idx ON oplog(status, next_attempt_at);`,
		`CREATE INDEX IF NOT EXISTS oplog_key_idx ON oplog(community_id, member_id);`,
		`CREATE TABLE IF NOT EXISTS transactions (
            tx_id TEXT PRIMARY KEY,
            community_id TEXT NOT NULL,
            from_member TEXT,
            to_member TEXT NOT NULL,
            amount INTEGER NOT NULL,
            fee INTEGER NOT NULL DEFAULT 0,
            kind TEXT NOT NULL,
            note TEXT,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS transactions_member_idx ON transactions(community_id, to_member, created_at);`,
		`CREATE TABLE IF NOT EXISTS meta (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
