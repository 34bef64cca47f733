package storage

import "database/sql"

// migrateV001 creates the content store, the visit ledger, sessions and
// the blocklist. Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS content_store (
			hash       TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			byte_size  INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS visits (
			url              TEXT PRIMARY KEY,
			title            TEXT NOT NULL DEFAULT '',
			timestamp        TEXT NOT NULL,
			content_hash     TEXT NOT NULL REFERENCES content_store(hash),
			text_extract     TEXT NOT NULL DEFAULT '',
			links            TEXT NOT NULL DEFAULT '[]',
			total_time_spent INTEGER NOT NULL DEFAULT 0 CHECK (total_time_spent >= 0),
			processed        BOOLEAN NOT NULL DEFAULT 1,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			url        TEXT NOT NULL REFERENCES visits(url) ON DELETE CASCADE,
			start_time TEXT NOT NULL,
			end_time   TEXT,
			duration   INTEGER CHECK (duration IS NULL OR duration >= 0)
		)`,

		`CREATE TABLE IF NOT EXISTS blocklist (
			position    INTEGER PRIMARY KEY AUTOINCREMENT,
			url_pattern TEXT NOT NULL UNIQUE,
			reason      TEXT NOT NULL DEFAULT '',
			added       TEXT NOT NULL,
			updated     TEXT
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_visits_timestamp    ON visits(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_content_hash ON visits(content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_url_start  ON sessions(url, start_time)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
