package storage

import (
	"database/sql"
	"time"
)

// migrateV003 inserts the configured default blocklist. Uses INSERT OR
// IGNORE so patterns a user already added keep their reason.
func (r *MigrationRunner) migrateV003(tx *sql.Tx) error {
	const insertSQL = `INSERT OR IGNORE INTO blocklist (url_pattern, reason, added) VALUES (?, ?, ?)`

	added := FormatTime(time.Now())
	for _, p := range r.seed {
		if p.Pattern == "" {
			continue
		}
		if _, err := tx.Exec(insertSQL, p.Pattern, p.Reason, added); err != nil {
			return err
		}
	}

	return nil
}
