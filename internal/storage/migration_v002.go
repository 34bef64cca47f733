package storage

import "database/sql"

// migrateV002 adds the summarizer output columns to visits.
func migrateV002(tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE visits ADD COLUMN rating INTEGER CHECK (rating IS NULL OR rating BETWEEN 1 AND 5)`,
		`ALTER TABLE visits ADD COLUMN summary TEXT NOT NULL DEFAULT ''`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
