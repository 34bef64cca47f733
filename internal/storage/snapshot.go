package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot writes a consistent copy of db to dest. The copy is built with
// VACUUM INTO in a temp file next to dest and renamed into place, so dest is
// either the previous snapshot or the new one. WAL mode keeps readers and
// writers running while the copy is taken.
func Snapshot(ctx context.Context, db *sql.DB, dest string) error {
	if dest == "" {
		return Invalid("dest", "required")
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp := dest + ".tmp"
	_ = os.Remove(tmp)

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", tmp); err != nil {
		_ = os.Remove(tmp)
		return StorageErr("vacuum into", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}

	return nil
}
