package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/webwatch/internal/storage"
)

// Execute implements the go-flags Commander interface for BackupCommand.
func (c *BackupCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWith(a)
}

// executeWith snapshots the database of a provided app (for testing).
func (c *BackupCommand) executeWith(a *app) error {
	dest := c.To
	if dest == "" {
		p, err := a.cfg.BackupPath()
		if err != nil {
			return err
		}
		dest = p
	}

	start := time.Now()
	if err := storage.Snapshot(context.Background(), a.db, dest); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	var size int64
	if info, err := os.Stat(dest); err == nil {
		size = info.Size()
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]any{
			"path":       dest,
			"size_bytes": size,
		})
	}
	fmt.Printf("Backup written to %s (%s, %s)\n", dest, formatBytes(size), time.Since(start).Round(time.Millisecond))
	return nil
}
