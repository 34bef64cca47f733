package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/webwatch/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string `json:"version"`
	DatabasePath      string `json:"database_path"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	TotalVisits       int64  `json:"total_visits"`
	TotalContent      int64  `json:"total_content"`
	BlocklistSize     int    `json:"blocklist_size"`
	DaemonAddr        string `json:"daemon_addr"`
	DaemonRunning     bool   `json:"daemon_running"`
	BackupEnabled     bool   `json:"backup_enabled"`
	SummarizerEnabled bool   `json:"summarizer_enabled"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWith(a)
}

// executeWith runs status against a provided app (for testing).
func (c *StatusCommand) executeWith(a *app) error {
	ctx := context.Background()

	visits, err := a.ledger.Count(ctx, storage.ListFilter{})
	if err != nil {
		return fmt.Errorf("count visits: %w", err)
	}
	content, err := a.contents.Count(ctx)
	if err != nil {
		return fmt.Errorf("count content: %w", err)
	}

	out := statusJSON{
		Version:           c.version,
		DatabasePath:      a.dbPath,
		DatabaseSizeBytes: getDatabaseSize(a.db, a.dbPath),
		TotalVisits:       visits,
		TotalContent:      content,
		BlocklistSize:     a.blocklist.Len(),
		DaemonAddr:        a.cfg.Addr(),
		DaemonRunning:     checkDaemon(a.cfg.Addr()),
		BackupEnabled:     a.cfg.Backup.Enabled,
		SummarizerEnabled: a.cfg.Summarizer.Enabled,
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}
	c.printStatusHuman(out)
	return nil
}

func (c *StatusCommand) printStatusHuman(s statusJSON) {
	fmt.Println("webwatch Status")
	fmt.Println("===============")
	fmt.Printf("Version:       %s\n", s.Version)
	fmt.Printf("Database:      %s (%s)\n", s.DatabasePath, formatBytes(s.DatabaseSizeBytes))
	fmt.Printf("Visits:        %s\n", formatNumber(s.TotalVisits))
	fmt.Printf("Pages stored:  %s\n", formatNumber(s.TotalContent))
	fmt.Printf("Blocklist:     %s patterns\n", formatNumber(int64(s.BlocklistSize)))

	fmt.Println()
	if s.DaemonRunning {
		fmt.Printf("Daemon:        running on %s\n", s.DaemonAddr)
	} else {
		fmt.Println("Daemon:        not running")
	}
	fmt.Printf("Backup:        %s\n", enabledWord(s.BackupEnabled))
	fmt.Printf("Summaries:     %s\n", enabledWord(s.SummarizerEnabled))
}

func enabledWord(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	// Try file stat first
	if dbPath != "" {
		if info, err := os.Stat(dbPath); err == nil {
			return info.Size()
		}
	}

	// Fallback: query SQLite for in-memory or unavailable file
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// checkDaemon attempts an HTTP GET to the daemon's status endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(addr string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
