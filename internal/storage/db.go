package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the sqlite3 driver registered with the fold() SQL function.
const DriverName = "sqlite3_webwatch"

var registerOnce sync.Once

// registerDriver adds fold(text), a Unicode lower-casing function used by
// Search. SQLite's own LIKE only folds ASCII.
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("fold", foldCase, true)
			},
		})
	})
}

func foldCase(s string) string {
	return strings.ToLower(s)
}

// TimeLayout is the on-disk timestamp format. It is fixed width and always
// UTC so that string comparison in SQL orders chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime tries TimeLayout and the other formats SQLite may hand back.
func ParseTime(s string) (time.Time, error) {
	formats := []string{
		TimeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// Options tune the SQLite connection.
type Options struct {
	BusyTimeout time.Duration
}

// Open opens (creating if needed) the SQLite database at path in WAL mode
// with foreign keys on and IMMEDIATE write transactions, so concurrent
// writers queue on the busy timeout instead of failing mid-transaction.
// The caller owns the handle and must Close it at shutdown.
func Open(path string, opts Options) (*sql.DB, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d&_txlock=immediate",
		path, opts.BusyTimeout.Milliseconds())
	registerDriver()
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// OpenAndMigrate opens the database and applies every pending migration.
func OpenAndMigrate(path string, opts Options, seed []SeedPattern) (*sql.DB, error) {
	db, err := Open(path, opts)
	if err != nil {
		return nil, err
	}

	runner := NewMigrationRunner(db).WithBlocklistSeed(seed)
	if err := runner.Run(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}
