package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/blocklist"
	"github.com/runnerr0/webwatch/internal/config"
	"github.com/runnerr0/webwatch/internal/logging"
	"github.com/runnerr0/webwatch/internal/report"
	"github.com/runnerr0/webwatch/internal/session"
	"github.com/runnerr0/webwatch/internal/storage"
)

// app bundles the opened database and the components built over it.
type app struct {
	cfg      *config.Config
	dbPath   string
	db       *sql.DB
	log      *logrus.Logger
	closeLog func() error

	locks     *storage.KeyLocks
	contents  *storage.SQLiteContentStore
	ledger    *storage.SQLiteLedger
	blocklist *blocklist.Blocklist
	sessions  *session.Tracker
	reports   *report.Engine
}

// loadConfig reads the config file named by --config, or the default one
// (created on first use), then applies .env and environment overrides.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	config.LoadDotEnv()

	var cfg *config.Config
	var err error
	if globals != nil && globals.Config != "" {
		cfg, err = config.Load(globals.Config)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if globals != nil && globals.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// openApp loads configuration, builds the logger and opens the migrated
// database.
func openApp(globals *GlobalFlags) (*app, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   logPath,
	})
	if err != nil {
		return nil, err
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		closeLog()
		return nil, err
	}

	db, err := storage.OpenAndMigrate(dbPath, storage.Options{
		BusyTimeout: time.Duration(cfg.Storage.BusyTimeoutMS) * time.Millisecond,
	}, seedPatterns(cfg))
	if err != nil {
		closeLog()
		return nil, err
	}

	a, err := newApp(cfg, db, logger)
	if err != nil {
		db.Close()
		closeLog()
		return nil, err
	}
	a.dbPath = dbPath
	a.closeLog = closeLog
	return a, nil
}

// seedPatterns converts the curated privacy list for the seeding migration.
func seedPatterns(cfg *config.Config) []storage.SeedPattern {
	if !cfg.Blocklist.SeedDefaults {
		return nil
	}
	defaults := config.DefaultBlocklist()
	seed := make([]storage.SeedPattern, len(defaults))
	for i, e := range defaults {
		seed[i] = storage.SeedPattern{Pattern: e.Pattern, Reason: e.Reason}
	}
	return seed
}

// newApp wires the components over an already migrated db.
func newApp(cfg *config.Config, db *sql.DB, logger *logrus.Logger) (*app, error) {
	locks := storage.NewKeyLocks()
	contents := storage.NewSQLiteContentStore(db)
	ledger := storage.NewSQLiteLedger(db, contents, storage.LedgerOptions{
		TextMaxLength: cfg.Capture.TextMaxLength,
		Logger:        logger,
		Locks:         locks,
	})

	bl, err := blocklist.New(context.Background(), db, logger)
	if err != nil {
		return nil, fmt.Errorf("load blocklist: %w", err)
	}

	tracker := session.NewTracker(db, logger, session.WithLocks(locks))

	return &app{
		cfg:       cfg,
		db:        db,
		log:       logger,
		locks:     locks,
		contents:  contents,
		ledger:    ledger,
		blocklist: bl,
		sessions:  tracker,
		reports:   report.NewEngine(ledger, contents, tracker, logger),
	}, nil
}

// Close releases the database and the log file.
func (a *app) Close() error {
	err := a.db.Close()
	if a.closeLog != nil {
		if cerr := a.closeLog(); err == nil {
			err = cerr
		}
	}
	return err
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// parseTimeFlag parses an optional ISO-8601 flag value; empty means zero.
func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := storage.ParseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s value %q: %w", name, value, err)
	}
	return t, nil
}
