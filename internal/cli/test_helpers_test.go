package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/webwatch/internal/config"
	"github.com/runnerr0/webwatch/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestApp opens a migrated database under t.TempDir with default config.
func newTestApp(t *testing.T) *app {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Backup.File = "backup.db"

	dbPath, err := cfg.DBPath()
	require.NoError(t, err)

	db, err := storage.OpenAndMigrate(dbPath, storage.Options{}, nil)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	a, err := newApp(cfg, db, logger)
	require.NoError(t, err)
	a.dbPath = dbPath
	t.Cleanup(func() { a.Close() })

	return a
}

// seedVisit records one visit directly through the ledger.
func seedVisit(t *testing.T, a *app, url, title, body string) *storage.Visit {
	t.Helper()
	v, err := a.ledger.Upsert(context.Background(), storage.VisitInput{URL: url, Title: title, Body: body})
	require.NoError(t, err)
	return v
}
