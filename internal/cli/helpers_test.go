package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/webwatch/internal/config"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"15m", 15 * time.Minute, false},
		{"", 0, true},
		{"d", 0, true},
		{"xd", 0, true},
		{"5y", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseDuration(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatDurationHuman(t *testing.T) {
	assert.Equal(t, "1 day", formatDurationHuman(24*time.Hour))
	assert.Equal(t, "7 days", formatDurationHuman(7*24*time.Hour))
	assert.Equal(t, "1 hour", formatDurationHuman(time.Hour))
	assert.Equal(t, "5 hours", formatDurationHuman(5*time.Hour))
	assert.Equal(t, "30m0s", formatDurationHuman(30*time.Minute))
}

func TestSeedPatterns(t *testing.T) {
	cfg := config.DefaultConfig()
	seed := seedPatterns(cfg)
	require.NotEmpty(t, seed)
	assert.Equal(t, len(config.DefaultBlocklist()), len(seed))
	assert.Contains(t, seed[0].Pattern, "domain:")

	cfg.Blocklist.SeedDefaults = false
	assert.Nil(t, seedPatterns(cfg))
}

func TestOpenApp_FromConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err := config.LoadOrCreateAt(cfgPath)
	require.NoError(t, err)

	t.Setenv("WEBWATCH_DB_PATH", filepath.Join(dir, "data", "ww.db"))

	a, err := openApp(&GlobalFlags{Config: cfgPath, Verbose: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, filepath.Join(dir, "data", "ww.db"), a.dbPath)
	assert.Equal(t, "debug", a.cfg.Logging.Level)
	assert.Equal(t, len(config.DefaultBlocklist()), a.blocklist.Len(), "default privacy list seeded")
}

func TestOpenApp_MissingConfigFile(t *testing.T) {
	_, err := openApp(&GlobalFlags{Config: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
