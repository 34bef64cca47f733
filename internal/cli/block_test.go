package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/webwatch/internal/blocklist"
	"github.com/runnerr0/webwatch/internal/storage"
)

func TestBlockAddListCheck(t *testing.T) {
	a := newTestApp(t)
	g := &GlobalFlags{}

	add := &BlockAddCommand{Reason: "work", globals: g}
	add.Args.Pattern = "domain:intranet.corp"
	output := captureOutput(t, func() { require.NoError(t, add.executeWith(a)) })
	assert.Contains(t, output, "Blocked domain:intranet.corp (work)")

	err := add.executeWith(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrConflict))

	list := &BlockListCommand{globals: g}
	output = captureOutput(t, func() { require.NoError(t, list.executeWith(a)) })
	assert.Contains(t, output, "domain:intranet.corp")

	check := &BlockCheckCommand{globals: g}
	check.Args.URL = "https://wiki.intranet.corp/page"
	output = captureOutput(t, func() { require.NoError(t, check.executeWith(a)) })
	assert.Contains(t, output, "is blocked by domain:intranet.corp (work)")

	check.Args.URL = "https://example.com"
	output = captureOutput(t, func() { require.NoError(t, check.executeWith(a)) })
	assert.Contains(t, output, "is not blocked")
}

func TestBlockAddInvalidWildcard(t *testing.T) {
	a := newTestApp(t)

	add := &BlockAddCommand{globals: &GlobalFlags{}}
	add.Args.Pattern = "https://x.com/*["
	err := add.executeWith(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrValidation))
}

func TestBlockUpdateAndRemove(t *testing.T) {
	a := newTestApp(t)
	g := &GlobalFlags{}
	_, err := a.blocklist.Add(context.Background(), "https://x.com/*", "")
	require.NoError(t, err)

	update := &BlockUpdateCommand{Reason: "changed", globals: g}
	update.Args.Pattern = "https://x.com/*"
	captureOutput(t, func() { require.NoError(t, update.executeWith(a)) })
	assert.Equal(t, "changed", a.blocklist.Check("https://x.com/a").Reason)

	remove := &BlockRemoveCommand{globals: g}
	remove.Args.Pattern = "https://x.com/*"
	output := captureOutput(t, func() { require.NoError(t, remove.executeWith(a)) })
	assert.Contains(t, output, "Unblocked https://x.com/*")
	assert.Zero(t, a.blocklist.Len())

	err = remove.executeWith(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestBlockImportMixedYAML(t *testing.T) {
	a := newTestApp(t)
	_, err := a.blocklist.Add(context.Background(), "domain:a.com", "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "list.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- domain:a.com
- domain:b.com
- url: https://c.com/*
  reason: own reason
- ""
`), 0644))

	cmd := &BlockImportCommand{File: path, Reason: "from file", globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() { require.NoError(t, cmd.executeWith(a)) })

	var res blocklist.BulkResult
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, []string{"domain:b.com", "https://c.com/*"}, res.Added)
	assert.Equal(t, []string{"domain:a.com"}, res.Skipped)

	assert.Equal(t, "from file", a.blocklist.Check("https://b.com").Reason)
	assert.Equal(t, "own reason", a.blocklist.Check("https://c.com/x").Reason)
}

func TestParseImport(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []blocklist.Item
		wantErr bool
	}{
		{"json strings", `["domain:a.com", "https://b.com"]`,
			[]blocklist.Item{{Pattern: "domain:a.com"}, {Pattern: "https://b.com"}}, false},
		{"json objects", `[{"url": "domain:a.com", "reason": "r"}]`,
			[]blocklist.Item{{Pattern: "domain:a.com", Reason: "r"}}, false},
		{"wrapped urls", "urls:\n  - domain:a.com\n",
			[]blocklist.Item{{Pattern: "domain:a.com"}}, false},
		{"empty document", "", []blocklist.Item{}, false},
		{"scalar document", "domain:a.com", nil, true},
		{"nested list", "- [a, b]", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseImport([]byte(tc.input))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBlockExportToFile(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	_, err := a.blocklist.Add(ctx, "domain:a.com", "first")
	require.NoError(t, err)
	_, err = a.blocklist.Add(ctx, "https://b.com", "second")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	cmd := &BlockExportCommand{File: path, globals: &GlobalFlags{}}
	output := captureOutput(t, func() { require.NoError(t, cmd.executeWith(a)) })
	assert.Contains(t, output, "Exported 2 patterns")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []blocklist.Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "domain:a.com", entries[0].Pattern)
	assert.Equal(t, "second", entries[1].Reason)
}
