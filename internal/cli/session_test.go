package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/webwatch/internal/session"
	"github.com/runnerr0/webwatch/internal/storage"
)

func TestSessionStartEndList(t *testing.T) {
	a := newTestApp(t)
	seedVisit(t, a, "https://read.me/post", "Post", "<p>x</p>")
	g := &GlobalFlags{}

	start := &SessionStartCommand{URL: "https://read.me/post", At: "2026-01-02T10:00:00Z", globals: g}
	output := captureOutput(t, func() { require.NoError(t, start.executeWith(a)) })
	id := strings.TrimSpace(output)
	require.NotEmpty(t, id)

	end := &SessionEndCommand{ID: id, At: "2026-01-02T10:02:05Z", globals: g}
	output = captureOutput(t, func() { require.NoError(t, end.executeWith(a)) })
	assert.Contains(t, output, "after 0h 2m 5s")

	v, err := a.ledger.GetByURL(context.Background(), "https://read.me/post")
	require.NoError(t, err)
	assert.Equal(t, int64(125), v.TotalTimeSpent)

	err = end.executeWith(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrConflict))

	list := &SessionListCommand{URL: "https://read.me/post", globals: &GlobalFlags{JSON: true}}
	output = captureOutput(t, func() { require.NoError(t, list.executeWith(a)) })
	var sessions []session.Session
	require.NoError(t, json.Unmarshal([]byte(output), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
	assert.Equal(t, int64(125), sessions[0].DurationSeconds)
}

func TestSessionStartUnknownURL(t *testing.T) {
	a := newTestApp(t)

	cmd := &SessionStartCommand{URL: "https://never.seen/", globals: &GlobalFlags{}}
	err := cmd.executeWith(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSessionBadTimeFlag(t *testing.T) {
	a := newTestApp(t)

	cmd := &SessionStartCommand{URL: "https://x.com", At: "tomorrow", globals: &GlobalFlags{}}
	err := cmd.executeWith(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --at value")
}

func TestSessionListSince(t *testing.T) {
	a := newTestApp(t)
	seedVisit(t, a, "https://read.me/post", "Post", "")
	ctx := context.Background()

	_, err := a.sessions.StartAt(ctx, "https://read.me/post", time.Now().Add(-10*24*time.Hour))
	require.NoError(t, err)
	_, err = a.sessions.StartAt(ctx, "https://read.me/post", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	cmd := &SessionListCommand{URL: "https://read.me/post", Since: "2d", globals: &GlobalFlags{}}
	output := captureOutput(t, func() { require.NoError(t, cmd.executeWith(a)) })
	assert.Contains(t, output, "1 sessions for https://read.me/post (last 2 days)")
	assert.Contains(t, output, "open")

	cmd.Since = "2x"
	err = cmd.executeWith(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --since")
}
