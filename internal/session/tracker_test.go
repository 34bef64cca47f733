package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/webwatch/internal/storage"
)

type recordingObserver struct {
	mu      sync.Mutex
	seconds []int64
}

func (o *recordingObserver) SessionClosed(_ string, seconds int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seconds = append(o.seconds, seconds)
}

func setup(t *testing.T, opts ...Option) (*Tracker, *storage.SQLiteLedger, *sql.DB) {
	t.Helper()
	db, err := storage.OpenAndMigrate(filepath.Join(t.TempDir(), "webwatch.db"), storage.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	locks := storage.NewKeyLocks()
	ledger := storage.NewSQLiteLedger(db, storage.NewSQLiteContentStore(db), storage.LedgerOptions{Logger: logger, Locks: locks})

	opts = append([]Option{WithLocks(locks)}, opts...)
	return NewTracker(db, logger, opts...), ledger, db
}

func addVisit(t *testing.T, ledger *storage.SQLiteLedger, url string) {
	t.Helper()
	_, err := ledger.Upsert(context.Background(), storage.VisitInput{URL: url, Body: "<p>x</p>"})
	require.NoError(t, err)
}

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestTracker_TimeAggregation(t *testing.T) {
	obs := &recordingObserver{}
	tracker, ledger, _ := setup(t, WithObserver(obs))
	ctx := context.Background()
	url := "https://example.com/read"
	addVisit(t, ledger, url)

	id1, err := tracker.StartAt(ctx, url, t0)
	require.NoError(t, err)
	s1, err := tracker.End(ctx, id1, t0.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(90), s1.DurationSeconds)

	id2, err := tracker.StartAt(ctx, url, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = tracker.End(ctx, id2, t0.Add(time.Hour+45*time.Second+900*time.Millisecond))
	require.NoError(t, err)

	v, err := ledger.GetByURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, int64(90+45), v.TotalTimeSpent)
	assert.Equal(t, []int64{90, 45}, obs.seconds)
}

func TestTracker_StartRequiresVisit(t *testing.T) {
	tracker, _, _ := setup(t)

	_, err := tracker.Start(context.Background(), "https://unknown.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = tracker.Start(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestTracker_EndTwiceIsConflict(t *testing.T) {
	tracker, ledger, _ := setup(t)
	ctx := context.Background()
	addVisit(t, ledger, "https://a.com")

	id, err := tracker.StartAt(ctx, "https://a.com", t0)
	require.NoError(t, err)
	_, err = tracker.End(ctx, id, t0.Add(10*time.Second))
	require.NoError(t, err)

	_, err = tracker.End(ctx, id, t0.Add(20*time.Second))
	assert.ErrorIs(t, err, storage.ErrConflict)

	v, err := ledger.GetByURL(ctx, "https://a.com")
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.TotalTimeSpent, "duration folded in exactly once")
}

func TestTracker_NegativeDurationRejected(t *testing.T) {
	tracker, ledger, _ := setup(t)
	ctx := context.Background()
	addVisit(t, ledger, "https://a.com")

	id, err := tracker.StartAt(ctx, "https://a.com", t0)
	require.NoError(t, err)

	_, err = tracker.End(ctx, id, t0.Add(-time.Second))
	assert.ErrorIs(t, err, storage.ErrValidation)

	s, err := tracker.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, s.Closed(), "rejected end leaves session open")
}

func TestTracker_EndUnknownSession(t *testing.T) {
	tracker, _, _ := setup(t)

	_, err := tracker.End(context.Background(), "nope", t0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTracker_ConcurrentEndFoldsOnce(t *testing.T) {
	tracker, ledger, _ := setup(t)
	ctx := context.Background()
	addVisit(t, ledger, "https://a.com")

	id, err := tracker.StartAt(ctx, "https://a.com", t0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.End(ctx, id, t0.Add(30*time.Second))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, storage.ErrConflict)
		}
	}
	assert.Equal(t, 1, ok)

	v, err := ledger.GetByURL(ctx, "https://a.com")
	require.NoError(t, err)
	assert.Equal(t, int64(30), v.TotalTimeSpent)
}

func TestTracker_SessionsForNewestFirst(t *testing.T) {
	tracker, ledger, _ := setup(t)
	ctx := context.Background()
	addVisit(t, ledger, "https://a.com")
	addVisit(t, ledger, "https://b.com")

	for i := 0; i < 3; i++ {
		_, err := tracker.StartAt(ctx, "https://a.com", t0.Add(time.Duration(i)*24*time.Hour))
		require.NoError(t, err)
	}
	_, err := tracker.StartAt(ctx, "https://b.com", t0)
	require.NoError(t, err)

	all, err := tracker.SessionsFor(ctx, "https://a.com", TimeRange{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartTime.Equal(t0.Add(48*time.Hour)))
	assert.True(t, all[2].StartTime.Equal(t0))

	recent, err := tracker.SessionsFor(ctx, "https://a.com", TimeRange{Since: t0.Add(12 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	bounded, err := tracker.SessionsFor(ctx, "https://a.com", TimeRange{Since: t0, Until: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, bounded, 1)

	none, err := tracker.SessionsFor(ctx, "https://none.com", TimeRange{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestTracker_SessionsRemovedWithLedger(t *testing.T) {
	tracker, ledger, _ := setup(t)
	ctx := context.Background()
	addVisit(t, ledger, "https://a.com")

	_, err := tracker.StartAt(ctx, "https://a.com", t0)
	require.NoError(t, err)
	require.NoError(t, ledger.Clear(ctx))

	sessions, err := tracker.SessionsFor(ctx, "https://a.com", TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestTracker_StartUsesClock(t *testing.T) {
	tracker, ledger, _ := setup(t, WithClock(func() time.Time { return t0 }))
	ctx := context.Background()
	addVisit(t, ledger, "https://a.com")

	id, err := tracker.Start(ctx, "https://a.com")
	require.NoError(t, err)

	s, err := tracker.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, s.StartTime.Equal(t0))
	assert.Nil(t, s.EndTime)
}
