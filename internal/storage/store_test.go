package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB creates a migrated database file under t.TempDir.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "webwatch.db"), Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// openTestLedger returns a ledger and its content store over a fresh database.
func openTestLedger(t *testing.T) (*SQLiteLedger, *SQLiteContentStore) {
	t.Helper()
	db := openTestDB(t)
	logger, _ := test.NewNullLogger()
	contents := NewSQLiteContentStore(db)
	return NewSQLiteLedger(db, contents, LedgerOptions{Logger: logger}), contents
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

const samplePage = `<html><body><h1>Example Domain</h1><p>Hello there.</p><a href="/more">More</a></body></html>`

// --- Upsert ---

func TestUpsert_NewURL(t *testing.T) {
	ledger, contents := openTestLedger(t)
	ctx := context.Background()

	v, err := ledger.Upsert(ctx, VisitInput{
		URL:       "https://example.com/page",
		Title:     "Example",
		Timestamp: ts("2024-03-01T10:00:00Z"),
		Body:      samplePage,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/page", v.URL)
	assert.Equal(t, "Example", v.Title)
	assert.True(t, v.Timestamp.Equal(ts("2024-03-01T10:00:00Z")))
	assert.Equal(t, Fingerprint(samplePage), v.ContentHash)
	assert.Equal(t, "Example Domain\nHello there.", v.TextExtract)
	require.Len(t, v.Links, 1)
	assert.Equal(t, "https://example.com/more", v.Links[0].URL)
	assert.Equal(t, int64(0), v.TotalTimeSpent)
	assert.True(t, v.Processed)
	assert.Nil(t, v.Rating)

	entry, err := contents.Get(ctx, v.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, samplePage, entry.Body)
	assert.Equal(t, "Example", entry.Metadata["title"])
	assert.Equal(t, "https://example.com/page", entry.Metadata["source_url"])
	assert.Equal(t, "text/html", entry.Metadata["content_type"])
	assert.Equal(t, fmt.Sprint(len(samplePage)), entry.Metadata["byte_size"])
}

func TestUpsert_RefreshesInPlace(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()
	url := "https://example.com/page"

	_, err := ledger.Upsert(ctx, VisitInput{URL: url, Title: "Old", Timestamp: ts("2024-03-01T10:00:00Z"), Body: "<p>old</p>"})
	require.NoError(t, err)

	_, err = ledger.db.Exec("UPDATE visits SET total_time_spent = 42 WHERE url = ?", url)
	require.NoError(t, err)

	v, err := ledger.Upsert(ctx, VisitInput{URL: url, Title: "New", Timestamp: ts("2024-03-02T10:00:00Z"), Body: "<p>new</p>"})
	require.NoError(t, err)

	assert.Equal(t, "New", v.Title)
	assert.True(t, v.Timestamp.Equal(ts("2024-03-02T10:00:00Z")))
	assert.Equal(t, Fingerprint("<p>new</p>"), v.ContentHash)
	assert.Equal(t, "new", v.TextExtract)
	assert.Equal(t, int64(42), v.TotalTimeSpent, "time spent survives a refresh")

	n, err := ledger.Count(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpsert_KeepsRatingWhenOmitted(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()
	four := 4

	_, err := ledger.Upsert(ctx, VisitInput{URL: "https://a.com", Body: "a", Rating: &four})
	require.NoError(t, err)

	v, err := ledger.Upsert(ctx, VisitInput{URL: "https://a.com", Body: "b"})
	require.NoError(t, err)
	require.NotNil(t, v.Rating)
	assert.Equal(t, 4, *v.Rating)
}

func TestUpsert_Validation(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()
	bad := 9

	_, err := ledger.Upsert(ctx, VisitInput{URL: "  ", Body: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ledger.Upsert(ctx, VisitInput{URL: "https://a.com", Body: "x", Rating: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "rating", ve.Field)

	n, err := ledger.Count(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, n, "rejected input leaves no state behind")
}

func TestUpsert_DefaultsTimestampToNow(t *testing.T) {
	ledger, _ := openTestLedger(t)
	before := time.Now().Add(-time.Second)

	v, err := ledger.Upsert(context.Background(), VisitInput{URL: "https://a.com", Body: "x"})
	require.NoError(t, err)
	assert.True(t, v.Timestamp.After(before))
}

func TestUpsert_MalformedHTMLStillRecorded(t *testing.T) {
	ledger, _ := openTestLedger(t)

	v, err := ledger.Upsert(context.Background(), VisitInput{
		URL:  "https://broken.com",
		Body: "<div><p>unclosed <span>tags",
	})
	require.NoError(t, err)
	assert.Contains(t, v.TextExtract, "unclosed")
	assert.NotNil(t, v.Links)
}

func TestUpsert_SharedBodyStoredOnce(t *testing.T) {
	ledger, contents := openTestLedger(t)
	ctx := context.Background()

	a, err := ledger.Upsert(ctx, VisitInput{URL: "https://a.com", Body: samplePage})
	require.NoError(t, err)
	b, err := ledger.Upsert(ctx, VisitInput{URL: "https://b.com", Body: samplePage})
	require.NoError(t, err)

	assert.Equal(t, a.ContentHash, b.ContentHash)

	n, err := contents.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpsert_ConcurrentSameURL(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Upsert(ctx, VisitInput{
				URL:  "https://same.com",
				Body: fmt.Sprintf("<p>body %d</p>", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	n, err := ledger.Count(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// --- Reads ---

func TestGetByURL_NotFound(t *testing.T) {
	ledger, _ := openTestLedger(t)

	_, err := ledger.GetByURL(context.Background(), "https://nope.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedVisits(t *testing.T, ledger *SQLiteLedger) {
	t.Helper()
	ctx := context.Background()
	visits := []VisitInput{
		{URL: "https://a.com/1", Title: "A1", Timestamp: ts("2024-03-01T10:00:00Z"), Body: "<p>alpha</p>"},
		{URL: "https://b.org/1", Title: "B1", Timestamp: ts("2024-03-03T10:00:00Z"), Body: "<p>beta</p>"},
		{URL: "https://a.com/2", Title: "A2", Timestamp: ts("2024-03-05T10:00:00Z"), Body: "<p>gamma</p>"},
	}
	for _, in := range visits {
		_, err := ledger.Upsert(ctx, in)
		require.NoError(t, err)
	}
}

func TestList_NewestFirstWithFilters(t *testing.T) {
	ledger, _ := openTestLedger(t)
	seedVisits(t, ledger)
	ctx := context.Background()

	all, err := ledger.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://a.com/2", all[0].URL)
	assert.Equal(t, "https://b.org/1", all[1].URL)
	assert.Equal(t, "https://a.com/1", all[2].URL)

	since, err := ledger.List(ctx, ListFilter{Since: ts("2024-03-02T00:00:00Z")})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	limited, err := ledger.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "https://a.com/2", limited[0].URL)

	domain, err := ledger.List(ctx, ListFilter{Domain: "a.com"})
	require.NoError(t, err)
	assert.Len(t, domain, 2)

	n, err := ledger.Count(ctx, ListFilter{Domain: "a.com", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "count ignores limit")
}

func TestList_EmptyIsNotNil(t *testing.T) {
	ledger, _ := openTestLedger(t)

	visits, err := ledger.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, visits)
	assert.Empty(t, visits)
}

func TestTotals(t *testing.T) {
	ledger, _ := openTestLedger(t)
	seedVisits(t, ledger)

	_, err := ledger.db.Exec("UPDATE visits SET total_time_spent = 30 WHERE url = 'https://a.com/1'")
	require.NoError(t, err)

	totals, err := ledger.Totals(context.Background(), ListFilter{Domain: "a.com"})
	require.NoError(t, err)
	require.Len(t, totals, 2)

	sum := int64(0)
	for _, tot := range totals {
		sum += tot.TotalTimeSpent
	}
	assert.Equal(t, int64(30), sum)
}

func TestSearch_CaseInsensitiveAcrossFields(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Upsert(ctx, VisitInput{URL: "https://site.com/x", Title: "An Example Title", Body: "<p>body</p>"})
	require.NoError(t, err)
	_, err = ledger.Upsert(ctx, VisitInput{URL: "https://other.com", Title: "Other", Body: `<div data-k="needle"></div>`})
	require.NoError(t, err)

	byTitle, err := ledger.Search(ctx, "EXAMPLE", 10)
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "https://site.com/x", byTitle[0].URL)

	// Only present in the raw body, not in the text extract.
	byContent, err := ledger.Search(ctx, "needle", 10)
	require.NoError(t, err)
	require.Len(t, byContent, 1)
	assert.Equal(t, "https://other.com", byContent[0].URL)
}

func TestSearch_FoldsNonASCIICase(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Upsert(ctx, VisitInput{URL: "https://bakery.fr", Title: "Éclair au chocolat", Body: "<p>x</p>"})
	require.NoError(t, err)

	results, err := ledger.Search(ctx, "éclair", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://bakery.fr", results[0].URL)

	results, err = ledger.Search(ctx, "ÉCLAIR AU", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_EscapesWildcards(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Upsert(ctx, VisitInput{URL: "https://a.com", Title: "plain", Body: "x"})
	require.NoError(t, err)

	results, err := ledger.Search(ctx, "%", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDailyCounts(t *testing.T) {
	ledger, _ := openTestLedger(t)
	seedVisits(t, ledger)

	counts, err := ledger.DailyCounts(context.Background(), ts("2024-03-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, []DailyCount{
		{Date: "2024-03-03", Count: 1},
		{Date: "2024-03-05", Count: 1},
	}, counts)
}

// --- SetSummary ---

func TestSetSummary(t *testing.T) {
	ledger, _ := openTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Upsert(ctx, VisitInput{URL: "https://a.com", Body: "x"})
	require.NoError(t, err)

	require.NoError(t, ledger.SetSummary(ctx, "https://a.com", 3, "fine"))

	v, err := ledger.GetByURL(ctx, "https://a.com")
	require.NoError(t, err)
	require.NotNil(t, v.Rating)
	assert.Equal(t, 3, *v.Rating)
	assert.Equal(t, "fine", v.Summary)

	assert.ErrorIs(t, ledger.SetSummary(ctx, "https://a.com", 0, "x"), ErrValidation)
	assert.ErrorIs(t, ledger.SetSummary(ctx, "https://missing.com", 3, "x"), ErrNotFound)
}

// --- Clear ---

func TestClear_RemovesEverythingButBlocklist(t *testing.T) {
	ledger, contents := openTestLedger(t)
	ctx := context.Background()
	seedVisits(t, ledger)

	_, err := ledger.db.Exec(
		"INSERT INTO sessions (id, url, start_time) VALUES ('s1', 'https://a.com/1', '2024-03-01T10:00:00.000000Z')",
	)
	require.NoError(t, err)
	_, err = ledger.db.Exec(
		"INSERT INTO blocklist (url_pattern, reason, added) VALUES ('domain:x.com', 'r', '2024-03-01T10:00:00.000000Z')",
	)
	require.NoError(t, err)

	hash := Fingerprint("<p>alpha</p>")
	_, err = contents.Get(ctx, hash) // warm the cache
	require.NoError(t, err)

	require.NoError(t, ledger.Clear(ctx))

	n, err := ledger.Count(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	c, err := contents.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, c)

	_, err = contents.Get(ctx, hash)
	assert.ErrorIs(t, err, ErrNotFound, "cache is flushed with the table")

	var sessions, blocked int
	require.NoError(t, ledger.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&sessions))
	require.NoError(t, ledger.db.QueryRow("SELECT COUNT(*) FROM blocklist").Scan(&blocked))
	assert.Zero(t, sessions)
	assert.Equal(t, 1, blocked)
}

func TestUpsert_LogsRecordedVisit(t *testing.T) {
	db := openTestDB(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	ledger := NewSQLiteLedger(db, NewSQLiteContentStore(db), LedgerOptions{Logger: logger})

	_, err := ledger.Upsert(context.Background(), VisitInput{URL: "https://a.com", Body: "<p>ok</p>"})
	require.NoError(t, err)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "visit recorded", hook.LastEntry().Message)
	assert.Equal(t, "https://a.com", hook.LastEntry().Data["url"])
}
