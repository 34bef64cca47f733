package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/extract"
)

// Ledger defines the visit ledger operations: one row per distinct URL.
type Ledger interface {
	Upsert(ctx context.Context, in VisitInput) (*Visit, error)
	GetByURL(ctx context.Context, url string) (*Visit, error)
	List(ctx context.Context, f ListFilter) ([]Visit, error)
	Count(ctx context.Context, f ListFilter) (int64, error)
	Totals(ctx context.Context, f ListFilter) ([]VisitTotal, error)
	Search(ctx context.Context, query string, limit int) ([]Visit, error)
	DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error)
	SetSummary(ctx context.Context, url string, rating int, summary string) error
	Clear(ctx context.Context) error
}

// LedgerOptions configures a SQLiteLedger.
type LedgerOptions struct {
	// TextMaxLength truncates text extracts; 0 keeps them whole.
	TextMaxLength int
	Logger        logrus.FieldLogger
	Locks         *KeyLocks
}

// SQLiteLedger implements Ledger on the visits table.
type SQLiteLedger struct {
	db       *sql.DB
	contents *SQLiteContentStore
	locks    *KeyLocks
	log      logrus.FieldLogger
	maxText  int
}

// NewSQLiteLedger creates a ledger sharing db and the content store's cache.
func NewSQLiteLedger(db *sql.DB, contents *SQLiteContentStore, opts LedgerOptions) *SQLiteLedger {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Locks == nil {
		opts.Locks = NewKeyLocks()
	}
	return &SQLiteLedger{
		db:       db,
		contents: contents,
		locks:    opts.Locks,
		log:      opts.Logger,
		maxText:  opts.TextMaxLength,
	}
}

const visitColumns = `v.url, v.title, v.timestamp, v.content_hash, v.text_extract, v.links,
	v.total_time_spent, v.processed, v.rating, v.summary`

// Upsert records a page view. A new URL gets a fresh row with zero time
// spent; a known URL has its title, timestamp, content and derived
// text/links refreshed in place while total_time_spent is preserved.
// The content entry and the visit row are written in one transaction.
func (l *SQLiteLedger) Upsert(ctx context.Context, in VisitInput) (*Visit, error) {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return nil, Invalid("url", "required")
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, Invalid("rating", "must be between 1 and 5")
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}

	entry := l.log.WithField("url", in.URL)

	text, err := extract.Text(in.Body, l.maxText)
	if err != nil {
		entry.WithError(err).Warn("text extraction degraded")
	}
	links, err := extract.Links(in.Body, in.URL)
	if err != nil {
		entry.WithError(err).Warn("link extraction degraded")
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return nil, Invalid("links", err.Error())
	}

	hash := Fingerprint(in.Body)
	meta := map[string]string{
		"byte_size":    strconv.Itoa(len(in.Body)),
		"title":        in.Title,
		"source_url":   in.URL,
		"content_type": "text/html",
	}

	var rating sql.NullInt64
	if in.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*in.Rating), Valid: true}
	}

	unlock := l.locks.Lock(in.URL)
	defer unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, StorageErr("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := putContent(ctx, tx, hash, in.Body, meta); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO visits (url, title, timestamp, content_hash, text_extract, links, total_time_spent, processed, rating)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 1, ?)
		 ON CONFLICT (url) DO UPDATE SET
		   title        = excluded.title,
		   timestamp    = excluded.timestamp,
		   content_hash = excluded.content_hash,
		   text_extract = excluded.text_extract,
		   links        = excluded.links,
		   processed    = 1,
		   rating       = COALESCE(excluded.rating, visits.rating),
		   updated_at   = CURRENT_TIMESTAMP`,
		in.URL, in.Title, FormatTime(in.Timestamp), hash, text, string(linksJSON), rating,
	)
	if err != nil {
		return nil, StorageErr("upsert visit", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, StorageErr("commit visit", err)
	}

	entry.WithField("hash", hash).Debug("visit recorded")

	return l.GetByURL(ctx, in.URL)
}

// GetByURL returns the visit for url, or ErrNotFound.
func (l *SQLiteLedger) GetByURL(ctx context.Context, url string) (*Visit, error) {
	row := l.db.QueryRowContext(ctx, "SELECT "+visitColumns+" FROM visits v WHERE v.url = ?", url)
	v, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, StorageErr("get visit", err)
	}
	return v, nil
}

// whereClause builds the shared filter for List, Count and Totals.
func whereClause(f ListFilter) (string, []any) {
	var clauses []string
	var args []any

	if !f.Since.IsZero() {
		clauses = append(clauses, "v.timestamp >= ?")
		args = append(args, FormatTime(f.Since))
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "v.timestamp <= ?")
		args = append(args, FormatTime(f.Until))
	}
	if f.Domain != "" {
		clauses = append(clauses, `v.url LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Domain))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns visits newest first.
func (l *SQLiteLedger) List(ctx context.Context, f ListFilter) ([]Visit, error) {
	where, args := whereClause(f)
	query := "SELECT " + visitColumns + " FROM visits v" + where + " ORDER BY v.timestamp DESC LIMIT ?"
	args = append(args, sqlLimit(f.Limit))

	return l.scanVisits(ctx, query, args...)
}

// Count returns how many visits match f, ignoring f.Limit.
func (l *SQLiteLedger) Count(ctx context.Context, f ListFilter) (int64, error) {
	where, args := whereClause(f)
	var n int64
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visits v"+where, args...).Scan(&n); err != nil {
		return 0, StorageErr("count visits", err)
	}
	return n, nil
}

// Totals returns url and total_time_spent for every visit matching f,
// ignoring f.Limit. Used for per-domain aggregation.
func (l *SQLiteLedger) Totals(ctx context.Context, f ListFilter) ([]VisitTotal, error) {
	where, args := whereClause(f)
	rows, err := l.db.QueryContext(ctx, "SELECT v.url, v.total_time_spent FROM visits v"+where, args...)
	if err != nil {
		return nil, StorageErr("query totals", err)
	}
	defer rows.Close()

	totals := []VisitTotal{}
	for rows.Next() {
		var t VisitTotal
		if err := rows.Scan(&t.URL, &t.TotalTimeSpent); err != nil {
			return nil, StorageErr("scan totals", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageErr("iterate totals", err)
	}
	return totals, nil
}

// Search matches query as a substring of the URL, title, text extract, raw
// content and content metadata. Matching ignores case for any Unicode
// letter, not only ASCII. Newest first.
func (l *SQLiteLedger) Search(ctx context.Context, query string, limit int) ([]Visit, error) {
	pattern := likePattern(foldCase(query))
	q := "SELECT " + visitColumns + `
		FROM visits v
		JOIN content_store cs ON v.content_hash = cs.hash
		WHERE fold(v.url) LIKE ? ESCAPE '\' OR fold(v.title) LIKE ? ESCAPE '\'
		   OR fold(v.text_extract) LIKE ? ESCAPE '\'
		   OR fold(cs.content) LIKE ? ESCAPE '\' OR fold(cs.metadata) LIKE ? ESCAPE '\'
		ORDER BY v.timestamp DESC
		LIMIT ?`

	return l.scanVisits(ctx, q, pattern, pattern, pattern, pattern, pattern, sqlLimit(limit))
}

// DailyCounts groups visits since the given time by UTC day, oldest first.
func (l *SQLiteLedger) DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT substr(timestamp, 1, 10) AS day, COUNT(*)
		 FROM visits
		 WHERE timestamp >= ?
		 GROUP BY day
		 ORDER BY day`,
		FormatTime(since),
	)
	if err != nil {
		return nil, StorageErr("query daily counts", err)
	}
	defer rows.Close()

	counts := []DailyCount{}
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, StorageErr("scan daily counts", err)
		}
		counts = append(counts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageErr("iterate daily counts", err)
	}
	return counts, nil
}

// SetSummary stores the summarizer's rating and report for url.
func (l *SQLiteLedger) SetSummary(ctx context.Context, url string, rating int, summary string) error {
	if rating < 1 || rating > 5 {
		return Invalid("rating", "must be between 1 and 5")
	}

	unlock := l.locks.Lock(url)
	defer unlock()

	res, err := l.db.ExecContext(ctx,
		"UPDATE visits SET rating = ?, summary = ?, updated_at = CURRENT_TIMESTAMP WHERE url = ?",
		rating, summary, url,
	)
	if err != nil {
		return StorageErr("set summary", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return StorageErr("set summary", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear deletes every session, visit and content entry in one transaction.
// The blocklist is left alone.
func (l *SQLiteLedger) Clear(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return StorageErr("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmts := []string{
		"DELETE FROM sessions",
		"DELETE FROM visits",
		"DELETE FROM content_store",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return StorageErr("clear ("+stmt+")", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return StorageErr("commit clear", err)
	}

	if l.contents != nil {
		l.contents.flush()
	}
	l.log.Info("ledger cleared")
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*Visit, error) {
	var v Visit
	var ts, links string
	var rating sql.NullInt64

	if err := row.Scan(
		&v.URL, &v.Title, &ts, &v.ContentHash, &v.TextExtract, &links,
		&v.TotalTimeSpent, &v.Processed, &rating, &v.Summary,
	); err != nil {
		return nil, err
	}

	v.Timestamp, _ = ParseTime(ts)

	v.Links = []extract.LinkRef{}
	if links != "" {
		if err := json.Unmarshal([]byte(links), &v.Links); err != nil {
			v.Links = []extract.LinkRef{}
		}
	}

	if rating.Valid {
		r := int(rating.Int64)
		v.Rating = &r
	}

	return &v, nil
}

// scanVisits executes a query and scans results into a Visit slice.
func (l *SQLiteLedger) scanVisits(ctx context.Context, query string, args ...any) ([]Visit, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, StorageErr("query visits", err)
	}
	defer rows.Close()

	visits := []Visit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, StorageErr("scan visit", err)
		}
		visits = append(visits, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, StorageErr("iterate visits", err)
	}

	return visits, nil
}

// likePattern wraps s in % and escapes LIKE wildcards so it matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// sqlLimit maps "no limit" (<= 0) to SQLite's -1.
func sqlLimit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}
