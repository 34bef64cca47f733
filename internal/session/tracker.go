// Package session records viewing intervals and folds their durations into
// the visit ledger.
package session

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/storage"
)

// Session is one continuous viewing interval of a URL.
type Session struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds int64      `json:"duration"`
}

// Closed reports whether the session has ended.
func (s Session) Closed() bool {
	return s.EndTime != nil
}

// TimeRange bounds SessionsFor by start time. Zero values are open ends.
type TimeRange struct {
	Since time.Time
	Until time.Time
}

// Observer is notified after a session closes.
type Observer interface {
	SessionClosed(url string, seconds int64)
}

// Tracker persists sessions in the sessions table.
type Tracker struct {
	db       *sql.DB
	locks    *storage.KeyLocks
	log      logrus.FieldLogger
	observer Observer
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLocks shares the ledger's per-URL locks so a session close and a
// visit refresh of the same URL never interleave.
func WithLocks(l *storage.KeyLocks) Option {
	return func(t *Tracker) { t.locks = l }
}

// WithObserver registers o for close notifications.
func WithObserver(o Observer) Option {
	return func(t *Tracker) { t.observer = o }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker over a migrated database.
func NewTracker(db *sql.DB, logger logrus.FieldLogger, opts ...Option) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	t := &Tracker{
		db:    db,
		locks: storage.NewKeyLocks(),
		log:   logger.WithField("component", "session"),
		now:   time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start opens a session for url at the current time.
func (t *Tracker) Start(ctx context.Context, url string) (string, error) {
	return t.StartAt(ctx, url, t.now())
}

// StartAt opens a session for url beginning at start. The URL must already
// have a visit.
func (t *Tracker) StartAt(ctx context.Context, url string, start time.Time) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", storage.Invalid("url", "required")
	}
	if start.IsZero() {
		start = t.now()
	}

	id := uuid.NewString()

	res, err := t.db.ExecContext(ctx,
		`INSERT INTO sessions (id, url, start_time)
		 SELECT ?, url, ? FROM visits WHERE url = ?`,
		id, storage.FormatTime(start), url,
	)
	if err != nil {
		return "", storage.StorageErr("insert session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", storage.ErrNotFound
	}

	t.log.WithFields(logrus.Fields{"session_id": id, "url": url}).Debug("session started")
	return id, nil
}

// End closes session id at end. The duration is end minus start truncated
// to whole seconds; it is written to the session and added to the visit's
// total_time_spent in one transaction. A negative duration is a validation
// error and closing a session twice is a conflict.
func (t *Tracker) End(ctx context.Context, id string, end time.Time) (*Session, error) {
	if id == "" {
		return nil, storage.Invalid("session_id", "required")
	}
	if end.IsZero() {
		end = t.now()
	}

	s, err := t.get(ctx, t.db, id)
	if err != nil {
		return nil, err
	}

	unlock := t.locks.Lock(s.URL)
	defer unlock()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.StorageErr("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Re-read inside the write transaction so a racing End sees the close.
	s, err = t.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if s.Closed() {
		return nil, storage.ErrConflict
	}

	d := end.Sub(s.StartTime)
	if d < 0 {
		return nil, storage.Invalid("end_time", "before start_time")
	}
	seconds := int64(d / time.Second)

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET end_time = ?, duration = ? WHERE id = ?",
		storage.FormatTime(end), seconds, id,
	); err != nil {
		return nil, storage.StorageErr("close session", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE visits SET total_time_spent = total_time_spent + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE url = ?`,
		seconds, s.URL,
	); err != nil {
		return nil, storage.StorageErr("add time spent", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storage.StorageErr("commit session", err)
	}

	endUTC := end.UTC()
	s.EndTime = &endUTC
	s.DurationSeconds = seconds

	t.log.WithFields(logrus.Fields{
		"session_id": id,
		"url":        s.URL,
		"seconds":    seconds,
	}).Debug("session closed")

	if t.observer != nil {
		t.observer.SessionClosed(s.URL, seconds)
	}
	return s, nil
}

// Get returns one session.
func (t *Tracker) Get(ctx context.Context, id string) (*Session, error) {
	return t.get(ctx, t.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (t *Tracker) get(ctx context.Context, q queryer, id string) (*Session, error) {
	row := q.QueryRowContext(ctx,
		"SELECT id, url, start_time, end_time, duration FROM sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.StorageErr("get session", err)
	}
	return s, nil
}

// SessionsFor lists the sessions of url that started within r, most recent first.
func (t *Tracker) SessionsFor(ctx context.Context, url string, r TimeRange) ([]Session, error) {
	query := "SELECT id, url, start_time, end_time, duration FROM sessions WHERE url = ?"
	args := []any{url}
	if !r.Since.IsZero() {
		query += " AND start_time >= ?"
		args = append(args, storage.FormatTime(r.Since))
	}
	if !r.Until.IsZero() {
		query += " AND start_time <= ?"
		args = append(args, storage.FormatTime(r.Until))
	}
	query += " ORDER BY start_time DESC"

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.StorageErr("query sessions", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, storage.StorageErr("scan session", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.StorageErr("iterate sessions", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var start string
	var end sql.NullString
	var duration sql.NullInt64

	if err := row.Scan(&s.ID, &s.URL, &start, &end, &duration); err != nil {
		return nil, err
	}

	s.StartTime, _ = storage.ParseTime(start)
	if end.Valid {
		if et, err := storage.ParseTime(end.String); err == nil {
			s.EndTime = &et
		}
	}
	s.DurationSeconds = duration.Int64
	return &s, nil
}
