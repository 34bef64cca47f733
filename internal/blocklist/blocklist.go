// Package blocklist decides whether a URL may be recorded.
//
// Entries live in the blocklist table in insertion order. A parsed copy is
// held in memory so checks never touch the database; every mutation
// rewrites the table in a transaction and then reloads the copy.
package blocklist

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/storage"
)

const (
	// DefaultReason is used when Add is called without a reason.
	DefaultReason = "Manually blocked"
	// BulkReason is used for bulk items without a reason.
	BulkReason = "Bulk import"
)

// Entry is one stored blocklist pattern.
type Entry struct {
	Pattern string     `json:"url_pattern"`
	Reason  string     `json:"reason"`
	Added   time.Time  `json:"added"`
	Updated *time.Time `json:"updated,omitempty"`
}

// Item is one pattern in a bulk import.
type Item struct {
	Pattern string `json:"url" yaml:"url"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// BulkResult reports what BulkAdd did with each pattern.
type BulkResult struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
	Invalid []string `json:"invalid,omitempty"`
}

// Verdict is the outcome of a check.
type Verdict struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// Blocklist is the persisted, ordered rule set.
type Blocklist struct {
	db  *sql.DB
	log logrus.FieldLogger

	mu      sync.RWMutex
	entries []Entry
	rules   []Rule
	index   map[string]int
}

// New loads the blocklist stored in db.
func New(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) (*Blocklist, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	b := &Blocklist{db: db, log: logger.WithField("component", "blocklist")}
	if err := b.Reload(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload replaces the in-memory rules with the table contents.
func (b *Blocklist) Reload(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}

// load reads the table. Callers hold b.mu for writing.
func (b *Blocklist) load(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx,
		"SELECT url_pattern, reason, added, updated FROM blocklist ORDER BY position")
	if err != nil {
		return storage.StorageErr("load blocklist", err)
	}
	defer rows.Close()

	entries := []Entry{}
	rules := []Rule{}
	index := map[string]int{}
	for rows.Next() {
		var e Entry
		var added string
		var updated sql.NullString
		if err := rows.Scan(&e.Pattern, &e.Reason, &added, &updated); err != nil {
			return storage.StorageErr("scan blocklist", err)
		}
		e.Added, _ = storage.ParseTime(added)
		if updated.Valid {
			if t, err := storage.ParseTime(updated.String); err == nil {
				e.Updated = &t
			}
		}

		rule, err := ParseRule(e.Pattern)
		if err != nil {
			b.log.WithError(err).WithField("pattern", e.Pattern).Warn("skipping unusable pattern")
		} else {
			rules = append(rules, rule)
		}

		index[e.Pattern] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return storage.StorageErr("iterate blocklist", err)
	}

	b.entries, b.rules, b.index = entries, rules, index
	return nil
}

// Check returns the verdict for url. Rules are tried in list order and the
// first match decides.
func (b *Blocklist) Check(url string) Verdict {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, r := range b.rules {
		if r.Match(url) {
			return Verdict{Blocked: true, Reason: b.entries[b.index[r.Pattern]].Reason, Pattern: r.Pattern}
		}
	}
	return Verdict{}
}

// IsBlocked reports whether url is blocked and why.
func (b *Blocklist) IsBlocked(url string) (bool, string) {
	v := b.Check(url)
	return v.Blocked, v.Reason
}

// Add appends pattern. A pattern already present (compared case-sensitively)
// is a conflict.
func (b *Blocklist) Add(ctx context.Context, pattern, reason string) (*Entry, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, storage.Invalid("url", "required")
	}
	if _, err := ParseRule(pattern); err != nil {
		return nil, storage.Invalid("url", err.Error())
	}
	if reason == "" {
		reason = DefaultReason
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.index[pattern]; ok {
		return nil, storage.ErrConflict
	}

	now := time.Now()
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO blocklist (url_pattern, reason, added) VALUES (?, ?, ?)",
		pattern, reason, storage.FormatTime(now),
	)
	if isUniqueViolation(err) {
		return nil, storage.ErrConflict
	}
	if err != nil {
		return nil, storage.StorageErr("insert pattern", err)
	}

	if err := b.load(ctx); err != nil {
		return nil, err
	}
	b.log.WithFields(logrus.Fields{"pattern": pattern, "reason": reason}).Info("pattern blocked")

	e := b.entries[b.index[pattern]]
	return &e, nil
}

// Remove deletes pattern, or returns ErrNotFound.
func (b *Blocklist) Remove(ctx context.Context, pattern string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.db.ExecContext(ctx, "DELETE FROM blocklist WHERE url_pattern = ?", pattern)
	if err != nil {
		return storage.StorageErr("delete pattern", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}

	b.log.WithField("pattern", pattern).Info("pattern unblocked")
	return b.load(ctx)
}

// Update replaces the reason of pattern and stamps its updated time.
func (b *Blocklist) Update(ctx context.Context, pattern, reason string) (*Entry, error) {
	if reason == "" {
		return nil, storage.Invalid("reason", "required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.db.ExecContext(ctx,
		"UPDATE blocklist SET reason = ?, updated = ? WHERE url_pattern = ?",
		reason, storage.FormatTime(time.Now()), pattern,
	)
	if err != nil {
		return nil, storage.StorageErr("update pattern", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, storage.ErrNotFound
	}

	if err := b.load(ctx); err != nil {
		return nil, err
	}
	e := b.entries[b.index[pattern]]
	return &e, nil
}

// BulkAdd appends every new pattern in one transaction. Patterns already in
// the list, or repeated within items, are reported as skipped. Empty
// patterns are ignored and unparsable wildcards are reported as invalid.
func (b *Blocklist) BulkAdd(ctx context.Context, items []Item) (*BulkResult, error) {
	result := &BulkResult{Added: []string{}, Skipped: []string{}}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.StorageErr("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	added := storage.FormatTime(time.Now())
	seen := map[string]bool{}
	for _, it := range items {
		pattern := strings.TrimSpace(it.Pattern)
		if pattern == "" {
			continue
		}
		if _, ok := b.index[pattern]; ok || seen[pattern] {
			result.Skipped = append(result.Skipped, pattern)
			continue
		}
		if _, err := ParseRule(pattern); err != nil {
			result.Invalid = append(result.Invalid, pattern)
			continue
		}
		seen[pattern] = true

		reason := it.Reason
		if reason == "" {
			reason = BulkReason
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO blocklist (url_pattern, reason, added) VALUES (?, ?, ?)",
			pattern, reason, added,
		); err != nil {
			return nil, storage.StorageErr("bulk insert pattern", err)
		}
		result.Added = append(result.Added, pattern)
	}

	if err := tx.Commit(); err != nil {
		return nil, storage.StorageErr("commit bulk insert", err)
	}

	b.log.WithFields(logrus.Fields{
		"added":   len(result.Added),
		"skipped": len(result.Skipped),
		"invalid": len(result.Invalid),
	}).Info("bulk import finished")

	if err := b.load(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// Export returns a copy of the list in insertion order.
func (b *Blocklist) Export() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of stored patterns.
func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
