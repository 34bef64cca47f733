// Package report answers read-side questions over the visit ledger:
// period reports with per-domain totals, search, per-visit detail and
// daily statistics.
package report

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/session"
	"github.com/runnerr0/webwatch/internal/storage"
)

const (
	// MaxDomainStats caps Report.DomainStatistics.
	MaxDomainStats = 10
	// DefaultSearchLimit applies when Search is called with limit <= 0.
	DefaultSearchLimit = 50
	// StatsDays is the window of Stats.DailyVisits.
	StatsDays = 30
)

// SessionSource lists the sessions of one URL.
type SessionSource interface {
	SessionsFor(ctx context.Context, url string, r session.TimeRange) ([]session.Session, error)
}

// Query selects the visits of a report.
type Query struct {
	Since  time.Time
	Limit  int
	Domain string
}

// Period is the window a report covers.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DomainStat aggregates the visits of one domain.
type DomainStat struct {
	Domain             string `json:"domain"`
	Count              int    `json:"count"`
	TotalTimeSpent     int64  `json:"total_time_spent"`
	TimeSpentFormatted string `json:"time_spent_formatted"`
}

// VisitReport is a visit with its sessions inside the report period.
type VisitReport struct {
	storage.Visit
	Sessions           []session.Session `json:"sessions"`
	TimeSpentFormatted string            `json:"time_spent_formatted"`
}

// Report is the answer to a period query.
type Report struct {
	Period           Period        `json:"period"`
	TotalVisits      int64         `json:"total_visits"`
	DomainStatistics []DomainStat  `json:"domain_statistics"`
	Visits           []VisitReport `json:"visits"`
}

// SearchResult is the answer to a search.
type SearchResult struct {
	Query   string          `json:"query"`
	Count   int             `json:"count"`
	Results []storage.Visit `json:"results"`
}

// Detail is one visit joined with its content entry.
type Detail struct {
	storage.Visit
	TimeSpentFormatted string            `json:"time_spent_formatted"`
	ContentMetadata    map[string]string `json:"content_metadata"`
	Content            string            `json:"content,omitempty"`
}

// Stats summarizes the whole ledger.
type Stats struct {
	TotalVisits   int64                `json:"total_visits"`
	UniqueDomains int                  `json:"unique_domains"`
	DailyVisits   []storage.DailyCount `json:"daily_visits"`
}

// Engine computes reports. It only reads.
type Engine struct {
	ledger   storage.Ledger
	contents storage.ContentStore
	sessions SessionSource
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewEngine wires an Engine to its sources.
func NewEngine(ledger storage.Ledger, contents storage.ContentStore, sessions SessionSource, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		ledger:   ledger,
		contents: contents,
		sessions: sessions,
		log:      logger.WithField("component", "report"),
		now:      time.Now,
	}
}

// Report lists visits seen since q.Since (newest first, at most q.Limit),
// each with its sessions in the period, plus the total match count and the
// top domains by time spent across every matching visit.
func (e *Engine) Report(ctx context.Context, q Query) (*Report, error) {
	end := e.now()
	filter := storage.ListFilter{Since: q.Since, Until: end, Domain: q.Domain, Limit: q.Limit}

	visits, err := e.ledger.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := e.ledger.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	totals, err := e.ledger.Totals(ctx, filter)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Period:           Period{Start: q.Since.UTC(), End: end.UTC()},
		TotalVisits:      total,
		DomainStatistics: DomainStats(totals),
		Visits:           make([]VisitReport, 0, len(visits)),
	}

	for _, v := range visits {
		sessions := []session.Session{}
		if e.sessions != nil {
			sessions, err = e.sessions.SessionsFor(ctx, v.URL, session.TimeRange{Since: q.Since, Until: end})
			if err != nil {
				return nil, err
			}
		}
		rep.Visits = append(rep.Visits, VisitReport{
			Visit:              v,
			Sessions:           sessions,
			TimeSpentFormatted: FormatDuration(v.TotalTimeSpent),
		})
	}

	return rep, nil
}

// DomainStats groups totals by DomainOf, sorted by time spent descending
// (ties by domain name) and capped at MaxDomainStats.
func DomainStats(totals []storage.VisitTotal) []DomainStat {
	byDomain := map[string]*DomainStat{}
	for _, t := range totals {
		d := DomainOf(t.URL)
		s, ok := byDomain[d]
		if !ok {
			s = &DomainStat{Domain: d}
			byDomain[d] = s
		}
		s.Count++
		s.TotalTimeSpent += t.TotalTimeSpent
	}

	stats := make([]DomainStat, 0, len(byDomain))
	for _, s := range byDomain {
		s.TimeSpentFormatted = FormatDuration(s.TotalTimeSpent)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalTimeSpent != stats[j].TotalTimeSpent {
			return stats[i].TotalTimeSpent > stats[j].TotalTimeSpent
		}
		return stats[i].Domain < stats[j].Domain
	})

	if len(stats) > MaxDomainStats {
		stats = stats[:MaxDomainStats]
	}
	return stats
}

// Search finds visits whose URL, title, text, raw content or content
// metadata contain query, ignoring case.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, storage.Invalid("q", "required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results, err := e.ledger.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"query": query, "count": len(results)}).Debug("search")
	return &SearchResult{Query: query, Count: len(results), Results: results}, nil
}

// VisitDetail returns the visit for url with its content metadata and,
// when includeContent is set, the raw body.
func (e *Engine) VisitDetail(ctx context.Context, url string, includeContent bool) (*Detail, error) {
	v, err := e.ledger.GetByURL(ctx, url)
	if err != nil {
		return nil, err
	}

	d := &Detail{
		Visit:              *v,
		TimeSpentFormatted: FormatDuration(v.TotalTimeSpent),
		ContentMetadata:    map[string]string{},
	}

	entry, err := e.contents.Get(ctx, v.ContentHash)
	if err != nil {
		return nil, err
	}
	d.ContentMetadata = entry.Metadata
	if includeContent {
		d.Content = entry.Body
	}
	return d, nil
}

// Stats counts every visit and distinct domain, with per-day visit counts
// for the last StatsDays days.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	total, err := e.ledger.Count(ctx, storage.ListFilter{})
	if err != nil {
		return nil, err
	}

	totals, err := e.ledger.Totals(ctx, storage.ListFilter{})
	if err != nil {
		return nil, err
	}
	domains := map[string]struct{}{}
	for _, t := range totals {
		domains[DomainOf(t.URL)] = struct{}{}
	}

	daily, err := e.ledger.DailyCounts(ctx, e.now().AddDate(0, 0, -StatsDays))
	if err != nil {
		return nil, err
	}

	return &Stats{TotalVisits: total, UniqueDomains: len(domains), DailyVisits: daily}, nil
}
