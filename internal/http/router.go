// Package http exposes the ledger, reports, blocklist and sessions over a
// small JSON API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/blocklist"
	"github.com/runnerr0/webwatch/internal/metrics"
	"github.com/runnerr0/webwatch/internal/recorder"
	"github.com/runnerr0/webwatch/internal/report"
	"github.com/runnerr0/webwatch/internal/session"
	"github.com/runnerr0/webwatch/internal/storage"
)

// Defaults fill query parameters the caller leaves out.
type Defaults struct {
	ReportDays  int
	ReportLimit int
	ListDays    int
	SearchLimit int
}

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Recorder       *recorder.Recorder
	Ledger         storage.Ledger
	Reports        *report.Engine
	Blocklist      *blocklist.Blocklist
	Sessions       *session.Tracker
	Metrics        *metrics.Metrics
	Logger         logrus.FieldLogger
	Defaults       Defaults
	MaxRequestSize int64
	Version        string
	Now            func() time.Time
}

type server struct {
	*Deps
	log logrus.FieldLogger
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Defaults.ReportDays <= 0 {
		deps.Defaults.ReportDays = 7
	}
	if deps.Defaults.ReportLimit <= 0 {
		deps.Defaults.ReportLimit = 100
	}
	if deps.Defaults.ListDays <= 0 {
		deps.Defaults.ListDays = 30
	}
	if deps.Defaults.SearchLimit <= 0 {
		deps.Defaults.SearchLimit = report.DefaultSearchLimit
	}

	s := &server{Deps: deps, log: deps.Logger.WithField("component", "http")}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log, deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(LimitBody(deps.MaxRequestSize))

	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/visits", s.handleRecordVisit)
		r.Get("/visits", s.handleListVisits)
	})

	r.Get("/report", s.handleReport)
	r.Get("/visit", s.handleVisitDetail)
	r.Get("/visit/*", s.handleVisitDetail)
	r.Get("/search", s.handleSearch)
	r.Get("/stats", s.handleStats)
	r.Post("/clear", s.handleClear)

	r.Route("/blocklist", func(r chi.Router) {
		r.Get("/", s.handleListBlocklist)
		r.Post("/", s.handleAddBlocklist)
		r.Post("/check", s.handleCheckBlocklist)
		r.Post("/bulk", s.handleBulkBlocklist)
		r.Get("/export", s.handleExportBlocklist)
		r.Put("/*", s.handleUpdateBlocklist)
		r.Delete("/*", s.handleRemoveBlocklist)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/start", s.handleStartSession)
		r.Post("/end", s.handleEndSession)
		r.Get("/", s.handleListSessions)
	})

	return r
}
