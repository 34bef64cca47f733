package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/runnerr0/webwatch/internal/blocklist"
	"github.com/runnerr0/webwatch/internal/report"
	"github.com/runnerr0/webwatch/internal/session"
	"github.com/runnerr0/webwatch/internal/storage"
)

// intParam reads a positive integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, storage.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}

// timeParam parses an optional timestamp field.
func timeParam(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := storage.ParseTime(raw)
	if err != nil {
		return time.Time{}, storage.Invalid(field, "must be an ISO-8601 timestamp")
	}
	return t, nil
}

// wildcardParam returns the unescaped "/*" tail of the route.
func wildcardParam(r *http.Request) string {
	p := chi.URLParam(r, "*")
	if u, err := url.PathUnescape(p); err == nil {
		return u
	}
	return p
}

func (s *server) since(days int) time.Time {
	return s.Now().AddDate(0, 0, -days)
}

// --- status ---

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.Version,
		"endpoints": map[string]string{
			"visits":    "/api/visits",
			"sessions":  "/sessions/start, /sessions/end",
			"blocklist": "/blocklist",
			"report":    "/report",
			"search":    "/search",
		},
	}
	if s.Blocklist != nil {
		resp["blocklist_size"] = s.Blocklist.Len()
	}
	if s.Recorder != nil {
		resp["pending_summaries"] = s.Recorder.Pending()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- visits ---

type visitRequest struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Rating    *int   `json:"rating"`
}

func (s *server) handleRecordVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	ts, err := timeParam("timestamp", req.Timestamp)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	out, err := s.Recorder.Record(r.Context(), storage.VisitInput{
		URL:       req.URL,
		Title:     req.Title,
		Timestamp: ts,
		Body:      req.Content,
		Rating:    req.Rating,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	status := http.StatusOK
	if out.Visit != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (s *server) handleListVisits(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", s.Defaults.ListDays)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	limit, err := intParam(r, "limit", s.Defaults.ReportLimit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	visits, err := s.Ledger.List(r.Context(), storage.ListFilter{Since: s.since(days), Limit: limit})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, visits)
}

// --- reports ---

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", s.Defaults.ReportDays)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	limit, err := intParam(r, "limit", s.Defaults.ReportLimit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	rep, err := s.Reports.Report(r.Context(), report.Query{
		Since:  s.since(days),
		Limit:  limit,
		Domain: r.URL.Query().Get("domain"),
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleVisitDetail serves /visit?url=... and /visit/{url...}.
func (s *server) handleVisitDetail(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		target = wildcardParam(r)
	}
	if target == "" {
		writeError(w, s.log, storage.Invalid("url", "required"))
		return
	}

	include, _ := strconv.ParseBool(r.URL.Query().Get("include_content"))

	d, err := s.Reports.VisitDetail(r.Context(), target, include)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.Defaults.SearchLimit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	res, err := s.Reports.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Reports.Stats(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.Ledger.Clear(r.Context()); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Database cleared successfully",
	})
}

// --- blocklist ---

type blockRequest struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

func (s *server) handleListBlocklist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Blocklist.Export())
}

func (s *server) handleExportBlocklist(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="blocklist.json"`)
	writeJSON(w, http.StatusOK, s.Blocklist.Export())
}

func (s *server) handleAddBlocklist(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	entry, err := s.Blocklist.Add(r.Context(), req.URL, req.Reason)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *server) handleCheckBlocklist(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, s.log, storage.Invalid("url", "required"))
		return
	}
	writeJSON(w, http.StatusOK, s.Blocklist.Check(req.URL))
}

type bulkRequest struct {
	URLs   []json.RawMessage `json:"urls"`
	Reason string            `json:"reason"`
}

// handleBulkBlocklist accepts {"urls": [...], "reason": "..."} where each
// element is either a pattern string or {"url", "reason"}.
func (s *server) handleBulkBlocklist(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if req.URLs == nil {
		writeError(w, s.log, storage.Invalid("urls", "list of URLs is required"))
		return
	}

	items := make([]blocklist.Item, 0, len(req.URLs))
	for _, raw := range req.URLs {
		var it blocklist.Item
		var pattern string
		if err := json.Unmarshal(raw, &pattern); err == nil {
			it.Pattern = pattern
		} else if err := json.Unmarshal(raw, &it); err != nil {
			writeError(w, s.log, storage.Invalid("urls", "entries must be strings or {url, reason} objects"))
			return
		}
		if it.Reason == "" {
			it.Reason = req.Reason
		}
		items = append(items, it)
	}

	res, err := s.Blocklist.BulkAdd(r.Context(), items)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	status := http.StatusOK
	if len(res.Added) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (s *server) handleUpdateBlocklist(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	entry, err := s.Blocklist.Update(r.Context(), wildcardParam(r), req.Reason)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *server) handleRemoveBlocklist(w http.ResponseWriter, r *http.Request) {
	pattern := wildcardParam(r)
	if err := s.Blocklist.Remove(r.Context(), pattern); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "URL " + pattern + " unblocked successfully",
	})
}

// --- sessions ---

type startSessionRequest struct {
	URL       string `json:"url"`
	StartTime string `json:"start_time"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
	EndTime   string `json:"end_time"`
}

func (s *server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	start, err := timeParam("start_time", req.StartTime)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	id, err := s.Sessions.StartAt(r.Context(), req.URL, start)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	end, err := timeParam("end_time", req.EndTime)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	sess, err := s.Sessions.End(r.Context(), req.SessionID, end)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, s.log, storage.Invalid("url", "required"))
		return
	}

	var tr session.TimeRange
	if r.URL.Query().Get("days") != "" {
		days, err := intParam(r, "days", 0)
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		tr.Since = s.since(days)
	}

	sessions, err := s.Sessions.SessionsFor(r.Context(), target, tr)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}
