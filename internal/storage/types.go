package storage

import (
	"time"

	"github.com/runnerr0/webwatch/internal/extract"
)

// ContentEntry is one deduplicated page body keyed by its fingerprint.
type ContentEntry struct {
	Hash     string            `json:"hash"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata"`
}

// Visit is the single ledger row for a URL.
type Visit struct {
	URL            string            `json:"url"`
	Title          string            `json:"title"`
	Timestamp      time.Time         `json:"timestamp"`
	ContentHash    string            `json:"content_hash"`
	TextExtract    string            `json:"text_extract"`
	Links          []extract.LinkRef `json:"links"`
	TotalTimeSpent int64             `json:"total_time_spent"`
	Processed      bool              `json:"processed"`
	Rating         *int              `json:"rating,omitempty"`
	Summary        string            `json:"summary,omitempty"`
}

// VisitInput carries one inbound page view into Ledger.Upsert.
type VisitInput struct {
	URL       string
	Title     string
	Timestamp time.Time // zero means now
	Body      string
	Rating    *int // optional, 1..5
}

// ListFilter narrows Ledger reads. Zero values disable a filter.
type ListFilter struct {
	Since  time.Time
	Until  time.Time
	Domain string // substring of the URL
	Limit  int
}

// VisitTotal pairs a URL with its accumulated session seconds.
type VisitTotal struct {
	URL            string
	TotalTimeSpent int64
}

// DailyCount is the number of visits last seen on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// SeedPattern is a blocklist row inserted by the seeding migration.
type SeedPattern struct {
	Pattern string
	Reason  string
}
