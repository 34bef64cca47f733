// Package recorder is the inbound visit pipeline: blocklist gate, localhost
// skip, ledger upsert and an asynchronous summary queue.
package recorder

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/blocklist"
	"github.com/runnerr0/webwatch/internal/metrics"
	"github.com/runnerr0/webwatch/internal/storage"
	"github.com/runnerr0/webwatch/internal/summarize"
)

// Status is the outcome of Record.
type Status string

const (
	StatusRecorded Status = "recorded"
	StatusSkipped  Status = "skipped"
	StatusBlocked  Status = "blocked"
)

// DefaultQueueSize bounds pending summaries when Options.QueueSize is 0.
const DefaultQueueSize = 64

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("recorder closed")

// Ledger is the subset of storage.Ledger the recorder writes to.
type Ledger interface {
	Upsert(ctx context.Context, in storage.VisitInput) (*storage.Visit, error)
	SetSummary(ctx context.Context, url string, rating int, summary string) error
}

// Gate decides whether a URL may be recorded.
type Gate interface {
	Check(url string) blocklist.Verdict
}

// Outcome describes what happened to one inbound visit.
type Outcome struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Visit   *storage.Visit `json:"visit,omitempty"`
}

// Options configures a Recorder.
type Options struct {
	SkipLocalhost bool
	// Summarizer is optional; without one no summaries are queued.
	Summarizer summarize.Summarizer
	QueueSize  int
	Metrics    *metrics.Metrics
	Logger     logrus.FieldLogger
}

type job struct {
	url  string
	body []byte
}

// Recorder turns inbound page views into ledger rows.
type Recorder struct {
	ledger     Ledger
	gate       Gate
	summarizer summarize.Summarizer
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
	skipLocal  bool

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Recorder. When a summarizer is configured a single worker
// drains the summary queue until Close.
func New(ledger Ledger, gate Gate, opts Options) *Recorder {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	r := &Recorder{
		ledger:     ledger,
		gate:       gate,
		summarizer: opts.Summarizer,
		metrics:    opts.Metrics,
		log:        opts.Logger.WithField("component", "recorder"),
		skipLocal:  opts.SkipLocalhost,
	}

	if r.summarizer != nil {
		size := opts.QueueSize
		if size <= 0 {
			size = DefaultQueueSize
		}
		r.queue = make(chan job, size)

		ctx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		r.wg.Add(1)
		go r.worker(ctx)
	}
	return r
}

// IsLocalhost reports whether url points at the local machine.
func IsLocalhost(url string) bool {
	u := strings.ToLower(url)
	return strings.Contains(u, "localhost") || strings.Contains(u, "127.0.0.1")
}

// Record gates, stores and queues one visit. Blocked and skipped visits
// are not errors; they come back with their status and no Visit.
func (r *Recorder) Record(ctx context.Context, in storage.VisitInput) (*Outcome, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return nil, storage.Invalid("url", "required")
	}

	entry := r.log.WithField("url", in.URL)

	if r.gate != nil {
		if v := r.gate.Check(in.URL); v.Blocked {
			r.metrics.VisitBlocked()
			entry.WithField("pattern", v.Pattern).Info("visit blocked")
			return &Outcome{Status: StatusBlocked, Message: v.Reason}, nil
		}
	}

	if r.skipLocal && IsLocalhost(in.URL) {
		r.metrics.VisitRecorded(metrics.ResultSkipped)
		entry.Info("ignoring localhost visit")
		return &Outcome{Status: StatusSkipped, Message: "Localhost URLs are ignored"}, nil
	}

	visit, err := r.ledger.Upsert(ctx, in)
	if err != nil {
		r.metrics.VisitRecorded(metrics.ResultFailed)
		return nil, err
	}
	r.metrics.VisitRecorded(metrics.ResultRecorded)
	entry.Info("visit recorded")

	r.enqueue(job{url: visit.URL, body: []byte(in.Body)})

	return &Outcome{Status: StatusRecorded, Visit: visit}, nil
}

// enqueue hands a job to the worker without blocking. A full queue drops
// the job.
func (r *Recorder) enqueue(j job) {
	if r.queue == nil || len(j.body) == 0 {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- j:
	default:
		r.metrics.Summary(metrics.ResultDropped)
		r.log.WithField("url", j.url).Warn("summary queue full, dropping")
	}
}

func (r *Recorder) worker(ctx context.Context) {
	defer r.wg.Done()
	for j := range r.queue {
		r.summarizeOne(ctx, j)
	}
}

// summarizeOne runs one job. Failures are logged and counted; the visit
// row is only touched on success.
func (r *Recorder) summarizeOne(ctx context.Context, j job) {
	entry := r.log.WithField("url", j.url)

	res, err := r.summarizer.Summarize(ctx, j.body)
	if err != nil {
		r.metrics.Summary(metrics.ResultFailed)
		entry.WithError(err).Warn("summarize failed")
		return
	}

	if err := r.ledger.SetSummary(ctx, j.url, res.Rating, res.Report); err != nil {
		r.metrics.Summary(metrics.ResultFailed)
		entry.WithError(err).Warn("store summary failed")
		return
	}

	r.metrics.Summary(metrics.ResultOK)
	entry.WithField("rating", res.Rating).Debug("summary stored")
}

// Pending returns the number of queued summary jobs.
func (r *Recorder) Pending() int {
	if r.queue == nil {
		return 0
	}
	return len(r.queue)
}

// Close stops accepting visits, lets the worker finish queued jobs and
// waits for it. If ctx expires first the in-flight call is cancelled.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.queue != nil {
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if r.cancel != nil {
			r.cancel()
		}
		<-done
		return ctx.Err()
	}

	if r.cancel != nil {
		r.cancel()
	}
	return nil
}
