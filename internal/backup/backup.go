// Package backup periodically snapshots the database to a file.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/metrics"
	"github.com/runnerr0/webwatch/internal/storage"
)

// Scheduler runs storage.Snapshot on a fixed interval.
type Scheduler struct {
	db       *sql.DB
	dest     string
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger
	metrics  *metrics.Metrics

	scheduler gocron.Scheduler
}

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	Logger   logrus.FieldLogger
	Metrics  *metrics.Metrics
}

// New creates a Scheduler writing snapshots of db to dest.
func New(db *sql.DB, dest string, opts Options) (*Scheduler, error) {
	if dest == "" {
		return nil, storage.Invalid("backup.file", "required")
	}
	if opts.Interval <= 0 {
		return nil, storage.Invalid("backup.interval_minutes", "must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		db:        db,
		dest:      dest,
		interval:  opts.Interval,
		timeout:   opts.Interval,
		log:       opts.Logger.WithFields(logrus.Fields{"component": "backup", "dest": dest}),
		metrics:   opts.Metrics,
		scheduler: scheduler,
	}, nil
}

// RunOnce takes one snapshot now.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	if err := storage.Snapshot(ctx, s.db, s.dest); err != nil {
		s.metrics.Backup(metrics.ResultFailed)
		s.log.WithError(err).Error("backup failed")
		return err
	}
	s.metrics.Backup(metrics.ResultOK)
	s.log.WithField("took", time.Since(start).String()).Debug("backup written")
	return nil
}

// Start registers the periodic job and starts the scheduler. A run that
// overlaps the next tick pushes that tick back instead of stacking.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			_ = s.RunOnce(ctx)
		}),
		gocron.WithName("backup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}

	s.scheduler.Start()
	s.log.WithField("interval", s.interval.String()).Info("backup scheduler started")
	return nil
}

// Shutdown stops the scheduler and waits for a running snapshot.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
