package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/webwatch/internal/backup"
	apihttp "github.com/runnerr0/webwatch/internal/http"
	"github.com/runnerr0/webwatch/internal/metrics"
	"github.com/runnerr0/webwatch/internal/recorder"
	"github.com/runnerr0/webwatch/internal/report"
	"github.com/runnerr0/webwatch/internal/session"
	"github.com/runnerr0/webwatch/internal/summarize"
)

const shutdownTimeout = 10 * time.Second

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Host != "" {
		a.cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		a.cfg.Daemon.Port = c.Port
	}
	if c.LogLevel != "" {
		level, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", c.LogLevel, err)
		}
		a.log.SetLevel(level)
	}
	if c.NoBackup {
		a.cfg.Backup.Enabled = false
	}

	d, err := newDaemon(a, c.version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return d.run(ctx)
}

// daemon is the long-running HTTP service with its background workers.
type daemon struct {
	server   *http.Server
	recorder *recorder.Recorder
	backup   *backup.Scheduler
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

// newDaemon wires the recorder, router and backup scheduler over a.
func newDaemon(a *app, version string) (*daemon, error) {
	log := a.log.WithField("component", "daemon")
	m := metrics.New()

	// Sessions closed through the daemon feed the metrics.
	tracker := session.NewTracker(a.db, a.log, session.WithLocks(a.locks), session.WithObserver(m))
	reports := report.NewEngine(a.ledger, a.contents, tracker, a.log)

	var sum summarize.Summarizer
	if sc := a.cfg.Summarizer; sc.Enabled {
		if sc.APIKey == "" {
			log.Warn("summarizer enabled without an API key; summaries disabled")
		} else {
			sum = summarize.NewClient(summarize.Options{
				BaseURL:           sc.BaseURL,
				APIKey:            sc.APIKey,
				Model:             sc.Model,
				Timeout:           time.Duration(sc.TimeoutSeconds) * time.Second,
				RequestsPerMinute: sc.RequestsPerMinute,
				MaxInputBytes:     sc.MaxInputBytes,
			})
		}
	}

	rec := recorder.New(a.ledger, a.blocklist, recorder.Options{
		SkipLocalhost: a.cfg.Capture.SkipLocalhost,
		Summarizer:    sum,
		QueueSize:     a.cfg.Summarizer.QueueSize,
		Metrics:       m,
		Logger:        a.log,
	})

	handler := apihttp.NewRouter(&apihttp.Deps{
		Recorder:  rec,
		Ledger:    a.ledger,
		Reports:   reports,
		Blocklist: a.blocklist,
		Sessions:  tracker,
		Metrics:   m,
		Logger:    a.log,
		Defaults: apihttp.Defaults{
			ReportDays:  a.cfg.Report.DefaultDays,
			ReportLimit: a.cfg.Report.DefaultLimit,
			SearchLimit: a.cfg.Report.SearchLimit,
		},
		MaxRequestSize: a.cfg.Daemon.MaxRequestSize,
		Version:        version,
	})

	d := &daemon{
		server: &http.Server{
			Addr:              net.JoinHostPort(a.cfg.Daemon.Host, strconv.Itoa(a.cfg.Daemon.Port)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		recorder: rec,
		metrics:  m,
		log:      log,
	}

	if a.cfg.Backup.Enabled {
		dest, err := a.cfg.BackupPath()
		if err != nil {
			rec.Close(context.Background())
			return nil, err
		}
		sched, err := backup.New(a.db, dest, backup.Options{
			Interval: time.Duration(a.cfg.Backup.IntervalMinutes) * time.Minute,
			Logger:   a.log,
			Metrics:  m,
		})
		if err != nil {
			rec.Close(context.Background())
			return nil, err
		}
		d.backup = sched
	}

	return d, nil
}

// run serves until ctx is cancelled or the listener fails, then shuts the
// server down and drains the summary queue.
func (d *daemon) run(ctx context.Context) error {
	if d.backup != nil {
		if err := d.backup.Start(); err != nil {
			d.recorder.Close(context.Background())
			return err
		}
	}

	ln, err := net.Listen("tcp", d.server.Addr)
	if err != nil {
		d.stop()
		return fmt.Errorf("listen on %s: %w", d.server.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	d.log.WithField("addr", ln.Addr().String()).Info("webwatch listening")

	var serveErr error
	select {
	case <-ctx.Done():
		d.log.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.log.WithError(err).Warn("http shutdown")
	}
	if err := d.recorder.Close(shutdownCtx); err != nil {
		d.log.WithError(err).Warn("summary queue not drained")
	}
	if d.backup != nil {
		if err := d.backup.Shutdown(); err != nil {
			d.log.WithError(err).Warn("backup scheduler shutdown")
		}
	}

	return serveErr
}

// stop releases the workers when the server never started.
func (d *daemon) stop() {
	d.recorder.Close(context.Background())
	if d.backup != nil {
		d.backup.Shutdown()
	}
}
